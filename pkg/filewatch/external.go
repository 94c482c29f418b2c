package filewatch

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/vtcode/vtcode/pkg/logging"
)

// ExternalWatcher watches the workspace tree on disk and forwards changes
// made outside the agent's own tool calls (a human editing in another
// terminal, a build system regenerating a file) into the same FileWatcher
// used for tool-driven changes, tagged with an empty ToolName so
// subscribers can tell the two origins apart.
type ExternalWatcher struct {
	fsw     *fsnotify.Watcher
	target  *FileWatcher
	root    string
	logger  *logging.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	started bool
}

// NewExternalWatcher creates a recursive watcher rooted at root, publishing
// to target. Returns an error only if the underlying OS watcher cannot be
// created; a missing or inaccessible root directory is skipped rather than
// treated as fatal, since external watching is best-effort.
// logger may be nil, in which case watcher errors are dropped silently.
func NewExternalWatcher(root string, target *FileWatcher, logger *logging.Logger) (*ExternalWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ew := &ExternalWatcher{
		fsw:    fsw,
		target: target,
		root:   root,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	ew.addTree(root)
	return ew, nil
}

func (ew *ExternalWatcher) addTree(root string) {
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // best-effort: skip unreadable subtrees
		}
		if d.IsDir() {
			if shouldSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			if addErr := ew.fsw.Add(path); addErr != nil {
				ew.logDebug("watch_add_failed", map[string]any{"path": path, "error": addErr.Error()})
			}
		}
		return nil
	})
}

func shouldSkipDir(name string) bool {
	switch name {
	case ".git", "node_modules", "vendor", ".cache":
		return true
	default:
		return false
	}
}

// Start begins forwarding fsnotify events in a background goroutine.
func (ew *ExternalWatcher) Start() {
	ew.mu.Lock()
	if ew.started {
		ew.mu.Unlock()
		return
	}
	ew.started = true
	ew.mu.Unlock()
	go ew.run()
}

func (ew *ExternalWatcher) run() {
	defer close(ew.doneCh)
	for {
		select {
		case <-ew.stopCh:
			return
		case ev, ok := <-ew.fsw.Events:
			if !ok {
				return
			}
			ew.handle(ev)
		case err, ok := <-ew.fsw.Errors:
			if !ok {
				return
			}
			ew.logWarn("watcher_error", map[string]any{"error": err.Error()})
		}
	}
}

func (ew *ExternalWatcher) logDebug(eventType string, details map[string]any) {
	if ew.logger == nil {
		return
	}
	_ = ew.logger.Debug(logging.CategoryFileWatch, eventType, "", details)
}

func (ew *ExternalWatcher) logWarn(eventType string, details map[string]any) {
	if ew.logger == nil {
		return
	}
	_ = ew.logger.Warn(logging.CategoryFileWatch, eventType, "", details)
}

func (ew *ExternalWatcher) handle(ev fsnotify.Event) {
	if ew.target == nil {
		return
	}
	var changeType ChangeType
	switch {
	case ev.Op&fsnotify.Create != 0:
		changeType = ChangeCreated
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			ew.fsw.Add(ev.Name) //nolint:errcheck // best-effort: newly created subdirectory joins the watch set
			return
		}
	case ev.Op&fsnotify.Write != 0:
		changeType = ChangeModified
	case ev.Op&fsnotify.Remove != 0, ev.Op&fsnotify.Rename != 0:
		changeType = ChangeDeleted
	default:
		return
	}

	change := FileChange{Path: ev.Name, Type: changeType}
	if info, err := os.Stat(ev.Name); err == nil {
		change.Size = info.Size()
		change.ModTime = info.ModTime()
	}
	ew.target.Notify(change)
}

// Close stops the watcher and releases the underlying OS resources.
func (ew *ExternalWatcher) Close() error {
	ew.mu.Lock()
	started := ew.started
	ew.mu.Unlock()
	close(ew.stopCh)
	if started {
		<-ew.doneCh
	}
	return ew.fsw.Close()
}
