package builtin

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vtcode/vtcode/pkg/sandboxpolicy"
)

// ReadMode selects how ReadFile slices a file's content.
type ReadMode int

const (
	// ModeSlice reads a contiguous [offset, offset+limit) window of lines.
	ModeSlice ReadMode = iota
	// ModeIndentation expands bidirectionally from an anchor line following
	// the block's indentation, per §4.F.
	ModeIndentation
)

// SliceOptions configures ModeSlice. Offset is 1-indexed; Limit <= 0 means
// "to end of file".
type SliceOptions struct {
	Offset int
	Limit  int
}

// IndentationOptions configures ModeIndentation, per §4.F's read_file handler.
type IndentationOptions struct {
	AnchorLine      int
	MaxLevels       int
	IncludeSiblings bool
	IncludeHeader   bool
	MaxLines        int
}

// ReadRequest is a single file read, as used standalone or within a batch.
type ReadRequest struct {
	Path   string
	Mode   ReadMode
	Slice  SliceOptions
	Indent IndentationOptions
}

// ReadOutcome is the structured result of one file read.
type ReadOutcome struct {
	Path      string
	Lines     []string // numbered "L<n>: ..." lines
	FirstLine int
	LastLine  int
	Err       error
}

// ReadFileHandler implements the workDir-aware read_file executor behind
// unified_file{action:"read"}, including the batch ("reads" array) fan-out.
type ReadFileHandler struct {
	WorkDir        string
	MaxConcurrency int
	// Policy gates reads against sensitive paths when set. A nil Policy
	// performs no gating, matching handlers constructed without a sandbox.
	Policy sandboxpolicy.Policy
}

// NewReadFileHandler builds a handler rooted at workDir. maxConcurrency <= 0
// defaults to 8, per §4.F's batch-mode semaphore default.
func NewReadFileHandler(workDir string, maxConcurrency int) *ReadFileHandler {
	if maxConcurrency <= 0 {
		maxConcurrency = 8
	}
	return &ReadFileHandler{WorkDir: workDir, MaxConcurrency: maxConcurrency}
}

// ReadOne executes a single ReadRequest.
func (h *ReadFileHandler) ReadOne(req ReadRequest) ReadOutcome {
	absPath, err := resolvePath(h.WorkDir, req.Path)
	if err != nil {
		return ReadOutcome{Path: req.Path, Err: err}
	}
	if h.Policy != nil && !h.Policy.AllowsRead(absPath) {
		return ReadOutcome{Path: req.Path, Err: fmt.Errorf("read_file: access to sensitive path denied: %s", absPath)}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return ReadOutcome{Path: req.Path, Err: fmt.Errorf("read_file: %w", err)}
	}
	lines := splitLinesKeepEmpty(string(data))

	switch req.Mode {
	case ModeIndentation:
		return readIndentation(absPath, lines, req.Indent)
	default:
		return readSlice(absPath, lines, req.Slice)
	}
}

// Batch executes reqs concurrently through a semaphore of h.MaxConcurrency,
// preserving per-file errors without failing the batch, and returns a
// concatenated content block with "== <path> (L<a>..L<b>)" separators plus
// per-file structured outcomes, per §4.F's batch-mode contract.
func (h *ReadFileHandler) Batch(reqs []ReadRequest) (content string, outcomes []ReadOutcome, filesSucceeded int) {
	outcomes = make([]ReadOutcome, len(reqs))
	var g errgroup.Group
	if h.MaxConcurrency > 0 {
		g.SetLimit(h.MaxConcurrency)
	}
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			outcomes[i] = h.ReadOne(req)
			return nil
		})
	}
	_ = g.Wait() // per-file errors live in outcomes[i].Err, not here; the batch never fails as a whole

	var sb strings.Builder
	for _, o := range outcomes {
		if o.Err != nil {
			continue
		}
		filesSucceeded++
		fmt.Fprintf(&sb, "== %s (L%d..L%d)\n", o.Path, o.FirstLine, o.LastLine)
		sb.WriteString(strings.Join(o.Lines, "\n"))
		sb.WriteString("\n")
	}
	return sb.String(), outcomes, filesSucceeded
}

func splitLinesKeepEmpty(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(content, "\n")
	// A trailing newline produces one spurious empty final element; drop it
	// to match how editors count lines in a file.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func readSlice(path string, lines []string, opts SliceOptions) ReadOutcome {
	offset := opts.Offset
	if offset < 1 {
		offset = 1
	}
	if offset > len(lines) {
		return ReadOutcome{Path: path, Err: fmt.Errorf("read_file: offset %d past EOF (%d lines)", offset, len(lines))}
	}

	end := len(lines)
	if opts.Limit > 0 {
		end = offset - 1 + opts.Limit
		if end > len(lines) {
			end = len(lines)
		}
	}

	out := make([]string, 0, end-(offset-1))
	for i := offset - 1; i < end; i++ {
		out = append(out, numberedLine(i+1, lines[i]))
	}
	return ReadOutcome{Path: path, Lines: out, FirstLine: offset, LastLine: end}
}

// readIndentation expands from an anchor line following §4.F's Indentation
// algorithm: bidirectional expansion while indent stays within max_levels of
// the anchor, stopping before a second same-level sibling unless
// include_siblings is set (a leading comment sibling is kept when
// include_header is set).
func readIndentation(path string, lines []string, opts IndentationOptions) ReadOutcome {
	anchorIdx := opts.AnchorLine - 1
	if anchorIdx < 0 || anchorIdx >= len(lines) {
		return ReadOutcome{Path: path, Err: fmt.Errorf("read_file: anchor_line %d out of range (%d lines)", opts.AnchorLine, len(lines))}
	}

	anchorIndent := effectiveIndent(lines[anchorIdx])
	hasFloor := opts.MaxLevels > 0
	floor := anchorIndent - opts.MaxLevels*4

	// Forward expansion.
	lastIdx := anchorIdx
	siblingsAtMin := 0
	lastNonBlankIndent := anchorIndent
	for i := anchorIdx + 1; i < len(lines); i++ {
		line := lines[i]
		indent := lastNonBlankIndent
		if !isBlank(line) {
			indent = effectiveIndent(line)
			lastNonBlankIndent = indent
		}

		if hasFloor && indent < floor {
			break
		}

		if indent <= anchorIndent && !isBlank(line) {
			siblingsAtMin++
			if indent == anchorIndent {
				if siblingsAtMin == 1 && isCommentLine(line) && opts.IncludeHeader {
					lastIdx = i
					continue
				}
				if opts.IncludeSiblings {
					lastIdx = i
					continue
				}
				break
			}
			// Dedented below the anchor's own level: left the enclosing scope.
			break
		}

		lastIdx = i
		if opts.MaxLines > 0 && lastIdx-anchorIdx+1 >= opts.MaxLines {
			break
		}
	}

	// Backward expansion: pull in a contiguous leading comment header.
	firstIdx := anchorIdx
	if opts.IncludeHeader {
		for i := anchorIdx - 1; i >= 0; i-- {
			if isCommentLine(lines[i]) && effectiveIndent(lines[i]) == anchorIndent {
				firstIdx = i
				continue
			}
			break
		}
	}

	out := make([]string, 0, lastIdx-firstIdx+1)
	for i := firstIdx; i <= lastIdx; i++ {
		out = append(out, numberedLine(i+1, lines[i]))
	}
	return ReadOutcome{Path: path, Lines: out, FirstLine: firstIdx + 1, LastLine: lastIdx + 1}
}
