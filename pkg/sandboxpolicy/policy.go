// Package sandboxpolicy implements the Sandbox Policy component: an
// immutable, tagged-variant description of what the runtime may touch on
// disk, over the network, and in subprocesses. A flat Mode enum
// (disabled/read-only/workspace/strict) is generalized into a small
// closed set of policy shapes, each carrying only the fields that shape
// actually needs.
package sandboxpolicy

import (
	"fmt"
	"os"
	"path/filepath"
)

// Policy is the sandbox policy in effect for a session. It is immutable
// once constructed; a change of policy is checked with CanTransition,
// which refuses a move from ReadOnly to any looser policy and allows every
// other transition.
type Policy interface {
	// Kind identifies which variant this is.
	Kind() Kind
	// AllowsWrite reports whether path may be written to under this policy.
	AllowsWrite(path string) bool
	// AllowsRead reports whether path may be read under this policy. Sensitive
	// paths are unreadable everywhere except DangerFullAccess/ExternalSandbox.
	AllowsRead(path string) bool
	// AllowsNetwork reports whether host may be reached under this policy.
	AllowsNetwork(host string) bool
	// IsSensitive reports whether path is a sensitive path this policy
	// still protects even when writes are otherwise allowed.
	IsSensitive(path string) bool
	// String renders a human-readable description, used in logs and the
	// inline TUI's status line.
	String() string
}

// Kind enumerates the policy variants.
type Kind int

const (
	KindReadOnly Kind = iota
	KindWorkspaceWrite
	KindDangerFullAccess
	KindExternalSandbox
)

func (k Kind) String() string {
	switch k {
	case KindReadOnly:
		return "read_only"
	case KindWorkspaceWrite:
		return "workspace_write"
	case KindDangerFullAccess:
		return "danger_full_access"
	case KindExternalSandbox:
		return "external_sandbox"
	default:
		return "unknown"
	}
}

// ResourceLimits describes subprocess resource caps. Executor.Execute applies
// TimeoutSecs and MaxOutputSize; MaxMemoryMB, MaxPIDs, MaxDiskMB and
// CPUTimeSecs are carried but not enforced on any platform.
type ResourceLimits struct {
	MaxMemoryMB   int
	MaxPIDs       int
	MaxDiskMB     int
	CPUTimeSecs   int
	TimeoutSecs   int
	MaxOutputSize int64 // bytes; 0 = unlimited
}

// ConservativeResourceLimits is the tightest named preset: short-lived,
// low-footprint subprocesses (linters, single-file formatters).
func ConservativeResourceLimits() ResourceLimits {
	return ResourceLimits{
		MaxMemoryMB:   512,
		MaxPIDs:       64,
		MaxDiskMB:     1024,
		CPUTimeSecs:   60,
		TimeoutSecs:   120,
		MaxOutputSize: 2 * 1024 * 1024,
	}
}

// ModerateResourceLimits covers ordinary build/test invocations.
func ModerateResourceLimits() ResourceLimits {
	return ResourceLimits{
		MaxMemoryMB:   2048,
		MaxPIDs:       256,
		MaxDiskMB:     4096,
		CPUTimeSecs:   300,
		TimeoutSecs:   600,
		MaxOutputSize: 10 * 1024 * 1024,
	}
}

// GenerousResourceLimits covers long compiles and dependency installs.
func GenerousResourceLimits() ResourceLimits {
	return ResourceLimits{
		MaxMemoryMB:   8192,
		MaxPIDs:       1024,
		MaxDiskMB:     16384,
		CPUTimeSecs:   1800,
		TimeoutSecs:   3600,
		MaxOutputSize: 50 * 1024 * 1024,
	}
}

// UnlimitedResourceLimits removes enforcement; reserved for
// DangerFullAccess/ExternalSandbox policies where an outer layer already
// owns resource isolation.
func UnlimitedResourceLimits() ResourceLimits {
	return ResourceLimits{}
}

// DefaultResourceLimits is the limit set new WorkspaceWritePolicy values
// carry unless overridden: ModerateResourceLimits.
func DefaultResourceLimits() ResourceLimits {
	return ModerateResourceLimits()
}

// DefaultBlockedSyscalls lists the syscalls a seccomp profile blocks unless
// explicitly overridden: ptrace/namespace/kernel-module primitives that have
// no legitimate use in a coding-agent subprocess.
var DefaultBlockedSyscalls = []string{
	"ptrace", "mount", "umount", "umount2",
	"kexec_load", "kexec_file_load",
	"bpf", "perf_event_open", "userfaultfd",
	"process_vm_readv", "process_vm_writev",
	"keyctl", "add_key", "request_key",
	"reboot", "unshare", "setns",
}

// SeccompProfile describes a seccomp-bpf filter declaratively. Nothing in
// this module installs it, on Linux or elsewhere: constructors accept it,
// and AllowsWrite/AllowsRead/AllowsNetwork never consult it, so a config
// file carrying one round-trips on every platform.
type SeccompProfile struct {
	BlockedSyscalls     []string
	AllowNamespaces     bool
	AllowNetworkSockets bool
	LogOnly             bool
}

// DefaultSeccompProfile blocks DefaultBlockedSyscalls and denies namespace
// creation, permitting ordinary network sockets.
func DefaultSeccompProfile() SeccompProfile {
	return SeccompProfile{
		BlockedSyscalls:     append([]string(nil), DefaultBlockedSyscalls...),
		AllowNamespaces:     false,
		AllowNetworkSockets: true,
		LogOnly:             false,
	}
}

// ReadOnlyPolicy permits reads everywhere and writes nowhere.
type ReadOnlyPolicy struct{}

func NewReadOnly() ReadOnlyPolicy { return ReadOnlyPolicy{} }

func (ReadOnlyPolicy) Kind() Kind              { return KindReadOnly }
func (ReadOnlyPolicy) AllowsWrite(string) bool { return false }
func (p ReadOnlyPolicy) AllowsRead(path string) bool {
	return !p.IsSensitive(path)
}
func (ReadOnlyPolicy) AllowsNetwork(string) bool    { return false }
func (ReadOnlyPolicy) IsSensitive(path string) bool { return isDefaultSensitive(path) }
func (ReadOnlyPolicy) String() string               { return "read-only" }

// WorkspaceWritePolicy permits writes under WritableRoots, network access
// to hosts matching NetworkAllowlist, and always refuses SensitivePaths
// regardless of whether they fall under a writable root.
type WorkspaceWritePolicy struct {
	WritableRoots    []string
	NetworkAllowlist []string
	SensitivePaths   []string
	ResourceLimits   ResourceLimits
	SeccompProfile   SeccompProfile
	ExcludeTmpdir    bool
	ExcludeSlashTmp  bool
}

// NewWorkspaceWrite builds a WorkspaceWritePolicy, folding in the default
// sensitive-path list and the platform temp directories unless excluded.
func NewWorkspaceWrite(writableRoots []string, opts ...WorkspaceWriteOption) WorkspaceWritePolicy {
	p := WorkspaceWritePolicy{
		WritableRoots:  append([]string(nil), writableRoots...),
		SensitivePaths: defaultSensitivePaths(),
		ResourceLimits: DefaultResourceLimits(),
		SeccompProfile: DefaultSeccompProfile(),
	}
	for _, opt := range opts {
		opt(&p)
	}
	if !p.ExcludeTmpdir {
		if tmp := os.TempDir(); tmp != "" {
			p.WritableRoots = append(p.WritableRoots, tmp)
		}
	}
	if !p.ExcludeSlashTmp && !p.ExcludeTmpdir {
		p.WritableRoots = append(p.WritableRoots, "/tmp")
	}
	return p
}

// WorkspaceWriteOption customizes a WorkspaceWritePolicy at construction.
type WorkspaceWriteOption func(*WorkspaceWritePolicy)

func WithNetworkAllowlist(hosts []string) WorkspaceWriteOption {
	return func(p *WorkspaceWritePolicy) { p.NetworkAllowlist = hosts }
}

func WithSensitivePaths(paths []string) WorkspaceWriteOption {
	return func(p *WorkspaceWritePolicy) { p.SensitivePaths = paths }
}

func WithResourceLimits(limits ResourceLimits) WorkspaceWriteOption {
	return func(p *WorkspaceWritePolicy) { p.ResourceLimits = limits }
}

func WithSeccompProfile(profile SeccompProfile) WorkspaceWriteOption {
	return func(p *WorkspaceWritePolicy) { p.SeccompProfile = profile }
}

func WithExcludeTmpdir() WorkspaceWriteOption {
	return func(p *WorkspaceWritePolicy) { p.ExcludeTmpdir = true }
}

func WithExcludeSlashTmp() WorkspaceWriteOption {
	return func(p *WorkspaceWritePolicy) { p.ExcludeSlashTmp = true }
}

func (WorkspaceWritePolicy) Kind() Kind { return KindWorkspaceWrite }

func (p WorkspaceWritePolicy) AllowsWrite(path string) bool {
	if p.IsSensitive(path) {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	for _, root := range p.WritableRoots {
		rootAbs, err := filepath.Abs(root)
		if err != nil {
			rootAbs = root
		}
		if withinRoot(abs, rootAbs) {
			return true
		}
	}
	return false
}

func (p WorkspaceWritePolicy) AllowsRead(path string) bool {
	return !p.IsSensitive(path)
}

func (p WorkspaceWritePolicy) AllowsNetwork(host string) bool {
	for _, pattern := range p.NetworkAllowlist {
		if matchHost(pattern, host) {
			return true
		}
	}
	return false
}

func (p WorkspaceWritePolicy) IsSensitive(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	for _, sensitive := range p.SensitivePaths {
		sensitiveAbs, err := filepath.Abs(expandHome(sensitive))
		if err != nil {
			sensitiveAbs = sensitive
		}
		if withinRoot(abs, sensitiveAbs) {
			return true
		}
	}
	return false
}

func (p WorkspaceWritePolicy) String() string {
	return fmt.Sprintf("workspace-write(%d roots)", len(p.WritableRoots))
}

// DangerFullAccessPolicy permits everything. It exists for explicit
// opt-in use (e.g. CI containers already isolated at a layer above
// vtcode) and must never be the default.
type DangerFullAccessPolicy struct{}

func NewDangerFullAccess() DangerFullAccessPolicy { return DangerFullAccessPolicy{} }

func (DangerFullAccessPolicy) Kind() Kind              { return KindDangerFullAccess }
func (DangerFullAccessPolicy) AllowsWrite(string) bool { return true }
func (DangerFullAccessPolicy) AllowsRead(string) bool  { return true }
func (DangerFullAccessPolicy) AllowsNetwork(string) bool { return true }
func (DangerFullAccessPolicy) IsSensitive(string) bool   { return false }
func (DangerFullAccessPolicy) String() string            { return "danger-full-access" }

// ExternalSandboxPolicy defers all enforcement to an external mechanism
// (a container, a VM, a CI runner) that vtcode trusts but does not itself
// implement. Description is surfaced in logs and the TUI status line so
// the operator knows what's actually enforcing isolation.
type ExternalSandboxPolicy struct {
	Description string
}

func NewExternalSandbox(description string) ExternalSandboxPolicy {
	return ExternalSandboxPolicy{Description: description}
}

func (ExternalSandboxPolicy) Kind() Kind                 { return KindExternalSandbox }
func (ExternalSandboxPolicy) AllowsWrite(string) bool    { return true }
func (ExternalSandboxPolicy) AllowsRead(string) bool     { return true }
func (ExternalSandboxPolicy) AllowsNetwork(string) bool  { return true }
func (ExternalSandboxPolicy) IsSensitive(string) bool    { return false }
func (p ExternalSandboxPolicy) String() string {
	if p.Description == "" {
		return "external-sandbox"
	}
	return "external-sandbox: " + p.Description
}

// CanTransition reports whether the sandbox may move from "from" to "to".
// Escalating away from ReadOnly is forbidden: once a session has been
// pinned read-only, nothing in-process may loosen it. Any other
// transition (including narrowing) is allowed.
func CanTransition(from, to Policy) error {
	if from == nil {
		return nil
	}
	if from.Kind() == KindReadOnly && to.Kind() != KindReadOnly {
		return fmt.Errorf("sandboxpolicy: cannot escalate from read_only to %s", to.Kind())
	}
	return nil
}

func defaultSensitivePaths() []string {
	return []string{
		"~/.ssh",
		"~/.gnupg",
		"~/.aws",
		"~/.config/gcloud",
		"/etc",
		"/var",
		"/usr",
		"/bin",
		"/sbin",
	}
}

func isDefaultSensitive(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	for _, sensitive := range defaultSensitivePaths() {
		sensitiveAbs, err := filepath.Abs(expandHome(sensitive))
		if err != nil {
			sensitiveAbs = sensitive
		}
		if withinRoot(abs, sensitiveAbs) {
			return true
		}
	}
	return false
}

func withinRoot(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (len(rel) > 0 && rel[0] != '.' && !filepath.IsAbs(rel))
}

func expandHome(path string) string {
	if path == "~" || len(path) >= 2 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil && home != "" {
			if path == "~" {
				return home
			}
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func matchHost(pattern, host string) bool {
	if pattern == "*" || pattern == host {
		return true
	}
	if len(pattern) > 2 && pattern[:2] == "*." {
		suffix := pattern[1:] // ".example.com"
		if len(host) > len(suffix) && host[len(host)-len(suffix):] == suffix {
			return true
		}
	}
	return false
}
