// Package dotfile implements the Guardian port the Safety Gateway
// consults during evaluation. Unlike a content-based secrets analyzer
// (out of scope — see DESIGN.md), this is a lean path-based check: it
// classifies a write target purely from its location, never its contents.
package dotfile

import (
	"path/filepath"
	"strings"
)

// Verdict is the guardian's classification of a write attempt.
type Verdict int

const (
	Allowed Verdict = iota
	RequiresConfirmation
	RequiresSecondaryAuth
	Blocked
	Denied
)

func (v Verdict) String() string {
	switch v {
	case Allowed:
		return "allowed"
	case RequiresConfirmation:
		return "requires_confirmation"
	case RequiresSecondaryAuth:
		return "requires_secondary_auth"
	case Blocked:
		return "blocked"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// Guardian is injected into the Safety Gateway rather than used as a
// package-level singleton, per the Design Notes' stated preference for
// testable ports over globals.
type Guardian interface {
	Classify(path string) Verdict
}

// PathGuardian is the default Guardian implementation: a small table of
// dotfile/dotdirectory name patterns, each mapped to a verdict.
type PathGuardian struct {
	// secondaryAuth names dotfiles that hold live credentials: writes
	// always require secondary authentication, no override.
	secondaryAuth []string
	// blocked names dotfiles vtcode must never write to at all.
	blocked []string
	// confirm names dotfiles that are editable but always prompt once.
	confirm []string
}

// NewPathGuardian returns the default dotfile classification table.
func NewPathGuardian() *PathGuardian {
	return &PathGuardian{
		secondaryAuth: []string{
			".ssh/id_rsa", ".ssh/id_ed25519", ".ssh/id_ecdsa",
			".aws/credentials", ".gnupg",
			".netrc", ".npmrc", ".pypirc",
		},
		blocked: []string{
			".git/hooks",
		},
		confirm: []string{
			".bashrc", ".zshrc", ".profile", ".bash_profile",
			".gitconfig", ".vtcode", ".env",
		},
	}
}

// Classify returns the verdict for a write attempt at path. Non-dotfile
// paths (anything not starting with "." somewhere in its final component,
// and not inside a dot-directory) are Allowed: this guardian only governs
// dotfile/dotdirectory targets.
func (g *PathGuardian) Classify(path string) Verdict {
	rel := normalize(path)
	if !isDotPath(rel) {
		return Allowed
	}

	for _, pattern := range g.secondaryAuth {
		if matches(rel, pattern) {
			return RequiresSecondaryAuth
		}
	}
	for _, pattern := range g.blocked {
		if matches(rel, pattern) {
			return Blocked
		}
	}
	for _, pattern := range g.confirm {
		if matches(rel, pattern) {
			return RequiresConfirmation
		}
	}

	// An unrecognized dotfile still gets a confirmation prompt: it is
	// hidden configuration by convention, even if vtcode doesn't know it.
	return RequiresConfirmation
}

// DenialMessage renders the fixed-format message the Safety Gateway
// returns for step-2 denials, so tests can assert on its exact text.
func DenialMessage(path string) string {
	return "DOTFILE MODIFICATION BLOCKED: refusing to write to " + path
}

func normalize(path string) string {
	path = filepath.ToSlash(path)
	path = strings.TrimPrefix(path, "./")
	return path
}

func isDotPath(path string) bool {
	for _, part := range strings.Split(path, "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}

func matches(path, pattern string) bool {
	if path == pattern {
		return true
	}
	return strings.HasSuffix(path, "/"+pattern) || strings.HasPrefix(path, pattern+"/")
}
