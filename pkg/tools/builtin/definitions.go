package builtin

import "github.com/vtcode/vtcode/pkg/tools"

// UnifiedExecDefinition is the narrow, model-visible schema for unified_exec,
// per §4.F. Internal executors stay fine-grained and addressable by name;
// only this one verb is exposed to the model.
func UnifiedExecDefinition() tools.Definition {
	return tools.Definition{
		Name:        "unified_exec",
		Description: "Run and manage interactive PTY sessions or sandboxed code snippets. Actions: run, write, poll, list, close, code.",
		Parameters: tools.ObjectSchema(map[string]tools.Property{
			"action":        tools.StringEnumProperty("Action to perform", "run", "write", "poll", "list", "close", "code"),
			"command":       tools.ArrayProperty("Command vector for action=run", tools.StringProperty("argv element")),
			"session_id":    tools.StringProperty("Target session for write/poll/close"),
			"input":         tools.StringProperty("Bytes to send for action=write"),
			"working_dir":   tools.StringProperty("Working directory, relative to the workspace root"),
			"confirm":       tools.BoolProperty("Override the interactive-command safety check"),
			"code":          tools.StringProperty("Source snippet for action=code"),
			"language":      tools.StringEnumProperty("Interpreter for action=code", "python3", "javascript"),
			"track_changes": tools.BoolProperty("Report files changed under working_dir during execution"),
			"yield_ms":      tools.IntProperty("Milliseconds to wait before returning a partial poll result"),
		}),
	}
}

// UnifiedFileDefinition is the narrow, model-visible schema for unified_file.
func UnifiedFileDefinition() tools.Definition {
	return tools.Definition{
		Name:        "unified_file",
		Description: "Read, write, edit, patch, delete, move, or copy files. Actions: read, write, edit, patch, delete, move, copy.",
		Parameters: tools.ObjectSchema(map[string]tools.Property{
			"action":          tools.StringEnumProperty("Action to perform", "read", "write", "edit", "patch", "delete", "move", "copy"),
			"path":            tools.StringProperty("Target file path"),
			"content":         tools.StringProperty("Content for action=write"),
			"old_text":        tools.StringProperty("Text to replace for action=edit"),
			"new_text":        tools.StringProperty("Replacement text for action=edit"),
			"replace_all":     tools.BoolProperty("Replace every occurrence for action=edit"),
			"patch":           tools.StringProperty("Unified diff for action=patch; may be base64: prefixed"),
			"strip":           tools.IntProperty("Path components to strip when applying a patch"),
			"destination":     tools.StringProperty("Destination path for action=move or action=copy"),
			"offset":          tools.IntProperty("1-indexed starting line for Slice mode reads"),
			"limit":           tools.IntProperty("Maximum lines to return for Slice mode reads"),
			"anchor_line":     tools.IntProperty("Anchor line for Indentation mode reads"),
			"max_levels":      tools.IntProperty("Indentation levels of slack for Indentation mode (0 = unlimited)"),
			"include_siblings": tools.BoolProperty("Include sibling statements at the anchor's indent level"),
			"include_header":  tools.BoolProperty("Include a leading comment header above the anchor"),
			"reads":           tools.ArrayProperty("Batch of per-file read requests", tools.Property{Type: "object", Description: "read request object with a path and the per-file read options"}),
		}),
	}
}

// UnifiedSearchDefinition is the narrow, model-visible schema for
// unified_search.
func UnifiedSearchDefinition() tools.Definition {
	return tools.Definition{
		Name:        "unified_search",
		Description: "Search the codebase, list directories, query code intelligence, discover tools, extract session errors, fetch web content, or manage skills. Actions: grep, list, intelligence, tools, errors, agent, web, skill.",
		Parameters: tools.ObjectSchema(map[string]tools.Property{
			"action":         tools.StringEnumProperty("Action to perform", "grep", "list", "intelligence", "tools", "errors", "agent", "web", "skill"),
			"query":          tools.StringProperty("Search query for grep/intelligence"),
			"path":           tools.StringProperty("Directory to search or list"),
			"case_sensitive": tools.BoolProperty("Case-sensitive grep (default true)"),
			"symbol":         tools.StringProperty("Symbol name filter for action=intelligence"),
			"limit":          tools.IntProperty("Maximum records to return"),
			"session_id":     tools.StringProperty("Session identifier for action=errors"),
			"url":            tools.StringProperty("URL to fetch for action=web"),
			"format":         tools.StringEnumProperty("Fetch format for action=web", "raw", "markdown"),
			"op":             tools.StringEnumProperty("Skill operation for action=skill", "save", "load", "list"),
			"name":           tools.StringProperty("Skill name for action=skill"),
			"content":        tools.StringProperty("Skill content for action=skill op=save"),
		}),
	}
}

// RegisterUnifiedVerbs registers the three unified verbs into reg. This is
// the only surface the model sees, per §4.F and Design Notes.
func RegisterUnifiedVerbs(reg *tools.Registry) error {
	for _, def := range []tools.Definition{UnifiedExecDefinition(), UnifiedFileDefinition(), UnifiedSearchDefinition()} {
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}
