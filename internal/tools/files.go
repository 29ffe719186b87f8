package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const fileMaxBytes = 256 << 10 // read cap per file

// FilesTool reads, writes and lists files inside the agent workspace.
// Paths are workspace-relative; anything that resolves outside the
// workspace is rejected.
type FilesTool struct {
	workspace string
}

func NewFilesTool(workspace string) *FilesTool {
	return &FilesTool{workspace: workspace}
}

func (t *FilesTool) Name() string { return "workspace_files" }
func (t *FilesTool) Description() string {
	return "Read, write, append or list files in the agent workspace. Paths are relative to the workspace root."
}

func (t *FilesTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action": map[string]interface{}{
				"type": "string",
				"enum": []string{"read", "write", "append", "list"},
			},
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Workspace-relative file or directory path",
			},
			"content": map[string]interface{}{
				"type":        "string",
				"description": "Content to write or append",
			},
		},
		"required": []string{"action"},
	}
}

func (t *FilesTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	action, _ := args["action"].(string)
	path, _ := args["path"].(string)

	switch action {
	case "read":
		return t.read(path)
	case "write":
		content, _ := args["content"].(string)
		return t.write(path, content, false)
	case "append":
		content, _ := args["content"].(string)
		return t.write(path, content, true)
	case "list":
		return t.list(path)
	default:
		return ErrorResult(fmt.Sprintf("unknown action %q, use read, write, append or list", action))
	}
}

func (t *FilesTool) read(path string) *Result {
	full, err := t.resolve(path)
	if err != nil {
		return ErrorResult(err.Error())
	}
	info, err := os.Stat(full)
	if err != nil {
		return ErrorResult(fmt.Sprintf("read %s: %v", path, err))
	}
	if info.IsDir() {
		return ErrorResult(fmt.Sprintf("%s is a directory, use list", path))
	}
	if info.Size() > fileMaxBytes {
		return ErrorResult(fmt.Sprintf("%s is %d bytes, over the %d byte read limit", path, info.Size(), fileMaxBytes))
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return ErrorResult(fmt.Sprintf("read %s: %v", path, err))
	}
	return SilentResult(string(data))
}

func (t *FilesTool) write(path, content string, appendTo bool) *Result {
	full, err := t.resolve(path)
	if err != nil {
		return ErrorResult(err.Error())
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return ErrorResult(fmt.Sprintf("create parent dir: %v", err))
	}

	if appendTo {
		f, err := os.OpenFile(full, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return ErrorResult(fmt.Sprintf("append %s: %v", path, err))
		}
		defer f.Close()
		if _, err := f.WriteString(content); err != nil {
			return ErrorResult(fmt.Sprintf("append %s: %v", path, err))
		}
		return SilentResult(fmt.Sprintf("Appended %d bytes to %s.", len(content), path))
	}

	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return ErrorResult(fmt.Sprintf("write %s: %v", path, err))
	}
	return SilentResult(fmt.Sprintf("Wrote %d bytes to %s.", len(content), path))
}

func (t *FilesTool) list(path string) *Result {
	full, err := t.resolve(path)
	if err != nil {
		return ErrorResult(err.Error())
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return ErrorResult(fmt.Sprintf("list %s: %v", path, err))
	}
	if len(entries) == 0 {
		return SilentResult("(empty directory)")
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return SilentResult(strings.Join(names, "\n"))
}

// resolve joins a workspace-relative path and rejects escapes,
// following symlinks so a link cannot point outside the workspace.
func (t *FilesTool) resolve(path string) (string, error) {
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("absolute paths are not allowed, use workspace-relative paths")
	}
	root, err := filepath.Abs(t.workspace)
	if err != nil {
		return "", err
	}
	if real, err := filepath.EvalSymlinks(root); err == nil {
		root = real
	}

	full := filepath.Join(root, filepath.Clean("/"+path))
	if !strings.HasPrefix(full, root+string(filepath.Separator)) && full != root {
		return "", fmt.Errorf("access denied: path escapes the workspace")
	}

	// The file may not exist yet; canonicalize through the deepest
	// existing ancestor to catch symlink escapes.
	cursor := full
	var tail []string
	for {
		if real, err := filepath.EvalSymlinks(cursor); err == nil {
			resolved := filepath.Join(append([]string{real}, tail...)...)
			if !strings.HasPrefix(resolved, root+string(filepath.Separator)) && resolved != root {
				return "", fmt.Errorf("access denied: path escapes the workspace")
			}
			return resolved, nil
		}
		parent := filepath.Dir(cursor)
		if parent == cursor {
			return full, nil
		}
		tail = append([]string{filepath.Base(cursor)}, tail...)
		cursor = parent
	}
}
