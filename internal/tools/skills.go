package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const skillMaxBytes = 1 << 20 // 1 MiB per skill file

// SkillsTool manages markdown skill files in the workspace skills
// directory: list them, read one, or download one from a URL.
type SkillsTool struct {
	dir    string
	client *http.Client
}

func NewSkillsTool(workDir string) *SkillsTool {
	return &SkillsTool{
		dir:    filepath.Join(workDir, "skills"),
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *SkillsTool) Name() string { return "manage_skills" }
func (t *SkillsTool) Description() string {
	return "List, read, or download markdown skill files. Skills are how-to documents you can consult for tasks."
}

func (t *SkillsTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action": map[string]interface{}{
				"type": "string",
				"enum": []string{"list", "read", "download"},
			},
			"name": map[string]interface{}{
				"type":        "string",
				"description": "Skill file name, e.g. \"email-drafting.md\" (for read and download)",
			},
			"url": map[string]interface{}{
				"type":        "string",
				"description": "Where to download the skill from (for download)",
			},
		},
		"required": []string{"action"},
	}
}

func (t *SkillsTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	action, _ := args["action"].(string)
	switch action {
	case "list":
		return t.list()
	case "read":
		name, _ := args["name"].(string)
		return t.read(name)
	case "download":
		name, _ := args["name"].(string)
		rawURL, _ := args["url"].(string)
		return t.download(ctx, name, rawURL)
	default:
		return ErrorResult(fmt.Sprintf("unknown action %q, use list, read or download", action))
	}
}

func (t *SkillsTool) list() *Result {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return SilentResult("No skills installed yet.")
		}
		return ErrorResult(fmt.Sprintf("list skills: %v", err))
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return SilentResult("No skills installed yet.")
	}
	sort.Strings(names)
	return SilentResult("Installed skills:\n- " + strings.Join(names, "\n- "))
}

func (t *SkillsTool) read(name string) *Result {
	path, err := t.skillPath(name)
	if err != nil {
		return ErrorResult(err.Error())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrorResult(fmt.Sprintf("no skill named %q", name))
		}
		return ErrorResult(fmt.Sprintf("read skill: %v", err))
	}
	return SilentResult(string(data))
}

func (t *SkillsTool) download(ctx context.Context, name, rawURL string) *Result {
	if rawURL == "" {
		return ErrorResult("url is required to download a skill")
	}
	if name == "" {
		name = filepath.Base(rawURL)
	}
	path, err := t.skillPath(name)
	if err != nil {
		return ErrorResult(err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return ErrorResult(fmt.Sprintf("create request: %v", err))
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return ErrorResult(fmt.Sprintf("download failed: %v", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ErrorResult(fmt.Sprintf("download failed: HTTP %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, skillMaxBytes))
	if err != nil {
		return ErrorResult(fmt.Sprintf("read download: %v", err))
	}

	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return ErrorResult(fmt.Sprintf("create skills dir: %v", err))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ErrorResult(fmt.Sprintf("save skill: %v", err))
	}
	return SilentResult(fmt.Sprintf("Skill %s installed (%d bytes).", filepath.Base(path), len(data)))
}

// skillPath validates the name and confines it to the skills dir.
func (t *SkillsTool) skillPath(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("skill name is required")
	}
	name = filepath.Base(name)
	if !strings.HasSuffix(name, ".md") {
		name += ".md"
	}
	return filepath.Join(t.dir, name), nil
}
