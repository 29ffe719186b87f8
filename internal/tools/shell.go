package tools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"time"
)

// Patterns that would kill the host process, wipe system roots or
// reboot the machine. Matching commands are refused without executing.
var denyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\brm\s+-[rf]{1,2}\s+/(\s|$)`),
	regexp.MustCompile(`\brm\s+-[rf]{1,2}\s+/(bin|boot|etc|lib|root|sbin|sys|usr|var)\b`),
	regexp.MustCompile(`\brm\s+.*--no-preserve-root`),
	regexp.MustCompile(`\bdel\s+/[fq]\b`),
	regexp.MustCompile(`\brmdir\s+/s\b`),
	regexp.MustCompile(`\b(mkfs|diskpart)\b|\bformat\s+[a-z]:`),
	regexp.MustCompile(`\bdd\s+if=.*of=/dev/`),
	regexp.MustCompile(`>\s*/dev/sd[a-z]\b`),
	regexp.MustCompile(`\b(shutdown|reboot|poweroff|halt)\b`),
	regexp.MustCompile(`\bstop-computer\b|\brestart-computer\b`),
	regexp.MustCompile(`:\(\)\s*\{.*\};\s*:`), // fork bomb
	regexp.MustCompile(`\bkill\s+-9\s+1\b`),
	regexp.MustCompile(`\b(killall|pkill)\b.*\b(liteclaw|go)\b`),
}

// complexity thresholds for the temp-script path on PowerShell hosts.
const (
	complexMinLength = 200
	complexMinQuotes = 6
)

// ShellTool runs commands with the platform interpreter.
type ShellTool struct {
	workDir string
	timeout time.Duration
}

func NewShellTool(workDir string, timeoutSec int) *ShellTool {
	if timeoutSec <= 0 {
		timeoutSec = 60
	}
	return &ShellTool{workDir: workDir, timeout: time.Duration(timeoutSec) * time.Second}
}

func (t *ShellTool) Name() string { return "execute_command" }
func (t *ShellTool) Description() string {
	return "Execute a shell command on the host and return its output. Use for file operations, scripts, and system tasks."
}

func (t *ShellTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"description": "The command to execute",
			},
		},
		"required": []string{"command"},
	}
}

func (t *ShellTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	command, _ := args["command"].(string)
	if strings.TrimSpace(command) == "" {
		return ErrorResult("command is required")
	}

	for _, pattern := range denyPatterns {
		if pattern.MatchString(strings.ToLower(command)) {
			return ErrorResult("Command refused: it could damage the host system. Not executed.")
		}
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd, cleanup, err := t.buildCommand(ctx, command)
	if err != nil {
		return ErrorResult(fmt.Sprintf("prepare command: %v", err))
	}
	if cleanup != nil {
		defer cleanup()
	}
	cmd.Dir = t.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	out := stdout.String()
	if stderr.Len() > 0 {
		if out != "" {
			out += "\n"
		}
		out += "STDERR:\n" + stderr.String()
	}

	if runErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return ErrorResult(fmt.Sprintf("command timed out after %s", t.timeout))
		}
		if out == "" {
			out = runErr.Error()
		}
		return ErrorResult(out)
	}
	if out == "" {
		out = "(command completed with no output)"
	}
	return SilentResult(out)
}

// buildCommand picks the platform interpreter. Complex commands on
// PowerShell hosts go through a temp script file; inline -Command
// mangles quoting on anything non-trivial.
func (t *ShellTool) buildCommand(ctx context.Context, command string) (*exec.Cmd, func(), error) {
	if runtime.GOOS != "windows" {
		return exec.CommandContext(ctx, "sh", "-c", command), nil, nil
	}

	if isComplexCommand(command) {
		f, err := os.CreateTemp("", "liteclaw_*.ps1")
		if err != nil {
			return nil, nil, err
		}
		if _, err := f.WriteString(command); err != nil {
			f.Close()
			os.Remove(f.Name())
			return nil, nil, err
		}
		f.Close()
		cleanup := func() { os.Remove(f.Name()) }
		return exec.CommandContext(ctx, "powershell", "-NoProfile", "-ExecutionPolicy", "Bypass", "-File", f.Name()), cleanup, nil
	}

	return exec.CommandContext(ctx, "powershell", "-NoProfile", "-Command", command), nil, nil
}

// isComplexCommand flags commands likely to break inline quoting:
// long bodies, many quotes, hashtable/object constructors, web calls.
func isComplexCommand(command string) bool {
	if len(command) > complexMinLength {
		return true
	}
	if strings.Count(command, `"`)+strings.Count(command, "'") >= complexMinQuotes {
		return true
	}
	lower := strings.ToLower(command)
	for _, marker := range []string{"@{", "[pscustomobject]", "invoke-webrequest", "invoke-restmethod", "convertto-json", "convertfrom-json"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return strings.Contains(command, "\n")
}
