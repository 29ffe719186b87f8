package tools

import (
	"context"
	"runtime"
	"strings"
	"testing"
)

func TestShellTool_DenyList(t *testing.T) {
	tool := NewShellTool(t.TempDir(), 5)

	denied := []string{
		"rm -rf /",
		"sudo rm -rf / --no-preserve-root",
		"rm -rf /etc",
		"del /f C:\\Windows\\System32",
		"mkfs.ext4 /dev/sda1",
		"dd if=/dev/zero of=/dev/sda",
		"echo junk > /dev/sda",
		"shutdown -h now",
		"reboot",
		"Stop-Computer -Force",
		":(){ :|:& };:",
		"kill -9 1",
		"pkill -f liteclaw",
	}
	for _, cmd := range denied {
		t.Run(cmd, func(t *testing.T) {
			res := tool.Execute(context.Background(), map[string]interface{}{"command": cmd})
			if !res.IsError || !strings.Contains(res.ForLLM, "refused") {
				t.Errorf("command %q not refused: %+v", cmd, res)
			}
		})
	}
}

func TestShellTool_SafeCommandsPassDenyList(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("sh not available")
	}
	tool := NewShellTool(t.TempDir(), 5)

	// Commands that mention scary words in safe positions must run.
	for _, cmd := range []string{
		"echo removing old entries",
		"rm -rf ./build",
		"grep -r 'format' notes.txt",
	} {
		res := tool.Execute(context.Background(), map[string]interface{}{"command": cmd})
		if res.IsError && strings.Contains(res.ForLLM, "refused") {
			t.Errorf("safe command %q was refused", cmd)
		}
	}
}

func TestShellTool_CapturesOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("sh not available")
	}
	tool := NewShellTool(t.TempDir(), 5)

	res := tool.Execute(context.Background(), map[string]interface{}{"command": "echo hello world"})
	if res.IsError {
		t.Fatalf("Execute errored: %s", res.ForLLM)
	}
	if !strings.Contains(res.ForLLM, "hello world") {
		t.Errorf("output = %q", res.ForLLM)
	}
	if !res.Silent {
		t.Error("shell output not silent")
	}
}

func TestShellTool_StderrAppended(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("sh not available")
	}
	tool := NewShellTool(t.TempDir(), 5)

	res := tool.Execute(context.Background(), map[string]interface{}{"command": "echo out; echo err 1>&2"})
	if !strings.Contains(res.ForLLM, "out") || !strings.Contains(res.ForLLM, "STDERR:\nerr") {
		t.Errorf("output = %q", res.ForLLM)
	}
}

func TestShellTool_EmptyOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("sh not available")
	}
	tool := NewShellTool(t.TempDir(), 5)

	res := tool.Execute(context.Background(), map[string]interface{}{"command": "true"})
	if res.ForLLM != "(command completed with no output)" {
		t.Errorf("output = %q", res.ForLLM)
	}
}

func TestShellTool_NonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("sh not available")
	}
	tool := NewShellTool(t.TempDir(), 5)

	res := tool.Execute(context.Background(), map[string]interface{}{"command": "exit 3"})
	if !res.IsError {
		t.Errorf("non-zero exit not an error: %+v", res)
	}
}

func TestShellTool_Timeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("sh not available")
	}
	tool := NewShellTool(t.TempDir(), 1)

	res := tool.Execute(context.Background(), map[string]interface{}{"command": "sleep 5"})
	if !res.IsError || !strings.Contains(res.ForLLM, "timed out") {
		t.Errorf("result = %+v", res)
	}
}

func TestShellTool_MissingCommand(t *testing.T) {
	tool := NewShellTool(t.TempDir(), 5)
	res := tool.Execute(context.Background(), map[string]interface{}{"command": "   "})
	if !res.IsError {
		t.Errorf("blank command accepted: %+v", res)
	}
}

func TestShellTool_RunsInWorkDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	tool := NewShellTool(dir, 5)

	res := tool.Execute(context.Background(), map[string]interface{}{"command": "pwd"})
	if !strings.Contains(res.ForLLM, dir) {
		t.Errorf("pwd = %q, want under %q", res.ForLLM, dir)
	}
}

func TestIsComplexCommand(t *testing.T) {
	tests := []struct {
		name string
		cmd  string
		want bool
	}{
		{"short simple", "Get-Date", false},
		{"long body", strings.Repeat("a", complexMinLength+1), true},
		{"many quotes", `echo "a" "b" "c"`, true},
		{"hashtable", `$h = @{Name = 1}`, true},
		{"pscustomobject", `[PSCustomObject]@{}`, true},
		{"web request", `Invoke-WebRequest http://x`, true},
		{"json conversion", `$x | ConvertTo-Json`, true},
		{"multiline", "line1\nline2", true},
		{"few quotes", `echo "one" two`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isComplexCommand(tt.cmd); got != tt.want {
				t.Errorf("isComplexCommand(%q) = %v, want %v", tt.cmd, got, tt.want)
			}
		})
	}
}
