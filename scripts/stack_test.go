package scripts

import (
	"bytes"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestStackScriptDryRun(t *testing.T) {
	scriptPath := stackScriptPath(t)

	cases := []struct {
		name     string
		command  string
		expected []string
	}{
		{
			name:    "up",
			command: "up",
			expected: []string{
				"[dry-run] docker compose",
				"[dry-run] cd",
				"[dry-run] nohup env",
				"stack is up",
			},
		},
		{
			name:    "down",
			command: "down",
			expected: []string{
				"[dry-run] cd",
				"[dry-run] docker compose",
				"stack is down",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := exec.Command("bash", scriptPath, tc.command, "--dry-run")
			var stdout, stderr bytes.Buffer
			cmd.Stdout = &stdout
			cmd.Stderr = &stderr
			if err := cmd.Run(); err != nil {
				t.Fatalf("stack %s dry-run failed: %v\nstdout:\n%s\nstderr:\n%s", tc.command, err, stdout.String(), stderr.String())
			}
			out := stdout.String()
			for _, token := range tc.expected {
				if !strings.Contains(out, token) {
					t.Fatalf("output missing %q\noutput:\n%s", token, out)
				}
			}
		})
	}
}

func TestStackScriptUnknownCommand(t *testing.T) {
	scriptPath := stackScriptPath(t)

	cmd := exec.Command("bash", scriptPath, "not-a-command")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err == nil {
		t.Fatal("expected non-zero exit for unknown command")
	}
	if !strings.Contains(stderr.String(), "unknown command") {
		t.Fatalf("stderr missing unknown command message:\n%s", stderr.String())
	}
}

func stackScriptPath(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Join(filepath.Dir(thisFile), "stack.sh")
}
