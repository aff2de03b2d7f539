package cli

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// complete runs cobra's hidden completion command and returns the offered
// values, without the trailing directive line.
func complete(t *testing.T, args ...string) []string {
	t.Helper()
	root := New(io.Discard, LogInfo).RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{cobra.ShellCompRequestCmd}, args...))
	if err := root.Execute(); err != nil {
		t.Fatalf("complete %v: %v", args, err)
	}
	var values []string
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		values = append(values, strings.SplitN(line, "\t", 2)[0])
	}
	return values
}

func TestFlagCompletions(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"dialect", []string{"sql", "model.json", "--dialect", ""}, "mysql,postgres"},
		{"difficulty", []string{"scenario", "-d", ""}, "basic,intermediate,advanced"},
		{"export format", []string{"export", "model.json", "-f", "p"}, "png,pdf"},
		{"export format list", []string{"export", "model.json", "-f", "svg,d"}, "svg,dot"},
		{"dictionary format", []string{"dictionary", "model.json", "-f", ""}, "table,csv,md"},
		{"model file", []string{"evaluate", ""}, "json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := strings.Join(complete(t, tt.args...), ","); got != tt.want {
				t.Errorf("completions = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompletionScript(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			root := New(io.Discard, LogInfo).RootCommand()
			var out bytes.Buffer
			root.SetOut(&out)
			root.SetArgs([]string{"completion", shell})
			if err := root.Execute(); err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(out.String(), "ercanvas") {
				t.Errorf("%s script does not mention ercanvas", shell)
			}
		})
	}
}
