package main

import (
	"bytes"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("riot %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestBoards(t *testing.T) {
	out := execute(t, "boards", "--tag", "native")
	if !strings.Contains(out, "native-nothreads") || strings.Contains(out, "samr21-xpro") {
		t.Errorf("unexpected board list:\n%s", out)
	}
}

func TestApps(t *testing.T) {
	out := execute(t, "apps")
	for _, name := range []string{"hello", "exitcode", "threads"} {
		if !strings.Contains(out, name) {
			t.Errorf("%s missing from:\n%s", name, out)
		}
	}
}

func TestVersion(t *testing.T) {
	if out := execute(t, "version"); !strings.HasPrefix(out, "riot "+Version) {
		t.Errorf("unexpected version line %q", out)
	}
}

func TestBootRetval(t *testing.T) {
	t.Setenv("BOARD", "native")
	execute(t, "boot", "exitcode", "--stdio", "null", "--args", "5", "--timeout", "5s")
	if retval != 5 {
		t.Errorf("expected retval 5, got %d", retval)
	}
}

func TestBootUnknownApp(t *testing.T) {
	rootCmd.SetArgs([]string{"boot", "nope", "--args", ""})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	if err := rootCmd.Execute(); err == nil || !strings.Contains(err.Error(), "unknown application") {
		t.Errorf("expected unknown application error, got %v", err)
	}
}
