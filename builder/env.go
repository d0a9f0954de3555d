package builder

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const (
	DefaultBoard   = "native"
	DefaultVersion = "2024.10-devel"
)

type Env map[string]string

func Environment() Env {
	root := ""
	if exe, err := os.Executable(); err == nil {
		// The default root is one directory up from the executable
		root, _ = filepath.Abs(filepath.Dir(exe) + "/..")
	}
	if root == "" {
		root, _ = os.Getwd()
	}

	return map[string]string{
		"RIOTBASE":       getenv("RIOTBASE", root),
		"BOARD":          getenv("BOARD", DefaultBoard),
		"RIOT_VERSION":   getenv("RIOT_VERSION", DefaultVersion),
		"APPLICATION":    getenv("APPLICATION", ""),
		"RIOT_TERMFLAGS": getenv("RIOT_TERMFLAGS", ""),
	}
}

// Print writes the environment sorted by key.
func (e Env) Print(w io.Writer) {
	for _, line := range e.List() {
		fmt.Fprintln(w, line)
	}
}

func (e Env) Value(key string) string {
	if v, ok := e[key]; ok {
		return v
	}
	return ""
}

func (e Env) List() []string {
	keys := maps.Keys(e)
	slices.Sort(keys)
	result := make([]string, 0, len(keys))
	for _, key := range keys {
		result = append(result, fmt.Sprintf("%s=%s", key, e[key]))
	}
	return result
}

func getenv(key, _default string) (value string) {
	value = os.Getenv(key)
	if len(value) == 0 {
		value = _default
	}
	return value
}
