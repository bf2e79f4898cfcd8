package syncer

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPatterns_Match(t *testing.T) {
	tests := []struct {
		name string
		pat  Patterns
		rel  string
		want bool
	}{
		{"empty includes everything", Patterns{}, "a/b.txt", true},
		{"include by extension", Patterns{Include: []string{"*.py"}}, "src/main.py", true},
		{"include miss", Patterns{Include: []string{"*.py"}}, "src/main.go", false},
		{"exclude wins", Patterns{Include: []string{"*.py"}, Exclude: []string{"test_*"}}, "test_main.py", false},
		{"exclude by path", Patterns{Exclude: []string{".git/*"}}, ".git/config", false},
		{"full path include", Patterns{Include: []string{"data/*.csv"}}, "data/rows.csv", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pat.Match(tt.rel); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.rel, got, tt.want)
			}
		})
	}
}

func TestLocalEntries(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "alpha")
	writeFile(t, root, "sub/b.txt", "beta")
	writeFile(t, root, "skip.log", "noise")

	entries, err := LocalEntries(root, Patterns{Exclude: []string{"*.log"}})
	if err != nil {
		t.Fatalf("LocalEntries() error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %v", len(entries), entries)
	}

	byPath := make(map[string]Entry)
	for _, e := range entries {
		byPath[e.RelPath] = e
	}
	a, ok := byPath["a.txt"]
	if !ok {
		t.Fatal("missing entry for a.txt")
	}
	if a.Size != int64(len("alpha")) {
		t.Errorf("unexpected size %d", a.Size)
	}
	if a.Hash != HashBytes([]byte("alpha")) {
		t.Errorf("file hash does not match HashBytes")
	}
	if _, ok := byPath["sub/b.txt"]; !ok {
		t.Error("nested file missing; relative paths must use slashes")
	}
}

func TestHashBytes_Distinguishes(t *testing.T) {
	if HashBytes([]byte("a")) == HashBytes([]byte("b")) {
		t.Error("distinct contents hashed equal")
	}
	if HashBytes([]byte("a")) != HashBytes([]byte("a")) {
		t.Error("identical contents hashed differently")
	}
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}
