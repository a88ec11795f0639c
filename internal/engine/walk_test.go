package engine

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/redactyl/promptscan/internal/ignore"
)

func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func walkPaths(t *testing.T, cfg Config) []string {
	t.Helper()
	ign, _ := ignore.Load(filepath.Join(cfg.Root, ignore.FileName))
	var got []string
	if err := Walk(context.Background(), cfg, ign, func(p string, _ []byte) { got = append(got, p) }); err != nil {
		t.Fatal(err)
	}
	sort.Strings(got)
	return got
}

func TestWalk_WithIncludeExcludeGlobs(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.txt": "hello", "b.go": "package main\n", "c.md": "doc"})

	got := walkPaths(t, Config{Root: dir, IncludeGlobs: "**/*.go", MaxBytes: 1 << 20})
	if len(got) != 1 || got[0] != "b.go" {
		t.Fatalf("include globs failed, got %v", got)
	}

	got = walkPaths(t, Config{Root: dir, ExcludeGlobs: "**/*.md", MaxBytes: 1 << 20})
	for _, p := range got {
		if p == "c.md" {
			t.Fatalf("exclude globs failed, saw %s", p)
		}
	}
}

func TestWalk_SkipsBinaryIgnoredAndDirective(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"keep.txt":              "ok",
		"bin.dat":               "abc\x00def",
		"image.png":             "\x89PNG\r\n\x1a\nxxxx",
		"skip/me.txt":           "ignored by file",
		"inline.txt":            "# promptscan:ignore-file\nsecret",
		"node_modules/x/a.js":   "dep",
		ignore.FileName:         "skip/\n",
		"nested/deeper/doc.txt": "text",
	})

	got := walkPaths(t, Config{Root: dir, DefaultExcludes: true, MaxBytes: 1 << 20})
	want := []string{"keep.txt", "nested/deeper/doc.txt"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestCountTargets_MaxBytesAndIgnore(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"a.txt":         "ok",
		"ignored.txt":   "secret",
		ignore.FileName: "ignored.txt\n",
	})
	if err := os.WriteFile(filepath.Join(dir, "big.txt"), make([]byte, 2048), 0o644); err != nil {
		t.Fatal(err)
	}

	n, err := CountTargets(Config{Root: dir, MaxBytes: 1024})
	if err != nil {
		t.Fatal(err)
	}
	// a.txt and the ignore file itself (default excludes off).
	if n != 2 {
		t.Fatalf("expected 2 targets, got %d", n)
	}

	n, err = CountTargets(Config{Root: dir, MaxBytes: 1024, DefaultExcludes: true})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 target with default excludes, got %d", n)
	}
}

func TestWalk_ExplicitPaths(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"one/a.txt": "a", "two/b.txt": "b", "c.min.js": "c"})

	cfg := Config{
		Root:            dir,
		Paths:           []string{filepath.Join(dir, "two"), filepath.Join(dir, "c.min.js")},
		DefaultExcludes: true,
	}
	got := walkPaths(t, cfg)
	// explicit files bypass default excludes
	if len(got) != 2 || got[0] != "c.min.js" || got[1] != "two/b.txt" {
		t.Fatalf("unexpected paths: %v", got)
	}
}

func TestWalk_MissingPath(t *testing.T) {
	cfg := Config{Root: t.TempDir(), Paths: []string{"/definitely/not/here"}}
	err := Walk(context.Background(), cfg, ignore.Matcher{}, func(string, []byte) {})
	if err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestLooksNonTextMIME(t *testing.T) {
	if !looksNonTextMIME("a.zip", nil) {
		t.Fatal("zip extension should be non-text")
	}
	if !looksNonTextMIME("noext", []byte("PK\x03\x04rest")) {
		t.Fatal("zip header should be non-text")
	}
	if looksNonTextMIME("notes.txt", []byte("PKG list")) {
		t.Fatal("plain text starting with PK should be text")
	}
}
