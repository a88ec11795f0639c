package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/redactyl/promptscan/internal/types"
)

func TestLoadSave(t *testing.T) {
	dir := t.TempDir()
	// initial load should return empty DB and error
	db, err := Load(dir, "r1")
	if err == nil {
		t.Fatalf("expected error for missing cache")
	}
	if db.Entries == nil {
		t.Fatalf("expected entries map initialized")
	}
	content := []byte("api_key = 'abcdefghijklmnop'\n")
	db.Entries["a.txt"] = Entry{Hash: Hash(content), Findings: []types.Finding{{Category: types.CategoryAPIKey, Line: 1}}}
	if err := Save(dir, db); err != nil {
		t.Fatalf("save: %v", err)
	}
	// file should exist
	if _, err := os.Stat(filepath.Join(dir, FileName)); err != nil {
		t.Fatalf("cache file not written: %v", err)
	}
	// load again and verify
	db2, err := Load(dir, "r1")
	if err != nil {
		t.Fatalf("load after save: %v", err)
	}
	got, ok := db2.Lookup("a.txt", content)
	if !ok || len(got) != 1 || got[0].Category != types.CategoryAPIKey {
		t.Fatalf("unexpected lookup: %v %+v", ok, got)
	}
	if _, ok := db2.Lookup("a.txt", []byte("changed")); ok {
		t.Fatalf("expected miss after content change")
	}
	if _, ok := db2.Lookup("b.txt", content); ok {
		t.Fatalf("expected miss for unknown path")
	}
}

func TestLoad_RulesMismatch(t *testing.T) {
	dir := t.TempDir()
	db := DB{Rules: "old", Entries: map[string]Entry{"a.txt": {Hash: "1"}}}
	if err := Save(dir, db); err != nil {
		t.Fatal(err)
	}
	got, err := Load(dir, "new")
	if err == nil {
		t.Fatalf("expected rules mismatch error")
	}
	if len(got.Entries) != 0 || got.Rules != "new" {
		t.Fatalf("expected fresh cache, got %+v", got)
	}
}

func TestSave_PrefersGitDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := Save(dir, DB{Entries: map[string]Entry{}}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".git", "promptscancache.json")); err != nil {
		t.Fatalf("expected cache under .git: %v", err)
	}
}

func TestSave_RejectsNilEntries(t *testing.T) {
	if err := Save(t.TempDir(), DB{}); err == nil {
		t.Fatal("expected error")
	}
}
