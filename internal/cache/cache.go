// Package cache persists per-file scan results keyed by content hash, so
// unchanged files are not rescanned.
package cache

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/redactyl/promptscan/internal/types"
)

// FileName is the cache file written under the scan root (or its .git dir).
const FileName = ".promptscancache.json"

// Entry is the cached state of one file.
type Entry struct {
	Hash     string          `json:"hash"`
	Findings []types.Finding `json:"findings,omitempty"`
}

type DB struct {
	// Rules fingerprints the pattern table; a mismatch invalidates all entries.
	Rules string `json:"rules"`
	// Path relative to scan root -> entry
	Entries map[string]Entry `json:"entries"`
}

// Hash returns the content hash stored in entries.
func Hash(b []byte) string {
	return strconv.FormatUint(xxhash.Sum64(b), 16)
}

// Lookup returns cached findings for rel when its content hash is unchanged.
func (db DB) Lookup(rel string, content []byte) ([]types.Finding, bool) {
	e, ok := db.Entries[rel]
	if !ok || e.Hash != Hash(content) {
		return nil, false
	}
	return e.Findings, true
}

func defaultPath(root string) string {
	// Prefer storing cache under .git to avoid accidental commits
	gitDir := filepath.Join(root, ".git")
	if st, err := os.Stat(gitDir); err == nil && st.IsDir() {
		return filepath.Join(gitDir, "promptscancache.json")
	}
	return filepath.Join(root, FileName)
}

// Load reads the cache for root. It always returns a usable DB; the error
// reports why it is empty.
func Load(root, rules string) (DB, error) {
	empty := DB{Rules: rules, Entries: map[string]Entry{}}
	f, err := os.ReadFile(defaultPath(root))
	if err != nil {
		return empty, err
	}
	var db DB
	if err := json.Unmarshal(f, &db); err != nil {
		return empty, err
	}
	if db.Rules != rules {
		return empty, errors.New("cache built with different rules")
	}
	if db.Entries == nil {
		db.Entries = map[string]Entry{}
	}
	return db, nil
}

func Save(root string, db DB) error {
	if db.Entries == nil {
		return errors.New("empty cache")
	}
	b, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(defaultPath(root), b, 0o644)
}
