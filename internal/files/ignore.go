// Package files holds small helpers for files promptscan writes into a
// repository.
package files

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/redactyl/promptscan/internal/audit"
	"github.com/redactyl/promptscan/internal/cache"
)

// AppendIgnore ensures the given pattern is present in .gitignore at repoRoot.
// It creates the file if missing and adds a separating newline if the file
// does not end with one. Idempotent.
func AppendIgnore(repoRoot, pattern string) (bool, error) {
	path := filepath.Join(repoRoot, ".gitignore")
	existing := map[string]bool{}
	endsWithNewline := true
	if b, err := os.ReadFile(path); err == nil {
		sc := bufio.NewScanner(strings.NewReader(string(b)))
		for sc.Scan() {
			existing[strings.TrimSpace(sc.Text())] = true
		}
		endsWithNewline = len(b) == 0 || b[len(b)-1] == '\n'
	}
	if existing[pattern] || existing["/"+pattern] {
		return false, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return false, err
	}
	defer f.Close()
	line := pattern + "\n"
	if !endsWithNewline {
		line = "\n" + line
	}
	if _, err := f.WriteString(line); err != nil {
		return false, err
	}
	return true, nil
}

// StateIgnores returns the files promptscan may write at a scan root that
// should not be committed.
func StateIgnores() []string {
	return []string{cache.FileName, audit.FileName}
}
