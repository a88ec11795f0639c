// Package ignore reads .promptscanignore files: gitignore-style patterns
// matched with doublestar globs.
package ignore

import (
	"bufio"
	"io"
	"os"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// FileName is the ignore file looked up at the scan root.
const FileName = ".promptscanignore"

type rule struct {
	globs  []string
	negate bool
}

// Matcher tests slash-separated relative paths against loaded rules. The
// last matching rule wins, so "!pattern" re-includes.
type Matcher struct {
	rules []rule
}

// Load parses the ignore file at p.
func Load(p string) (Matcher, error) {
	f, err := os.Open(p)
	if err != nil {
		return Matcher{}, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads patterns, one per line. Blank lines and # comments are skipped.
func Parse(r io.Reader) (Matcher, error) {
	var m Matcher
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ru := rule{}
		if strings.HasPrefix(line, "!") {
			ru.negate = true
			line = line[1:]
		}
		ru.globs = expand(line)
		if len(ru.globs) > 0 {
			m.rules = append(m.rules, ru)
		}
	}
	return m, sc.Err()
}

// expand turns one gitignore-style line into doublestar globs.
func expand(p string) []string {
	dirOnly := strings.HasSuffix(p, "/")
	p = strings.TrimSuffix(p, "/")
	anchored := strings.HasPrefix(p, "/") || strings.Contains(p, "/")
	p = strings.TrimPrefix(p, "/")
	if p == "" || !doublestar.ValidatePattern(p) {
		return nil
	}
	base := p
	if !anchored {
		base = "**/" + p
	}
	if dirOnly {
		return []string{base + "/**"}
	}
	return []string{base, base + "/**"}
}

// Match reports whether rel is ignored.
func (m Matcher) Match(rel string) bool {
	rel = strings.TrimPrefix(path.Clean(strings.ReplaceAll(rel, "\\", "/")), "./")
	ignored := false
	for _, r := range m.rules {
		for _, g := range r.globs {
			if ok, _ := doublestar.Match(g, rel); ok {
				ignored = !r.negate
				break
			}
		}
	}
	return ignored
}

// Empty reports whether no rules are loaded.
func (m Matcher) Empty() bool { return len(m.rules) == 0 }
