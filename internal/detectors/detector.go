package detectors

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dlclark/regexp2"

	"github.com/redactyl/promptscan/internal/types"
)

// MatchOptions are the flags every rule is compiled with: case-insensitive,
// ^/$ at line boundaries, and '.' matching newlines.
const MatchOptions = regexp2.IgnoreCase | regexp2.Multiline | regexp2.Singleline

// DefaultMatchTimeout is zero: rule applications are not bounded by wall
// clock, so results never depend on load. Input size is the resource bound.
// WithMatchTimeout opts in to a deadline.
const DefaultMatchTimeout time.Duration = 0

var (
	// ErrCompile is returned by New when a rule in the table does not compile.
	ErrCompile = errors.New("compile pattern")
	// ErrMatch wraps engine faults raised while applying a rule.
	ErrMatch = errors.New("pattern match failed")
	// ErrUnknownCategory is returned for lookups of a category not in the table.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrUnknownRule is returned for a rule index outside a category.
	ErrUnknownRule = errors.New("unknown rule")
)

type rule struct {
	expr      string
	re        *regexp2.Regexp
	groupNums []int
}

type category struct {
	name  types.Category
	rules []rule
}

// PatternDetector applies the fixed category table to text. It is immutable
// after construction and safe for concurrent use.
type PatternDetector struct {
	categories []category
	timeout    time.Duration
}

// Option customises a PatternDetector at construction time.
type Option func(*PatternDetector)

// WithMatchTimeout sets the per-rule match timeout. Zero disables it.
func WithMatchTimeout(d time.Duration) Option {
	return func(pd *PatternDetector) { pd.timeout = d }
}

// New compiles the category table.
func New(opts ...Option) (*PatternDetector, error) {
	return newFromTable(table, opts...)
}

// MustNew is like New but panics on a compile error.
func MustNew(opts ...Option) *PatternDetector {
	d, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return d
}

var (
	defaultOnce     sync.Once
	defaultDetector *PatternDetector
)

// Default returns a process-wide detector built once with default options.
func Default() *PatternDetector {
	defaultOnce.Do(func() {
		defaultDetector = MustNew()
	})
	return defaultDetector
}

func newFromTable(specs []categorySpec, opts ...Option) (*PatternDetector, error) {
	pd := &PatternDetector{timeout: DefaultMatchTimeout}
	for _, o := range opts {
		o(pd)
	}
	pd.categories = make([]category, 0, len(specs))
	for _, spec := range specs {
		c := category{name: spec.name, rules: make([]rule, 0, len(spec.exprs))}
		for i, expr := range spec.exprs {
			re, err := regexp2.Compile(expr, MatchOptions)
			if err != nil {
				return nil, fmt.Errorf("%w: %s rule %d: %v", ErrCompile, spec.name, i+1, err)
			}
			if pd.timeout > 0 {
				re.MatchTimeout = pd.timeout
			}
			// GetGroupNumbers always includes the implicit whole-match group 0.
			nums := re.GetGroupNumbers()
			c.rules = append(c.rules, rule{expr: expr, re: re, groupNums: nums[1:]})
		}
		pd.categories = append(pd.categories, c)
	}
	return pd, nil
}

// Detect returns every match of every rule, in table order, as a flat list.
// Rules with capturing groups contribute one value per group; rules without
// contribute the whole match. The result is empty, never nil, when nothing
// matches.
func (d *PatternDetector) Detect(text string) ([]string, error) {
	out := []string{}
	err := d.walk(text, nil, func(_ *category, _ int, r *rule, m *regexp2.Match) {
		out = append(out, r.values(m)...)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DetectFindings is Detect with category attribution and match offsets.
func (d *PatternDetector) DetectFindings(text string) ([]types.Finding, error) {
	return d.findings(text, nil)
}

// DetectCategory applies only the rules of one category.
func (d *PatternDetector) DetectCategory(name types.Category, text string) ([]string, error) {
	if _, ok := d.lookup(name); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, name)
	}
	out := []string{}
	err := d.walk(text, func(c *category, _ int) bool { return c.name == name },
		func(_ *category, _ int, r *rule, m *regexp2.Match) {
			out = append(out, r.values(m)...)
		})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DetectCategoryFindings is DetectCategory with attribution and offsets.
func (d *PatternDetector) DetectCategoryFindings(name types.Category, text string) ([]types.Finding, error) {
	if _, ok := d.lookup(name); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, name)
	}
	return d.findings(text, func(c *category, _ int) bool { return c.name == name })
}

// DetectRule applies a single rule in isolation. ruleIndex is 1-based, as in
// Finding.Rule.
func (d *PatternDetector) DetectRule(name types.Category, ruleIndex int, text string) ([]string, error) {
	c, ok := d.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, name)
	}
	if ruleIndex < 1 || ruleIndex > len(c.rules) {
		return nil, fmt.Errorf("%w: %s rule %d", ErrUnknownRule, name, ruleIndex)
	}
	out := []string{}
	err := d.walk(text, func(cc *category, i int) bool { return cc.name == name && i == ruleIndex-1 },
		func(_ *category, _ int, r *rule, m *regexp2.Match) {
			out = append(out, r.values(m)...)
		})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (d *PatternDetector) findings(text string, keep func(*category, int) bool) ([]types.Finding, error) {
	var offsets []int
	out := []types.Finding{}
	err := d.walk(text, keep, func(c *category, i int, r *rule, m *regexp2.Match) {
		if offsets == nil {
			offsets = runeByteOffsets(text)
		}
		f := types.Finding{
			Category: c.name,
			Rule:     i + 1,
			Match:    m.String(),
			Start:    offsets[m.Index],
			End:      offsets[m.Index+m.Length],
		}
		vals := r.values(m)
		if len(r.groupNums) > 0 {
			f.Groups = vals
		}
		f.Value = vals[0]
		out = append(out, f)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// walk visits every match of every selected rule in table order.
func (d *PatternDetector) walk(text string, keep func(*category, int) bool, visit func(*category, int, *rule, *regexp2.Match)) error {
	for ci := range d.categories {
		c := &d.categories[ci]
		for ri := range c.rules {
			if keep != nil && !keep(c, ri) {
				continue
			}
			r := &c.rules[ri]
			m, err := r.re.FindStringMatch(text)
			for err == nil && m != nil {
				visit(c, ri, r, m)
				m, err = r.re.FindNextMatch(m)
			}
			if err != nil {
				// regexp2 echoes the input in its timeout error; keep secrets out of messages.
				return fmt.Errorf("%w: %s rule %d: match timed out after %s", ErrMatch, c.name, ri+1, d.timeout)
			}
		}
	}
	return nil
}

func (d *PatternDetector) lookup(name types.Category) (*category, bool) {
	for i := range d.categories {
		if d.categories[i].name == name {
			return &d.categories[i], true
		}
	}
	return nil, false
}

func (r *rule) values(m *regexp2.Match) []string {
	if len(r.groupNums) == 0 {
		return []string{m.String()}
	}
	vals := make([]string, 0, len(r.groupNums))
	for _, n := range r.groupNums {
		g := m.GroupByNumber(n)
		if g == nil {
			vals = append(vals, "")
			continue
		}
		vals = append(vals, g.String())
	}
	return vals
}

// runeByteOffsets maps rune index -> byte offset, with one trailing entry
// for len(text). regexp2 reports positions in runes.
func runeByteOffsets(text string) []int {
	offsets := make([]int, 0, len(text)+1)
	for i := range text {
		offsets = append(offsets, i)
	}
	return append(offsets, len(text))
}

// RuleInfo describes one compiled rule.
type RuleInfo struct {
	Index  int    `json:"index"`
	Expr   string `json:"expr"`
	Groups int    `json:"groups"`
}

// CategoryInfo describes one category and its rules.
type CategoryInfo struct {
	Name  types.Category `json:"name"`
	Rules []RuleInfo     `json:"rules"`
}

// Categories returns a copy of the table in scan order.
func (d *PatternDetector) Categories() []CategoryInfo {
	out := make([]CategoryInfo, 0, len(d.categories))
	for _, c := range d.categories {
		ci := CategoryInfo{Name: c.name}
		for i, r := range c.rules {
			ci.Rules = append(ci.Rules, RuleInfo{Index: i + 1, Expr: r.expr, Groups: len(r.groupNums)})
		}
		out = append(out, ci)
	}
	return out
}

// MatchTimeout returns the per-rule timeout the detector was built with.
func (d *PatternDetector) MatchTimeout() time.Duration { return d.timeout }

// RulesHash fingerprints the compiled table. Caches keyed on it are
// invalidated whenever a rule or the category order changes.
func (d *PatternDetector) RulesHash() string {
	h := xxhash.New()
	for _, c := range d.categories {
		_, _ = h.WriteString(string(c.name))
		_, _ = h.WriteString("\x00")
		for _, r := range c.rules {
			_, _ = h.WriteString(r.expr)
			_, _ = h.WriteString("\x00")
		}
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
