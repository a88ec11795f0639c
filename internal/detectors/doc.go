// Package detectors implements the deterministic pattern layer of promptscan.
//
// A PatternDetector holds a fixed, ordered table of credential categories,
// each with an ordered list of regular expressions. Detect applies every rule
// to the input and returns the flat list of matched values in table order:
// category, then rule within the category, then left-to-right within a rule.
//
// Rules are evaluated with a backtracking engine (regexp2) because several of
// them rely on lookahead. Every rule application is bounded by a match
// timeout so adversarial input surfaces as an error instead of a hang.
package detectors
