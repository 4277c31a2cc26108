package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidPattern is returned for a Pattern that is neither a literal nor
// a regular expression.
var ErrInvalidPattern = errors.New("rules: invalid host pattern")

// Pattern is a literal hostname or a regular expression. A literal matches
// only a host equal to it; a regular expression matches with the usual
// unanchored semantics. The zero Pattern is invalid.
type Pattern struct {
	literal string
	re      *regexp.Regexp
}

// Literal returns a pattern matching exactly host.
func Literal(host string) Pattern {
	return Pattern{literal: host}
}

// Regexp returns a pattern matching hosts against re.
func Regexp(re *regexp.Regexp) Pattern {
	return Pattern{re: re}
}

// ParseRegexp compiles expr into a pattern.
func ParseRegexp(expr string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("%w: %w", ErrInvalidPattern, err)
	}
	return Regexp(re), nil
}

// IsRegexp reports whether p is a regular expression pattern.
func (p Pattern) IsRegexp() bool {
	return p.re != nil
}

func (p Pattern) valid() bool {
	return p.re != nil || p.literal != ""
}

// String returns the literal host, or the source of the regular expression.
func (p Pattern) String() string {
	if p.re != nil {
		return p.re.String()
	}
	return p.literal
}

func (p Pattern) expr() string {
	if p.re != nil {
		return p.re.String()
	}
	return `\A` + regexp.QuoteMeta(p.literal) + `\z`
}

// Matcher matches a host against the union of a list of patterns.
type Matcher struct {
	re *regexp.Regexp
}

// Compile joins patterns into one alternation and compiles it. An empty
// list yields a matcher that matches nothing.
func Compile(patterns []Pattern) (*Matcher, error) {
	if len(patterns) == 0 {
		return &Matcher{}, nil
	}

	parts := make([]string, 0, len(patterns))
	for i, p := range patterns {
		if !p.valid() {
			return nil, fmt.Errorf("%w: entry %d is empty", ErrInvalidPattern, i)
		}
		parts = append(parts, "(?:"+p.expr()+")")
	}

	re, err := regexp.Compile(strings.Join(parts, "|"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPattern, err)
	}
	return &Matcher{re: re}, nil
}

// Match reports whether host matches any of the patterns.
func (m *Matcher) Match(host string) bool {
	return m.re != nil && m.re.MatchString(host)
}
