// Package policy matches requesting identities against an ordered list of
// access rules and yields the quota limits that apply to them.
package policy

import (
	"fmt"
	"regexp"
	"time"

	"httpupload/internal/pkg/validator"
)

// Window caps a quantity within a trailing time window.
type Window struct {
	Window time.Duration `validate:"gt=0"`
	Quota  int64         `validate:"gt=0"`
}

// Limits is the set of quota dimensions for one rule. A nil field imposes no
// restriction on that dimension.
type Limits struct {
	MaxFileSize      *int64 `validate:"omitempty,gt=0"`
	MaxTotalSize     *int64 `validate:"omitempty,gt=0"`
	BytesPerWindow   *Window
	UploadsPerWindow *Window
}

// Validate checks every present dimension.
func (l *Limits) Validate() error {
	if l == nil {
		return nil
	}
	return validator.Check(l)
}

// Rule is one entry of the access list. Limits is nil for deny rules.
type Rule struct {
	Patterns []*regexp.Regexp
	Limits   *Limits
}

// NewRule compiles patterns. An identity matches the rule when any pattern
// finds a match anywhere in it.
func NewRule(patterns []string, limits *Limits) (Rule, error) {
	if len(patterns) == 0 {
		return Rule{}, fmt.Errorf("rule has no patterns")
	}
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return Rule{}, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	if err := limits.Validate(); err != nil {
		return Rule{}, err
	}
	return Rule{Patterns: compiled, Limits: limits}, nil
}

// MustRule is NewRule for static rule sets; it panics on error.
func MustRule(limits *Limits, patterns ...string) Rule {
	r, err := NewRule(patterns, limits)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Rule) matches(identity string) bool {
	for _, re := range r.Patterns {
		if re.MatchString(identity) {
			return true
		}
	}
	return false
}

// DenyAll is the rule set used when no access list is configured.
func DenyAll() []Rule {
	return []Rule{MustRule(nil, ".*")}
}

// Int64 returns a pointer to v, for building Limits literals.
func Int64(v int64) *int64 { return &v }
