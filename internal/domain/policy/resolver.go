package policy

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

const noRule = -1

// Outcome is the result of resolving an identity.
type Outcome struct {
	// Rule is the index of the matching rule, or -1 when nothing matched.
	Rule   int
	Limits *Limits
}

// Denied reports whether the identity may not upload at all.
func (o Outcome) Denied() bool {
	return o.Limits == nil
}

// MaxFileSize returns the per-file cap, 0 when unset or denied.
func (o Outcome) MaxFileSize() int64 {
	if o.Limits == nil || o.Limits.MaxFileSize == nil {
		return 0
	}
	return *o.Limits.MaxFileSize
}

// Resolver evaluates rules in declaration order, first match wins.
// Rules are immutable after construction, so resolved indices are cached.
type Resolver struct {
	rules []Rule
	cache *lru.Cache[string, int]
}

func NewResolver(rules []Rule, cacheSize int) (*Resolver, error) {
	r := &Resolver{rules: rules}
	if cacheSize > 0 {
		c, err := lru.New[string, int](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("policy cache: %w", err)
		}
		r.cache = c
	}
	return r, nil
}

// Resolve returns the outcome for identity. Unmatched identities are denied.
func (r *Resolver) Resolve(identity string) Outcome {
	idx := r.lookup(identity)
	if idx == noRule {
		return Outcome{Rule: noRule}
	}
	return Outcome{Rule: idx, Limits: r.rules[idx].Limits}
}

func (r *Resolver) lookup(identity string) int {
	if r.cache != nil {
		if idx, ok := r.cache.Get(identity); ok {
			return idx
		}
	}
	idx := noRule
	for i, rule := range r.rules {
		if rule.matches(identity) {
			idx = i
			break
		}
	}
	if r.cache != nil {
		r.cache.Add(identity, idx)
	}
	return idx
}

// Len returns the number of configured rules.
func (r *Resolver) Len() int {
	return len(r.rules)
}
