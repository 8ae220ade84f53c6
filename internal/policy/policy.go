// Package policy holds the read-only table of models known to begin their
// response in reasoning mode without emitting the opening marker.
package policy

import "strings"

// ModelPolicy is built once at startup and is safe for concurrent reads.
type ModelPolicy struct {
	startInReasoning map[string]struct{}
}

// New creates a ModelPolicy from a list of model identifiers. Identifiers
// are matched case-insensitively.
func New(models []string) *ModelPolicy {
	set := make(map[string]struct{}, len(models))
	for _, m := range models {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != "" {
			set[m] = struct{}{}
		}
	}
	return &ModelPolicy{startInReasoning: set}
}

// StartsInReasoning reports whether the given model omits the opening
// marker and must be treated as already inside a reasoning span. Unknown
// models return false.
func (p *ModelPolicy) StartsInReasoning(model string) bool {
	if p == nil {
		return false
	}
	_, ok := p.startInReasoning[strings.ToLower(strings.TrimSpace(model))]
	return ok
}

// Size returns the number of configured models.
func (p *ModelPolicy) Size() int {
	if p == nil {
		return 0
	}
	return len(p.startInReasoning)
}
