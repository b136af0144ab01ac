package firehose

import "github.com/skywatch-app/skywatch-server/internal/domain"

// Filter accepts or rejects label events by configured allow-list.
// Pure and stateless; an empty allow-list captures everything.
type Filter struct {
	allowed map[string]struct{}
}

// NewFilter creates a filter from the configured label values.
func NewFilter(values []string) *Filter {
	if len(values) == 0 {
		return &Filter{}
	}
	allowed := make(map[string]struct{}, len(values))
	for _, v := range values {
		allowed[v] = struct{}{}
	}
	return &Filter{allowed: allowed}
}

// ShouldCapture reports whether the label event should be persisted and
// hydrated.
func (f *Filter) ShouldCapture(l *domain.Label) bool {
	if f.allowed == nil {
		return true
	}
	_, ok := f.allowed[l.Value]
	return ok
}
