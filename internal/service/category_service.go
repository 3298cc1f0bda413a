package service

import "strings"

// CategoryService exposes the configured entry type labels.
type CategoryService struct {
	types []string
}

func NewCategoryService(types []string) *CategoryService {
	out := make([]string, 0, len(types))
	seen := make(map[string]struct{}, len(types))
	for _, t := range types {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if _, dup := seen[key]; t == "" || dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return &CategoryService{types: out}
}

// List returns the labels in configured order.
func (s *CategoryService) List() []string {
	out := make([]string, len(s.types))
	copy(out, s.types)
	return out
}

// Resolve maps t onto its configured spelling, matching case-insensitively.
// With no configured labels every non-empty type is accepted as given.
func (s *CategoryService) Resolve(t string) (string, bool) {
	t = strings.TrimSpace(t)
	if t == "" {
		return "", false
	}
	if len(s.types) == 0 {
		return t, true
	}
	for _, known := range s.types {
		if strings.EqualFold(known, t) {
			return known, true
		}
	}
	return "", false
}
