package core

import "strings"

// CategoryKey is the normalized form of a category name. Two names refer to
// the same category exactly when their keys are equal: matching is always
// trimmed and case-insensitive, never raw string equality.
type CategoryKey string

// Key normalizes a category name into its matching key.
func Key(name string) CategoryKey {
	return CategoryKey(strings.ToLower(strings.TrimSpace(name)))
}

// SameCategory reports whether two category names match under key equality.
func SameCategory(a, b string) bool {
	return Key(a) == Key(b)
}

// CategorySet is a validated set of category names with case-insensitive
// lookup. The first spelling seen for a key is kept as the canonical one.
type CategorySet struct {
	canonical map[CategoryKey]string
	names     []string
}

func NewCategorySet(names []string) *CategorySet {
	s := &CategorySet{canonical: make(map[CategoryKey]string, len(names))}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		k := Key(n)
		if _, ok := s.canonical[k]; ok {
			continue
		}
		s.canonical[k] = n
		s.names = append(s.names, n)
	}
	return s
}

// Resolve returns the canonical spelling for name, matched case-insensitively.
func (s *CategorySet) Resolve(name string) (string, bool) {
	c, ok := s.canonical[Key(name)]
	return c, ok
}

func (s *CategorySet) Contains(name string) bool {
	_, ok := s.canonical[Key(name)]
	return ok
}

// Names returns the canonical names in insertion order.
func (s *CategorySet) Names() []string {
	return append([]string(nil), s.names...)
}

func (s *CategorySet) Len() int {
	return len(s.names)
}
