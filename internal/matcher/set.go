package matcher

// Set is a minimal generic set.
type Set[T comparable] map[T]struct{}

// NewSet returns an empty Set.
func NewSet[T comparable]() Set[T] {
	return map[T]struct{}{}
}

// Add inserts v.
func (s Set[T]) Add(v T) {
	s[v] = struct{}{}
}

// Has reports whether v is present.
func (s Set[T]) Has(v T) bool {
	_, ok := s[v]
	return ok
}
