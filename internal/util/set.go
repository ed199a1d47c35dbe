package util

// Set holds unique comparable values. The zero map value is usable
type Set[K comparable] map[K]struct{}

// SetOf builds a set from the given elements, deduplicating as it goes
func SetOf[K comparable](elements ...K) Set[K] {
	s := make(Set[K], len(elements))
	for _, elem := range elements {
		s[elem] = struct{}{}
	}
	return s
}

// Add inserts an element; adding an existing element is a no-op
func (s Set[K]) Add(key K) {
	s[key] = struct{}{}
}

// Contains reports whether the element is present
func (s Set[K]) Contains(key K) bool {
	_, exists := s[key]
	return exists
}

// IsEmpty reports whether the set holds no elements
func (s Set[K]) IsEmpty() bool {
	return len(s) == 0
}
