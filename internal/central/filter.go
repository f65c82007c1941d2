package central

// NameFilter decides whether a discovered peripheral is one the
// application cares about, by advertised name. Matching is exact and
// case-sensitive; there is deliberately no prefix or substring mode.
// The filter is built once at session construction and never mutated.
type NameFilter struct {
	known map[string]struct{}
}

// NewNameFilter builds a filter from the allow-list. An empty list
// means the application has not yet learned which devices it cares
// about, and the filter accepts everything.
func NewNameFilter(names []string) *NameFilter {
	f := &NameFilter{known: make(map[string]struct{}, len(names))}
	for _, n := range names {
		if n != "" {
			f.known[n] = struct{}{}
		}
	}
	return f
}

// Accepts reports whether a peripheral advertising the given name
// should be tracked. With a non-empty allow-list, an advertisement
// carrying no name is rejected.
func (f *NameFilter) Accepts(name string) bool {
	if len(f.known) == 0 {
		return true
	}
	if name == "" {
		return false
	}
	_, ok := f.known[name]
	return ok
}

// Open reports whether the filter accepts everything.
func (f *NameFilter) Open() bool {
	return len(f.known) == 0
}
