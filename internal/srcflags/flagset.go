package srcflags

import "slices"

// FlagSet is an ordered set of compiler flags that only grows. Once frozen it
// rejects further additions.
type FlagSet struct {
	items  []string
	seen   map[string]struct{}
	frozen bool
}

func newFlagSet() *FlagSet {
	return &FlagSet{seen: make(map[string]struct{})}
}

// Add appends flags that are not already present, keeping the first occurrence
func (s *FlagSet) Add(flags ...string) error {
	if s.frozen {
		return ErrFrozen
	}
	s.add(flags...)
	return nil
}

func (s *FlagSet) add(flags ...string) {
	for _, flag := range flags {
		if _, ok := s.seen[flag]; ok {
			continue
		}
		s.seen[flag] = struct{}{}
		s.items = append(s.items, flag)
	}
}

func (s *FlagSet) Len() int { return len(s.items) }

// Values returns a copy of the flags in insertion order
func (s *FlagSet) Values() []string {
	return slices.Clone(s.items)
}

func (s *FlagSet) freeze() { s.frozen = true }

// union merges several sets into a new slice, deduplicating by first occurrence
func union(sets ...*FlagSet) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, set := range sets {
		for _, flag := range set.items {
			if _, ok := seen[flag]; ok {
				continue
			}
			seen[flag] = struct{}{}
			out = append(out, flag)
		}
	}
	return out
}
