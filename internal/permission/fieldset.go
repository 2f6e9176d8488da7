package permission

import "sort"

// FieldSet is a set of payload field names.
type FieldSet map[string]struct{}

func NewFieldSet(fields ...string) FieldSet {
	s := make(FieldSet, len(fields))
	for _, f := range fields {
		s[f] = struct{}{}
	}
	return s
}

func (s FieldSet) Has(field string) bool {
	_, ok := s[field]
	return ok
}

// Minus returns the fields of s that are not in other, sorted.
func (s FieldSet) Minus(other FieldSet) []string {
	var out []string
	for f := range s {
		if !other.Has(f) {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

func (s FieldSet) SubsetOf(other FieldSet) bool {
	for f := range s {
		if !other.Has(f) {
			return false
		}
	}
	return true
}

// Names returns the field names sorted.
func (s FieldSet) Names() []string {
	out := make([]string, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
