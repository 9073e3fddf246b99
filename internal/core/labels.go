package core

import (
	"sort"
	"strings"
)

// LabelSet is a set of label names attached to an item. Names are trimmed
// and empty names are dropped; duplicates collapse. The zero value is an
// empty set ready to use.
type LabelSet struct {
	names map[string]struct{}
}

// NewLabelSet builds a set from the given names.
func NewLabelSet(names ...string) LabelSet {
	var s LabelSet
	for _, n := range names {
		s = s.With(n)
	}
	return s
}

// ParseLabelSet splits a comma-separated list, e.g. "Baby, Clothes,,".
func ParseLabelSet(csv string) LabelSet {
	if strings.TrimSpace(csv) == "" {
		return LabelSet{}
	}
	return NewLabelSet(strings.Split(csv, ",")...)
}

func (s LabelSet) Len() int { return len(s.names) }

func (s LabelSet) IsEmpty() bool { return len(s.names) == 0 }

// Has reports whether name (after trimming) belongs to the set.
// Matching is exact, as stored.
func (s LabelSet) Has(name string) bool {
	_, ok := s.names[strings.TrimSpace(name)]
	return ok
}

// Names returns the members sorted ascending.
func (s LabelSet) Names() []string {
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// String joins the names with commas, in sorted order.
func (s LabelSet) String() string {
	return strings.Join(s.Names(), ",")
}

// With returns a copy of s that also contains name.
func (s LabelSet) With(name string) LabelSet {
	name = strings.TrimSpace(name)
	if name == "" {
		return s
	}
	out := s.Clone()
	if out.names == nil {
		out.names = make(map[string]struct{})
	}
	out.names[name] = struct{}{}
	return out
}

// Remove returns a copy of s without name.
func (s LabelSet) Remove(name string) LabelSet {
	out := s.Clone()
	delete(out.names, strings.TrimSpace(name))
	return out
}

// Rename returns a copy of s where oldName is replaced by newName.
// Sets that do not contain oldName are returned unchanged.
func (s LabelSet) Rename(oldName, newName string) LabelSet {
	if !s.Has(oldName) {
		return s
	}
	return s.Remove(oldName).With(newName)
}

func (s LabelSet) Clone() LabelSet {
	if s.names == nil {
		return LabelSet{}
	}
	out := LabelSet{names: make(map[string]struct{}, len(s.names))}
	for n := range s.names {
		out.names[n] = struct{}{}
	}
	return out
}

// Equal reports whether both sets hold the same names.
func (s LabelSet) Equal(o LabelSet) bool {
	if len(s.names) != len(o.names) {
		return false
	}
	for n := range s.names {
		if _, ok := o.names[n]; !ok {
			return false
		}
	}
	return true
}
