package search

import "strings"

const FieldIsActive = "is_active"

// SoftDelete matches documents whose is_active flag is true or absent.
// Legacy documents never carried the flag and count as active.
func SoftDelete() Predicate {
	return Or{
		Eq{Field: FieldIsActive, Value: true},
		Missing{Field: FieldIsActive},
	}
}

// Text builds a disjunction of case-insensitive substring matches over
// fields. It returns nil for blank text.
func Text(q string, fields ...string) Predicate {
	q = strings.TrimSpace(q)
	if q == "" || len(fields) == 0 {
		return nil
	}
	or := make(Or, 0, len(fields))
	for _, f := range fields {
		or = append(or, ContainsFold{Field: f, Substr: q})
	}
	return or
}

// Filter describes one list request's predicate inputs.
type Filter struct {
	Query      string
	ActiveOnly bool
	Fields     []string
	// Related adds alternatives to the text match, e.g. documents whose
	// parent matched the same text.
	Related []Predicate
}

// Build composes the soft-delete predicate with the text match. The
// result is a pure function of the Filter.
func (f Filter) Build() Predicate {
	var parts []Predicate
	if f.ActiveOnly {
		parts = append(parts, SoftDelete())
	}
	if text := Text(f.Query, f.Fields...); text != nil {
		or := text.(Or)
		for _, r := range f.Related {
			if r != nil {
				or = append(or, r)
			}
		}
		parts = append(parts, or)
	}
	return Conj(parts...)
}

// BuildFilter is the single-call form used by most list views.
func BuildFilter(q string, activeOnly bool, fields ...string) Predicate {
	return Filter{Query: q, ActiveOnly: activeOnly, Fields: fields}.Build()
}
