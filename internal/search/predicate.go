// Package search builds the filter predicates and page envelopes shared by
// every list view.
//
// Predicates form a small tree that a store either evaluates directly
// against decoded documents (Match) or translates into its own query
// language. Field names address top-level document keys.
package search

import (
	"encoding/json"
	"reflect"
	"slices"
	"strings"

	"github.com/Alijeyrad/labtrace_backend/pkg/ref"
)

// Predicate matches decoded JSON documents.
type Predicate interface {
	Match(doc map[string]any) bool
}

// All matches every document.
type All struct{}

func (All) Match(map[string]any) bool { return true }

// Eq matches a field whose JSON value equals Value.
type Eq struct {
	Field string
	Value any
}

func (p Eq) Match(doc map[string]any) bool {
	v, ok := doc[p.Field]
	if !ok {
		return false
	}
	return reflect.DeepEqual(v, jsonValue(p.Value))
}

// Missing matches an absent or null field.
type Missing struct {
	Field string
}

func (p Missing) Match(doc map[string]any) bool {
	v, ok := doc[p.Field]
	return !ok || v == nil
}

// RefIn matches a reference field whose canonical key is one of Keys,
// whichever shape the field was stored in.
type RefIn struct {
	Field string
	Keys  []string
}

func (p RefIn) Match(doc map[string]any) bool {
	key := ref.Normalize(doc[p.Field]).Key()
	return key != "" && slices.Contains(p.Keys, key)
}

// ContainsFold is a case-insensitive substring match on a string field.
type ContainsFold struct {
	Field  string
	Substr string
}

func (p ContainsFold) Match(doc map[string]any) bool {
	s, ok := doc[p.Field].(string)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(p.Substr))
}

// ElemMatch matches when any object element of an array field satisfies Where.
type ElemMatch struct {
	Field string
	Where Predicate
}

func (p ElemMatch) Match(doc map[string]any) bool {
	arr, ok := doc[p.Field].([]any)
	if !ok {
		return false
	}
	for _, el := range arr {
		if m, ok := el.(map[string]any); ok && p.Where.Match(m) {
			return true
		}
	}
	return false
}

type And []Predicate

func (p And) Match(doc map[string]any) bool {
	for _, q := range p {
		if !q.Match(doc) {
			return false
		}
	}
	return true
}

type Or []Predicate

func (p Or) Match(doc map[string]any) bool {
	for _, q := range p {
		if q.Match(doc) {
			return true
		}
	}
	return false
}

type Not struct {
	P Predicate
}

func (p Not) Match(doc map[string]any) bool { return !p.P.Match(doc) }

// RefsIn builds a RefIn predicate from references, dropping empty ones.
func RefsIn(field string, refs ...ref.Ref) RefIn {
	return RefIn{Field: field, Keys: ref.Keys(refs)}
}

// Conj flattens nil and All operands out of a conjunction.
func Conj(ps ...Predicate) Predicate {
	out := make(And, 0, len(ps))
	for _, p := range ps {
		switch p.(type) {
		case nil, All:
			continue
		}
		out = append(out, p)
	}
	switch len(out) {
	case 0:
		return All{}
	case 1:
		return out[0]
	}
	return out
}

// jsonValue puts a Go value into the shape encoding/json produces when
// decoding into any, so numbers compare as float64 and refs as maps.
func jsonValue(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}
