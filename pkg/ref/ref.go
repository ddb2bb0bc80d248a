// Package ref reconciles foreign keys that are stored either as a native
// ObjectID or as a plain human-readable identifier.
//
// A Ref is a tagged union of the two shapes. Its Key is the canonical
// comparison form: lower-case hex for native references and the string
// itself for opaque keys. Normalization never fails; input that cannot be
// understood becomes an opaque key so joins degrade to "no match".
package ref

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Kind uint8

const (
	KindEmpty Kind = iota
	KindNative
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindNative:
		return "native"
	case KindString:
		return "string"
	default:
		return "empty"
	}
}

// oidField is the extended-JSON wrapper used to store native references.
const oidField = "$oid"

type Ref struct {
	kind Kind
	oid  primitive.ObjectID
	key  string
}

// Native wraps an ObjectID.
func Native(id primitive.ObjectID) Ref {
	if id.IsZero() {
		return Ref{}
	}
	return Ref{kind: KindNative, oid: id}
}

// String wraps a human-readable key without attempting to parse it.
func String(s string) Ref {
	if s == "" {
		return Ref{}
	}
	return Ref{kind: KindString, key: s}
}

// Parse detects a hex-encoded ObjectID and falls back to an opaque key.
func Parse(s string) Ref {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ref{}
	}
	if isObjectIDHex(s) {
		if id, err := primitive.ObjectIDFromHex(strings.ToLower(s)); err == nil {
			return Native(id)
		}
	}
	return String(s)
}

// Normalize accepts any value found in a decoded document field.
func Normalize(v any) Ref {
	switch t := v.(type) {
	case nil:
		return Ref{}
	case Ref:
		return t
	case *Ref:
		if t == nil {
			return Ref{}
		}
		return *t
	case primitive.ObjectID:
		return Native(t)
	case *primitive.ObjectID:
		if t == nil {
			return Ref{}
		}
		return Native(*t)
	case string:
		return Parse(t)
	case map[string]any:
		if hex, ok := t[oidField].(string); ok {
			return Parse(hex)
		}
		return String(fmt.Sprint(t))
	case fmt.Stringer:
		return Parse(t.String())
	default:
		return String(fmt.Sprint(t))
	}
}

// Key returns the canonical comparison form.
func (r Ref) Key() string {
	switch r.kind {
	case KindNative:
		return r.oid.Hex()
	case KindString:
		return r.key
	default:
		return ""
	}
}

func (r Ref) Kind() Kind { return r.kind }

func (r Ref) IsZero() bool { return r.kind == KindEmpty }

func (r Ref) IsNative() bool { return r.kind == KindNative }

// ObjectID reports the native value, if any.
func (r Ref) ObjectID() (primitive.ObjectID, bool) {
	return r.oid, r.kind == KindNative
}

func (r Ref) String() string { return r.Key() }

// Equal compares canonical keys. Empty refs never match anything.
func (r Ref) Equal(o Ref) bool {
	return !r.IsZero() && r.Key() == o.Key()
}

// Value renders the stored document shape: {"$oid": hex} for native refs
// and the plain string for opaque keys.
func (r Ref) Value() any {
	switch r.kind {
	case KindNative:
		return map[string]any{oidField: r.oid.Hex()}
	case KindString:
		return r.key
	default:
		return nil
	}
}

func (r Ref) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Value())
}

// UnmarshalJSON never returns an error for well-formed JSON of an
// unexpected shape; the raw text becomes an opaque key instead.
func (r *Ref) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*r = Ref{}
		return nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		*r = String(string(b))
		return nil
	}
	*r = Normalize(v)
	return nil
}

// Keys returns the canonical keys of refs, skipping empty ones.
func Keys(refs []Ref) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if !r.IsZero() {
			out = append(out, r.Key())
		}
	}
	return out
}

func isObjectIDHex(s string) bool {
	if len(s) != 24 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
