package postgres

import (
	"encoding/json"
	"fmt"
	"strings"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/Alijeyrad/labtrace_backend/internal/search"
)

const docColumn = "doc"

// Where translates a search predicate into a JSONB condition on the doc
// column.
func Where(p search.Predicate) (*entsql.Predicate, error) {
	if err := check(p); err != nil {
		return nil, err
	}
	return entsql.P(func(b *entsql.Builder) {
		aliases := 0
		render(b, docColumn, p, &aliases)
	}), nil
}

// check rejects predicate nodes the renderer does not know, so render can
// stay error free inside the builder callback.
func check(p search.Predicate) error {
	switch p := p.(type) {
	case nil, search.All, search.Eq, search.Missing, search.RefIn, search.ContainsFold:
		return nil
	case search.ElemMatch:
		return check(p.Where)
	case search.Not:
		return check(p.P)
	case search.And:
		for _, q := range p {
			if err := check(q); err != nil {
				return err
			}
		}
		return nil
	case search.Or:
		for _, q := range p {
			if err := check(q); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("postgres: unsupported predicate %T", p)
	}
}

func render(b *entsql.Builder, root string, p search.Predicate, aliases *int) {
	switch p := p.(type) {
	case nil, search.All:
		b.WriteString("TRUE")

	case search.Eq:
		raw, err := json.Marshal(p.Value)
		if err != nil {
			b.WriteString("FALSE")
			return
		}
		b.WriteString(jsonPath(root, p.Field)).WriteString(" = ")
		b.Arg(string(raw))
		b.WriteString("::jsonb")

	case search.Missing:
		b.WriteString(textPath(root, p.Field)).WriteString(" IS NULL")

	case search.RefIn:
		if len(p.Keys) == 0 {
			b.WriteString("FALSE")
			return
		}
		b.WriteString(refKey(root, p.Field)).WriteString(" IN (")
		for i, k := range p.Keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.Arg(k)
		}
		b.WriteString(")")

	case search.ContainsFold:
		b.WriteString(textPath(root, p.Field)).WriteString(" ILIKE ")
		b.Arg("%" + escapeLike(p.Substr) + "%")

	case search.ElemMatch:
		*aliases++
		alias := fmt.Sprintf("e%d", *aliases)
		arr := jsonPath(root, p.Field)
		b.WriteString("EXISTS (SELECT 1 FROM jsonb_array_elements(CASE WHEN jsonb_typeof(")
		b.WriteString(arr).WriteString(") = 'array' THEN ").WriteString(arr)
		b.WriteString(" ELSE '[]'::jsonb END) AS ").WriteString(alias).WriteString("(value) WHERE jsonb_typeof(")
		b.WriteString(alias).WriteString(".value) = 'object' AND (")
		render(b, alias+".value", p.Where, aliases)
		b.WriteString("))")

	case search.And:
		if len(p) == 0 {
			b.WriteString("TRUE")
			return
		}
		join(b, root, " AND ", p, aliases)

	case search.Or:
		if len(p) == 0 {
			b.WriteString("FALSE")
			return
		}
		join(b, root, " OR ", p, aliases)

	case search.Not:
		b.WriteString("NOT (")
		render(b, root, p.P, aliases)
		b.WriteString(")")
	}
}

func join(b *entsql.Builder, root, sep string, ps []search.Predicate, aliases *int) {
	b.WriteString("(")
	for i, q := range ps {
		if i > 0 {
			b.WriteString(sep)
		}
		render(b, root, q, aliases)
	}
	b.WriteString(")")
}

func jsonPath(root, field string) string {
	return root + "->" + quote(field)
}

func textPath(root, field string) string {
	return root + "->>" + quote(field)
}

// refKey computes the canonical reference key of a field in SQL: the
// lowercased hex of a {"$oid": ...} object or of a 24-hex string, and
// the raw text otherwise.
func refKey(root, field string) string {
	txt := textPath(root, field)
	return "COALESCE(lower(" + jsonPath(root, field) + "->>'$oid'), CASE WHEN " +
		txt + " ~* '^[0-9a-f]{24}$' THEN lower(" + txt + ") ELSE " + txt + " END)"
}

// sortExpr is the ORDER BY expression for a document field.
func sortExpr(field string, desc bool) string {
	expr := textPath(docColumn, field)
	if field == "created_at" {
		expr = "created_at"
	}
	if desc {
		return expr + " DESC"
	}
	return expr + " ASC"
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
