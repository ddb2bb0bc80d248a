// Package postgres stores documents as JSONB rows in a single Postgres
// table and translates search predicates into JSONB conditions.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/sqlgraph"

	"github.com/Alijeyrad/labtrace_backend/internal/schema"
	"github.com/Alijeyrad/labtrace_backend/internal/search"
	"github.com/Alijeyrad/labtrace_backend/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	drv *entsql.Driver
	log *slog.Logger
}

func New(drv *entsql.Driver, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{drv: drv, log: log}
}

func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.Postgres)
}

func docKey(coll store.Collection, id string) *entsql.Predicate {
	return entsql.And(
		entsql.EQ(schema.ColumnCollection, string(coll)),
		entsql.EQ(schema.ColumnID, id),
	)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func createdAt(m store.Meta) time.Time {
	if m.CreatedAt.IsZero() {
		return time.Now().UTC()
	}
	return m.CreatedAt.UTC()
}

func (s *Store) Insert(ctx context.Context, coll store.Collection, doc any) error {
	raw, meta, err := store.Encode(coll, doc)
	if err != nil {
		return err
	}
	q, args := builder().Insert(schema.DocumentsTable).
		Columns(schema.ColumnCollection, schema.ColumnID, schema.ColumnDoc, schema.ColumnCreatedAt, schema.ColumnUniqueKey).
		Values(string(coll), meta.ID, string(raw), createdAt(meta), nullable(meta.UniqueKey)).
		Query()
	if err := s.drv.Exec(ctx, q, args, nil); err != nil {
		if sqlgraph.IsUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s %q", store.ErrDuplicate, coll, meta.UniqueKey)
		}
		return fmt.Errorf("postgres: insert %s: %w", coll, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, coll store.Collection, doc any) error {
	raw, meta, err := store.Encode(coll, doc)
	if err != nil {
		return err
	}
	q, args := builder().Update(schema.DocumentsTable).
		Set(schema.ColumnDoc, string(raw)).
		Set(schema.ColumnCreatedAt, createdAt(meta)).
		Set(schema.ColumnUniqueKey, nullable(meta.UniqueKey)).
		Where(docKey(coll, meta.ID)).
		Query()

	var res sql.Result
	if err := s.drv.Exec(ctx, q, args, &res); err != nil {
		if sqlgraph.IsUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s %q", store.ErrDuplicate, coll, meta.UniqueKey)
		}
		return fmt.Errorf("postgres: update %s: %w", coll, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: update %s: %w", coll, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s id %s", store.ErrNotFound, coll, meta.ID)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, coll store.Collection, id string) (store.Document, error) {
	if !store.Known(coll) {
		return store.Document{}, fmt.Errorf("%w: %s", store.ErrUnknownCollection, coll)
	}
	q, args := builder().Select(schema.ColumnID, schema.ColumnDoc).
		From(entsql.Table(schema.DocumentsTable)).
		Where(docKey(coll, id)).
		Query()
	docs, err := s.query(ctx, q, args)
	if err != nil {
		return store.Document{}, fmt.Errorf("postgres: get %s: %w", coll, err)
	}
	if len(docs) == 0 {
		return store.Document{}, fmt.Errorf("%w: %s id %s", store.ErrNotFound, coll, id)
	}
	return docs[0], nil
}

func (s *Store) Find(ctx context.Context, coll store.Collection, pred search.Predicate, opts store.FindOptions) ([]store.Document, error) {
	sel, err := s.selector(coll, pred, schema.ColumnID, schema.ColumnDoc)
	if err != nil {
		return nil, err
	}
	for _, o := range opts.Sort {
		sel.OrderExpr(entsql.Expr(sortExpr(o.Field, o.Desc)))
	}
	// Ties fall back to insertion time then id, which tracks insertion
	// order for ObjectID keys.
	sel.OrderExpr(entsql.Expr("created_at ASC"), entsql.Expr("id ASC"))
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}
	if opts.Skip > 0 {
		sel.Offset(opts.Skip)
	}

	q, args := sel.Query()
	docs, err := s.query(ctx, q, args)
	if err != nil {
		return nil, fmt.Errorf("postgres: find %s: %w", coll, err)
	}
	return docs, nil
}

func (s *Store) Count(ctx context.Context, coll store.Collection, pred search.Predicate) (int, error) {
	sel, err := s.selector(coll, pred, entsql.Count("*"))
	if err != nil {
		return 0, err
	}
	q, args := sel.Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, q, args, rows); err != nil {
		return 0, fmt.Errorf("postgres: count %s: %w", coll, err)
	}
	defer rows.Close()

	n, err := entsql.ScanInt(rows)
	if err != nil {
		return 0, fmt.Errorf("postgres: count %s: %w", coll, err)
	}
	return n, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.drv.DB().PingContext(ctx)
}

func (s *Store) Close() error {
	return s.drv.Close()
}

func (s *Store) selector(coll store.Collection, pred search.Predicate, columns ...string) (*entsql.Selector, error) {
	if !store.Known(coll) {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownCollection, coll)
	}
	where, err := Where(pred)
	if err != nil {
		return nil, err
	}
	return builder().Select(columns...).
		From(entsql.Table(schema.DocumentsTable)).
		Where(entsql.And(entsql.EQ(schema.ColumnCollection, string(coll)), where)), nil
}

func (s *Store) query(ctx context.Context, q string, args []any) ([]store.Document, error) {
	start := time.Now()
	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, q, args, rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Document
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		out = append(out, store.Document{ID: id, Raw: raw})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	s.log.DebugContext(ctx, "document query", slog.Duration("took", time.Since(start)), slog.Int("rows", len(out)))
	if out == nil {
		out = []store.Document{}
	}
	return out, nil
}
