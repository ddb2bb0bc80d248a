// Package memory provides an in-memory document store used for tests and
// ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Alijeyrad/labtrace_backend/internal/search"
	"github.com/Alijeyrad/labtrace_backend/internal/store"
)

var _ store.Store = (*Store)(nil)

type entry struct {
	raw     []byte
	meta    store.Meta
	inserts uint64
}

type collection struct {
	docs   map[string]*entry
	unique map[string]string // unique key -> id
}

// Store keeps every collection in maps guarded by one RWMutex. Unique keys
// are checked and written under the write lock, so concurrent inserts of
// the same key cannot both succeed.
type Store struct {
	mu    sync.RWMutex
	colls map[store.Collection]*collection
	seq   uint64
}

func New() *Store {
	s := &Store{colls: make(map[store.Collection]*collection, len(store.Collections))}
	for _, c := range store.Collections {
		s.colls[c] = &collection{docs: map[string]*entry{}, unique: map[string]string{}}
	}
	return s
}

func (s *Store) Insert(ctx context.Context, coll store.Collection, doc any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, meta, err := store.Encode(coll, doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.colls[coll]
	if _, exists := c.docs[meta.ID]; exists {
		return fmt.Errorf("%w: %s id %s", store.ErrDuplicate, coll, meta.ID)
	}
	if meta.UniqueKey != "" {
		if _, taken := c.unique[meta.UniqueKey]; taken {
			return fmt.Errorf("%w: %s %q", store.ErrDuplicate, coll, meta.UniqueKey)
		}
		c.unique[meta.UniqueKey] = meta.ID
	}
	s.seq++
	c.docs[meta.ID] = &entry{raw: raw, meta: meta, inserts: s.seq}
	return nil
}

func (s *Store) Update(ctx context.Context, coll store.Collection, doc any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, meta, err := store.Encode(coll, doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.colls[coll]
	old, ok := c.docs[meta.ID]
	if !ok {
		return fmt.Errorf("%w: %s id %s", store.ErrNotFound, coll, meta.ID)
	}
	if meta.UniqueKey != old.meta.UniqueKey {
		if owner, taken := c.unique[meta.UniqueKey]; taken && meta.UniqueKey != "" && owner != meta.ID {
			return fmt.Errorf("%w: %s %q", store.ErrDuplicate, coll, meta.UniqueKey)
		}
		delete(c.unique, old.meta.UniqueKey)
		if meta.UniqueKey != "" {
			c.unique[meta.UniqueKey] = meta.ID
		}
	}
	c.docs[meta.ID] = &entry{raw: raw, meta: meta, inserts: old.inserts}
	return nil
}

func (s *Store) Get(ctx context.Context, coll store.Collection, id string) (store.Document, error) {
	if err := ctx.Err(); err != nil {
		return store.Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.colls[coll]
	if !ok {
		return store.Document{}, fmt.Errorf("%w: %s", store.ErrUnknownCollection, coll)
	}
	e, ok := c.docs[id]
	if !ok {
		return store.Document{}, fmt.Errorf("%w: %s id %s", store.ErrNotFound, coll, id)
	}
	return document(e), nil
}

func (s *Store) Find(ctx context.Context, coll store.Collection, pred search.Predicate, opts store.FindOptions) ([]store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matched, err := s.match(coll, pred)
	if err != nil {
		return nil, err
	}

	sortEntries(matched, opts.Sort)

	if opts.Skip > 0 {
		if opts.Skip >= len(matched) {
			return []store.Document{}, nil
		}
		matched = matched[opts.Skip:]
	}
	if opts.Limit > 0 && opts.Limit < len(matched) {
		matched = matched[:opts.Limit]
	}

	out := make([]store.Document, 0, len(matched))
	for _, e := range matched {
		out = append(out, document(e))
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, coll store.Collection, pred search.Predicate) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	matched, err := s.match(coll, pred)
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

func (s *Store) match(coll store.Collection, pred search.Predicate) ([]*entry, error) {
	if pred == nil {
		pred = search.All{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.colls[coll]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownCollection, coll)
	}
	out := make([]*entry, 0, len(c.docs))
	for _, e := range c.docs {
		if pred.Match(e.meta.Fields) {
			out = append(out, e)
		}
	}
	return out, nil
}

// document copies the raw bytes so callers cannot mutate stored state.
func document(e *entry) store.Document {
	raw := make([]byte, len(e.raw))
	copy(raw, e.raw)
	return store.Document{ID: e.meta.ID, Raw: raw}
}

// sortEntries orders by the requested fields and falls back to insertion
// order so pagination is stable.
func sortEntries(es []*entry, by []store.Sort) {
	sort.SliceStable(es, func(i, j int) bool {
		for _, s := range by {
			c := compareField(es[i], es[j], s.Field)
			if c == 0 {
				continue
			}
			if s.Desc {
				return c > 0
			}
			return c < 0
		}
		return es[i].inserts < es[j].inserts
	})
}

func compareField(a, b *entry, field string) int {
	if field == "created_at" {
		return a.meta.CreatedAt.Compare(b.meta.CreatedAt)
	}
	av, bv := a.meta.Fields[field], b.meta.Fields[field]
	switch x := av.(type) {
	case float64:
		if y, ok := bv.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case string:
		if y, ok := bv.(string); ok {
			if tx, err := time.Parse(time.RFC3339Nano, x); err == nil {
				if ty, err := time.Parse(time.RFC3339Nano, y); err == nil {
					return tx.Compare(ty)
				}
			}
			return strings.Compare(x, y)
		}
	}
	// Missing values sort first.
	switch {
	case av == nil && bv != nil:
		return -1
	case av != nil && bv == nil:
		return 1
	}
	return 0
}
