// Package store defines the document storage contract the traceability
// engine reads from. Every collection holds JSON documents carrying an
// "id" and a "created_at" field.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Alijeyrad/labtrace_backend/internal/search"
)

type Collection string

const (
	Clients             Collection = "clients"
	Jobs                Collection = "jobs"
	TestMethods         Collection = "test_methods"
	SampleLots          Collection = "sample_lots"
	Specimens           Collection = "specimens"
	PreparationRequests Collection = "preparation_requests"
	Certificates        Collection = "certificates"
	DiscardRecords      Collection = "discard_records"
)

// Collections lists every known collection.
var Collections = []Collection{
	Clients, Jobs, TestMethods, SampleLots, Specimens,
	PreparationRequests, Certificates, DiscardRecords,
}

// UniqueFields maps a collection to the document field that must be unique
// across it. Lot item numbers embed their job id, so a unique item_no also
// keeps (job_id, item_no) unique.
var UniqueFields = map[Collection]string{
	SampleLots: "item_no",
	Specimens:  "specimen_id",
}

var (
	ErrNotFound          = errors.New("document not found")
	ErrDuplicate         = errors.New("duplicate unique key")
	ErrMissingID         = errors.New("document has no id")
	ErrUnknownCollection = errors.New("unknown collection")
)

type Sort struct {
	Field string
	Desc  bool
}

type FindOptions struct {
	Sort  []Sort
	Skip  int
	Limit int // 0 means no limit
}

// Newest sorts by creation time, latest first.
var Newest = []Sort{{Field: "created_at", Desc: true}}

type Document struct {
	ID  string
	Raw json.RawMessage
}

func (d Document) Decode(v any) error {
	if err := json.Unmarshal(d.Raw, v); err != nil {
		return fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	return nil
}

type Store interface {
	Insert(ctx context.Context, coll Collection, doc any) error
	Update(ctx context.Context, coll Collection, doc any) error
	Get(ctx context.Context, coll Collection, id string) (Document, error)
	Find(ctx context.Context, coll Collection, pred search.Predicate, opts FindOptions) ([]Document, error)
	Count(ctx context.Context, coll Collection, pred search.Predicate) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

// Meta is what a store extracts from a document before persisting it.
type Meta struct {
	ID        string
	CreatedAt time.Time
	UniqueKey string
	Fields    map[string]any
}

// Encode marshals doc and extracts the id, creation time and unique key.
func Encode(coll Collection, doc any) ([]byte, Meta, error) {
	if !Known(coll) {
		return nil, Meta{}, fmt.Errorf("%w: %s", ErrUnknownCollection, coll)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("encode %s document: %w", coll, err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, Meta{}, fmt.Errorf("encode %s document: %w", coll, err)
	}

	meta := Meta{Fields: fields}
	meta.ID, _ = fields["id"].(string)
	if meta.ID == "" {
		return nil, Meta{}, ErrMissingID
	}
	if s, ok := fields["created_at"].(string); ok {
		meta.CreatedAt, _ = time.Parse(time.RFC3339Nano, s)
	}
	if f, ok := UniqueFields[coll]; ok {
		meta.UniqueKey, _ = fields[f].(string)
	}
	return raw, meta, nil
}

func Known(coll Collection) bool {
	for _, c := range Collections {
		if c == coll {
			return true
		}
	}
	return false
}

// FindAs runs Find and decodes every document into T.
func FindAs[T any](ctx context.Context, s Store, coll Collection, pred search.Predicate, opts FindOptions) ([]T, error) {
	docs, err := s.Find(ctx, coll, pred, opts)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := d.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// GetAs loads one document by id and decodes it into T.
func GetAs[T any](ctx context.Context, s Store, coll Collection, id string) (*T, error) {
	doc, err := s.Get(ctx, coll, id)
	if err != nil {
		return nil, err
	}
	var v T
	if err := doc.Decode(&v); err != nil {
		return nil, err
	}
	return &v, nil
}
