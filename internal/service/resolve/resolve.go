// Package resolve looks up referenced documents in batches, tolerating
// foreign keys stored either as native ids or as human identifiers.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Alijeyrad/labtrace_backend/internal/domain"
	"github.com/Alijeyrad/labtrace_backend/internal/search"
	"github.com/Alijeyrad/labtrace_backend/internal/store"
	"github.com/Alijeyrad/labtrace_backend/pkg/ref"
)

const meterName = "github.com/Alijeyrad/labtrace_backend/internal/service/resolve"

var ErrJobNotFound = errors.New("job not found")

// Index maps canonical reference keys to documents.
type Index[T any] map[string]*T

// Lookup returns the document a reference points at, or nil.
func (ix Index[T]) Lookup(r ref.Ref) *T {
	if r.IsZero() {
		return nil
	}
	return ix[r.Key()]
}

type Resolver struct {
	store     store.Store
	log       *slog.Logger
	ambiguous metric.Int64Counter
	malformed metric.Int64Counter
}

func New(st store.Store, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	meter := otel.Meter(meterName)
	ambiguous, _ := meter.Int64Counter(
		"labtrace_ambiguous_references_total",
		metric.WithDescription("References that matched more than one document"),
	)
	malformed, _ := meter.Int64Counter(
		"labtrace_malformed_child_references_total",
		metric.WithDescription("Child references skipped because they could not be normalized"),
	)
	return &Resolver{store: st, log: log, ambiguous: ambiguous, malformed: malformed}
}

// Ambiguous records that key matched several documents of coll and the
// first one was kept.
func (r *Resolver) Ambiguous(ctx context.Context, coll store.Collection, key string, matches int) {
	r.log.WarnContext(ctx, "ambiguous reference, using first match",
		"collection", string(coll), "key", key, "matches", matches)
	r.ambiguous.Add(ctx, 1, metric.WithAttributes(attribute.String("collection", string(coll))))
}

// Malformed records n child references that were skipped.
func (r *Resolver) Malformed(ctx context.Context, coll store.Collection, n int) {
	if n <= 0 {
		return
	}
	r.log.DebugContext(ctx, "skipped malformed child references", "collection", string(coll), "count", n)
	r.malformed.Add(ctx, int64(n), metric.WithAttributes(attribute.String("collection", string(coll))))
}

// Job resolves one job by native id first, then by human job_id.
func (r *Resolver) Job(ctx context.Context, id ref.Ref) (*domain.Job, error) {
	if id.IsZero() {
		return nil, ErrJobNotFound
	}
	jobs, err := r.Jobs(ctx, []ref.Ref{id})
	if err != nil {
		return nil, err
	}
	job := jobs.Lookup(id)
	if job == nil {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job, nil
}

// Jobs resolves a batch of job references. A native match wins over a
// job_id match for the same key; among several job_id matches the oldest
// job wins and the ambiguity is reported.
func (r *Resolver) Jobs(ctx context.Context, refs []ref.Ref) (Index[domain.Job], error) {
	keys := lo.Uniq(ref.Keys(refs))
	ix := Index[domain.Job]{}
	if len(keys) == 0 {
		return ix, nil
	}

	byID, err := store.FindAs[domain.Job](ctx, r.store, store.Jobs,
		search.Conj(search.SoftDelete(), search.RefIn{Field: domain.FieldID, Keys: keys}),
		store.FindOptions{})
	if err != nil {
		return nil, fmt.Errorf("resolve jobs by id: %w", err)
	}
	for i := range byID {
		ix[byID[i].Ref().Key()] = &byID[i]
	}

	byJobID, err := store.FindAs[domain.Job](ctx, r.store, store.Jobs,
		search.Conj(search.SoftDelete(), search.RefIn{Field: domain.FieldJobID, Keys: keys}),
		store.FindOptions{Sort: []store.Sort{{Field: domain.FieldCreatedAt}}})
	if err != nil {
		return nil, fmt.Errorf("resolve jobs by job_id: %w", err)
	}
	grouped := lo.GroupBy(byJobID, func(j domain.Job) string { return ref.Parse(j.JobID).Key() })
	for key, group := range grouped {
		if _, ok := ix[key]; ok {
			continue
		}
		if len(group) > 1 {
			r.Ambiguous(ctx, store.Jobs, key, len(group))
		}
		ix[key] = &group[0]
	}
	return ix, nil
}

func (r *Resolver) Clients(ctx context.Context, refs []ref.Ref) (Index[domain.Client], error) {
	return byID(ctx, r.store, store.Clients, refs, domain.Client.Ref)
}

func (r *Resolver) TestMethods(ctx context.Context, refs []ref.Ref) (Index[domain.TestMethod], error) {
	return byID(ctx, r.store, store.TestMethods, refs, domain.TestMethod.Ref)
}

func (r *Resolver) Lots(ctx context.Context, refs []ref.Ref) (Index[domain.SampleLot], error) {
	return byID(ctx, r.store, store.SampleLots, refs, domain.SampleLot.Ref)
}

func (r *Resolver) Specimens(ctx context.Context, refs []ref.Ref) (Index[domain.Specimen], error) {
	return byID(ctx, r.store, store.Specimens, refs, domain.Specimen.Ref)
}

func byID[T any](ctx context.Context, st store.Store, coll store.Collection, refs []ref.Ref, idOf func(T) ref.Ref) (Index[T], error) {
	keys := lo.Uniq(ref.Keys(refs))
	ix := Index[T]{}
	if len(keys) == 0 {
		return ix, nil
	}
	docs, err := store.FindAs[T](ctx, st, coll,
		search.Conj(search.SoftDelete(), search.RefIn{Field: domain.FieldID, Keys: keys}),
		store.FindOptions{})
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", coll, err)
	}
	for i := range docs {
		ix[idOf(docs[i]).Key()] = &docs[i]
	}
	return ix, nil
}
