package traceability

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/Alijeyrad/labtrace_backend/internal/domain"
	"github.com/Alijeyrad/labtrace_backend/internal/search"
	"github.com/Alijeyrad/labtrace_backend/internal/service/lifecycle"
	"github.com/Alijeyrad/labtrace_backend/internal/store"
	"github.com/Alijeyrad/labtrace_backend/pkg/ref"
)

// children holds every child record reachable from a batch of samples, so
// each row can derive its status without another read.
type children struct {
	preps    []domain.PreparationRequest
	certs    []domain.Certificate
	discards []domain.DiscardRecord
}

func (c children) derive(items int, sampleKeys, lotKeys []ref.Ref) lifecycle.Result {
	return lifecycle.Derive(lifecycle.Snapshot{
		Items:        items,
		SampleKeys:   sampleKeys,
		LotKeys:      lotKeys,
		Preparations: c.preps,
		Certificates: c.certs,
		Discards:     c.discards,
	})
}

// loadChildren reads the preparation requests that reference lots, the
// certificates issued for those requests, and the discard records that
// point at samples. Discards load alongside the preparation chain.
func (s *service) loadChildren(ctx context.Context, lots, samples []ref.Ref) (children, error) {
	lotKeys := lo.Uniq(ref.Keys(lots))
	sampleKeys := lo.Uniq(ref.Keys(samples))

	var c children
	g, gctx := errgroup.WithContext(ctx)

	if len(lotKeys) > 0 {
		g.Go(func() error {
			preps, err := store.FindAs[domain.PreparationRequest](gctx, s.store, store.PreparationRequests,
				search.Conj(search.SoftDelete(), search.ElemMatch{
					Field: domain.FieldRequestItems,
					Where: search.RefIn{Field: domain.FieldRequestID, Keys: lotKeys},
				}), store.FindOptions{})
			if err != nil {
				return fmt.Errorf("load preparation requests: %w", err)
			}
			c.preps = preps
			if len(preps) == 0 {
				return nil
			}

			prepKeys := lo.Map(preps, func(p domain.PreparationRequest, _ int) string { return p.Ref().Key() })
			certs, err := store.FindAs[domain.Certificate](gctx, s.store, store.Certificates,
				search.Conj(search.SoftDelete(), search.Or{
					search.RefIn{Field: domain.FieldRequestID, Keys: prepKeys},
					search.RefIn{Field: domain.FieldPreparationID, Keys: prepKeys},
				}), store.FindOptions{})
			if err != nil {
				return fmt.Errorf("load certificates: %w", err)
			}
			c.certs = certs
			return nil
		})
	}

	if len(sampleKeys) > 0 {
		g.Go(func() error {
			discards, err := store.FindAs[domain.DiscardRecord](gctx, s.store, store.DiscardRecords,
				search.Conj(search.SoftDelete(), search.RefIn{Field: domain.FieldSampleID, Keys: sampleKeys}),
				store.FindOptions{})
			if err != nil {
				return fmt.Errorf("load discard records: %w", err)
			}
			c.discards = discards
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return children{}, err
	}
	_, skipped := Unwind(c.preps)
	s.resolver.Malformed(ctx, store.PreparationRequests, skipped)
	return c, nil
}
