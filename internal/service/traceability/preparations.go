package traceability

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/Alijeyrad/labtrace_backend/internal/domain"
	"github.com/Alijeyrad/labtrace_backend/internal/search"
	"github.com/Alijeyrad/labtrace_backend/internal/service/resolve"
	"github.com/Alijeyrad/labtrace_backend/internal/store"
	"github.com/Alijeyrad/labtrace_backend/pkg/ref"
)

func (s *service) SearchPreparations(ctx context.Context, page int, q string) (search.Envelope[PreparationRow], error) {
	defer s.observe(ctx, "search_preparations", time.Now())

	p := search.NewPage(page, pageSize(s.cfg.PreparationsPageSize, 10))

	related, err := s.preparationsOfMatchingJobs(ctx, q)
	if err != nil {
		return search.Envelope[PreparationRow]{}, err
	}
	pred := search.Filter{
		Query:      q,
		ActiveOnly: true,
		Fields:     PreparationSearchFields,
		Related:    []search.Predicate{related},
	}.Build()

	reqs, count, err := fetchPage[domain.PreparationRequest](ctx, s.store, store.PreparationRequests, pred, p)
	if err != nil {
		return search.Envelope[PreparationRow]{}, fmt.Errorf("search preparation requests: %w", err)
	}

	lines, skipped := Unwind(reqs)
	s.resolver.Malformed(ctx, store.PreparationRequests, skipped)

	var (
		specimens resolve.Index[domain.Specimen]
		lots      resolve.Index[domain.SampleLot]
		jobs      resolve.Index[domain.Job]
		clients   resolve.Index[domain.Client]
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		specimens, err = s.resolver.Specimens(gctx, lo.Map(lines, func(l Line, _ int) ref.Ref { return l.Specimen }))
		return err
	})
	g.Go(func() error {
		var err error
		lots, err = s.resolver.Lots(gctx, lo.Map(lines, func(l Line, _ int) ref.Ref { return l.Lot }))
		if err != nil {
			return err
		}
		jobs, err = s.resolver.Jobs(gctx, lo.MapToSlice(lots, func(_ string, l *domain.SampleLot) ref.Ref { return l.JobID }))
		if err != nil {
			return err
		}
		clients, err = s.resolver.Clients(gctx, lo.MapToSlice(jobs, func(_ string, j *domain.Job) ref.Ref { return j.ClientID }))
		return err
	})
	if err := g.Wait(); err != nil {
		return search.Envelope[PreparationRow]{}, err
	}

	groups := Regroup(lines, func(r ref.Ref) (string, bool) {
		if sp := specimens.Lookup(r); sp != nil {
			return sp.SpecimenID, true
		}
		return "", false
	})
	byRequest := make(map[*domain.PreparationRequest]Group, len(groups))
	for _, gr := range groups {
		byRequest[gr.Request] = gr
	}

	rows := make([]PreparationRow, 0, len(reqs))
	for i := range reqs {
		req := &reqs[i]
		gr, ok := byRequest[req]
		if !ok {
			gr = Group{Request: req, SpecimenIDs: []string{}}
		}
		row := PreparationRow{
			ID:               req.ID.Hex(),
			RequestNo:        req.RequestNo,
			NoOfRequestItems: gr.Items,
			SpecimenIDs:      gr.SpecimenIDs,
			SpecimensCount:   gr.Specimens,
			CreatedAt:        req.CreatedAt,
		}
		if job := firstJob(gr.Lots, lots, jobs); job != nil {
			row.JobID = job.JobID
			row.ProjectName = job.ProjectName
			if c := clients.Lookup(job.ClientID); c != nil {
				row.ClientName = c.ClientName
			}
		}
		rows = append(rows, row)
	}
	return search.NewEnvelope(p, count, rows), nil
}

// preparationsOfMatchingJobs matches requests with an item referencing a
// lot of a job that matches q.
func (s *service) preparationsOfMatchingJobs(ctx context.Context, q string) (search.Predicate, error) {
	jobKeys, err := s.matchingJobKeys(ctx, q)
	if err != nil || len(jobKeys) == 0 {
		return nil, err
	}
	lots, err := s.activeLotsOf(ctx, jobKeys)
	if err != nil || len(lots) == 0 {
		return nil, err
	}
	return search.ElemMatch{
		Field: domain.FieldRequestItems,
		Where: search.RefsIn(domain.FieldRequestID, lo.Map(lots, func(l domain.SampleLot, _ int) ref.Ref { return l.Ref() })...),
	}, nil
}

// firstJob returns the job of the first lot, in item order, whose parent
// resolves.
func firstJob(lotRefs []ref.Ref, lots resolve.Index[domain.SampleLot], jobs resolve.Index[domain.Job]) *domain.Job {
	for _, r := range lotRefs {
		if l := lots.Lookup(r); l != nil {
			if j := jobs.Lookup(l.JobID); j != nil {
				return j
			}
		}
	}
	return nil
}
