package traceability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/Alijeyrad/labtrace_backend/internal/domain"
	"github.com/Alijeyrad/labtrace_backend/internal/search"
	"github.com/Alijeyrad/labtrace_backend/internal/service/resolve"
	"github.com/Alijeyrad/labtrace_backend/internal/store"
	"github.com/Alijeyrad/labtrace_backend/pkg/ref"
)

func (s *service) ListSampleLots(ctx context.Context, page int, q string) (search.Envelope[LotRow], error) {
	defer s.observe(ctx, "list_sample_lots", time.Now())

	p := search.NewPage(page, pageSize(s.cfg.LotsPageSize, 20))

	related, err := s.lotsOfMatchingJobs(ctx, q)
	if err != nil {
		return search.Envelope[LotRow]{}, err
	}
	pred := search.Filter{
		Query:      q,
		ActiveOnly: true,
		Fields:     LotSearchFields,
		Related:    []search.Predicate{related},
	}.Build()

	lots, count, err := fetchPage[domain.SampleLot](ctx, s.store, store.SampleLots, pred, p)
	if err != nil {
		return search.Envelope[LotRow]{}, fmt.Errorf("list sample lots: %w", err)
	}

	var (
		jobs    resolve.Index[domain.Job]
		clients resolve.Index[domain.Client]
		methods resolve.Index[domain.TestMethod]
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		jobs, err = s.resolver.Jobs(gctx, lo.Map(lots, func(l domain.SampleLot, _ int) ref.Ref { return l.JobID }))
		if err != nil {
			return err
		}
		clientRefs := lo.MapToSlice(jobs, func(_ string, j *domain.Job) ref.Ref { return j.ClientID })
		clients, err = s.resolver.Clients(gctx, clientRefs)
		return err
	})
	g.Go(func() error {
		var err error
		methods, err = s.resolver.TestMethods(gctx, lo.FlatMap(lots, func(l domain.SampleLot, _ int) []ref.Ref { return l.TestMethodOIDs }))
		return err
	})
	if err := g.Wait(); err != nil {
		return search.Envelope[LotRow]{}, err
	}

	lotRefs := lo.Map(lots, func(l domain.SampleLot, _ int) ref.Ref { return l.Ref() })
	samples := append([]ref.Ref{}, lotRefs...)
	for _, l := range lots {
		if j := jobs.Lookup(l.JobID); j != nil {
			samples = append(samples, j.Keys()...)
		}
	}
	kids, err := s.loadChildren(ctx, lotRefs, samples)
	if err != nil {
		return search.Envelope[LotRow]{}, err
	}

	rows := make([]LotRow, 0, len(lots))
	for i := range lots {
		rows = append(rows, lotRow(&lots[i], jobs.Lookup(lots[i].JobID), clients, methods, kids))
	}
	return search.NewEnvelope(p, count, rows), nil
}

// lotsOfMatchingJobs matches lots whose parent job matches q on the job
// search fields. It returns nil when q is blank or no job matches.
func (s *service) lotsOfMatchingJobs(ctx context.Context, q string) (search.Predicate, error) {
	keys, err := s.matchingJobKeys(ctx, q)
	if err != nil || len(keys) == 0 {
		return nil, err
	}
	return search.RefsIn(domain.FieldJobID, keys...), nil
}

func (s *service) matchingJobKeys(ctx context.Context, q string) ([]ref.Ref, error) {
	if strings.TrimSpace(q) == "" {
		return nil, nil
	}
	jobs, err := store.FindAs[domain.Job](ctx, s.store, store.Jobs,
		search.BuildFilter(q, true, JobSearchFields...), store.FindOptions{})
	if err != nil {
		return nil, fmt.Errorf("match jobs: %w", err)
	}
	return lo.FlatMap(jobs, func(j domain.Job, _ int) []ref.Ref { return j.Keys() }), nil
}

// lotRow builds the view of one lot. job may be nil when the parent did
// not resolve; the row then carries the raw job reference.
func lotRow(l *domain.SampleLot, job *domain.Job, clients resolve.Index[domain.Client], methods resolve.Index[domain.TestMethod], kids children) LotRow {
	samples := []ref.Ref{l.Ref()}
	if job != nil {
		samples = append(samples, job.Keys()...)
	}
	res := kids.derive(1, samples, []ref.Ref{l.Ref()})

	row := LotRow{
		ID:              l.ID.Hex(),
		ItemNo:          l.ItemNo,
		Description:     l.Description,
		TestMethodOIDs:  make([]string, 0, len(l.TestMethodOIDs)),
		TestMethodNames: make([]string, 0, len(l.TestMethodOIDs)),
		Status:          res.Status,
		SpecimensCount:  res.SpecimensCount,
		CreatedAt:       l.CreatedAt,
	}
	for _, tm := range l.TestMethodOIDs {
		if tm.IsZero() {
			continue
		}
		row.TestMethodOIDs = append(row.TestMethodOIDs, tm.String())
		if m := methods.Lookup(tm); m != nil {
			row.TestMethodNames = append(row.TestMethodNames, m.TestName)
		}
	}

	switch {
	case job != nil:
		row.JobID = job.JobID
		if c := clients.Lookup(job.ClientID); c != nil {
			row.ClientName = c.ClientName
		}
	case l.JobID.Kind() == ref.KindString:
		row.JobID = l.JobID.String()
	}
	return row
}
