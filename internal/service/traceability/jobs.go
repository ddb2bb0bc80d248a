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

func (s *service) ListJobs(ctx context.Context, page int, q string) (search.Envelope[JobRow], error) {
	defer s.observe(ctx, "list_jobs", time.Now())

	p := search.NewPage(page, pageSize(s.cfg.JobsPageSize, 20))
	pred := search.BuildFilter(q, true, JobSearchFields...)

	jobs, count, err := fetchPage[domain.Job](ctx, s.store, store.Jobs, pred, p)
	if err != nil {
		return search.Envelope[JobRow]{}, fmt.Errorf("list jobs: %w", err)
	}
	rows, err := s.jobRows(ctx, jobs)
	if err != nil {
		return search.Envelope[JobRow]{}, err
	}
	return search.NewEnvelope(p, count, rows), nil
}

func (s *service) ExportJobs(ctx context.Context, q string) ([]JobRow, error) {
	defer s.observe(ctx, "export_jobs", time.Now())

	jobs, err := store.FindAs[domain.Job](ctx, s.store, store.Jobs,
		search.BuildFilter(q, true, JobSearchFields...), store.FindOptions{Sort: store.Newest})
	if err != nil {
		return nil, fmt.Errorf("export jobs: %w", err)
	}
	return s.jobRows(ctx, jobs)
}

// jobRows joins a batch of jobs with their lots, clients and child
// records.
func (s *service) jobRows(ctx context.Context, jobs []domain.Job) ([]JobRow, error) {
	if len(jobs) == 0 {
		return []JobRow{}, nil
	}

	jobKeys := lo.FlatMap(jobs, func(j domain.Job, _ int) []ref.Ref { return j.Keys() })

	var (
		lots    []domain.SampleLot
		clients resolve.Index[domain.Client]
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lots, err = s.activeLotsOf(gctx, jobKeys)
		return err
	})
	g.Go(func() error {
		var err error
		clients, err = s.resolver.Clients(gctx, lo.Map(jobs, func(j domain.Job, _ int) ref.Ref { return j.ClientID }))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byJob := groupLotsByJob(jobs, lots)
	allLots := lo.Map(lots, func(l domain.SampleLot, _ int) ref.Ref { return l.Ref() })
	kids, err := s.loadChildren(ctx, allLots, jobKeys)
	if err != nil {
		return nil, err
	}

	rows := make([]JobRow, 0, len(jobs))
	for i := range jobs {
		rows = append(rows, jobRow(&jobs[i], byJob[i], clients, kids))
	}
	return rows, nil
}

func jobRow(job *domain.Job, lots []domain.SampleLot, clients resolve.Index[domain.Client], kids children) JobRow {
	lotRefs := lo.Map(lots, func(l domain.SampleLot, _ int) ref.Ref { return l.Ref() })
	res := kids.derive(len(lots), job.Keys(), lotRefs)

	row := JobRow{
		ID:             job.ID.Hex(),
		JobID:          job.JobID,
		ClientID:       job.ClientID.String(),
		ProjectName:    job.ProjectName,
		SampleCount:    len(lots),
		Status:         res.Status,
		ItemsCount:     res.ItemsCount,
		SpecimensCount: res.SpecimensCount,
		CreatedAt:      job.CreatedAt,
	}
	if c := clients.Lookup(job.ClientID); c != nil {
		row.ClientName = c.ClientName
	}
	return row
}

func (s *service) JobCompleteInfo(ctx context.Context, id string) (*CompleteInfo, error) {
	defer s.observe(ctx, "job_complete_info", time.Now())

	job, err := s.resolver.Job(ctx, ref.Parse(id))
	if err != nil {
		return nil, err
	}

	lots, err := store.FindAs[domain.SampleLot](ctx, s.store, store.SampleLots,
		search.Conj(search.SoftDelete(), search.RefsIn(domain.FieldJobID, job.Keys()...)),
		store.FindOptions{Sort: []store.Sort{{Field: domain.FieldItemNo}}})
	if err != nil {
		return nil, fmt.Errorf("load job lots: %w", err)
	}

	var (
		clients resolve.Index[domain.Client]
		methods resolve.Index[domain.TestMethod]
		kids    children
	)
	lotRefs := lo.Map(lots, func(l domain.SampleLot, _ int) ref.Ref { return l.Ref() })

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		clients, err = s.resolver.Clients(gctx, []ref.Ref{job.ClientID})
		return err
	})
	g.Go(func() error {
		var err error
		methods, err = s.resolver.TestMethods(gctx, lo.FlatMap(lots, func(l domain.SampleLot, _ int) []ref.Ref { return l.TestMethodOIDs }))
		return err
	})
	g.Go(func() error {
		var err error
		kids, err = s.loadChildren(gctx, lotRefs, append(job.Keys(), lotRefs...))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	info := &CompleteInfo{
		Job: JobDetail{
			JobRow:       jobRow(job, lots, clients, kids),
			ReceivedBy:   job.ReceivedBy,
			ReceivedDate: job.ReceivedDate,
			EndUser:      job.EndUser,
			Remarks:      job.Remarks,
		},
		Lots: make([]LotRow, 0, len(lots)),
	}
	for i := range lots {
		info.Lots = append(info.Lots, lotRow(&lots[i], job, clients, methods, kids))
	}
	return info, nil
}

// activeLotsOf loads the active lots whose job_id matches any of keys.
func (s *service) activeLotsOf(ctx context.Context, jobKeys []ref.Ref) ([]domain.SampleLot, error) {
	lots, err := store.FindAs[domain.SampleLot](ctx, s.store, store.SampleLots,
		search.Conj(search.SoftDelete(), search.RefsIn(domain.FieldJobID, jobKeys...)),
		store.FindOptions{Sort: []store.Sort{{Field: domain.FieldItemNo}}})
	if err != nil {
		return nil, fmt.Errorf("load lots: %w", err)
	}
	return lots, nil
}

// groupLotsByJob assigns each lot to the job its job_id points at. Native
// ids are indexed before human job_ids so they win on collision.
func groupLotsByJob(jobs []domain.Job, lots []domain.SampleLot) [][]domain.SampleLot {
	owner := map[string]int{}
	for i := range jobs {
		owner[jobs[i].Ref().Key()] = i
	}
	for i := range jobs {
		if k := ref.Parse(jobs[i].JobID).Key(); k != "" {
			if _, taken := owner[k]; !taken {
				owner[k] = i
			}
		}
	}

	out := make([][]domain.SampleLot, len(jobs))
	for _, l := range lots {
		if i, ok := owner[l.JobID.Key()]; ok {
			out[i] = append(out[i], l)
		}
	}
	return out
}
