// Package traceability answers where a sample is and what state it is in
// by joining jobs, lots, preparation requests, certificates and discard
// records that reference each other inconsistently.
package traceability

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/Alijeyrad/labtrace_backend/config"
	"github.com/Alijeyrad/labtrace_backend/internal/domain"
	"github.com/Alijeyrad/labtrace_backend/internal/search"
	"github.com/Alijeyrad/labtrace_backend/internal/service/lifecycle"
	"github.com/Alijeyrad/labtrace_backend/internal/service/resolve"
	"github.com/Alijeyrad/labtrace_backend/internal/store"
)

// Text fields searched by each list view.
var (
	JobSearchFields = []string{
		domain.FieldJobID, domain.FieldProjectName, domain.FieldReceivedBy, domain.FieldEndUser,
	}
	LotSearchFields         = []string{domain.FieldItemNo, domain.FieldDescription}
	PreparationSearchFields = []string{domain.FieldRequestNo, domain.FieldRemarks}
)

// ---------------------------------------------------------------------------
// Views
// ---------------------------------------------------------------------------

type JobRow struct {
	ID             string           `json:"id"`
	JobID          string           `json:"job_id"`
	ClientID       string           `json:"client_id"`
	ClientName     string           `json:"client_name"`
	ProjectName    string           `json:"project_name"`
	SampleCount    int              `json:"sample_count"`
	Status         lifecycle.Status `json:"status"`
	ItemsCount     int              `json:"items_count"`
	SpecimensCount int              `json:"specimens_count"`
	CreatedAt      time.Time        `json:"created_at"`
}

type JobDetail struct {
	JobRow
	ReceivedBy   string     `json:"received_by"`
	ReceivedDate *time.Time `json:"received_date"`
	EndUser      string     `json:"end_user"`
	Remarks      string     `json:"remarks"`
}

type LotRow struct {
	ID              string           `json:"id"`
	JobID           string           `json:"job_id"`
	ItemNo          string           `json:"item_no"`
	Description     string           `json:"description"`
	TestMethodOIDs  []string         `json:"test_method_oids"`
	TestMethodNames []string         `json:"test_method_names"`
	ClientName      string           `json:"client_name"`
	Status          lifecycle.Status `json:"status"`
	SpecimensCount  int              `json:"specimens_count"`
	CreatedAt       time.Time        `json:"created_at"`
}

type CompleteInfo struct {
	Job  JobDetail `json:"job"`
	Lots []LotRow  `json:"lots"`
}

type PreparationRow struct {
	ID               string    `json:"id"`
	JobID            string    `json:"job_id"`
	ClientName       string    `json:"client_name"`
	ProjectName      string    `json:"project_name"`
	RequestNo        string    `json:"request_no"`
	NoOfRequestItems int       `json:"no_of_request_items"`
	SpecimenIDs      []string  `json:"specimen_ids"`
	SpecimensCount   int       `json:"specimens_count"`
	CreatedAt        time.Time `json:"created_at"`
}

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

type Service interface {
	ListJobs(ctx context.Context, page int, q string) (search.Envelope[JobRow], error)
	ListSampleLots(ctx context.Context, page int, q string) (search.Envelope[LotRow], error)
	JobCompleteInfo(ctx context.Context, id string) (*CompleteInfo, error)
	SearchPreparations(ctx context.Context, page int, q string) (search.Envelope[PreparationRow], error)
	// ExportJobs returns every job row matching q, unpaged.
	ExportJobs(ctx context.Context, q string) ([]JobRow, error)
}

type service struct {
	store    store.Store
	resolver *resolve.Resolver
	cfg      config.TraceabilityConfig
	log      *slog.Logger
	duration metric.Float64Histogram
}

func New(st store.Store, res *resolve.Resolver, cfg config.TraceabilityConfig, log *slog.Logger) Service {
	if log == nil {
		log = slog.Default()
	}
	duration, _ := otel.Meter("github.com/Alijeyrad/labtrace_backend/internal/service/traceability").Float64Histogram(
		"labtrace_pipeline_duration_ms",
		metric.WithDescription("Aggregation pipeline duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	return &service{store: st, resolver: res, cfg: cfg, log: log, duration: duration}
}

func (s *service) observe(ctx context.Context, pipeline string, start time.Time) {
	ms := float64(time.Since(start).Microseconds()) / 1000
	s.duration.Record(ctx, ms, metric.WithAttributes(attribute.String("pipeline", pipeline)))
	s.log.DebugContext(ctx, "pipeline finished", "pipeline", pipeline, "ms", ms)
}

func pageSize(n, fallback int) int {
	if n < 1 {
		return fallback
	}
	return n
}

// fetchPage counts and loads one page of a collection concurrently.
func fetchPage[T any](ctx context.Context, st store.Store, coll store.Collection, pred search.Predicate, p search.Page) ([]T, int, error) {
	var (
		docs  []T
		count int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		count, err = st.Count(gctx, coll, pred)
		return err
	})
	g.Go(func() error {
		var err error
		docs, err = store.FindAs[T](gctx, st, coll, pred, store.FindOptions{
			Sort:  store.Newest,
			Skip:  p.Skip(),
			Limit: p.Limit(),
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return docs, count, nil
}
