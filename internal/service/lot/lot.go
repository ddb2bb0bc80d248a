// Package lot registers sample lots and allocates their sequential item
// numbers.
package lot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/Alijeyrad/labtrace_backend/config"
	"github.com/Alijeyrad/labtrace_backend/internal/domain"
	"github.com/Alijeyrad/labtrace_backend/internal/search"
	"github.com/Alijeyrad/labtrace_backend/internal/service/resolve"
	"github.com/Alijeyrad/labtrace_backend/internal/store"
	"github.com/Alijeyrad/labtrace_backend/pkg/events"
	"github.com/Alijeyrad/labtrace_backend/pkg/ref"
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type CreateRequest struct {
	JobID          string
	ItemNo         string // allocated when empty
	Description    string
	TestMethodOIDs []string
}

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*domain.SampleLot, error)
	// NextItemNo previews the number the next create would receive. It
	// reserves nothing.
	NextItemNo(ctx context.Context, jobID string) (string, error)
}

type service struct {
	store    store.Store
	resolver *resolve.Resolver
	counter  Counter
	events   events.Publisher
	retries  int
	log      *slog.Logger
	now      func() time.Time

	conflicts metric.Int64Counter
}

func New(st store.Store, res *resolve.Resolver, counter Counter, pub events.Publisher, cfg config.TraceabilityConfig, log *slog.Logger) Service {
	if counter == nil {
		counter = NoCounter{}
	}
	if pub == nil {
		pub = events.Noop{}
	}
	if log == nil {
		log = slog.Default()
	}
	retries := cfg.AllocationRetries
	if retries < 1 {
		retries = 3
	}
	conflicts, _ := otel.Meter("github.com/Alijeyrad/labtrace_backend/internal/service/lot").Int64Counter(
		"labtrace_item_no_conflicts_total",
		metric.WithDescription("Lot inserts rejected because the allocated item_no was taken"),
	)
	return &service{
		store:     st,
		resolver:  res,
		counter:   counter,
		events:    pub,
		retries:   retries,
		log:       log,
		now:       time.Now,
		conflicts: conflicts,
	}
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*domain.SampleLot, error) {
	if strings.TrimSpace(req.JobID) == "" {
		return nil, ErrJobRequired
	}
	job, err := s.resolver.Job(ctx, ref.Parse(req.JobID))
	if err != nil {
		return nil, err
	}

	lot := domain.SampleLot{
		JobID:          job.Ref(),
		Description:    strings.TrimSpace(req.Description),
		TestMethodOIDs: parseRefs(req.TestMethodOIDs),
	}
	lot.Touch(s.now().UTC())

	attempts := 1
	allocated := strings.TrimSpace(req.ItemNo) == ""
	if allocated {
		attempts, err = s.allocate(ctx, job, &lot)
		if err != nil {
			return nil, err
		}
	} else {
		lot.ItemNo = strings.TrimSpace(req.ItemNo)
		if err := s.store.Insert(ctx, store.SampleLots, lot); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateItemNo, lot.ItemNo)
			}
			return nil, fmt.Errorf("insert lot: %w", err)
		}
	}

	s.log.InfoContext(ctx, "sample lot created",
		"lot_id", lot.ID.Hex(), "job_id", job.JobID, "item_no", lot.ItemNo, "attempts", attempts)

	err = s.events.Publish(ctx, events.LotCreated, events.LotCreatedEvent{
		LotID:     lot.ID.Hex(),
		JobID:     job.JobID,
		ItemNo:    lot.ItemNo,
		Allocated: allocated,
		Attempts:  attempts,
		At:        lot.CreatedAt,
	})
	if err != nil {
		s.log.WarnContext(ctx, "publish lot created failed", "lot_id", lot.ID.Hex(), "err", err)
	}
	return &lot, nil
}

func (s *service) NextItemNo(ctx context.Context, jobID string) (string, error) {
	if strings.TrimSpace(jobID) == "" {
		return "", ErrJobRequired
	}
	job, err := s.resolver.Job(ctx, ref.Parse(jobID))
	if err != nil {
		return "", err
	}
	stored, err := s.storedMax(ctx, job)
	if err != nil {
		return "", err
	}
	reserved, err := s.counter.Current(ctx, job.Ref().Key())
	if err != nil {
		return "", err
	}
	return FormatItemNo(itemPrefix(job), max(stored, reserved)+1), nil
}

// allocate picks the next number and inserts the lot, retrying when a
// concurrent create took the same item_no. It returns the attempts used.
func (s *service) allocate(ctx context.Context, job *domain.Job, lot *domain.SampleLot) (int, error) {
	key := job.Ref().Key()
	prefix := itemPrefix(job)

	for attempt := 1; attempt <= s.retries; attempt++ {
		floor, err := s.storedMax(ctx, job)
		if err != nil {
			return attempt, err
		}
		n, err := s.counter.Next(ctx, key, floor)
		if err != nil {
			return attempt, err
		}
		lot.ItemNo = FormatItemNo(prefix, n)

		err = s.store.Insert(ctx, store.SampleLots, *lot)
		if err == nil {
			return attempt, nil
		}
		if !errors.Is(err, store.ErrDuplicate) {
			return attempt, fmt.Errorf("insert lot: %w", err)
		}
		s.conflicts.Add(ctx, 1)
		s.log.DebugContext(ctx, "item_no taken, retrying", "item_no", lot.ItemNo, "attempt", attempt)
	}
	return s.retries, ErrAllocationRace
}

// storedMax is the highest numeric suffix among every lot of the job,
// inactive ones included since their numbers stay taken.
func (s *service) storedMax(ctx context.Context, job *domain.Job) (int, error) {
	lots, err := store.FindAs[domain.SampleLot](ctx, s.store, store.SampleLots,
		search.RefsIn(domain.FieldJobID, job.Keys()...), store.FindOptions{})
	if err != nil {
		return 0, fmt.Errorf("load job lots: %w", err)
	}
	highest := 0
	for _, l := range lots {
		if n, ok := ParseSuffix(l.ItemNo); ok && n > highest {
			highest = n
		}
	}
	return highest, nil
}

func itemPrefix(job *domain.Job) string {
	if job.JobID != "" {
		return job.JobID
	}
	return job.ID.Hex()
}

// FormatItemNo renders "<prefix>-NNN"; numbers past 999 widen.
func FormatItemNo(prefix string, n int) string {
	return fmt.Sprintf("%s-%03d", prefix, n)
}

// ParseSuffix reads the trailing "-NNN" of an item number.
func ParseSuffix(itemNo string) (int, bool) {
	i := strings.LastIndexByte(itemNo, '-')
	if i < 0 || i == len(itemNo)-1 {
		return 0, false
	}
	digits := itemNo[i+1:]
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseRefs(ids []string) []ref.Ref {
	out := make([]ref.Ref, 0, len(ids))
	for _, id := range ids {
		if r := ref.Parse(id); !r.IsZero() {
			out = append(out, r)
		}
	}
	return out
}
