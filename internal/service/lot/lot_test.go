package lot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/Alijeyrad/labtrace_backend/config"
	"github.com/Alijeyrad/labtrace_backend/internal/domain"
	"github.com/Alijeyrad/labtrace_backend/internal/service/resolve"
	"github.com/Alijeyrad/labtrace_backend/internal/store"
	"github.com/Alijeyrad/labtrace_backend/internal/store/memory"
	"github.com/Alijeyrad/labtrace_backend/pkg/events"
	"github.com/Alijeyrad/labtrace_backend/pkg/ref"
)

type LotServiceSuite struct {
	suite.Suite
	ctx    context.Context
	store  *memory.Store
	events *events.Recorder
	job    domain.Job
}

func TestLotServiceSuite(t *testing.T) {
	suite.Run(t, new(LotServiceSuite))
}

func (s *LotServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.New()
	s.events = &events.Recorder{}

	s.job = domain.Job{JobID: "J-2024-007", ProjectName: "Pipeline"}
	s.job.Touch(time.Now())
	s.Require().NoError(s.store.Insert(s.ctx, store.Jobs, s.job))
}

func (s *LotServiceSuite) service(st store.Store, counter Counter) Service {
	return New(st, resolve.New(st, nil), counter, s.events, config.TraceabilityConfig{AllocationRetries: 3}, nil)
}

func (s *LotServiceSuite) seedLot(jobRef ref.Ref, itemNo string, active bool) {
	l := domain.SampleLot{JobID: jobRef, ItemNo: itemNo}
	l.Touch(time.Now())
	if !active {
		l.IsActive = &active
	}
	s.Require().NoError(s.store.Insert(s.ctx, store.SampleLots, l))
}

func (s *LotServiceSuite) TestFirstLotIs001() {
	svc := s.service(s.store, NewLocalCounter())

	next, err := svc.NextItemNo(s.ctx, "J-2024-007")
	s.Require().NoError(err)
	s.Equal("J-2024-007-001", next)

	lot, err := svc.Create(s.ctx, CreateRequest{JobID: "J-2024-007"})
	s.Require().NoError(err)
	s.Equal("J-2024-007-001", lot.ItemNo)
	s.True(lot.JobID.Equal(s.job.Ref()))
	s.Equal(ref.KindNative, lot.JobID.Kind())
}

func (s *LotServiceSuite) TestGapContinuesFromHighest() {
	s.seedLot(s.job.Ref(), "J-2024-007-001", true)
	s.seedLot(ref.String("J-2024-007"), "J-2024-007-003", true)
	svc := s.service(s.store, NoCounter{})

	next, err := svc.NextItemNo(s.ctx, s.job.ID.Hex())
	s.Require().NoError(err)
	s.Equal("J-2024-007-004", next)

	lot, err := svc.Create(s.ctx, CreateRequest{JobID: s.job.ID.Hex()})
	s.Require().NoError(err)
	s.Equal("J-2024-007-004", lot.ItemNo)
}

func (s *LotServiceSuite) TestInactiveLotsKeepTheirNumbers() {
	s.seedLot(s.job.Ref(), "J-2024-007-005", false)
	svc := s.service(s.store, NoCounter{})

	lot, err := svc.Create(s.ctx, CreateRequest{JobID: "J-2024-007"})
	s.Require().NoError(err)
	s.Equal("J-2024-007-006", lot.ItemNo)
}

func (s *LotServiceSuite) TestUnparseableSuffixFallsBackTo001() {
	s.seedLot(s.job.Ref(), "J-2024-007-abc", true)
	s.seedLot(s.job.Ref(), "legacy", true)
	svc := s.service(s.store, NoCounter{})

	next, err := svc.NextItemNo(s.ctx, "J-2024-007")
	s.Require().NoError(err)
	s.Equal("J-2024-007-001", next)
}

func (s *LotServiceSuite) TestPreviewReservesNothing() {
	svc := s.service(s.store, NewLocalCounter())
	a, err := svc.NextItemNo(s.ctx, "J-2024-007")
	s.Require().NoError(err)
	b, err := svc.NextItemNo(s.ctx, "J-2024-007")
	s.Require().NoError(err)
	s.Equal(a, b)
}

func (s *LotServiceSuite) TestExplicitItemNo() {
	svc := s.service(s.store, NoCounter{})

	lot, err := svc.Create(s.ctx, CreateRequest{JobID: "J-2024-007", ItemNo: "J-2024-007-010", TestMethodOIDs: []string{"", "TM-1"}})
	s.Require().NoError(err)
	s.Equal("J-2024-007-010", lot.ItemNo)
	s.Len(lot.TestMethodOIDs, 1)

	_, err = svc.Create(s.ctx, CreateRequest{JobID: "J-2024-007", ItemNo: "J-2024-007-010"})
	s.True(errors.Is(err, ErrDuplicateItemNo))

	lot, err = svc.Create(s.ctx, CreateRequest{JobID: "J-2024-007"})
	s.Require().NoError(err)
	s.Equal("J-2024-007-011", lot.ItemNo)
}

func (s *LotServiceSuite) TestUnknownJob() {
	svc := s.service(s.store, NoCounter{})
	_, err := svc.Create(s.ctx, CreateRequest{JobID: "J-missing"})
	s.True(errors.Is(err, resolve.ErrJobNotFound))

	_, err = svc.Create(s.ctx, CreateRequest{})
	s.True(errors.Is(err, ErrJobRequired))
}

func (s *LotServiceSuite) TestConcurrentCreatesAreUnique() {
	svc := s.service(s.store, NewLocalCounter())

	const n = 25
	var wg sync.WaitGroup
	items := make(chan string, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lot, err := svc.Create(s.ctx, CreateRequest{JobID: "J-2024-007"})
			if err != nil {
				errs <- err
				return
			}
			items <- lot.ItemNo
		}()
	}
	wg.Wait()
	close(items)
	close(errs)

	for err := range errs {
		s.Fail("create failed", err.Error())
	}
	seen := map[string]bool{}
	for it := range items {
		s.False(seen[it], "duplicate %s", it)
		seen[it] = true
	}
	s.Len(seen, n)
	s.True(seen[fmt.Sprintf("J-2024-007-%03d", n)])
}

func (s *LotServiceSuite) TestConflictIsRetried() {
	st := &conflictingStore{Store: s.store, failures: 2}
	svc := s.service(st, NoCounter{})

	lot, err := svc.Create(s.ctx, CreateRequest{JobID: "J-2024-007"})
	s.Require().NoError(err)
	s.Equal("J-2024-007-001", lot.ItemNo)

	got := s.events.Events()
	s.Require().Len(got, 1)
	ev := got[0].Payload.(events.LotCreatedEvent)
	s.Equal(3, ev.Attempts)
	s.True(ev.Allocated)
}

func (s *LotServiceSuite) TestExhaustedRetriesSurfaceRace() {
	st := &conflictingStore{Store: s.store, failures: 10}
	svc := s.service(st, NoCounter{})

	_, err := svc.Create(s.ctx, CreateRequest{JobID: "J-2024-007"})
	s.True(errors.Is(err, ErrAllocationRace))
	s.Empty(s.events.Events())
}

// conflictingStore rejects the first lot inserts as duplicates, the way a
// concurrent writer winning the unique index would.
type conflictingStore struct {
	store.Store
	mu       sync.Mutex
	failures int
}

func (c *conflictingStore) Insert(ctx context.Context, coll store.Collection, doc any) error {
	c.mu.Lock()
	fail := coll == store.SampleLots && c.failures > 0
	if fail {
		c.failures--
	}
	c.mu.Unlock()
	if fail {
		return store.ErrDuplicate
	}
	return c.Store.Insert(ctx, coll, doc)
}

func TestParseSuffix(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"J-2024-007-001", 1, true},
		{"J-2024-007-1000", 1000, true},
		{"J-003", 3, true},
		{"J-abc", 0, false},
		{"J-", 0, false},
		{"J-+1", 0, false},
		{"nodash", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseSuffix(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseSuffix(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFormatItemNo(t *testing.T) {
	if got := FormatItemNo("J", 4); got != "J-004" {
		t.Errorf("FormatItemNo = %q", got)
	}
	if got := FormatItemNo("J", 1234); got != "J-1234" {
		t.Errorf("FormatItemNo = %q", got)
	}
}
