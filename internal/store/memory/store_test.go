package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/Alijeyrad/labtrace_backend/internal/domain"
	"github.com/Alijeyrad/labtrace_backend/internal/search"
	"github.com/Alijeyrad/labtrace_backend/internal/store"
	"github.com/Alijeyrad/labtrace_backend/pkg/ref"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
	base  time.Time
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = New()
	s.ctx = context.Background()
	s.base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
}

func (s *MemoryStoreSuite) lot(itemNo string, offset time.Duration, active *bool) domain.SampleLot {
	l := domain.SampleLot{ItemNo: itemNo, JobID: ref.String("J-1")}
	l.IsActive = active
	l.Touch(s.base.Add(offset))
	return l
}

func (s *MemoryStoreSuite) TestInsertAndGet() {
	l := s.lot("J-1-001", 0, nil)
	s.Require().NoError(s.store.Insert(s.ctx, store.SampleLots, l))

	got, err := store.GetAs[domain.SampleLot](s.ctx, s.store, store.SampleLots, l.ID.Hex())
	s.Require().NoError(err)
	s.Equal("J-1-001", got.ItemNo)
	s.Equal("J-1", got.JobID.Key())

	_, err = s.store.Get(s.ctx, store.SampleLots, "missing")
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *MemoryStoreSuite) TestUniqueKeyRejected() {
	s.Require().NoError(s.store.Insert(s.ctx, store.SampleLots, s.lot("J-1-001", 0, nil)))

	err := s.store.Insert(s.ctx, store.SampleLots, s.lot("J-1-001", time.Second, nil))
	s.ErrorIs(err, store.ErrDuplicate)

	n, err := s.store.Count(s.ctx, store.SampleLots, nil)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *MemoryStoreSuite) TestConcurrentInsertsOfOneKey() {
	const writers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.store.Insert(s.ctx, store.Specimens, s.specimen("SP-1", time.Duration(i)*time.Millisecond))
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			s.ErrorIs(err, store.ErrDuplicate)
		}(i)
	}
	wg.Wait()
	s.Equal(1, succeeded)
}

func (s *MemoryStoreSuite) specimen(id string, offset time.Duration) domain.Specimen {
	sp := domain.Specimen{SpecimenID: id}
	sp.Touch(s.base.Add(offset))
	return sp
}

func (s *MemoryStoreSuite) TestFindSortsAndPaginates() {
	for i := 0; i < 5; i++ {
		s.Require().NoError(s.store.Insert(s.ctx, store.SampleLots,
			s.lot(fmt.Sprintf("J-1-%03d", i+1), time.Duration(i)*time.Minute, nil)))
	}

	docs, err := store.FindAs[domain.SampleLot](s.ctx, s.store, store.SampleLots, nil,
		store.FindOptions{Sort: store.Newest, Skip: 1, Limit: 2})
	s.Require().NoError(err)
	s.Require().Len(docs, 2)
	s.Equal("J-1-004", docs[0].ItemNo)
	s.Equal("J-1-003", docs[1].ItemNo)

	docs, err = store.FindAs[domain.SampleLot](s.ctx, s.store, store.SampleLots, nil,
		store.FindOptions{Sort: []store.Sort{{Field: "item_no"}}, Skip: 10})
	s.Require().NoError(err)
	s.Empty(docs)
}

func (s *MemoryStoreSuite) TestFindHonoursSoftDelete() {
	inactive := false
	active := true
	s.Require().NoError(s.store.Insert(s.ctx, store.SampleLots, s.lot("J-1-001", 0, nil)))
	s.Require().NoError(s.store.Insert(s.ctx, store.SampleLots, s.lot("J-1-002", time.Minute, &active)))
	s.Require().NoError(s.store.Insert(s.ctx, store.SampleLots, s.lot("J-1-003", 2*time.Minute, &inactive)))

	n, err := s.store.Count(s.ctx, store.SampleLots, search.SoftDelete())
	s.Require().NoError(err)
	s.Equal(2, n)
}

func (s *MemoryStoreSuite) TestUpdateMovesUniqueKey() {
	l := s.lot("J-1-001", 0, nil)
	s.Require().NoError(s.store.Insert(s.ctx, store.SampleLots, l))
	other := s.lot("J-1-002", time.Minute, nil)
	s.Require().NoError(s.store.Insert(s.ctx, store.SampleLots, other))

	l.ItemNo = "J-1-002"
	s.ErrorIs(s.store.Update(s.ctx, store.SampleLots, l), store.ErrDuplicate)

	l.ItemNo = "J-1-010"
	s.Require().NoError(s.store.Update(s.ctx, store.SampleLots, l))
	s.Require().NoError(s.store.Insert(s.ctx, store.SampleLots, s.lot("J-1-001", 2*time.Minute, nil)))
}

func (s *MemoryStoreSuite) TestReturnedDocumentsAreCopies() {
	l := s.lot("J-1-001", 0, nil)
	s.Require().NoError(s.store.Insert(s.ctx, store.SampleLots, l))

	doc, err := s.store.Get(s.ctx, store.SampleLots, l.ID.Hex())
	s.Require().NoError(err)
	for i := range doc.Raw {
		doc.Raw[i] = ' '
	}

	again, err := store.GetAs[domain.SampleLot](s.ctx, s.store, store.SampleLots, l.ID.Hex())
	s.Require().NoError(err)
	s.Equal("J-1-001", again.ItemNo)
}

func (s *MemoryStoreSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err := s.store.Find(ctx, store.Jobs, nil, store.FindOptions{})
	s.True(errors.Is(err, context.Canceled))
}
