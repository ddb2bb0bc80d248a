package traceability

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/Alijeyrad/labtrace_backend/config"
	"github.com/Alijeyrad/labtrace_backend/internal/domain"
	"github.com/Alijeyrad/labtrace_backend/internal/service/lifecycle"
	"github.com/Alijeyrad/labtrace_backend/internal/service/resolve"
	"github.com/Alijeyrad/labtrace_backend/internal/store"
	"github.com/Alijeyrad/labtrace_backend/internal/store/memory"
	"github.com/Alijeyrad/labtrace_backend/pkg/ref"
)

type TraceabilitySuite struct {
	suite.Suite
	ctx   context.Context
	store *memory.Store
	svc   Service
	clock time.Time
}

func TestTraceabilitySuite(t *testing.T) {
	suite.Run(t, new(TraceabilitySuite))
}

func (s *TraceabilitySuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.New()
	s.svc = New(s.store, resolve.New(s.store, nil), config.TraceabilityConfig{
		JobsPageSize:         20,
		LotsPageSize:         20,
		PreparationsPageSize: 10,
	}, nil)
	s.clock = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
}

// tick hands out strictly increasing creation times.
func (s *TraceabilitySuite) tick() time.Time {
	s.clock = s.clock.Add(time.Minute)
	return s.clock
}

func (s *TraceabilitySuite) insert(coll store.Collection, doc any) {
	s.Require().NoError(s.store.Insert(s.ctx, coll, doc))
}

func (s *TraceabilitySuite) client(name string) domain.Client {
	c := domain.Client{ClientName: name}
	c.Touch(s.tick())
	s.insert(store.Clients, c)
	return c
}

func (s *TraceabilitySuite) job(jobID string, client ref.Ref, mutate ...func(*domain.Job)) domain.Job {
	j := domain.Job{JobID: jobID, ClientID: client, ProjectName: "Project " + jobID}
	j.Touch(s.tick())
	for _, m := range mutate {
		m(&j)
	}
	s.insert(store.Jobs, j)
	return j
}

func (s *TraceabilitySuite) method(name string) domain.TestMethod {
	m := domain.TestMethod{TestName: name}
	m.Touch(s.tick())
	s.insert(store.TestMethods, m)
	return m
}

func (s *TraceabilitySuite) lot(jobRef ref.Ref, itemNo string, methods ...ref.Ref) domain.SampleLot {
	l := domain.SampleLot{JobID: jobRef, ItemNo: itemNo, TestMethodOIDs: methods}
	l.Touch(s.tick())
	s.insert(store.SampleLots, l)
	return l
}

func (s *TraceabilitySuite) specimens(ids ...string) []ref.Ref {
	out := make([]ref.Ref, 0, len(ids))
	for _, id := range ids {
		sp := domain.Specimen{SpecimenID: id}
		sp.Touch(s.tick())
		s.insert(store.Specimens, sp)
		out = append(out, sp.Ref())
	}
	return out
}

func (s *TraceabilitySuite) prep(requestNo string, items ...domain.PreparationItem) domain.PreparationRequest {
	p := domain.PreparationRequest{RequestNo: requestNo, RequestItems: items}
	p.Touch(s.tick())
	s.insert(store.PreparationRequests, p)
	return p
}

// scenario builds job J-2024-007 with two lots; lot 001 has a preparation
// request with three specimens.
func (s *TraceabilitySuite) scenario() (domain.Job, domain.SampleLot, domain.SampleLot) {
	c := s.client("GRIPCO Ltd")
	tensile := s.method("Tensile")
	bend := s.method("Bend")
	j := s.job("J-2024-007", c.Ref())
	l1 := s.lot(j.Ref(), "J-2024-007-001", tensile.Ref(), bend.Ref())
	l2 := s.lot(ref.String("J-2024-007"), "J-2024-007-002", tensile.Ref())
	s.prep("PR-001", domain.PreparationItem{
		RequestID:     ref.String(l1.ID.Hex()),
		TestMethodOID: tensile.Ref(),
		SpecimenOIDs:  s.specimens("SP-1", "SP-2", "SP-3"),
	})
	return j, l1, l2
}

func (s *TraceabilitySuite) TestScenarioCompleteInfo() {
	j, _, _ := s.scenario()

	for _, id := range []string{"J-2024-007", j.ID.Hex()} {
		info, err := s.svc.JobCompleteInfo(s.ctx, id)
		s.Require().NoError(err, id)

		s.Equal("J-2024-007", info.Job.JobID)
		s.Equal("GRIPCO Ltd", info.Job.ClientName)
		s.Equal(lifecycle.InPreparation, info.Job.Status)
		s.Equal(2, info.Job.ItemsCount)
		s.Equal(3, info.Job.SpecimensCount)

		s.Require().Len(info.Lots, 2)
		s.Equal("J-2024-007-001", info.Lots[0].ItemNo)
		s.Equal(lifecycle.InPreparation, info.Lots[0].Status)
		s.Equal(3, info.Lots[0].SpecimensCount)
		s.Equal([]string{"Tensile", "Bend"}, info.Lots[0].TestMethodNames)

		s.Equal("J-2024-007-002", info.Lots[1].ItemNo)
		s.Equal(lifecycle.Received, info.Lots[1].Status)
		s.Equal(0, info.Lots[1].SpecimensCount)
		s.Equal([]string{"Tensile"}, info.Lots[1].TestMethodNames)
	}
}

func (s *TraceabilitySuite) TestCompleteInfoNotFound() {
	_, err := s.svc.JobCompleteInfo(s.ctx, "J-nope")
	s.True(errors.Is(err, ErrJobNotFound))
}

func (s *TraceabilitySuite) TestScenarioLotList() {
	s.scenario()

	env, err := s.svc.ListSampleLots(s.ctx, 1, "")
	s.Require().NoError(err)
	s.Equal(2, env.Count)
	s.Nil(env.Next)
	s.Nil(env.Previous)

	// newest first
	s.Require().Len(env.Results, 2)
	l2, l1 := env.Results[0], env.Results[1]
	s.Equal("J-2024-007-002", l2.ItemNo)
	s.Equal("J-2024-007", l2.JobID)
	s.Equal("GRIPCO Ltd", l2.ClientName)
	s.Equal(lifecycle.Received, l2.Status)

	s.Equal("J-2024-007", l1.JobID)
	s.Equal(lifecycle.InPreparation, l1.Status)
	s.Equal(3, l1.SpecimensCount)
	s.Len(l1.TestMethodOIDs, 2)
}

func (s *TraceabilitySuite) TestLotSearchMatchesParentJob() {
	s.scenario()
	other := s.job("J-2024-008", ref.Ref{}, func(j *domain.Job) { j.ProjectName = "Refinery" })
	s.lot(other.Ref(), "J-2024-008-001")

	env, err := s.svc.ListSampleLots(s.ctx, 1, "refinery")
	s.Require().NoError(err)
	s.Require().Len(env.Results, 1)
	s.Equal("J-2024-008-001", env.Results[0].ItemNo)

	env, err = s.svc.ListSampleLots(s.ctx, 1, "007-002")
	s.Require().NoError(err)
	s.Require().Len(env.Results, 1)
	s.Equal("J-2024-007-002", env.Results[0].ItemNo)
}

func (s *TraceabilitySuite) TestUnresolvedParentKeepsRow() {
	s.lot(ref.String("J-GONE"), "J-GONE-001")

	env, err := s.svc.ListSampleLots(s.ctx, 1, "")
	s.Require().NoError(err)
	s.Require().Len(env.Results, 1)
	s.Equal("J-GONE", env.Results[0].JobID)
	s.Empty(env.Results[0].ClientName)
	s.Equal(lifecycle.Received, env.Results[0].Status)
}

func (s *TraceabilitySuite) TestJobSearchGRIPCO() {
	off := false
	s.job("J-GRIPCO-1", ref.Ref{})
	s.job("J-2", ref.Ref{}, func(j *domain.Job) { j.ProjectName = "gripco pipeline" })
	s.job("J-3", ref.Ref{}, func(j *domain.Job) { j.ReceivedBy = "Gripco desk" })
	s.job("J-4", ref.Ref{}, func(j *domain.Job) { j.EndUser = "GRIPCO" })
	s.job("J-5", ref.Ref{}, func(j *domain.Job) { j.EndUser = "GRIPCO"; j.IsActive = &off })
	s.job("J-6", ref.Ref{}, func(j *domain.Job) { j.Remarks = "GRIPCO" })

	env, err := s.svc.ListJobs(s.ctx, 1, "GRIPCO")
	s.Require().NoError(err)
	s.Equal(4, env.Count)
	ids := make([]string, 0, len(env.Results))
	for _, r := range env.Results {
		ids = append(ids, r.JobID)
	}
	s.ElementsMatch([]string{"J-GRIPCO-1", "J-2", "J-3", "J-4"}, ids)
}

func (s *TraceabilitySuite) TestJobListPagination() {
	for i := 1; i <= 41; i++ {
		s.job(fmt.Sprintf("J-%03d", i), ref.Ref{})
	}

	p1, err := s.svc.ListJobs(s.ctx, 1, "")
	s.Require().NoError(err)
	s.Equal(41, p1.Count)
	s.Len(p1.Results, 20)
	s.Equal("J-041", p1.Results[0].JobID)
	s.Nil(p1.Previous)
	s.Require().NotNil(p1.Next)
	s.Equal(2, *p1.Next)

	p3, err := s.svc.ListJobs(s.ctx, 3, "")
	s.Require().NoError(err)
	s.Len(p3.Results, 1)
	s.Nil(p3.Next)
	s.Require().NotNil(p3.Previous)
	s.Equal(2, *p3.Previous)
}

func (s *TraceabilitySuite) TestJobStatusPrecedence() {
	c := s.client("ACME")
	reported := s.job("J-R", c.Ref())
	discarded := s.job("J-D", c.Ref())
	received := s.job("J-N", c.Ref())

	lr := s.lot(reported.Ref(), "J-R-001")
	ld := s.lot(ref.String("J-D"), "J-D-001")
	s.lot(received.Ref(), "J-N-001")

	pr := s.prep("PR-R", domain.PreparationItem{RequestID: lr.Ref(), SpecimenOIDs: s.specimens("R-1")})
	s.prep("PR-D", domain.PreparationItem{RequestID: ld.Ref(), SpecimenOIDs: s.specimens("D-1", "D-2")})

	cert := domain.Certificate{CertificateNo: "C-1", PreparationID: pr.Ref()}
	cert.Touch(s.tick())
	s.insert(store.Certificates, cert)

	disc := domain.DiscardRecord{SampleID: ref.String(discarded.JobID), Reason: "expired"}
	disc.Touch(s.tick())
	s.insert(store.DiscardRecords, disc)

	env, err := s.svc.ListJobs(s.ctx, 1, "")
	s.Require().NoError(err)
	byID := map[string]JobRow{}
	for _, r := range env.Results {
		byID[r.JobID] = r
	}

	s.Equal(lifecycle.Reported, byID["J-R"].Status)
	s.Equal(1, byID["J-R"].SpecimensCount)
	s.Equal(lifecycle.Discarded, byID["J-D"].Status)
	s.Equal(2, byID["J-D"].SpecimensCount)
	s.Equal(lifecycle.Received, byID["J-N"].Status)
	s.Equal(1, byID["J-N"].SampleCount)
	s.Equal("ACME", byID["J-N"].ClientName)
}

func (s *TraceabilitySuite) TestSearchPreparations() {
	j, l1, l2 := s.scenario()
	s.prep("PR-002",
		domain.PreparationItem{RequestID: l2.Ref(), SpecimenOIDs: s.specimens("SP-9")},
		domain.PreparationItem{SpecimenOIDs: s.specimens("SP-ORPHAN")},
		domain.PreparationItem{RequestID: l1.Ref()},
	)
	s.prep("PR-OTHER")

	env, err := s.svc.SearchPreparations(s.ctx, 1, "")
	s.Require().NoError(err)
	s.Equal(3, env.Count)
	s.Require().Len(env.Results, 3)

	other, pr2, pr1 := env.Results[0], env.Results[1], env.Results[2]
	s.Equal("PR-OTHER", other.RequestNo)
	s.Zero(other.NoOfRequestItems)
	s.Empty(other.SpecimenIDs)
	s.Empty(other.JobID)

	s.Equal("PR-002", pr2.RequestNo)
	s.Equal(2, pr2.NoOfRequestItems)
	s.Equal([]string{"SP-9"}, pr2.SpecimenIDs)
	s.Equal(1, pr2.SpecimensCount)
	s.Equal(j.JobID, pr2.JobID)

	s.Equal("PR-001", pr1.RequestNo)
	s.Equal(1, pr1.NoOfRequestItems)
	s.Equal([]string{"SP-1", "SP-2", "SP-3"}, pr1.SpecimenIDs)
	s.Equal(3, pr1.SpecimensCount)
	s.Equal("J-2024-007", pr1.JobID)
	s.Equal("GRIPCO Ltd", pr1.ClientName)
	s.Equal("Project J-2024-007", pr1.ProjectName)

	env, err = s.svc.SearchPreparations(s.ctx, 1, "j-2024-007")
	s.Require().NoError(err)
	s.Equal(2, env.Count)

	env, err = s.svc.SearchPreparations(s.ctx, 1, "other")
	s.Require().NoError(err)
	s.Equal(1, env.Count)
}

func (s *TraceabilitySuite) TestExportJobs() {
	s.scenario()
	s.job("J-X", ref.Ref{})

	rows, err := s.svc.ExportJobs(s.ctx, "")
	s.Require().NoError(err)
	s.Len(rows, 2)

	rows, err = s.svc.ExportJobs(s.ctx, "2024-007")
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal(2, rows[0].SampleCount)
}
