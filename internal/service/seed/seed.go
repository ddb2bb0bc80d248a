// Package seed imports fixture documents into a store to bootstrap a lab
// database.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Alijeyrad/labtrace_backend/internal/domain"
	"github.com/Alijeyrad/labtrace_backend/internal/store"
	"github.com/Alijeyrad/labtrace_backend/pkg/ref"
)

var ErrInvalidID = errors.New("fixture id is not a 24 character hex ObjectID")

// Report counts what an import did per collection.
type Report struct {
	Inserted map[store.Collection]int
	// Skipped counts documents whose unique key was already taken.
	Skipped map[store.Collection]int
}

func (r Report) Total() int {
	n := 0
	for _, v := range r.Inserted {
		n += v
	}
	return n
}

type Importer struct {
	store  store.Store
	region string
	log    *slog.Logger
	now    func() time.Time
}

// NewImporter returns an importer that parses local phone numbers in
// region, e.g. "GB".
func NewImporter(st store.Store, region string, log *slog.Logger) *Importer {
	if log == nil {
		log = slog.Default()
	}
	return &Importer{store: st, region: strings.ToUpper(region), log: log, now: time.Now}
}

// Import inserts fixtures parents first. It stops at the first storage
// error other than a duplicate unique key.
func (im *Importer) Import(ctx context.Context, fx *Fixtures) (Report, error) {
	rep := Report{Inserted: map[store.Collection]int{}, Skipped: map[store.Collection]int{}}

	steps := []struct {
		coll store.Collection
		docs func() ([]any, error)
	}{
		{store.Clients, func() ([]any, error) { return each(fx.Clients, im.client) }},
		{store.TestMethods, func() ([]any, error) { return each(fx.TestMethods, im.testMethod) }},
		{store.Jobs, func() ([]any, error) { return each(fx.Jobs, im.job) }},
		{store.SampleLots, func() ([]any, error) { return each(fx.SampleLots, im.lot) }},
		{store.Specimens, func() ([]any, error) { return each(fx.Specimens, im.specimen) }},
		{store.PreparationRequests, func() ([]any, error) { return each(fx.PreparationRequests, im.preparation) }},
		{store.Certificates, func() ([]any, error) { return each(fx.Certificates, im.certificate) }},
		{store.DiscardRecords, func() ([]any, error) { return each(fx.DiscardRecords, im.discard) }},
	}

	for _, step := range steps {
		docs, err := step.docs()
		if err != nil {
			return rep, fmt.Errorf("%s: %w", step.coll, err)
		}
		for _, doc := range docs {
			err := im.store.Insert(ctx, step.coll, doc)
			switch {
			case err == nil:
				rep.Inserted[step.coll]++
			case errors.Is(err, store.ErrDuplicate):
				rep.Skipped[step.coll]++
				im.log.WarnContext(ctx, "seed: duplicate skipped", "collection", step.coll, "err", err)
			default:
				return rep, fmt.Errorf("insert %s: %w", step.coll, err)
			}
		}
	}
	return rep, nil
}

func each[F any](in []F, build func(F) (any, error)) ([]any, error) {
	out := make([]any, 0, len(in))
	for i, f := range in {
		doc, err := build(f)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out = append(out, doc)
	}
	return out, nil
}

func (im *Importer) base(m Meta) (domain.Base, error) {
	var b domain.Base
	if m.ID != "" {
		id, err := primitive.ObjectIDFromHex(m.ID)
		if err != nil {
			return b, fmt.Errorf("%w: %q", ErrInvalidID, m.ID)
		}
		b.ID = id
	}
	b.IsActive = m.IsActive
	now := im.now().UTC()
	if m.CreatedAt != nil {
		b.CreatedAt = m.CreatedAt.UTC()
	}
	b.Touch(now)
	return b, nil
}

// NormalizePhone renders numbers in E.164 when they parse and validate in
// region; anything else is kept as written.
func NormalizePhone(raw, region string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", true
	}
	num, err := phonenumbers.Parse(raw, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return raw, false
	}
	return phonenumbers.Format(num, phonenumbers.E164), true
}

func (im *Importer) client(f ClientFixture) (any, error) {
	b, err := im.base(f.Meta)
	if err != nil {
		return nil, err
	}
	phone, ok := NormalizePhone(f.Phone, im.region)
	if !ok {
		im.log.Warn("seed: phone number left as written", "client", f.ClientName, "phone", f.Phone)
	}
	return domain.Client{
		Base:          b,
		ClientName:    f.ClientName,
		ContactPerson: f.ContactPerson,
		Email:         strings.ToLower(strings.TrimSpace(f.Email)),
		Phone:         phone,
		Address:       f.Address,
	}, nil
}

func (im *Importer) testMethod(f TestMethodFixture) (any, error) {
	b, err := im.base(f.Meta)
	if err != nil {
		return nil, err
	}
	return domain.TestMethod{Base: b, TestName: f.TestName, Standard: f.Standard}, nil
}

func (im *Importer) job(f JobFixture) (any, error) {
	b, err := im.base(f.Meta)
	if err != nil {
		return nil, err
	}
	return domain.Job{
		Base:         b,
		JobID:        f.JobID,
		ClientID:     ref.Parse(f.ClientID),
		ProjectName:  f.ProjectName,
		ReceivedBy:   f.ReceivedBy,
		ReceivedDate: f.ReceivedDate,
		EndUser:      f.EndUser,
		Remarks:      f.Remarks,
	}, nil
}

func (im *Importer) lot(f LotFixture) (any, error) {
	b, err := im.base(f.Meta)
	if err != nil {
		return nil, err
	}
	return domain.SampleLot{
		Base:           b,
		JobID:          ref.Parse(f.JobID),
		ItemNo:         f.ItemNo,
		Description:    f.Description,
		TestMethodOIDs: refs(f.TestMethodOIDs),
	}, nil
}

func (im *Importer) specimen(f SpecimenFixture) (any, error) {
	b, err := im.base(f.Meta)
	if err != nil {
		return nil, err
	}
	return domain.Specimen{Base: b, SpecimenID: f.SpecimenID}, nil
}

func (im *Importer) preparation(f PreparationFixture) (any, error) {
	b, err := im.base(f.Meta)
	if err != nil {
		return nil, err
	}
	items := make([]domain.PreparationItem, 0, len(f.RequestItems))
	for _, it := range f.RequestItems {
		items = append(items, domain.PreparationItem{
			RequestID:     ref.Parse(it.RequestID),
			TestMethodOID: ref.Parse(it.TestMethodOID),
			SpecimenOIDs:  refs(it.SpecimenOIDs),
		})
	}
	return domain.PreparationRequest{Base: b, RequestNo: f.RequestNo, Remarks: f.Remarks, RequestItems: items}, nil
}

func (im *Importer) certificate(f CertificateFixture) (any, error) {
	b, err := im.base(f.Meta)
	if err != nil {
		return nil, err
	}
	return domain.Certificate{
		Base:          b,
		CertificateNo: f.CertificateNo,
		RequestID:     ref.Parse(f.RequestID),
		PreparationID: ref.Parse(f.PreparationID),
		IssueDate:     f.IssueDate,
		TestingDate:   f.TestingDate,
	}, nil
}

func (im *Importer) discard(f DiscardFixture) (any, error) {
	b, err := im.base(f.Meta)
	if err != nil {
		return nil, err
	}
	return domain.DiscardRecord{Base: b, SampleID: ref.Parse(f.SampleID), Reason: f.Reason, DiscardDate: f.DiscardDate}, nil
}

func refs(ids []string) []ref.Ref {
	out := make([]ref.Ref, 0, len(ids))
	for _, id := range ids {
		out = append(out, ref.Parse(id))
	}
	return out
}
