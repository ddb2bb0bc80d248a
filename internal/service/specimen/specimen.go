// Package specimen creates specimens and enforces the global uniqueness
// of their human identifiers.
package specimen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Alijeyrad/labtrace_backend/internal/domain"
	"github.com/Alijeyrad/labtrace_backend/internal/search"
	"github.com/Alijeyrad/labtrace_backend/internal/store"
	"github.com/Alijeyrad/labtrace_backend/pkg/events"
)

type Service interface {
	Create(ctx context.Context, specimenID string) (*domain.Specimen, error)
	// Exists reports whether any specimen, active or not, already uses id.
	Exists(ctx context.Context, specimenID string) (bool, error)
}

type service struct {
	store  store.Store
	events events.Publisher
	log    *slog.Logger
	now    func() time.Time
}

func New(st store.Store, pub events.Publisher, log *slog.Logger) Service {
	if pub == nil {
		pub = events.Noop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &service{store: st, events: pub, log: log, now: time.Now}
}

func (s *service) Create(ctx context.Context, specimenID string) (*domain.Specimen, error) {
	specimenID = strings.TrimSpace(specimenID)
	if specimenID == "" {
		return nil, ErrSpecimenIDRequired
	}

	sp := domain.Specimen{SpecimenID: specimenID}
	sp.Touch(s.now().UTC())
	if err := s.store.Insert(ctx, store.Specimens, sp); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %s", ErrSpecimenExists, specimenID)
		}
		return nil, fmt.Errorf("insert specimen: %w", err)
	}

	err := s.events.Publish(ctx, events.SpecimenCreated, events.SpecimenCreatedEvent{
		SpecimenOID: sp.ID.Hex(),
		SpecimenID:  sp.SpecimenID,
		At:          sp.CreatedAt,
	})
	if err != nil {
		s.log.WarnContext(ctx, "publish specimen created failed", "specimen_id", specimenID, "err", err)
	}
	return &sp, nil
}

func (s *service) Exists(ctx context.Context, specimenID string) (bool, error) {
	specimenID = strings.TrimSpace(specimenID)
	if specimenID == "" {
		return false, ErrSpecimenIDRequired
	}
	n, err := s.store.Count(ctx, store.Specimens, search.Eq{Field: domain.FieldSpecimenID, Value: specimenID})
	if err != nil {
		return false, fmt.Errorf("count specimens: %w", err)
	}
	return n > 0, nil
}
