// Package lifecycle derives a sample's status from its child records.
// Nothing here is persisted: status is recomputed on every read.
package lifecycle

import (
	"github.com/Alijeyrad/labtrace_backend/internal/domain"
	"github.com/Alijeyrad/labtrace_backend/pkg/ref"
)

type Status string

const (
	Received      Status = "received"
	InPreparation Status = "in_preparation"
	Reported      Status = "reported"
	Discarded     Status = "discarded"
)

// Snapshot is the set of child records visible to one sample. Records
// that belong to other samples may be included; Derive only counts the
// ones tied to SampleKeys and LotKeys.
type Snapshot struct {
	// Items is the number of intake line items of the sample.
	Items int
	// SampleKeys identify the sample itself; discard records point here.
	SampleKeys []ref.Ref
	// LotKeys identify the lots whose preparation items belong to the sample.
	LotKeys []ref.Ref

	Preparations []domain.PreparationRequest
	Certificates []domain.Certificate
	Discards     []domain.DiscardRecord
}

type Result struct {
	Status         Status `json:"status"`
	ItemsCount     int    `json:"items_count"`
	SpecimensCount int    `json:"specimens_count"`
	// Skipped counts preparation items and specimen refs ignored because
	// their reference was empty.
	Skipped int `json:"-"`
}

// Derive computes status and counts in one pass. Precedence is
// discarded, reported, in_preparation, received.
func Derive(s Snapshot) Result {
	res := Result{Status: Received, ItemsCount: s.Items}

	lots := keySet(s.LotKeys)
	samples := keySet(s.SampleKeys)

	tiedPreps := map[string]struct{}{}
	for _, p := range s.Preparations {
		if !p.Active() {
			continue
		}
		for _, item := range p.RequestItems {
			key := item.RequestID.Key()
			if key == "" {
				res.Skipped++
				continue
			}
			if _, ok := lots[key]; !ok {
				continue
			}
			tiedPreps[p.Ref().Key()] = struct{}{}
			for _, sp := range item.SpecimenOIDs {
				if sp.IsZero() {
					res.Skipped++
					continue
				}
				res.SpecimensCount++
			}
		}
	}

	reported := false
	for _, c := range s.Certificates {
		if !c.Active() {
			continue
		}
		if _, ok := tiedPreps[c.Preparation().Key()]; ok {
			reported = true
			break
		}
	}

	discarded := false
	for _, d := range s.Discards {
		if !d.Active() {
			continue
		}
		if _, ok := samples[d.SampleID.Key()]; ok {
			discarded = true
			break
		}
	}

	switch {
	case discarded:
		res.Status = Discarded
	case reported:
		res.Status = Reported
	case len(tiedPreps) > 0:
		res.Status = InPreparation
	}
	return res
}

func keySet(refs []ref.Ref) map[string]struct{} {
	out := make(map[string]struct{}, len(refs))
	for _, k := range ref.Keys(refs) {
		out[k] = struct{}{}
	}
	return out
}
