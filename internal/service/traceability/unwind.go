package traceability

import (
	"github.com/Alijeyrad/labtrace_backend/internal/domain"
	"github.com/Alijeyrad/labtrace_backend/pkg/ref"
)

// Line is one (request, item, specimen) row of an unwound preparation
// request.
type Line struct {
	Request  *domain.PreparationRequest
	Item     int
	Lot      ref.Ref
	Specimen ref.Ref // empty for an item without specimens
}

// Unwind flattens requests into one line per specimen of each item. An
// item with no specimens still yields one line so it is counted. Items
// without a lot reference and empty specimen references are dropped and
// reported in skipped.
func Unwind(reqs []domain.PreparationRequest) (lines []Line, skipped int) {
	for i := range reqs {
		req := &reqs[i]
		for j, item := range req.RequestItems {
			if item.RequestID.IsZero() {
				skipped++
				continue
			}
			emitted := false
			for _, sp := range item.SpecimenOIDs {
				if sp.IsZero() {
					skipped++
					continue
				}
				lines = append(lines, Line{Request: req, Item: j, Lot: item.RequestID, Specimen: sp})
				emitted = true
			}
			if !emitted {
				lines = append(lines, Line{Request: req, Item: j, Lot: item.RequestID})
			}
		}
	}
	return lines, skipped
}

// Group is the per-request aggregate rebuilt from lines.
type Group struct {
	Request     *domain.PreparationRequest
	Items       int
	Lots        []ref.Ref // distinct, in item order
	Specimens   int
	SpecimenIDs []string
}

// Regroup folds lines back into one group per request, in the order the
// requests first appear. specimenID maps a specimen reference to its
// human id; unresolved specimens still count but contribute no id.
func Regroup(lines []Line, specimenID func(ref.Ref) (string, bool)) []Group {
	var groups []Group
	index := map[*domain.PreparationRequest]int{}
	type itemKey struct {
		req  *domain.PreparationRequest
		item int
	}
	seenItem := map[itemKey]bool{}
	seenLot := map[*domain.PreparationRequest]map[string]bool{}

	for _, l := range lines {
		gi, ok := index[l.Request]
		if !ok {
			gi = len(groups)
			index[l.Request] = gi
			groups = append(groups, Group{Request: l.Request, SpecimenIDs: []string{}})
			seenLot[l.Request] = map[string]bool{}
		}
		g := &groups[gi]

		if k := (itemKey{l.Request, l.Item}); !seenItem[k] {
			seenItem[k] = true
			g.Items++
		}
		if key := l.Lot.Key(); !seenLot[l.Request][key] {
			seenLot[l.Request][key] = true
			g.Lots = append(g.Lots, l.Lot)
		}
		if l.Specimen.IsZero() {
			continue
		}
		g.Specimens++
		if id, ok := specimenID(l.Specimen); ok {
			g.SpecimenIDs = append(g.SpecimenIDs, id)
		}
	}
	return groups
}
