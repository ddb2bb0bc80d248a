package traceability

import (
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Alijeyrad/labtrace_backend/internal/domain"
	"github.com/Alijeyrad/labtrace_backend/pkg/ref"
)

func TestUnwindRegroup(t *testing.T) {
	lotA := ref.Native(primitive.NewObjectID())
	lotB := ref.String("legacy-lot")
	sp := func(id string) ref.Ref { return ref.String(id) }

	reqs := []domain.PreparationRequest{
		{
			RequestNo: "PR-1",
			RequestItems: []domain.PreparationItem{
				{RequestID: lotA, SpecimenOIDs: []ref.Ref{sp("s1"), sp("s2")}},
				{RequestID: lotB, SpecimenOIDs: []ref.Ref{sp("s3"), {}}},
				{RequestID: lotA},
			},
		},
		{
			RequestNo:    "PR-2",
			RequestItems: []domain.PreparationItem{{SpecimenOIDs: []ref.Ref{sp("s4")}}},
		},
	}

	lines, skipped := Unwind(reqs)
	if skipped != 2 {
		t.Fatalf("skipped = %d, want 2", skipped)
	}
	if len(lines) != 4 {
		t.Fatalf("lines = %d, want 4", len(lines))
	}

	names := map[string]string{"s1": "SP-1", "s3": "SP-3"}
	groups := Regroup(lines, func(r ref.Ref) (string, bool) {
		n, ok := names[r.Key()]
		return n, ok
	})
	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	g := groups[0]
	if g.Request.RequestNo != "PR-1" {
		t.Fatalf("group request = %s", g.Request.RequestNo)
	}
	if g.Items != 3 {
		t.Errorf("items = %d, want 3", g.Items)
	}
	if g.Specimens != 3 {
		t.Errorf("specimens = %d, want 3", g.Specimens)
	}
	if want := []string{"SP-1", "SP-3"}; !reflect.DeepEqual(g.SpecimenIDs, want) {
		t.Errorf("specimen ids = %v, want %v", g.SpecimenIDs, want)
	}
	if len(g.Lots) != 2 || !g.Lots[0].Equal(lotA) || !g.Lots[1].Equal(lotB) {
		t.Errorf("lots = %v", g.Lots)
	}
}

func TestUnwindEmpty(t *testing.T) {
	lines, skipped := Unwind(nil)
	if len(lines) != 0 || skipped != 0 {
		t.Fatalf("Unwind(nil) = %v, %d", lines, skipped)
	}
	if groups := Regroup(nil, nil); len(groups) != 0 {
		t.Fatalf("Regroup(nil) = %v", groups)
	}
}
