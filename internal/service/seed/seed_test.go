package seed

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/labtrace_backend/config"
	"github.com/Alijeyrad/labtrace_backend/internal/domain"
	"github.com/Alijeyrad/labtrace_backend/internal/service/lifecycle"
	"github.com/Alijeyrad/labtrace_backend/internal/service/resolve"
	"github.com/Alijeyrad/labtrace_backend/internal/service/traceability"
	"github.com/Alijeyrad/labtrace_backend/internal/store"
	"github.com/Alijeyrad/labtrace_backend/internal/store/memory"
)

const fixtureYAML = `
clients:
  - id: 65f000000000000000000001
    client_name: GRIPCO Ltd
    phone: "201-555-0123"
    email: " Lab@Gripco.Example "
test_methods:
  - id: 65f000000000000000000002
    test_name: Tensile
jobs:
  - id: 65f000000000000000000003
    job_id: J-2024-007
    client_id: 65f000000000000000000001
    project_name: Pipeline
    received_date: 2024-03-01T09:00:00Z
sample_lots:
  - id: 65f000000000000000000004
    job_id: 65f000000000000000000003
    item_no: J-2024-007-001
    test_method_oids: [65f000000000000000000002]
  - job_id: J-2024-007
    item_no: J-2024-007-002
specimens:
  - id: 65f000000000000000000005
    specimen_id: SP-1
preparation_requests:
  - request_no: PR-001
    request_items:
      - request_id: 65f000000000000000000004
        test_method_oid: 65f000000000000000000002
        specimen_oids: [65f000000000000000000005]
`

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		raw, region, want string
		ok                bool
	}{
		{"201-555-0123", "US", "+12015550123", true},
		{"+1 201 555 0123", "GB", "+12015550123", true},
		{"", "US", "", true},
		{"ext. 12", "US", "ext. 12", false},
	}
	for _, tt := range tests {
		got, ok := NormalizePhone(tt.raw, tt.region)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NormalizePhone(%q, %q) = %q, %v; want %q, %v", tt.raw, tt.region, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(strings.NewReader("clients:\n  - client_nmae: typo\n"))
	assert.Error(t, err)

	fx, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, fx.Jobs)
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	fx, err := Load(strings.NewReader(fixtureYAML))
	require.NoError(t, err)

	rep, err := NewImporter(st, "us", nil).Import(ctx, fx)
	require.NoError(t, err)
	assert.Equal(t, 7, rep.Total())
	assert.Equal(t, 2, rep.Inserted[store.SampleLots])

	c, err := store.GetAs[domain.Client](ctx, st, store.Clients, "65f000000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, "+12015550123", c.Phone)
	assert.Equal(t, "lab@gripco.example", c.Email)

	// the imported graph is traceable end to end
	svc := traceability.New(st, resolve.New(st, nil), config.TraceabilityConfig{JobsPageSize: 20}, nil)
	info, err := svc.JobCompleteInfo(ctx, "J-2024-007")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.InPreparation, info.Job.Status)
	assert.Equal(t, 2, info.Job.ItemsCount)
	assert.Equal(t, 1, info.Job.SpecimensCount)

	// a second run hits the unique keys
	rep, err = NewImporter(st, "US", nil).Import(ctx, &Fixtures{Specimens: []SpecimenFixture{{SpecimenID: "SP-1"}}})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Skipped[store.Specimens])
}

func TestImportRejectsBadID(t *testing.T) {
	_, err := NewImporter(memory.New(), "US", nil).Import(context.Background(), &Fixtures{
		Jobs: []JobFixture{{Meta: Meta{ID: "not-hex"}, JobID: "J-1"}},
	})
	assert.ErrorIs(t, err, ErrInvalidID)
}
