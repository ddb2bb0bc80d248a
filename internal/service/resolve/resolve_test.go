package resolve

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Alijeyrad/labtrace_backend/internal/domain"
	"github.com/Alijeyrad/labtrace_backend/internal/store"
	"github.com/Alijeyrad/labtrace_backend/internal/store/memory"
	"github.com/Alijeyrad/labtrace_backend/pkg/ref"
)

func insertJob(t *testing.T, st store.Store, jobID string, at time.Time, active bool) domain.Job {
	t.Helper()
	j := domain.Job{JobID: jobID}
	j.Touch(at)
	if !active {
		j.IsActive = &active
	}
	require.NoError(t, st.Insert(context.Background(), store.Jobs, j))
	return j
}

func TestJob_NativeThenHumanID(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	r := New(st, nil)
	now := time.Now()
	j := insertJob(t, st, "J-2024-007", now, true)

	for _, id := range []ref.Ref{j.Ref(), ref.String(j.ID.Hex()), ref.String("J-2024-007"), ref.Parse(j.ID.Hex())} {
		got, err := r.Job(ctx, id)
		require.NoError(t, err, id.String())
		assert.Equal(t, j.ID, got.ID)
	}

	_, err := r.Job(ctx, ref.String("J-0000"))
	assert.True(t, errors.Is(err, ErrJobNotFound))

	_, err = r.Job(ctx, ref.Ref{})
	assert.True(t, errors.Is(err, ErrJobNotFound))
}

func TestJobs_AmbiguousTakesOldest(t *testing.T) {
	st := memory.New()
	r := New(st, nil)
	now := time.Now()
	newer := insertJob(t, st, "J-DUP", now, true)
	older := insertJob(t, st, "J-DUP", now.Add(-time.Hour), true)

	ix, err := r.Jobs(context.Background(), []ref.Ref{ref.String("J-DUP")})
	require.NoError(t, err)
	got := ix.Lookup(ref.String("J-DUP"))
	require.NotNil(t, got)
	assert.Equal(t, older.ID, got.ID)
	assert.NotEqual(t, newer.ID, got.ID)
}

func TestJobs_SkipsInactive(t *testing.T) {
	st := memory.New()
	r := New(st, nil)
	j := insertJob(t, st, "J-OFF", time.Now(), false)

	ix, err := r.Jobs(context.Background(), []ref.Ref{j.Ref(), ref.String("J-OFF")})
	require.NoError(t, err)
	assert.Empty(t, ix)
}

func TestTestMethods(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	r := New(st, nil)

	tm := domain.TestMethod{TestName: "Tensile"}
	tm.Touch(time.Now())
	require.NoError(t, st.Insert(ctx, store.TestMethods, tm))

	ix, err := r.TestMethods(ctx, []ref.Ref{tm.Ref(), ref.Native(primitive.NewObjectID()), {}})
	require.NoError(t, err)
	assert.Len(t, ix, 1)
	assert.Equal(t, "Tensile", ix.Lookup(ref.String(tm.ID.Hex())).TestName)
	assert.Nil(t, ix.Lookup(ref.Ref{}))
}
