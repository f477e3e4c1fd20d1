package repo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/flowgen/internal/domain"
)

func TestMemoryRunRepo_Events(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRunRepo()

	for _, seq := range []int{2, 1, 3} {
		require.NoError(t, r.AppendEvent(ctx, domain.ExecutionEvent{RunID: "run-1", Sequence: seq, Type: domain.EventNodeStarted}))
	}
	require.NoError(t, r.AppendEvent(ctx, domain.ExecutionEvent{RunID: "run-2", Sequence: 1}))

	events, err := r.EventsByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, e := range events {
		assert.Equal(t, i+1, e.Sequence)
	}

	err = r.AppendEvent(ctx, domain.ExecutionEvent{RunID: "run-1", Sequence: 2})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	events, err = r.EventsByRunID(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestMemoryRunRepo_Snapshots(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRunRepo()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, r.SaveRunSnapshot(ctx, domain.FlowRun{RunID: "old", StartedAt: base}))
	require.NoError(t, r.SaveRunSnapshot(ctx, domain.FlowRun{RunID: "new", StartedAt: base.Add(time.Hour)}))

	ids, err := r.ListRunIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "old"}, ids)

	snap, err := r.RunSnapshot(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, "old", snap.RunID)

	_, err = r.RunSnapshot(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryFlowRepo(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryFlowRepo()

	require.NoError(t, r.Save(ctx, &domain.Flow{ID: "a", Name: "A"}))
	require.NoError(t, r.Save(ctx, &domain.Flow{ID: "b", Name: "B"}))
	require.NoError(t, r.Save(ctx, &domain.Flow{ID: "a", Name: "A2"}))

	flows, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, flows, 2)
	assert.Equal(t, "A2", flows[0].Name)

	require.NoError(t, r.Delete(ctx, "a"))
	_, err = r.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, r.Delete(ctx, "a"), ErrNotFound)
}

func TestMemoryRequestRepo_Lifecycle(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRequestRepo()
	now := time.Now()

	first := &domain.RunRequest{ID: "r1", FlowID: "f", Status: domain.RequestStatusPending, IdempotencyKey: "k1", CreatedAt: now}
	second := &domain.RunRequest{ID: "r2", FlowID: "f", Status: domain.RequestStatusPending, CreatedAt: now.Add(-time.Minute)}
	require.NoError(t, r.Create(ctx, first))
	require.NoError(t, r.Create(ctx, second))

	dup := &domain.RunRequest{ID: "r3", IdempotencyKey: "k1"}
	assert.ErrorIs(t, r.Create(ctx, dup), ErrAlreadyExists)

	pending, err := r.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "r2", pending[0].ID, "oldest first")

	require.NoError(t, r.MarkRunning(ctx, first))
	assert.Equal(t, domain.RequestStatusRunning, first.Status)
	assert.NotNil(t, first.StartedAt)
	assert.ErrorIs(t, r.MarkRunning(ctx, first), ErrInvalidState, "cannot be taken twice")

	require.NoError(t, r.MarkDone(ctx, first))
	got, err := r.GetByIdempotencyKey(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusDone, got.Status)
	assert.True(t, got.Status.IsTerminal())

	pending, err = r.ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestMemoryScheduleRepo_ListDue(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryScheduleRepo()
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	due := &domain.Schedule{ID: uuid.New(), FlowID: "f", Enabled: true, NextDueAt: &past}
	later := &domain.Schedule{ID: uuid.New(), FlowID: "f", Enabled: true, NextDueAt: &future}
	disabled := &domain.Schedule{ID: uuid.New(), FlowID: "g", Enabled: false, NextDueAt: &past}
	for _, s := range []*domain.Schedule{due, later, disabled} {
		require.NoError(t, r.Create(ctx, s))
	}

	list, err := r.ListDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, due.ID, list[0].ID)

	enabled := true
	list, err = r.List(ctx, ScheduleFilter{FlowID: "f", Enabled: &enabled})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, r.Delete(ctx, due.ID))
	_, err = r.GetByID(ctx, due.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
