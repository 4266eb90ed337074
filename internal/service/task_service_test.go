package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tasktree/tasktree/internal/database"
	"github.com/tasktree/tasktree/internal/events"
	"github.com/tasktree/tasktree/internal/models"
	"github.com/tasktree/tasktree/internal/repository"
)

type recorder struct {
	got []events.Event
}

func (r *recorder) record(e events.Event) {
	r.got = append(r.got, e)
}

func newTestService(t *testing.T) (*TaskService, *recorder) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))

	rec := &recorder{}
	bus := events.NewBus()
	for _, kind := range []events.Kind{events.TaskAdded, events.TaskUpdated, events.TaskDeleted, events.TaskMoved} {
		bus.Subscribe(kind, rec.record)
	}
	return NewTaskService(repository.NewTaskRepository(db), bus), rec
}

func TestAddPublishesTaskAdded(t *testing.T) {
	svc, rec := newTestService(t)

	task, err := svc.Add(context.Background(), repository.NewTask{Title: "Hello"})
	require.NoError(t, err)
	require.Len(t, rec.got, 1)
	require.Equal(t, events.TaskAdded, rec.got[0].Kind)
	require.Equal(t, task.ID, rec.got[0].TaskID)
}

func TestAddValidationPublishesNothing(t *testing.T) {
	svc, rec := newTestService(t)

	_, err := svc.Add(context.Background(), repository.NewTask{Title: ""})
	require.Error(t, err)
	require.Empty(t, rec.got)
}

func TestUpdateAbsentPublishesNothing(t *testing.T) {
	svc, rec := newTestService(t)

	title := "X"
	task, err := svc.Update(context.Background(), uuid.New(), repository.TaskUpdate{Title: &title})
	require.NoError(t, err)
	require.Nil(t, task)
	require.Empty(t, rec.got)
}

func TestToggleStatusFlipsDoneAndTodo(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := context.Background()

	task, err := svc.Add(ctx, repository.NewTask{Title: "Toggle me"})
	require.NoError(t, err)

	toggled, err := svc.ToggleStatus(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusDone, toggled.Status)

	toggled, err = svc.ToggleStatus(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusTodo, toggled.Status)

	// in_progress counts as "not done": toggling completes the task.
	status := models.StatusInProgress
	_, err = svc.Update(ctx, task.ID, repository.TaskUpdate{Status: &status})
	require.NoError(t, err)
	toggled, err = svc.ToggleStatus(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusDone, toggled.Status)

	// add + update + 3 toggles, each one event
	require.Len(t, rec.got, 5)
	for _, e := range rec.got[1:] {
		require.Equal(t, events.TaskUpdated, e.Kind)
		require.Equal(t, task.ID, e.TaskID)
	}
}

func TestToggleStatusAbsent(t *testing.T) {
	svc, rec := newTestService(t)

	task, err := svc.ToggleStatus(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Nil(t, task)
	require.Empty(t, rec.got)
}

func TestDeleteAndMovePublishEvents(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := context.Background()

	root, err := svc.Add(ctx, repository.NewTask{Title: "Root"})
	require.NoError(t, err)
	child, err := svc.Add(ctx, repository.NewTask{Title: "Child"})
	require.NoError(t, err)

	require.NoError(t, svc.Move(ctx, child.ID, &root.ID, 0))
	require.NoError(t, svc.Delete(ctx, root.ID, true))

	kinds := make([]events.Kind, len(rec.got))
	for i, e := range rec.got {
		kinds[i] = e.Kind
	}
	require.Equal(t,
		[]events.Kind{events.TaskAdded, events.TaskAdded, events.TaskMoved, events.TaskDeleted},
		kinds)
}

func TestMoveCycleLeavesNoEvent(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := context.Background()

	root, err := svc.Add(ctx, repository.NewTask{Title: "Root"})
	require.NoError(t, err)
	child, err := svc.Add(ctx, repository.NewTask{ParentID: &root.ID, Title: "Child"})
	require.NoError(t, err)

	err = svc.Move(ctx, root.ID, &child.ID, 0)
	require.Error(t, err)
	require.True(t, repository.IsValidation(err))

	for _, e := range rec.got {
		require.NotEqual(t, events.TaskMoved, e.Kind)
	}
}

func TestProgress(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	root, err := svc.Add(ctx, repository.NewTask{Title: "Root"})
	require.NoError(t, err)

	p, err := svc.Progress(ctx, &root.ID)
	require.NoError(t, err)
	require.Zero(t, p)

	a, err := svc.Add(ctx, repository.NewTask{ParentID: &root.ID, Title: "A"})
	require.NoError(t, err)
	_, err = svc.Add(ctx, repository.NewTask{ParentID: &root.ID, Title: "B"})
	require.NoError(t, err)

	_, err = svc.ToggleStatus(ctx, a.ID)
	require.NoError(t, err)

	p, err = svc.Progress(ctx, &root.ID)
	require.NoError(t, err)
	require.InDelta(t, 0.5, p, 1e-9)
}

func TestReorderSiblingsThroughService(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := context.Background()

	a, err := svc.Add(ctx, repository.NewTask{Title: "A"})
	require.NoError(t, err)
	b, err := svc.Add(ctx, repository.NewTask{Title: "B"})
	require.NoError(t, err)

	require.NoError(t, svc.ReorderSiblings(ctx, nil, []uuid.UUID{b.ID, a.ID}))

	roots, err := svc.Roots(ctx)
	require.NoError(t, err)
	require.Equal(t, b.ID, roots[0].ID)
	require.Equal(t, a.ID, roots[1].ID)

	// Reordering publishes no event.
	require.Len(t, rec.got, 2)
}
