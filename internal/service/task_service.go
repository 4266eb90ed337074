package service

import (
	"context"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/tasktree/tasktree/internal/events"
	"github.com/tasktree/tasktree/internal/models"
	"github.com/tasktree/tasktree/internal/repository"
)

// TaskService is the use-case layer: each mutating operation performs one
// repository call and, on success, publishes one notification on the bus.
// The repository itself never touches the bus, so it stays independently
// testable. A nil bus disables notifications.
type TaskService struct {
	repo *repository.TaskRepository
	bus  *events.Bus
}

// NewTaskService wires the service to a repository and an optional bus.
func NewTaskService(repo *repository.TaskRepository, bus *events.Bus) *TaskService {
	return &TaskService{repo: repo, bus: bus}
}

// Add creates a task and announces it.
func (s *TaskService) Add(ctx context.Context, in repository.NewTask) (*models.Task, error) {
	t, err := s.repo.Add(ctx, in)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"task_id": t.ID, "title": t.Title}).Debug("task added")
	s.emit(events.Event{Kind: events.TaskAdded, TaskID: t.ID})
	return t, nil
}

// Update applies a partial update and announces it. Returns (nil, nil) when
// the task does not exist; no event is published in that case.
func (s *TaskService) Update(ctx context.Context, id uuid.UUID, upd repository.TaskUpdate) (*models.Task, error) {
	t, err := s.repo.Update(ctx, id, upd)
	if err != nil || t == nil {
		return t, err
	}
	log.WithField("task_id", id).Debug("task updated")
	s.emit(events.Event{Kind: events.TaskUpdated, TaskID: id})
	return t, nil
}

// Delete removes a task (and, with cascade, its subtree) and announces it.
func (s *TaskService) Delete(ctx context.Context, id uuid.UUID, cascade bool) error {
	if err := s.repo.Delete(ctx, id, cascade); err != nil {
		return err
	}
	log.WithFields(log.Fields{"task_id": id, "cascade": cascade}).Debug("task deleted")
	s.emit(events.Event{Kind: events.TaskDeleted, TaskID: id})
	return nil
}

// Move reparents a task and announces it.
func (s *TaskService) Move(ctx context.Context, id uuid.UUID, newParent *uuid.UUID, newIndex int) error {
	if err := s.repo.Move(ctx, id, newParent, newIndex); err != nil {
		return err
	}
	log.WithField("task_id", id).Debug("task moved")
	s.emit(events.Event{Kind: events.TaskMoved, TaskID: id})
	return nil
}

// ToggleStatus flips a task between done and todo. A task that is not done
// (todo or in_progress) becomes done; a done task becomes todo. Returns
// (nil, nil) when the task does not exist.
func (s *TaskService) ToggleStatus(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil || t == nil {
		return nil, err
	}
	next := models.StatusDone
	if t.Status == models.StatusDone {
		next = models.StatusTodo
	}
	updated, err := s.repo.Update(ctx, id, repository.TaskUpdate{Status: &next})
	if err != nil || updated == nil {
		return updated, err
	}
	log.WithFields(log.Fields{"task_id": id, "status": next}).Debug("task status toggled")
	s.emit(events.Event{Kind: events.TaskUpdated, TaskID: id})
	return updated, nil
}

// ReorderSiblings applies an explicit sibling ordering. Reordering publishes
// no event: subscribers that care about structure watch moves and re-query.
func (s *TaskService) ReorderSiblings(ctx context.Context, parent *uuid.UUID, orderedIDs []uuid.UUID) error {
	return s.repo.ReorderSiblings(ctx, parent, orderedIDs)
}

// Get returns a task, or (nil, nil) when absent.
func (s *TaskService) Get(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return s.repo.Get(ctx, id)
}

// Children returns the ordered direct children of parent (nil for roots).
func (s *TaskService) Children(ctx context.Context, parent *uuid.UUID) ([]models.Task, error) {
	return s.repo.Children(ctx, parent)
}

// Roots returns the ordered root tasks.
func (s *TaskService) Roots(ctx context.Context) ([]models.Task, error) {
	return s.repo.Roots(ctx)
}

// Subtree returns a task and its descendants in depth-first order.
func (s *TaskService) Subtree(ctx context.Context, rootID uuid.UUID) ([]models.Task, error) {
	return s.repo.Subtree(ctx, rootID)
}

// Search returns tasks whose title or description contains query.
func (s *TaskService) Search(ctx context.Context, query string) ([]models.Task, error) {
	return s.repo.Search(ctx, query)
}

// Progress returns the fraction of done tasks among the direct children of
// parent.
func (s *TaskService) Progress(ctx context.Context, parent *uuid.UUID) (float64, error) {
	children, err := s.repo.Children(ctx, parent)
	if err != nil {
		return 0, err
	}
	return models.BranchProgress(children), nil
}

// Backup snapshots the store into destDir and returns the created path.
func (s *TaskService) Backup(ctx context.Context, destDir string) (string, error) {
	path, err := s.repo.Backup(ctx, destDir)
	if err != nil {
		return "", err
	}
	log.WithField("path", path).Info("backup created")
	return path, nil
}

func (s *TaskService) emit(e events.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}
