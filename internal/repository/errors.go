package repository

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// EmptyTitleError indicates an add or update with a blank title.
type EmptyTitleError struct{}

func (e EmptyTitleError) Error() string {
	return "task title must not be empty"
}

// PriorityRangeError indicates a priority outside [1,5].
type PriorityRangeError struct {
	Value int
}

func (e PriorityRangeError) Error() string {
	return fmt.Sprintf("priority %d out of range [1,5]", e.Value)
}

// InvalidStatusError indicates an unknown status value.
type InvalidStatusError struct {
	Value string
}

func (e InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid status: %q (valid: todo, in_progress, done)", e.Value)
}

// ParentNotFoundError indicates an add or move targeting a parent id that
// does not exist.
type ParentNotFoundError struct {
	ParentID uuid.UUID
}

func (e ParentNotFoundError) Error() string {
	return fmt.Sprintf("parent task not found: %s", e.ParentID)
}

// CycleError indicates a move that would make a task its own ancestor.
type CycleError struct {
	TaskID      uuid.UUID
	NewParentID uuid.UUID
}

func (e CycleError) Error() string {
	return fmt.Sprintf("moving task %s under %s would create a cycle", e.TaskID, e.NewParentID)
}

// HasChildrenError indicates a non-cascading delete of a task that still has
// children; allowing it would orphan the subtree.
type HasChildrenError struct {
	TaskID uuid.UUID
}

func (e HasChildrenError) Error() string {
	return fmt.Sprintf("task %s has children: delete with cascade or move them first", e.TaskID)
}

// IsValidation reports whether err is one of the repository's validation
// errors, as opposed to a storage failure.
func IsValidation(err error) bool {
	var (
		emptyTitle  EmptyTitleError
		priority    PriorityRangeError
		status      InvalidStatusError
		parent      ParentNotFoundError
		cycle       CycleError
		hasChildren HasChildrenError
	)
	return errors.As(err, &emptyTitle) ||
		errors.As(err, &priority) ||
		errors.As(err, &status) ||
		errors.As(err, &parent) ||
		errors.As(err, &cycle) ||
		errors.As(err, &hasChildren)
}
