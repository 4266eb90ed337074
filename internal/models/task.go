package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Task status constants
const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

// Priority bounds. Priority is an integer rank where 1 is most urgent.
const (
	PriorityMin     = 1
	PriorityDefault = 3
	PriorityMax     = 5
)

// Task is a single node of the task forest. Tasks sharing a parent_id are
// siblings, ordered by OrderIndex; the repository keeps each sibling group's
// indices contiguous (0..n-1) after every mutation.
type Task struct {
	ID          uuid.UUID      `db:"id"`
	ParentID    uuid.NullUUID  `db:"parent_id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	Status      string         `db:"status"`
	Priority    int            `db:"priority"`
	Category    sql.NullString `db:"category"`
	DueAt       sql.NullTime   `db:"due_at"`
	OrderIndex  int            `db:"order_index"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

// IsRoot reports whether the task has no parent.
func (t *Task) IsRoot() bool {
	return !t.ParentID.Valid
}

// Parent returns the parent id, or nil for roots.
func (t *Task) Parent() *uuid.UUID {
	if !t.ParentID.Valid {
		return nil
	}
	id := t.ParentID.UUID
	return &id
}

// ValidStatus reports whether s is one of the known status values.
func ValidStatus(s string) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// ValidPriority reports whether p is inside the accepted range.
func ValidPriority(p int) bool {
	return p >= PriorityMin && p <= PriorityMax
}
