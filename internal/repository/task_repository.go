package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tasktree/tasktree/internal/models"
)

const taskColumns = "id, parent_id, title, description, status, priority, category, due_at, order_index, created_at, updated_at"

// TaskRepository maintains the ordered task forest on top of a SQLite store.
// It exclusively owns sibling ordering: order_index is only ever assigned
// here, and every public operation runs in a single transaction, after which
// each sibling group's indices are contiguous (0..n-1).
//
// Absent ids resolve softly: Get and Update return (nil, nil), Delete and
// Move are no-ops. Validation failures are typed errors (see errors.go);
// anything else is a storage failure and rolls the transaction back.
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository creates a repository over an open database handle.
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// NewTask carries the caller-supplied fields for Add. Zero values fall back
// to defaults: status todo, priority 3.
type NewTask struct {
	ParentID    *uuid.UUID
	Title       string
	Description string
	Status      string
	Priority    int
	Category    *string
	DueAt       *time.Time
}

// TaskUpdate is a structured partial update: nil fields are left untouched.
// An empty Category clears the label; a zero DueAt clears the due date.
// ParentID and OrderIndex are deliberately absent — only Move and
// ReorderSiblings may change them.
type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *int
	Category    *string
	DueAt       *time.Time
}

// Add validates and inserts a new task as the last child of parent_id,
// assigning order_index = 1 + max(sibling order_index), or 0 for the first
// child. No reindexing is needed: the new index extends the sequence.
func (r *TaskRepository) Add(ctx context.Context, in NewTask) (*models.Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, EmptyTitleError{}
	}
	status := in.Status
	if status == "" {
		status = models.StatusTodo
	}
	if !models.ValidStatus(status) {
		return nil, InvalidStatusError{Value: status}
	}
	priority := in.Priority
	if priority == 0 {
		priority = models.PriorityDefault
	}
	if !models.ValidPriority(priority) {
		return nil, PriorityRangeError{Value: priority}
	}

	now := time.Now().UTC()
	t := &models.Task{
		ID:          uuid.New(),
		Title:       in.Title,
		Description: in.Description,
		Status:      status,
		Priority:    priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.ParentID != nil {
		t.ParentID = uuid.NullUUID{UUID: *in.ParentID, Valid: true}
	}
	if in.Category != nil && *in.Category != "" {
		t.Category = sql.NullString{String: *in.Category, Valid: true}
	}
	if in.DueAt != nil && !in.DueAt.IsZero() {
		t.DueAt = sql.NullTime{Time: in.DueAt.UTC(), Valid: true}
	}

	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		if in.ParentID != nil {
			ok, err := taskExists(ctx, tx, *in.ParentID)
			if err != nil {
				return err
			}
			if !ok {
				return ParentNotFoundError{ParentID: *in.ParentID}
			}
		}

		next, err := nextOrderIndex(ctx, tx, in.ParentID)
		if err != nil {
			return err
		}
		t.OrderIndex = next

		_, err = tx.ExecContext(ctx,
			`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.ParentID, t.Title, t.Description, t.Status, t.Priority,
			t.Category, t.DueAt, t.OrderIndex, t.CreatedAt, t.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Get returns the task with the given id, or (nil, nil) if it does not exist.
func (r *TaskRepository) Get(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	var t models.Task
	err := r.db.GetContext(ctx, &t,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &t, nil
}

// Update applies the non-nil fields of upd to the task and refreshes
// updated_at. Returns (nil, nil) if the id does not exist.
func (r *TaskRepository) Update(ctx context.Context, id uuid.UUID, upd TaskUpdate) (*models.Task, error) {
	if upd.Title != nil && strings.TrimSpace(*upd.Title) == "" {
		return nil, EmptyTitleError{}
	}
	if upd.Status != nil && !models.ValidStatus(*upd.Status) {
		return nil, InvalidStatusError{Value: *upd.Status}
	}
	if upd.Priority != nil && !models.ValidPriority(*upd.Priority) {
		return nil, PriorityRangeError{Value: *upd.Priority}
	}

	var out *models.Task
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		t, err := getTask(ctx, tx, id)
		if err != nil || t == nil {
			return err
		}

		if upd.Title != nil {
			t.Title = *upd.Title
		}
		if upd.Description != nil {
			t.Description = *upd.Description
		}
		if upd.Status != nil {
			t.Status = *upd.Status
		}
		if upd.Priority != nil {
			t.Priority = *upd.Priority
		}
		if upd.Category != nil {
			t.Category = sql.NullString{String: *upd.Category, Valid: *upd.Category != ""}
		}
		if upd.DueAt != nil {
			t.DueAt = sql.NullTime{Time: upd.DueAt.UTC(), Valid: !upd.DueAt.IsZero()}
		}
		t.UpdatedAt = time.Now().UTC()

		_, err = tx.ExecContext(ctx,
			`UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?,
			        category = ?, due_at = ?, updated_at = ?
			 WHERE id = ?`,
			t.Title, t.Description, t.Status, t.Priority,
			t.Category, t.DueAt, t.UpdatedAt, t.ID,
		)
		if err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the task. With cascade it removes the entire subtree,
// children before parents; without cascade it refuses when children exist,
// since orphaning them would break the forest. Afterwards the former
// parent's remaining siblings are reindexed to stay contiguous. Absent ids
// are a no-op.
func (r *TaskRepository) Delete(ctx context.Context, id uuid.UUID, cascade bool) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		t, err := getTask(ctx, tx, id)
		if err != nil || t == nil {
			return err
		}

		ids := []uuid.UUID{t.ID}
		if cascade {
			desc, err := descendantIDs(ctx, tx, t.ID)
			if err != nil {
				return err
			}
			ids = append(ids, desc...)
		} else {
			var n int
			if err := tx.GetContext(ctx, &n,
				`SELECT COUNT(*) FROM tasks WHERE parent_id = ?`, t.ID); err != nil {
				return fmt.Errorf("count children: %w", err)
			}
			if n > 0 {
				return HasChildrenError{TaskID: t.ID}
			}
		}

		// Leaves first so the self-referencing foreign key never dangles.
		for i := len(ids) - 1; i >= 0; i-- {
			if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, ids[i]); err != nil {
				return fmt.Errorf("delete task: %w", err)
			}
		}

		return reindexSiblings(ctx, tx, t.Parent())
	})
}

// Move reparents the task and inserts it among its new siblings at newIndex,
// clamped to [0, len(siblings)]. Moving a task under itself or one of its
// descendants fails with CycleError and leaves the tree unchanged. Both the
// old and the new parent's sibling groups end up contiguous. Absent ids are
// a no-op.
func (r *TaskRepository) Move(ctx context.Context, id uuid.UUID, newParent *uuid.UUID, newIndex int) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		t, err := getTask(ctx, tx, id)
		if err != nil || t == nil {
			return err
		}

		if newParent != nil {
			if *newParent == id {
				return CycleError{TaskID: id, NewParentID: *newParent}
			}
			ok, err := taskExists(ctx, tx, *newParent)
			if err != nil {
				return err
			}
			if !ok {
				return ParentNotFoundError{ParentID: *newParent}
			}
			under, err := isDescendant(ctx, tx, *newParent, id)
			if err != nil {
				return err
			}
			if under {
				return CycleError{TaskID: id, NewParentID: *newParent}
			}
		}

		oldParent := t.Parent()

		cond, args := parentCond(newParent)
		var sibs []uuid.UUID
		err = tx.SelectContext(ctx, &sibs,
			`SELECT id FROM tasks WHERE `+cond+` AND id != ? ORDER BY order_index, created_at`,
			append(args, id)...)
		if err != nil {
			return fmt.Errorf("load siblings: %w", err)
		}

		idx := newIndex
		if idx < 0 {
			idx = 0
		}
		if idx > len(sibs) {
			idx = len(sibs)
		}

		// Everything at or after the insertion point shifts up by one.
		for i, sibID := range sibs {
			want := i
			if i >= idx {
				want = i + 1
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE tasks SET order_index = ? WHERE id = ?`, want, sibID); err != nil {
				return fmt.Errorf("shift sibling: %w", err)
			}
		}

		var parentID uuid.NullUUID
		if newParent != nil {
			parentID = uuid.NullUUID{UUID: *newParent, Valid: true}
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE tasks SET parent_id = ?, order_index = ?, updated_at = ? WHERE id = ?`,
			parentID, idx, time.Now().UTC(), id)
		if err != nil {
			return fmt.Errorf("move task: %w", err)
		}

		if !sameParent(oldParent, newParent) {
			return reindexSiblings(ctx, tx, oldParent)
		}
		return nil
	})
}

// ReorderSiblings assigns order_index = position-in-list to each listed id
// currently under parent; ids under a different parent are silently skipped.
// The sibling group is reindexed afterwards so a partial list still leaves
// contiguous indices.
func (r *TaskRepository) ReorderSiblings(ctx context.Context, parent *uuid.UUID, orderedIDs []uuid.UUID) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		cond, condArgs := parentCond(parent)
		for pos, id := range orderedIDs {
			args := append([]any{pos, id}, condArgs...)
			_, err := tx.ExecContext(ctx,
				`UPDATE tasks SET order_index = ? WHERE id = ? AND `+cond, args...)
			if err != nil {
				return fmt.Errorf("reorder sibling: %w", err)
			}
		}
		return reindexSiblings(ctx, tx, parent)
	})
}

// Children returns the direct children of parent (nil for roots), ordered by
// order_index.
func (r *TaskRepository) Children(ctx context.Context, parent *uuid.UUID) ([]models.Task, error) {
	cond, args := parentCond(parent)
	var tasks []models.Task
	err := r.db.SelectContext(ctx, &tasks,
		`SELECT `+taskColumns+` FROM tasks WHERE `+cond+` ORDER BY order_index, created_at`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return tasks, nil
}

// Roots returns all tasks without a parent, ordered by order_index.
func (r *TaskRepository) Roots(ctx context.Context) ([]models.Task, error) {
	return r.Children(ctx, nil)
}

// Subtree returns the root followed by all of its descendants in depth-first
// order, each level ordered by order_index. Returns an empty slice when the
// root does not exist. Traversal is iterative, so arbitrarily deep trees are
// safe.
func (r *TaskRepository) Subtree(ctx context.Context, rootID uuid.UUID) ([]models.Task, error) {
	var out []models.Task
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		root, err := getTask(ctx, tx, rootID)
		if err != nil || root == nil {
			return err
		}

		stack := []models.Task{*root}
		for len(stack) > 0 {
			t := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			out = append(out, t)

			var children []models.Task
			err := tx.SelectContext(ctx, &children,
				`SELECT `+taskColumns+` FROM tasks WHERE parent_id = ? ORDER BY order_index, created_at`,
				t.ID)
			if err != nil {
				return fmt.Errorf("load children: %w", err)
			}
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, children[i])
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Search returns tasks whose title or description contains query as a
// substring. Matching is case-insensitive for ASCII (SQLite LIKE semantics);
// result order is unspecified.
func (r *TaskRepository) Search(ctx context.Context, query string) ([]models.Task, error) {
	like := "%" + escapeLike(query) + "%"
	var tasks []models.Task
	err := r.db.SelectContext(ctx, &tasks,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE title LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\'`,
		like, like)
	if err != nil {
		return nil, fmt.Errorf("search tasks: %w", err)
	}
	return tasks, nil
}

// Backup snapshots the store into destDir as tasks_<YYYYMMDD_HHMMSS>.db,
// creating the directory if needed, and returns the created path. VACUUM
// INTO produces a consistent copy even while the database is in WAL mode.
func (r *TaskRepository) Backup(ctx context.Context, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}
	dest := filepath.Join(destDir, fmt.Sprintf("tasks_%s.db", time.Now().Format("20060102_150405")))
	if _, err := r.db.ExecContext(ctx, `VACUUM INTO ?`, dest); err != nil {
		return "", fmt.Errorf("backup database: %w", err)
	}
	return dest, nil
}

// ------------------- internal helpers -------------------

func (r *TaskRepository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		return rollback(tx, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func rollback(tx *sqlx.Tx, err error) error {
	if rerr := tx.Rollback(); rerr != nil {
		err = fmt.Errorf("%w: %v", err, rerr)
	}
	return err
}

func getTask(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*models.Task, error) {
	var t models.Task
	err := tx.GetContext(ctx, &t,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &t, nil
}

func taskExists(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (bool, error) {
	var n int
	if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM tasks WHERE id = ?`, id); err != nil {
		return false, fmt.Errorf("check task exists: %w", err)
	}
	return n > 0, nil
}

func nextOrderIndex(ctx context.Context, tx *sqlx.Tx, parent *uuid.UUID) (int, error) {
	cond, args := parentCond(parent)
	var next int
	err := tx.GetContext(ctx, &next,
		`SELECT COALESCE(MAX(order_index) + 1, 0) FROM tasks WHERE `+cond, args...)
	if err != nil {
		return 0, fmt.Errorf("next order index: %w", err)
	}
	return next, nil
}

// reindexSiblings restores the 0..n-1 contiguity of a sibling group, keeping
// the relative order. Rows already at their index are left untouched, which
// makes the operation idempotent.
func reindexSiblings(ctx context.Context, tx *sqlx.Tx, parent *uuid.UUID) error {
	cond, args := parentCond(parent)
	var ids []uuid.UUID
	err := tx.SelectContext(ctx, &ids,
		`SELECT id FROM tasks WHERE `+cond+` ORDER BY order_index, created_at`, args...)
	if err != nil {
		return fmt.Errorf("load siblings: %w", err)
	}
	for i, id := range ids {
		_, err := tx.ExecContext(ctx,
			`UPDATE tasks SET order_index = ? WHERE id = ? AND order_index != ?`, i, id, i)
		if err != nil {
			return fmt.Errorf("reindex sibling: %w", err)
		}
	}
	return nil
}

// descendantIDs collects every descendant of root in depth-first order,
// children ordered by order_index, using an explicit stack.
func descendantIDs(ctx context.Context, tx *sqlx.Tx, root uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	stack := []uuid.UUID{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id != root {
			out = append(out, id)
		}

		var children []uuid.UUID
		err := tx.SelectContext(ctx, &children,
			`SELECT id FROM tasks WHERE parent_id = ? ORDER BY order_index, created_at`, id)
		if err != nil {
			return nil, fmt.Errorf("load children: %w", err)
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return out, nil
}

// isDescendant walks the parent chain upwards from candidate and reports
// whether ancestor appears on it.
func isDescendant(ctx context.Context, tx *sqlx.Tx, candidate, ancestor uuid.UUID) (bool, error) {
	cur := candidate
	for {
		var parent uuid.NullUUID
		err := tx.GetContext(ctx, &parent,
			`SELECT parent_id FROM tasks WHERE id = ?`, cur)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("walk ancestors: %w", err)
		}
		if !parent.Valid {
			return false, nil
		}
		if parent.UUID == ancestor {
			return true, nil
		}
		cur = parent.UUID
	}
}

func parentCond(parent *uuid.UUID) (string, []any) {
	if parent == nil {
		return "parent_id IS NULL", nil
	}
	return "parent_id = ?", []any{*parent}
}

func sameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
