package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/tasktree/tasktree/internal/models"
	"github.com/tasktree/tasktree/internal/repository"
	"github.com/tasktree/tasktree/internal/service"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, svc *service.TaskService, db *sqlx.DB, backupDir string) {
	e.POST("/api/tasks", createTask(svc))
	e.GET("/api/tasks/roots", getRoots(svc))
	e.GET("/api/tasks/search", searchTasks(svc))
	e.POST("/api/tasks/reorder", reorderTasks(svc))
	e.GET("/api/tasks/:id", getTask(svc))
	e.PATCH("/api/tasks/:id", updateTask(svc))
	e.DELETE("/api/tasks/:id", deleteTask(svc))
	e.POST("/api/tasks/:id/move", moveTask(svc))
	e.GET("/api/tasks/:id/children", getChildren(svc))
	e.GET("/api/tasks/:id/subtree", getSubtree(svc))
	e.POST("/api/backup", createBackup(svc, backupDir))
	e.GET("/healthz", healthz(db))
}

type taskResponse struct {
	ID          string     `json:"id"`
	ParentID    *string    `json:"parent_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	Priority    int        `json:"priority"`
	Category    *string    `json:"category,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	OrderIndex  int        `json:"order_index"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toResponse(t *models.Task) taskResponse {
	resp := taskResponse{
		ID:          t.ID.String(),
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		OrderIndex:  t.OrderIndex,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.ParentID.Valid {
		s := t.ParentID.UUID.String()
		resp.ParentID = &s
	}
	if t.Category.Valid {
		c := t.Category.String
		resp.Category = &c
	}
	if t.DueAt.Valid {
		d := t.DueAt.Time
		resp.DueAt = &d
	}
	return resp
}

func toResponseList(tasks []models.Task) []taskResponse {
	out := make([]taskResponse, len(tasks))
	for i := range tasks {
		out[i] = toResponse(&tasks[i])
	}
	return out
}

type createTaskRequest struct {
	ParentID    *string    `json:"parent_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    int        `json:"priority"`
	Category    *string    `json:"category"`
	DueAt       *time.Time `json:"due_at"`
}

type updateTaskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	Priority    *int       `json:"priority"`
	Category    *string    `json:"category"`
	DueAt       *time.Time `json:"due_at"`
}

type moveTaskRequest struct {
	ParentID   *string `json:"parent_id"`
	OrderIndex int     `json:"order_index"`
}

type reorderRequest struct {
	ParentID   *string  `json:"parent_id"`
	OrderedIDs []string `json:"ordered_ids"`
}

func createTask(svc *service.TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createTaskRequest
		if err := c.Bind(&req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		parent, err := parseOptionalID(req.ParentID)
		if err != nil {
			return c.String(http.StatusBadRequest, "invalid parent_id")
		}
		t, err := svc.Add(c.Request().Context(), repository.NewTask{
			ParentID:    parent,
			Title:       req.Title,
			Description: req.Description,
			Status:      req.Status,
			Priority:    req.Priority,
			Category:    req.Category,
			DueAt:       req.DueAt,
		})
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, toResponse(t))
	}
}

func getTask(svc *service.TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := parseID(c)
		if err != nil {
			return c.String(http.StatusBadRequest, "invalid task id")
		}
		t, err := svc.Get(c.Request().Context(), id)
		if err != nil {
			return writeError(c, err)
		}
		if t == nil {
			return c.NoContent(http.StatusNotFound)
		}
		return c.JSON(http.StatusOK, toResponse(t))
	}
}

func updateTask(svc *service.TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := parseID(c)
		if err != nil {
			return c.String(http.StatusBadRequest, "invalid task id")
		}
		var req updateTaskRequest
		if err := c.Bind(&req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		t, err := svc.Update(c.Request().Context(), id, repository.TaskUpdate{
			Title:       req.Title,
			Description: req.Description,
			Status:      req.Status,
			Priority:    req.Priority,
			Category:    req.Category,
			DueAt:       req.DueAt,
		})
		if err != nil {
			return writeError(c, err)
		}
		if t == nil {
			return c.NoContent(http.StatusNotFound)
		}
		return c.JSON(http.StatusOK, toResponse(t))
	}
}

func deleteTask(svc *service.TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := parseID(c)
		if err != nil {
			return c.String(http.StatusBadRequest, "invalid task id")
		}
		cascade := true
		if v := c.QueryParam("cascade"); v != "" {
			cascade, err = strconv.ParseBool(v)
			if err != nil {
				return c.String(http.StatusBadRequest, "invalid cascade flag")
			}
		}
		if err := svc.Delete(c.Request().Context(), id, cascade); err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func moveTask(svc *service.TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := parseID(c)
		if err != nil {
			return c.String(http.StatusBadRequest, "invalid task id")
		}
		var req moveTaskRequest
		if err := c.Bind(&req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		parent, err := parseOptionalID(req.ParentID)
		if err != nil {
			return c.String(http.StatusBadRequest, "invalid parent_id")
		}
		if err := svc.Move(c.Request().Context(), id, parent, req.OrderIndex); err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func reorderTasks(svc *service.TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req reorderRequest
		if err := c.Bind(&req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		parent, err := parseOptionalID(req.ParentID)
		if err != nil {
			return c.String(http.StatusBadRequest, "invalid parent_id")
		}
		ids := make([]uuid.UUID, 0, len(req.OrderedIDs))
		for _, raw := range req.OrderedIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				return c.String(http.StatusBadRequest, "invalid id in ordered_ids")
			}
			ids = append(ids, id)
		}
		if err := svc.ReorderSiblings(c.Request().Context(), parent, ids); err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func getRoots(svc *service.TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		tasks, err := svc.Roots(c.Request().Context())
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, toResponseList(tasks))
	}
}

func getChildren(svc *service.TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := parseID(c)
		if err != nil {
			return c.String(http.StatusBadRequest, "invalid task id")
		}
		tasks, err := svc.Children(c.Request().Context(), &id)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, toResponseList(tasks))
	}
}

func getSubtree(svc *service.TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := parseID(c)
		if err != nil {
			return c.String(http.StatusBadRequest, "invalid task id")
		}
		tasks, err := svc.Subtree(c.Request().Context(), id)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, toResponseList(tasks))
	}
}

func searchTasks(svc *service.TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		q := c.QueryParam("q")
		if q == "" {
			return c.String(http.StatusBadRequest, "missing query parameter q")
		}
		tasks, err := svc.Search(c.Request().Context(), q)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, toResponseList(tasks))
	}
}

func createBackup(svc *service.TaskService, backupDir string) echo.HandlerFunc {
	return func(c echo.Context) error {
		path, err := svc.Backup(c.Request().Context(), backupDir)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, map[string]string{"path": path})
	}
}

func healthz(db *sqlx.DB) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := db.PingContext(c.Request().Context()); err != nil {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	}
}

// writeError maps repository errors onto HTTP: validation failures are the
// caller's fault (400 with the reason), everything else is a storage failure
// (500, safe to retry).
func writeError(c echo.Context, err error) error {
	if repository.IsValidation(err) {
		return c.String(http.StatusBadRequest, err.Error())
	}
	log.WithError(err).Error("request failed")
	return c.String(http.StatusInternalServerError, "internal error")
}

func parseID(c echo.Context) (uuid.UUID, error) {
	return uuid.Parse(c.Param("id"))
}

func parseOptionalID(raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
