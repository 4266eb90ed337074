package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/tasktree/tasktree/internal/database"
	"github.com/tasktree/tasktree/internal/repository"
	"github.com/tasktree/tasktree/internal/service"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))

	svc := service.NewTaskService(repository.NewTaskRepository(db), nil)
	e := echo.New()
	Register(e, svc, db, filepath.Join(t.TempDir(), "backups"))
	return e
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func createTaskHTTP(t *testing.T, e *echo.Echo, body string) taskResponse {
	t.Helper()
	rec := do(e, http.MethodPost, "/api/tasks", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp taskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCreateAndGetTask(t *testing.T) {
	e := newTestServer(t)

	created := createTaskHTTP(t, e, `{"title":"Hello","description":"world"}`)
	require.Equal(t, "Hello", created.Title)
	require.Equal(t, "todo", created.Status)
	require.Equal(t, 3, created.Priority)

	rec := do(e, http.MethodGet, "/api/tasks/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got taskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, created.ID, got.ID)
	require.Equal(t, "world", got.Description)
}

func TestCreateTaskValidation(t *testing.T) {
	e := newTestServer(t)

	rec := do(e, http.MethodPost, "/api/tasks", `{"title":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "title")

	rec = do(e, http.MethodPost, "/api/tasks", `{"title":"X","priority":9}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAbsentTask(t *testing.T) {
	e := newTestServer(t)

	rec := do(e, http.MethodGet, "/api/tasks/00000000-0000-0000-0000-000000000001", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(e, http.MethodGet, "/api/tasks/not-a-uuid", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateTask(t *testing.T) {
	e := newTestServer(t)
	created := createTaskHTTP(t, e, `{"title":"Before"}`)

	rec := do(e, http.MethodPatch, "/api/tasks/"+created.ID, `{"title":"After","status":"in_progress"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got taskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "After", got.Title)
	require.Equal(t, "in_progress", got.Status)
}

func TestDeleteCascade(t *testing.T) {
	e := newTestServer(t)
	root := createTaskHTTP(t, e, `{"title":"Root"}`)
	child := createTaskHTTP(t, e, `{"title":"Child","parent_id":"`+root.ID+`"}`)

	rec := do(e, http.MethodDelete, "/api/tasks/"+root.ID, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(e, http.MethodGet, "/api/tasks/"+child.ID, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteNoCascadeRejected(t *testing.T) {
	e := newTestServer(t)
	root := createTaskHTTP(t, e, `{"title":"Root"}`)
	createTaskHTTP(t, e, `{"title":"Child","parent_id":"`+root.ID+`"}`)

	rec := do(e, http.MethodDelete, "/api/tasks/"+root.ID+"?cascade=false", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "children")
}

func TestMoveAndChildren(t *testing.T) {
	e := newTestServer(t)
	root := createTaskHTTP(t, e, `{"title":"Root"}`)
	loose := createTaskHTTP(t, e, `{"title":"Loose"}`)

	rec := do(e, http.MethodPost, "/api/tasks/"+loose.ID+"/move",
		`{"parent_id":"`+root.ID+`","order_index":0}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(e, http.MethodGet, "/api/tasks/"+root.ID+"/children", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var children []taskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &children))
	require.Len(t, children, 1)
	require.Equal(t, loose.ID, children[0].ID)
}

func TestMoveCycleRejected(t *testing.T) {
	e := newTestServer(t)
	root := createTaskHTTP(t, e, `{"title":"Root"}`)
	child := createTaskHTTP(t, e, `{"title":"Child","parent_id":"`+root.ID+`"}`)

	rec := do(e, http.MethodPost, "/api/tasks/"+root.ID+"/move",
		`{"parent_id":"`+child.ID+`","order_index":0}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "cycle")
}

func TestSearchEndpoint(t *testing.T) {
	e := newTestServer(t)
	createTaskHTTP(t, e, `{"title":"Physics"}`)
	createTaskHTTP(t, e, `{"title":"Math"}`)

	rec := do(e, http.MethodGet, "/api/tasks/search?q=Phys", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var found []taskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &found))
	require.Len(t, found, 1)
	require.Equal(t, "Physics", found[0].Title)

	rec = do(e, http.MethodGet, "/api/tasks/search", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRootsAndSubtree(t *testing.T) {
	e := newTestServer(t)
	root := createTaskHTTP(t, e, `{"title":"Root"}`)
	createTaskHTTP(t, e, `{"title":"Child","parent_id":"`+root.ID+`"}`)

	rec := do(e, http.MethodGet, "/api/tasks/roots", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var roots []taskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &roots))
	require.Len(t, roots, 1)

	rec = do(e, http.MethodGet, "/api/tasks/"+root.ID+"/subtree", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var subtree []taskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &subtree))
	require.Len(t, subtree, 2)
	require.Equal(t, "Root", subtree[0].Title)
}

func TestBackupEndpoint(t *testing.T) {
	e := newTestServer(t)
	createTaskHTTP(t, e, `{"title":"Keep"}`)

	rec := do(e, http.MethodPost, "/api/backup", "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Contains(t, resp["path"], "tasks_")
}

func TestHealthz(t *testing.T) {
	e := newTestServer(t)
	rec := do(e, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
}
