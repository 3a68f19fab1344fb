package server

import (
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/gin-gonic/gin"
    "github.com/spf13/afero"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "kanban-task-man/internal/logs"
    "kanban-task-man/internal/tasks"
)

func init() {
    gin.SetMode(gin.TestMode)
}

type envelope struct {
    Success bool            `json:"success"`
    Data    json.RawMessage `json:"data"`
    Error   string          `json:"error"`
    Kind    string          `json:"kind"`
}

func setup(t *testing.T) (*Server, *tasks.Manager) {
    t.Helper()
    now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
    m := tasks.NewManager(afero.NewMemMapFs(), tasks.WithLogger(logs.Discard()), tasks.WithClock(func() time.Time { return now }))
    return New(m, logs.Discard()), m
}

func do(t *testing.T, s *Server, method, path, body string) (int, envelope) {
    t.Helper()
    var req *http.Request
    if body == "" {
        req = httptest.NewRequest(method, path, nil)
    } else {
        req = httptest.NewRequest(method, path, strings.NewReader(body))
        req.Header.Set("Content-Type", "application/json")
    }
    w := httptest.NewRecorder()
    s.Handler().ServeHTTP(w, req)
    var env envelope
    if w.Body.Len() > 0 {
        require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
    }
    return w.Code, env
}

func TestHealthz(t *testing.T) {
    s, _ := setup(t)
    req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
    w := httptest.NewRecorder()
    s.Handler().ServeHTTP(w, req)
    assert.Equal(t, http.StatusOK, w.Code)
    assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestAddListMove(t *testing.T) {
    s, m := setup(t)

    code, env := do(t, s, http.MethodPost, "/api/tasks", `{"title":"T","lane":"Todo","tags":["x","y"],"due":"2024-02-01","content":"body"}`)
    require.Equal(t, http.StatusCreated, code, env.Error)
    var tv taskView
    require.NoError(t, json.Unmarshal(env.Data, &tv))
    assert.Equal(t, []string{"x", "y"}, tv.Tags)
    assert.Equal(t, "2024-02-01", tv.Due)

    code, env = do(t, s, http.MethodPost, "/api/tasks", `{"title":"T","lane":"Todo"}`)
    assert.Equal(t, http.StatusConflict, code)
    assert.Equal(t, "DuplicateTask", env.Kind)
    assert.False(t, env.Success)

    code, env = do(t, s, http.MethodPost, "/api/tasks/T/move", `{"lane":"Done"}`)
    require.Equal(t, http.StatusOK, code, env.Error)
    got, err := m.FindTask("T")
    require.NoError(t, err)
    assert.Equal(t, "Done", got.Lane)

    code, env = do(t, s, http.MethodGet, "/api/tasks?lane=Done&tag=x", "")
    require.Equal(t, http.StatusOK, code)
    var list []taskView
    require.NoError(t, json.Unmarshal(env.Data, &list))
    require.Len(t, list, 1)
    assert.Equal(t, "T", list[0].Title)

    code, env = do(t, s, http.MethodGet, "/api/lanes", "")
    require.Equal(t, http.StatusOK, code)
    assert.JSONEq(t, `[{"name":"Done","task_count":1},{"name":"Todo","task_count":0}]`, string(env.Data))
}

func TestErrorStatusMapping(t *testing.T) {
    s, m := setup(t)
    _, err := m.AddTask(tasks.NewTask{Title: "A", Lane: "L"})
    require.NoError(t, err)

    cases := []struct {
        method, path, body string
        status             int
        kind               string
    }{
        {http.MethodGet, "/api/tasks?lane=Nope", "", http.StatusNotFound, "LaneNotFound"},
        {http.MethodPost, "/api/tasks/missing/move", `{"lane":"L"}`, http.StatusNotFound, "TaskNotFound"},
        {http.MethodPost, "/api/tasks", `{"title":"A","lane":"L"}`, http.StatusConflict, "DuplicateTask"},
        {http.MethodPost, "/api/tasks", `{"title":"","lane":"L"}`, http.StatusBadRequest, "InvalidInput"},
        {http.MethodPost, "/api/tasks", `{"title":"B","lane":"L","due":"soon"}`, http.StatusBadRequest, "InvalidInput"},
        {http.MethodPost, "/api/tasks", `not json`, http.StatusBadRequest, "InvalidInput"},
        {http.MethodPost, "/api/import", `{"title":"x"}`, http.StatusBadRequest, "InvalidInput"},
    }
    for _, c := range cases {
        code, env := do(t, s, c.method, c.path, c.body)
        assert.Equal(t, c.status, code, "%s %s", c.method, c.path)
        assert.Equal(t, c.kind, env.Kind, "%s %s", c.method, c.path)
    }
}

func TestUpdateTask(t *testing.T) {
    s, m := setup(t)
    due, _ := tasks.ParseDue("2024-03-01")
    _, err := m.AddTask(tasks.NewTask{Title: "T", Lane: "L", Tags: []string{"a"}, Due: due, Content: "old"})
    require.NoError(t, err)
    _, err = m.AddTask(tasks.NewTask{Title: "Other", Lane: "L"})
    require.NoError(t, err)

    code, env := do(t, s, http.MethodPatch, "/api/tasks/T", `{"content":"new","due":null}`)
    require.Equal(t, http.StatusOK, code, env.Error)
    got, err := m.FindTask("T")
    require.NoError(t, err)
    assert.Equal(t, "new", got.Content)
    assert.Equal(t, []string{"a"}, got.Tags)
    assert.True(t, got.Due.IsZero())

    code, env = do(t, s, http.MethodPatch, "/api/tasks/T", `{"title":"Other"}`)
    assert.Equal(t, http.StatusConflict, code)
    assert.Equal(t, "DuplicateTask", env.Kind)
}

func TestSplitStatsAndTrash(t *testing.T) {
    s, m := setup(t)
    _, err := m.AddTask(tasks.NewTask{Title: "F", Lane: "L", Tags: []string{"x"}, Content: "a [[split]] b"})
    require.NoError(t, err)

    code, env := do(t, s, http.MethodPost, "/api/split", "")
    require.Equal(t, http.StatusOK, code, env.Error)
    var sum tasks.SplitSummary
    require.NoError(t, json.Unmarshal(env.Data, &sum))
    assert.Equal(t, 1, sum.TasksSplit)
    assert.Equal(t, 2, sum.FragmentsCreated)

    code, env = do(t, s, http.MethodGet, "/api/stats", "")
    require.Equal(t, http.StatusOK, code)
    var st tasks.Stats
    require.NoError(t, json.Unmarshal(env.Data, &st))
    assert.Equal(t, map[string]int{"L": 2}, st.LaneCounts)
    assert.Equal(t, map[string]int{"x": 2, tasks.ProvenanceTag: 2}, st.TagCounts)

    code, env = do(t, s, http.MethodDelete, "/api/trash", "")
    require.Equal(t, http.StatusOK, code)
    assert.JSONEq(t, `{"removed":1}`, string(env.Data))
    code, env = do(t, s, http.MethodDelete, "/api/trash", "")
    require.Equal(t, http.StatusOK, code)
    assert.JSONEq(t, `{"removed":0}`, string(env.Data))
}

func TestImportRows(t *testing.T) {
    s, _ := setup(t)
    body := `[
        {"title":"One","tag_list":["a","b"],"task":"first","lane":"Todo","due_date":"2024-05-01"},
        {"title":"Two","tag_list":"c","task":"second","lane":"Todo"},
        {"title":"One","tag_list":"","task":"dup","lane":"Todo"},
        {"title":"NoLane","tag_list":"","task":"x"},
        "garbage"
    ]`
    code, env := do(t, s, http.MethodPost, "/api/import", body)
    require.Equal(t, http.StatusOK, code, env.Error)
    var res struct {
        Created  []taskView `json:"created"`
        Failures []struct {
            Row  int    `json:"row"`
            Kind string `json:"kind"`
        } `json:"failures"`
    }
    require.NoError(t, json.Unmarshal(env.Data, &res))
    require.Len(t, res.Created, 2)
    assert.Equal(t, []string{"a", "b"}, res.Created[0].Tags)
    kinds := map[int]string{}
    for _, f := range res.Failures { kinds[f.Row] = f.Kind }
    assert.Equal(t, map[int]string{3: "DuplicateTask", 4: "MalformedRow", 5: "MalformedRow"}, kinds)
}

func TestTrashAndRestoreEndpoints(t *testing.T) {
    s, m := setup(t)
    _, err := m.AddTask(tasks.NewTask{Title: "T", Lane: "Todo", Content: "body"})
    require.NoError(t, err)

    code, env := do(t, s, http.MethodGet, "/api/tasks/T", "")
    require.Equal(t, http.StatusOK, code, env.Error)

    code, env = do(t, s, http.MethodDelete, "/api/tasks/T", "")
    require.Equal(t, http.StatusOK, code, env.Error)
    var trashed struct {
        Name string `json:"name"`
        From string `json:"from"`
    }
    require.NoError(t, json.Unmarshal(env.Data, &trashed))
    assert.Equal(t, "T", trashed.Name)
    assert.Equal(t, "Todo", trashed.From)

    code, _ = do(t, s, http.MethodGet, "/api/tasks/T", "")
    assert.Equal(t, http.StatusNotFound, code)

    code, env = do(t, s, http.MethodGet, "/api/trash", "")
    require.Equal(t, http.StatusOK, code)
    var entries []tasks.TrashEntry
    require.NoError(t, json.Unmarshal(env.Data, &entries))
    require.Len(t, entries, 1)
    assert.Equal(t, "T", entries[0].Name)

    // no ledger attached, so the origin lane must be given
    code, env = do(t, s, http.MethodPost, "/api/trash/T/restore", "")
    assert.Equal(t, http.StatusBadRequest, code)
    assert.Equal(t, "InvalidInput", env.Kind)

    code, env = do(t, s, http.MethodPost, "/api/trash/T/restore", `{"lane":"Todo"}`)
    require.Equal(t, http.StatusOK, code, env.Error)
    var tv taskView
    require.NoError(t, json.Unmarshal(env.Data, &tv))
    assert.Equal(t, "Todo", tv.Lane)
    assert.Equal(t, "body", tv.Content)

    code, env = do(t, s, http.MethodPost, "/api/trash/Ghost/restore", `{"lane":"Todo"}`)
    assert.Equal(t, http.StatusNotFound, code)
    assert.Equal(t, "TaskNotFound", env.Kind)
}
