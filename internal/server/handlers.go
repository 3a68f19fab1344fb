package server

import (
    "errors"
    "io"
    "net/http"
    "path"
    "path/filepath"
    "strings"
    "time"

    "github.com/gin-gonic/gin"
    "github.com/tidwall/gjson"

    "kanban-task-man/internal/tasks"
    "kanban-task-man/internal/version"
)

// taskView is the JSON shape of a task.
type taskView struct {
    Title   string         `json:"title"`
    Lane    string         `json:"lane"`
    Tags    []string       `json:"tags"`
    Due     string         `json:"due,omitempty"`
    Content string         `json:"content"`
    Meta    map[string]any `json:"meta,omitempty"`
}

func viewOf(t tasks.Task) taskView {
    tags := t.Tags
    if tags == nil { tags = []string{} }
    return taskView{Title: t.Title, Lane: t.Lane, Tags: tags, Due: t.DueString(), Content: t.Content, Meta: t.Meta}
}

func ok(c *gin.Context, status int, data any) {
    c.JSON(status, gin.H{"success": true, "data": data})
}

// fail maps a tasks error kind onto an HTTP status.
func (s *Server) fail(c *gin.Context, err error) {
    status := http.StatusInternalServerError
    switch {
    case errors.Is(err, tasks.ErrLaneNotFound), errors.Is(err, tasks.ErrTaskNotFound):
        status = http.StatusNotFound
    case errors.Is(err, tasks.ErrDuplicateTask):
        status = http.StatusConflict
    case errors.Is(err, tasks.ErrMalformedRow):
        status = http.StatusUnprocessableEntity
    case errors.Is(err, tasks.ErrInvalidInput):
        status = http.StatusBadRequest
    case errors.Is(err, tasks.ErrStorageUnavailable):
        status = http.StatusServiceUnavailable
    }
    if status >= 500 {
        s.log.Error("request failed", "path", c.Request.URL.Path, "error", err)
    }
    c.JSON(status, gin.H{"success": false, "error": err.Error(), "kind": tasks.KindOf(err)})
}

func badRequest(op string, cause error) error {
    return &tasks.Error{Op: op, Kind: tasks.ErrInvalidInput, Err: cause}
}

// readJSON returns the request body when it is valid JSON.
func readJSON(c *gin.Context, op string) (string, error) {
    b, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodySize+1))
    if err != nil { return "", badRequest(op, err) }
    if len(b) > maxBodySize { return "", badRequest(op, errors.New("body too large")) }
    if !gjson.ValidBytes(b) { return "", badRequest(op, errors.New("body is not valid JSON")) }
    return string(b), nil
}

// tagsOf accepts either a JSON array of strings or a comma separated string.
func tagsOf(r gjson.Result) []string {
    if r.IsArray() {
        out := []string{}
        for _, v := range r.Array() {
            if s := strings.TrimSpace(v.String()); s != "" { out = append(out, s) }
        }
        return out
    }
    return tasks.SplitTagList(r.String())
}

// firstOf returns the first of keys present in body.
func firstOf(body string, keys ...string) gjson.Result {
    for _, k := range keys {
        if r := gjson.Get(body, k); r.Exists() { return r }
    }
    return gjson.Result{}
}

func (s *Server) handleHealth(c *gin.Context) {
    c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.String(), "time": time.Now().UTC()})
}

func (s *Server) handleLanes(c *gin.Context) {
    lanes, err := s.m.ListLanes()
    if err != nil { s.fail(c, err); return }
    if lanes == nil { lanes = []tasks.LaneSummary{} }
    ok(c, http.StatusOK, lanes)
}

func (s *Server) handleListTasks(c *gin.Context) {
    list, err := s.m.ListTasks(c.Query("lane"), c.Query("tag"))
    if err != nil { s.fail(c, err); return }
    out := make([]taskView, 0, len(list))
    for _, t := range list { out = append(out, viewOf(t)) }
    ok(c, http.StatusOK, out)
}

func (s *Server) handleStats(c *gin.Context) {
    st, err := s.m.Statistics()
    if err != nil { s.fail(c, err); return }
    ok(c, http.StatusOK, st)
}

func (s *Server) handleAddTask(c *gin.Context) {
    const op = "add task"
    body, err := readJSON(c, op)
    if err != nil { s.fail(c, err); return }
    due, err := tasks.ParseDue(firstOf(body, "due", "due_date").String())
    if err != nil { s.fail(c, badRequest(op, err)); return }
    t, err := s.m.AddTask(tasks.NewTask{
        Title:   strings.TrimSpace(gjson.Get(body, "title").String()),
        Lane:    strings.TrimSpace(gjson.Get(body, "lane").String()),
        Tags:    tagsOf(firstOf(body, "tags", "tag_list")),
        Due:     due,
        Content: firstOf(body, "content", "task").String(),
    })
    if err != nil { s.fail(c, err); return }
    ok(c, http.StatusCreated, viewOf(t))
}

func (s *Server) handleMoveTask(c *gin.Context) {
    body, err := readJSON(c, "move task")
    if err != nil { s.fail(c, err); return }
    t, err := s.m.MoveTask(c.Param("title"), strings.TrimSpace(gjson.Get(body, "lane").String()))
    if err != nil { s.fail(c, err); return }
    ok(c, http.StatusOK, viewOf(t))
}

// handleUpdateTask applies only the keys present in the body. A null or empty
// "due" clears the due date.
func (s *Server) handleUpdateTask(c *gin.Context) {
    const op = "update task"
    body, err := readJSON(c, op)
    if err != nil { s.fail(c, err); return }
    var u tasks.TaskUpdate
    if r := gjson.Get(body, "content"); r.Exists() {
        v := r.String()
        u.Content = &v
    }
    if r := gjson.Get(body, "tags"); r.Exists() {
        u.Tags = tagsOf(r)
        if u.Tags == nil { u.Tags = []string{} }
    }
    if r := gjson.Get(body, "title"); r.Exists() {
        v := strings.TrimSpace(r.String())
        u.NewTitle = &v
    }
    if r := gjson.Get(body, "due"); r.Exists() {
        if r.Type == gjson.Null || strings.TrimSpace(r.String()) == "" {
            u.ClearDue = true
        } else {
            d, err := tasks.ParseDue(r.String())
            if err != nil { s.fail(c, badRequest(op, err)); return }
            u.Due = &d
        }
    }
    t, err := s.m.UpdateTask(c.Param("title"), u)
    if err != nil { s.fail(c, err); return }
    ok(c, http.StatusOK, viewOf(t))
}

func (s *Server) handleSplit(c *gin.Context) {
    opts := tasks.SplitOptions{CarryDue: c.Query("carry_due") == "true"}
    if c.Request.ContentLength > 0 {
        body, err := readJSON(c, "split tasks")
        if err != nil { s.fail(c, err); return }
        if r := gjson.Get(body, "carry_due"); r.Exists() { opts.CarryDue = r.Bool() }
    }
    sum, err := s.m.SplitTasks(opts)
    if err != nil { s.fail(c, err); return }
    if sum.Split == nil { sum.Split = []tasks.SplitResult{} }
    if sum.Failures == nil { sum.Failures = []tasks.SplitFailure{} }
    ok(c, http.StatusOK, sum)
}

// handleImport takes a JSON array of row objects. Rows that do not satisfy
// the row contract are reported next to rows the manager rejected.
func (s *Server) handleImport(c *gin.Context) {
    const op = "import rows"
    body, err := readJSON(c, op)
    if err != nil { s.fail(c, err); return }
    arr := gjson.Parse(body)
    if !arr.IsArray() { s.fail(c, badRequest(op, errors.New("expected a JSON array of rows"))); return }

    var rows []tasks.Row
    var fails []tasks.RowFailure
    for i, obj := range arr.Array() {
        idx := i + 1
        if !obj.IsObject() {
            fails = append(fails, tasks.RowFailure{Index: idx, Err: &tasks.Error{Op: op, Kind: tasks.ErrMalformedRow, Err: errors.New("row is not an object")}})
            continue
        }
        fields := map[string]string{}
        obj.ForEach(func(k, v gjson.Result) bool {
            if v.IsArray() {
                fields[k.String()] = strings.Join(tagsOf(v), ",")
            } else {
                fields[k.String()] = v.String()
            }
            return true
        })
        row, err := tasks.ParseRow(idx, fields)
        if err != nil {
            fails = append(fails, tasks.RowFailure{Index: idx, Title: strings.TrimSpace(fields[tasks.ColTitle]), Err: err})
            continue
        }
        rows = append(rows, row)
    }
    res := s.m.ImportRows(rows)
    res.Failures = append(fails, res.Failures...)
    if res.Failures == nil { res.Failures = []tasks.RowFailure{} }
    created := make([]taskView, 0, len(res.Created))
    for _, t := range res.Created { created = append(created, viewOf(t)) }
    ok(c, http.StatusOK, gin.H{"created": created, "failures": res.Failures})
}

func (s *Server) handleEmptyTrash(c *gin.Context) {
    n, err := s.m.EmptyTrash()
    if err != nil { s.fail(c, err); return }
    ok(c, http.StatusOK, gin.H{"removed": n})
}

func (s *Server) handleGetTask(c *gin.Context) {
    t, err := s.m.FindTask(c.Param("title"))
    if err != nil { s.fail(c, err); return }
    ok(c, http.StatusOK, viewOf(t))
}

func (s *Server) handleTrashTask(c *gin.Context) {
    t, err := s.m.TrashTask(c.Param("title"))
    if err != nil { s.fail(c, err); return }
    ok(c, http.StatusOK, gin.H{"name": strings.TrimSuffix(path.Base(filepath.ToSlash(t.Path)), ".md"), "from": t.Meta["from"]})
}

func (s *Server) handleListTrash(c *gin.Context) {
    entries, err := s.m.TrashedTasks()
    if err != nil { s.fail(c, err); return }
    if entries == nil { entries = []tasks.TrashEntry{} }
    ok(c, http.StatusOK, entries)
}

// handleRestore takes an optional {lane}; without it the recorded origin lane
// is used.
func (s *Server) handleRestore(c *gin.Context) {
    lane := ""
    if c.Request.ContentLength > 0 {
        body, err := readJSON(c, "restore task")
        if err != nil { s.fail(c, err); return }
        lane = strings.TrimSpace(gjson.Get(body, "lane").String())
    }
    t, err := s.m.RestoreTask(c.Param("name"), lane)
    if err != nil { s.fail(c, err); return }
    ok(c, http.StatusOK, viewOf(t))
}
