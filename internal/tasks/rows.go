package tasks

import (
    "encoding/csv"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "strings"
    "time"
)

// Required and optional columns of the bulk import contract.
const (
    ColTitle   = "title"
    ColTagList = "tag_list"
    ColTask    = "task"
    ColLane    = "lane"
    ColDueDate = "due_date"
)

var requiredCols = []string{ColTitle, ColTagList, ColTask, ColLane}

// Row is a validated bulk import row.
type Row struct {
    Index   int // 1-based position in the source, 0 when unknown
    Title   string
    Tags    []string
    Content string
    Lane    string
    Due     time.Time
}

type RowFailure struct {
    Index int
    Title string
    Err   error
}

func (f RowFailure) MarshalJSON() ([]byte, error) {
    return json.Marshal(struct {
        Index int    `json:"row"`
        Title string `json:"title"`
        Kind  string `json:"kind"`
        Error string `json:"error"`
    }{f.Index, f.Title, KindOf(f.Err), errString(f.Err)})
}

type ImportResult struct {
    Created  []Task       `json:"-"`
    Failures []RowFailure `json:"failures"`
}

// ParseRow maps a loosely typed row onto Row. Keys are matched
// case-insensitively; a missing required key, an empty title or lane, or an
// unparseable due date is ErrMalformedRow.
func ParseRow(index int, fields map[string]string) (Row, error) {
    norm := make(map[string]string, len(fields))
    for k, v := range fields {
        norm[strings.ToLower(strings.TrimSpace(k))] = v
    }
    title := strings.TrimSpace(norm[ColTitle])
    fail := func(format string, args ...any) (Row, error) {
        return Row{}, &Error{Op: "parse row", Title: title, Kind: ErrMalformedRow, Err: fmt.Errorf("row %d: "+format, append([]any{index}, args...)...)}
    }
    for _, c := range requiredCols {
        if _, ok := norm[c]; !ok {
            return fail("missing field %q", c)
        }
    }
    lane := strings.TrimSpace(norm[ColLane])
    if title == "" {
        return fail("empty title")
    }
    if lane == "" {
        return fail("empty lane")
    }
    due, err := ParseDue(norm[ColDueDate])
    if err != nil {
        return fail("%v", err)
    }
    return Row{
        Index:   index,
        Title:   title,
        Tags:    SplitTagList(norm[ColTagList]),
        Content: norm[ColTask],
        Lane:    lane,
        Due:     due,
    }, nil
}

// ReadCSV reads a header-driven CSV file. A header lacking a required column
// fails the whole file; individual bad rows are returned as failures.
func ReadCSV(r io.Reader) ([]Row, []RowFailure, error) {
    cr := csv.NewReader(r)
    cr.FieldsPerRecord = -1
    header, err := cr.Read()
    if err != nil {
        if errors.Is(err, io.EOF) {
            return nil, nil, &Error{Op: "read csv", Kind: ErrMalformedRow, Err: errors.New("empty input")}
        }
        return nil, nil, &Error{Op: "read csv", Kind: ErrMalformedRow, Err: err}
    }
    cols := make([]string, len(header))
    have := map[string]bool{}
    for i, h := range header {
        cols[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
        have[cols[i]] = true
    }
    for _, c := range requiredCols {
        if !have[c] {
            return nil, nil, &Error{Op: "read csv", Kind: ErrMalformedRow, Err: fmt.Errorf("header missing column %q", c)}
        }
    }

    var rows []Row
    var fails []RowFailure
    for idx := 1; ; idx++ {
        rec, err := cr.Read()
        if errors.Is(err, io.EOF) {
            break
        }
        if err != nil {
            fails = append(fails, RowFailure{Index: idx, Err: &Error{Op: "read csv", Kind: ErrMalformedRow, Err: err}})
            continue
        }
        fields := map[string]string{}
        for i, v := range rec {
            if i < len(cols) {
                fields[cols[i]] = v
            }
        }
        row, err := ParseRow(idx, fields)
        if err != nil {
            fails = append(fails, RowFailure{Index: idx, Title: strings.TrimSpace(fields[ColTitle]), Err: err})
            continue
        }
        rows = append(rows, row)
    }
    return rows, fails, nil
}

// ImportRows adds every row independently; one row failing does not stop the
// others.
func (m *Manager) ImportRows(rows []Row) ImportResult {
    var res ImportResult
    for i, row := range rows {
        idx := row.Index
        if idx == 0 {
            idx = i + 1
        }
        t, err := m.AddTask(NewTask{Title: row.Title, Lane: row.Lane, Tags: row.Tags, Due: row.Due, Content: row.Content})
        if err != nil {
            res.Failures = append(res.Failures, RowFailure{Index: idx, Title: row.Title, Err: err})
            continue
        }
        res.Created = append(res.Created, t)
    }
    m.log.Info("rows imported", "created", len(res.Created), "failed", len(res.Failures))
    return res
}

func errString(err error) string {
    if err == nil {
        return ""
    }
    return err.Error()
}
