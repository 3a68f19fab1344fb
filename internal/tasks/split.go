package tasks

import (
    "encoding/json"
    "errors"
    "fmt"
    "io/fs"
)

type SplitOptions struct {
    // CarryDue copies the original due date onto every fragment.
    CarryDue bool
}

type SplitResult struct {
    Lane      string   `json:"lane"`
    Title     string   `json:"title"`
    Fragments []string `json:"fragments"`
    TrashedAs string   `json:"trashed_as"`
}

type SplitFailure struct {
    Lane  string
    Title string
    Err   error
    // Leftover lists fragment files that were written and could not be removed
    // again after the failure.
    Leftover []string
}

func (f SplitFailure) MarshalJSON() ([]byte, error) {
    return json.Marshal(struct {
        Lane     string   `json:"lane"`
        Title    string   `json:"title"`
        Kind     string   `json:"kind"`
        Error    string   `json:"error"`
        Leftover []string `json:"leftover,omitempty"`
    }{f.Lane, f.Title, KindOf(f.Err), errString(f.Err), f.Leftover})
}

type SplitSummary struct {
    TasksSplit       int            `json:"tasks_split"`
    FragmentsCreated int            `json:"fragments_created"`
    Split            []SplitResult  `json:"split"`
    Failures         []SplitFailure `json:"failures"`
}

// SplitTasks breaks every task containing SplitMarker into numbered fragment
// tasks in the same lane, then moves the original into Trash. A task whose
// fragments cannot all be written is left in place and reported.
func (m *Manager) SplitTasks(opts SplitOptions) (SplitSummary, error) {
    var sum SplitSummary
    lanes, err := m.lanes.ListLanes()
    if err != nil { return sum, err }

    // Collect candidates first so fragments written below are never revisited.
    var todo []Task
    for _, lane := range lanes {
        files, err := m.lanes.ListLaneFiles(lane)
        if err != nil {
            sum.Failures = append(sum.Failures, SplitFailure{Lane: lane, Err: err})
            continue
        }
        for _, p := range files {
            t, err := m.lanes.loadTask(p)
            if err != nil {
                sum.Failures = append(sum.Failures, SplitFailure{Lane: lane, Title: titleFromPath(p), Err: storageErr("read task", lane, titleFromPath(p), err)})
                continue
            }
            if HasSplitMarker(t.Content) {
                todo = append(todo, t)
            }
        }
    }

    for _, t := range todo {
        res, fail := m.splitOne(t, opts)
        if fail != nil {
            m.log.Warn("split failed", "lane", t.Lane, "title", t.Title, "error", fail.Err, "leftover", fail.Leftover)
            sum.Failures = append(sum.Failures, *fail)
            continue
        }
        sum.TasksSplit++
        sum.FragmentsCreated += len(res.Fragments)
        sum.Split = append(sum.Split, res)
    }
    return sum, nil
}

func (m *Manager) splitOne(t Task, opts SplitOptions) (SplitResult, *SplitFailure) {
    const op = "split task"
    frags := Split(t.Content)
    tags := cloneTags(t.Tags)
    if !t.HasTag(ProvenanceTag) {
        tags = append(tags, ProvenanceTag)
    }

    titles := make([]string, len(frags))
    for i := range frags {
        titles[i] = fmt.Sprintf("%d-%s", i+1, t.Title)
        if m.lanes.exists(m.lanes.TaskPath(t.Lane, titles[i])) {
            return SplitResult{}, &SplitFailure{Lane: t.Lane, Title: t.Title, Err: newErr(op, t.Lane, titles[i], ErrDuplicateTask, nil)}
        }
    }

    var written []string
    for i, frag := range frags {
        rec := Record{Tags: tags, Content: frag}
        if opts.CarryDue {
            rec.Due = t.Due
        }
        p := m.lanes.TaskPath(t.Lane, titles[i])
        if err := m.lanes.writeFile(p, Encode(rec)); err != nil {
            return SplitResult{}, &SplitFailure{
                Lane: t.Lane, Title: t.Title,
                Err:      storageErr(op, t.Lane, titles[i], err),
                Leftover: m.removeAll(written),
            }
        }
        written = append(written, p)
    }

    trashed, err := m.trash(t, "split")
    if err != nil {
        return SplitResult{}, &SplitFailure{
            Lane: t.Lane, Title: t.Title,
            Err:      err,
            Leftover: m.removeAll(written),
        }
    }
    m.log.Info("task split", "lane", t.Lane, "title", t.Title, "fragments", len(frags))
    return SplitResult{Lane: t.Lane, Title: t.Title, Fragments: titles, TrashedAs: titleFromPath(trashed.Path)}, nil
}

// removeAll deletes paths and returns those that could not be deleted.
func (m *Manager) removeAll(paths []string) []string {
    var left []string
    for _, p := range paths {
        if err := m.fs.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
            left = append(left, p)
        }
    }
    return left
}
