package tasks

import (
    "time"
)

// Task is a single markdown task file. Title and Lane come from the file's
// location; Tags, Due and Content from its bytes.
type Task struct {
    Title   string
    Lane    string
    Tags    []string
    Due     time.Time
    Content string
    Path    string
    // Meta holds display data contributed by hooks. It is never written to disk.
    Meta    map[string]any
}

// Record returns the persisted part of the task.
func (t Task) Record() Record {
    return Record{Tags: t.Tags, Due: t.Due, Content: t.Content}
}

// HasTag reports whether tag is among the task's tags.
func (t Task) HasTag(tag string) bool {
    for _, x := range t.Tags {
        if x == tag {
            return true
        }
    }
    return false
}

// DueString is the due date as YYYY-MM-DD, or "" when absent.
func (t Task) DueString() string {
    return FormatDue(t.Due)
}

// NewTask is the input of Manager.AddTask.
type NewTask struct {
    Title   string
    Lane    string
    Tags    []string
    Due     time.Time
    Content string
}

// TaskUpdate lists the fields UpdateTask should change. Nil pointers and a nil
// Tags slice leave the field untouched; a non-nil empty Tags clears the tags.
type TaskUpdate struct {
    Content  *string
    Tags     []string
    NewTitle *string
    Due      *time.Time
    ClearDue bool
}

// LaneSummary is a lane name with its task count.
type LaneSummary struct {
    Name  string `json:"name"`
    Count int    `json:"task_count"`
}

func (l *Lanes) loadTask(p string) (Task, error) {
    b, err := l.readFile(p)
    if err != nil {
        return Task{}, err
    }
    r := Decode(b)
    return Task{
        Title:   titleFromPath(p),
        Lane:    laneFromPath(p),
        Tags:    r.Tags,
        Due:     r.Due,
        Content: r.Content,
        Path:    p,
        Meta:    map[string]any{},
    }, nil
}

func cloneTags(tags []string) []string {
    if tags == nil {
        return nil
    }
    out := make([]string, len(tags))
    copy(out, tags)
    return out
}
