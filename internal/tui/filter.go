package tui

import (
    "strings"
    "time"

    "kanban-task-man/internal/tasks"
)

// specialFilter holds the -tag=, -lane= and -due tokens of a list filter.
type specialFilter struct {
    tag    string
    lane   string
    dueOp  string
    dueVal string
}

func (f specialFilter) empty() bool {
    return f.tag == "" && f.lane == "" && f.dueOp == ""
}

func (f specialFilter) match(t tasks.Task) bool {
    if f.tag != "" {
        ok := false
        for _, tg := range t.Tags {
            if strings.Contains(strings.ToLower(tg), f.tag) { ok = true; break }
        }
        if !ok { return false }
    }
    if f.lane != "" && !strings.Contains(strings.ToLower(t.Lane), f.lane) { return false }
    return matchesDueFilter(t.Due, f.dueOp, f.dueVal)
}

// parseSpecialFilter reads tokens (case-insensitive):
//   -tag=x      tag contains x
//   -lane=x     lane contains x
//   -due=x      formatted due date contains x
//   -due>=D     due on or after D
//   -due<=D     due on or before D
//   -due:P      due date starts with P (e.g. 2024-05)
//   -due=none   no due date
func parseSpecialFilter(q string) specialFilter {
    var f specialFilter
    for _, p := range strings.Fields(q) {
        pp := strings.ToLower(p)
        switch {
        case strings.HasPrefix(pp, "-tag="):
            f.tag = pp[len("-tag="):]
        case strings.HasPrefix(pp, "-lane="):
            f.lane = pp[len("-lane="):]
        // Order matters: check longer prefixes first
        case strings.HasPrefix(pp, "-due>="):
            f.dueOp, f.dueVal = ">=", p[len("-due>="):]
        case strings.HasPrefix(pp, "-due<="):
            f.dueOp, f.dueVal = "<=", p[len("-due<="):]
        case strings.HasPrefix(pp, "-due:"):
            f.dueOp, f.dueVal = "match", p[len("-due:"):]
        case strings.HasPrefix(pp, "-due="):
            f.dueOp, f.dueVal = "contains", pp[len("-due="):]
            if f.dueVal == "none" { f.dueOp = "none" }
        }
    }
    return f
}

func matchesDueFilter(due time.Time, op, val string) bool {
    if op == "" { return true }
    if op == "none" { return due.IsZero() }
    if val == "" { return true }
    if due.IsZero() { return false }
    formatted := tasks.FormatDue(due)
    switch op {
    case "contains":
        return strings.Contains(formatted, val)
    case "match":
        return strings.HasPrefix(formatted, val)
    case ">=":
        target, err := tasks.ParseDue(val)
        if err != nil { return strings.Contains(formatted, val) }
        return !due.Before(target)
    case "<=":
        target, err := tasks.ParseDue(val)
        if err != nil { return strings.Contains(formatted, val) }
        return !due.After(target)
    default:
        return true
    }
}
