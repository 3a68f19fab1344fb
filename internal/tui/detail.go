package tui

import (
    "fmt"
    "sort"
    "strings"

    "kanban-task-man/internal/hooks"
    "kanban-task-man/internal/tasks"
)

// renderDetailMarkdown builds the markdown rendered in the detail viewport.
func renderDetailMarkdown(t tasks.Task, env *hooks.HookEnv) string {
    b := &strings.Builder{}
    fmt.Fprintf(b, "# %s\n\n", t.Title)
    fmt.Fprintf(b, "- Lane: `%s`\n", t.Lane)
    if len(t.Tags) > 0 {
        fmt.Fprintf(b, "- Tags: `%s`\n", strings.Join(t.Tags, "`, `"))
    }
    if !t.Due.IsZero() { fmt.Fprintf(b, "- Due: %s\n", t.DueString()) }
    if t.Path != "" { fmt.Fprintf(b, "- Path: `%s`\n", t.Path) }
    metaKeys := make([]string, 0, len(t.Meta))
    for k := range t.Meta { metaKeys = append(metaKeys, k) }
    sort.Strings(metaKeys)
    for _, k := range metaKeys {
        fmt.Fprintf(b, "- %s: %v\n", k, t.Meta[k])
    }

    // Hook-provided sections
    if d, ok := env.RenderDetail(tasks.TaskMap(t)); ok {
        if d.Title != "" { fmt.Fprintf(b, "\n## %s\n", d.Title) }
        for _, s := range d.Sections {
            if s.Heading != "" { fmt.Fprintf(b, "\n### %s\n", s.Heading) }
            if s.Body != "" { fmt.Fprintf(b, "\n%s\n", strings.TrimRight(s.Body, "\n")) }
        }
    }

    fmt.Fprintf(b, "\n## Content\n\n")
    if strings.TrimSpace(t.Content) == "" {
        b.WriteString("_empty_\n")
    } else {
        b.WriteString(strings.TrimRight(t.Content, "\n") + "\n")
    }

    if tasks.HasSplitMarker(t.Content) {
        frags := tasks.Split(t.Content)
        fmt.Fprintf(b, "\n## Fragments (%d)\n\n", len(frags))
        for i, f := range frags {
            fmt.Fprintf(b, "### %d-%s\n\n", i+1, t.Title)
            if f == "" { f = "_empty_" }
            fmt.Fprintf(b, "%s\n\n", f)
        }
    }
    return b.String()
}
