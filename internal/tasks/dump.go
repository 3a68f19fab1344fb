package tasks

import (
    "fmt"
    "io"
    "strings"
)

// DumpMarkdown writes a board overview: one heading per lane, then one bullet
// per task with its tags and due date. Titles and content previews are
// constrained to a single line; the full content follows in a details block
// when the preview had to be shortened.
func (m *Manager) DumpMarkdown(w io.Writer) error {
    return m.DumpMarkdownWithProgress(w, nil)
}

// DumpMarkdownWithProgress is like DumpMarkdown but calls progress(cur, total)
// after each lane.
func (m *Manager) DumpMarkdownWithProgress(w io.Writer, progress func(int, int)) error {
    const maxTitle = 120
    const maxPreview = 120
    lanes, err := m.lanes.ListLanes()
    if err != nil { return err }
    total := len(lanes)
    for i, lane := range lanes {
        ts, err := m.laneTasks(lane)
        if err != nil { return err }
        fmt.Fprintf(w, "# %s\n\n", lane)
        if len(ts) == 0 {
            fmt.Fprintln(w, "_No tasks._")
            fmt.Fprintln(w)
        }
        for _, t := range ts {
            title, _, _ := CleanOneLine(t.Title, maxTitle)
            fmt.Fprintf(w, "- **%s**", title)
            if len(t.Tags) > 0 {
                fmt.Fprintf(w, " `%s`", strings.Join(t.Tags, "` `"))
            }
            if !t.Due.IsZero() {
                fmt.Fprintf(w, " (due %s)", t.DueString())
            }
            fmt.Fprintln(w)
            full := strings.TrimSpace(t.Content)
            preview, changed, truncated := CleanOneLine(full, maxPreview)
            if preview != "" {
                fmt.Fprintf(w, "  %s\n", preview)
            }
            if truncated || (changed && strings.Contains(full, "\n")) {
                fmt.Fprintf(w, "\n  <details><summary>%s</summary>\n\n", escapeHTML(title))
                fmt.Fprintf(w, "  ```\n%s\n  ```\n\n", full)
                fmt.Fprintln(w, "  </details>")
            }
        }
        if i != total-1 { fmt.Fprint(w, "\n---\n\n") } else { fmt.Fprintln(w) }
        if progress != nil { progress(i+1, total) }
    }
    return nil
}

// Minimal HTML escaping for <summary> text
func escapeHTML(s string) string {
    r := strings.NewReplacer(
        "&", "&amp;",
        "<", "&lt;",
        ">", "&gt;",
        "\"", "&quot;",
        "'", "&#39;",
    )
    return r.Replace(s)
}
