package tui

import (
    "fmt"
    "strings"

    tea "github.com/charmbracelet/bubbletea"
    "github.com/charmbracelet/lipgloss"

    "kanban-task-man/internal/tasks"
)

// RestoreModel picks one trashed task. It quits after a choice and the caller
// reads Selected.
type RestoreModel struct {
    entries  []tasks.TrashEntry
    dir      string
    idx      int
    quitting bool
    selected string
    msg      string
}

func NewRestore(entries []tasks.TrashEntry, trashDir string) RestoreModel {
    return RestoreModel{entries: entries, dir: trashDir}
}

func (m RestoreModel) Init() tea.Cmd { return nil }

func (m RestoreModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
    switch msg := msg.(type) {
    case tea.KeyMsg:
        switch msg.String() {
        case "q", "esc", "ctrl+c":
            m.quitting = true
            return m, tea.Quit
        case "up", "k":
            if m.idx > 0 { m.idx-- }
            return m, nil
        case "down", "j":
            if m.idx < len(m.entries)-1 { m.idx++ }
            return m, nil
        case "enter":
            if len(m.entries) > 0 {
                m.selected = m.entries[m.idx].Name
            }
            m.quitting = true
            return m, tea.Quit
        case "o":
            _ = openInExplorer(m.dir)
            m.msg = fmt.Sprintf("opened: %s", m.dir)
            return m, nil
        }
    }
    return m, nil
}

func (m RestoreModel) View() string {
    if m.quitting {
        return ""
    }
    styleSel := lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
    var b strings.Builder
    b.WriteString("Restore a task from Trash\n")
    fmt.Fprintf(&b, "Directory: %s\n", m.dir)
    b.WriteString("Use ↑/↓ or j/k to navigate, Enter to restore, o to open folder, q to quit.\n\n")
    if len(m.entries) == 0 {
        b.WriteString("  Trash is empty\n")
    }
    for i, e := range m.entries {
        line := e.Name
        if e.Lane != "" {
            line = fmt.Sprintf("%-32s  from %-16s", e.Name, e.Lane)
        }
        if !e.TrashedAt.IsZero() {
            line += "  " + e.TrashedAt.Local().Format("2006-01-02 15:04:05")
        }
        if e.Reason != "" { line += "  (" + e.Reason + ")" }
        if i == m.idx {
            b.WriteString(styleSel.Render("> "+line) + "\n")
        } else {
            b.WriteString("  " + line + "\n")
        }
    }
    if m.msg != "" { b.WriteString("\n" + m.msg + "\n") }
    return b.String()
}

// Selected is the Trash file name chosen, or "" when the picker was left.
func (m RestoreModel) Selected() string { return m.selected }

// RunRestore shows the picker and returns the chosen Trash file name.
func RunRestore(entries []tasks.TrashEntry, trashDir string) (string, error) {
    out, err := tea.NewProgram(NewRestore(entries, trashDir)).Run()
    if err != nil { return "", err }
    return out.(RestoreModel).Selected(), nil
}
