package tui

import (
    "errors"
    "fmt"
    "log/slog"
    "strings"

    tea "github.com/charmbracelet/bubbletea"

    "kanban-task-man/internal/hooks"
    "kanban-task-man/internal/tasks"
    "kanban-task-man/internal/zipper"
)

type boardLoadedMsg struct {
    lanes []tasks.LaneSummary
    tasks []tasks.Task
}

type hooksLoadedMsg struct{ env *hooks.HookEnv }

// actionDoneMsg reports a finished board mutation.
type actionDoneMsg struct {
    status      string
    reload      bool
    closeDetail bool
}

type exportDoneMsg struct {
    total   int
    zipPath string
    err     error
}

type errMsg struct{ error }

func (e errMsg) Error() string { return e.error.Error() }

func loadHooksCmd(dir string, log *slog.Logger) tea.Cmd {
    return func() tea.Msg {
        env, _ := hooks.LoadDir(dir, log)
        return hooksLoadedMsg{env}
    }
}

// loadCmd reads lane counts and the tasks of the current view.
func (m model) loadCmd() tea.Cmd {
    mgr, env, lane, tag := m.mgr, m.hooks, m.currentLane(), m.tag
    return func() tea.Msg {
        lanes, err := mgr.ListLanes()
        if err != nil { return errMsg{err} }
        if lane != "" {
            found := false
            for _, l := range lanes { if l.Name == lane { found = true } }
            if !found { lane = "" }
        }
        list, err := mgr.ListTasksWithHooks(lane, tag, env)
        if err != nil { return errMsg{err} }
        return boardLoadedMsg{lanes: lanes, tasks: list}
    }
}

func moveCmd(mgr *tasks.Manager, ts []tasks.Task, lane string, fromDetail bool) tea.Cmd {
    return func() tea.Msg {
        var errs []error
        moved := 0
        for _, t := range ts {
            if _, err := mgr.MoveTask(t.Title, lane); err != nil {
                errs = append(errs, err)
                continue
            }
            moved++
        }
        status := fmt.Sprintf("moved %d task(s) to %s", moved, lane)
        if len(errs) > 0 { status += ": " + errors.Join(errs...).Error() }
        return actionDoneMsg{status: status, reload: true, closeDetail: fromDetail && moved > 0}
    }
}

func trashCmd(mgr *tasks.Manager, ts []tasks.Task) tea.Cmd {
    return func() tea.Msg {
        var names []string
        var errs []error
        for _, t := range ts {
            if _, err := mgr.TrashTask(t.Title); err != nil {
                errs = append(errs, err)
                continue
            }
            names = append(names, t.Title)
        }
        status := "trashed: " + strings.Join(names, ", ")
        if len(errs) > 0 { status += "; " + errors.Join(errs...).Error() }
        return actionDoneMsg{status: status, reload: true, closeDetail: len(names) > 0}
    }
}

func splitCmd(mgr *tasks.Manager) tea.Cmd {
    return func() tea.Msg {
        sum, err := mgr.SplitTasks(tasks.SplitOptions{})
        if err != nil { return errMsg{err} }
        status := fmt.Sprintf("split %d task(s) into %d fragment(s)", sum.TasksSplit, sum.FragmentsCreated)
        if n := len(sum.Failures); n > 0 {
            status += fmt.Sprintf(", %d failed: %v", n, sum.Failures[0].Err)
        }
        return actionDoneMsg{status: status, reload: true}
    }
}

func exportCmd(mgr *tasks.Manager, lanes []string, zipPath string) tea.Cmd {
    return func() tea.Msg {
        total := 0
        _, err := zipper.ExportLanesWithProgress(mgr, lanes, zipPath, func(cur, all int) { total = all })
        return exportDoneMsg{total: total, zipPath: zipPath, err: err}
    }
}
