package tasks

import (
    "kanban-task-man/internal/hooks"
)

// ListTasksWithHooks is ListTasks followed by the extendTask hook. Keys of the
// map it returns are merged into Task.Meta; a hook cannot change persisted
// fields.
func (m *Manager) ListTasksWithHooks(lane, tag string, env *hooks.HookEnv) ([]Task, error) {
    list, err := m.ListTasks(lane, tag)
    if err != nil { return nil, err }
    if !env.Has(hooks.FnExtendTask) { return list, nil }
    for i := range list {
        t := &list[i]
        out, ok := env.CallMap(hooks.FnExtendTask, TaskMap(*t))
        if !ok { continue }
        if t.Meta == nil { t.Meta = map[string]any{} }
        for k, v := range out {
            t.Meta[k] = v
        }
        m.log.Debug("extendTask applied", "lane", t.Lane, "title", t.Title, "keys", len(out))
    }
    return list, nil
}

// TaskMap is the view of a task handed to hook scripts.
func TaskMap(t Task) map[string]any {
    tags := make([]any, len(t.Tags))
    for i, s := range t.Tags {
        tags[i] = s
    }
    meta := map[string]any{}
    for k, v := range t.Meta {
        meta[k] = v
    }
    return map[string]any{
        "title":   t.Title,
        "lane":    t.Lane,
        "tags":    tags,
        "due":     t.DueString(),
        "content": t.Content,
        "path":    t.Path,
        "meta":    meta,
    }
}

