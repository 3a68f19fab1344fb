package hooks

import (
    "log/slog"
    "os"
    "path/filepath"
    "sort"
    "strings"
    "sync"

    "github.com/dop251/goja"
)

// Names of the functions a hook script may define.
const (
    FnExtendTask         = "extendTask"
    FnRenderTaskListItem = "renderTaskListItem"
    FnRenderTaskDetail   = "renderTaskDetail"
)

var known = []string{FnExtendTask, FnRenderTaskListItem, FnRenderTaskDetail}

// HookEnv is one goja runtime holding every loaded script. goja runtimes are
// not goroutine safe, so calls are serialized.
type HookEnv struct {
    mu     sync.Mutex
    rt     *goja.Runtime
    log    *slog.Logger
    loaded []string
}

// LoadDir evaluates every *.js file in dir in name order. A missing or empty
// dir yields a usable env with no hooks. Scripts failing to evaluate are logged
// and skipped.
func LoadDir(dir string, logger *slog.Logger) (*HookEnv, error) {
    if logger == nil { logger = slog.Default() }
    env := &HookEnv{rt: goja.New(), log: logger.With("component", "hooks")}
    // expose minimal FS read helper
    env.rt.Set("readText", func(call goja.FunctionCall) goja.Value {
        if len(call.Arguments) < 1 { return goja.Undefined() }
        b, err := os.ReadFile(call.Arguments[0].String())
        if err != nil { return goja.Null() }
        return env.rt.ToValue(string(b))
    })
    if dir == "" { return env, nil }
    entries, err := os.ReadDir(dir)
    if err != nil {
        env.log.Debug("hooks dir unreadable", "dir", dir, "error", err)
        return env, nil
    }
    names := make([]string, 0, len(entries))
    for _, e := range entries {
        if e.IsDir() || filepath.Ext(e.Name()) != ".js" { continue }
        names = append(names, e.Name())
    }
    sort.Strings(names)
    for _, name := range names {
        b, err := os.ReadFile(filepath.Join(dir, name))
        if err != nil {
            env.log.Warn("hook unreadable", "file", name, "error", err)
            continue
        }
        if err := env.Eval(name, string(b)); err != nil {
            env.log.Warn("hook evaluation failed", "file", name, "error", err)
            continue
        }
        env.log.Debug("hook loaded", "file", name)
    }
    for _, fn := range known {
        if env.Has(fn) { env.log.Debug("hook function available", "name", fn) }
    }
    return env, nil
}

// Eval runs a script source in the env. Simple ESM export keywords are
// stripped so scripts can be shared with module-aware tooling.
func (h *HookEnv) Eval(name, code string) error {
    code = strings.ReplaceAll(code, "export function ", "function ")
    code = strings.ReplaceAll(code, "export const ", "const ")
    code = strings.ReplaceAll(code, "export let ", "let ")
    code = strings.ReplaceAll(code, "export var ", "var ")
    h.mu.Lock()
    defer h.mu.Unlock()
    if _, err := h.rt.RunScript(name, code); err != nil { return err }
    h.loaded = append(h.loaded, name)
    return nil
}

// Loaded lists the scripts that evaluated successfully.
func (h *HookEnv) Loaded() []string {
    if h == nil { return nil }
    h.mu.Lock()
    defer h.mu.Unlock()
    return append([]string(nil), h.loaded...)
}

// Has reports whether fn is defined as a function.
func (h *HookEnv) Has(fn string) bool {
    if h == nil || h.rt == nil { return false }
    h.mu.Lock()
    defer h.mu.Unlock()
    _, ok := goja.AssertFunction(h.rt.Get(fn))
    return ok
}

// Call invokes fn with arg. ok is false when fn is undefined or throws.
func (h *HookEnv) Call(fn string, arg any) (any, bool) {
    if h == nil || h.rt == nil { return nil, false }
    h.mu.Lock()
    defer h.mu.Unlock()
    f, ok := goja.AssertFunction(h.rt.Get(fn))
    if !ok { return nil, false }
    rv, err := f(goja.Undefined(), h.rt.ToValue(arg))
    if err != nil {
        h.log.Warn("hook call failed", "name", fn, "error", err)
        return nil, false
    }
    if goja.IsUndefined(rv) || goja.IsNull(rv) { return nil, false }
    out := rv.Export()
    h.log.Debug("hook returned", "name", fn, "value", out)
    return out, true
}

func (h *HookEnv) CallString(fn string, arg any) (string, bool) {
    v, ok := h.Call(fn, arg)
    if !ok { return "", false }
    s, ok := v.(string)
    return s, ok
}

func (h *HookEnv) CallMap(fn string, arg any) (map[string]any, bool) {
    v, ok := h.Call(fn, arg)
    if !ok { return nil, false }
    m, ok := v.(map[string]any)
    return m, ok
}

// ListItem is what renderTaskListItem returns.
type ListItem struct {
    Title string
    Desc  string
}

// RenderListItem calls renderTaskListItem; missing keys stay empty.
func (h *HookEnv) RenderListItem(task map[string]any) (ListItem, bool) {
    m, ok := h.CallMap(FnRenderTaskListItem, task)
    if !ok { return ListItem{}, false }
    it := ListItem{}
    it.Title, _ = m["title"].(string)
    it.Desc, _ = m["desc"].(string)
    return it, it.Title != "" || it.Desc != ""
}

type Section struct {
    Heading string
    Body    string
}

// Detail is what renderTaskDetail returns.
type Detail struct {
    Title    string
    Sections []Section
}

func (h *HookEnv) RenderDetail(task map[string]any) (Detail, bool) {
    m, ok := h.CallMap(FnRenderTaskDetail, task)
    if !ok { return Detail{}, false }
    d := Detail{}
    d.Title, _ = m["title"].(string)
    if arr, ok := m["sections"].([]any); ok {
        for _, it := range arr {
            sm, ok := it.(map[string]any)
            if !ok { continue }
            var s Section
            s.Heading, _ = sm["heading"].(string)
            s.Body, _ = sm["body"].(string)
            d.Sections = append(d.Sections, s)
        }
    }
    return d, true
}

// Markdown renders d as a markdown document.
func (d Detail) Markdown() string {
    var b strings.Builder
    if d.Title != "" {
        b.WriteString("# " + d.Title + "\n\n")
    }
    for _, s := range d.Sections {
        if s.Heading != "" { b.WriteString("## " + s.Heading + "\n\n") }
        b.WriteString(strings.TrimRight(s.Body, "\n") + "\n\n")
    }
    return b.String()
}
