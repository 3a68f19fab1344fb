package tui

import (
    "fmt"
    "log/slog"
    "os/exec"
    "path/filepath"
    "runtime"
    "strings"
    "time"

    "github.com/charmbracelet/bubbles/help"
    "github.com/charmbracelet/bubbles/key"
    "github.com/charmbracelet/bubbles/list"
    "github.com/charmbracelet/bubbles/spinner"
    "github.com/charmbracelet/bubbles/textinput"
    "github.com/charmbracelet/bubbles/viewport"
    "github.com/charmbracelet/glamour"
    tea "github.com/charmbracelet/bubbletea"
    "github.com/charmbracelet/lipgloss"

    "kanban-task-man/internal/config"
    "kanban-task-man/internal/hooks"
    "kanban-task-man/internal/tasks"
)

// promptKind is what the text input is currently collecting.
type promptKind int

const (
    promptNone promptKind = iota
    promptMove
    promptTag
    promptSearch
)

type model struct {
    cfg       config.Config
    mgr       *tasks.Manager
    log       *slog.Logger
    list      list.Model
    detail    *tasks.Task
    help      help.Model
    vp        viewport.Model
    spin      spinner.Model
    input     textinput.Model
    width     int
    height    int
    statusMsg string
    topMsg    string

    hooks    *hooks.HookEnv
    showHelp bool
    loading  bool
    pendingG bool

    lanes   []tasks.LaneSummary
    laneIdx int // 0 shows every lane, i>0 shows lanes[i-1]
    tag     string
    tasks   []tasks.Task

    prompt          promptKind
    confirmingTrash bool
    // detail search
    searchQuery    string
    renderedDetail string
    headings       []int

    lastFilter string
    // selection by lane/title, kept across reloads and filter changes
    selected map[string]bool
}

type item struct {
    t        tasks.Task
    selected bool
    title    string
    desc     string
}

func (i item) Title() string {
    if i.selected { return selectedPrefix() + i.title }
    return i.title
}
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string {
    return i.t.Title + " " + i.t.Lane + " " + strings.Join(i.t.Tags, " ") + " " + i.t.DueString() + " " + i.desc
}

func taskKey(t tasks.Task) string { return t.Lane + "/" + t.Title }

type keymap struct {
    open      key.Binding
    back      key.Binding
    refresh   key.Binding
    nextLane  key.Binding
    prevLane  key.Binding
    tag       key.Binding
    move      key.Binding
    split     key.Binding
    trash     key.Binding
    export    key.Binding
    toggleSel key.Binding
    clearSel  key.Binding
    openDir   key.Binding
    quit      key.Binding
}

func newKeymap() keymap {
    return keymap{
        open:      key.NewBinding(key.WithKeys("enter", "l"), key.WithHelp("enter/l", "open")),
        back:      key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "back")),
        refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
        nextLane:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next lane")),
        prevLane:  key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev lane")),
        tag:       key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "tag filter")),
        move:      key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "move")),
        split:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "split all")),
        trash:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "trash")),
        export:    key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export zip")),
        toggleSel: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle select")),
        clearSel:  key.NewBinding(key.WithKeys("C"), key.WithHelp("C", "clear selection")),
        openDir:   key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open lane dir")),
        quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
    }
}

var keys = newKeymap()

// New builds the board browser. tag preselects a tag filter; lane preselects a
// lane once the lane list is loaded.
func New(cfg config.Config, mgr *tasks.Manager, logger *slog.Logger, lane, tag string) model {
    if logger == nil { logger = slog.Default() }
    lm := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
    lm.SetShowStatusBar(false)
    lm.SetFilteringEnabled(true)
    lm.AdditionalShortHelpKeys = func() []key.Binding {
        return []key.Binding{keys.open, keys.nextLane, keys.tag, keys.move, keys.split, keys.trash, keys.export, keys.toggleSel, keys.refresh, keys.quit}
    }
    lm.AdditionalFullHelpKeys = lm.AdditionalShortHelpKeys
    hs := lm.Styles.HelpStyle
    hs = hs.Foreground(lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#B0B7C3"}).Bold(true)
    lm.Styles.HelpStyle = hs
    sp := spinner.New()
    sp.Spinner = spinner.MiniDot
    ti := textinput.New()
    ti.CharLimit = 200
    m := model{
        cfg: cfg, mgr: mgr, log: logger, list: lm, help: help.New(), spin: sp, input: ti,
        loading: true, tag: tag, selected: map[string]bool{},
    }
    if lane != "" {
        m.lanes = []tasks.LaneSummary{{Name: lane}}
        m.laneIdx = 1
    }
    m.setTitle()
    return m
}

// Run starts the board on the terminal and blocks until it exits.
func Run(cfg config.Config, mgr *tasks.Manager, logger *slog.Logger, lane, tag string) error {
    p := tea.NewProgram(New(cfg, mgr, logger, lane, tag), tea.WithAltScreen())
    _, err := p.Run()
    return err
}

func (m model) Init() tea.Cmd {
    return tea.Batch(loadHooksCmd(m.cfg.HooksDir, m.log), m.spin.Tick)
}

func (m model) currentLane() string {
    if m.laneIdx <= 0 || m.laneIdx > len(m.lanes) { return "" }
    return m.lanes[m.laneIdx-1].Name
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
    switch msg := msg.(type) {
    case tea.WindowSizeMsg:
        m.width, m.height = msg.Width, msg.Height
        m.list.SetSize(m.width, m.height-2)
        if m.detail != nil { m.renderDetailViewport() }
        return m, nil
    case boardLoadedMsg:
        cur := m.currentLane()
        m.lanes = msg.lanes
        m.laneIdx = 0
        for i, l := range m.lanes {
            if l.Name == cur { m.laneIdx = i + 1 }
        }
        m.tasks = msg.tasks
        m.loading = false
        m.setTitle()
        m.rebuildListItems()
        if len(m.tasks) == 0 {
            m.statusMsg = "No tasks found"
        } else if m.statusMsg == "" {
            m.statusMsg = fmt.Sprintf("%d tasks", len(m.tasks))
        }
        return m, nil
    case hooksLoadedMsg:
        m.hooks = msg.env
        m.setTitle()
        if len(m.tasks) > 0 { m.rebuildListItems() }
        return m, m.loadCmd()
    case actionDoneMsg:
        m.statusMsg = msg.status
        if m.detail != nil { m.topMsg = msg.status }
        if msg.reload {
            if msg.closeDetail { m.detail = nil }
            return m, m.loadCmd()
        }
        return m, nil
    case exportDoneMsg:
        if msg.err != nil {
            m.statusMsg = "export failed: " + msg.err.Error()
        } else {
            if ap, _ := filepath.Abs(msg.zipPath); ap != "" { msg.zipPath = ap }
            m.statusMsg = fmt.Sprintf("exported %d tasks to %s", msg.total, msg.zipPath)
            _ = openInExplorer(filepath.Dir(msg.zipPath))
        }
        if m.detail != nil { m.topMsg = m.statusMsg }
        return m, nil
    case spinner.TickMsg:
        var cmd tea.Cmd
        m.spin, cmd = m.spin.Update(msg)
        return m, cmd
    case errMsg:
        m.loading = false
        m.statusMsg = "error: " + msg.Error()
        if m.detail != nil { m.topMsg = m.statusMsg }
        return m, nil
    case tea.KeyMsg:
        if m.prompt != promptNone {
            return m.updatePrompt(msg)
        }
        if m.detail != nil {
            return m.updateDetail(msg)
        }
        if m.list.SettingFilter() {
            break
        }
        if m.confirmingTrash {
            switch msg.String() {
            case "y", "Y":
                m.confirmingTrash = false
                return m, trashCmd(m.mgr, m.targets())
            default:
                m.confirmingTrash = false
                m.statusMsg = "canceled"
                return m, nil
            }
        }
        switch msg.String() {
        case "q", "ctrl+c":
            return m, tea.Quit
        case "enter", "l":
            if it, ok := m.list.SelectedItem().(item); ok {
                t := it.t
                m.detail = &t
                m.topMsg = ""
                m.renderDetailViewport()
            }
            return m, nil
        case "r":
            m.loading = true
            m.statusMsg = ""
            return m, tea.Batch(loadHooksCmd(m.cfg.HooksDir, m.log), m.spin.Tick)
        case "tab":
            m.laneIdx = (m.laneIdx + 1) % (len(m.lanes) + 1)
            m.setTitle()
            return m, m.loadCmd()
        case "shift+tab":
            m.laneIdx = (m.laneIdx + len(m.lanes)) % (len(m.lanes) + 1)
            m.setTitle()
            return m, m.loadCmd()
        case "t":
            m.openPrompt(promptTag, "tag (empty clears)", m.tag)
            return m, textinput.Blink
        case "m":
            if len(m.targets()) == 0 { return m, nil }
            m.openPrompt(promptMove, "move to lane", "")
            return m, textinput.Blink
        case "s":
            m.statusMsg = "splitting..."
            return m, splitCmd(m.mgr)
        case "x":
            n := len(m.targets())
            if n == 0 { return m, nil }
            m.confirmingTrash = true
            m.statusMsg = fmt.Sprintf("Move %d task(s) to Trash? y/N", n)
            return m, nil
        case "e":
            var lanes []string
            if l := m.currentLane(); l != "" { lanes = []string{l} }
            m.statusMsg = "exporting..."
            return m, exportCmd(m.mgr, lanes, m.exportPath())
        case " ":
            if it, ok := m.list.SelectedItem().(item); ok {
                k := taskKey(it.t)
                m.selected[k] = !m.selected[k]
                it.selected = m.selected[k]
                m.list.SetItem(m.list.Index(), it)
            }
            return m, nil
        case "C":
            m.selected = map[string]bool{}
            m.rebuildListItems()
            m.statusMsg = "selection cleared"
            return m, nil
        case "o":
            if it, ok := m.list.SelectedItem().(item); ok {
                _ = openInExplorer(filepath.Join(m.cfg.BaseDir, it.t.Lane))
                m.statusMsg = "Opened folder"
            }
            return m, nil
        case "pgdown", "ctrl+f", "ctrl+d":
            per := len(m.list.VisibleItems())
            if per <= 0 { per = 1 }
            idx := m.list.Index() + per
            if idx >= len(m.list.Items()) { idx = len(m.list.Items()) - 1 }
            if idx < 0 { idx = 0 }
            m.list.Select(idx)
            return m, nil
        case "pgup", "ctrl+b", "ctrl+u":
            per := len(m.list.VisibleItems())
            if per <= 0 { per = 1 }
            idx := m.list.Index() - per
            if idx < 0 { idx = 0 }
            m.list.Select(idx)
            return m, nil
        case "?":
            m.showHelp = !m.showHelp
            m.list.SetShowHelp(m.showHelp)
            return m, nil
        }
    }

    // Delegate other events to list
    var cmd tea.Cmd
    m.list, cmd = m.list.Update(msg)
    // special filter tokens narrow the items before fuzzy filtering
    if f := m.list.FilterValue(); f != m.lastFilter {
        m.lastFilter = f
        m.rebuildListItems()
    }
    return m, cmd
}

func (m *model) openPrompt(kind promptKind, placeholder, value string) {
    m.prompt = kind
    m.input.Placeholder = placeholder
    m.input.SetValue(value)
    m.input.CursorEnd()
    m.input.Focus()
}

func (m model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
    switch msg.Type {
    case tea.KeyEsc, tea.KeyCtrlC:
        m.prompt = promptNone
        m.input.Blur()
        return m, nil
    case tea.KeyEnter:
        kind := m.prompt
        val := strings.TrimSpace(m.input.Value())
        m.prompt = promptNone
        m.input.Blur()
        switch kind {
        case promptTag:
            m.tag = val
            m.setTitle()
            return m, m.loadCmd()
        case promptMove:
            if val == "" { return m, nil }
            return m, moveCmd(m.mgr, m.targets(), val, m.detail != nil)
        case promptSearch:
            m.searchQuery = m.input.Value()
            m.applyDetailSearch()
        }
        return m, nil
    }
    var cmd tea.Cmd
    m.input, cmd = m.input.Update(msg)
    return m, cmd
}

func (m model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
    if m.confirmingTrash {
        m.confirmingTrash = false
        if s := msg.String(); s == "y" || s == "Y" {
            return m, trashCmd(m.mgr, []tasks.Task{*m.detail})
        }
        m.topMsg = "canceled"
        return m, nil
    }
    switch msg.String() {
    case "h", "q", "esc":
        m.detail = nil
        m.pendingG = false
        return m, nil
    case "j", "down":
        m.vp.LineDown(1)
    case "k", "up":
        m.vp.LineUp(1)
    case "pgdown", "ctrl+f":
        m.vp.ViewDown()
    case "pgup", "ctrl+b":
        m.vp.ViewUp()
    case "ctrl+d":
        m.vp.HalfViewDown()
    case "ctrl+u":
        m.vp.HalfViewUp()
    case "g":
        if m.pendingG { m.vp.GotoTop(); m.pendingG = false } else { m.pendingG = true }
        return m, nil
    case "G":
        m.vp.GotoBottom()
    case "J":
        jumpToNext(&m.vp, m.headings)
    case "K":
        jumpToPrev(&m.vp, m.headings)
    case "m":
        m.openPrompt(promptMove, "move to lane", "")
        return m, textinput.Blink
    case "x":
        m.confirmingTrash = true
        m.topMsg = "Move this task to Trash? y/N"
    case "o":
        _ = openInExplorer(filepath.Join(m.cfg.BaseDir, m.detail.Lane))
        m.topMsg = "Opened folder"
    case "/":
        m.openPrompt(promptSearch, "search...", "")
        return m, textinput.Blink
    case "n":
        m.findNext()
    case "N":
        m.findPrev()
    }
    m.pendingG = false
    return m, nil
}

// targets are the selected tasks, or the highlighted one when nothing is
// selected.
func (m model) targets() []tasks.Task {
    if m.detail != nil { return []tasks.Task{*m.detail} }
    var out []tasks.Task
    for _, t := range m.tasks {
        if m.selected[taskKey(t)] { out = append(out, t) }
    }
    if len(out) > 0 { return out }
    if it, ok := m.list.SelectedItem().(item); ok { return []tasks.Task{it.t} }
    return nil
}

func (m model) exportPath() string {
    base := m.cfg.ExportDir
    if base == "" { base = "." }
    name := "board"
    if l := m.currentLane(); l != "" { name = slug(l) }
    return filepath.Join(base, fmt.Sprintf("kanban-%s-%s.zip", name, time.Now().Format("20060102-150405")))
}

func (m model) View() string {
    if m.detail != nil {
        header := "(h) back  (m) move  (x) trash  (o) open dir  (/) search  (n/N) next/prev  (J/K) next/prev section"
        if m.topMsg != "" { header += "\n" + m.topMsg }
        if m.prompt != promptNone { header += "\n> " + m.input.View() }
        return header + "\n\n" + m.vp.View()
    }
    if m.loading {
        return fmt.Sprintf("%s Loading board...", m.spin.View())
    }
    out := m.list.View()
    if m.prompt != promptNone {
        out += "\n> " + m.input.View()
    }
    return out + footer(m.statusMsg)
}

func footer(msg string) string {
    if msg == "" { return "" }
    return "\n" + msg + "\n"
}

func (m *model) setTitle() {
    lane := "All lanes"
    if l := m.currentLane(); l != "" { lane = l }
    title := "Kanban: " + lane
    if len(m.lanes) > 0 {
        var parts []string
        for i, l := range m.lanes {
            s := fmt.Sprintf("%s(%d)", l.Name, l.Count)
            if i+1 == m.laneIdx { s = "[" + s + "]" }
            parts = append(parts, s)
        }
        title += "  " + strings.Join(parts, " ")
    }
    if m.tag != "" { title += "  [tag:" + m.tag + "]" }
    if m.hooks != nil && len(m.hooks.Loaded()) > 0 { title += "  [hooks]" }
    m.list.Title = title
}

func (m *model) renderDetailViewport() {
    if m.detail == nil { return }
    content := renderDetailMarkdown(*m.detail, m.hooks)
    width := m.width
    if width <= 0 { width = 80 }
    r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width-2))
    if err == nil {
        if s, err2 := r.Render(content); err2 == nil { content = s }
    }
    m.renderedDetail = content
    m.vp = viewport.New(width, max(3, m.height-4))
    m.vp.SetContent(content)
    m.headings = headingLines(content)
}

func (m *model) rebuildListItems() {
    base := m.tasks
    q := strings.TrimSpace(m.list.FilterValue())
    if f := parseSpecialFilter(q); !f.empty() {
        filtered := make([]tasks.Task, 0, len(base))
        for _, t := range base {
            if f.match(t) { filtered = append(filtered, t) }
        }
        base = filtered
    }

    items := make([]list.Item, 0, len(base))
    badge := lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Render("[H] ")
    for _, t := range base {
        sel := m.selected[taskKey(t)]
        if out, ok := m.hooks.RenderListItem(tasks.TaskMap(t)); ok {
            title := t.Title
            if out.Title != "" { title = sanitizeInline(out.Title) }
            desc := out.Desc
            if desc == "" { desc = describe(t) }
            items = append(items, item{t: t, selected: sel, title: badge + title, desc: sanitizeInline(desc)})
            continue
        }
        items = append(items, item{t: t, selected: sel, title: t.Title, desc: describe(t)})
    }
    m.list.SetItems(items)
}

// describe is the second list line: lane, tags, due date and a content preview.
func describe(t tasks.Task) string {
    parts := []string{t.Lane}
    if len(t.Tags) > 0 { parts = append(parts, "#"+strings.Join(t.Tags, " #")) }
    if !t.Due.IsZero() { parts = append(parts, "due "+t.DueString()) }
    if p, _, _ := tasks.CleanOneLine(t.Content, 60); p != "" { parts = append(parts, p) }
    return strings.Join(parts, " • ")
}

func sanitizeInline(s string) string {
    return strings.TrimSpace(strings.NewReplacer("\r", " ", "\n", " ").Replace(s))
}

func selectedPrefix() string {
    return lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render("[x] ")
}

func slug(s string) string {
    s = strings.ToLower(strings.TrimSpace(s))
    r := make([]rune, 0, len(s))
    for _, ch := range s {
        switch {
        case (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') || ch == '-' || ch == '_':
            r = append(r, ch)
        case ch == ' ' || ch == '/' || ch == '\\':
            r = append(r, '-')
        }
    }
    out := strings.Trim(strings.ReplaceAll(string(r), "--", "-"), "-")
    if out == "" { out = "export" }
    return out
}

func headingLines(rendered string) []int {
    var out []int
    for i, ln := range strings.Split(rendered, "\n") {
        if strings.HasPrefix(strings.TrimSpace(stripANSI(ln)), "#") { out = append(out, i) }
    }
    return out
}

func jumpToNext(vp *viewport.Model, lines []int) {
    if len(lines) == 0 { return }
    cur := vp.YOffset
    for _, ln := range lines { if ln > cur { vp.SetYOffset(ln); return } }
    vp.SetYOffset(lines[0])
}

func jumpToPrev(vp *viewport.Model, lines []int) {
    if len(lines) == 0 { return }
    cur := vp.YOffset
    for i := len(lines) - 1; i >= 0; i-- { if lines[i] < cur { vp.SetYOffset(lines[i]); return } }
    vp.SetYOffset(lines[len(lines)-1])
}

func openInExplorer(dir string) error {
    if dir == "" { return nil }
    switch runtime.GOOS {
    case "darwin":
        return exec.Command("open", dir).Start()
    case "linux":
        return exec.Command("xdg-open", dir).Start()
    case "windows":
        return exec.Command("explorer", dir).Start()
    default:
        return nil
    }
}

func (m *model) applyDetailSearch() {
    if m.searchQuery == "" { m.vp.SetContent(m.renderedDetail); return }
    style := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
    rendered := highlightAll(m.renderedDetail, m.searchQuery, func(s string) string { return style.Render(s) })
    m.vp.SetContent(rendered)
    if line := findFirstLine(rendered, m.searchQuery); line > 0 { m.vp.SetYOffset(line) }
}

func highlightAll(s, q string, wrap func(string) string) string {
    if q == "" { return s }
    // naive replacement, case-insensitive
    lowerS, lowerQ := strings.ToLower(s), strings.ToLower(q)
    var out strings.Builder
    i := 0
    for i < len(s) {
        idx := strings.Index(lowerS[i:], lowerQ)
        if idx < 0 { out.WriteString(s[i:]); break }
        idx = i + idx
        out.WriteString(s[i:idx])
        out.WriteString(wrap(s[idx : idx+len(q)]))
        i = idx + len(q)
    }
    return out.String()
}

func findFirstLine(s, q string) int {
    return firstMatch(strings.Split(s, "\n"), q)
}

func firstMatch(lines []string, q string) int {
    if q == "" { return 0 }
    lowerQ := strings.ToLower(q)
    for i, ln := range lines {
        if strings.Contains(strings.ToLower(stripANSI(ln)), lowerQ) { return i }
    }
    return 0
}

func (m *model) matchLines() []int {
    if m.searchQuery == "" { return nil }
    lowerQ := strings.ToLower(m.searchQuery)
    var out []int
    for i, ln := range strings.Split(m.renderedDetail, "\n") {
        if strings.Contains(strings.ToLower(stripANSI(ln)), lowerQ) { out = append(out, i) }
    }
    return out
}

func (m *model) findNext() { jumpToNext(&m.vp, m.matchLines()) }
func (m *model) findPrev() { jumpToPrev(&m.vp, m.matchLines()) }

// stripANSI drops CSI escape sequences so rendered lines can be searched.
func stripANSI(s string) string {
    var b strings.Builder
    for i := 0; i < len(s); i++ {
        if s[i] == 0x1b && i+1 < len(s) && s[i+1] == '[' {
            j := i + 2
            for j < len(s) && (s[j] < 0x40 || s[j] > 0x7e) { j++ }
            i = j
            continue
        }
        b.WriteByte(s[i])
    }
    return b.String()
}
