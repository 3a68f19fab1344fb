package tasks

import (
    "bytes"
    "errors"
    "fmt"
    "io/fs"
    "log/slog"
    "os"
    "path/filepath"
    "time"

    "github.com/spf13/afero"
)

// Manager implements the task operations on top of a Lanes accessor. It keeps
// no state between calls besides its collaborators.
type Manager struct {
    fs     afero.Fs
    lanes  *Lanes
    log    *slog.Logger
    now    func() time.Time
    ledger *Ledger
}

type Option func(*Manager)

func WithLogger(l *slog.Logger) Option {
    return func(m *Manager) {
        if l != nil { m.log = l.With("component", "tasks") }
    }
}

// WithClock replaces time.Now for statistics and trash timestamps.
func WithClock(now func() time.Time) Option {
    return func(m *Manager) { m.now = now }
}

// WithLedger records trashed tasks so they can be restored to their lane.
func WithLedger(l *Ledger) Option {
    return func(m *Manager) { m.ledger = l }
}

func NewManager(fsys afero.Fs, opts ...Option) *Manager {
    m := &Manager{
        fs:    fsys,
        lanes: NewLanes(fsys),
        log:   slog.Default().With("component", "tasks"),
        now:   time.Now,
    }
    for _, o := range opts {
        o(m)
    }
    return m
}

// NewOSManager roots a manager at baseDir on the local filesystem. The base
// directory must already exist.
func NewOSManager(baseDir string, opts ...Option) (*Manager, error) {
    info, err := os.Stat(baseDir)
    if err != nil {
        if errors.Is(err, fs.ErrNotExist) {
            return nil, storageErr("open", "", "", fmt.Errorf("base directory %s does not exist", baseDir))
        }
        return nil, storageErr("open", "", "", err)
    }
    if !info.IsDir() {
        return nil, storageErr("open", "", "", fmt.Errorf("base directory %s is not a directory", baseDir))
    }
    return NewManager(afero.NewBasePathFs(afero.NewOsFs(), baseDir), opts...), nil
}

// AddLane creates a lane; an existing lane is not an error.
func (m *Manager) AddLane(name string) error {
    _, err := m.lanes.EnsureLane(name)
    return err
}

// ListLanes returns the user-visible lanes with their task counts.
func (m *Manager) ListLanes() ([]LaneSummary, error) {
    names, err := m.lanes.ListLanes()
    if err != nil { return nil, err }
    out := make([]LaneSummary, 0, len(names))
    for _, n := range names {
        files, err := m.lanes.ListLaneFiles(n)
        if err != nil { return nil, err }
        out = append(out, LaneSummary{Name: n, Count: len(files)})
    }
    return out, nil
}

// ListTasks returns the tasks of one lane, or of every lane when lane is empty,
// keeping only those carrying tag when tag is not empty.
func (m *Manager) ListTasks(lane, tag string) ([]Task, error) {
    var lanes []string
    if lane != "" {
        if !m.lanes.LaneExists(lane) {
            return nil, newErr("list tasks", lane, "", ErrLaneNotFound, nil)
        }
        lanes = []string{lane}
    } else {
        var err error
        if lanes, err = m.lanes.ListLanes(); err != nil {
            return nil, err
        }
    }
    var out []Task
    for _, ln := range lanes {
        ts, err := m.laneTasks(ln)
        if err != nil { return nil, err }
        for _, t := range ts {
            if tag != "" && !t.HasTag(tag) { continue }
            out = append(out, t)
        }
    }
    return out, nil
}

func (m *Manager) laneTasks(lane string) ([]Task, error) {
    files, err := m.lanes.ListLaneFiles(lane)
    if err != nil { return nil, err }
    out := make([]Task, 0, len(files))
    for _, p := range files {
        t, err := m.lanes.loadTask(p)
        if err != nil {
            return nil, storageErr("read task", lane, titleFromPath(p), err)
        }
        out = append(out, t)
    }
    return out, nil
}

// FindTask looks a title up across lanes in alphabetical lane order, Trash
// excluded. The first match wins.
func (m *Manager) FindTask(title string) (Task, error) {
    if !ValidTitle(title) {
        return Task{}, newErr("find task", "", title, ErrInvalidInput, nil)
    }
    lanes, err := m.lanes.ListLanes()
    if err != nil { return Task{}, err }
    for _, lane := range lanes {
        p := m.lanes.TaskPath(lane, title)
        if !m.lanes.isTask(p) { continue }
        t, err := m.lanes.loadTask(p)
        if err != nil {
            return Task{}, storageErr("read task", lane, title, err)
        }
        return t, nil
    }
    return Task{}, newErr("find task", "", title, ErrTaskNotFound, nil)
}

// AddTask writes a new task, creating the lane when needed. An existing file
// with the same title in that lane is never overwritten.
func (m *Manager) AddTask(nt NewTask) (Task, error) {
    const op = "add task"
    if err := validateNew(op, nt.Lane, nt.Title, nt.Tags); err != nil {
        return Task{}, err
    }
    if err := validateContent(op, nt.Lane, nt.Title, nt.Content); err != nil {
        return Task{}, err
    }
    p := m.lanes.TaskPath(nt.Lane, nt.Title)
    if m.lanes.exists(p) {
        return Task{}, newErr(op, nt.Lane, nt.Title, ErrDuplicateTask, nil)
    }
    if _, err := m.lanes.EnsureLane(nt.Lane); err != nil {
        return Task{}, err
    }
    t := Task{Title: nt.Title, Lane: nt.Lane, Tags: cloneTags(nt.Tags), Due: nt.Due, Content: nt.Content, Path: p, Meta: map[string]any{}}
    if err := m.lanes.writeFile(p, Encode(t.Record())); err != nil {
        return Task{}, storageErr(op, nt.Lane, nt.Title, err)
    }
    m.log.Debug("task added", "lane", nt.Lane, "title", nt.Title)
    return t, nil
}

// MoveTask relocates a task, found by title in any lane, into target. The
// target lane is created when absent.
func (m *Manager) MoveTask(title, target string) (Task, error) {
    const op = "move task"
    if !ValidLane(target) || target == TrashLane {
        return Task{}, newErr(op, target, title, ErrInvalidInput, errors.New("bad target lane"))
    }
    t, err := m.FindTask(title)
    if err != nil { return Task{}, err }
    if t.Lane == target {
        return t, nil
    }
    if _, err := m.lanes.EnsureLane(target); err != nil {
        return Task{}, err
    }
    dst := m.lanes.TaskPath(target, title)
    if m.lanes.exists(dst) {
        return Task{}, newErr(op, target, title, ErrDuplicateTask, nil)
    }
    if err := m.relocate(t.Path, dst); err != nil {
        return Task{}, storageErr(op, t.Lane, title, err)
    }
    m.log.Info("task moved", "title", title, "from", t.Lane, "to", target)
    t.Lane, t.Path = target, dst
    return t, nil
}

// relocate moves src to dst. Rename is tried first; otherwise the bytes are
// copied into a newly created dst, read back and compared, and only then is
// src removed. The copy does not rename, so it works on stores without rename.
func (m *Manager) relocate(src, dst string) error {
    err := m.fs.Rename(src, dst)
    if err == nil {
        return nil
    }
    m.log.Debug("rename failed, copying", "src", src, "dst", dst, "error", err)
    data, err := m.lanes.readFile(src)
    if err != nil { return err }
    if err := m.lanes.createFile(dst, data); err != nil { return err }
    back, err := m.lanes.readFile(dst)
    if err != nil || !bytes.Equal(back, data) {
        m.fs.Remove(dst)
        if err == nil { err = errors.New("copy verification failed") }
        return err
    }
    if err := m.fs.Remove(src); err != nil {
        return fmt.Errorf("copied to %s but could not remove source: %w", dst, err)
    }
    return nil
}

// UpdateTask applies the supplied fields to the task found by title. A rename
// that would collide in the same lane fails before anything is written.
func (m *Manager) UpdateTask(title string, u TaskUpdate) (Task, error) {
    const op = "update task"
    t, err := m.FindTask(title)
    if err != nil { return Task{}, err }

    nt := t
    if u.Content != nil {
        if err := validateContent(op, t.Lane, t.Title, *u.Content); err != nil {
            return Task{}, err
        }
        nt.Content = *u.Content
    }
    if u.Tags != nil {
        nt.Tags = cloneTags(u.Tags)
    }
    if u.ClearDue {
        nt.Due = time.Time{}
    } else if u.Due != nil {
        nt.Due = *u.Due
    }
    if u.NewTitle != nil {
        nt.Title = *u.NewTitle
    }
    if err := validateNew(op, nt.Lane, nt.Title, nt.Tags); err != nil {
        return Task{}, err
    }

    renamed := nt.Title != t.Title
    nt.Path = m.lanes.TaskPath(nt.Lane, nt.Title)
    if renamed && m.lanes.exists(nt.Path) {
        return Task{}, newErr(op, nt.Lane, nt.Title, ErrDuplicateTask, nil)
    }
    if err := m.lanes.writeFile(nt.Path, Encode(nt.Record())); err != nil {
        return Task{}, storageErr(op, nt.Lane, nt.Title, err)
    }
    if renamed {
        if err := m.fs.Remove(t.Path); err != nil {
            m.fs.Remove(nt.Path)
            return Task{}, storageErr(op, t.Lane, t.Title, err)
        }
        m.log.Info("task renamed", "lane", t.Lane, "from", t.Title, "to", nt.Title)
    }
    return nt, nil
}

// TrashTask moves a task, found by title, into Trash.
func (m *Manager) TrashTask(title string) (Task, error) {
    t, err := m.FindTask(title)
    if err != nil { return Task{}, err }
    return m.trash(t, "trash")
}

func (m *Manager) trash(t Task, reason string) (Task, error) {
    const op = "trash task"
    if _, err := m.lanes.EnsureLane(TrashLane); err != nil {
        return Task{}, err
    }
    name, dst := m.trashTarget(t.Title)
    if err := m.relocate(t.Path, dst); err != nil {
        return Task{}, storageErr(op, t.Lane, t.Title, err)
    }
    if m.ledger != nil {
        e := TrashEntry{Name: name, Title: t.Title, Lane: t.Lane, Reason: reason, TrashedAt: m.now()}
        if err := m.ledger.Record(e); err != nil {
            m.log.Warn("trash ledger record failed", "title", t.Title, "lane", t.Lane, "error", err)
        }
    }
    m.log.Info("task trashed", "title", t.Title, "lane", t.Lane, "as", name, "reason", reason)
    from := t.Lane
    t.Lane, t.Path = TrashLane, dst
    t.Meta = map[string]any{"from": from}
    return t, nil
}

// trashTarget picks a free name in Trash, suffixing -copy-<timestamp> on collision.
func (m *Manager) trashTarget(title string) (string, string) {
    name := title
    p := m.lanes.TaskPath(TrashLane, name)
    if !m.lanes.exists(p) {
        return name, p
    }
    base := title + "-copy-" + m.now().Format("20060102-150405")
    for i := 1; ; i++ {
        name = base
        if i > 1 { name = fmt.Sprintf("%s-%d", base, i) }
        p = m.lanes.TaskPath(TrashLane, name)
        if !m.lanes.exists(p) {
            return name, p
        }
    }
}

// RestoreTask moves a trashed file back into a lane. When lane is empty the
// origin lane recorded in the ledger is used.
func (m *Manager) RestoreTask(name, lane string) (Task, error) {
    const op = "restore task"
    if !ValidTitle(name) {
        return Task{}, newErr(op, TrashLane, name, ErrInvalidInput, nil)
    }
    src := m.lanes.TaskPath(TrashLane, name)
    if !m.lanes.isTask(src) {
        return Task{}, newErr(op, TrashLane, name, ErrTaskNotFound, nil)
    }
    title := name
    if m.ledger != nil {
        if e, ok, err := m.ledger.Lookup(name); err != nil {
            m.log.Warn("trash ledger lookup failed", "name", name, "error", err)
        } else if ok {
            title = e.Title
            if lane == "" { lane = e.Lane }
        }
    }
    if lane == "" {
        return Task{}, newErr(op, TrashLane, name, ErrInvalidInput, errors.New("origin lane unknown; pass a lane"))
    }
    if !ValidLane(lane) || lane == TrashLane {
        return Task{}, newErr(op, lane, name, ErrInvalidInput, errors.New("bad target lane"))
    }
    dst := m.lanes.TaskPath(lane, title)
    if m.lanes.exists(dst) {
        return Task{}, newErr(op, lane, title, ErrDuplicateTask, nil)
    }
    if _, err := m.lanes.EnsureLane(lane); err != nil {
        return Task{}, err
    }
    if err := m.relocate(src, dst); err != nil {
        return Task{}, storageErr(op, lane, title, err)
    }
    if m.ledger != nil {
        if err := m.ledger.Forget(name); err != nil {
            m.log.Warn("trash ledger forget failed", "name", name, "error", err)
        }
    }
    m.log.Info("task restored", "title", title, "lane", lane)
    return m.lanes.loadTask(dst)
}

// TrashedTasks lists the files in Trash. Files the ledger knows come first,
// most recently trashed first, followed by the rest in name order.
func (m *Manager) TrashedTasks() ([]TrashEntry, error) {
    files, err := m.lanes.ListLaneFiles(TrashLane)
    if err != nil {
        if errors.Is(err, ErrLaneNotFound) { return nil, nil }
        return nil, err
    }
    present := make(map[string]bool, len(files))
    for _, p := range files {
        present[titleFromPath(p)] = true
    }
    out := make([]TrashEntry, 0, len(files))
    if m.ledger != nil {
        known, err := m.ledger.All()
        if err != nil {
            m.log.Warn("trash ledger read failed", "error", err)
        }
        for _, e := range known {
            if !present[e.Name] { continue }
            out = append(out, e)
            delete(present, e.Name)
        }
    }
    for _, p := range files {
        name := titleFromPath(p)
        if !present[name] { continue }
        out = append(out, TrashEntry{Name: name, Title: name})
    }
    return out, nil
}

// EmptyTrash deletes the regular files directly inside Trash and returns how
// many were removed. Subdirectories are left alone.
func (m *Manager) EmptyTrash() (int, error) {
    const op = "empty trash"
    dir := m.lanes.LanePath(TrashLane)
    entries, err := afero.ReadDir(m.fs, dir)
    if err != nil {
        if errors.Is(err, fs.ErrNotExist) { return 0, nil }
        return 0, storageErr(op, TrashLane, "", err)
    }
    var removed []string
    var errs []error
    for _, e := range entries {
        if !e.Mode().IsRegular() { continue }
        if err := m.fs.Remove(filepath.Join(dir, e.Name())); err != nil {
            errs = append(errs, err)
            continue
        }
        removed = append(removed, titleFromPath(e.Name()))
    }
    m.forgetTrashed(removed, len(errs) == 0)
    m.log.Info("trash emptied", "removed", len(removed))
    if len(errs) > 0 {
        return len(removed), storageErr(op, TrashLane, "", errors.Join(errs...))
    }
    return len(removed), nil
}

// forgetTrashed drops ledger entries of removed files. When every file went
// the whole ledger is cleared; otherwise entries of surviving files are kept
// so they can still be restored to their lane.
func (m *Manager) forgetTrashed(names []string, all bool) {
    if m.ledger == nil { return }
    if all {
        if _, err := m.ledger.Clear(); err != nil {
            m.log.Warn("trash ledger clear failed", "error", err)
        }
        return
    }
    for _, n := range names {
        if err := m.ledger.Forget(n); err != nil {
            m.log.Warn("trash ledger forget failed", "name", n, "error", err)
        }
    }
}

// validateContent rejects a body whose first line would be read back as a tag,
// due or legacy tags line.
func validateContent(op, lane, title, content string) error {
    if MetadataLike(content) {
        return newErr(op, lane, title, ErrInvalidInput, errors.New("content starts with a metadata line"))
    }
    return nil
}

func validateNew(op, lane, title string, tags []string) error {
    if !ValidTitle(title) {
        return newErr(op, lane, title, ErrInvalidInput, errors.New("bad title"))
    }
    if !ValidLane(lane) || lane == TrashLane {
        return newErr(op, lane, title, ErrInvalidInput, errors.New("bad lane"))
    }
    for _, tg := range tags {
        if !ValidTag(tg) {
            return newErr(op, lane, title, ErrInvalidInput, fmt.Errorf("bad tag %q", tg))
        }
    }
    return nil
}
