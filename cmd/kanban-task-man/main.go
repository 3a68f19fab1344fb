package main

import (
    "encoding/json"
    "errors"
    "flag"
    "fmt"
    "io"
    "log/slog"
    "os"
    "path/filepath"
    "sort"
    "strings"

    "golang.org/x/term"

    "kanban-task-man/internal/config"
    "kanban-task-man/internal/hooks"
    "kanban-task-man/internal/logs"
    "kanban-task-man/internal/tasks"
    "kanban-task-man/internal/tui"
    "kanban-task-man/internal/version"
    "kanban-task-man/internal/zipper"
)

// Exit codes, one per error kind.
const (
    exitOK           = 0
    exitFailure      = 1
    exitLaneNotFound = 2
    exitTaskNotFound = 3
    exitDuplicate    = 4
    exitStorage      = 5
    exitMalformed    = 6
    exitInvalid      = 7
)

func main() {
    os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
    cfgPath     string
    baseDir     string
    hooksDir    string
    exportDir   string
    lane        string
    tag         string
    showTasks   bool
    split       bool
    carryDue    bool
    addLane     string
    csvFile     string
    emptyTrash  bool
    changeLane  string // <title>:<lane>
    trash       string
    restore     string // Trash file name, or "-" to pick interactively
    stats       bool
    dump        string // file path, or "-" for stdout
    exportZip   string
    importZip   string
    asJSON      bool
    debug       bool
    showVersion bool
}

func (o options) batch() bool {
    return o.showTasks || o.split || o.addLane != "" || o.csvFile != "" || o.emptyTrash ||
        o.changeLane != "" || o.trash != "" || o.restore != "" || o.stats || o.dump != "" ||
        o.exportZip != "" || o.importZip != ""
}

func run(args []string, stdout, stderr io.Writer) int {
    var o options
    fs := flag.NewFlagSet("kanban-task-man", flag.ContinueOnError)
    fs.SetOutput(stderr)
    fs.StringVar(&o.cfgPath, "config", config.DefaultPath(), "config file path (.json or .yaml)")
    fs.StringVar(&o.baseDir, "base-dir", "", "board directory holding one subdirectory per lane (overrides config)")
    fs.StringVar(&o.hooksDir, "hooks-dir", "", "directory containing JS hook files")
    fs.StringVar(&o.exportDir, "export-dir", "", "default export directory for TUI exports")
    fs.StringVar(&o.lane, "lane", "", "lane for --show-tasks, --export and --restore")
    fs.StringVar(&o.tag, "tag", "", "tag filter for --show-tasks")
    fs.BoolVar(&o.showTasks, "show-tasks", false, "list tasks (all lanes unless --lane)")
    fs.BoolVar(&o.split, "split-tasks", false, "split every task containing [[split]] into numbered tasks")
    fs.BoolVar(&o.carryDue, "carry-due", false, "with --split-tasks: copy the due date onto every fragment")
    fs.StringVar(&o.addLane, "add-lane", "", "create a lane")
    fs.StringVar(&o.csvFile, "csv-create-tasks", "", "create tasks from a CSV file (title,tag_list,task,lane[,due_date])")
    fs.BoolVar(&o.emptyTrash, "empty-trash", false, "delete every file in Trash")
    fs.StringVar(&o.changeLane, "change-lane", "", "move a task: <title>:<lane>")
    fs.StringVar(&o.trash, "trash", "", "move a task to Trash by title")
    fs.StringVar(&o.restore, "restore", "", "restore a Trash file by name (\"-\" to pick)")
    fs.BoolVar(&o.stats, "stats", false, "print board statistics")
    fs.StringVar(&o.dump, "dump", "", "write a markdown overview of the board to a file (\"-\" for stdout)")
    fs.StringVar(&o.exportZip, "export", "", "export lanes (all unless --lane) to a zip")
    fs.StringVar(&o.importZip, "import", "", "import tasks from a zip")
    fs.BoolVar(&o.asJSON, "json", false, "print --show-tasks, --stats and batch results as JSON")
    fs.BoolVar(&o.debug, "debug", false, "enable debug logging")
    fs.BoolVar(&o.showVersion, "version", false, "print version and exit")
    if err := fs.Parse(args); err != nil {
        if errors.Is(err, flag.ErrHelp) { return exitOK }
        return exitInvalid
    }

    if o.showVersion {
        fmt.Fprintln(stdout, version.String())
        return exitOK
    }

    cfg := config.Default()
    cfgErr := config.Load(o.cfgPath, &cfg)
    if o.baseDir != "" { cfg.BaseDir = o.baseDir }
    if p, err := config.ExpandPath(cfg.BaseDir); err == nil { cfg.BaseDir = p }
    if o.hooksDir != "" { cfg.HooksDir = o.hooksDir }
    if o.exportDir != "" { cfg.ExportDir = o.exportDir }
    if o.debug { cfg.Debug = true }

    interactive := !o.batch() && isTerminal()
    logOpts := logs.Options{Debug: cfg.Debug, Writer: stderr, File: cfg.LogFile, Journal: cfg.LogJournal}
    if interactive || o.restore == "-" {
        // the terminal belongs to the TUI
        logOpts.Writer = io.Discard
    }
    logger, closeLog := logs.New(logOpts)
    defer closeLog()
    if cfgErr != nil && !os.IsNotExist(cfgErr) {
        logger.Warn("failed to load config", "path", o.cfgPath, "error", cfgErr)
    }

    mgr, closeMgr, err := openManager(cfg, logger)
    if err != nil { return report(stderr, err) }
    defer closeMgr()

    a := &app{cfg: cfg, o: o, mgr: mgr, log: logger, out: stdout}
    switch {
    case o.addLane != "":
        err = a.addLane()
    case o.csvFile != "":
        err = a.importCSV()
    case o.split:
        err = a.splitTasks()
    case o.changeLane != "":
        err = a.changeLane()
    case o.trash != "":
        err = a.trashTask()
    case o.restore != "":
        err = a.restoreTask()
    case o.emptyTrash:
        err = a.emptyTrash()
    case o.stats:
        err = a.printStats()
    case o.dump != "":
        err = a.dumpMarkdown()
    case o.exportZip != "":
        err = a.exportZip()
    case o.importZip != "":
        err = a.importZip()
    case o.showTasks || !interactive:
        err = a.showTasks()
    default:
        err = tui.Run(cfg, mgr, logger, o.lane, o.tag)
    }
    if err != nil { return report(stderr, err) }
    return exitOK
}

func isTerminal() bool {
    return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// openManager roots the manager at the configured base directory and attaches
// the trash ledger when it can be opened.
func openManager(cfg config.Config, logger *slog.Logger) (*tasks.Manager, func(), error) {
    base := cfg.BaseDir
    opts := []tasks.Option{tasks.WithLogger(logger)}
    closeFn := func() {}
    if info, err := os.Stat(base); err == nil && info.IsDir() {
        led, err := tasks.OpenLedger(tasks.LedgerPath(base))
        if err != nil {
            logger.Warn("trash ledger unavailable", "path", tasks.LedgerPath(base), "error", err)
        } else {
            opts = append(opts, tasks.WithLedger(led))
            closeFn = func() { _ = led.Close() }
        }
    }
    mgr, err := tasks.NewOSManager(base, opts...)
    if err != nil {
        closeFn()
        return nil, nil, err
    }
    logger.Debug("board opened", "base_dir", base)
    return mgr, closeFn, nil
}

// exitCode maps an error onto the process exit status.
func exitCode(err error) int {
    switch {
    case err == nil:
        return exitOK
    case errors.Is(err, tasks.ErrLaneNotFound):
        return exitLaneNotFound
    case errors.Is(err, tasks.ErrTaskNotFound):
        return exitTaskNotFound
    case errors.Is(err, tasks.ErrDuplicateTask):
        return exitDuplicate
    case errors.Is(err, tasks.ErrStorageUnavailable):
        return exitStorage
    case errors.Is(err, tasks.ErrMalformedRow):
        return exitMalformed
    case errors.Is(err, tasks.ErrInvalidInput):
        return exitInvalid
    default:
        return exitFailure
    }
}

func report(w io.Writer, err error) int {
    fmt.Fprintln(w, "error:", err)
    return exitCode(err)
}

type app struct {
    cfg config.Config
    o   options
    mgr *tasks.Manager
    log *slog.Logger
    out io.Writer
}

func (a *app) printJSON(v any) error {
    enc := json.NewEncoder(a.out)
    enc.SetIndent("", "  ")
    return enc.Encode(v)
}

func (a *app) addLane() error {
    if err := a.mgr.AddLane(a.o.addLane); err != nil { return err }
    fmt.Fprintf(a.out, "lane %s ready\n", a.o.addLane)
    return nil
}

func (a *app) showTasks() error {
    env, _ := hooks.LoadDir(a.cfg.HooksDir, a.log)
    list, err := a.mgr.ListTasksWithHooks(a.o.lane, a.o.tag, env)
    if err != nil { return err }
    if a.o.asJSON {
        type row struct {
            Lane    string         `json:"lane"`
            Title   string         `json:"title"`
            Tags    []string       `json:"tags"`
            Due     string         `json:"due,omitempty"`
            Content string         `json:"content"`
            Meta    map[string]any `json:"meta,omitempty"`
        }
        rows := make([]row, 0, len(list))
        for _, t := range list {
            rows = append(rows, row{t.Lane, t.Title, t.Tags, t.DueString(), t.Content, t.Meta})
        }
        return a.printJSON(rows)
    }
    fmt.Fprintf(a.out, "%d tasks\n", len(list))
    for _, t := range list {
        title := t.Title
        if it, ok := env.RenderListItem(tasks.TaskMap(t)); ok && it.Title != "" { title = it.Title }
        fmt.Fprintf(a.out, "%s\t%s\t%s\t%s\n", t.Lane, title, strings.Join(t.Tags, ","), t.DueString())
    }
    return nil
}

func (a *app) importCSV() error {
    f, err := os.Open(a.o.csvFile)
    if err != nil {
        return &tasks.Error{Op: "read csv", Kind: tasks.ErrInvalidInput, Err: err}
    }
    defer f.Close()
    rows, fails, err := tasks.ReadCSV(f)
    if err != nil { return err }
    res := a.mgr.ImportRows(rows)
    res.Failures = append(fails, res.Failures...)
    sort.SliceStable(res.Failures, func(i, j int) bool { return res.Failures[i].Index < res.Failures[j].Index })
    if a.o.asJSON {
        if err := a.printJSON(map[string]any{"created": len(res.Created), "failures": res.Failures}); err != nil { return err }
    } else {
        fmt.Fprintf(a.out, "created %d task(s)\n", len(res.Created))
        for _, fl := range res.Failures {
            fmt.Fprintf(a.out, "row %d (%s): %v\n", fl.Index, fl.Title, fl.Err)
        }
    }
    // the first failed row decides the exit code
    if len(res.Failures) > 0 { return res.Failures[0].Err }
    return nil
}

func (a *app) splitTasks() error {
    sum, err := a.mgr.SplitTasks(tasks.SplitOptions{CarryDue: a.o.carryDue})
    if err != nil { return err }
    if a.o.asJSON {
        if err := a.printJSON(sum); err != nil { return err }
        return firstSplitErr(sum)
    }
    for _, r := range sum.Split {
        fmt.Fprintf(a.out, "%s/%s -> %s\n", r.Lane, r.Title, strings.Join(r.Fragments, ", "))
    }
    for _, f := range sum.Failures {
        fmt.Fprintf(a.out, "failed %s/%s: %v\n", f.Lane, f.Title, f.Err)
        if len(f.Leftover) > 0 {
            fmt.Fprintf(a.out, "  leftover fragments: %s\n", strings.Join(f.Leftover, ", "))
        }
    }
    fmt.Fprintf(a.out, "split %d task(s) into %d fragment(s)\n", sum.TasksSplit, sum.FragmentsCreated)
    return firstSplitErr(sum)
}

func firstSplitErr(sum tasks.SplitSummary) error {
    if len(sum.Failures) == 0 { return nil }
    return sum.Failures[0].Err
}

func (a *app) changeLane() error {
    title, lane, err := parseChangeLaneArg(a.o.changeLane)
    if err != nil { return err }
    t, err := a.mgr.MoveTask(title, lane)
    if err != nil { return err }
    fmt.Fprintf(a.out, "moved %s -> %s\n", t.Title, t.Lane)
    return nil
}

func (a *app) trashTask() error {
    t, err := a.mgr.TrashTask(a.o.trash)
    if err != nil { return err }
    fmt.Fprintf(a.out, "trashed %s (from %v) as %s\n", a.o.trash, t.Meta["from"], strings.TrimSuffix(filepath.Base(t.Path), ".md"))
    return nil
}

func (a *app) restoreTask() error {
    name := a.o.restore
    if name == "-" {
        entries, err := a.mgr.TrashedTasks()
        if err != nil { return err }
        trashDir := filepath.Join(a.cfg.BaseDir, tasks.TrashLane)
        if name, err = tui.RunRestore(entries, trashDir); err != nil { return err }
        if name == "" {
            fmt.Fprintln(a.out, "nothing restored")
            return nil
        }
    }
    t, err := a.mgr.RestoreTask(name, a.o.lane)
    if err != nil { return err }
    fmt.Fprintf(a.out, "restored %s -> %s\n", t.Title, t.Lane)
    return nil
}

func (a *app) emptyTrash() error {
    n, err := a.mgr.EmptyTrash()
    if err != nil { return err }
    fmt.Fprintf(a.out, "removed %d file(s) from Trash\n", n)
    return nil
}

func (a *app) printStats() error {
    st, err := a.mgr.Statistics()
    if err != nil { return err }
    if a.o.asJSON { return a.printJSON(st) }
    fmt.Fprintf(a.out, "lanes: %d  tasks: %d\n", st.NumLanes, st.TotalTasks)
    fmt.Fprintln(a.out, "tasks per lane:")
    for _, k := range sortedKeys(st.LaneCounts) { fmt.Fprintf(a.out, "  %-20s %d\n", k, st.LaneCounts[k]) }
    fmt.Fprintln(a.out, "tags:")
    for _, k := range sortedKeys(st.TagCounts) { fmt.Fprintf(a.out, "  %-20s %d\n", k, st.TagCounts[k]) }
    fmt.Fprintln(a.out, "due dates:")
    for _, k := range sortedKeys(st.DueDateCounts) { fmt.Fprintf(a.out, "  %-20s %d\n", k, st.DueDateCounts[k]) }
    b := st.DueBuckets
    fmt.Fprintf(a.out, "overdue: %d  today: %d  upcoming: %d  none: %d\n", b.Overdue, b.Today, b.Upcoming, b.None)
    return nil
}

func (a *app) dumpMarkdown() error {
    if a.o.dump == "-" { return a.mgr.DumpMarkdown(a.out) }
    if err := config.EnsureDir(filepath.Dir(a.o.dump)); err != nil { return err }
    f, err := os.Create(a.o.dump)
    if err != nil { return err }
    defer f.Close()
    if err := a.mgr.DumpMarkdown(f); err != nil { return err }
    fmt.Fprintf(a.out, "wrote %s\n", a.o.dump)
    return f.Close()
}

func (a *app) exportZip() error {
    var lanes []string
    if a.o.lane != "" { lanes = []string{a.o.lane} }
    man, err := zipper.ExportLanes(a.mgr, lanes, a.o.exportZip)
    if err != nil { return err }
    n := 0
    for _, l := range man.Lanes { n += len(l.Tasks) }
    fmt.Fprintf(a.out, "exported %d lane(s), %d task(s) -> %s\n", len(man.Lanes), n, a.o.exportZip)
    return nil
}

func (a *app) importZip() error {
    rep, err := zipper.ImportArchive(a.o.importZip, a.mgr)
    if err != nil { return err }
    if a.o.asJSON { return a.printJSON(rep) }
    fmt.Fprintf(a.out, "imported %d task(s) from %s\n", len(rep.Created), a.o.importZip)
    for _, f := range rep.Failures {
        fmt.Fprintf(a.out, "  %s: %s\n", f.Entry, f.Err)
    }
    return nil
}

func parseChangeLaneArg(s string) (title, lane string, err error) {
    i := strings.LastIndex(s, ":")
    if i <= 0 || i == len(s)-1 {
        return "", "", &tasks.Error{Op: "change lane", Kind: tasks.ErrInvalidInput, Err: errors.New("expected <title>:<lane>")}
    }
    return s[:i], s[i+1:], nil
}

func sortedKeys(m map[string]int) []string {
    out := make([]string, 0, len(m))
    for k := range m { out = append(out, k) }
    sort.Strings(out)
    return out
}
