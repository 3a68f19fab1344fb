package zipper

import (
    "archive/zip"
    "os"
    "path/filepath"
    "testing"
    "time"

    "github.com/spf13/afero"

    "kanban-task-man/internal/logs"
    "kanban-task-man/internal/tasks"
)

func newManager(t *testing.T) *tasks.Manager {
    t.Helper()
    return tasks.NewManager(afero.NewMemMapFs(), tasks.WithLogger(logs.Discard()))
}

func TestExportImport(t *testing.T) {
    src := newManager(t)
    due, _ := tasks.ParseDue("2024-06-01")
    if _, err := src.AddTask(tasks.NewTask{Title: "T1", Lane: "Todo", Tags: []string{"x"}, Due: due, Content: "one"}); err != nil { t.Fatal(err) }
    if _, err := src.AddTask(tasks.NewTask{Title: "T2", Lane: "Done", Content: "two"}); err != nil { t.Fatal(err) }
    if _, err := src.AddTask(tasks.NewTask{Title: "Gone", Lane: "Done", Content: "bye"}); err != nil { t.Fatal(err) }
    if _, err := src.TrashTask("Gone"); err != nil { t.Fatal(err) }

    zipPath := filepath.Join(t.TempDir(), "out", "board.zip")
    man, err := ExportLanes(src, nil, zipPath)
    if err != nil { t.Fatalf("export: %v", err) }
    if len(man.Lanes) != 2 || man.Lanes[0].Name != "Done" || len(man.Lanes[0].Tasks) != 1 { t.Fatalf("manifest %+v", man) }

    zr, err := zip.OpenReader(zipPath)
    if err != nil { t.Fatal(err) }
    names := map[string]bool{}
    for _, f := range zr.File { names[f.Name] = true }
    zr.Close()
    for _, want := range []string{ManifestName, "Todo/T1.md", "Done/T2.md"} {
        if !names[want] { t.Fatalf("entry %s missing: %v", want, names) }
    }

    dst := newManager(t)
    rep, err := ImportArchive(zipPath, dst)
    if err != nil { t.Fatalf("import: %v", err) }
    if len(rep.Created) != 2 || len(rep.Failures) != 0 { t.Fatalf("%+v", rep) }
    got, err := dst.FindTask("T1")
    if err != nil { t.Fatal(err) }
    if got.Lane != "Todo" || got.Content != "one" || got.DueString() != "2024-06-01" || len(got.Tags) != 1 { t.Fatalf("%+v", got) }

    // second import collides on every entry and overwrites nothing
    rep, err = ImportArchive(zipPath, dst)
    if err != nil { t.Fatal(err) }
    if len(rep.Created) != 0 || len(rep.Failures) != 2 || rep.Failures[0].Kind != "DuplicateTask" { t.Fatalf("%+v", rep) }
}

func TestExportSelectedLaneWithProgress(t *testing.T) {
    src := newManager(t)
    for _, n := range []string{"a", "b"} {
        if _, err := src.AddTask(tasks.NewTask{Title: n, Lane: "Todo"}); err != nil { t.Fatal(err) }
    }
    if _, err := src.AddTask(tasks.NewTask{Title: "c", Lane: "Other"}); err != nil { t.Fatal(err) }
    var calls []int
    man, err := ExportLanesWithProgress(src, []string{"Todo"}, filepath.Join(t.TempDir(), "x.zip"), func(cur, total int) {
        if total != 2 { t.Errorf("total %d", total) }
        calls = append(calls, cur)
    })
    if err != nil { t.Fatal(err) }
    if len(man.Lanes) != 1 || len(calls) != 2 { t.Fatalf("%+v %v", man, calls) }

    if _, err := ExportLanes(src, []string{"Missing"}, filepath.Join(t.TempDir(), "y.zip")); err == nil {
        t.Fatal("want lane not found")
    }
}

func TestImportSkipsTrashAndStrays(t *testing.T) {
    zipPath := filepath.Join(t.TempDir(), "hand.zip")
    f, err := os.Create(zipPath)
    if err != nil { t.Fatal(err) }
    zw := zip.NewWriter(f)
    if err := writeJSON(zw, ManifestName, Manifest{Version: 1, CreatedAt: time.Now()}); err != nil { t.Fatal(err) }
    for name, body := range map[string]string{
        "Todo/ok.md":        "[tag:x]\n\nbody",
        "Trash/old.md":      "x",
        "notes.txt":         "x",
        "Todo/deep/nest.md": "x",
    } {
        if err := addBytes(zw, name, []byte(body)); err != nil { t.Fatal(err) }
    }
    zw.Close()
    f.Close()

    m := newManager(t)
    rep, err := ImportArchive(zipPath, m)
    if err != nil { t.Fatal(err) }
    if len(rep.Created) != 1 || len(rep.Skipped) != 3 { t.Fatalf("%+v", rep) }
    tk, err := m.FindTask("ok")
    if err != nil || !tk.HasTag("x") || tk.Content != "body" { t.Fatalf("%+v %v", tk, err) }
}

func TestImportWithoutManifest(t *testing.T) {
    zipPath := filepath.Join(t.TempDir(), "bare.zip")
    f, _ := os.Create(zipPath)
    zw := zip.NewWriter(f)
    addBytes(zw, "Todo/a.md", []byte("x"))
    zw.Close()
    f.Close()
    if _, err := ImportArchive(zipPath, newManager(t)); err == nil { t.Fatal("want manifest error") }
}
