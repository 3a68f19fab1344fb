package logs

import (
    "bytes"
    "os"
    "path/filepath"
    "strings"
    "testing"
)

func TestNewLevels(t *testing.T) {
    var buf bytes.Buffer
    log, closeFn := New(Options{Writer: &buf})
    defer closeFn()
    log.Debug("hidden")
    log.Info("shown", "lane", "Todo")
    out := buf.String()
    if strings.Contains(out, "hidden") { t.Fatalf("debug record written without Debug: %s", out) }
    if !strings.Contains(out, "lane=Todo") { t.Fatalf("missing attr: %s", out) }
}

func TestNewWithFile(t *testing.T) {
    var buf bytes.Buffer
    p := filepath.Join(t.TempDir(), "kanban.log")
    log, closeFn := New(Options{Writer: &buf, File: p, Debug: true})
    log.Debug("moved", "title", "T")
    if err := closeFn(); err != nil { t.Fatal(err) }
    b, err := os.ReadFile(p)
    if err != nil { t.Fatal(err) }
    if !strings.Contains(string(b), `"title":"T"`) { t.Fatalf("file log: %s", b) }
    if !strings.Contains(buf.String(), "moved") { t.Fatalf("terminal log: %s", buf.String()) }
}

func TestNewBadFileFallsBack(t *testing.T) {
    var buf bytes.Buffer
    log, closeFn := New(Options{Writer: &buf, File: filepath.Join(t.TempDir(), "no", "such", "dir.log")})
    defer closeFn()
    log.Info("still works")
    if !strings.Contains(buf.String(), "open log file") || !strings.Contains(buf.String(), "still works") {
        t.Fatalf("%s", buf.String())
    }
}

func TestToJournalKey(t *testing.T) {
    if got := toJournalKey("task.lane-name"); got != "TASK_LANE_NAME" { t.Fatal(got) }
}
