package zipper

import (
    "archive/zip"
    "encoding/json"
    "fmt"
    "io"
    "os"
    "path"
    "path/filepath"
    "strings"
    "time"

    "github.com/bmatcuk/doublestar/v4"

    "kanban-task-man/internal/tasks"
)

const (
    ManifestName    = "kanban-manifest.json"
    ManifestVersion = 1
    // taskPattern selects <Lane>/<Title>.md entries.
    taskPattern = "*/*.md"
)

// ProgressCallback is called during export with current progress (current, total)
type ProgressCallback func(current, total int)

type LaneManifest struct {
    Name  string   `json:"name"`
    Tasks []string `json:"tasks"`
}

type Manifest struct {
    Version   int            `json:"version"`
    CreatedAt time.Time      `json:"createdAt"`
    Lanes     []LaneManifest `json:"lanes"`
}

// EntryFailure is an archive entry that could not be imported.
type EntryFailure struct {
    Entry string `json:"entry"`
    Kind  string `json:"kind"`
    Err   string `json:"error"`
}

type ImportReport struct {
    Created  []string       `json:"created"`
    Skipped  []string       `json:"skipped"`
    Failures []EntryFailure `json:"failures"`
}

// ExportLanes writes the given lanes, or every lane when lanes is empty, into
// a zip with a manifest and one canonical-encoded entry per task.
func ExportLanes(m *tasks.Manager, lanes []string, zipPath string) (Manifest, error) {
    return ExportLanesWithProgress(m, lanes, zipPath, nil)
}

func ExportLanesWithProgress(m *tasks.Manager, lanes []string, zipPath string, progress ProgressCallback) (Manifest, error) {
    if len(lanes) == 0 {
        all, err := m.ListLanes()
        if err != nil { return Manifest{}, err }
        for _, l := range all { lanes = append(lanes, l.Name) }
    }
    // Read everything before touching the destination.
    byLane := make([][]tasks.Task, len(lanes))
    total := 0
    for i, lane := range lanes {
        ts, err := m.ListTasks(lane, "")
        if err != nil { return Manifest{}, err }
        byLane[i] = ts
        total += len(ts)
    }

    if err := os.MkdirAll(filepath.Dir(zipPath), 0o755); err != nil { return Manifest{}, err }
    f, err := os.Create(zipPath)
    if err != nil { return Manifest{}, err }
    defer f.Close()
    zw := zip.NewWriter(f)

    man := Manifest{Version: ManifestVersion, CreatedAt: time.Now().UTC()}
    for i, lane := range lanes {
        lm := LaneManifest{Name: lane, Tasks: []string{}}
        for _, t := range byLane[i] { lm.Tasks = append(lm.Tasks, t.Title) }
        man.Lanes = append(man.Lanes, lm)
    }
    if err := writeJSON(zw, ManifestName, man); err != nil { return man, err }

    cur := 0
    for i, lane := range lanes {
        for _, t := range byLane[i] {
            if err := addBytes(zw, path.Join(lane, t.Title+".md"), tasks.Encode(t.Record())); err != nil {
                return man, err
            }
            cur++
            if progress != nil { progress(cur, total) }
        }
    }
    if err := zw.Close(); err != nil { return man, err }
    return man, f.Close()
}

// ImportArchive adds every <Lane>/<Title>.md entry of an archive through the
// manager. Existing tasks are never overwritten; collisions and other per-entry
// failures are reported and the remaining entries still imported. Trash
// entries are skipped.
func ImportArchive(zipPath string, m *tasks.Manager) (ImportReport, error) {
    var rep ImportReport
    r, err := zip.OpenReader(zipPath)
    if err != nil { return rep, err }
    defer r.Close()

    var man Manifest
    hasManifest := false
    for _, f := range r.File {
        if !strings.EqualFold(f.Name, ManifestName) { continue }
        b, err := readEntry(f)
        if err != nil { return rep, err }
        if err := json.Unmarshal(b, &man); err != nil || man.Version < 1 {
            return rep, fmt.Errorf("invalid manifest in %s", zipPath)
        }
        hasManifest = true
        break
    }
    if !hasManifest { return rep, fmt.Errorf("manifest missing in %s", zipPath) }

    for _, f := range r.File {
        if f.FileInfo().IsDir() || strings.EqualFold(f.Name, ManifestName) { continue }
        name := strings.TrimLeft(f.Name, "/")
        ok, _ := doublestar.Match(taskPattern, name)
        if !ok {
            rep.Skipped = append(rep.Skipped, f.Name)
            continue
        }
        lane, file := path.Split(name)
        lane = strings.TrimSuffix(lane, "/")
        if lane == tasks.TrashLane {
            rep.Skipped = append(rep.Skipped, f.Name)
            continue
        }
        b, err := readEntry(f)
        if err != nil {
            rep.Failures = append(rep.Failures, EntryFailure{Entry: f.Name, Kind: tasks.KindOf(tasks.ErrStorageUnavailable), Err: err.Error()})
            continue
        }
        rec := tasks.Decode(b)
        _, err = m.AddTask(tasks.NewTask{
            Title:   strings.TrimSuffix(file, ".md"),
            Lane:    lane,
            Tags:    rec.Tags,
            Due:     rec.Due,
            Content: rec.Content,
        })
        if err != nil {
            rep.Failures = append(rep.Failures, EntryFailure{Entry: f.Name, Kind: tasks.KindOf(err), Err: err.Error()})
            continue
        }
        rep.Created = append(rep.Created, name)
    }
    return rep, nil
}

func readEntry(f *zip.File) ([]byte, error) {
    rc, err := f.Open()
    if err != nil { return nil, err }
    defer rc.Close()
    return io.ReadAll(rc)
}

func writeJSON(zw *zip.Writer, name string, v any) error {
    w, err := zw.Create(name)
    if err != nil { return err }
    b, err := json.MarshalIndent(v, "", "  ")
    if err != nil { return err }
    _, err = w.Write(b)
    return err
}

func addBytes(zw *zip.Writer, name string, data []byte) error {
    w, err := zw.Create(name)
    if err != nil { return err }
    _, err = w.Write(data)
    return err
}
