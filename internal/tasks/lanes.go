package tasks

import (
    "errors"
    "io/fs"
    "os"
    "path/filepath"
    "sort"
    "strings"

    "github.com/spf13/afero"
)

const (
    // TrashLane holds tasks removed by destructive operations until EmptyTrash.
    TrashLane = "Trash"
    taskExt   = ".md"
)

// Lanes maps lane names to directories on fs. Paths are relative to the root
// of fs; production code hands it an afero.BasePathFs rooted at the base dir.
type Lanes struct {
    fs afero.Fs
}

func NewLanes(fs afero.Fs) *Lanes {
    return &Lanes{fs: fs}
}

// LanePath returns the directory of a lane.
func (l *Lanes) LanePath(name string) string {
    return filepath.Join(string(filepath.Separator), name)
}

// TaskPath returns the file that holds title inside lane.
func (l *Lanes) TaskPath(lane, title string) string {
    return filepath.Join(l.LanePath(lane), title+taskExt)
}

// EnsureLane creates the lane directory if needed and returns its path.
func (l *Lanes) EnsureLane(name string) (string, error) {
    if !ValidLane(name) {
        return "", newErr("ensure lane", name, "", ErrInvalidInput, nil)
    }
    p := l.LanePath(name)
    info, err := l.fs.Stat(p)
    if err == nil {
        if !info.IsDir() {
            return "", storageErr("ensure lane", name, "", errors.New("path exists and is not a directory"))
        }
        return p, nil
    }
    if !errors.Is(err, fs.ErrNotExist) {
        return "", storageErr("ensure lane", name, "", err)
    }
    if err := l.fs.MkdirAll(p, 0o755); err != nil {
        return "", storageErr("ensure lane", name, "", err)
    }
    return p, nil
}

// LaneExists reports whether name is an existing lane directory.
func (l *Lanes) LaneExists(name string) bool {
    if !ValidLane(name) {
        return false
    }
    info, err := l.fs.Stat(l.LanePath(name))
    return err == nil && info.IsDir()
}

// ListLaneFiles returns the task files directly inside a lane, sorted by name.
func (l *Lanes) ListLaneFiles(name string) ([]string, error) {
    if !ValidLane(name) {
        return nil, newErr("list lane", name, "", ErrLaneNotFound, nil)
    }
    p := l.LanePath(name)
    entries, err := afero.ReadDir(l.fs, p)
    if err != nil {
        if errors.Is(err, fs.ErrNotExist) {
            return nil, newErr("list lane", name, "", ErrLaneNotFound, nil)
        }
        return nil, storageErr("list lane", name, "", err)
    }
    var files []string
    for _, e := range entries {
        if !e.Mode().IsRegular() { continue }
        if !isTaskFile(e.Name()) { continue }
        files = append(files, filepath.Join(p, e.Name()))
    }
    sort.Strings(files)
    return files, nil
}

// ListLanes returns the user-visible lanes sorted by name. Trash and hidden
// directories are left out; a missing base directory has no lanes.
func (l *Lanes) ListLanes() ([]string, error) {
    entries, err := afero.ReadDir(l.fs, string(filepath.Separator))
    if err != nil {
        if errors.Is(err, fs.ErrNotExist) {
            return nil, nil
        }
        return nil, storageErr("list lanes", "", "", err)
    }
    var lanes []string
    for _, e := range entries {
        if !e.IsDir() { continue }
        name := e.Name()
        if name == TrashLane || !ValidLane(name) { continue }
        lanes = append(lanes, name)
    }
    sort.Strings(lanes)
    return lanes, nil
}

// readFile and writeFile are the only byte-level accesses to task files.
func (l *Lanes) readFile(p string) ([]byte, error) {
    return afero.ReadFile(l.fs, p)
}

// writeFile writes through a temp file in the same directory and renames it
// into place, so readers never observe a partially written task.
func (l *Lanes) writeFile(p string, data []byte) error {
    f, err := afero.TempFile(l.fs, filepath.Dir(p), ".tmp-*")
    if err != nil {
        return err
    }
    tmp := f.Name()
    if _, err := f.Write(data); err != nil {
        f.Close()
        l.fs.Remove(tmp)
        return err
    }
    if err := f.Close(); err != nil {
        l.fs.Remove(tmp)
        return err
    }
    if err := l.fs.Rename(tmp, p); err != nil {
        l.fs.Remove(tmp)
        return err
    }
    return nil
}

// createFile writes data to p, which must not exist yet. A failed write
// removes the partial file.
func (l *Lanes) createFile(p string, data []byte) error {
    f, err := l.fs.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
    if err != nil {
        return err
    }
    _, err = f.Write(data)
    if cerr := f.Close(); err == nil {
        err = cerr
    }
    if err != nil {
        l.fs.Remove(p)
    }
    return err
}

// exists reports whether anything occupies p.
func (l *Lanes) exists(p string) bool {
    _, err := l.fs.Stat(p)
    return err == nil
}

// isTask reports whether p is a regular task file.
func (l *Lanes) isTask(p string) bool {
    info, err := l.fs.Stat(p)
    return err == nil && info.Mode().IsRegular()
}

func isTaskFile(name string) bool {
    return strings.HasSuffix(name, taskExt) && !strings.HasPrefix(name, ".") && len(name) > len(taskExt)
}

func titleFromPath(p string) string {
    return strings.TrimSuffix(filepath.Base(p), taskExt)
}

func laneFromPath(p string) string {
    return filepath.Base(filepath.Dir(p))
}
