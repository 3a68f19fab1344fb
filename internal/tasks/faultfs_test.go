package tasks

import (
    "errors"
    "os"
    "path/filepath"
    "strings"

    "github.com/spf13/afero"
)

var errDiskFull = errors.New("disk full")

// faultFs wraps an afero.Fs and fails selected operations.
type faultFs struct {
    afero.Fs
    tempCreates int
    failTempAt  int  // fail the Nth temp file creation, 0 never
    failRename  bool // every Rename fails
    failRemove  func(name string) bool
}

func (f *faultFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
    if flag&os.O_CREATE != 0 && strings.HasPrefix(filepath.Base(name), ".tmp-") {
        f.tempCreates++
        if f.tempCreates == f.failTempAt {
            return nil, &os.PathError{Op: "open", Path: name, Err: errDiskFull}
        }
    }
    return f.Fs.OpenFile(name, flag, perm)
}

func (f *faultFs) Rename(oldname, newname string) error {
    if f.failRename {
        return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: errors.ErrUnsupported}
    }
    return f.Fs.Rename(oldname, newname)
}

func (f *faultFs) Remove(name string) error {
    if f.failRemove != nil && f.failRemove(name) {
        return &os.PathError{Op: "remove", Path: name, Err: os.ErrPermission}
    }
    return f.Fs.Remove(name)
}

// reset clears the failure counters and switches.
func (f *faultFs) reset() {
    f.tempCreates, f.failTempAt, f.failRename, f.failRemove = 0, 0, false, nil
}
