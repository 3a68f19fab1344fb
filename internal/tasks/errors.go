package tasks

import (
    "errors"
    "fmt"
    "strings"
)

// Error kinds. Every failure returned by this package matches exactly one of
// them with errors.Is.
var (
    ErrLaneNotFound       = errors.New("lane not found")
    ErrTaskNotFound       = errors.New("task not found")
    ErrDuplicateTask      = errors.New("duplicate task")
    ErrStorageUnavailable = errors.New("storage unavailable")
    ErrMalformedRow       = errors.New("malformed row")
    ErrInvalidInput       = errors.New("invalid input")
)

var kinds = []error{
    ErrLaneNotFound, ErrTaskNotFound, ErrDuplicateTask,
    ErrStorageUnavailable, ErrMalformedRow, ErrInvalidInput,
}

// Error carries the identifying context of a failed operation.
type Error struct {
    Op    string
    Lane  string
    Title string
    Kind  error
    Err   error // underlying cause, may be nil
}

func (e *Error) Error() string {
    var b strings.Builder
    b.WriteString(e.Op)
    if e.Lane != "" || e.Title != "" {
        b.WriteString(" ")
        switch {
        case e.Lane != "" && e.Title != "":
            fmt.Fprintf(&b, "%s/%s", e.Lane, e.Title)
        case e.Lane != "":
            fmt.Fprintf(&b, "lane %q", e.Lane)
        default:
            fmt.Fprintf(&b, "%q", e.Title)
        }
    }
    b.WriteString(": ")
    b.WriteString(e.Kind.Error())
    if e.Err != nil {
        b.WriteString(": ")
        b.WriteString(e.Err.Error())
    }
    return b.String()
}

func (e *Error) Unwrap() []error {
    if e.Err == nil {
        return []error{e.Kind}
    }
    return []error{e.Kind, e.Err}
}

// KindOf returns the short name of the error kind, or "" for foreign errors.
func KindOf(err error) string {
    for _, k := range kinds {
        if errors.Is(err, k) {
            switch k {
            case ErrLaneNotFound:
                return "LaneNotFound"
            case ErrTaskNotFound:
                return "TaskNotFound"
            case ErrDuplicateTask:
                return "DuplicateTask"
            case ErrStorageUnavailable:
                return "StorageUnavailable"
            case ErrMalformedRow:
                return "MalformedRow"
            case ErrInvalidInput:
                return "InvalidInput"
            }
        }
    }
    return ""
}

func newErr(op, lane, title string, kind, cause error) error {
    return &Error{Op: op, Lane: lane, Title: title, Kind: kind, Err: cause}
}

func storageErr(op, lane, title string, cause error) error {
    return newErr(op, lane, title, ErrStorageUnavailable, cause)
}
