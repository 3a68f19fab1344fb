package logs

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	slogmulti "github.com/samber/slog-multi"
	slogjournal "github.com/systemd/slog-journal"
)

type Options struct {
    Debug   bool
    Writer  io.Writer // terminal handler destination; stderr when nil
    File    string    // optional JSON log file
    Journal bool      // also send records to the systemd journal
}

// New builds the process logger. The returned closer flushes and closes the log
// file when one was opened.
func New(opts Options) (*slog.Logger, func() error) {
    level := new(slog.LevelVar)
    if opts.Debug {
        level.Set(slog.LevelDebug)
    }
    w := opts.Writer
    if w == nil {
        w = os.Stderr
    }
    closer := func() error { return nil }

    terminal := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
    handlers := []slog.Handler{terminal}

    if opts.File != "" {
        f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
        if err != nil {
            warn(terminal, "open log file", err)
        } else {
            handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
            closer = f.Close
        }
    }

    if opts.Journal {
        journal, err := slogjournal.NewHandler(&slogjournal.Options{
            Level: level,
            ReplaceGroup: func(key string) string {
                return toJournalKey(key)
            },
            ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
                a.Key = toJournalKey(a.Key)
                return a
            },
        })
        if err != nil {
            warn(terminal, "new systemd journal handler", err)
        } else {
            handlers = append(handlers, journal)
        }
    }

    return slog.New(slogmulti.Fanout(handlers...)), closer
}

// Discard is a logger for tests and callers that do not care.
func Discard() *slog.Logger {
    return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func warn(h slog.Handler, msg string, err error) {
    record := slog.NewRecord(time.Now(), slog.LevelWarn, msg, 0)
    record.Add("error", err)
    _ = h.Handle(context.Background(), record)
}

func toJournalKey(str string) string {
    str = strings.ToUpper(str)
    return strings.Map(func(r rune) rune {
        if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
            return r
        }
        return '_'
    }, str)
}
