package tasks

import (
    "bytes"
    "fmt"
    "strings"
    "time"
)

const (
    tagPrefix    = "[tag:"
    duePrefix    = "[due:"
    legacyPrefix = "tags:"
    metaSuffix   = "]"

    // SplitMarker delimits independent fragments inside a task body.
    SplitMarker = "[[split]]"
    // ProvenanceTag is added to every task created by SplitTasks.
    ProvenanceTag = "multi-story feature"
    // DateLayout is the on-disk due date format.
    DateLayout = "2006-01-02"
)

// Record is the file-level content of a task: everything except the title and
// lane, which come from the file's location.
type Record struct {
    Tags    []string
    Due     time.Time
    Content string
}

// Decode parses the metadata block at the start of raw. Lines that do not match
// the grammar, including due lines with an unparseable date, end the block and
// are kept as content. It never fails.
func Decode(raw []byte) Record {
    if r, ok := decodeLegacy(raw); ok {
        return r
    }
    var r Record
    pos := 0
    meta := false
    for pos < len(raw) {
        line, rest, _ := cutLine(raw[pos:])
        next := len(raw) - len(rest)

        if tag, ok := parseTagLine(line); ok {
            r.Tags = append(r.Tags, tag)
        } else if due, ok := parseDueLine(line); ok {
            r.Due = due
        } else {
            if meta && line == "" {
                // blank separator after the metadata block
                pos = next
            }
            break
        }
        meta = true
        pos = next
    }
    r.Content = string(raw[pos:])
    return r
}

// decodeLegacy reads the deprecated header: one "tags: a, b" line naming at
// least one tag, then a blank line. Anything else is left to Decode.
func decodeLegacy(raw []byte) (Record, bool) {
    first, rest, ok := cutLine(raw)
    if !ok { return Record{}, false }
    tags, ok := parseLegacyTagLine(first)
    if !ok || len(tags) == 0 { return Record{}, false }
    blank, body, ok := cutLine(rest)
    if !ok || blank != "" { return Record{}, false }
    return Record{Tags: tags, Content: string(body)}, true
}

// cutLine splits off the first line of b without its line ending. ok is false
// when b holds no newline; line is then all of b.
func cutLine(b []byte) (line string, rest []byte, ok bool) {
    i := bytes.IndexByte(b, '\n')
    if i < 0 {
        return strings.TrimSuffix(string(b), "\r"), nil, false
    }
    return strings.TrimSuffix(string(b[:i]), "\r"), b[i+1:], true
}

// MetadataLike reports whether content, written without any metadata in front
// of it, would not read back unchanged because its first lines parse as
// metadata.
func MetadataLike(content string) bool {
    return Decode([]byte(content)).Content != content
}

// Encode renders r in the current grammar: tag lines, an optional due line, a
// blank separator when any metadata was written, then the content verbatim.
func Encode(r Record) []byte {
    var b bytes.Buffer
    for _, t := range r.Tags {
        b.WriteString(tagPrefix)
        b.WriteString(t)
        b.WriteString(metaSuffix)
        b.WriteByte('\n')
    }
    if !r.Due.IsZero() {
        b.WriteString(duePrefix)
        b.WriteString(FormatDue(r.Due))
        b.WriteString(metaSuffix)
        b.WriteByte('\n')
    }
    if b.Len() > 0 {
        b.WriteByte('\n')
    }
    b.WriteString(r.Content)
    return b.Bytes()
}

// Split cuts content at every SplitMarker and trims each fragment. Empty
// fragments are kept, so the result always has one more element than there are
// markers.
func Split(content string) []string {
    parts := strings.Split(content, SplitMarker)
    for i := range parts {
        parts[i] = strings.TrimSpace(parts[i])
    }
    return parts
}

// HasSplitMarker reports whether content would split into more than one fragment.
func HasSplitMarker(content string) bool {
    return strings.Contains(content, SplitMarker)
}

func parseTagLine(line string) (string, bool) {
    if !strings.HasPrefix(line, tagPrefix) || !strings.HasSuffix(line, metaSuffix) {
        return "", false
    }
    name := strings.TrimSpace(line[len(tagPrefix) : len(line)-len(metaSuffix)])
    if !ValidTag(name) {
        return "", false
    }
    return name, true
}

func parseDueLine(line string) (time.Time, bool) {
    if !strings.HasPrefix(line, duePrefix) || !strings.HasSuffix(line, metaSuffix) {
        return time.Time{}, false
    }
    due, err := ParseDue(strings.TrimSpace(line[len(duePrefix) : len(line)-len(metaSuffix)]))
    if err != nil || due.IsZero() {
        return time.Time{}, false
    }
    return due, true
}

// parseLegacyTagLine reads the deprecated "tags: a, b" header.
func parseLegacyTagLine(line string) ([]string, bool) {
    if !strings.HasPrefix(line, legacyPrefix) {
        return nil, false
    }
    tags := SplitTagList(line[len(legacyPrefix):])
    for _, t := range tags {
        if !ValidTag(t) {
            return nil, false
        }
    }
    return tags, true
}

// SplitTagList splits a comma-separated list, trimming entries and dropping
// empty ones.
func SplitTagList(s string) []string {
    var out []string
    for _, t := range strings.Split(s, ",") {
        if t = strings.TrimSpace(t); t != "" {
            out = append(out, t)
        }
    }
    return out
}

// ParseDue parses a YYYY-MM-DD date. The empty string yields the zero time.
func ParseDue(s string) (time.Time, error) {
    s = strings.TrimSpace(s)
    if s == "" {
        return time.Time{}, nil
    }
    t, err := time.Parse(DateLayout, s)
    if err != nil {
        return time.Time{}, fmt.Errorf("due date %q: want YYYY-MM-DD", s)
    }
    return t, nil
}

func FormatDue(t time.Time) string {
    if t.IsZero() {
        return ""
    }
    return t.Format(DateLayout)
}

// ValidTag reports whether name can be written as a tag line and read back.
func ValidTag(name string) bool {
    return name != "" && name == strings.TrimSpace(name) && !strings.ContainsAny(name, "]\r\n")
}

// ValidTitle reports whether title can name a task file.
func ValidTitle(title string) bool {
    return validName(title)
}

// ValidLane reports whether name can name a lane directory.
func ValidLane(name string) bool {
    return validName(name)
}

func validName(s string) bool {
    if s == "" || strings.TrimSpace(s) != s || strings.HasPrefix(s, ".") {
        return false
    }
    return !strings.ContainsAny(s, "/\\\x00\r\n")
}
