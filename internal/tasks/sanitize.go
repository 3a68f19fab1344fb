package tasks

import (
    "strings"
)

// CleanOneLine turns task text into a single preview line. Fenced code blocks
// and split markers are removed, leading markdown heading and list markers
// are dropped, and whitespace runs collapse to one space. The result is cut to
// maxLen runes when maxLen > 0. It also reports whether the text was altered
// and whether it was truncated.
func CleanOneLine(s string, maxLen int) (string, bool, bool) {
    orig := s

    for {
        i := strings.Index(s, "```")
        if i < 0 { break }
        j := strings.Index(s[i+3:], "```")
        if j < 0 { // opening without closing: drop the rest
            s = s[:i]
            break
        }
        s = s[:i] + " " + s[i+3+j+3:]
    }
    s = strings.ReplaceAll(s, SplitMarker, " ")

    lines := strings.Split(strings.ReplaceAll(s, "\r", ""), "\n")
    for i, ln := range lines {
        ln = strings.TrimSpace(ln)
        ln = strings.TrimLeft(ln, "#")
        for _, p := range []string{"- [ ] ", "- [x] ", "- ", "* "} {
            if strings.HasPrefix(ln, p) {
                ln = ln[len(p):]
                break
            }
        }
        lines[i] = ln
    }
    s = strings.Join(strings.Fields(strings.Join(lines, " ")), " ")

    truncated := false
    if maxLen > 0 {
        if r := []rune(s); len(r) > maxLen {
            s = string(r[:maxLen]) + "…"
            truncated = true
        }
    }
    return s, s != orig, truncated
}
