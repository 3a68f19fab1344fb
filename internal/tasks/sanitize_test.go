package tasks

import "testing"

func TestCleanOneLine(t *testing.T) {
    cases := []struct {
        in, want       string
        max            int
        changed, trunc bool
    }{
        {"plain", "plain", 0, false, false},
        {"# Heading\n\n- item one\n- [ ] item two", "Heading item one item two", 0, true, false},
        {"before ```go\ncode\n``` after", "before after", 0, true, false},
        {"open ```never closed", "open", 0, true, false},
        {"A [[split]] B", "A B", 0, true, false},
        {"abcdef", "abc…", 3, true, true},
    }
    for _, c := range cases {
        got, changed, trunc := CleanOneLine(c.in, c.max)
        if got != c.want || changed != c.changed || trunc != c.trunc {
            t.Errorf("CleanOneLine(%q, %d) = %q %v %v, want %q %v %v", c.in, c.max, got, changed, trunc, c.want, c.changed, c.trunc)
        }
    }
}
