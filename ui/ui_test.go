package ui

import (
	"bytes"
	"strings"
	"testing"
)

func TestTableAlignsWideRunes(t *testing.T) {
	got := Table([]string{"param", "unit"}, [][]string{
		{"temperature", "°C"},
		{"深度", "m"},
	})
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %q", lines)
	}
	// "深度" is four columns wide, so the unit column starts at the same offset
	if strings.Index(lines[2], "°C") != strings.Index(lines[0], "unit") {
		t.Fatalf("misaligned:\n%s", got)
	}
	if !strings.HasPrefix(lines[3], "深度         m") {
		t.Fatalf("wide rune row = %q", lines[3])
	}
}

func TestColorDisabled(t *testing.T) {
	var buf bytes.Buffer
	oldOut, oldColor := Out, Color
	t.Cleanup(func() { Out, Color = oldOut, oldColor })
	Out, Color = &buf, false

	Greenf("ok %d\n", 1)
	Debugf(false, "hidden\n")
	Debugf(true, "shown\n")
	if got := buf.String(); got != "ok 1\n[DEBUG] shown\n" {
		t.Fatalf("output = %q", got)
	}
}

func TestWaitKey(t *testing.T) {
	ch := make(chan rune, 4)
	ch <- 'x'
	ch <- 'F'
	if r, ok := WaitKey(ch, "fs"); !ok || r != 'f' {
		t.Fatalf("WaitKey = %q, %v", r, ok)
	}
	ch <- KeyEsc
	if r, _ := WaitKey(ch, "fs"); r != KeyEsc {
		t.Fatalf("WaitKey = %q, want Esc", r)
	}
	close(ch)
	if _, ok := WaitKey(ch, "fs"); ok {
		t.Fatalf("closed channel should report !ok")
	}
}
