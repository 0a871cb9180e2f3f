package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CK6170/Leocal-go/models"
	"github.com/CK6170/Leocal-go/modern"
	"github.com/CK6170/Leocal-go/ui"
)

func captureOut(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	oldOut, oldColor := ui.Out, ui.Color
	t.Cleanup(func() { ui.Out, ui.Color = oldOut, oldColor })
	ui.Out, ui.Color = &buf, false
	return &buf
}

func TestSetAndShow(t *testing.T) {
	out := captureOut(t)
	dir := filepath.Join(t.TempDir(), "exp1")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	app := newApp()
	if err := app.Run([]string{"leocal", "set", dir, "Acceleration-X", "lower", "100", "200"}); err != nil {
		t.Fatalf("set lower: %v", err)
	}
	if err := app.Run([]string{"leocal", "set", dir, "acceleration_x", "UPPER", "300", "400"}); err != nil {
		t.Fatalf("set upper: %v", err)
	}

	st, err := modern.LoadOrCreate(modern.CalPath(dir), modern.ToolVersion())
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if got := st.Channels["acceleration_x"].State(); got != models.StateBothSet {
		t.Fatalf("state = %s", got)
	}

	out.Reset()
	if err := app.Run([]string{"leocal", "show", dir}); err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{"experiment:    exp1", "acceleration_x", "BOTH_SET", "[100, 200]", "[300, 400]"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("show output missing %q:\n%s", want, out.String())
		}
	}
}

func TestSetRejectsInvalidBound(t *testing.T) {
	captureOut(t)
	dir := t.TempDir()
	err := newApp().Run([]string{"leocal", "set", dir, "acceleration_x", "middle", "1", "2"})
	var be *models.InvalidBoundError
	if !errors.As(err, &be) {
		t.Fatalf("err = %v, want InvalidBoundError", err)
	}
	if _, err := os.Stat(modern.CalPath(dir)); !os.IsNotExist(err) {
		t.Fatalf("cal.yml written after invalid bound")
	}
}

func TestSetUsage(t *testing.T) {
	captureOut(t)
	if err := newApp().Run([]string{"leocal", "set", t.TempDir(), "acceleration_x"}); err == nil {
		t.Fatalf("expected usage error")
	}
}
