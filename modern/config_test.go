package modern

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/CK6170/Leocal-go/models"
)

func TestLoadOrCreateMissing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exp1")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	s, err := LoadOrCreate(CalPath(dir), "v1")
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if s.Experiment != "exp1" || s.ToolVersion != "v1" || len(s.Channels) != 0 {
		t.Fatalf("fresh store = %+v", s)
	}
	if s.DateModified == "" {
		t.Fatalf("date_modified not set")
	}
	if _, err := os.Stat(CalPath(dir)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("LoadOrCreate must not write a file, stat err = %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := CalPath(t.TempDir())
	s := models.NewStore("exp1", "v1")
	_ = s.UpdateRegion("acceleration_x", "lower", 100, 200)
	_ = s.UpdateRegion("acceleration_x", "upper", 300, 400)
	_ = s.SetPoly("acceleration_x", models.Poly{0.0123456789, -1.987654321})
	_ = s.UpdateRegion("acceleration_y", "upper", 5, 6)

	if err := Save(path, s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := LoadOrCreate(path, "v1")
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	loaded.DateModified = s.DateModified
	if !reflect.DeepEqual(loaded, s) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", loaded, s)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := models.NewStore("exp1", "v1")
	for i := 0; i < 3; i++ {
		if err := Save(CalPath(dir), s); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != CalFileName {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("dir entries = %v, want only %s", names, CalFileName)
	}
}

func TestLoadOrCreateCorrupt(t *testing.T) {
	cases := map[string]string{
		"malformed":   "experiment: exp1\nchannels: [unclosed\n",
		"empty":       "",
		"sequence":    "- a\n- b\n",
		"poly alone":  "experiment: exp1\nchannels:\n  acceleration_x:\n    poly: [1, 2]\n",
		"wrong types": "experiment: exp1\nchannels:\n  acceleration_x:\n    lower: {start: abc, end: 2}\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := CalPath(t.TempDir())
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := LoadOrCreate(path, "v1")
			var ce *models.ConfigCorruptError
			if !errors.As(err, &ce) || ce.Path != path {
				t.Fatalf("err = %v, want ConfigCorruptError", err)
			}
			after, _ := os.ReadFile(path)
			if string(after) != body {
				t.Fatalf("corrupt file was modified")
			}
		})
	}
}

func TestLoadOrCreateKeepsRecordedVersion(t *testing.T) {
	path := CalPath(t.TempDir())
	if err := Save(path, models.NewStore("exp1", "old")); err != nil {
		t.Fatal(err)
	}
	s, err := LoadOrCreate(path, "new")
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if s.ToolVersion != "old" || !s.Stale("new") {
		t.Fatalf("tool_version = %q, want recorded value kept", s.ToolVersion)
	}
}

func TestToolVersionOverride(t *testing.T) {
	old := Version
	t.Cleanup(func() { Version = old })
	Version = "1.2.3"
	if got := ToolVersion(); got != "1.2.3" {
		t.Fatalf("ToolVersion() = %q", got)
	}
}
