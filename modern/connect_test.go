package modern

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/CK6170/Leocal-go/models"
)

func openTestSession(t *testing.T, tbl *models.Table) *Session {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "exp1")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	sess, err := Open(context.Background(), dir, OpenOptions{
		Version: "v2",
		Loader: func(ctx context.Context, d string, sampleF int) (*models.Table, error) {
			if sampleF != DefaultSampleF {
				t.Errorf("sampleF = %d, want default", sampleF)
			}
			return tbl, nil
		},
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return sess
}

func TestSessionRegionAndFit(t *testing.T) {
	tbl := stepTable(t, "acceleration_x", 500,
		[3]float64{100, 200, 50},
		[3]float64{300, 400, 150},
	)
	sess := openTestSession(t, tbl)
	if sess.Store.Experiment != "exp1" {
		t.Fatalf("experiment = %q", sess.Store.Experiment)
	}

	if err := sess.UpdateRegion("Acceleration-X", "lower", 100, 200); err != nil {
		t.Fatalf("UpdateRegion: %v", err)
	}
	if _, err := sess.Fit("acceleration_x"); err == nil {
		t.Fatalf("fit with one region should fail")
	}
	if err := sess.UpdateRegion("acceleration_x", "upper", 300, 400); err != nil {
		t.Fatalf("UpdateRegion: %v", err)
	}
	poly, err := sess.Fit("acceleration_x")
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if !near(poly.Slope(), 0.02) || !near(poly.Intercept(), -2) {
		t.Fatalf("poly = %v", poly)
	}
	if st := sess.Store.Channels["acceleration_x"].State(); st != models.StateFitted {
		t.Fatalf("state = %s", st)
	}

	onDisk, err := LoadOrCreate(sess.CalPath, "v2")
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if p := onDisk.Channels["acceleration_x"].Poly; p == nil || *p != poly {
		t.Fatalf("persisted poly = %v", p)
	}

	// moving a bound drops the fit on disk too
	if err := sess.UpdateRegion("acceleration_x", "upper", 300, 390); err != nil {
		t.Fatal(err)
	}
	if err := sess.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if st := sess.Store.Channels["acceleration_x"].State(); st != models.StateBothSet {
		t.Fatalf("state after reload = %s", st)
	}
}

func TestSessionFailedOperationLeavesStore(t *testing.T) {
	tbl := stepTable(t, "acceleration_z", 20)
	sess := openTestSession(t, tbl)
	_ = sess.UpdateRegion("acceleration_z", "lower", 0, 4)
	_ = sess.UpdateRegion("acceleration_z", "upper", 5, 9)
	before := sess.Snapshot()
	disk, _ := os.ReadFile(sess.CalPath)

	var de *models.DegenerateFitError
	if _, err := sess.Fit("acceleration_z"); !errors.As(err, &de) {
		t.Fatalf("err = %v, want DegenerateFitError", err)
	}
	var be *models.InvalidBoundError
	if err := sess.UpdateRegion("acceleration_z", "middle", 1, 2); !errors.As(err, &be) {
		t.Fatalf("err = %v, want InvalidBoundError", err)
	}

	after := sess.Snapshot()
	if after.DateModified != before.DateModified || after.Channels["acceleration_z"].Poly != nil {
		t.Fatalf("store changed after failed operations")
	}
	if now, _ := os.ReadFile(sess.CalPath); string(now) != string(disk) {
		t.Fatalf("cal.yml changed after failed operations")
	}
}

func TestSessionFitAll(t *testing.T) {
	index := make([]int64, 40)
	x := make([]float64, 40)
	y := make([]float64, 40)
	for i := range index {
		index[i] = int64(i)
		x[i] = float64(i)
		y[i] = 7
	}
	tbl, err := models.NewTable(index, nil, map[string][]float64{"acceleration_x": x, "acceleration_y": y}, nil)
	if err != nil {
		t.Fatal(err)
	}
	sess := openTestSession(t, tbl)
	_ = sess.UpdateRegion("acceleration_x", "lower", 0, 9)
	_ = sess.UpdateRegion("acceleration_x", "upper", 30, 39)
	_ = sess.UpdateRegion("acceleration_y", "lower", 0, 9)
	_ = sess.UpdateRegion("acceleration_y", "upper", 30, 39)
	_ = sess.UpdateRegion("acceleration_z", "lower", 0, 9)

	results, err := sess.FitAll()
	if err != nil {
		t.Fatalf("FitAll: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %v, want x and y only", results)
	}
	if results["acceleration_x"] != nil {
		t.Fatalf("acceleration_x: %v", results["acceleration_x"])
	}
	var de *models.DegenerateFitError
	if !errors.As(results["acceleration_y"], &de) {
		t.Fatalf("acceleration_y: %v", results["acceleration_y"])
	}
	if sess.Store.Channels["acceleration_x"].Poly == nil || sess.Store.Channels["acceleration_y"].Poly != nil {
		t.Fatalf("unexpected polys after FitAll")
	}
}

func TestSessionStampsToolVersion(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exp1")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := Save(CalPath(dir), models.NewStore("exp1", "v1")); err != nil {
		t.Fatal(err)
	}
	tbl := stepTable(t, "acceleration_x", 10)
	sess, err := Open(context.Background(), dir, OpenOptions{
		SampleF: 1,
		Version: "v2",
		Loader:  func(context.Context, string, int) (*models.Table, error) { return tbl, nil },
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !sess.Skewed() {
		t.Fatalf("expected version skew")
	}
	if err := sess.UpdateRegion("acceleration_x", "lower", 0, 1); err != nil {
		t.Fatal(err)
	}
	if sess.Skewed() || sess.Store.ToolVersion != "v2" {
		t.Fatalf("tool_version = %q after write", sess.Store.ToolVersion)
	}
}

func TestOpenCorruptStore(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(CalPath(dir), []byte("{{{"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(context.Background(), dir, OpenOptions{
		Loader: func(context.Context, string, int) (*models.Table, error) {
			t.Fatalf("loader must not run for a corrupt store")
			return nil, nil
		},
	})
	var ce *models.ConfigCorruptError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want ConfigCorruptError", err)
	}
}

func TestSessionReloadDoesNotLoseCommits(t *testing.T) {
	tbl := stepTable(t, "acceleration_x", 100)
	sess := openTestSession(t, tbl)
	for i := int64(0); i < 50; i++ {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := sess.UpdateRegion("acceleration_x", "lower", i, i+1); err != nil {
				t.Errorf("UpdateRegion: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := sess.Reload(); err != nil {
				t.Errorf("Reload: %v", err)
			}
		}()
		wg.Wait()

		disk, err := LoadOrCreate(sess.CalPath, "v2")
		if err != nil {
			t.Fatalf("LoadOrCreate: %v", err)
		}
		mem, _ := sess.Snapshot().Channel("acceleration_x")
		got, _ := disk.Channel("acceleration_x")
		if mem == nil || got == nil || *mem.Lower.Start != i || *got.Lower.Start != i {
			t.Fatalf("iteration %d: memory %+v, disk %+v", i, mem, got)
		}
	}
}
