package main

import (
	"context"
	"testing"

	"github.com/CK6170/Leocal-go/models"
	"github.com/CK6170/Leocal-go/modern"

	tea "github.com/charmbracelet/bubbletea"
)

func stepLoader(ctx context.Context, dir string, sampleF int) (*models.Table, error) {
	index := make([]int64, 50)
	col := make([]float64, 50)
	for i := range index {
		index[i] = int64(i)
		switch {
		case i >= 10 && i < 20:
			col[i] = 10
		case i >= 30 && i < 40:
			col[i] = 30
		}
	}
	return models.NewTable(index, nil, map[string][]float64{"acceleration_z": col}, nil)
}

func keys(m tea.Model, s string) tea.Model {
	for _, r := range s {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func press(m tea.Model, t tea.KeyType) (tea.Model, tea.Cmd) {
	return m.Update(tea.KeyMsg{Type: t})
}

func TestHelpers(t *testing.T) {
	if !digitsOnly("0123") || digitsOnly("") || digitsOnly("1a") {
		t.Fatalf("digitsOnly")
	}
	if _, _, err := parseBounds("1", "x"); err == nil {
		t.Fatalf("expected error for non-numeric end")
	}
	if s, e, err := parseBounds(" 3 ", "9"); err != nil || s != 3 || e != 9 {
		t.Fatalf("parseBounds = %d, %d, %v", s, e, err)
	}
	if got := polyText(models.Poly{0.1, -3}); got != "[0.1, -3]" {
		t.Fatalf("polyText = %q", got)
	}
}

func TestCalibrationScreenFlow(t *testing.T) {
	dir := t.TempDir()
	sess, err := modern.Open(context.Background(), dir, modern.OpenOptions{Version: "test", Loader: stepLoader})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	var m tea.Model = initialModel()
	m, _ = m.Update(openedMsg{runID: 0, sess: sess})
	m = keys(m, "1")
	if got := m.(model).scr; got != screenCalibration {
		t.Fatalf("screen = %v", got)
	}

	// letters that are not commands must not reach the inputs
	m = keys(m, "10x")
	m, _ = press(m, tea.KeyTab)
	m = keys(m, "19")
	m, cmd := press(m, tea.KeyEnter)
	if cmd == nil {
		t.Fatalf("expected save command")
	}
	m, _ = m.Update(cmd())
	if err := m.(model).lastErr; err != nil {
		t.Fatalf("save: %v", err)
	}

	m = keys(m, "u")
	m = keys(m, "30")
	m, _ = press(m, tea.KeyTab)
	m = keys(m, "39")
	m, cmd = press(m, tea.KeyEnter)
	m, _ = m.Update(cmd())

	m, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'f'}})
	m, _ = m.Update(cmd())
	if err := m.(model).lastErr; err != nil {
		t.Fatalf("fit: %v", err)
	}
	ch, ok := sess.Snapshot().Channel("acceleration_z")
	if !ok || ch.State() != models.StateFitted {
		t.Fatalf("channel = %+v", ch)
	}

	// switching back to lower reloads the stored region
	m = keys(m, "l")
	if got := m.(model).startInput.Value(); got != "10" {
		t.Fatalf("start input = %q", got)
	}
}

func TestStaleResultIgnored(t *testing.T) {
	m := initialModel()
	m.runID = 2
	next, _ := m.Update(fitDoneMsg{runID: 1, results: map[string]error{"x": nil}})
	if next.(model).infoLine != "" {
		t.Fatalf("stale result applied")
	}
}
