package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/CK6170/Leocal-go/models"
	"github.com/CK6170/Leocal-go/modern"
	"github.com/CK6170/Leocal-go/ui"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type screen int

const (
	screenEntry screen = iota
	screenCalibration
	screenCheck
)

type modeStatus int

const (
	statusIdle modeStatus = iota
	statusRunning
	statusDone
	statusError
)

type model struct {
	scr screen

	// entry
	dirInput    textinput.Model
	sampleInput textinput.Model

	// session
	sess       *modern.Session
	lastErr    error
	infoLine   string
	openStatus modeStatus

	// calibration state
	params     []string
	paramIdx   int
	bound      models.Bound
	startInput textinput.Model
	endInput   textinput.Model
	calStatus  modeStatus

	// check state
	checks []modern.ChannelCheck

	// guards async results against screen changes
	runID int
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func newInput(placeholder string, width int) textinput.Model {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = 512
	in.Width = width
	return in
}

func initialModel() model {
	m := model{
		scr:         screenEntry,
		dirInput:    newInput("Path to data directory", 60),
		sampleInput: newInput(strconv.Itoa(modern.DefaultSampleF), 6),
		startInput:  newInput("start", 12),
		endInput:    newInput("end", 12),
		bound:       models.BoundLower,
	}
	m.dirInput.Focus()
	// support passing the data directory as arg
	if len(os.Args) > 1 && strings.TrimSpace(os.Args[1]) != "" {
		m.dirInput.SetValue(os.Args[1])
		m.dirInput.CursorEnd()
	}
	if v := os.Getenv("LEOCAL_SAMPLE_F"); v != "" {
		m.sampleInput.SetValue(v)
	}
	return m
}

type errMsg struct{ err error }
type infoMsg struct{ s string }
type openedMsg struct {
	runID int
	sess  *modern.Session
}
type regionSavedMsg struct{ runID int }
type fitDoneMsg struct {
	runID   int
	results map[string]error
}
type checkMsg struct {
	runID  int
	checks []modern.ChannelCheck
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.scr {
		case screenEntry:
			return m.updateEntryKey(msg)
		case screenCalibration:
			return m.updateCalibrationKey(msg)
		case screenCheck:
			return m.updateCheckKey(msg)
		}

	case errMsg:
		m.lastErr = msg.err
		// move mode statuses to error if currently running
		switch m.scr {
		case screenEntry:
			m.openStatus = statusError
		case screenCalibration:
			m.calStatus = statusError
		}
		return m, nil

	case infoMsg:
		m.infoLine = msg.s
		m.lastErr = nil
		return m, nil

	case openedMsg:
		if msg.runID != m.runID {
			return m, nil
		}
		m.sess = msg.sess
		m.openStatus = statusDone
		m.lastErr = nil
		m.dirInput.Blur()
		m.sampleInput.Blur()
		m.params = msg.sess.Table.Columns()
		m.paramIdx = 0
		m.infoLine = fmt.Sprintf("Opened %s (%d rows, %d channels)", msg.sess.Store.Experiment, msg.sess.Table.Len(), len(m.params))
		if msg.sess.Skewed() {
			m.infoLine += "; " + skewNote(msg.sess)
		}
		return m, nil

	case regionSavedMsg:
		if msg.runID != m.runID {
			return m, nil
		}
		m.calStatus = statusDone
		m.lastErr = nil
		m.infoLine = fmt.Sprintf("Saved %s/%s.", m.param(), m.bound)
		return m, nil

	case fitDoneMsg:
		if msg.runID != m.runID {
			return m, nil
		}
		m.calStatus = statusDone
		m.lastErr = nil
		var ok, failed []string
		for name, err := range msg.results {
			if err != nil {
				failed = append(failed, name+": "+err.Error())
				continue
			}
			ok = append(ok, name)
		}
		switch {
		case len(msg.results) == 0:
			m.infoLine = "No channel has both regions set."
		case len(failed) > 0:
			m.calStatus = statusError
			m.lastErr = fmt.Errorf("%s", strings.Join(failed, "; "))
			m.infoLine = fmt.Sprintf("Fitted %d channel(s).", len(ok))
		default:
			m.infoLine = fmt.Sprintf("Fitted %s.", strings.Join(ok, ", "))
		}
		return m, nil

	case checkMsg:
		if msg.runID != m.runID || m.scr != screenCheck {
			return m, nil
		}
		m.checks = msg.checks
		return m, nil
	}

	// default: let inputs update
	return m.updateInputs(msg)
}

func (m model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.scr {
	case screenEntry:
		if m.sampleInput.Focused() {
			m.sampleInput, cmd = m.sampleInput.Update(msg)
		} else {
			m.dirInput, cmd = m.dirInput.Update(msg)
		}
	case screenCalibration:
		if m.endInput.Focused() {
			m.endInput, cmd = m.endInput.Update(msg)
		} else {
			m.startInput, cmd = m.startInput.Update(msg)
		}
	}
	return m, cmd
}

func skewNote(sess *modern.Session) string {
	return fmt.Sprintf("cal.yml written by %s, running %s: refit to be safe", sess.Store.ToolVersion, sess.Version)
}

func (m model) param() string {
	if len(m.params) == 0 {
		return ""
	}
	return m.params[m.paramIdx]
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Leocal accelerometer calibration") + "\n")
	b.WriteString(helpStyle.Render("Ctrl+C to quit. 'b' to go back from a mode.") + "\n\n")
	if m.infoLine != "" {
		b.WriteString(okStyle.Render(m.infoLine) + "\n")
	}
	if m.lastErr != nil {
		b.WriteString(errStyle.Render("Error: "+m.lastErr.Error()) + "\n")
	}
	b.WriteString("\n")

	switch m.scr {
	case screenEntry:
		b.WriteString(m.viewEntry())
	case screenCalibration:
		b.WriteString(m.viewCalibration())
	case screenCheck:
		b.WriteString(m.viewCheck())
	}
	return b.String()
}

func (m model) viewEntry() string {
	var b strings.Builder
	b.WriteString("Data directory:\n")
	b.WriteString(m.dirInput.View() + "\n")
	b.WriteString("Keep every n-th sample:\n")
	b.WriteString(m.sampleInput.View() + "\n\n")
	if m.openStatus == statusRunning {
		b.WriteString("Loading...\n")
		return b.String()
	}
	if m.sess == nil {
		b.WriteString(helpStyle.Render("Tab switches fields. Press Enter to open.") + "\n")
		return b.String()
	}
	b.WriteString(okStyle.Render("Opened "+m.sess.Dir) + "\n\n")
	b.WriteString("Select mode:\n")
	b.WriteString("  1) Calibration (set regions, fit)\n")
	b.WriteString("  2) Check (calibrated reference means)\n")
	b.WriteString("  3) Export calibrated CSV\n\n")
	b.WriteString(helpStyle.Render("Press 1/2/3 to start. Press d to close the directory.") + "\n")
	return b.String()
}

func (m model) viewCalibration() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Calibration") + "\n\n")
	if m.sess == nil {
		b.WriteString(errStyle.Render("No data directory open.") + "\n")
		return b.String()
	}
	st := m.sess.Snapshot()
	if st.Stale(m.sess.Version) {
		b.WriteString(warnStyle.Render(skewNote(m.sess)) + "\n\n")
	}
	b.WriteString(boxStyle.Render(strings.TrimRight(channelTable(st, m.param()), "\n")) + "\n\n")

	param := m.param()
	ch, _ := st.Channel(param)
	b.WriteString(fmt.Sprintf("Parameter: %s  [%s]\n", titleStyle.Render(param), ch.State()))
	b.WriteString(fmt.Sprintf("Bound:     %s (reference %+.0f g)\n\n", m.bound, m.bound.Reference()))
	b.WriteString("Start: " + m.startInput.View() + "   End: " + m.endInput.View() + "\n\n")
	if ch != nil && ch.Poly != nil {
		b.WriteString(okStyle.Render(fmt.Sprintf("poly: slope=%.10g intercept=%.10g", ch.Poly.Slope(), ch.Poly.Intercept())) + "\n\n")
	}
	if m.calStatus == statusRunning {
		b.WriteString("Working...\n")
		return b.String()
	}
	b.WriteString(helpStyle.Render("n/p parameter  l/u bound  tab start/end  enter save  f fit  a fit all  c copy poly  b back") + "\n")
	return b.String()
}

func channelTable(st *models.Store, current string) string {
	rows := make([][]string, 0, len(st.Channels))
	for _, name := range st.ChannelNames() {
		ch := st.Channels[name]
		mark := " "
		if name == current {
			mark = ">"
		}
		rows = append(rows, []string{mark, name, string(ch.State()), fmtRegion(ch.Lower), fmtRegion(ch.Upper)})
	}
	return ui.Table([]string{" ", "parameter", "state", "lower", "upper"}, rows)
}

func fmtRegion(r *models.Region) string {
	if !r.Complete() {
		return "-"
	}
	return fmt.Sprintf("[%d, %d]", *r.Start, *r.End)
}

func (m model) viewCheck() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Check") + "\n\n")
	if m.checks == nil {
		b.WriteString("Computing...\n")
		return b.String()
	}
	var rows [][]string
	for _, cc := range m.checks {
		for _, rc := range cc.Regions {
			g := "-"
			if rc.Calibrated != nil {
				g = fmt.Sprintf("%+.4f ± %.4f", rc.Calibrated.Mean, rc.Calibrated.StdDev)
			}
			rows = append(rows, []string{cc.Parameter, string(rc.Bound), strconv.Itoa(rc.Raw.Count), g, fmt.Sprintf("%+.0f", rc.Expected)})
		}
	}
	b.WriteString(ui.Table([]string{"parameter", "bound", "n", "calibrated (g)", "expected"}, rows) + "\n")
	for _, cc := range m.checks {
		if cc.Error != "" {
			b.WriteString(warnStyle.Render(cc.Parameter+": "+cc.Error) + "\n")
		}
	}
	b.WriteString(helpStyle.Render("Press r to refresh. Press b to go back.") + "\n")
	return b.String()
}

func (m model) updateEntryKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.String() {
	case "tab", "shift+tab":
		if m.sess != nil {
			return m, nil
		}
		if m.dirInput.Focused() {
			m.dirInput.Blur()
			m.sampleInput.Focus()
		} else {
			m.sampleInput.Blur()
			m.dirInput.Focus()
		}
		return m, nil
	case "enter":
		if m.openStatus == statusRunning || m.sess != nil {
			return m, nil
		}
		dir := strings.TrimSpace(m.dirInput.Value())
		if dir == "" {
			return m, func() tea.Msg { return errMsg{err: fmt.Errorf("data directory is empty")} }
		}
		sampleF := modern.DefaultSampleF
		if v := strings.TrimSpace(m.sampleInput.Value()); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return m, func() tea.Msg { return errMsg{err: fmt.Errorf("sample factor must be a positive integer")} }
			}
			sampleF = n
		}
		m.runID++
		m.openStatus = statusRunning
		return m, openCmd(m.runID, dir, sampleF)
	}

	// inputs are locked while a directory is open
	if m.sess != nil {
		switch k.String() {
		case "1":
			m.runID++
			m.scr = screenCalibration
			m.calStatus = statusIdle
			m.loadBoundInputs()
			return m, nil
		case "2":
			m.runID++
			m.scr = screenCheck
			m.checks = nil
			return m, checkCmd(m.runID, m.sess)
		case "3":
			m.runID++
			return m, exportCmd(m.sess)
		case "d":
			m.runID++
			m.sess = nil
			m.openStatus = statusIdle
			m.infoLine = "Closed."
			m.dirInput.Focus()
			return m, nil
		}
		return m, nil
	}
	return m.updateInputs(k)
}

// loadBoundInputs fills start/end with the stored region of the current
// parameter and bound.
func (m *model) loadBoundInputs() {
	m.startInput.SetValue("")
	m.endInput.SetValue("")
	if m.sess != nil {
		st := m.sess.Snapshot()
		if ch, ok := st.Channel(m.param()); ok {
			if r := ch.Region(m.bound); r != nil {
				if r.Start != nil {
					m.startInput.SetValue(strconv.FormatInt(*r.Start, 10))
				}
				if r.End != nil {
					m.endInput.SetValue(strconv.FormatInt(*r.End, 10))
				}
			}
		}
	}
	m.endInput.Blur()
	m.startInput.Focus()
	m.startInput.CursorEnd()
}

func (m model) updateCalibrationKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.calStatus == statusRunning {
		return m, nil
	}
	switch k.String() {
	case "b", "esc":
		m.runID++
		m.scr = screenEntry
		m.calStatus = statusIdle
		return m, nil
	case "n", "down":
		if len(m.params) > 0 {
			m.paramIdx = (m.paramIdx + 1) % len(m.params)
			m.loadBoundInputs()
		}
		return m, nil
	case "p", "up":
		if len(m.params) > 0 {
			m.paramIdx = (m.paramIdx + len(m.params) - 1) % len(m.params)
			m.loadBoundInputs()
		}
		return m, nil
	case "l":
		m.bound = models.BoundLower
		m.loadBoundInputs()
		return m, nil
	case "u":
		m.bound = models.BoundUpper
		m.loadBoundInputs()
		return m, nil
	case "tab", "shift+tab":
		if m.startInput.Focused() {
			m.startInput.Blur()
			m.endInput.Focus()
		} else {
			m.endInput.Blur()
			m.startInput.Focus()
		}
		return m, nil
	case "enter":
		start, end, err := parseBounds(m.startInput.Value(), m.endInput.Value())
		if err != nil {
			return m, func() tea.Msg { return errMsg{err: err} }
		}
		m.calStatus = statusRunning
		return m, saveRegionCmd(m.runID, m.sess, m.param(), m.bound, start, end)
	case "f":
		m.calStatus = statusRunning
		return m, fitCmd(m.runID, m.sess, m.param())
	case "a":
		m.calStatus = statusRunning
		return m, fitCmd(m.runID, m.sess, "")
	case "c":
		return m, copyPolyCmd(m.sess, m.param())
	}

	if k.Type == tea.KeyRunes && !digitsOnly(string(k.Runes)) {
		return m, nil
	}
	return m.updateInputs(k)
}

func (m model) updateCheckKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.String() {
	case "b", "esc":
		m.runID++
		m.scr = screenEntry
		return m, nil
	case "r":
		m.runID++
		m.checks = nil
		return m, checkCmd(m.runID, m.sess)
	}
	return m, nil
}

func digitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func parseBounds(start, end string) (int64, int64, error) {
	s, err := strconv.ParseInt(strings.TrimSpace(start), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("start index: %w", err)
	}
	e, err := strconv.ParseInt(strings.TrimSpace(end), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("end index: %w", err)
	}
	return s, e, nil
}

// polyText formats a poly the way it is written to cal.yml.
func polyText(p models.Poly) string {
	return fmt.Sprintf("[%s, %s]",
		strconv.FormatFloat(p.Slope(), 'g', -1, 64),
		strconv.FormatFloat(p.Intercept(), 'g', -1, 64))
}

func openCmd(runID int, dir string, sampleF int) tea.Cmd {
	return func() tea.Msg {
		sess, err := modern.Open(context.Background(), dir, modern.OpenOptions{SampleF: sampleF})
		if err != nil {
			return errMsg{err: err}
		}
		return openedMsg{runID: runID, sess: sess}
	}
}

func saveRegionCmd(runID int, sess *modern.Session, param string, bound models.Bound, start, end int64) tea.Cmd {
	return func() tea.Msg {
		if sess == nil {
			return errMsg{err: fmt.Errorf("no data directory open")}
		}
		if err := sess.UpdateRegion(param, string(bound), start, end); err != nil {
			return errMsg{err: err}
		}
		return regionSavedMsg{runID: runID}
	}
}

func fitCmd(runID int, sess *modern.Session, param string) tea.Cmd {
	return func() tea.Msg {
		if sess == nil {
			return errMsg{err: fmt.Errorf("no data directory open")}
		}
		if param != "" {
			_, err := sess.Fit(param)
			return fitDoneMsg{runID: runID, results: map[string]error{param: err}}
		}
		results, err := sess.FitAll()
		if err != nil {
			return errMsg{err: err}
		}
		return fitDoneMsg{runID: runID, results: results}
	}
}

func checkCmd(runID int, sess *modern.Session) tea.Cmd {
	return func() tea.Msg {
		if sess == nil {
			return errMsg{err: fmt.Errorf("no data directory open")}
		}
		checks, err := modern.ComputeCheckSnapshot(sess.Table, sess.Snapshot())
		if err != nil {
			return errMsg{err: err}
		}
		return checkMsg{runID: runID, checks: checks}
	}
}

func copyPolyCmd(sess *modern.Session, param string) tea.Cmd {
	return func() tea.Msg {
		if sess == nil {
			return errMsg{err: fmt.Errorf("no data directory open")}
		}
		ch, ok := sess.Snapshot().Channel(param)
		if !ok || ch.Poly == nil {
			return errMsg{err: fmt.Errorf("%s has no fit to copy", param)}
		}
		if err := clipboard.WriteAll(polyText(*ch.Poly)); err != nil {
			return errMsg{err: fmt.Errorf("clipboard: %w", err)}
		}
		return infoMsg{s: "Copied " + param + " poly to clipboard."}
	}
}

func exportCmd(sess *modern.Session) tea.Cmd {
	return func() tea.Msg {
		if sess == nil {
			return errMsg{err: fmt.Errorf("no data directory open")}
		}
		st := sess.Snapshot()
		out, err := modern.ApplyPoly(sess.Table, st)
		if err != nil {
			return errMsg{err: err}
		}
		path := sess.Dir + string(os.PathSeparator) + st.Experiment + "_calibrated.csv"
		if err := modern.SaveCSV(path, out); err != nil {
			return errMsg{err: err}
		}
		return infoMsg{s: "Wrote " + path}
	}
}

func main() {
	p := tea.NewProgram(initialModel(), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}
