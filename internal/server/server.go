package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/CK6170/Leocal-go/models"
	"github.com/CK6170/Leocal-go/modern"
)

type Options struct {
	// Root confines opened data directories; relative dirs are resolved
	// against it. Empty allows any directory.
	Root    string
	WebDir  string
	Version string
	Loader  modern.Loader
	// WatchInterval is the cal.yml poll period of /api/watch/start.
	WatchInterval time.Duration
}

type Server struct {
	mux  *http.ServeMux
	opts Options

	store *SessionStore

	// WebSocket hubs
	wsCal *WSHub
}

func New(opts Options) *Server {
	if opts.Version == "" {
		opts.Version = modern.ToolVersion()
	}
	if opts.WatchInterval <= 0 {
		opts.WatchInterval = time.Second
	}
	s := &Server{
		mux:   http.NewServeMux(),
		opts:  opts,
		store: NewSessionStore(),
		wsCal: NewWSHub(),
	}

	// API
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/open", s.handleOpen)
	s.mux.HandleFunc("/api/close", s.handleClose)
	s.mux.HandleFunc("/api/download", s.handleDownload)
	s.mux.HandleFunc("/api/upload/calibration", s.handleUploadCalibration)

	s.mux.HandleFunc("/api/calibration", s.handleCalibration)
	s.mux.HandleFunc("/api/calibration/region", s.handleRegion)
	s.mux.HandleFunc("/api/calibration/fit", s.handleFit)

	s.mux.HandleFunc("/api/check", s.handleCheck)
	s.mux.HandleFunc("/api/plot", s.handlePlot)
	s.mux.HandleFunc("/api/watch/start", s.handleWatchStart)
	s.mux.HandleFunc("/api/watch/stop", s.handleWatchStop)

	// WS
	s.mux.HandleFunc("/ws/calibration", s.handleWSCal)

	// Static frontend
	if opts.WebDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(opts.WebDir)))
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

// Close stops every session's background work.
func (s *Server) Close() {
	s.store.mu.RLock()
	recs := make([]*SessionRecord, 0, len(s.store.m))
	for _, rec := range s.store.m {
		recs = append(recs, rec)
	}
	s.store.mu.RUnlock()
	for _, rec := range recs {
		rec.stopWatch()
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	b, err := io.ReadAll(io.LimitReader(r.Body, 2<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// writeError maps calibration errors to a status and a kind the client can
// switch on.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, kind := errorStatus(err)
	if status >= 500 {
		slog.Error("request failed", "err", err)
	}
	s.writeJSON(w, status, APIError{Error: err.Error(), Kind: kind})
}

func errorStatus(err error) (int, string) {
	var (
		corrupt    *models.ConfigCorruptError
		bound      *models.InvalidBoundError
		incomplete *models.IncompleteRegionsError
		order      *models.RegionOrderError
		outOfRange *models.RegionOutOfRangeError
		degenerate *models.DegenerateFitError
		column     *models.ColumnNotFoundError
	)
	switch {
	case errors.As(err, &corrupt):
		return http.StatusConflict, "ConfigCorruptError"
	case errors.As(err, &bound):
		return http.StatusBadRequest, "InvalidBoundError"
	case errors.As(err, &incomplete):
		return http.StatusUnprocessableEntity, "IncompleteRegionsError"
	case errors.As(err, &order):
		return http.StatusUnprocessableEntity, "RegionOrderError"
	case errors.As(err, &outOfRange):
		return http.StatusUnprocessableEntity, "RegionOutOfRangeError"
	case errors.As(err, &degenerate):
		return http.StatusUnprocessableEntity, "DegenerateFitError"
	case errors.As(err, &column):
		return http.StatusNotFound, "ColumnNotFoundError"
	}
	return http.StatusInternalServerError, ""
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	s.writeJSON(w, 200, HealthResponse{
		OK:          true,
		Timestamp:   time.Now(),
		ToolVersion: s.opts.Version,
		Sessions:    s.store.Len(),
	})
}

func (s *Server) resolveDir(dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return "", fmt.Errorf("missing dir")
	}
	if s.opts.Root == "" {
		return filepath.Clean(dir), nil
	}
	root := filepath.Clean(s.opts.Root)
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	rel, err := filepath.Rel(root, filepath.Clean(dir))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("dir %s is outside the data root", dir)
	}
	return filepath.Clean(dir), nil
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req OpenRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}
	dir, err := s.resolveDir(req.Dir)
	if err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}
	sess, err := modern.Open(r.Context(), dir, modern.OpenOptions{
		SampleF: req.SampleF,
		Version: s.opts.Version,
		Loader:  s.opts.Loader,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	rec := s.store.Put(sess)
	slog.Info("session opened", "id", rec.ID, "dir", dir)

	st := sess.Snapshot()
	s.writeJSON(w, 200, OpenResponse{
		SessionID:   rec.ID,
		Experiment:  st.Experiment,
		Rows:        sess.Table.Len(),
		Columns:     sess.Table.Columns(),
		ToolVersion: st.ToolVersion,
		Skewed:      st.Stale(sess.Version),
	})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req SessionRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}
	if !s.store.Delete(req.SessionID) {
		s.writeJSON(w, 404, APIError{Error: "session not found"})
		return
	}
	s.writeJSON(w, 200, map[string]bool{"ok": true})
}

// session looks up the record named by id and writes a 404 when absent.
func (s *Server) session(w http.ResponseWriter, id string) (*SessionRecord, bool) {
	rec, ok := s.store.Get(id)
	if !ok {
		s.writeJSON(w, 404, APIError{Error: "session not found (open a data directory first)"})
	}
	return rec, ok
}

func calibrationResponse(id string, sess *modern.Session) CalibrationResponse {
	st := sess.Snapshot()
	out := CalibrationResponse{
		SessionID:    id,
		Experiment:   st.Experiment,
		DateModified: st.DateModified,
		ToolVersion:  st.ToolVersion,
		Skewed:       st.Stale(sess.Version),
		Channels:     make([]ChannelDTO, 0, len(st.Channels)),
	}
	for _, name := range st.ChannelNames() {
		c := st.Channels[name]
		out.Channels = append(out.Channels, ChannelDTO{
			Parameter: name,
			State:     c.State(),
			Lower:     c.Lower,
			Upper:     c.Upper,
			Poly:      c.Poly,
		})
	}
	return out
}

func (s *Server) handleCalibration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	rec, ok := s.session(w, r.URL.Query().Get("session"))
	if !ok {
		return
	}
	s.writeJSON(w, 200, calibrationResponse(rec.ID, rec.Sess))
}

func (s *Server) handleRegion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req RegionRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}
	rec, ok := s.session(w, req.SessionID)
	if !ok {
		return
	}
	if req.Start == nil || req.End == nil {
		s.writeJSON(w, 400, APIError{Error: "start and end are required"})
		return
	}
	if err := rec.Sess.UpdateRegion(req.Parameter, req.Bound, *req.Start, *req.End); err != nil {
		s.broadcastError(rec.ID, err)
		s.writeError(w, err)
		return
	}

	resp := calibrationResponse(rec.ID, rec.Sess)
	s.wsCal.Broadcast(WSMessage{
		Type:      "regionUpdated",
		SessionID: rec.ID,
		Data: map[string]interface{}{
			"parameter": models.NormalizeParameter(req.Parameter),
			"bound":     strings.ToLower(strings.TrimSpace(req.Bound)),
			"start":     *req.Start,
			"end":       *req.End,
		},
	})
	s.writeJSON(w, 200, resp)
}

func (s *Server) handleFit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req FitRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}
	rec, ok := s.session(w, req.SessionID)
	if !ok {
		return
	}

	if strings.TrimSpace(req.Parameter) != "" {
		param := models.NormalizeParameter(req.Parameter)
		poly, err := rec.Sess.Fit(param)
		if err != nil {
			s.broadcastError(rec.ID, err)
			s.writeError(w, err)
			return
		}
		res := FitResult{Parameter: param, Poly: &poly}
		s.wsCal.Broadcast(WSMessage{Type: "fitDone", SessionID: rec.ID, Data: res})
		s.writeJSON(w, 200, FitResponse{Results: []FitResult{res}})
		return
	}

	results, err := rec.Sess.FitAll()
	if err != nil {
		s.broadcastError(rec.ID, err)
		s.writeError(w, err)
		return
	}
	st := rec.Sess.Snapshot()
	out := FitResponse{Results: make([]FitResult, 0, len(results))}
	for _, name := range st.ChannelNames() {
		ferr, ran := results[name]
		if !ran {
			continue
		}
		res := FitResult{Parameter: name}
		if ferr != nil {
			res.Error = ferr.Error()
			_, res.Kind = errorStatus(ferr)
		} else {
			res.Poly = st.Channels[name].Poly
		}
		out.Results = append(out.Results, res)
	}
	s.wsCal.Broadcast(WSMessage{Type: "fitDone", SessionID: rec.ID, Data: out})
	s.writeJSON(w, 200, out)
}

func (s *Server) broadcastError(id string, err error) {
	_, kind := errorStatus(err)
	s.wsCal.Broadcast(WSMessage{
		Type:      "error",
		SessionID: id,
		Data:      APIError{Error: err.Error(), Kind: kind},
	})
}

func (s *Server) handleUploadCalibration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	rec, ok := s.session(w, r.URL.Query().Get("session"))
	if !ok {
		return
	}
	f, _, err := fileFromMultipart(r, "file")
	if err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}
	defer f.Close()
	raw, err := io.ReadAll(io.LimitReader(f, 4<<20))
	if err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}
	st, err := modern.DecodeStore(raw)
	if err != nil {
		s.writeError(w, &models.ConfigCorruptError{Path: "upload", Err: err})
		return
	}
	if err := rec.Sess.Replace(st); err != nil {
		s.writeError(w, err)
		return
	}
	s.wsCal.Broadcast(WSMessage{Type: "storeReloaded", SessionID: rec.ID})
	s.writeJSON(w, 200, UploadResponse{SessionID: rec.ID, Channels: len(st.Channels)})
}

func fileFromMultipart(r *http.Request, field string) (multipart.File, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		return nil, nil, err
	}
	f, hdr, err := r.FormFile(field)
	if err != nil {
		return nil, nil, err
	}
	return f, hdr, nil
}

// handleDownload serves ?kind=cal (cal.yml, default), csv (the loaded table)
// or calibrated (the table with calibrated columns).
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	rec, ok := s.session(w, q.Get("session"))
	if !ok {
		return
	}
	sess := rec.Sess
	st := sess.Snapshot()

	var (
		buf   bytes.Buffer
		name  string
		ctype string
	)
	switch kind := q.Get("kind"); kind {
	case "", "cal":
		b, err := modern.EncodeStore(st)
		if err != nil {
			s.writeError(w, err)
			return
		}
		buf.Write(b)
		name = modern.CalFileName
		ctype = "application/yaml"
	case "csv", "calibrated":
		t := sess.Table
		if kind == "calibrated" {
			var err error
			if t, err = modern.ApplyPoly(sess.Table, st); err != nil {
				s.writeError(w, err)
				return
			}
		}
		if err := modern.ExportCSV(&buf, t); err != nil {
			s.writeError(w, err)
			return
		}
		name = st.Experiment + ".csv"
		if kind == "calibrated" {
			name = st.Experiment + "_calibrated.csv"
		}
		ctype = "text/csv"
	default:
		s.writeJSON(w, 400, APIError{Error: "unknown kind " + strconv.Quote(kind)})
		return
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(name)))
	w.WriteHeader(200)
	_, _ = w.Write(buf.Bytes())
}
