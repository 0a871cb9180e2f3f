package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/CK6170/Leocal-go/modern"
)

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	rec, ok := s.session(w, r.URL.Query().Get("session"))
	if !ok {
		return
	}
	checks, err := modern.ComputeCheckSnapshot(rec.Sess.Table, rec.Sess.Snapshot())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, 200, CheckResponse{SessionID: rec.ID, Channels: checks})
}

func (s *Server) handlePlot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	rec, ok := s.session(w, q.Get("session"))
	if !ok {
		return
	}
	width, height := intParam(q.Get("w"), 960), intParam(q.Get("h"), 360)
	png, err := modern.RenderChannelPlot(rec.Sess.Table, rec.Sess.Snapshot(), q.Get("parameter"), width, height)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(200)
	_, _ = w.Write(png)
}

func intParam(v string, def int) int {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > 8192 {
		return def
	}
	return n
}

// handleWatchStart polls the session's cal.yml and reloads it when another
// process (the CLI, an editor) rewrites it. Clients get "storeReloaded".
func (s *Server) handleWatchStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req SessionRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}
	rec, ok := s.session(w, req.SessionID)
	if !ok {
		return
	}

	rec.mu.Lock()
	if rec.watchCancel != nil {
		rec.watchCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	rec.watchCancel = cancel
	rec.mu.Unlock()

	go s.watchStore(ctx, rec)
	s.writeJSON(w, 200, map[string]bool{"ok": true})
}

func (s *Server) handleWatchStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req SessionRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}
	rec, ok := s.session(w, req.SessionID)
	if !ok {
		return
	}
	rec.stopWatch()
	s.writeJSON(w, 200, map[string]bool{"ok": true})
}

func (s *Server) watchStore(ctx context.Context, rec *SessionRecord) {
	path := rec.Sess.CalPath
	last := modTime(path)

	t := time.NewTicker(s.opts.WatchInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.wsCal.Broadcast(WSMessage{Type: "stopped", SessionID: rec.ID})
			return
		case <-t.C:
			mt := modTime(path)
			if mt.Equal(last) {
				continue
			}
			last = mt
			if err := rec.Sess.Reload(); err != nil {
				slog.Warn("reload calibration", "path", path, "err", err)
				s.broadcastError(rec.ID, err)
				continue
			}
			s.wsCal.Broadcast(WSMessage{
				Type:      "storeReloaded",
				SessionID: rec.ID,
				Data:      calibrationResponse(rec.ID, rec.Sess),
			})
		}
	}
}

func modTime(path string) time.Time {
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return fi.ModTime()
}
