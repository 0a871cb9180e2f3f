package modern

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/CK6170/Leocal-go/lleo"
	"github.com/CK6170/Leocal-go/models"
)

// DefaultSampleF keeps every 30th row of a data directory, which is plenty
// to place region bounds by eye.
const DefaultSampleF = 30

// Loader reads the measurement table of a data directory.
type Loader func(ctx context.Context, dir string, sampleF int) (*models.Table, error)

type OpenOptions struct {
	SampleF int
	Version string // recorded as tool_version; ToolVersion() when empty
	Loader  Loader // lleo.Load when nil
}

// Session binds one data directory's table to its calibration store.
// Mutations are written to disk before they become visible in Store, so a
// failed operation leaves both untouched.
type Session struct {
	Dir     string
	CalPath string
	Version string
	SampleF int
	Table   *models.Table
	Store   *models.Store

	mu sync.RWMutex
}

func Open(ctx context.Context, dir string, opts OpenOptions) (*Session, error) {
	if opts.SampleF <= 0 {
		opts.SampleF = DefaultSampleF
	}
	if opts.Version == "" {
		opts.Version = ToolVersion()
	}
	load := opts.Loader
	if load == nil {
		load = lleo.Load
	}
	dir = filepath.Clean(dir)

	calPath := CalPath(dir)
	store, err := LoadOrCreate(calPath, opts.Version)
	if err != nil {
		return nil, err
	}
	table, err := load(ctx, dir, opts.SampleF)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", dir, err)
	}
	slog.Debug("session opened", "dir", dir, "rows", table.Len(), "channels", len(store.Channels))
	return &Session{
		Dir:     dir,
		CalPath: calPath,
		Version: opts.Version,
		SampleF: opts.SampleF,
		Table:   table,
		Store:   store,
	}, nil
}

// Snapshot returns a copy of the current store.
func (s *Session) Snapshot() *models.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Store.Clone()
}

// Skewed reports whether cal.yml was last written by another tool version.
func (s *Session) Skewed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Store.Stale(s.Version)
}

func (s *Session) commit(mutate func(*models.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.Store.Clone()
	if err := mutate(next); err != nil {
		return err
	}
	next.ToolVersion = s.Version
	if err := Save(s.CalPath, next); err != nil {
		return fmt.Errorf("save calibration: %w", err)
	}
	s.Store = next
	return nil
}

// UpdateRegion stores the bounds of one region and persists the store.
// Bounds are checked against the table only when fitting.
func (s *Session) UpdateRegion(parameter, bound string, start, end int64) error {
	return s.commit(func(st *models.Store) error {
		return st.UpdateRegion(parameter, bound, start, end)
	})
}

// Fit computes and persists the poly of one channel.
func (s *Session) Fit(parameter string) (models.Poly, error) {
	var poly models.Poly
	err := s.commit(func(st *models.Store) error {
		p, err := ComputeChannelFit(s.Table, st, parameter)
		if err != nil {
			return err
		}
		poly = p
		return st.SetPoly(parameter, p)
	})
	return poly, err
}

// FitAll fits every channel with both regions set and persists the store
// once. Per-channel failures are returned in the map and do not stop the
// other channels; the error is non-nil only when saving fails.
func (s *Session) FitAll() (map[string]error, error) {
	results := make(map[string]error)
	err := s.commit(func(st *models.Store) error {
		for _, name := range st.ChannelNames() {
			switch st.Channels[name].State() {
			case models.StateBothSet, models.StateFitted:
			default:
				continue
			}
			p, err := ComputeChannelFit(s.Table, st, name)
			if err == nil {
				err = st.SetPoly(name, p)
			}
			results[name] = err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Replace persists st as the session's whole calibration, e.g. an uploaded
// cal.yml.
func (s *Session) Replace(st *models.Store) error {
	return s.commit(func(next *models.Store) error {
		*next = *st.Clone()
		if next.Channels == nil {
			next.Channels = make(map[string]*models.Channel)
		}
		next.Touch()
		return nil
	})
}

// Reload re-reads cal.yml from disk. The lock is held across the read so a
// concurrent commit cannot be replaced by an older file.
func (s *Session) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := LoadOrCreate(s.CalPath, s.Version)
	if err != nil {
		return err
	}
	s.Store = st
	return nil
}
