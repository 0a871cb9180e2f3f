package lleo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/CK6170/Leocal-go/internal/fsutil"
	"github.com/CK6170/Leocal-go/models"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

const MetaFileName = "meta.yml"

// ChannelMeta is the header of one channel file as cached in meta.yml.
type ChannelMeta struct {
	File   string            `yaml:"file"`
	Name   string            `yaml:"name"`
	Header map[string]string `yaml:"header"`
}

// Meta caches header information of all channel files of a data directory.
type Meta struct {
	Experiment   `yaml:",inline"`
	DateModified string                  `yaml:"date_modified"`
	Channels     []string                `yaml:"channels"`
	Parameters   map[string]*ChannelMeta `yaml:"parameters"`
}

// ReadMeta loads dir/meta.yml, or builds it from the channel file headers and
// writes it.
func ReadMeta(ctx context.Context, dir string) (*Meta, error) {
	path := filepath.Join(dir, MetaFileName)
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		var m Meta
		if err := yaml.Unmarshal(b, &m); err != nil {
			return nil, &models.ConfigCorruptError{Path: path, Err: err}
		}
		if len(m.Channels) == 0 || m.Parameters == nil {
			return nil, &models.ConfigCorruptError{Path: path, Err: errors.New("no channels recorded")}
		}
		return &m, nil
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}

	m, err := buildMeta(ctx, dir)
	if err != nil {
		return nil, err
	}
	out, err := yaml.Marshal(m)
	if err != nil {
		return nil, err
	}
	if err := fsutil.WriteFileAtomic(path, out, 0o644); err != nil {
		return nil, err
	}
	return m, nil
}

func buildMeta(ctx context.Context, dir string) (*Meta, error) {
	exp, err := ParseExperiment(filepath.Base(filepath.Clean(dir)))
	if err != nil {
		return nil, err
	}
	names, err := TagChannels(exp.TagModel)
	if err != nil {
		return nil, err
	}

	metas := make([]*ChannelMeta, len(names))
	g, _ := errgroup.WithContext(ctx)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			path, err := FindFile(dir, name, ".TXT")
			if err != nil {
				return err
			}
			h, err := readHeader(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			metas[i] = &ChannelMeta{File: filepath.Base(path), Name: name, Header: h.Fields}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m := &Meta{
		Experiment:   exp,
		DateModified: time.Now().Format(models.DateLayout),
		Parameters:   make(map[string]*ChannelMeta, len(names)),
	}
	for _, cm := range metas {
		key := models.NormalizeParameter(cm.Name)
		m.Channels = append(m.Channels, key)
		m.Parameters[key] = cm
	}
	return m, nil
}

func readHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h, _, err := ReadChannelFile(f)
	return h, err
}
