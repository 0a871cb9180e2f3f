package lleo

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/CK6170/Leocal-go/models"
	"golang.org/x/sync/errgroup"
)

// Channel is one decoded channel file.
type Channel struct {
	Name     string
	Start    time.Time
	Interval time.Duration
	Values   []float64
}

// Time returns the timestamp of sample i.
func (c *Channel) Time(i int) time.Time {
	return c.Start.Add(time.Duration(i) * c.Interval)
}

// ReadChannel decodes the channel file at path. Propeller channels sampled
// faster than 1 Hz are summed into 1 s bins.
func ReadChannel(path string) (*Channel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h, values, err := ReadChannelFile(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return newChannel(h, values)
}

func newChannel(h *Header, values []float64) (*Channel, error) {
	start, err := h.Start()
	if err != nil {
		return nil, err
	}
	interval, err := h.Interval()
	if err != nil {
		return nil, err
	}
	name := models.NormalizeParameter(h.Channel)
	if name == "propeller" && interval < 1 {
		fs := int(math.Round(1 / interval))
		slog.Debug("summing propeller samples", "per_second", fs)
		values = sumBlocks(values, fs)
		interval = 1
	}
	return &Channel{
		Name:     name,
		Start:    start,
		Interval: time.Duration(interval * float64(time.Second)),
		Values:   values,
	}, nil
}

// Load reads all channel files of a data directory into a table indexed by
// sample number on the first channel's timeline, keeping every sampleF-th
// row. Samples of other channels are joined on timestamp; rows without a
// matching sample are NaN.
func Load(ctx context.Context, dir string, sampleF int) (*models.Table, error) {
	meta, err := ReadMeta(ctx, dir)
	if err != nil {
		return nil, err
	}

	chans := make([]*Channel, len(meta.Channels))
	g, ctx := errgroup.WithContext(ctx)
	for i, key := range meta.Channels {
		i, key := i, key
		cm := meta.Parameters[key]
		g.Go(func() error {
			if cm == nil {
				return fmt.Errorf("meta.yml: no entry for channel %s", key)
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			c, err := ReadChannel(filepath.Join(dir, cm.File))
			if err != nil {
				return err
			}
			chans[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	t, err := Merge(chans)
	if err != nil {
		return nil, err
	}
	slog.Debug("loaded data directory", "dir", dir, "rows", t.Len(), "sample_f", sampleF)
	return t.Decimate(sampleF), nil
}

// Merge left-joins chans onto the timeline of chans[0].
func Merge(chans []*Channel) (*models.Table, error) {
	if len(chans) == 0 {
		return nil, fmt.Errorf("no channels to merge")
	}
	base := chans[0]
	n := len(base.Values)
	index := make([]int64, n)
	times := make([]time.Time, n)
	for i := range index {
		index[i] = int64(i)
		times[i] = base.Time(i)
	}

	cols := make(map[string][]float64, len(chans))
	order := make([]string, 0, len(chans))
	for _, c := range chans {
		order = append(order, c.Name)
		if c == base {
			cols[c.Name] = c.Values
			continue
		}
		byTime := make(map[int64]float64, len(c.Values))
		for i, v := range c.Values {
			byTime[c.Time(i).UnixNano()] = v
		}
		col := make([]float64, n)
		for i, ts := range times {
			if v, ok := byTime[ts.UnixNano()]; ok {
				col[i] = v
			} else {
				col[i] = math.NaN()
			}
		}
		cols[c.Name] = col
	}
	return models.NewTable(index, times, cols, order)
}
