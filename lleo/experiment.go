package lleo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Experiment is the identity encoded in a data directory name, e.g.
// 20150311_W190PD3GT_34839_Skinny_Control.
type Experiment struct {
	Name     string    `yaml:"experiment"`
	Date     time.Time `yaml:"date"`
	TagModel string    `yaml:"tag_model"`
	TagID    string    `yaml:"tag_id"`
	Animal   string    `yaml:"animal"`
	Notes    string    `yaml:"notes,omitempty"`
}

func ParseExperiment(name string) (Experiment, error) {
	parts := strings.Split(name, "_")
	if len(parts) < 4 {
		return Experiment{}, fmt.Errorf("experiment name %q: want <date>_<tag model>_<tag id>_<animal>[_notes]", name)
	}
	date, err := time.Parse("20060102", parts[0])
	if err != nil {
		return Experiment{}, fmt.Errorf("experiment name %q: bad date: %w", name, err)
	}
	return Experiment{
		Name:     name,
		Date:     date,
		TagModel: strings.ToUpper(strings.ReplaceAll(parts[1], "-", "")),
		TagID:    parts[2],
		Animal:   parts[3],
		Notes:    strings.Join(parts[4:], "_"),
	}, nil
}

var tagChannels = map[string][]string{
	"W190PD3GT": {"Acceleration-X", "Acceleration-Y", "Acceleration-Z", "Depth", "Propeller", "Temperature"},
}

// TagChannels returns the channel names recorded by a tag model, in file order.
func TagChannels(model string) ([]string, error) {
	ch, ok := tagChannels[strings.ToUpper(strings.ReplaceAll(model, "-", ""))]
	if !ok {
		return nil, fmt.Errorf("tag model %q not supported", model)
	}
	return append([]string(nil), ch...), nil
}

// FindFile returns the first file in dir (sorted by name) whose name contains
// search and ends with ext (case-insensitive).
func FindFile(dir, search, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	ext = strings.ToLower(ext)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.Contains(name, search) && strings.HasSuffix(strings.ToLower(name), ext) {
			return filepath.Join(dir, name), nil
		}
	}
	return "", fmt.Errorf("no %s file containing %q in %s", ext, search, dir)
}

// ScanDataDirs lists the child directories of root in name order.
func ScanDataDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	dirs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			dirs = append(dirs, filepath.Join(root, e.Name()))
		}
	}
	if len(dirs) == 0 {
		return nil, fmt.Errorf("no data directories found in %s", root)
	}
	sort.Strings(dirs)
	return dirs, nil
}
