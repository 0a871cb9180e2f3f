package modern

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/CK6170/Leocal-go/internal/fsutil"
	"github.com/CK6170/Leocal-go/lleo"
	"github.com/CK6170/Leocal-go/models"
	"gopkg.in/yaml.v3"
)

const CalFileName = "cal.yml"

// CalPath returns the calibration file path of a data directory.
func CalPath(dir string) string {
	return filepath.Join(dir, CalFileName)
}

// MetaPath returns the header cache path of a data directory.
func MetaPath(dir string) string {
	return filepath.Join(dir, lleo.MetaFileName)
}

// LoadOrCreate reads the calibration store at path. A missing file yields a
// fresh store named after the parent directory. A file that exists but does
// not decode is reported as *models.ConfigCorruptError and left untouched.
//
// The recorded tool version is kept as is; a mismatch with version is logged
// and can be checked with Store.Stale.
func LoadOrCreate(path, version string) (*models.Store, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		experiment := filepath.Base(filepath.Dir(filepath.Clean(path)))
		return models.NewStore(experiment, version), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read calibration: %w", err)
	}

	s, err := DecodeStore(b)
	if err != nil {
		return nil, &models.ConfigCorruptError{Path: path, Err: err}
	}
	if s.Stale(version) {
		slog.Warn("calibration written by a different tool version; fits may need recomputing",
			"path", path, "recorded", s.ToolVersion, "running", version)
	}
	s.Touch()
	return s, nil
}

// DecodeStore parses a calibration document. The top level must be a mapping
// and a stored poly requires both regions to be complete.
func DecodeStore(b []byte) (*models.Store, error) {
	var root yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty document")
		}
		return nil, err
	}
	if len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return nil, errors.New("top level is not a mapping")
	}
	var s models.Store
	if err := root.Decode(&s); err != nil {
		return nil, err
	}
	if s.Channels == nil {
		s.Channels = make(map[string]*models.Channel)
	}
	for name, c := range s.Channels {
		if c == nil {
			return nil, fmt.Errorf("channel %s is empty", name)
		}
		if c.Poly != nil && (!c.Lower.Complete() || !c.Upper.Complete()) {
			return nil, fmt.Errorf("channel %s has a poly without both regions", name)
		}
	}
	return &s, nil
}

// EncodeStore renders s as a cal.yml document.
func EncodeStore(s *models.Store) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("encode calibration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode calibration: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the whole store to path through a temp file and rename.
func Save(path string, s *models.Store) error {
	b, err := EncodeStore(s)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, b, 0o644)
}
