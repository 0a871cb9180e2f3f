package models

import (
	"sort"
	"strings"
	"time"
)

// DateLayout is the layout of Store.DateModified.
const DateLayout = "2006-01-02 15:04:05"

type Bound string

const (
	BoundLower Bound = "lower"
	BoundUpper Bound = "upper"
)

// Bounds lists the two reference placements in evaluation order.
var Bounds = []Bound{BoundLower, BoundUpper}

// ParseBound accepts "lower" or "upper" (case and surrounding space ignored).
func ParseBound(s string) (Bound, error) {
	switch b := Bound(strings.ToLower(strings.TrimSpace(s))); b {
	case BoundLower, BoundUpper:
		return b, nil
	}
	return "", &InvalidBoundError{Bound: s}
}

// Reference is the physical value in g that a bound represents.
func (b Bound) Reference() float64 {
	if b == BoundLower {
		return -1.0
	}
	return 1.0
}

// NormalizeParameter maps a channel name to its canonical form,
// e.g. "Acceleration-X" -> "acceleration_x".
func NormalizeParameter(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// Region holds the inclusive sample-index bounds of one reference placement.
type Region struct {
	Start *int64 `yaml:"start" json:"start"`
	End   *int64 `yaml:"end" json:"end"`
}

func (r *Region) Complete() bool {
	return r != nil && r.Start != nil && r.End != nil
}

// Poly is a first-degree polynomial, highest degree first: [slope, intercept].
type Poly [2]float64

func (p Poly) Slope() float64     { return p[0] }
func (p Poly) Intercept() float64 { return p[1] }

// Eval returns slope*count + intercept.
func (p Poly) Eval(count float64) float64 {
	return p[0]*count + p[1]
}

type ChannelState string

const (
	StateEmpty    ChannelState = "EMPTY"
	StateLowerSet ChannelState = "LOWER_SET"
	StateUpperSet ChannelState = "UPPER_SET"
	StateBothSet  ChannelState = "BOTH_SET"
	StateFitted   ChannelState = "FITTED"
)

// Channel is the calibration of one parameter. Poly is nil until a fit has
// been stored and is cleared whenever a region changes.
type Channel struct {
	Lower *Region `yaml:"lower,omitempty" json:"lower,omitempty"`
	Upper *Region `yaml:"upper,omitempty" json:"upper,omitempty"`
	Poly  *Poly   `yaml:"poly,omitempty,flow" json:"poly,omitempty"`
}

// Region returns the region for b, or nil when unset or b is unknown.
func (c *Channel) Region(b Bound) *Region {
	if c == nil {
		return nil
	}
	switch b {
	case BoundLower:
		return c.Lower
	case BoundUpper:
		return c.Upper
	}
	return nil
}

func (c *Channel) State() ChannelState {
	if c == nil {
		return StateEmpty
	}
	lower, upper := c.Lower.Complete(), c.Upper.Complete()
	switch {
	case lower && upper && c.Poly != nil:
		return StateFitted
	case lower && upper:
		return StateBothSet
	case lower:
		return StateLowerSet
	case upper:
		return StateUpperSet
	}
	return StateEmpty
}

// Store is the persisted calibration state of one experiment (cal.yml).
type Store struct {
	Experiment   string              `yaml:"experiment" json:"experiment"`
	DateModified string              `yaml:"date_modified" json:"date_modified"`
	ToolVersion  string              `yaml:"tool_version" json:"tool_version"`
	Channels     map[string]*Channel `yaml:"channels" json:"channels"`
}

// NewStore returns an empty store for experiment.
func NewStore(experiment, version string) *Store {
	s := &Store{
		Experiment:  experiment,
		ToolVersion: version,
		Channels:    make(map[string]*Channel),
	}
	s.Touch()
	return s
}

// Touch sets DateModified to the current time.
func (s *Store) Touch() {
	s.DateModified = time.Now().Format(DateLayout)
}

// Stale reports whether the store was last written by a different tool version.
func (s *Store) Stale(running string) bool {
	return s.ToolVersion != running
}

func (s *Store) Channel(parameter string) (*Channel, bool) {
	c, ok := s.Channels[NormalizeParameter(parameter)]
	return c, ok
}

func (s *Store) ChannelNames() []string {
	names := make([]string, 0, len(s.Channels))
	for k := range s.Channels {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// UpdateRegion overwrites the bounds of one region and clears the channel's
// poly. Channel and region entries are created on demand.
func (s *Store) UpdateRegion(parameter, bound string, start, end int64) error {
	b, err := ParseBound(bound)
	if err != nil {
		return err
	}
	param := NormalizeParameter(parameter)
	if s.Channels == nil {
		s.Channels = make(map[string]*Channel)
	}
	c, ok := s.Channels[param]
	if !ok {
		c = &Channel{}
		s.Channels[param] = c
	}
	r := &Region{Start: &start, End: &end}
	if b == BoundLower {
		c.Lower = r
	} else {
		c.Upper = r
	}
	c.Poly = nil
	s.Touch()
	return nil
}

// SetPoly stores a fit. Both regions of the channel must be complete.
func (s *Store) SetPoly(parameter string, poly Poly) error {
	param := NormalizeParameter(parameter)
	c, ok := s.Channels[param]
	if !ok {
		return &IncompleteRegionsError{Parameter: param}
	}
	for _, b := range Bounds {
		if !c.Region(b).Complete() {
			return &IncompleteRegionsError{Parameter: param, Bound: b}
		}
	}
	p := poly
	c.Poly = &p
	s.Touch()
	return nil
}

// Clone returns a deep copy of s.
func (s *Store) Clone() *Store {
	out := &Store{
		Experiment:   s.Experiment,
		DateModified: s.DateModified,
		ToolVersion:  s.ToolVersion,
		Channels:     make(map[string]*Channel, len(s.Channels)),
	}
	for k, c := range s.Channels {
		if c == nil {
			out.Channels[k] = nil
			continue
		}
		cc := &Channel{Lower: c.Lower.clone(), Upper: c.Upper.clone()}
		if c.Poly != nil {
			p := *c.Poly
			cc.Poly = &p
		}
		out.Channels[k] = cc
	}
	return out
}

func (r *Region) clone() *Region {
	if r == nil {
		return nil
	}
	out := &Region{}
	if r.Start != nil {
		v := *r.Start
		out.Start = &v
	}
	if r.End != nil {
		v := *r.End
		out.End = &v
	}
	return out
}
