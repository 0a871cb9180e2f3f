package models

import (
	"errors"
	"reflect"
	"testing"
)

func TestNormalizeParameter(t *testing.T) {
	cases := map[string]string{
		"Acceleration-X":    "acceleration_x",
		"  acceleration y ": "acceleration_y",
		"ACCELERATION_Z":    "acceleration_z",
		"Depth":             "depth",
	}
	for in, want := range cases {
		if got := NormalizeParameter(in); got != want {
			t.Errorf("NormalizeParameter(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseBound(t *testing.T) {
	for _, s := range []string{"lower", "Upper", " lower "} {
		if _, err := ParseBound(s); err != nil {
			t.Errorf("ParseBound(%q): %v", s, err)
		}
	}
	_, err := ParseBound("middle")
	var ibe *InvalidBoundError
	if !errors.As(err, &ibe) {
		t.Fatalf("ParseBound(middle) error = %v, want InvalidBoundError", err)
	}
	if BoundLower.Reference() != -1 || BoundUpper.Reference() != 1 {
		t.Fatalf("unexpected references")
	}
}

func TestUpdateRegionThenChannel(t *testing.T) {
	s := NewStore("exp1", "v1")
	if err := s.UpdateRegion("Acceleration-X", "lower", 100, 200); err != nil {
		t.Fatalf("UpdateRegion: %v", err)
	}
	if err := s.UpdateRegion("acceleration_x", "upper", 300, 400); err != nil {
		t.Fatalf("UpdateRegion: %v", err)
	}
	if err := s.SetPoly("acceleration_x", Poly{0.02, -2}); err != nil {
		t.Fatalf("SetPoly: %v", err)
	}

	if err := s.UpdateRegion("acceleration x", "lower", 110, 190); err != nil {
		t.Fatalf("UpdateRegion: %v", err)
	}
	c, ok := s.Channel("ACCELERATION-X")
	if !ok {
		t.Fatalf("channel not found")
	}
	if *c.Lower.Start != 110 || *c.Lower.End != 190 {
		t.Fatalf("lower = %d..%d, want 110..190", *c.Lower.Start, *c.Lower.End)
	}
	if c.Poly != nil {
		t.Fatalf("poly should be cleared after a bounds update")
	}
	if c.State() != StateBothSet {
		t.Fatalf("state = %s, want %s", c.State(), StateBothSet)
	}
}

func TestUpdateRegionInvalidBoundLeavesStore(t *testing.T) {
	s := NewStore("exp1", "v1")
	before := s.Clone()
	err := s.UpdateRegion("acceleration_x", "sideways", 1, 2)
	var ibe *InvalidBoundError
	if !errors.As(err, &ibe) {
		t.Fatalf("error = %v, want InvalidBoundError", err)
	}
	if !reflect.DeepEqual(before, s) {
		t.Fatalf("store modified by failed update")
	}
}

func TestUpdateRegionIdempotent(t *testing.T) {
	a := NewStore("exp1", "v1")
	b := NewStore("exp1", "v1")
	for i := 0; i < 2; i++ {
		if err := a.UpdateRegion("acceleration_y", "upper", 5, 9); err != nil {
			t.Fatal(err)
		}
	}
	if err := b.UpdateRegion("acceleration_y", "upper", 5, 9); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a.Channels, b.Channels) {
		t.Fatalf("channels differ after repeated update")
	}
}

func TestSetPolyIncomplete(t *testing.T) {
	s := NewStore("exp1", "v1")
	var ire *IncompleteRegionsError

	if err := s.SetPoly("acceleration_x", Poly{1, 0}); !errors.As(err, &ire) || ire.Bound != "" {
		t.Fatalf("missing channel: error = %v", err)
	}
	_ = s.UpdateRegion("acceleration_x", "lower", 0, 10)
	if err := s.SetPoly("acceleration_x", Poly{1, 0}); !errors.As(err, &ire) || ire.Bound != BoundUpper {
		t.Fatalf("missing upper: error = %v", err)
	}
	c, _ := s.Channel("acceleration_x")
	if c.Poly != nil {
		t.Fatalf("poly set despite error")
	}
}

func TestChannelStates(t *testing.T) {
	s := NewStore("exp1", "v1")
	var c *Channel
	if c.State() != StateEmpty {
		t.Fatalf("nil channel state = %s", c.State())
	}
	_ = s.UpdateRegion("acceleration_z", "upper", 0, 1)
	c, _ = s.Channel("acceleration_z")
	if c.State() != StateUpperSet {
		t.Fatalf("state = %s", c.State())
	}
	_ = s.UpdateRegion("acceleration_z", "lower", 2, 3)
	_ = s.SetPoly("acceleration_z", Poly{1, 1})
	if c.State() != StateFitted {
		t.Fatalf("state = %s", c.State())
	}
	_ = s.UpdateRegion("acceleration_z", "upper", 0, 1)
	if c.State() != StateBothSet {
		t.Fatalf("state after re-update = %s", c.State())
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := NewStore("exp1", "v1")
	_ = s.UpdateRegion("acceleration_x", "lower", 1, 2)
	_ = s.UpdateRegion("acceleration_x", "upper", 3, 4)
	_ = s.SetPoly("acceleration_x", Poly{2, 3})

	c := s.Clone()
	*c.Channels["acceleration_x"].Lower.Start = 99
	c.Channels["acceleration_x"].Poly[0] = 42

	orig := s.Channels["acceleration_x"]
	if *orig.Lower.Start != 1 || orig.Poly[0] != 2 {
		t.Fatalf("clone shares memory with original")
	}
}

func TestChannelRegionUnknownBound(t *testing.T) {
	s := NewStore("exp1", "v1")
	_ = s.UpdateRegion("depth", "upper", 1, 2)
	c, _ := s.Channel("depth")
	if c.Region(Bound("foo")) != nil {
		t.Fatalf("unknown bound returned a region")
	}
	if !c.Region(BoundUpper).Complete() {
		t.Fatalf("upper region missing")
	}
}
