package models

import "fmt"

// ConfigCorruptError reports a calibration file that exists but cannot be
// decoded. The file is never rewritten in that case.
type ConfigCorruptError struct {
	Path string
	Err  error
}

func (e *ConfigCorruptError) Error() string {
	return fmt.Sprintf("calibration file %s is corrupt: %v", e.Path, e.Err)
}

func (e *ConfigCorruptError) Unwrap() error { return e.Err }

type InvalidBoundError struct {
	Bound string
}

func (e *InvalidBoundError) Error() string {
	return fmt.Sprintf("invalid bound %q (want %q or %q)", e.Bound, BoundLower, BoundUpper)
}

// IncompleteRegionsError reports a missing channel (Bound empty) or a region
// that is absent or lacks a start/end.
type IncompleteRegionsError struct {
	Parameter string
	Bound     Bound
}

func (e *IncompleteRegionsError) Error() string {
	if e.Bound == "" {
		return fmt.Sprintf("%s: no calibration regions set", e.Parameter)
	}
	return fmt.Sprintf("%s/%s: region start/end not set", e.Parameter, e.Bound)
}

type RegionOrderError struct {
	Parameter  string
	Bound      Bound
	Start, End int64
}

func (e *RegionOrderError) Error() string {
	return fmt.Sprintf("%s/%s: start index (%d) comes after end index (%d)", e.Parameter, e.Bound, e.Start, e.End)
}

// RegionOutOfRangeError reports bounds that select no samples of the table.
type RegionOutOfRangeError struct {
	Parameter  string
	Bound      Bound
	Start, End int64
}

func (e *RegionOutOfRangeError) Error() string {
	return fmt.Sprintf("%s/%s: no samples between index %d and %d", e.Parameter, e.Bound, e.Start, e.End)
}

type DegenerateFitError struct {
	Parameter string
	Reason    string
}

func (e *DegenerateFitError) Error() string {
	if e.Parameter == "" {
		return "degenerate fit: " + e.Reason
	}
	return fmt.Sprintf("%s: degenerate fit: %s", e.Parameter, e.Reason)
}

type ColumnNotFoundError struct {
	Parameter string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("parameter %q not found in data", e.Parameter)
}
