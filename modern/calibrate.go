package modern

import (
	"errors"
	"fmt"
	"math"

	"github.com/CK6170/Leocal-go/matrix"
	"github.com/CK6170/Leocal-go/models"
	"gonum.org/v1/gonum/stat"
)

// ValidateChannelReady checks that parameter has complete, ordered regions
// for bounds (lower and upper when none are given). Presence is checked for
// every bound before ordering, in the order given.
func ValidateChannelReady(s *models.Store, parameter string, bounds ...models.Bound) error {
	if len(bounds) == 0 {
		bounds = models.Bounds
	}
	for _, b := range bounds {
		if b != models.BoundLower && b != models.BoundUpper {
			return &models.InvalidBoundError{Bound: string(b)}
		}
	}
	param := models.NormalizeParameter(parameter)
	c, ok := s.Channels[param]
	if !ok || c == nil {
		return &models.IncompleteRegionsError{Parameter: param}
	}
	for _, b := range bounds {
		if !c.Region(b).Complete() {
			return &models.IncompleteRegionsError{Parameter: param, Bound: b}
		}
	}
	for _, b := range bounds {
		r := c.Region(b)
		if *r.Start > *r.End {
			return &models.RegionOrderError{Parameter: param, Bound: b, Start: *r.Start, End: *r.End}
		}
	}
	return nil
}

// FitLinear fits value = slope*count + intercept to lower samples at -1 and
// upper samples at +1. Both sides are truncated to the shorter length so each
// reference carries the same weight.
func FitLinear(lower, upper []float64) (models.Poly, error) {
	n := min(len(lower), len(upper))
	if n == 0 {
		return models.Poly{}, &models.DegenerateFitError{Reason: "no samples"}
	}

	x := make([]float64, 0, 2*n)
	x = append(x, lower[:n]...)
	x = append(x, upper[:n]...)
	mean, std := stat.MeanStdDev(x, nil)
	if std == 0 || math.IsNaN(std) {
		return models.Poly{}, &models.DegenerateFitError{Reason: "raw counts have zero variance"}
	}

	// The count column is centered and scaled so large offsets do not push
	// the second singular value under the SVD cutoff.
	design := matrix.NewMatrix(2*n, 2)
	y := matrix.NewVector(2 * n)
	for i, v := range x {
		design.Values[i][0] = (v - mean) / std
		design.Values[i][1] = 1
		y.Values[i] = models.BoundUpper.Reference()
		if i < n {
			y.Values[i] = models.BoundLower.Reference()
		}
	}
	pinv := design.InverseSVD()
	if pinv == nil {
		return models.Poly{}, fmt.Errorf("SVD failed; cannot compute pseudoinverse")
	}
	coef := pinv.MulVector(y)
	if coef == nil {
		return models.Poly{}, fmt.Errorf("pseudoinverse multiplication failed")
	}
	slope := coef.Values[0] / std
	return models.Poly{slope, coef.Values[1] - slope*mean}, nil
}

// ComputeChannelFit validates the channel's regions, extracts both sample
// series from t and fits them. The store is not modified.
func ComputeChannelFit(t Table, s *models.Store, parameter string) (models.Poly, error) {
	param := models.NormalizeParameter(parameter)
	if err := ValidateChannelReady(s, param); err != nil {
		return models.Poly{}, err
	}
	c := s.Channels[param]
	lower, err := ExtractRegionSamples(t, param, models.BoundLower, c.Lower)
	if err != nil {
		return models.Poly{}, err
	}
	upper, err := ExtractRegionSamples(t, param, models.BoundUpper, c.Upper)
	if err != nil {
		return models.Poly{}, err
	}
	poly, err := FitLinear(lower, upper)
	if err != nil {
		var de *models.DegenerateFitError
		if errors.As(err, &de) {
			de.Parameter = param
		}
		return models.Poly{}, err
	}
	return poly, nil
}
