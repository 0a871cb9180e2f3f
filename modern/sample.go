package modern

import (
	"math"
	"sort"

	"github.com/CK6170/Leocal-go/models"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Table is the read-only view of a measurement table the fit engine needs.
// *models.Table satisfies it.
type Table interface {
	Index() []int64
	Column(name string) ([]float64, bool)
}

// ExtractRegionSamples returns the values of parameter whose index lies in
// [r.Start, r.End]. NaN rows (no sample at that timestamp) are skipped.
func ExtractRegionSamples(t Table, parameter string, bound models.Bound, r *models.Region) ([]float64, error) {
	param := models.NormalizeParameter(parameter)
	col, ok := t.Column(param)
	if !ok {
		return nil, &models.ColumnNotFoundError{Parameter: param}
	}
	if !r.Complete() {
		return nil, &models.IncompleteRegionsError{Parameter: param, Bound: bound}
	}
	start, end := *r.Start, *r.End
	lo, hi := indexRange(t.Index(), start, end)

	out := make([]float64, 0, max(hi-lo, 0))
	for i := lo; i < hi; i++ {
		if math.IsNaN(col[i]) {
			continue
		}
		out = append(out, col[i])
	}
	if len(out) == 0 {
		return nil, &models.RegionOutOfRangeError{Parameter: param, Bound: bound, Start: start, End: end}
	}
	return out, nil
}

// indexRange returns the row span [lo, hi) of a monotonic index whose values
// fall within [start, end].
func indexRange(index []int64, start, end int64) (int, int) {
	lo := sort.Search(len(index), func(i int) bool { return index[i] >= start })
	hi := sort.Search(len(index), func(i int) bool { return index[i] > end })
	return lo, hi
}

type SampleStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// RegionStats summarizes a region's samples.
func RegionStats(samples []float64) SampleStats {
	if len(samples) == 0 {
		return SampleStats{}
	}
	st := SampleStats{
		Count: len(samples),
		Min:   floats.Min(samples),
		Max:   floats.Max(samples),
	}
	if len(samples) == 1 {
		st.Mean = samples[0]
		return st
	}
	st.Mean, st.StdDev = stat.MeanStdDev(samples, nil)
	return st
}
