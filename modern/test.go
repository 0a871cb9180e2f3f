package modern

import (
	"fmt"
	"math"

	"github.com/CK6170/Leocal-go/models"
)

type RegionCheck struct {
	Bound      models.Bound `json:"bound"`
	Start      int64        `json:"start"`
	End        int64        `json:"end"`
	Expected   float64      `json:"expected"`
	Raw        SampleStats  `json:"raw"`
	Calibrated *SampleStats `json:"calibrated,omitempty"`
}

// ChannelCheck shows how well a channel's stored fit maps its reference
// regions onto -1 and +1.
type ChannelCheck struct {
	Parameter   string              `json:"parameter"`
	State       models.ChannelState `json:"state"`
	Poly        *models.Poly        `json:"poly,omitempty"`
	Regions     []RegionCheck       `json:"regions"`
	ResidualRMS float64             `json:"residual_rms,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// ComputeCheckSnapshot evaluates every channel of s against t. Problems with
// a single channel are reported in its Error field.
func ComputeCheckSnapshot(t Table, s *models.Store) ([]ChannelCheck, error) {
	if s == nil {
		return nil, fmt.Errorf("calibration store nil")
	}
	out := make([]ChannelCheck, 0, len(s.Channels))
	for _, name := range s.ChannelNames() {
		out = append(out, checkChannel(t, name, s.Channels[name]))
	}
	return out, nil
}

func checkChannel(t Table, name string, c *models.Channel) ChannelCheck {
	cc := ChannelCheck{Parameter: name, State: c.State(), Poly: c.Poly}
	var sq float64
	var n int
	for _, b := range models.Bounds {
		r := c.Region(b)
		if !r.Complete() {
			continue
		}
		rc := RegionCheck{Bound: b, Start: *r.Start, End: *r.End, Expected: b.Reference()}
		samples, err := ExtractRegionSamples(t, name, b, r)
		if err != nil {
			if cc.Error == "" {
				cc.Error = err.Error()
			}
			cc.Regions = append(cc.Regions, rc)
			continue
		}
		rc.Raw = RegionStats(samples)
		if c.Poly != nil {
			g := make([]float64, len(samples))
			for i, v := range samples {
				g[i] = c.Poly.Eval(v)
				d := g[i] - rc.Expected
				sq += d * d
			}
			n += len(samples)
			st := RegionStats(g)
			rc.Calibrated = &st
		}
		cc.Regions = append(cc.Regions, rc)
	}
	if n > 0 {
		cc.ResidualRMS = math.Sqrt(sq / float64(n))
	}
	return cc
}
