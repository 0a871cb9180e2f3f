package modern

import (
	"bytes"
	"fmt"
	"image/color"
	"math"

	"github.com/CK6170/Leocal-go/models"
	"golang.org/x/image/colornames"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var regionColors = map[models.Bound]color.Color{
	models.BoundLower: colornames.Darkcyan,
	models.BoundUpper: colornames.Darkmagenta,
}

// RenderChannelPlot draws parameter over the table index with its reference
// regions highlighted and returns the chart as PNG. width and height are in
// points.
func RenderChannelPlot(t Table, s *models.Store, parameter string, width, height int) ([]byte, error) {
	param := models.NormalizeParameter(parameter)
	col, ok := t.Column(param)
	if !ok {
		return nil, &models.ColumnNotFoundError{Parameter: param}
	}
	index := t.Index()

	p := plot.New()
	p.Title.Text = param
	p.X.Label.Text = "sample index"
	p.Y.Label.Text = "raw count"
	p.BackgroundColor = colornames.Snow
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.Padding = vg.Points(5)
	p.Add(plotter.NewGrid())

	series := seriesXYs(index, col, 0, len(index))
	if len(series) > 0 {
		line, err := plotter.NewLine(series)
		if err != nil {
			return nil, fmt.Errorf("plot %s: %w", param, err)
		}
		line.Color = colornames.Dimgray
		p.Add(line)
		p.Legend.Add("raw", line)
	}

	var c *models.Channel
	if s != nil {
		c = s.Channels[param]
	}
	for _, b := range models.Bounds {
		r := c.Region(b)
		if !r.Complete() {
			continue
		}
		lo, hi := indexRange(index, *r.Start, *r.End)
		pts := seriesXYs(index, col, lo, hi)
		if len(pts) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, fmt.Errorf("plot %s/%s: %w", param, b, err)
		}
		sc.Shape = draw.CrossGlyph{}
		sc.Color = regionColors[b]
		p.Add(sc)
		p.Legend.Add(string(b), sc)
	}
	if c != nil && c.Poly != nil {
		p.Title.Text = fmt.Sprintf("%s  g = %.6g*count %+.6g", param, c.Poly.Slope(), c.Poly.Intercept())
	}

	wt, err := p.WriterTo(vg.Points(float64(width)), vg.Points(float64(height)), "png")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func seriesXYs(index []int64, col []float64, lo, hi int) plotter.XYs {
	xys := make(plotter.XYs, 0, max(hi-lo, 0))
	for i := lo; i < hi; i++ {
		if math.IsNaN(col[i]) || math.IsInf(col[i], 0) {
			continue
		}
		xys = append(xys, plotter.XY{X: float64(index[i]), Y: col[i]})
	}
	return xys
}
