package modern

import (
	"fmt"

	"github.com/CK6170/Leocal-go/models"
)

// CalibratedColumn names the column ApplyPoly writes for parameter.
func CalibratedColumn(parameter string) string {
	return models.NormalizeParameter(parameter) + "_g"
}

// ApplyPoly returns a copy of t with a calibrated column (see
// CalibratedColumn) for each of parameters. With no parameters every fitted
// channel of s is applied. Asking for a channel without a stored fit is an
// error.
func ApplyPoly(t *models.Table, s *models.Store, parameters ...string) (*models.Table, error) {
	if len(parameters) == 0 {
		for _, name := range s.ChannelNames() {
			if s.Channels[name].Poly != nil {
				parameters = append(parameters, name)
			}
		}
	}

	out := t
	for _, p := range parameters {
		param := models.NormalizeParameter(p)
		c, ok := s.Channels[param]
		if !ok || c == nil {
			return nil, &models.IncompleteRegionsError{Parameter: param}
		}
		if c.Poly == nil {
			return nil, fmt.Errorf("%s: no fit stored (state %s)", param, c.State())
		}
		raw, ok := t.Column(param)
		if !ok {
			return nil, &models.ColumnNotFoundError{Parameter: param}
		}
		g := make([]float64, len(raw))
		for i, v := range raw {
			g[i] = c.Poly.Eval(v)
		}
		var err error
		if out, err = out.WithColumn(CalibratedColumn(param), g); err != nil {
			return nil, err
		}
	}
	return out, nil
}
