package server

import (
	"time"

	"github.com/CK6170/Leocal-go/models"
	"github.com/CK6170/Leocal-go/modern"
)

type HealthResponse struct {
	OK          bool      `json:"ok"`
	Timestamp   time.Time `json:"timestamp"`
	ToolVersion string    `json:"toolVersion"`
	Sessions    int       `json:"sessions"`
}

// APIError is the body of every non-2xx JSON response. Kind names the
// calibration error type when there is one, e.g. "IncompleteRegionsError".
type APIError struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type OpenRequest struct {
	Dir     string `json:"dir"`
	SampleF int    `json:"sampleF,omitempty"`
}

type OpenResponse struct {
	SessionID   string   `json:"sessionId"`
	Experiment  string   `json:"experiment"`
	Rows        int      `json:"rows"`
	Columns     []string `json:"columns"`
	ToolVersion string   `json:"toolVersion"`
	Skewed      bool     `json:"skewed"`
}

type SessionRequest struct {
	SessionID string `json:"sessionId"`
}

type ChannelDTO struct {
	Parameter string              `json:"parameter"`
	State     models.ChannelState `json:"state"`
	Lower     *models.Region      `json:"lower,omitempty"`
	Upper     *models.Region      `json:"upper,omitempty"`
	Poly      *models.Poly        `json:"poly,omitempty"`
}

type CalibrationResponse struct {
	SessionID    string       `json:"sessionId"`
	Experiment   string       `json:"experiment"`
	DateModified string       `json:"dateModified"`
	ToolVersion  string       `json:"toolVersion"`
	Skewed       bool         `json:"skewed"`
	Channels     []ChannelDTO `json:"channels"`
}

type RegionRequest struct {
	SessionID string `json:"sessionId"`
	Parameter string `json:"parameter"`
	Bound     string `json:"bound"`
	Start     *int64 `json:"start"`
	End       *int64 `json:"end"`
}

// FitRequest fits one parameter, or every ready channel when Parameter is
// empty.
type FitRequest struct {
	SessionID string `json:"sessionId"`
	Parameter string `json:"parameter,omitempty"`
}

type FitResult struct {
	Parameter string       `json:"parameter"`
	Poly      *models.Poly `json:"poly,omitempty"`
	Error     string       `json:"error,omitempty"`
	Kind      string       `json:"kind,omitempty"`
}

type FitResponse struct {
	Results []FitResult `json:"results"`
}

type CheckResponse struct {
	SessionID string                `json:"sessionId"`
	Channels  []modern.ChannelCheck `json:"channels"`
}

type UploadResponse struct {
	SessionID string `json:"sessionId"`
	Channels  int    `json:"channels"`
}
