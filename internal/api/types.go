package api

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// StatusResponse is the body of GET /api/auth/status. Counters are optional
// on the wire; SessionInfo applies the defaults.
type StatusResponse struct {
	Authenticated            bool   `json:"authenticated"`
	UserEmail                string `json:"user_email,omitempty"`
	RecommendationsUsed      *int   `json:"recommendations_used"`
	RecommendationsRemaining *int   `json:"recommendations_remaining"`
}

// SessionInfo mirrors the upstream usage counters.
type SessionInfo struct {
	Used      int `json:"recommendations_used"`
	Remaining int `json:"recommendations_remaining"`
}

// SessionInfo fills missing counters: nothing used, defaultRemaining left.
func (s StatusResponse) SessionInfo(defaultRemaining int) SessionInfo {
	info := SessionInfo{Remaining: defaultRemaining}
	if s.RecommendationsUsed != nil {
		info.Used = *s.RecommendationsUsed
	}
	if s.RecommendationsRemaining != nil {
		info.Remaining = *s.RecommendationsRemaining
	}
	return info
}

// EmbeddedSession is the session_info block of recommendation and error bodies.
type EmbeddedSession struct {
	Used      *int `json:"used"`
	Remaining *int `json:"remaining"`
}

// RecommendationRequest is the POST /api/recommend body. Numeric fields the
// user left empty or garbled travel as null and are interpreted upstream.
type RecommendationRequest struct {
	Category     string   `json:"Category_item" validate:"required"`
	WeightKg     *float64 `json:"Weight_kg"`
	DistanceKm   *float64 `json:"Distance_km"`
	LengthCm     *float64 `json:"Length_cm"`
	WidthCm      *float64 `json:"Width_cm"`
	HeightCm     *float64 `json:"Height_cm"`
	Fragility    *int     `json:"Fragility"`
	MoistureSens bool     `json:"Moisture_Sens"`
	ShippingMode string   `json:"Shipping_Mode" validate:"required"`
	TopK         int      `json:"top_k"`
	SortBy       string   `json:"sort_by"`
}

// Recommendation is one scored material. The upstream decides the order.
type Recommendation struct {
	MaterialName    string  `json:"Material_Name"`
	PredCO2         float64 `json:"Pred_CO2"`
	PredCost        float64 `json:"Pred_Cost"`
	Sustainability  float64 `json:"Sustainability"`
	Biodegradable   Flag    `json:"Biodegradable"`
	TensileStrength float64 `json:"Tensile_Strength_MPa"`
}

type RecommendResponse struct {
	Status          string           `json:"status"`
	Recommendations []Recommendation `json:"recommendations"`
	SessionInfo     *EmbeddedSession `json:"session_info"`
}

// ErrorBody is the JSON error envelope. All fields are optional.
type ErrorBody struct {
	Error        string           `json:"error"`
	LimitReached bool             `json:"limit_reached"`
	SessionInfo  *EmbeddedSession `json:"session_info"`
}

// Material is a catalog record. The upstream turns NaN cells into null, so
// every field may be missing.
type Material struct {
	ID              Text     `json:"Material_ID"`
	Name            *string  `json:"Material_Name"`
	Category        *string  `json:"Category"`
	Density         *float64 `json:"Density_kg_m3"`
	TensileStrength *float64 `json:"Tensile_Strength_MPa"`
	CostPerKg       *float64 `json:"Cost_per_kg"`
	CO2PerKg        *float64 `json:"CO2_Emission_kg"`
	Biodegradable   Flag     `json:"Biodegradable"`
}

type MaterialsPage struct {
	Materials []Material `json:"materials"`
	Total     int        `json:"total"`
	Page      int        `json:"page"`
	PageSize  int        `json:"page_size"`
	HasMore   bool       `json:"has_more"`
}

type DashboardAvailability struct {
	Available bool `json:"available"`
}

type LogoutResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	NewSessionID string `json:"new_session_id"`
}

// Flag is a loosely typed boolean: true/false, "Yes"/"No", "true"/"false",
// 1/0. Anything else, including null, is false.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("true")):
		*f = true
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "yes", "y", "true", "1":
			*f = true
		default:
			*f = false
		}
	default:
		n, err := strconv.ParseFloat(string(b), 64)
		*f = Flag(err == nil && n != 0)
	}
	return nil
}

// Text accepts a JSON string or number and keeps its textual form. null
// leaves it empty.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	n, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		*t = Text(b)
		return nil
	}
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		*t = Text(strconv.FormatInt(int64(n), 10))
		return nil
	}
	*t = Text(strconv.FormatFloat(n, 'f', -1, 64))
	return nil
}
