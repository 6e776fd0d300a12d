package recommend

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/poku-e/ecopack/internal/api"
	"github.com/poku-e/ecopack/internal/config"
)

// Form is the shipment form as submitted, every field still raw text.
type Form struct {
	Category     string `form:"categoryItem" json:"category"`
	Weight       string `form:"weight" json:"weight"`
	Distance     string `form:"distance" json:"distance"`
	Length       string `form:"length" json:"length"`
	Width        string `form:"width" json:"width"`
	Height       string `form:"height" json:"height"`
	Fragility    string `form:"fragility" json:"fragility"`
	MoistureSens string `form:"moistureSens" json:"moisture_sens"`
	ShippingMode string `form:"shippingMode" json:"shipping_mode"`
	TopK         string `form:"topK" json:"top_k"`
	SortBy       string `form:"optimizationMode" json:"sort_by"`
}

// Request converts the form into the wire request. Numbers are read from
// their leading numeric prefix; anything unreadable travels as null.
func (f Form) Request(defaults config.RecommendConfig) api.RecommendationRequest {
	req := api.RecommendationRequest{
		Category:     strings.TrimSpace(f.Category),
		WeightKg:     parseFloat(f.Weight),
		DistanceKm:   parseFloat(f.Distance),
		LengthCm:     parseFloat(f.Length),
		WidthCm:      parseFloat(f.Width),
		HeightCm:     parseFloat(f.Height),
		Fragility:    parseInt(f.Fragility),
		MoistureSens: checked(f.MoistureSens),
		ShippingMode: strings.TrimSpace(f.ShippingMode),
		TopK:         defaults.TopK,
		SortBy:       strings.TrimSpace(f.SortBy),
	}
	if k := parseInt(f.TopK); k != nil && *k != 0 {
		req.TopK = *k
	}
	if req.SortBy == "" {
		req.SortBy = defaults.SortBy
	}
	return req
}

var validate = validator.New()

// Complete reports whether the request can be submitted: category and
// shipping mode are required, everything else may travel as null.
func Complete(req api.RecommendationRequest) bool {
	return validate.Struct(req) == nil
}

var (
	floatPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
	intPrefix   = regexp.MustCompile(`^[+-]?\d+`)
)

func parseFloat(s string) *float64 {
	m := floatPrefix.FindString(strings.TrimSpace(s))
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseInt(s string) *int {
	m := intPrefix.FindString(strings.TrimSpace(s))
	if m == "" {
		return nil
	}
	v, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &v
}

func checked(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "off", "no":
		return false
	}
	return true
}
