package predictor

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/samirrijal/florascope/internal/core/domain"
)

// payload is the wire shape of the prediction backend's response.
// Every field is optional and every scalar is read leniently: a value of the
// wrong JSON type takes the field's default instead of failing the payload.
type payload struct {
	Status        string  `json:"status"`
	MapURL        string  `json:"map_url"`
	Predictions   []point `json:"predictions"`
	MonthlyProbs  []month `json:"monthlyProbs"`
	PeakMonth     *index  `json:"peakMonth"`
	PeakMonthName *string `json:"peakMonthName"`
}

type point struct {
	Lon           number          `json:"lon"`
	Lat           number          `json:"lat"`
	Elev          *number         `json:"elev"`
	Date          json.RawMessage `json:"date"`
	PredFlowering flag            `json:"pred_flowering"`
}

type month struct {
	Month index  `json:"month"`
	Prob  number `json:"prob"`
}

// scalar returns the text of a JSON number, bool or string literal.
func scalar(b []byte) string {
	return string(bytes.Trim(bytes.TrimSpace(b), `"`))
}

// number accepts a JSON number or a quoted number. Anything else, including
// non-finite values, reads as 0.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	v, err := strconv.ParseFloat(scalar(b), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	*n = number(v)
	return nil
}

// index accepts an integral JSON number (3 or 3.0) or a quoted one ("3").
// Anything else reads as 0.
type index int

func (i *index) UnmarshalJSON(b []byte) error {
	var n number
	_ = n.UnmarshalJSON(b)
	if v := float64(n); v == math.Trunc(v) && math.Abs(v) <= math.MaxInt32 {
		*i = index(v)
	} else {
		*i = 0
	}
	return nil
}

// flag accepts the classification as 0/1, true/false or a quoted number.
// Unrecognised values read as not flowering.
type flag domain.Label

func (f *flag) UnmarshalJSON(b []byte) error {
	*f = flag(domain.LabelNotFlowering)
	switch s := scalar(b); s {
	case "true":
		*f = flag(domain.LabelFlowering)
	default:
		if v, err := strconv.ParseFloat(s, 64); err == nil && v >= 1 {
			*f = flag(domain.LabelFlowering)
		}
	}
	return nil
}

// decode parses a backend response body into a PredictionSet.
func decode(body []byte) (*domain.PredictionSet, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode prediction payload: %w", err)
	}

	set := domain.EmptyPredictionSet()
	set.Status = p.Status
	set.MapURL = p.MapURL

	for _, pt := range p.Predictions {
		set.Predictions = append(set.Predictions, domain.PredictionPoint{
			Lon:       float64(pt.Lon),
			Lat:       float64(pt.Lat),
			Label:     domain.Label(pt.PredFlowering),
			Elevation: elevation(pt.Elev),
			Date:      dateString(pt.Date),
		})
	}
	for _, m := range p.MonthlyProbs {
		set.MonthlyProbs = append(set.MonthlyProbs, domain.MonthlyProbability{Month: int(m.Month), Prob: float64(m.Prob)})
	}
	if p.PeakMonth != nil {
		set.PeakMonth = int(*p.PeakMonth)
	}
	if p.PeakMonthName != nil && *p.PeakMonthName != "" {
		set.PeakMonthName = *p.PeakMonthName
	}
	return set, nil
}

// dateString keeps string dates as-is and falls back to the raw JSON text
// for anything else (epoch numbers, for instance).
func dateString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func elevation(n *number) *float64 {
	if n == nil {
		return nil
	}
	v := float64(*n)
	return &v
}
