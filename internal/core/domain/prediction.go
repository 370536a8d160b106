package domain

import "time"

// Label is the flowering classification of a prediction point.
// The backend encodes it as 0/1.
type Label int

const (
	LabelNotFlowering Label = 0
	LabelFlowering    Label = 1
)

// IsFlowering reports whether the label marks a flowering site.
func (l Label) IsFlowering() bool { return l == LabelFlowering }

// PredictionPoint is one classified observation site.
type PredictionPoint struct {
	Lon       float64  `json:"lon"`
	Lat       float64  `json:"lat"`
	Label     Label    `json:"pred_flowering"`
	Elevation *float64 `json:"elev,omitempty"`
	Date      string   `json:"date,omitempty"`
}

// MonthlyProbability is the aggregate flowering probability of a calendar month.
type MonthlyProbability struct {
	Month int     `json:"month"` // 0-11
	Prob  float64 `json:"prob"`  // 0.0-1.0
}

// NoPeakMonthName is shown when the backend omits the peak month name.
const NoPeakMonthName = "---"

// PredictionSet is one complete prediction payload.
// It is replaced wholesale on every successful fetch and never mutated afterwards.
type PredictionSet struct {
	Predictions   []PredictionPoint    `json:"predictions"`
	MonthlyProbs  []MonthlyProbability `json:"monthlyProbs"`
	PeakMonth     int                  `json:"peakMonth"`
	PeakMonthName string               `json:"peakMonthName"`
	Status        string               `json:"status,omitempty"`
	MapURL        string               `json:"map_url,omitempty"`
	FetchedAt     time.Time            `json:"fetched_at"`
}

// EmptyPredictionSet returns the set served before the first successful fetch.
func EmptyPredictionSet() *PredictionSet {
	return &PredictionSet{
		Predictions:   []PredictionPoint{},
		MonthlyProbs:  []MonthlyProbability{},
		PeakMonthName: NoPeakMonthName,
	}
}

// NormalizedCoordinate is a display-space point in [0,1]x[0,1].
type NormalizedCoordinate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PlotPoint is a prediction point placed in display space.
type PlotPoint struct {
	NormalizedX float64 `json:"normalized_x"`
	NormalizedY float64 `json:"normalized_y"`
	IsFlowering bool    `json:"is_flowering"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

// MonthBar is one bar of the monthly probability chart.
type MonthBar struct {
	Month             int     `json:"month"`
	Label             string  `json:"label"`
	Prob              float64 `json:"prob"`
	BarHeightFraction float64 `json:"bar_height_fraction"`
	IsPeak            bool    `json:"is_peak"`
}

// PredictionSummary describes the currently installed prediction set.
type PredictionSummary struct {
	Points         int       `json:"points"`
	FloweringCount int       `json:"flowering_count"`
	Months         int       `json:"months"`
	PeakMonth      int       `json:"peak_month"`
	PeakMonthName  string    `json:"peak_month_name"`
	LocalPeakMonth *int      `json:"local_peak_month,omitempty"`
	PeakAgrees     bool      `json:"peak_agrees"`
	FetchedAt      time.Time `json:"fetched_at,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
}

// MonthlyChart is the bar chart of monthly flowering probabilities.
type MonthlyChart struct {
	Bars          []MonthBar `json:"bars"`
	PeakMonth     int        `json:"peak_month"`
	PeakMonthName string     `json:"peak_month_name"`
}
