package projection

import (
	"errors"
	"fmt"

	"github.com/samirrijal/florascope/internal/core/domain"
)

// ErrPeakMismatch means the backend's peak month is not a month with the
// highest probability in the same payload.
var ErrPeakMismatch = errors.New("peak month mismatch")

var monthNames = [12]string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

// MonthName returns the short calendar name of a 0-based month index.
func MonthName(month int) string {
	if month < 0 || month >= len(monthNames) {
		return domain.NoPeakMonthName
	}
	return monthNames[month]
}

// maxProb returns the largest probability, or 0 for an empty slice.
func maxProb(months []domain.MonthlyProbability) float64 {
	m := 0.0
	for _, mp := range months {
		if mp.Prob > m {
			m = mp.Prob
		}
	}
	return m
}

// BarHeights scales every month against the largest probability.
// Empty or all-zero input yields zero heights instead of NaN.
// peakMonth comes from the backend and only drives the IsPeak flag.
func BarHeights(months []domain.MonthlyProbability, peakMonth int) []domain.MonthBar {
	top := maxProb(months)

	bars := make([]domain.MonthBar, 0, len(months))
	for _, mp := range months {
		height := 0.0
		if top > 0 && mp.Prob > 0 {
			height = mp.Prob / top
		}
		bars = append(bars, domain.MonthBar{
			Month:             mp.Month,
			Label:             MonthName(mp.Month),
			Prob:              mp.Prob,
			BarHeightFraction: height,
			IsPeak:            mp.Month == peakMonth,
		})
	}
	return bars
}

// PeakMonthIndex recomputes the peak month locally. Ties go to the first entry.
// ok is false when there is no positive probability to pick from.
func PeakMonthIndex(months []domain.MonthlyProbability) (month int, ok bool) {
	top := maxProb(months)
	if top <= 0 {
		return 0, false
	}
	for _, mp := range months {
		if mp.Prob == top {
			return mp.Month, true
		}
	}
	return 0, false
}

// VerifyPeak checks the backend peak month against the probabilities it was
// shipped with. Degenerate sets (no positive probability) are not checked.
func VerifyPeak(set *domain.PredictionSet) error {
	if set == nil {
		return nil
	}
	local, ok := PeakMonthIndex(set.MonthlyProbs)
	if !ok || local == set.PeakMonth {
		return nil
	}

	top := maxProb(set.MonthlyProbs)
	for _, mp := range set.MonthlyProbs {
		if mp.Month == set.PeakMonth && mp.Prob == top {
			return nil
		}
	}
	return fmt.Errorf("%w: backend=%d local=%d", ErrPeakMismatch, set.PeakMonth, local)
}
