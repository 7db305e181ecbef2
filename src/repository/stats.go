package repository

import (
	"sort"

	"signalauditor/src/model"
)

// Stats is the aggregate snapshot for reporting surfaces. Pointer fields are
// nil when the underlying sample is empty, so callers can render "no data"
// instead of a misleading zero.
type Stats struct {
	Days      int `json:"days"`
	OpenCount int `json:"open_count"`

	Total  int `json:"total"`
	Filled int `json:"filled"`

	FillRate *float64 `json:"fill_rate,omitempty"`

	Evaluated int      `json:"evaluated"`
	Wins      int      `json:"wins"`
	WinRate   *float64 `json:"win_rate,omitempty"`

	AvgR         *float64 `json:"avg_r,omitempty"`
	MedianR      *float64 `json:"median_r,omitempty"`
	ProfitFactor *float64 `json:"profit_factor,omitempty"`

	// Contiguous run of same-class outcomes, most recent first.
	Streak     int    `json:"streak"`
	StreakKind string `json:"streak_kind,omitempty"` // "win" | "loss"

	Outcomes map[model.Outcome]int `json:"outcomes"`
}

// ComputeStats aggregates closed records. The slice must be ordered most
// recent first, the streak scan depends on it.
func ComputeStats(closedDesc []model.SignalRecord) *Stats {
	stats := &Stats{
		Total:    len(closedDesc),
		Outcomes: make(map[model.Outcome]int),
	}

	var rs []float64
	var sumPos, sumNeg float64

	for _, rec := range closedDesc {
		if rec.Outcome == nil {
			continue
		}
		o := *rec.Outcome
		stats.Outcomes[o]++

		if rec.FilledAt != nil {
			stats.Filled++
		}
		if !o.Evaluable() {
			continue
		}
		stats.Evaluated++
		if o.Win() {
			stats.Wins++
		}
		if rec.PnlR != nil {
			r := *rec.PnlR
			rs = append(rs, r)
			if r > 0 {
				sumPos += r
			} else {
				sumNeg += r
			}
		}
	}

	if stats.Total > 0 {
		v := float64(stats.Filled) / float64(stats.Total)
		stats.FillRate = &v
	}
	if stats.Evaluated > 0 {
		v := float64(stats.Wins) / float64(stats.Evaluated)
		stats.WinRate = &v
	}
	if len(rs) > 0 {
		var sum float64
		for _, r := range rs {
			sum += r
		}
		avg := sum / float64(len(rs))
		stats.AvgR = &avg

		med := median(rs)
		stats.MedianR = &med
	}
	if sumNeg < 0 {
		pf := sumPos / -sumNeg
		stats.ProfitFactor = &pf
	}

	stats.Streak, stats.StreakKind = streak(closedDesc)

	return stats
}

func median(rs []float64) float64 {
	sorted := append([]float64(nil), rs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// streak counts the contiguous run of same-class (win vs non-win) outcomes
// scanning most-recent-first. No-fill and ambiguous records are skipped.
func streak(closedDesc []model.SignalRecord) (int, string) {
	count := 0
	kind := ""
	for _, rec := range closedDesc {
		if rec.Outcome == nil || !rec.Outcome.Evaluable() {
			continue
		}
		class := "loss"
		if rec.Outcome.Win() {
			class = "win"
		}
		if kind == "" {
			kind = class
		}
		if class != kind {
			break
		}
		count++
	}
	return count, kind
}
