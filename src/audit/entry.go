package audit

import (
	"time"

	"signalauditor/src/model"

	"github.com/shopspring/decimal"
)

// Fill describes the first candle that satisfied the entry policy.
type Fill struct {
	// Index of the fill candle within the scanned window.
	Index int
	At    time.Time
	// Representative entry price: the zone midpoint in wick mode, the fill
	// candle's close in close mode. The wick-mode midpoint is a policy
	// simplification. The touched price inside the zone may differ, which
	// skews realized R slightly.
	Price decimal.Decimal
}

// DetectEntry scans candles in ascending timestamp order and returns the
// first qualifying fill, or nil when the zone was never entered.
//
// When confirm is non-nil every candidate fill additionally requires the last
// fully closed higher-timeframe candle at or before the candidate's open to
// have closed beyond the zone in the breakout direction. A missing or not yet
// closed confirming candle rejects the candidate.
func DetectEntry(rec *model.SignalRecord, candles []model.Candle, mode FillMode, confirm []model.Candle) *Fill {
	low, high := rec.Zone()

	for i, c := range candles {
		var entered bool
		switch mode {
		case FillModeClose:
			entered = c.Close.GreaterThanOrEqual(low) && c.Close.LessThanOrEqual(high)
		default:
			entered = c.Low.LessThanOrEqual(high) && c.High.GreaterThanOrEqual(low)
		}
		if !entered {
			continue
		}

		if confirm != nil && !htfConfirmed(rec.Direction, low, high, c.OpenTime, confirm) {
			continue
		}

		price := rec.ZoneMid()
		if mode == FillModeClose {
			price = c.Close
		}
		return &Fill{Index: i, At: c.OpenTime, Price: price}
	}
	return nil
}

// htfConfirmed checks the breakout direction on the confirmation timeframe.
// Long entries need the confirming close above the zone high, shorts below
// the zone low.
func htfConfirmed(dir model.Direction, low, high decimal.Decimal, at time.Time, confirm []model.Candle) bool {
	var last *model.Candle
	for i := range confirm {
		if confirm[i].Closed(at) {
			if last == nil || confirm[i].OpenTime.After(last.OpenTime) {
				last = &confirm[i]
			}
		}
	}
	if last == nil {
		return false
	}
	if dir == model.DirectionLong {
		return last.Close.GreaterThan(high)
	}
	return last.Close.LessThan(low)
}
