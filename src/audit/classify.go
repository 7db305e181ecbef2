package audit

import (
	"strings"
	"time"

	"signalauditor/src/model"

	"github.com/shopspring/decimal"
)

// TieBreak selects the intrabar collision policy when an SL-class and a
// TP-class level are both touched within the same candle.
type TieBreak int

const (
	// TieAmbiguous returns OutcomeAmbiguous. Order of touch cannot be
	// determined from OHLC alone, this is the conservative call for the
	// immediate evaluation path.
	TieAmbiguous TieBreak = iota
	// TieNearestOpen resolves deterministically by picking the level closest
	// to the candle's open as the presumed first touch. Used by backfill so
	// re-runs are reproducible.
	TieNearestOpen
)

// Evaluation is the classifier's verdict for one record over one window.
// A nil Evaluation with a nil error means the record is still live: entry not
// yet expired, or filled with nothing resolved before the TTL elapsed.
type Evaluation struct {
	Outcome    model.Outcome
	PnlR       *float64
	FilledAt   *time.Time
	EntryPrice decimal.Decimal
	Notes      string
}

var two = decimal.NewFromInt(2)

// Classify replays candles forward from the record's fill and produces one
// terminal classification plus realized R-multiple.
//
// candles must be ascending and clipped to [sent_at, expires_at). confirm is
// the optional higher-timeframe window for entry confirmation. now decides
// whether TTL expiry outcomes apply.
//
// R accounting assumes a partial exit of half the position at TP1: TP2 and BE
// blend half credit from each leg, an SL before TP1 is exactly -1.0 R.
func Classify(
	rec *model.SignalRecord,
	candles []model.Candle,
	confirm []model.Candle,
	now time.Time,
	cfg Config,
	tb TieBreak,
) (*Evaluation, error) {
	expired := now.After(rec.ExpiresAt())

	fill := DetectEntry(rec, candles, cfg.FillModeFor(rec.Score), confirm)
	if fill == nil {
		if expired {
			return &Evaluation{
				Outcome: model.OutcomeExpiredNoEntry,
				Notes:   "entry zone never filled before ttl expiry",
			}, nil
		}
		return nil, nil
	}

	entry := fill.Price
	risk := entry.Sub(rec.StopLoss).Abs()
	if !risk.IsPositive() {
		return nil, model.ErrRiskDistance
	}

	sign := decimal.NewFromInt(1)
	if rec.Direction == model.DirectionShort {
		sign = decimal.NewFromInt(-1)
	}
	// rOf expresses a price as a signed R-multiple of the initial risk.
	rOf := func(p decimal.Decimal) decimal.Decimal {
		return p.Sub(entry).Mul(sign).Div(risk)
	}
	tp1R := rOf(rec.TakeProfit1)
	tp2R := rOf(rec.TakeProfit2)

	filledAt := fill.At
	result := func(o model.Outcome, pnl decimal.Decimal, notes []string) *Evaluation {
		v := pnl.InexactFloat64()
		return &Evaluation{
			Outcome:    o,
			PnlR:       &v,
			FilledAt:   &filledAt,
			EntryPrice: entry,
			Notes:      strings.Join(notes, "; "),
		}
	}

	// The fill candle itself is replayed in wick mode. In close mode the fill
	// happens at the candle close, so that bar's extremes precede the entry
	// and evaluation starts on the next bar.
	start := fill.Index
	if cfg.FillModeFor(rec.Score) == FillModeClose {
		start = fill.Index + 1
	}

	long := rec.Direction == model.DirectionLong
	var partial, beArmed bool
	var notes []string

	halfAtTP1 := tp1R.Div(two)
	slBlended := func() decimal.Decimal {
		if partial {
			// Half banked at TP1, half stopped at -1.
			return halfAtTP1.Sub(decimal.NewFromFloat(0.5))
		}
		return decimal.NewFromInt(-1)
	}

	for i := start; i < len(candles); i++ {
		c := candles[i]

		var slHit, tp1Hit, tp2Hit bool
		if long {
			slHit = c.Low.LessThanOrEqual(rec.StopLoss)
			tp1Hit = c.High.GreaterThanOrEqual(rec.TakeProfit1)
			tp2Hit = c.High.GreaterThanOrEqual(rec.TakeProfit2)
		} else {
			slHit = c.High.GreaterThanOrEqual(rec.StopLoss)
			tp1Hit = c.Low.LessThanOrEqual(rec.TakeProfit1)
			tp2Hit = c.Low.LessThanOrEqual(rec.TakeProfit2)
		}

		switch {
		case slHit && (tp1Hit || tp2Hit):
			if tb == TieAmbiguous {
				return &Evaluation{
					Outcome:    model.OutcomeAmbiguous,
					FilledAt:   &filledAt,
					EntryPrice: entry,
					Notes:      "intrabar SL/TP collision, order of touch unknown from OHLC",
				}, nil
			}
			// Nearest touched TP level competes against the stop.
			var dTP decimal.Decimal
			switch {
			case tp1Hit && tp2Hit:
				dTP = decimal.Min(
					c.Open.Sub(rec.TakeProfit1).Abs(),
					c.Open.Sub(rec.TakeProfit2).Abs(),
				)
			case tp2Hit:
				dTP = c.Open.Sub(rec.TakeProfit2).Abs()
			default:
				dTP = c.Open.Sub(rec.TakeProfit1).Abs()
			}
			dSL := c.Open.Sub(rec.StopLoss).Abs()
			// Equidistant collisions resolve to SL as the conservative branch.
			if dSL.LessThanOrEqual(dTP) {
				notes = append(notes, "intrabar collision resolved to SL, nearest to open")
				return result(model.OutcomeSL, slBlended(), notes), nil
			}
			if tp2Hit {
				notes = append(notes, "intrabar collision resolved to TP2, nearest to open")
				return result(model.OutcomeTP2, halfAtTP1.Add(tp2R.Div(two)), notes), nil
			}
			// TP1 presumed first. The same-bar SL touch is consumed by the
			// tie-break, evaluation continues on the next bar.
			partial = true
			notes = append(notes, "intrabar collision resolved to TP1, nearest to open")

		case tp2Hit:
			return result(model.OutcomeTP2, halfAtTP1.Add(tp2R.Div(two)), notes), nil

		case slHit:
			if partial {
				notes = append(notes, "stopped out after TP1 partial")
			}
			return result(model.OutcomeSL, slBlended(), notes), nil

		case tp1Hit:
			partial = true
		}

		if cfg.BreakevenTriggerPct > 0 {
			trigger := decimal.NewFromFloat(cfg.BreakevenTriggerPct).Div(decimal.NewFromInt(100))
			if !beArmed {
				if long {
					beArmed = c.High.GreaterThanOrEqual(entry.Mul(decimal.NewFromInt(1).Add(trigger)))
				} else {
					beArmed = c.Low.LessThanOrEqual(entry.Mul(decimal.NewFromInt(1).Sub(trigger)))
				}
			}
			if beArmed && partial {
				returned := c.Low.LessThanOrEqual(entry)
				if !long {
					returned = c.High.GreaterThanOrEqual(entry)
				}
				if returned {
					notes = append(notes, "breakeven round-trip after TP1 partial")
					return result(model.OutcomeBE, halfAtTP1, notes), nil
				}
			}
		}
	}

	if !expired {
		return nil, nil
	}

	lastR := rOf(candles[len(candles)-1].Close)
	if partial {
		notes = append(notes, "TP2 never reached before ttl expiry, residual half marked at last close")
		return result(model.OutcomeTP1, halfAtTP1.Add(lastR.Div(two)), notes), nil
	}
	// Close-out policy constant: the raw unrealized move is halved for a
	// filled-but-unresolved record.
	notes = append(notes, "filled but unresolved at ttl expiry, unrealized move halved")
	return result(model.OutcomeExpired, lastR.Div(two), notes), nil
}
