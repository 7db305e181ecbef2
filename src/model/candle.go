package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Timeframe identifies one candle series resolution.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe30m Timeframe = "30m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
)

// ParseTimeframe validates a timeframe string from config or API input.
func ParseTimeframe(s string) (Timeframe, error) {
	switch Timeframe(s) {
	case Timeframe1m, Timeframe5m, Timeframe15m, Timeframe30m, Timeframe1h, Timeframe4h:
		return Timeframe(s), nil
	}
	return "", fmt.Errorf("invalid timeframe %q. allowed: 1m,5m,15m,30m,1h,4h", s)
}

func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case Timeframe1m:
		return time.Minute
	case Timeframe5m:
		return 5 * time.Minute
	case Timeframe15m:
		return 15 * time.Minute
	case Timeframe30m:
		return 30 * time.Minute
	case Timeframe1h:
		return time.Hour
	case Timeframe4h:
		return 4 * time.Hour
	default:
		return 0
	}
}

// Candle is one OHLCV bar of a (symbol, timeframe) series. Candles are
// read-only inputs to entry detection and outcome classification and are
// never persisted.
type Candle struct {
	Symbol    string
	Timeframe Timeframe
	OpenTime  time.Time
	CloseTime time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

func (c Candle) Bullish() bool { return c.Close.GreaterThan(c.Open) }
func (c Candle) Bearish() bool { return c.Close.LessThan(c.Open) }

// Closed reports whether the bar has fully elapsed at the given instant.
func (c Candle) Closed(at time.Time) bool {
	return !c.CloseTime.After(at)
}
