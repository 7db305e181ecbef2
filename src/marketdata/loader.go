package marketdata

import (
	"context"
	"sort"
	"sync"
	"time"

	"signalauditor/src/model"

	logger "github.com/sirupsen/logrus"
)

// CandleProvider fetches historical candles from an upstream source. Partial
// or empty results are acceptable, providers only error on transport failure.
type CandleProvider interface {
	GetCandles(ctx context.Context, symbol string, tf model.Timeframe, start, end time.Time) ([]model.Candle, error)
}

type windowKey struct {
	symbol string
	tf     model.Timeframe
	start  int64
	end    int64
}

// WindowLoader returns ordered, deduplicated candle windows clipped to the
// requested half-open interval [start, end). Results are memoized per exact
// (symbol, timeframe, start, end) tuple so records sharing windows within one
// batch run do not refetch. The cache is batch-scoped: call Reset between
// batch runs.
type WindowLoader struct {
	provider CandleProvider

	mu    sync.Mutex
	cache map[windowKey][]model.Candle
}

func NewWindowLoader(provider CandleProvider) *WindowLoader {
	return &WindowLoader{
		provider: provider,
		cache:    make(map[windowKey][]model.Candle),
	}
}

func (l *WindowLoader) Load(ctx context.Context, symbol string, tf model.Timeframe, start, end time.Time) ([]model.Candle, error) {
	key := windowKey{symbol: symbol, tf: tf, start: start.Unix(), end: end.Unix()}

	l.mu.Lock()
	cached, ok := l.cache[key]
	l.mu.Unlock()
	if ok {
		return cached, nil
	}

	raw, err := l.provider.GetCandles(ctx, symbol, tf, start, end)
	if err != nil {
		return nil, err
	}

	window := normalizeWindow(raw, start, end)
	if len(window) < len(raw) {
		logger.WithFields(logger.Fields{
			"symbol":  symbol,
			"tf":      tf,
			"fetched": len(raw),
			"kept":    len(window),
		}).Debug("candle window clipped/deduplicated")
	}

	l.mu.Lock()
	l.cache[key] = window
	l.mu.Unlock()

	return window, nil
}

// Reset clears the memoization cache. Must be called between batch runs, the
// cache is never shared across concurrent runners.
func (l *WindowLoader) Reset() {
	l.mu.Lock()
	l.cache = make(map[windowKey][]model.Candle)
	l.mu.Unlock()
}

// normalizeWindow sorts ascending by open time, drops duplicate bars and
// clips to [start, end).
func normalizeWindow(raw []model.Candle, start, end time.Time) []model.Candle {
	out := make([]model.Candle, 0, len(raw))
	for _, c := range raw {
		if c.OpenTime.Before(start) || !c.OpenTime.Before(end) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime.Before(out[j].OpenTime) })

	dedup := out[:0]
	for i, c := range out {
		if i > 0 && c.OpenTime.Equal(out[i-1].OpenTime) {
			continue
		}
		dedup = append(dedup, c)
	}
	return dedup
}

// BucketStart aligns a timestamp to the wall-clock boundary of the containing
// higher-timeframe bucket: 12:07 with a 5m interval maps to 12:05. Works for
// intervals that are multiples of one minute.
func BucketStart(t time.Time, interval time.Duration) time.Time {
	secs := t.Unix()
	step := int64(interval.Seconds())
	return time.Unix((secs/step)*step, 0).UTC()
}
