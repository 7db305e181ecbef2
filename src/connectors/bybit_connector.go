package connectors

// REST KLINE CLIENT FOR BYBIT (v5 /market/kline)
// RESTY ONLY + INTERNAL RETRY

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"signalauditor/src/model"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

const (
	defaultRetryAttempts   = 5
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 8 * time.Second

	defaultBybitBaseURL = "https://api.bybit.com"
	bybitMaxKlines      = 1000
)

type bybitKlineResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		Category string     `json:"category"`
		Symbol   string     `json:"symbol"`
		List     [][]string `json:"list"`
	} `json:"result"`
}

// BybitConnector fetches historical klines from the Bybit v5 public API.
type BybitConnector struct {
	category string
	http     *resty.Client
}

func NewBybitConnector(baseURL, category string, timeout time.Duration, attempts int) *BybitConnector {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBybitBaseURL
		logger.Warnf("No base URL provided, using default: %s", baseURL)
	}
	baseURL = strings.TrimRight(baseURL, "/")

	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(attempts - 1).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	if category == "" {
		category = "linear"
	}

	return &BybitConnector{
		category: category,
		http:     httpClient,
	}
}

// Retry on rate limiting and upstream failures. resty adds jitter between
// RetryWaitTime and RetryMaxWaitTime.
func isRetryableResp(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return true
	}
	code := resp.StatusCode()
	return code == 429 || code >= 500
}

// GetCandles retrieves klines covering [start, end). Bybit returns bars
// newest-first, the window loader re-orders them.
func (b *BybitConnector) GetCandles(ctx context.Context, symbol string, tf model.Timeframe, start, end time.Time) ([]model.Candle, error) {
	interval, err := bybitInterval(tf)
	if err != nil {
		return nil, err
	}

	limit := int(end.Sub(start)/tf.Duration()) + 1
	if limit > bybitMaxKlines {
		limit = bybitMaxKlines
	}

	var out bybitKlineResponse
	resp, err := b.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"category": b.category,
			"symbol":   strings.ToUpper(symbol),
			"interval": interval,
			"start":    strconv.FormatInt(start.UnixMilli(), 10),
			"end":      strconv.FormatInt(end.UnixMilli(), 10),
			"limit":    strconv.Itoa(limit),
		}).
		SetResult(&out).
		Get("/v5/market/kline")
	if err != nil {
		return nil, fmt.Errorf("bybit kline request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("bybit kline request failed: status %d", resp.StatusCode())
	}
	if out.RetCode != 0 {
		return nil, fmt.Errorf("bybit kline request rejected: %d %s", out.RetCode, out.RetMsg)
	}

	candles := make([]model.Candle, 0, len(out.Result.List))
	for _, row := range out.Result.List {
		c, err := parseBybitRow(symbol, tf, row)
		if err != nil {
			logger.WithError(err).WithField("symbol", symbol).Warn("skipping malformed bybit kline row")
			continue
		}
		candles = append(candles, c)
	}

	logger.WithFields(logger.Fields{
		"symbol": symbol,
		"tf":     tf,
		"rows":   len(candles),
	}).Debug("bybit klines fetched")

	return candles, nil
}

// Row layout: [startMs, open, high, low, close, volume, turnover].
func parseBybitRow(symbol string, tf model.Timeframe, row []string) (model.Candle, error) {
	if len(row) < 6 {
		return model.Candle{}, fmt.Errorf("kline row has %d fields, want >= 6", len(row))
	}
	ms, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return model.Candle{}, fmt.Errorf("kline start time %q: %w", row[0], err)
	}

	prices := make([]decimal.Decimal, 5)
	for i := 1; i <= 5; i++ {
		d, err := decimal.NewFromString(row[i])
		if err != nil {
			return model.Candle{}, fmt.Errorf("kline field %d %q: %w", i, row[i], err)
		}
		prices[i-1] = d
	}

	openTime := time.UnixMilli(ms).UTC()
	return model.Candle{
		Symbol:    symbol,
		Timeframe: tf,
		OpenTime:  openTime,
		CloseTime: openTime.Add(tf.Duration()),
		Open:      prices[0],
		High:      prices[1],
		Low:       prices[2],
		Close:     prices[3],
		Volume:    prices[4],
	}, nil
}

func bybitInterval(tf model.Timeframe) (string, error) {
	switch tf {
	case model.Timeframe1m:
		return "1", nil
	case model.Timeframe5m:
		return "5", nil
	case model.Timeframe15m:
		return "15", nil
	case model.Timeframe30m:
		return "30", nil
	case model.Timeframe1h:
		return "60", nil
	case model.Timeframe4h:
		return "240", nil
	default:
		_, err := model.ParseTimeframe(string(tf))
		return "", err
	}
}
