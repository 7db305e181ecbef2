package connectors

import (
	"context"
	"net/http"
	"strings"
	"time"

	"signalauditor/src/model"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

const binanceMaxKlines = 1000

// BinanceConnector fetches historical klines from the Binance public API.
type BinanceConnector struct {
	exchange goex.API
}

func NewBinanceConnector(baseURL string) *BinanceConnector {
	endpoint := binance.GLOBAL_API_BASE_URL
	if strings.TrimSpace(baseURL) != "" {
		endpoint = baseURL
	}
	apiConfig := &goex.APIConfig{
		HttpClient: http.DefaultClient,
		Endpoint:   endpoint,
	}
	return &BinanceConnector{exchange: binance.NewWithConfig(apiConfig)}
}

// GetCandles retrieves klines covering [start, end). Partial upstream results
// are returned as-is, the window loader clips and orders them.
func (b *BinanceConnector) GetCandles(ctx context.Context, symbol string, tf model.Timeframe, start, end time.Time) ([]model.Candle, error) {
	period, err := klinePeriod(tf)
	if err != nil {
		return nil, err
	}

	size := int(end.Sub(start)/tf.Duration()) + 1
	if size > binanceMaxKlines {
		size = binanceMaxKlines
	}

	const millis = 1000
	klines, err := b.exchange.GetKlineRecords(
		currencyPair(symbol),
		period,
		size,
		goex.OptionalParameter{}.
			Optional("startTime", start.Unix()*millis).
			Optional("endTime", end.Unix()*millis),
	)
	if err != nil {
		return nil, err
	}

	candles := make([]model.Candle, 0, len(klines))
	for i := range klines {
		k := klines[i]
		openTime := time.Unix(k.Timestamp, 0).UTC()
		candles = append(candles, model.Candle{
			Symbol:    symbol,
			Timeframe: tf,
			OpenTime:  openTime,
			CloseTime: openTime.Add(tf.Duration()),
			Open:      decimal.NewFromFloat(k.Open),
			High:      decimal.NewFromFloat(k.High),
			Low:       decimal.NewFromFloat(k.Low),
			Close:     decimal.NewFromFloat(k.Close),
			Volume:    decimal.NewFromFloat(k.Vol),
		})
	}

	logger.WithFields(logger.Fields{
		"symbol": symbol,
		"tf":     tf,
		"rows":   len(candles),
	}).Debug("binance klines fetched")

	return candles, nil
}

func klinePeriod(tf model.Timeframe) (goex.KlinePeriod, error) {
	switch tf {
	case model.Timeframe1m:
		return goex.KLINE_PERIOD_1MIN, nil
	case model.Timeframe5m:
		return goex.KLINE_PERIOD_5MIN, nil
	case model.Timeframe15m:
		return goex.KLINE_PERIOD_15MIN, nil
	case model.Timeframe30m:
		return goex.KLINE_PERIOD_30MIN, nil
	case model.Timeframe1h:
		return goex.KLINE_PERIOD_1H, nil
	case model.Timeframe4h:
		return goex.KLINE_PERIOD_4H, nil
	default:
		_, err := model.ParseTimeframe(string(tf))
		return 0, err
	}
}

// quote suffixes recognized when splitting a concatenated pair like BTCUSDT.
var knownQuotes = []string{"USDT", "USDC", "BUSD", "USD", "BTC", "ETH"}

func currencyPair(symbol string) goex.CurrencyPair {
	up := strings.ToUpper(symbol)
	for _, q := range knownQuotes {
		if strings.HasSuffix(up, q) && len(up) > len(q) {
			return goex.NewCurrencyPair(
				goex.Currency{Symbol: strings.TrimSuffix(up, q)},
				goex.Currency{Symbol: q},
			)
		}
	}
	return goex.NewCurrencyPair(goex.Currency{Symbol: up}, goex.Currency{Symbol: "USDT"})
}
