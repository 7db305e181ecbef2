package connectors

import (
	"fmt"

	"signalauditor/src/marketdata"

	logger "github.com/sirupsen/logrus"
)

// NewProvider builds the configured candle provider.
func NewProvider(config Config) (marketdata.CandleProvider, error) {
	switch config.Source {
	case "binance":
		logger.WithField("source", "binance").Info("candle provider selected")
		return NewBinanceConnector(config.BinanceBaseURL), nil
	case "bybit":
		logger.WithField("source", "bybit").Info("candle provider selected")
		return NewBybitConnector(config.BybitBaseURL, config.BybitCategory, config.RequestTimeout, config.RetryAttempts), nil
	default:
		return nil, fmt.Errorf("candle source %s not supported", config.Source)
	}
}
