package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Source string `envconfig:"CANDLE_SOURCE" default:"binance"`

	BinanceBaseURL string `envconfig:"BINANCE_BASE_URL" default:""`

	BybitBaseURL  string `envconfig:"BYBIT_BASE_URL" default:"https://api.bybit.com"`
	BybitCategory string `envconfig:"BYBIT_CATEGORY" default:"linear"`

	RequestTimeout time.Duration `envconfig:"CANDLE_REQUEST_TIMEOUT" default:"15s"`
	RetryAttempts  int           `envconfig:"CANDLE_RETRY_ATTEMPTS" default:"5"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
