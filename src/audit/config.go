package audit

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// FillMode selects how a candle qualifies as an entry fill.
type FillMode string

const (
	// FillModeWick fills when the candle range touches the zone.
	FillModeWick FillMode = "wick"
	// FillModeClose fills only when the candle closes inside the zone.
	FillModeClose FillMode = "close"
)

type Config struct {
	// Fill policy per signal quality. Premium signals require
	// confirmation-grade fills, default signals accept passive touches.
	FillModeStandard    string `envconfig:"AUDIT_FILL_MODE_STANDARD" default:"wick"`
	FillModeElite       string `envconfig:"AUDIT_FILL_MODE_ELITE" default:"close"`
	EliteScoreThreshold int    `envconfig:"AUDIT_ELITE_SCORE_THRESHOLD" default:"90"`

	// Breakeven protection arms once price moves this percentage in the
	// trade's favor from the entry price. Zero disables breakeven entirely.
	BreakevenTriggerPct float64 `envconfig:"AUDIT_BREAKEVEN_TRIGGER_PCT" default:"0"`

	// Higher-timeframe confirmation of entries.
	RequireHTFConfirm bool   `envconfig:"AUDIT_REQUIRE_HTF_CONFIRM" default:"false"`
	ConfirmTimeframe  string `envconfig:"AUDIT_CONFIRM_TIMEFRAME" default:"15m"`

	BaseTimeframe string `envconfig:"AUDIT_BASE_TIMEFRAME" default:"5m"`

	SignalTTLMinutes int `envconfig:"AUDIT_SIGNAL_TTL_MINUTES" default:"720"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// FillModeFor picks the fill policy for a signal score.
func (c Config) FillModeFor(score int) FillMode {
	if score >= c.EliteScoreThreshold {
		return FillMode(c.FillModeElite)
	}
	return FillMode(c.FillModeStandard)
}
