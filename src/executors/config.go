package executors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	LoopPeriod time.Duration `envconfig:"LOOP_PERIOD" default:"60s"`

	// Wall-clock budget per batch invocation. When exceeded mid-backlog the
	// runner stops after the current record and resumes from its cursor.
	BatchBudget time.Duration `envconfig:"BATCH_TIME_BUDGET" default:"45s"`

	// Open records older than this are no longer re-evaluated.
	BacklogMaxAge time.Duration `envconfig:"BACKLOG_MAX_AGE" default:"168h"`

	DryRun bool `envconfig:"BACKFILL_DRY_RUN" default:"false"`

	// Bounded fan-out for warming candle windows before classification.
	PrefetchWorkers int `envconfig:"WINDOW_PREFETCH_WORKERS" default:"4"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
