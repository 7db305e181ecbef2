package backfill

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"signalauditor/src/audit"
	"signalauditor/src/connectors"
	"signalauditor/src/database"
	"signalauditor/src/executors"
	"signalauditor/src/marketdata"
	"signalauditor/src/notifier"
	"signalauditor/src/repository"

	logger "github.com/sirupsen/logrus"
)

// Backfill runs batch passes until the backlog is drained, resuming from the
// runner's cursor whenever the per-invocation budget is exhausted.
type Backfill struct {
	Log *logger.Entry
}

func (b *Backfill) Start() error {
	config := executors.GetConfig()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	if err := database.InitMainDB(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to main database")
		return err
	}

	provider, err := connectors.NewProvider(connectors.GetConfig())
	if err != nil {
		b.Log.WithError(err).Error("Failed to build candle provider")
		return err
	}

	runner := executors.NewBackfillRunner(
		repository.NewSignalRepository(),
		repository.NewExceptionRepository(),
		marketdata.NewWindowLoader(provider),
		notifier.NewFromEnv(),
		audit.GetConfig(),
		config,
	)

	if config.DryRun {
		b.Log.Warn("dry run: outcomes will be tallied but not persisted")
	}

	for {
		res, err := runner.RunBatch(ctx)
		if err != nil {
			b.Log.WithError(err).Error("batch failed")
			return err
		}
		if !res.BudgetHit {
			b.Log.Info("backlog drained")
			return nil
		}
		select {
		case <-ctx.Done():
			b.Log.WithField("cursor", runner.Cursor()).Info("interrupted, cursor preserved")
			return nil
		default:
		}
		b.Log.WithField("cursor", runner.Cursor()).Info("budget exhausted, continuing from cursor")
	}
}
