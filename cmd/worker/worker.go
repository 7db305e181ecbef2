package worker

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

// Worker wires the live evaluation loop: store, candle provider, notifier.
type Worker struct {
	Log *logger.Entry
}

func (w *Worker) Start() error {
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
		w.Log.WithError(err).Error("Failed to build candle provider")
		return err
	}

	runner := executors.NewBackfillRunner(
		repository.NewSignalRepository(),
		repository.NewExceptionRepository(),
		marketdata.NewWindowLoader(provider),
		notifier.NewFromEnv(),
		audit.GetConfig(),
		executors.GetConfig(),
	)

	if err := executors.StartLoop(ctx, runner); err != nil {
		w.Log.WithError(err).Error("Failed to run evaluation loop")
		return err
	}

	return nil
}
