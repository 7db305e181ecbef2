package executors

import (
	"context"
	"time"

	"signalauditor/src/audit"

	logger "github.com/sirupsen/logrus"
)

// StartLoop runs the live evaluation loop: every tick the runner re-checks
// open records against fresh price history. The immediate path keeps the
// conservative ambiguous classification for intrabar collisions.
func StartLoop(ctx context.Context, runner *BackfillRunner) error {
	config := GetConfig()

	runner.SetTieBreak(audit.TieAmbiguous)

	ticker := time.NewTicker(config.LoopPeriod)
	defer ticker.Stop()

	logger.WithField("period", config.LoopPeriod).Info("evaluation loop started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("loop stopped")
			return nil

		case <-ticker.C:
			logger.Info("loop tick")
			res, err := runner.RunBatch(ctx)
			if err != nil {
				logger.WithError(err).Error("batch failed, will retry next tick")
				continue
			}
			if res.BudgetHit {
				logger.WithField("cursor", runner.Cursor()).
					Warn("batch budget exhausted mid-backlog, resuming next tick")
			}
		}
	}
}
