package executors

import (
	"context"
	"errors"
	"sync"
	"time"

	"signalauditor/src/audit"
	"signalauditor/src/marketdata"
	"signalauditor/src/model"
	"signalauditor/src/notifier"
	"signalauditor/src/repository"

	logger "github.com/sirupsen/logrus"
)

// SignalStore is the audit-store surface the runner needs.
type SignalStore interface {
	FetchOpen(ctx context.Context, maxAge time.Duration) ([]model.SignalRecord, error)
	Close(ctx context.Context, id uint, outcome model.Outcome, pnlR *float64, filledAt *time.Time, notes string) error
}

// ExceptionRecorder persists data-inconsistency and invalid-record diagnostics.
type ExceptionRecorder interface {
	Record(ctx context.Context, exc *model.Exception) error
}

// WindowLoader provides memoized candle windows for one batch run.
type WindowLoader interface {
	Load(ctx context.Context, symbol string, tf model.Timeframe, start, end time.Time) ([]model.Candle, error)
	Reset()
}

// BatchResult tallies one RunBatch invocation.
type BatchResult struct {
	Processed int
	Closed    int
	Pending   int
	Skipped   int
	Deferred  int
	Outcomes  map[model.Outcome]int
	BudgetHit bool
}

// BackfillRunner drives the classifier over the backlog of open records in
// time-bounded batches. A sent-at cursor makes progress resumable across
// invocations so a long backlog never blocks the worker loop.
type BackfillRunner struct {
	store      SignalStore
	exceptions ExceptionRecorder
	loader     WindowLoader
	notify     notifier.Notifier

	auditCfg audit.Config
	tieBreak audit.TieBreak

	budget   time.Duration
	maxAge   time.Duration
	prefetch int
	dryRun   bool

	cursor time.Time

	log *logger.Entry
}

func NewBackfillRunner(
	store SignalStore,
	exceptions ExceptionRecorder,
	loader WindowLoader,
	notify notifier.Notifier,
	auditCfg audit.Config,
	config Config,
) *BackfillRunner {
	prefetch := config.PrefetchWorkers
	if prefetch <= 0 {
		prefetch = 1
	}
	return &BackfillRunner{
		store:      store,
		exceptions: exceptions,
		loader:     loader,
		notify:     notify,
		auditCfg:   auditCfg,
		tieBreak:   audit.TieNearestOpen,
		budget:     config.BatchBudget,
		maxAge:     config.BacklogMaxAge,
		prefetch:   prefetch,
		dryRun:     config.DryRun,
		log:        logger.WithField("component", "BackfillRunner"),
	}
}

// SetTieBreak switches the intrabar collision policy. The worker loop uses
// TieAmbiguous for live records, backfill keeps the deterministic default.
func (b *BackfillRunner) SetTieBreak(tb audit.TieBreak) { b.tieBreak = tb }

// Cursor exposes the resume point: the sent-at of the last processed record,
// zero when the previous sweep drained the backlog.
func (b *BackfillRunner) Cursor() time.Time { return b.cursor }

// SetCursor restores a persisted resume point.
func (b *BackfillRunner) SetCursor(t time.Time) { b.cursor = t }

// RunBatch evaluates the eligible backlog under the wall-clock budget.
func (b *BackfillRunner) RunBatch(ctx context.Context) (*BatchResult, error) {
	b.loader.Reset()

	recs, err := b.store.FetchOpen(ctx, b.maxAge)
	if err != nil {
		return nil, err
	}

	// Resume after the cursor. Records sharing the cursor's exact sent-at
	// may be re-observed, the idempotent close makes that harmless.
	todo := recs[:0:0]
	for _, rec := range recs {
		if rec.SentAt.Before(b.cursor) {
			continue
		}
		todo = append(todo, rec)
	}

	deadline := time.Now().Add(b.budget)
	res := &BatchResult{Outcomes: make(map[model.Outcome]int)}

	b.prefetchWindows(ctx, todo, deadline)

	for _, rec := range todo {
		if time.Now().After(deadline) {
			res.BudgetHit = true
			break
		}
		b.processRecord(ctx, rec, res)
		b.cursor = rec.SentAt
	}
	if !res.BudgetHit {
		// Backlog drained, next sweep starts from the top.
		b.cursor = time.Time{}
	}

	b.log.WithFields(logger.Fields{
		"processed":  res.Processed,
		"closed":     res.Closed,
		"pending":    res.Pending,
		"skipped":    res.Skipped,
		"deferred":   res.Deferred,
		"budget_hit": res.BudgetHit,
		"dry_run":    b.dryRun,
	}).Info("batch completed")

	return res, nil
}

// prefetchWindows warms the loader cache with bounded concurrency so the
// sequential classification pass rarely waits on the network. Fetch errors
// are ignored here, the sequential pass retries and handles them.
func (b *BackfillRunner) prefetchWindows(ctx context.Context, recs []model.SignalRecord, deadline time.Time) {
	sem := make(chan struct{}, b.prefetch)
	var wg sync.WaitGroup
	now := time.Now().UTC()

	for i := range recs {
		rec := recs[i]
		if time.Now().After(deadline) {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			start, end := b.window(&rec, now)
			_, _ = b.loader.Load(ctx, rec.Symbol, model.Timeframe(b.auditCfg.BaseTimeframe), start, end)
			if b.auditCfg.RequireHTFConfirm {
				htf := model.Timeframe(b.auditCfg.ConfirmTimeframe)
				_, _ = b.loader.Load(ctx, rec.Symbol, htf, confirmStart(start, htf), end)
			}
		}()
	}
	wg.Wait()
}

func (b *BackfillRunner) window(rec *model.SignalRecord, now time.Time) (time.Time, time.Time) {
	end := rec.ExpiresAt()
	if end.After(now) {
		end = now
	}
	return rec.SentAt, end
}

// confirmStart extends the confirmation window back to the open of the last
// HTF bucket fully closed before the base window starts. An unaligned start
// would clip out the bucket that confirms the earliest entry candidates.
func confirmStart(start time.Time, htf model.Timeframe) time.Time {
	return marketdata.BucketStart(start, htf.Duration()).Add(-htf.Duration())
}

func (b *BackfillRunner) processRecord(ctx context.Context, rec model.SignalRecord, res *BatchResult) {
	res.Processed++
	now := time.Now().UTC()
	start, end := b.window(&rec, now)

	log := b.log.WithFields(logger.Fields{
		"signal_ref": rec.SignalRef,
		"symbol":     rec.Symbol,
	})

	base, err := b.loader.Load(ctx, rec.Symbol, model.Timeframe(b.auditCfg.BaseTimeframe), start, end)
	if err != nil {
		log.WithError(err).Warn("candle window unavailable, deferring record to next cycle")
		res.Deferred++
		return
	}
	if len(base) == 0 {
		log.Debug("no candles retrievable for window yet, deferring")
		res.Deferred++
		return
	}

	var confirm []model.Candle
	if b.auditCfg.RequireHTFConfirm {
		htf := model.Timeframe(b.auditCfg.ConfirmTimeframe)
		confirm, err = b.loader.Load(ctx, rec.Symbol, htf, confirmStart(start, htf), end)
		if err != nil {
			log.WithError(err).Warn("confirmation window unavailable, deferring record to next cycle")
			res.Deferred++
			return
		}
	}

	eval, err := audit.Classify(&rec, base, confirm, now, b.auditCfg, b.tieBreak)
	if err != nil {
		log.WithError(err).Warn("record not classifiable, skipping")
		if !b.dryRun {
			b.recordException(ctx, "Classify", "warn", err.Error(), rec.SignalRef)
		}
		res.Skipped++
		return
	}
	if eval == nil {
		res.Pending++
		return
	}

	res.Outcomes[eval.Outcome]++
	if b.dryRun {
		log.WithField("outcome", eval.Outcome).Info("dry run, outcome tallied without persisting")
		return
	}

	if err := b.store.Close(ctx, rec.ID, eval.Outcome, eval.PnlR, eval.FilledAt, eval.Notes); err != nil {
		if errors.Is(err, repository.ErrTerminalConflict) {
			log.WithError(err).Error("terminal outcome conflict, original state preserved")
			b.recordException(ctx, "Close", "error", err.Error(), rec.SignalRef)
			res.Skipped++
			return
		}
		log.WithError(err).Error("failed to close record, deferring")
		res.Deferred++
		return
	}
	res.Closed++

	rec.Status = model.StatusClosed
	rec.Outcome = &eval.Outcome
	rec.PnlR = eval.PnlR
	rec.FilledAt = eval.FilledAt
	rec.ClosedAt = &now
	rec.Notes = eval.Notes
	// Fire-and-forget: the notifier logs its own failures.
	b.notify.SignalClosed(ctx, rec)
}

func (b *BackfillRunner) recordException(ctx context.Context, op, level, msg, signalRef string) {
	exc := &model.Exception{
		Module:  "backfill_runner",
		Op:      op,
		Message: msg,
		Level:   level,
		Context: `{"signal_ref":"` + signalRef + `"}`,
	}
	if err := b.exceptions.Record(ctx, exc); err != nil {
		b.log.WithError(err).Error("failed to persist exception")
	}
}
