package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"signalauditor/src/audit"
	"signalauditor/src/database"
	"signalauditor/src/model"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrTerminalConflict is returned when a close attempt carries a different
// outcome than the one already recorded. The original terminal state is
// preserved, the caller must surface the inconsistency.
var ErrTerminalConflict = errors.New("record already closed with a different outcome")

// SignalRepository is the audit store for signal records.
type SignalRepository struct {
	db         *gorm.DB
	defaultTTL int
}

// NewSignalRepository creates a new repository using the main DB connection.
func NewSignalRepository() *SignalRepository {
	logger.WithField("component", "SignalRepository").
		Info("Creating new SignalRepository with MainDB")

	return &SignalRepository{
		db:         database.MainDB,
		defaultTTL: audit.GetConfig().SignalTTLMinutes,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or custom sessions/transactions.
func (r *SignalRepository) WithDB(db *gorm.DB) *SignalRepository {
	return &SignalRepository{db: db, defaultTTL: r.defaultTTL}
}

// Insert creates an open record. The R:R hint is derived from the zone
// midpoint at insert time for display purposes only.
func (r *SignalRepository) Insert(ctx context.Context, rec *model.SignalRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid signal record: %w", err)
	}

	if rec.SignalRef == "" {
		rec.SignalRef = uuid.NewString()
	}
	if rec.TTLMinutes <= 0 {
		if r.defaultTTL > 0 {
			rec.TTLMinutes = r.defaultTTL
		} else {
			rec.TTLMinutes = model.DefaultTTLMinutes
		}
	}
	rec.Status = model.StatusOpen

	mid := rec.ZoneMid()
	risk := mid.Sub(rec.StopLoss).Abs()
	if risk.IsPositive() {
		rec.RRHint = rec.TakeProfit1.Sub(mid).Abs().Div(risk).InexactFloat64()
	}

	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "SignalRepository",
			"op":     "Insert",
			"symbol": rec.Symbol,
		}).WithError(err).Error("Failed to insert signal record")
		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":       "SignalRepository",
		"op":         "Insert",
		"signal_ref": rec.SignalRef,
		"symbol":     rec.Symbol,
		"direction":  rec.Direction,
		"score":      rec.Score,
	}).Info("Signal record inserted")

	return nil
}

// Close transitions a record to its terminal state. Calling it again with the
// same outcome is a no-op. A different outcome is a data inconsistency: it is
// logged loudly, the original state is kept and ErrTerminalConflict returned.
func (r *SignalRepository) Close(
	ctx context.Context,
	id uint,
	outcome model.Outcome,
	pnlR *float64,
	filledAt *time.Time,
	notes string,
) error {
	var rec model.SignalRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("signal record %d not found", id)
		}
		return err
	}

	if rec.Status == model.StatusClosed {
		if rec.Outcome != nil && *rec.Outcome == outcome {
			logger.WithFields(map[string]interface{}{
				"repo":    "SignalRepository",
				"op":      "Close",
				"id":      id,
				"outcome": outcome,
			}).Debug("Record already closed with same outcome, no-op")
			return nil
		}
		prev := model.Outcome("")
		if rec.Outcome != nil {
			prev = *rec.Outcome
		}
		logger.WithFields(map[string]interface{}{
			"repo":         "SignalRepository",
			"op":           "Close",
			"id":           id,
			"prev_outcome": prev,
			"new_outcome":  outcome,
		}).Warn("Refusing to overwrite terminal outcome")
		return fmt.Errorf("%w: record %d has %s, got %s", ErrTerminalConflict, id, prev, outcome)
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":    model.StatusClosed,
		"outcome":   outcome,
		"pnl_r":     pnlR,
		"filled_at": filledAt,
		"closed_at": now,
		"notes":     notes,
	}
	if err := r.db.WithContext(ctx).Model(&model.SignalRecord{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "SignalRepository",
			"op":   "Close",
			"id":   id,
		}).WithError(err).Error("Failed to close signal record")
		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":    "SignalRepository",
		"op":      "Close",
		"id":      id,
		"outcome": outcome,
	}).Info("Signal record closed")

	return nil
}

// FetchOpen returns open records created within the lookback window, ordered
// oldest-first so time-budgeted evaluation does not starve the longest
// waiting records.
func (r *SignalRepository) FetchOpen(ctx context.Context, maxAge time.Duration) ([]model.SignalRecord, error) {
	since := time.Now().UTC().Add(-maxAge)

	var recs []model.SignalRecord
	err := r.db.WithContext(ctx).
		Where("status = ? AND sent_at >= ?", model.StatusOpen, since).
		Order("sent_at ASC, id ASC").
		Find(&recs).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "SignalRepository",
			"op":   "FetchOpen",
		}).WithError(err).Error("Failed to fetch open signal records")
		return nil, err
	}

	return recs, nil
}

// FindRecent returns the latest records, newest first, open and closed alike.
func (r *SignalRepository) FindRecent(ctx context.Context, limit int) ([]model.SignalRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	var recs []model.SignalRecord
	err := r.db.WithContext(ctx).
		Order("sent_at DESC, id DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "SignalRepository",
			"op":    "FindRecent",
			"limit": limit,
		}).WithError(err).Error("Failed to fetch recent signal records")
		return nil, err
	}

	return recs, nil
}

// AggregateStats computes the statistics snapshot over records closed within
// the last N days.
func (r *SignalRepository) AggregateStats(ctx context.Context, days int) (*Stats, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	var closed []model.SignalRecord
	err := r.db.WithContext(ctx).
		Where("status = ? AND closed_at >= ?", model.StatusClosed, since).
		Order("closed_at DESC, id DESC").
		Find(&closed).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "SignalRepository",
			"op":   "AggregateStats",
			"days": days,
		}).WithError(err).Error("Failed to load closed records for stats")
		return nil, err
	}

	var open int64
	if err := r.db.WithContext(ctx).
		Model(&model.SignalRecord{}).
		Where("status = ?", model.StatusOpen).
		Count(&open).Error; err != nil {
		return nil, err
	}

	stats := ComputeStats(closed)
	stats.Days = days
	stats.OpenCount = int(open)
	return stats, nil
}
