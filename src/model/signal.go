package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Outcome is the terminal classification of a signal record.
type Outcome string

const (
	OutcomeTP1            Outcome = "TP1"
	OutcomeTP2            Outcome = "TP2"
	OutcomeSL             Outcome = "SL"
	OutcomeBE             Outcome = "BE"
	OutcomeAmbiguous      Outcome = "AMBIGUOUS"
	OutcomeExpired        Outcome = "EXPIRED"
	OutcomeExpiredNoEntry Outcome = "EXPIRED_NO_ENTRY"
)

// Win reports whether the outcome counts as a win for statistics.
func (o Outcome) Win() bool {
	return o == OutcomeTP1 || o == OutcomeTP2 || o == OutcomeBE
}

// Evaluable reports whether the outcome belongs in win-rate and streak
// denominators. No-fill and ambiguous records are excluded.
func (o Outcome) Evaluable() bool {
	return o != OutcomeExpiredNoEntry && o != OutcomeAmbiguous
}

const DefaultTTLMinutes = 720

// SignalRecord is a proposed trade scenario tracked from open to a terminal
// classification against subsequent price action.
type SignalRecord struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	SignalRef string `gorm:"type:varchar(64);uniqueIndex" json:"signal_ref"`

	Module    string    `gorm:"type:varchar(50);index" json:"module"`
	Symbol    string    `gorm:"type:varchar(50);not null;index" json:"symbol"`
	Direction Direction `gorm:"type:varchar(10);not null" json:"direction"`

	// Proposed zone. Bounds are stored as given; direction is independent of
	// their ordering, use Zone() for the normalized [low, high] interval.
	EntryFrom decimal.Decimal `gorm:"type:double precision;not null" json:"entry_from"`
	EntryTo   decimal.Decimal `gorm:"type:double precision;not null" json:"entry_to"`

	StopLoss    decimal.Decimal `gorm:"type:double precision;not null" json:"stop_loss"`
	TakeProfit1 decimal.Decimal `gorm:"type:double precision;not null" json:"take_profit_1"`
	TakeProfit2 decimal.Decimal `gorm:"type:double precision;not null" json:"take_profit_2"`

	Score     int    `gorm:"not null" json:"score"`
	Reasoning string `gorm:"type:text" json:"reasoning,omitempty"`

	SentAt     time.Time `gorm:"not null;index" json:"sent_at"`
	TTLMinutes int       `gorm:"not null" json:"ttl_minutes"`

	// Display hint computed at insert time from the zone midpoint. Not
	// authoritative: the realized R uses the actual fill price.
	RRHint float64 `json:"rr_hint"`

	Status   Status     `gorm:"type:varchar(10);not null;index" json:"status"`
	Outcome  *Outcome   `gorm:"type:varchar(20)" json:"outcome,omitempty"`
	FilledAt *time.Time `json:"filled_at,omitempty"`
	PnlR     *float64   `json:"pnl_r,omitempty"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`
	Notes    string     `gorm:"type:text" json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SignalRecord) TableName() string {
	return "signal_records"
}

// Zone returns the normalized entry interval [low, high].
func (s *SignalRecord) Zone() (low, high decimal.Decimal) {
	if s.EntryFrom.LessThanOrEqual(s.EntryTo) {
		return s.EntryFrom, s.EntryTo
	}
	return s.EntryTo, s.EntryFrom
}

// ZoneMid returns the midpoint of the entry zone.
func (s *SignalRecord) ZoneMid() decimal.Decimal {
	low, high := s.Zone()
	return low.Add(high).Div(decimal.NewFromInt(2))
}

func (s *SignalRecord) TTL() time.Duration {
	m := s.TTLMinutes
	if m <= 0 {
		m = DefaultTTLMinutes
	}
	return time.Duration(m) * time.Minute
}

// ExpiresAt is the instant after which an unfilled entry is no longer valid.
func (s *SignalRecord) ExpiresAt() time.Time {
	return s.SentAt.Add(s.TTL())
}

var (
	ErrInvalidDirection = errors.New("direction must be long or short")
	ErrInvalidZone      = errors.New("entry zone bounds must be positive")
	ErrInvalidLevels    = errors.New("stop and take-profit levels must be positive")
	ErrRiskDistance     = errors.New("non-positive risk distance between entry and stop")
)

// Validate checks the record at the ingestion boundary so downstream code can
// assume well-formed fields.
func (s *SignalRecord) Validate() error {
	if s.Symbol == "" {
		return errors.New("symbol is required")
	}
	if s.Direction != DirectionLong && s.Direction != DirectionShort {
		return ErrInvalidDirection
	}
	low, _ := s.Zone()
	if !low.IsPositive() {
		return ErrInvalidZone
	}
	if !s.StopLoss.IsPositive() || !s.TakeProfit1.IsPositive() || !s.TakeProfit2.IsPositive() {
		return ErrInvalidLevels
	}
	if s.ZoneMid().Sub(s.StopLoss).Abs().IsZero() {
		return ErrRiskDistance
	}
	if s.Score < 0 || s.Score > 100 {
		return fmt.Errorf("score %d out of range 0-100", s.Score)
	}
	if s.SentAt.IsZero() {
		return errors.New("sent_at is required")
	}
	return nil
}
