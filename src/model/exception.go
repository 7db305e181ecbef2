package model

import "time"

// Exception is a persisted diagnostic: data inconsistencies, invalid records
// and other conditions that must survive the log stream for later auditing.
type Exception struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Where the condition was detected
	Module string `gorm:"size:100;index" json:"module"` // e.g. "backfill_runner"
	Op     string `gorm:"size:100" json:"op"`           // e.g. "Close"

	Message string `gorm:"type:text" json:"message"`

	// Severity level
	Level string `gorm:"size:20;index" json:"level"` // debug | info | warn | error

	// Extra context stored as JSON text (optional)
	Context string `gorm:"type:text" json:"context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
