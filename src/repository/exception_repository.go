package repository

import (
	"context"

	"signalauditor/src/database"
	"signalauditor/src/model"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ExceptionRepository handles persistence of diagnostic exceptions.
type ExceptionRepository struct {
	db *gorm.DB
}

// NewExceptionRepository creates a new repository instance.
func NewExceptionRepository() *ExceptionRepository {
	return &ExceptionRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance, useful for tests.
func (r *ExceptionRepository) WithDB(db *gorm.DB) *ExceptionRepository {
	return &ExceptionRepository{db: db}
}

// Record persists a new exception in the database.
func (r *ExceptionRepository) Record(ctx context.Context, exc *model.Exception) error {
	logger.WithFields(map[string]interface{}{
		"module": exc.Module,
		"op":     exc.Op,
		"level":  exc.Level,
	}).Error("Persisting diagnostic exception")

	return r.db.WithContext(ctx).Create(exc).Error
}
