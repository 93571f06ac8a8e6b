package helpers

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// WrapTxAndCommit runs fn inside tx, or inside a new transaction on db when tx is nil.
// Only transactions opened here are committed or rolled back.
func WrapTxAndCommit[T any](fn func(*gorm.DB) (T, error), db *gorm.DB, tx *gorm.DB) (T, error) {
	if tx != nil {
		return fn(tx)
	}

	tx = db.Begin()
	if tx.Error != nil {
		var zero T
		return zero, errors.Wrap(tx.Error, "failed to begin transaction")
	}

	res, err := fn(tx)
	if err != nil {
		tx.Rollback()
		return res, err
	}
	if err := tx.Commit().Error; err != nil {
		return res, errors.Wrap(err, "failed to commit transaction")
	}
	return res, nil
}
