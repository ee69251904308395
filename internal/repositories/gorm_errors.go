package repositories

import (
	"errors"

	"gorm.io/gorm"
)

// translateGORMError maps GORM sentinel errors onto the repository ones.
// The database must be opened with TranslateError enabled for duplicate
// keys to be recognised.
func translateGORMError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}
