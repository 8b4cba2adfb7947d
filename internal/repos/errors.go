package repos

import (
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound means the query ran and matched nothing. ErrStorageUnavailable
// means no database handle is configured. Callers that want to degrade
// gracefully should do so only for ErrStorageUnavailable; ErrNotFound is a
// normal outcome, and anything else is a real storage failure.
var (
	ErrNotFound           = errors.New("record not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

func wrapLookupErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
