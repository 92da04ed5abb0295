package services

import (
	"errors"
	"fmt"

	"github.com/geocoder89/taskhub/internal/apperr"
)

// storeErr keeps store-unavailable failures recognisable and turns every
// other unexpected store error into an internal error.
func storeErr(op string, err error) error {
	if errors.Is(err, apperr.ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, apperr.ErrInternal, err)
}
