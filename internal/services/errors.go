package services

import (
	"errors"
	"fmt"

	"github.com/glassworks/storefront/internal/repositories"
)

// ErrStoreUnavailable signals a transient persistence failure; the operation had no effect and
// may be retried.
var ErrStoreUnavailable = errors.New("store unavailable")

// storeError maps unavailable repository errors onto ErrStoreUnavailable and leaves the rest untouched.
func storeError(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsUnavailable() {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}
