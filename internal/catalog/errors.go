package catalog

import (
	"errors"
	"fmt"

	"storefront-catalog-service/internal/domain"
	"storefront-catalog-service/internal/store"
)

// storeError turns a store failure into a domain error. Conflicts become
// ErrConflict; every other remote failure becomes an UpstreamError.
func storeError(op string, err error) error {
	var remote *store.RemoteError
	if errors.As(err, &remote) {
		if remote.Conflict() {
			return fmt.Errorf("catalog: %s: %w", op, domain.ErrConflict)
		}
		return &domain.UpstreamError{
			Source:  "store",
			Status:  remote.Status,
			Message: remote.Message,
			Err:     fmt.Errorf("catalog: %s: %w", op, err),
		}
	}
	return fmt.Errorf("catalog: %s: %w", op, err)
}

// productStoreError is storeError for product writes, where a foreign key
// violation means category_id names no category.
func productStoreError(op string, err error) error {
	var remote *store.RemoteError
	if errors.As(err, &remote) && remote.ForeignKey() {
		return domain.NewValidationError("category_id does not reference an existing category", "category_id")
	}
	return storeError(op, err)
}
