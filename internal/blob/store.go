// Package blob stores attachment bytes behind opaque locators.
package blob

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a locator does not resolve to stored bytes.
var ErrNotFound = errors.New("blob not found")

// Store is the byte storage capability used by the attachment ledger.
// Locators are opaque to callers and must be passed back unchanged.
type Store interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, locator string) ([]byte, error)
	Delete(ctx context.Context, locator string) error
}
