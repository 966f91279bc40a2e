package repository

import (
	"context"
	"errors"

	"user-ledger/internal/domain"
)

var (
	// ErrStoreNotFound indicates the backing store does not exist or holds no users.
	ErrStoreNotFound = errors.New("store not found")
	// ErrStoreCorrupt indicates the store exists but cannot be read as a registry.
	ErrStoreCorrupt = errors.New("store corrupt")
	// ErrStoreWrite indicates an I/O failure while saving a snapshot.
	ErrStoreWrite = errors.New("store write failed")
)

// UserStore persists full snapshots of the user registry.
type UserStore interface {
	// Load returns every stored user. Users come back ordered by username
	// and each user's items keep their insertion order.
	Load(ctx context.Context) ([]*domain.User, error)
	// Save replaces the stored snapshot with users.
	Save(ctx context.Context, users []*domain.User) error
	Close() error
}
