package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"user-ledger/internal/repository"
)

// LoadRegistry loads the registry from store. An absent or corrupt store is
// replaced by a freshly bootstrapped registry, which is saved right away; a
// failure of that save is logged and the registry is still returned.
func LoadRegistry(ctx context.Context, store repository.UserStore, logger logrus.FieldLogger, opts ...Option) (*Registry, error) {
	users, err := store.Load(ctx)
	if err == nil {
		reg, regErr := NewRegistryFromUsers(users, opts...)
		if regErr == nil {
			logger.WithField("users", reg.Len()).Info("registry loaded")
			return reg, nil
		}
		err = fmt.Errorf("%w: %w", repository.ErrStoreCorrupt, regErr)
	}

	switch {
	case errors.Is(err, repository.ErrStoreNotFound):
		logger.Info("no stored registry, bootstrapping a fresh one")
	case errors.Is(err, repository.ErrStoreCorrupt):
		logger.WithError(err).Warn("stored registry is corrupt, discarding it and bootstrapping a fresh one")
	default:
		return nil, fmt.Errorf("load registry: %w", err)
	}

	reg := NewRegistry(opts...)
	if err := reg.Bootstrap(); err != nil {
		return nil, err
	}
	if err := SaveRegistry(ctx, store, reg); err != nil {
		logger.WithError(err).Warn("save bootstrapped registry")
	}
	return reg, nil
}

// SaveRegistry writes a full snapshot of reg to store.
func SaveRegistry(ctx context.Context, store repository.UserStore, reg *Registry) error {
	if err := store.Save(ctx, reg.Users()); err != nil {
		return fmt.Errorf("save registry: %w", err)
	}
	return nil
}
