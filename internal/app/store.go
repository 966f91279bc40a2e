// Package app wires configuration to the user store backends.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"user-ledger/internal/config"
	"user-ledger/internal/repository"
	"user-ledger/internal/repository/document"
	"user-ledger/internal/repository/relational"
	"user-ledger/internal/storage"
)

// OpenStore returns the user store selected by cfg.Store.
func OpenStore(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (repository.UserStore, error) {
	location := strings.TrimSpace(cfg.Store.Location)

	switch cfg.Store.Kind {
	case config.StoreDocument:
		if storage.IsS3URI(location) {
			bucket, key, err := storage.ParseS3URI(location)
			if err != nil {
				return nil, err
			}
			blobs, err := storage.NewS3ServiceFromConfig(ctx, bucket, storage.S3Options{
				Region:   cfg.Storage.Region,
				Endpoint: cfg.Storage.Endpoint,
				Profile:  cfg.AWS.Profile,
			})
			if err != nil {
				return nil, fmt.Errorf("setup s3 storage: %w", err)
			}
			logger.Infof("using document store s3://%s/%s (region %s)", bucket, key, cfg.Storage.Region)
			return document.NewUserStore(blobs, key, logger), nil
		}
		logger.Infof("using document store %s", location)
		return document.NewUserStore(storage.NewFileService(), location, logger), nil

	case config.StoreSQLite:
		store, err := relational.OpenSQLite(location, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		logger.Infof("using sqlite store %s", location)
		return store, nil

	case config.StorePostgres:
		store, err := relational.OpenPostgres(ctx, location, logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		logger.Info("using postgres store")
		return store, nil

	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Store.Kind)
	}
}
