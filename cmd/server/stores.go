package main

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tyemirov/ridemapper/internal/userstore"
	"github.com/tyemirov/ridemapper/internal/userstorepg"
	"github.com/tyemirov/ridemapper/internal/web"
)

const (
	storeDriverGORM = "gorm"
	storeDriverPGX  = "pgx"
)

func validateStoreDriver(storeDriver string, databaseURL string) error {
	switch storeDriver {
	case storeDriverGORM:
		return nil
	case storeDriverPGX:
		if databaseURL == "" {
			return nil
		}
		lowered := strings.ToLower(databaseURL)
		if !strings.HasPrefix(lowered, "postgres://") && !strings.HasPrefix(lowered, "postgresql://") {
			return configError(configCodeInvalidStoreDriver, "store_driver pgx requires a postgres database_url")
		}
		return nil
	default:
		return configError(configCodeInvalidStoreDriver, "store_driver must be gorm or pgx")
	}
}

// openUserStore selects the user store for the configuration; the returned
// func releases its resources.
func openUserStore(ctx context.Context, serverConfig web.ServerConfig, logger *zap.Logger) (userstore.Store, func(), error) {
	if serverConfig.DatabaseURL == "" {
		logger.Info("using in-memory user store")
		return userstore.NewMemoryStore(), func() {}, nil
	}

	if serverConfig.StoreDriver == storeDriverPGX {
		pool, poolErr := userstorepg.BuildPool(ctx, serverConfig.DatabaseURL)
		if poolErr != nil {
			return nil, nil, fmt.Errorf("user_store.pgx.pool: %w", poolErr)
		}
		if schemaErr := userstorepg.EnsureSchema(ctx, pool); schemaErr != nil {
			pool.Close()
			return nil, nil, schemaErr
		}
		logger.Info("using persistent user store", zap.String("driver", storeDriverPGX))
		return userstorepg.NewStore(pool), pool.Close, nil
	}

	databaseStore, storeErr := userstore.NewDatabaseStore(ctx, serverConfig.DatabaseURL)
	if storeErr != nil {
		return nil, nil, storeErr
	}
	logger.Info("using persistent user store", zap.String("driver", databaseStore.Driver()))
	return databaseStore, func() {
		if closeErr := databaseStore.Close(); closeErr != nil {
			logger.Warn("user store close failed", zap.Error(closeErr))
		}
	}, nil
}
