// Package bootstrap builds the long-lived dependencies shared by the binaries.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dvloznov/sheetledger/internal/config"
	"github.com/dvloznov/sheetledger/internal/logger"
	"github.com/dvloznov/sheetledger/internal/rangestore"
	"github.com/dvloznov/sheetledger/internal/rangestore/gsheets"
	"github.com/dvloznov/sheetledger/internal/schemastore"
	"github.com/dvloznov/sheetledger/internal/schemastore/inmemory"
	"github.com/dvloznov/sheetledger/internal/schemastore/postgres"
)

// SchemaStore opens the configured schema store. The returned func releases it.
func SchemaStore(ctx context.Context, cfg config.StoreConfig) (schemastore.Store, func(), error) {
	log := logger.FromContext(ctx)

	switch cfg.Backend {
	case config.StoreMemory:
		log.Warn().Msg("Using in-memory schema store, configured sheets are lost on exit")
		return inmemory.NewStore(), func() {}, nil
	case config.StorePostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxConns, cfg.MinConns)
		if err != nil {
			return nil, nil, fmt.Errorf("SchemaStore: %w", err)
		}
		if cfg.AutoMigrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, fmt.Errorf("SchemaStore: %w", err)
			}
			log.Info().Msg("Schema store migrations applied")
		}
		return postgres.NewStore(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("SchemaStore: unknown backend %q", cfg.Backend)
	}
}

// SheetsClient returns the Google Sheets range store.
func SheetsClient(cfg config.GoogleConfig) rangestore.Store {
	return gsheets.New(gsheets.Config{
		CredentialsFile: cfg.CredentialsFile,
		ApplicationName: cfg.ApplicationName,
	})
}
