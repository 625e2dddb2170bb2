package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/glebkoxan36/mypip/internal/config"
	"github.com/glebkoxan36/mypip/internal/store"
	badgerdb "github.com/glebkoxan36/mypip/internal/store/badger"
	chstore "github.com/glebkoxan36/mypip/internal/store/clickhouse"
	"github.com/glebkoxan36/mypip/internal/store/memory"
	"github.com/glebkoxan36/mypip/internal/store/migrations"
	pgstore "github.com/glebkoxan36/mypip/internal/store/postgres"
)

// engineStores bundles the engine's three stores and their teardown.
type engineStores struct {
	watches store.WatchStore
	records store.RecordStore
	archive store.SweepArchive
	cleanup func()
}

// createStores builds the store set for the configured backend. When a
// ClickHouse DSN is configured its archive replaces the backend's own,
// migrations applied first.
func createStores(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*engineStores, error) {
	stores, err := createBackend(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	if cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			stores.cleanup()
			return nil, fmt.Errorf("clickhouse archive: %w", err)
		}
		stores.archive = chstore.NewSweepArchive(conn)

		backendCleanup := stores.cleanup
		stores.cleanup = func() {
			if err := conn.Close(); err != nil {
				log.WithError(err).Warn("clickhouse close failed")
			}
			backendCleanup()
		}
	}
	return stores, nil
}

func createBackend(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*engineStores, error) {
	switch cfg.StoreType {
	case config.StoreMemory:
		return &engineStores{
			watches: memory.NewWatchStore(),
			records: memory.NewRecordStore(),
			archive: memory.NewSweepArchive(),
			cleanup: func() {},
		}, nil

	case config.StoreBadger:
		watches, err := badgerdb.NewWatchStore(cfg.Datadir, log)
		if err != nil {
			return nil, err
		}
		records, err := badgerdb.NewRecordStore(cfg.Datadir, log)
		if err != nil {
			watches.Close()
			return nil, err
		}
		archive, err := badgerdb.NewSweepArchive(cfg.Datadir, log)
		if err != nil {
			records.Close()
			watches.Close()
			return nil, err
		}
		return &engineStores{
			watches: watches,
			records: records,
			archive: archive,
			cleanup: func() {
				archive.Close()
				records.Close()
				watches.Close()
			},
		}, nil

	case config.StorePostgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}

		stores := &engineStores{
			watches: pgstore.NewWatchStore(pool),
			records: pgstore.NewRecordStore(pool),
			cleanup: pool.Close,
		}
		// Postgres carries no archive of its own; without ClickHouse
		// the sweep history lives in memory only.
		if cfg.ClickhouseDSN == "" {
			log.Warn("no CLICKHOUSE_DSN configured, sweep history will not survive restarts")
		}
		stores.archive = memory.NewSweepArchive()
		return stores, nil

	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.StoreType)
	}
}
