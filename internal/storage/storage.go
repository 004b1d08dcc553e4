// Package storage opens the account store selected by configuration.
package storage

import (
	"context"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/samber/oops"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	qa "github.com/panyam/quickauth"
	"github.com/panyam/quickauth/internal/config"
	"github.com/panyam/quickauth/stores/fs"
	gaestore "github.com/panyam/quickauth/stores/gae"
	gormstore "github.com/panyam/quickauth/stores/gorm"
	mongostore "github.com/panyam/quickauth/stores/mongo"
	"github.com/panyam/quickauth/stores/postgres"
)

// Closer releases the connections behind a store.
type Closer func(ctx context.Context) error

func noop(context.Context) error { return nil }

// Open connects to the configured backend. When cfg.AutoMigrate is set the
// schema (tables, indexes) is brought up to date before the store is
// returned.
func Open(ctx context.Context, cfg config.Store) (qa.AccountStore, Closer, error) {
	errb := oops.Code("STORE_OPEN_FAILED").With("driver", cfg.Driver)

	switch cfg.Driver {
	case config.DriverFS:
		store, err := fs.NewAccountStore(cfg.Path)
		if err != nil {
			return nil, nil, errb.With("path", cfg.Path).Wrap(err)
		}
		return store, noop, nil

	case config.DriverMySQL:
		db, err := openGorm(cfg.DSN)
		if err != nil {
			return nil, nil, errb.Wrap(err)
		}
		closer := func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		}
		if cfg.AutoMigrate {
			if err := gormstore.AutoMigrate(db.WithContext(ctx)); err != nil {
				_ = closer(ctx)
				return nil, nil, oops.Code("MIGRATE_FAILED").With("driver", cfg.Driver).Wrap(err)
			}
		}
		return gormstore.NewAccountStore(db), closer, nil

	case config.DriverPostgres:
		if cfg.AutoMigrate {
			if err := postgres.Migrate(ctx, cfg.DSN); err != nil {
				return nil, nil, err
			}
		}
		pool, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, errb.Wrap(err)
		}
		return postgres.NewAccountStore(pool), func(context.Context) error {
			pool.Close()
			return nil
		}, nil

	case config.DriverMongo:
		client, err := mongostore.Connect(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, errb.Wrap(err)
		}
		store := mongostore.NewAccountStore(client.Database(cfg.Database), cfg.Collection)
		if cfg.AutoMigrate {
			if err := store.EnsureIndexes(ctx); err != nil {
				_ = client.Disconnect(ctx)
				return nil, nil, oops.Code("MIGRATE_FAILED").With("driver", cfg.Driver).Wrap(err)
			}
		}
		return store, client.Disconnect, nil

	case config.DriverDatastore:
		client, err := datastore.NewClient(ctx, cfg.Project)
		if err != nil {
			return nil, nil, errb.With("project", cfg.Project).Wrap(err)
		}
		return gaestore.NewAccountStore(client, cfg.Namespace), func(context.Context) error {
			return client.Close()
		}, nil
	}
	return nil, nil, errb.Errorf("unknown store driver %q", cfg.Driver)
}

// Migrate brings the schema of the configured backend up to date without
// keeping a store open. It is a no-op for backends without a schema.
func Migrate(ctx context.Context, cfg config.Store) error {
	cfg.AutoMigrate = true
	switch cfg.Driver {
	case config.DriverFS, config.DriverDatastore:
		return nil
	case config.DriverPostgres:
		return postgres.Migrate(ctx, cfg.DSN)
	}
	_, closer, err := Open(ctx, cfg)
	if err != nil {
		return err
	}
	return closer(ctx)
}

func openGorm(dsn string) (*gorm.DB, error) {
	return gorm.Open(gormmysql.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
}
