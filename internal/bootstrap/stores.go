// Package bootstrap opens the record store and blob store selected by
// configuration and hands back store-agnostic repositories.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/blob"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/repository/sqlite"
)

// Check is a named connectivity probe.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// Stores holds the repositories and blob store for one process.
type Stores struct {
	Tickets     repository.TicketRepository
	Messages    repository.TicketMessageRepository
	Attachments repository.AttachmentRepository
	Accounts    repository.AccountRepository
	Blobs       blob.Store

	// Checks lists the backing services for readiness probes.
	Checks []Check

	driver     string
	runOnStart bool
	migrate    func(ctx context.Context) error
	closers    []func()
}

// Open connects to the configured backends. On error everything opened so
// far is closed again.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *Stores, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Stores{driver: cfg.Store.Driver}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s.closers = append(s.closers, pg.Close)
		s.Tickets = repository.NewTicketRepository(pg.Pool)
		s.Messages = repository.NewTicketMessageRepository(pg.Pool)
		s.Attachments = repository.NewAttachmentRepository(pg.Pool)
		s.Accounts = repository.NewAccountRepository(pg.Pool)
		s.runOnStart = cfg.Postgres.RunMigrations
		s.migrate = func(ctx context.Context) error {
			return persistence.RunMigrations(ctx, pg.Pool, logger)
		}
		s.Checks = append(s.Checks, Check{Name: "postgres", Ping: pg.Ping})

	case config.StoreDriverSQLite:
		db, err := persistence.NewSQLite(cfg.SQLite, logger)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		s.Tickets = sqlite.NewTicketRepository(db.DB)
		s.Messages = sqlite.NewTicketMessageRepository(db.DB)
		s.Attachments = sqlite.NewAttachmentRepository(db.DB)
		s.Accounts = sqlite.NewAccountRepository(db.DB)
		s.runOnStart = cfg.SQLite.RunMigrations
		s.migrate = func(context.Context) error {
			return sqlite.AutoMigrate(db.DB)
		}
		s.Checks = append(s.Checks, Check{Name: "sqlite", Ping: func(context.Context) error { return db.Ping() }})

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	rdb, err := persistence.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		return nil, err
	}
	if rdb != nil {
		s.closers = append(s.closers, rdb.Close)
		s.Checks = append(s.Checks, Check{Name: "redis", Ping: rdb.Ping})
	}

	switch cfg.Blob.Backend {
	case config.BlobBackendDisk:
		fs, err := blob.NewFileStore(cfg.Blob.Dir, logger)
		if err != nil {
			return nil, err
		}
		s.Blobs = fs
	case config.BlobBackendRedis:
		if rdb == nil {
			return nil, fmt.Errorf("blob backend redis needs REDIS_ADDR")
		}
		s.Blobs = blob.NewRedisStore(rdb.Client, cfg.Blob.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.Blob.Backend)
	}

	logger.Info("stores opened",
		zap.String("record_store", cfg.Store.Driver),
		zap.String("blob_backend", cfg.Blob.Backend))
	return s, nil
}

// Driver is the record store driver name.
func (s *Stores) Driver() string { return s.driver }

// MigrateOnStart reports whether the configuration asks for schema
// migration at startup.
func (s *Stores) MigrateOnStart() bool { return s.runOnStart }

// Migrate brings the record store schema up to date.
func (s *Stores) Migrate(ctx context.Context) error {
	if s.migrate == nil {
		return nil
	}
	return s.migrate(ctx)
}

// Close releases connections in reverse order of opening.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
