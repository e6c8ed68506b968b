package server

import (
	"context"
	"fmt"
	"log/slog"

	"workhours/internal/domain/audit"
	"workhours/internal/domain/auth"
	"workhours/internal/domain/employee"
	"workhours/internal/domain/ledger"
	"workhours/internal/platform/config"
	"workhours/internal/platform/db"
	"workhours/internal/platform/idempotency"
	"workhours/internal/platform/jobs"
	"workhours/internal/platform/retention"
	"workhours/internal/storage/sqlite"
)

type auditStore interface {
	audit.Recorder
	Count(ctx context.Context, filter audit.Filter) (int, error)
	List(ctx context.Context, filter audit.Filter, limit, offset int) ([]audit.Event, error)
}

type runStore interface {
	jobs.RunStore
	jobs.RunReader
}

type employeeStore interface {
	employee.StoreAPI
	ledger.EmployeeDirectory
}

// backend is the set of stores behind the services, either Postgres or an
// embedded SQLite file selected by the DATABASE_URL scheme.
type backend struct {
	name      string
	ledger    ledger.StoreAPI
	employees employeeStore
	users     auth.UserStore
	runs      runStore
	audit     auditStore
	keys      idempotency.Store
	purger    retention.Purger
	ping      func(ctx context.Context) error
	close     func()
}

func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	if sqlite.IsDSN(cfg.DatabaseURL) {
		store, err := sqlite.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		slog.Info("using sqlite storage", "dsn", cfg.DatabaseURL)
		return &backend{
			name:      "sqlite",
			ledger:    store.Ledger(),
			employees: store.Employees(),
			users:     store.Users(),
			runs:      store.JobRuns(),
			audit:     store.Audit(),
			keys:      store.Idempotency(),
			purger:    store.Retention(),
			ping:      store.Ping,
			close:     func() { _ = store.Close() },
		}, nil
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	return &backend{
		name:      "postgres",
		ledger:    ledger.NewStore(pool),
		employees: employee.NewStore(pool),
		users:     auth.NewStore(pool),
		runs:      jobs.PGRunStore{DB: pool},
		audit:     audit.New(pool),
		keys:      idempotency.NewPGStore(pool),
		purger:    retention.PGPurger{DB: pool},
		ping:      pool.Ping,
		close:     pool.Close,
	}, nil
}
