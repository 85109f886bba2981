package repository

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/prn-tf/inkwell/internal/config"
	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/schema"
	"github.com/prn-tf/inkwell/internal/store"
	"github.com/prn-tf/inkwell/internal/store/memory"
	"github.com/prn-tf/inkwell/internal/store/postgres"
	"github.com/prn-tf/inkwell/internal/store/sqlite"
)

// Repositories holds all repository instances.
type Repositories struct {
	User     UserRepository
	Category CategoryRepository
	Post     PostRepository
	Comment  CommentRepository
	Like     LikeRepository
}

// NewRepositories builds every domain repository over one backend.
func NewRepositories(b *Backend) *Repositories {
	return &Repositories{
		User:     NewUserRepository(b),
		Category: NewCategoryRepository(b),
		Post:     NewPostRepository(b),
		Comment:  NewCommentRepository(b),
		Like:     NewLikeRepository(b),
	}
}

// DriverWrapper decorates a driver, e.g. with metrics.
type DriverWrapper func(store.Driver) store.Driver

// Factory opens the configured store and builds repositories over it.
type Factory struct {
	cfg    *config.Config
	logger zerolog.Logger
	wrap   []DriverWrapper
}

// NewFactory creates a new repository factory.
func NewFactory(cfg *config.Config, logger zerolog.Logger, wrap ...DriverWrapper) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger,
		wrap:   wrap,
	}
}

// Driver returns the configured store driver name.
func (f *Factory) Driver() string {
	return f.cfg.Store.Driver
}

// Settings derives repository settings from configuration.
func (f *Factory) Settings() Settings {
	return Settings{
		DefaultLimit: f.cfg.Pagination.DefaultLimit,
		MaxLimit:     f.cfg.Pagination.MaxLimit,
		SoftDelete:   f.cfg.SoftDelete.Enabled,
	}
}

// Result contains the created repositories and the store they share.
// The caller owns Driver and must close it.
type Result struct {
	Repos   *Repositories
	Backend *Backend
	Driver  store.Driver
}

// Create opens the store, ensures collections when configured and builds the repositories.
func (f *Factory) Create(ctx context.Context) (*Result, error) {
	driver, err := OpenDriver(ctx, f.cfg.Store, f.logger)
	if err != nil {
		return nil, err
	}
	for _, w := range f.wrap {
		driver = w(driver)
	}

	catalog := domain.NewCatalog()
	if f.cfg.Store.EnsureCollections {
		if err := EnsureCollections(ctx, driver, catalog, f.logger); err != nil {
			_ = driver.Close()
			return nil, err
		}
	}

	backend := NewBackend(driver, catalog, f.Settings(), f.logger)
	return &Result{
		Repos:   NewRepositories(backend),
		Backend: backend,
		Driver:  driver,
	}, nil
}

// OpenDriver opens the store named by cfg.Driver.
func OpenDriver(ctx context.Context, cfg config.StoreConfig, logger zerolog.Logger) (store.Driver, error) {
	logger = logger.With().Str("component", "store").Str("driver", cfg.Driver).Logger()

	switch cfg.Driver {
	case config.DriverMemory:
		return memory.NewDriver(logger), nil

	case config.DriverSQLite:
		sc := sqlite.DefaultConfig(cfg.Path)
		if cfg.Options.JournalMode != "" && cfg.Path != ":memory:" {
			sc.JournalMode = cfg.Options.JournalMode
		}
		if cfg.Options.BusyTimeout > 0 {
			sc.BusyTimeout = cfg.Options.BusyTimeout
		}
		if cfg.Options.CacheSize != 0 {
			sc.CacheSize = cfg.Options.CacheSize
		}
		if cfg.Options.SynchronousMode != "" {
			sc.SynchronousMode = cfg.Options.SynchronousMode
		}
		d, err := sqlite.Open(ctx, sc, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return d, nil

	case config.DriverPostgres:
		pc := postgres.DefaultConfig(cfg.URL)
		if cfg.Options.MaxConns > 0 {
			pc.MaxConns = cfg.Options.MaxConns
		}
		if cfg.Options.MinConns > 0 {
			pc.MinConns = cfg.Options.MinConns
		}
		if cfg.Options.ConnMaxLifetime > 0 {
			pc.MaxConnLifetime = cfg.Options.ConnMaxLifetime
		}
		if cfg.Options.ConnMaxIdleTime > 0 {
			pc.MaxConnIdleTime = cfg.Options.ConnMaxIdleTime
		}
		if cfg.Options.ConnectTimeout > 0 {
			pc.ConnectTimeout = cfg.Options.ConnectTimeout
		}
		d, err := postgres.Open(ctx, pc, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return d, nil

	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}

// EnsureCollections creates every collection and index of the catalog. Idempotent.
func EnsureCollections(ctx context.Context, driver store.Driver, catalog *schema.Catalog, logger zerolog.Logger) error {
	for _, spec := range catalog.All() {
		if err := driver.EnsureCollection(ctx, spec); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", spec.Collection(), err)
		}
		logger.Debug().
			Str("collection", spec.Collection()).
			Int("indexes", len(spec.Indexes())).
			Msg("collection ready")
	}
	return nil
}
