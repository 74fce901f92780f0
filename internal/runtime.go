package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/starford/habitflow/internal/catalog"
	"github.com/starford/habitflow/internal/habitservice"
	"github.com/starford/habitflow/internal/habitstore"
	"github.com/starford/habitflow/internal/index"
	"github.com/starford/habitflow/internal/ledger"
	"github.com/starford/habitflow/internal/models"
	"github.com/starford/habitflow/internal/storage"
)

// runtime is the set of components every command shares.
type runtime struct {
	provider storage.Provider
	store    *habitstore.Store
	idx      index.HabitIndex
	svc      *habitservice.Service
	// watchFile is the document path when it lives on the local filesystem.
	watchFile string
	closers   []io.Closer
}

func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", out: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func newLogger(cfg *Config, w io.Writer) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// bootstrap opens storage, the optional index and the state container.
// svcOpts are appended to the options derived from cfg.
func bootstrap(ctx context.Context, cfg *Config, logger *slog.Logger, svcOpts ...habitservice.Option) (*runtime, error) {
	rt := &runtime{}

	provider, err := newProvider(ctx, cfg.Storage, rt)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.provider = provider

	extras, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("init catalog: %w", err)
	}
	if len(extras) > 0 {
		logger.Info("Catalog loaded", slog.String("path", cfg.Catalog.Path), slog.Int("habits", len(extras)))
	}

	rt.store = habitstore.New(provider,
		habitstore.WithKey(cfg.Storage.Key),
		habitstore.WithLogger(logger),
		habitstore.WithDefaults(func() []models.Habit {
			return append(ledger.DefaultHabits(), extras...)
		}),
	)

	loc, err := cfg.Ledger.Location()
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("ledger timezone: %w", err)
	}

	opts := []habitservice.Option{
		habitservice.WithLogger(logger),
		habitservice.WithClock(ledger.SystemClock{Location: loc}),
		habitservice.WithThreshold(cfg.Ledger.Threshold),
		habitservice.WithStreakOptions(ledger.WithMaxLookback(cfg.Ledger.MaxLookback)),
	}

	if cfg.SQLite.Path != "" {
		db, err := index.Open(cfg.SQLite.Path)
		if err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("init index: %w", err)
		}
		rt.closers = append(rt.closers, db)
		rt.idx = db
		opts = append(opts, habitservice.WithMirror(db))
	}

	rt.svc = habitservice.New(ctx, rt.store, append(opts, svcOpts...)...)
	return rt, nil
}

func newProvider(ctx context.Context, cfg StorageConfig, rt *runtime) (storage.Provider, error) {
	switch cfg.Driver {
	case StorageDriverRedis:
		r, err := storage.NewRedis(ctx, storage.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("init redis storage: %w", err)
		}
		rt.closers = append(rt.closers, r)
		return r, nil
	default:
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		fs, err := storage.NewFS(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		if cfg.Watch {
			file, err := fs.PathFor(cfg.Key)
			if err != nil {
				return nil, fmt.Errorf("storage key: %w", err)
			}
			rt.watchFile = file
		}
		return fs, nil
	}
}
