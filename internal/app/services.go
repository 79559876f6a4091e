package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/briangreenhill/moto/internal/backend"
	"github.com/briangreenhill/moto/internal/config"
	"github.com/briangreenhill/moto/internal/navigation"
	"github.com/briangreenhill/moto/internal/ride"
	"github.com/briangreenhill/moto/internal/store"
	"github.com/briangreenhill/moto/internal/units"
)

var (
	ErrBackendDisabled = errors.New("backend is not configured, set MOTO_POSTGRES_URL")
	ErrUnknownStore    = errors.New("unknown store")
)

// Services wires the app together from configuration. Backend is nil when
// no Postgres URL is configured.
type Services struct {
	Config  config.Config
	Logger  *slog.Logger
	Units   units.System
	Library *ride.Library
	Session *Session
	Hub     *Hub
	Routes  *navigation.GPXProvider
	Backend *backend.Client

	closers []func() error
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Services, error) {
	system, err := units.ParseSystem(cfg.Units)
	if err != nil {
		return nil, err
	}

	s := &Services{
		Config: cfg,
		Logger: logger,
		Units:  system,
		Hub:    NewHub(logger),
	}

	kv, err := s.openStore(ctx)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Library = ride.NewLibrary(kv, logger)
	if err := s.Library.Load(ctx); err != nil {
		s.Close()
		return nil, err
	}

	s.Routes = &navigation.GPXProvider{}
	if cfg.RoutesFile != "" {
		if s.Routes, err = LoadRoutes(cfg.RoutesFile, cfg.CruiseSpeedKmh); err != nil {
			s.Close()
			return nil, err
		}
	}

	recorder := ride.NewRecorder(logger, ride.WithMaxHorizontalAccuracy(cfg.MaxAccuracy))
	tracker := navigation.NewTracker(logger)
	s.Session = NewSession(logger, s.Library, recorder, tracker, s.Routes, navigation.RouteOptions{}, s.Hub)

	if cfg.PostgresURL != "" {
		pool, err := backend.Connect(ctx, cfg.PostgresURL)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() error {
			pool.Close()
			return nil
		})
		if err := backend.Migrate(ctx, pool); err != nil {
			s.Close()
			return nil, err
		}
		s.Backend = backend.NewClient(pool, cfg.JWTSecret, logger)
	}

	return s, nil
}

func (s *Services) openStore(ctx context.Context) (store.KV, error) {
	switch s.Config.Store {
	case "", "sqlite":
		db, err := store.OpenSQLite(s.Config.DBPath, s.Logger)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		return db, nil
	case "redis":
		r := store.ConnectRedis(s.Config.RedisAddr, s.Config.RedisPassword)
		if r == nil {
			return nil, fmt.Errorf("redis store needs MOTO_REDIS_ADDR")
		}
		s.closers = append(s.closers, r.Close)
		if err := r.Ping(ctx); err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return r, nil
	case "memory":
		return store.NewMemory(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStore, s.Config.Store)
}

// LoadRoutes reads a GPX file of routes and waypoints for the planner.
func LoadRoutes(path string, cruiseSpeedKmh float64) (*navigation.GPXProvider, error) {
	data, err := readGPXFile(path)
	if err != nil {
		return nil, err
	}
	return navigation.LoadGPX(data, cruiseSpeedKmh)
}

// RequireBackend returns the backend client or ErrBackendDisabled.
func (s *Services) RequireBackend() (*backend.Client, error) {
	if s.Backend == nil {
		return nil, ErrBackendDisabled
	}
	return s.Backend, nil
}

func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func readGPXFile(gpxFile string) ([]byte, error) {
	info, err := os.Stat(gpxFile)
	if err != nil {
		return nil, fmt.Errorf("error reading gpx file: %w", err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("gpx file is a directory")
	}

	return os.ReadFile(gpxFile)
}
