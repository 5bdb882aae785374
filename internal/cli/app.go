package cli

import (
	"fmt"
	"log"

	"tasky/internal/config"
	"tasky/internal/repository"
	"tasky/internal/service"
	"tasky/internal/store"
	"tasky/internal/store/postgrest"
	"tasky/internal/store/sqlstore"
)

// app holds what a command needs for one run.
type app struct {
	cfg     config.Config
	client  store.Client
	closer  func() error
	local   *repository.Store
	tasks   *service.TaskService
	users   *service.UserService
	cascade *service.CascadeService
	audit   *service.AuditService
}

func openApp(opts *options) (*app, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return newApp(cfg)
}

func newApp(cfg config.Config) (*app, error) {
	a := &app{cfg: cfg, closer: func() error { return nil }}

	switch cfg.StoreDriver {
	case config.DriverPostgREST:
		a.client = postgrest.New(cfg.SupabaseURL, cfg.SupabaseKey, cfg.HTTPTimeout)
	case config.DriverPostgres:
		s, err := sqlstore.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.client, a.closer = s, s.Close
	case config.DriverSQLite:
		db, err := repository.NewDB(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db: %w", err)
		}
		s := repository.NewStore(db)
		a.client, a.closer, a.local = s, s.Close, s
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	var fallback service.Deleter
	if cfg.FallbackURL != "" && cfg.FallbackAPIKey != "" {
		fallback = postgrest.NewRawDeleter(cfg.FallbackURL, cfg.FallbackAPIKey, cfg.HTTPTimeout)
	}

	a.tasks = service.NewTaskService(a.client)
	a.users = service.NewUserService(a.client)
	a.cascade = service.NewCascadeService(a.client, fallback)
	a.audit = service.NewAuditService(a.client)
	return a, nil
}

func (a *app) Close() {
	if err := a.closer(); err != nil {
		log.Printf("[warn] close store: %v", err)
	}
}
