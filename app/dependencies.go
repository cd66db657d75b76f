package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/cbc-agent/analytics-ingest/config"
	"github.com/cbc-agent/analytics-ingest/internal/geo"
	"github.com/cbc-agent/analytics-ingest/internal/observability"
	"github.com/cbc-agent/analytics-ingest/internal/pipeline"
	"github.com/cbc-agent/analytics-ingest/internal/privacy"
	"github.com/cbc-agent/analytics-ingest/internal/webhook"
	"github.com/cbc-agent/analytics-ingest/privacytoken"
	"github.com/cbc-agent/analytics-ingest/repositories"
	"github.com/cbc-agent/analytics-ingest/repositories/postgres"
	"github.com/cbc-agent/analytics-ingest/services/audit"
	"github.com/cbc-agent/analytics-ingest/services/consent"
	"github.com/cbc-agent/analytics-ingest/services/guestdata"
	"github.com/cbc-agent/analytics-ingest/services/profile"
	"github.com/cbc-agent/analytics-ingest/services/retention"
)

// Dependencies holds all application dependencies. This is the central wiring
// point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config          *config.Config
	DB              *postgres.DB
	Logger          *zap.Logger
	Metrics         *observability.Metrics
	MetricsRegistry *prometheus.Registry

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Repos     *repositories.Repositories
	TxManager repositories.TransactionManager

	// Privacy pipeline
	Pipeline      *pipeline.Pipeline
	Authenticator *webhook.Authenticator
	Tokens        *privacytoken.Issuer

	// Services
	Audit     *audit.AuditService
	Consents  *consent.ConsentService
	Profiles  *profile.ProfileService
	GuestData *guestdata.GuestDataService
	Purge     *retention.PurgeJob // nil when the purge interval is 0
}

// NewDependencies connects to the databases, creates the schema and wires every
// component.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	factory, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps, err := NewDependenciesFromFactory(cfg, factory, logger)
	if err != nil {
		_ = factory.Close()
		return nil, err
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// NewDependenciesFromFactory wires every component over an open repository factory
func NewDependenciesFromFactory(cfg *config.Config, factory *postgres.RepositoryFactory, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:      cfg,
		Logger:      logger,
		RepoFactory: factory,
		DB:          factory.GetDB(),
	}

	if err := deps.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	deps.initRepositories()
	deps.initPipeline()
	deps.initServices()

	return deps, nil
}

// initDatabase opens the connection pools and creates the schema
func initDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*postgres.RepositoryFactory, error) {
	factory, err := postgres.NewRepositoryFactory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create repository factory: %w", err)
	}

	if err := factory.InitSchema(ctx); err != nil {
		_ = factory.Close()
		return nil, err
	}

	return factory, nil
}

// initMetrics registers the service collectors with a private registry
func (d *Dependencies) initMetrics() error {
	d.Metrics = observability.NewMetrics()
	d.MetricsRegistry = prometheus.NewRegistry()

	if err := d.MetricsRegistry.Register(collectors.NewGoCollector()); err != nil {
		return err
	}
	if err := d.MetricsRegistry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return err
	}
	return d.Metrics.Register(d.MetricsRegistry)
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	d.Repos = d.RepoFactory.NewRepositories()
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

// initPipeline builds the privacy pipeline and its collaborators
func (d *Dependencies) initPipeline() {
	cfg := d.Config

	opts := []pipeline.Option{pipeline.WithMetrics(d.Metrics)}
	if cfg.Geo.Enabled {
		opts = append(opts, pipeline.WithGeoLocator(geo.NewClient(cfg.Geo.BaseURL, cfg.Geo.Timeout)))
		d.Logger.Info("geo enrichment enabled", zap.String("base_url", cfg.Geo.BaseURL))
	}

	d.Pipeline = pipeline.New(
		pipeline.Config{
			SourceApp:      cfg.Ingest.SourceApp,
			StoreRawIP:     cfg.Ingest.StoreRawIP,
			PersistTimeout: cfg.Privacy.PersistTimeout,
			GeoTimeout:     cfg.Geo.Timeout,
		},
		privacy.NewAnonymizer(cfg.Privacy.IPSalt),
		privacy.NewRedactor(privacy.NewKeySet(cfg.Privacy.SensitiveKeys...)),
		privacy.NewRetentionTable(cfg.Privacy.DefaultRetentionDays),
		d.Repos.Events,
		d.Logger,
		opts...,
	)

	d.Authenticator = webhook.NewAuthenticator(cfg.Privacy.HMACSecret, cfg.Privacy.WebhookMaxSkew, d.Logger)
	d.Tokens = privacytoken.NewIssuer(privacytoken.Config{
		Secret: cfg.Privacy.TokenSecret,
		TTL:    cfg.Privacy.TokenTTL,
	})

	if cfg.Ingest.StoreRawIP {
		d.Logger.Warn("raw-IP mode enabled, client addresses are stored unanonymized")
	}
}

// initServices creates the audit trail, guest services and the purge job
func (d *Dependencies) initServices() {
	cfg := d.Config

	d.Audit = audit.NewAuditService(d.Repos.AuditLogs, d.Logger, audit.DefaultConfig())
	d.Consents = consent.NewConsentService(
		d.TxManager,
		d.Repos.Consents,
		d.Repos.Events,
		privacy.NewRetentionTable(cfg.Privacy.DefaultRetentionDays),
		d.Audit,
		d.Logger,
	)
	d.Profiles = profile.NewProfileService(cfg.Ingest.CollectPII, d.Repos.Consents, d.Repos.Profiles, d.Audit, d.Logger)
	d.GuestData = guestdata.NewGuestDataService(d.TxManager, d.Repos, d.Tokens, d.Audit, d.Metrics, d.Logger)

	if cfg.Privacy.RetentionPurgeInterval > 0 {
		purgeCfg := retention.DefaultConfig()
		purgeCfg.Interval = cfg.Privacy.RetentionPurgeInterval
		d.Purge = retention.NewPurgeJob(d.Repos.Events, d.Audit, d.Metrics, d.Logger, purgeCfg)
	}
}

// Start starts the background workers
func (d *Dependencies) Start() error {
	if err := d.Audit.Start(); err != nil {
		return fmt.Errorf("failed to start audit service: %w", err)
	}
	if d.Purge != nil {
		if err := d.Purge.Start(); err != nil {
			return fmt.Errorf("failed to start retention purge job: %w", err)
		}
	}
	return nil
}

// Close gracefully shuts down all dependencies. Background workers stop before the
// databases close so pending audit entries are flushed.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	timeout := d.Config.Server.ShutdownTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	var errs []error

	if d.Purge != nil {
		if err := d.Purge.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop retention purge job: %w", err))
		}
	}
	if d.Audit != nil {
		if err := d.Audit.Stop(timeout); err != nil && !errors.Is(err, audit.ErrNotRunning) {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	return errors.Join(errs...)
}
