package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"workhours/internal/domain/auth"
	"workhours/internal/domain/employee"
	"workhours/internal/domain/inspection"
	"workhours/internal/domain/ledger"
	"workhours/internal/domain/report"
	"workhours/internal/platform/alert"
	"workhours/internal/platform/clock"
	"workhours/internal/platform/config"
	"workhours/internal/platform/crypto"
	"workhours/internal/platform/email"
	"workhours/internal/platform/filestore"
	"workhours/internal/platform/jobs"
	"workhours/internal/platform/metrics"
	"workhours/internal/platform/retention"
	audithandler "workhours/internal/transport/http/handlers/audit"
	authhandler "workhours/internal/transport/http/handlers/auth"
	employeeshandler "workhours/internal/transport/http/handlers/employees"
	formshandler "workhours/internal/transport/http/handlers/forms"
	hourshandler "workhours/internal/transport/http/handlers/hours"
	jobshandler "workhours/internal/transport/http/handlers/jobs"
	reportshandler "workhours/internal/transport/http/handlers/reports"
	"workhours/internal/transport/http/middleware"
)

type App struct {
	Config      config.Config
	Location    *time.Location
	Router      http.Handler
	Ledger      *ledger.Service
	Employees   *employee.Service
	Auth        *auth.Service
	Reports     *report.Service
	Inspections *inspection.Service
	Jobs        *jobs.Service

	clock   clock.Clock
	backend *backend
}

type options struct {
	clock  clock.Clock
	mailer email.Mailer
	files  filestore.Store
	alerts alert.Notifier
}

type Option func(*options)

func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clock = clk }
}

func WithMailer(mailer email.Mailer) Option {
	return func(o *options) { o.mailer = mailer }
}

func WithFileStore(files filestore.Store) Option {
	return func(o *options) { o.files = files }
}

func WithAlerts(alerts alert.Notifier) Option {
	return func(o *options) { o.alerts = alerts }
}

// New wires storage, services and the HTTP router. Background jobs are not
// started; call Start for that.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	loc, err := clock.Location(cfg.BusinessTimezone)
	if err != nil {
		return nil, err
	}
	if o.clock == nil {
		o.clock = clock.System{Location: loc}
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = uuid.NewString()
		slog.Warn("JWT_SECRET not set, using a random secret; sessions end on restart")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 12 * time.Hour
	}
	if o.mailer == nil {
		if o.mailer, err = email.New(ctx, cfg); err != nil {
			return nil, fmt.Errorf("email: %w", err)
		}
	}
	sealer, err := crypto.NewSealer(cfg.DataEncryptionKey)
	if err != nil {
		return nil, err
	}
	if o.files == nil {
		if o.files, err = filestore.New(ctx, cfg, sealer); err != nil {
			return nil, fmt.Errorf("file store: %w", err)
		}
	}
	if o.alerts == nil {
		o.alerts = alert.New(cfg.SlackBotToken, cfg.SlackAlertChannel)
	}

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	guard := ledger.NewGuard(loc, cfg.LoggingWindow)
	app := &App{
		Config:      cfg,
		Location:    loc,
		Ledger:      ledger.NewService(b.ledger, b.employees, o.files, b.audit, guard, o.clock),
		Employees:   employee.NewService(b.employees, b.audit),
		Auth:        auth.NewService(b.users, cfg.JWTSecret, cfg.TokenTTL, o.clock, sealer),
		Reports:     report.NewService(b.ledger, o.files, o.mailer, cfg.EmailFrom, cfg.ReportRecipient, loc, o.clock),
		Inspections: inspection.NewService(inspection.DefaultCatalog(), o.mailer, cfg.EmailFrom, cfg.ReportRecipient, o.clock),
		Jobs:        jobs.New(b.runs, o.alerts, o.clock),
		clock:       o.clock,
		backend:     b,
	}

	if cfg.RunSeed {
		if err := app.seedAdmin(ctx); err != nil {
			b.close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	app.Router = app.routes()
	return app, nil
}

func (a *App) routes() http.Handler {
	cfg := a.Config
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(chimw.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes, cfg.MaxUploadBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))
	router.Use(middleware.SensitiveMutationRateLimit(cfg.LoginRateLimitPerMinute, cfg.LoginRateLimitPerMinute*3, time.Minute))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.backend.ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Handle("/metrics", metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		if cfg.APIRateLimitPerMinute > 0 {
			r.Use(middleware.RateLimit(cfg.APIRateLimitPerMinute, time.Minute))
		}
		authhandler.NewHandler(a.Auth, a.Employees, cfg.IsProduction()).RegisterRoutes(r)
		hourshandler.NewHandler(a.Ledger, a.Location, a.backend.keys).RegisterRoutes(r)
		reportshandler.NewHandler(a.Reports, a.Jobs, a.Location).RegisterRoutes(r)
		employeeshandler.NewHandler(a.Employees).RegisterRoutes(r)
		formshandler.NewHandler(a.Inspections).RegisterRoutes(r)
		audithandler.NewHandler(a.backend.audit).RegisterRoutes(r)
		jobshandler.NewHandler(a.backend.runs).RegisterRoutes(r)
	})

	router.Mount("/", spaHandler{staticPath: cfg.FrontendDir, indexPath: "index.html"})
	return router
}

// Start runs the job worker and the enabled schedules until ctx ends.
func (a *App) Start(ctx context.Context) error {
	a.Jobs.Start(ctx)
	if a.Config.WeeklyReportEnabled {
		hour, minute, err := a.Config.ReportClock()
		if err != nil {
			return err
		}
		schedule := jobs.Weekly{Weekday: a.Config.WeeklyReportWeekday, Hour: hour, Minute: minute, Location: a.Location}
		a.Jobs.Schedule(ctx, jobs.JobWeeklyReport, schedule, func(ctx context.Context) (any, error) {
			return a.Reports.SendWeekly(ctx, report.TriggerSchedule)
		})
	}
	if a.Config.RetentionEnabled {
		hour, minute, err := a.Config.RetentionClock()
		if err != nil {
			return err
		}
		a.Jobs.Schedule(ctx, jobs.JobRetention, jobs.Daily{Hour: hour, Minute: minute, Location: a.Location}, func(ctx context.Context) (any, error) {
			return a.applyRetention(ctx)
		})
	}
	return nil
}

// Purge deletes expired idempotency keys, finished job runs and audit events
// according to the configured retention, recording the run in the job history.
func (a *App) Purge(ctx context.Context) (retention.Result, error) {
	out, err := a.Jobs.RunNow(ctx, jobs.JobRetention, func(ctx context.Context) (any, error) {
		return a.applyRetention(ctx)
	})
	res, _ := out.(retention.Result)
	return res, err
}

func (a *App) applyRetention(ctx context.Context) (retention.Result, error) {
	policy := retention.Policy{
		Idempotency: a.Config.IdempotencyKeyTTL,
		JobRuns:     a.Config.JobRunRetention,
		Audit:       a.Config.AuditRetention,
	}
	res, err := retention.Apply(ctx, a.backend.purger, policy, a.clock.Now())
	if err != nil {
		return res, err
	}
	slog.Info("retention applied", "deleted", res.Deleted)
	return res, nil
}

// Now is the current instant according to the application clock.
func (a *App) Now() time.Time {
	return a.clock.Now()
}

func (a *App) Close() {
	if a.backend != nil {
		a.backend.close()
	}
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
func Run(ctx context.Context, cfg config.Config) error {
	app, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("workhours server listening", "addr", cfg.Addr, "storage", app.backend.name, "timezone", app.Location.String())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	slog.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
