package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"shortly/internal/domain/audit"
	"shortly/internal/domain/core"
	"shortly/internal/domain/deletion"
	"shortly/internal/domain/notifications"
	"shortly/internal/domain/settings"
	"shortly/internal/platform/config"
	"shortly/internal/platform/db"
	"shortly/internal/platform/email"
	"shortly/internal/platform/report"
	audithandler "shortly/internal/transport/http/handlers/audit"
	authhandler "shortly/internal/transport/http/handlers/auth"
	deletionhandler "shortly/internal/transport/http/handlers/deletion"
	settingshandler "shortly/internal/transport/http/handlers/settings"
	"shortly/internal/transport/http/middleware"
)

type App struct {
	Config config.Config
	DB     *pgxpool.Pool
	Router http.Handler
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			pool.Close()
			return nil, err
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			pool.Close()
			return nil, err
		}
	}

	coreStore := core.NewStore(pool)
	auditSvc := audit.New(pool)
	settingsStore := settings.NewStore(pool)
	notifier := notifications.New(email.New(cfg), cfg.EmailFrom)
	reports := report.New(cfg.ReportDir)

	deletionSvc := deletion.NewService(
		deletion.NewStore(pool),
		coreStore,
		auditSvc,
		notifier,
		reports,
		deletion.Policy{
			ConfirmWindow: cfg.ConfirmWindow,
			DeletionDelay: cfg.DeletionDelay,
			AppBaseURL:    cfg.AppBaseURL,
		},
	)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))
	router.Use(middleware.Maintenance(settingsStore))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	router.Route("/api/v1", func(r chi.Router) {
		authHandler := authhandler.NewHandler(pool, cfg.JWTSecret)
		authHandler.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))

			deletionHandler := deletionhandler.NewHandler(deletionSvc)
			r.Route("/admin/users/{userID}/delete-requests", func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Post("/", deletionHandler.HandleIssue)
				r.Post("/confirm", deletionHandler.HandleConfirm)
				r.Post("/cancel", deletionHandler.HandleCancel)
				r.Get("/", deletionHandler.HandleList)
			})
			r.With(middleware.CronAuth(cfg.CronSecret)).Post("/jobs/deletion-sweep", deletionHandler.HandleSweep)

			auditHandler := audithandler.NewHandler(auditSvc)
			auditHandler.RegisterRoutes(r)

			settingsHandler := settingshandler.NewHandler(settingsStore, auditSvc)
			settingsHandler.RegisterRoutes(r)
		})
	})

	return &App{Config: cfg, DB: pool, Router: router}, nil
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}

func Run() {
	cfg := config.Load()

	ctx := context.Background()
	app, err := New(ctx, cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer app.Close()

	log.Printf("shortly admin server listening on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, app.Router); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
