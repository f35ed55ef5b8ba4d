package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/bryanwahyu/career-insight/internal/application"
	appinsights "github.com/bryanwahyu/career-insight/internal/application/insights"
	"github.com/bryanwahyu/career-insight/internal/config"
	"github.com/bryanwahyu/career-insight/internal/domain/insights"
	"github.com/bryanwahyu/career-insight/internal/domain/profiles"
	"github.com/bryanwahyu/career-insight/internal/infra/ai/generator"
	"github.com/bryanwahyu/career-insight/internal/infra/ai/openai"
	"github.com/bryanwahyu/career-insight/internal/infra/db/memory"
	mysqlp "github.com/bryanwahyu/career-insight/internal/infra/db/mysql"
	"github.com/bryanwahyu/career-insight/internal/infra/db/postgres"
	"github.com/bryanwahyu/career-insight/internal/infra/httpserver"
	minioStore "github.com/bryanwahyu/career-insight/internal/infra/storage"
	"github.com/bryanwahyu/career-insight/internal/logger"
	"github.com/bryanwahyu/career-insight/internal/middleware"
)

func main() {
	// .env opsional, untuk secret lokal
	_ = godotenv.Load()

	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		logrus.Fatalf("config load error: %v", err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		logrus.Fatalf("logger init error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}
	defer st.close()

	if cfg.AI.APIKey == "" {
		log.Warn("ai.apiKey is empty, generation requests will fail")
	}
	gen := generator.New(
		openai.NewClient(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model),
		generator.WithTimeout(cfg.AI.Timeout),
		generator.WithRateLimit(cfg.AI.RPM, cfg.AI.Burst),
	)

	svc := &appinsights.Service{
		Repo:              st.reports,
		Profiles:          st.profiles,
		Generator:         gen,
		Clock:             application.SystemClock{},
		Log:               log,
		Metrics:           middleware.WorkflowMetrics{},
		TxTimeout:         cfg.Insights.TxTimeout,
		RefreshAfter:      cfg.Insights.RefreshAfter,
		GenerationTimeout: cfg.AI.Timeout,
	}

	// archive opsional
	if cfg.Minio.Enabled {
		archive, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Fatalf("minio init error: %v", err)
		}
		svc.Archive = archive
	}

	if cfg.Refresher.Enabled {
		r := &appinsights.Refresher{
			Service:     svc,
			Interval:    cfg.Refresher.Interval,
			BatchSize:   cfg.Refresher.BatchSize,
			Concurrency: cfg.Refresher.Concurrency,
		}
		go func() {
			if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("refresher stopped")
			}
		}()
		log.WithField("interval", cfg.Refresher.Interval).Info("background refresher started")
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate)
	defer limiter.Stop()

	mux := chi.NewRouter()
	mux.Mount("/", httpserver.NewRouter(svc, httpserver.Options{
		APIKeys:        cfg.Auth.APIKeys,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RateLimiter:    limiter,
		Checkers:       st.checkers,
		Log:            log,
	}))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// must outlast generation plus the tx budget
		WriteTimeout: cfg.AI.Timeout + cfg.Insights.TxTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("server listening on %s (database=%s)", addr, cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	log.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Errorf("shutdown error: %v", err)
	}
}

type store struct {
	reports  insights.Repository
	profiles profiles.Repository
	checkers map[string]middleware.HealthChecker
	close    func()
}

func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	var (
		db      *sql.DB
		err     error
		migrate func(context.Context, *sql.DB) error
		st      = &store{close: func() {}}
	)

	switch cfg.Database.Driver {
	case "memory":
		m := memory.New()
		st.reports, st.profiles = m, m
		return st, nil
	case "postgres":
		db, err = postgres.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, err
		}
		st.reports, st.profiles = postgres.NewInsightRepository(db), postgres.NewProfileRepository(db)
		migrate = postgres.Migrate
	case "mysql":
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, err
		}
		st.reports, st.profiles = mysqlp.NewInsightRepository(db), mysqlp.NewProfileRepository(db)
		migrate = mysqlp.Migrate
	default:
		return nil, fmt.Errorf("unknown database driver %q (allowed: mysql, postgres, memory)", cfg.Database.Driver)
	}

	st.close = func() { _ = db.Close() }
	st.checkers = map[string]middleware.HealthChecker{"database": &middleware.DatabaseHealthChecker{DB: db}}
	if cfg.Database.Migrate {
		if err := migrate(ctx, db); err != nil {
			st.close()
			return nil, err
		}
	}
	return st, nil
}
