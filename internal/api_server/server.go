package apiserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/AirSaas/flash-reports-poc-sub000/internal/cache"
	"github.com/AirSaas/flash-reports-poc-sub000/internal/compress"
	"github.com/AirSaas/flash-reports-poc-sub000/internal/config"
	"github.com/AirSaas/flash-reports-poc-sub000/internal/genai"
	"github.com/AirSaas/flash-reports-poc-sub000/internal/handlers"
	"github.com/AirSaas/flash-reports-poc-sub000/internal/iteration"
	"github.com/AirSaas/flash-reports-poc-sub000/internal/jobs"
	"github.com/AirSaas/flash-reports-poc-sub000/internal/projects"
	"github.com/AirSaas/flash-reports-poc-sub000/internal/service"
	"github.com/AirSaas/flash-reports-poc-sub000/internal/storage"
	"github.com/AirSaas/flash-reports-poc-sub000/internal/store"
	"github.com/AirSaas/flash-reports-poc-sub000/pkg/metrics"
	"github.com/AirSaas/flash-reports-poc-sub000/pkg/middleware"
)

const (
	gracefulShutdownTimeout = 5 * time.Second
	queueStopTimeout        = 30 * time.Second
)

type Server struct {
	cfg      *config.Config
	store    store.Store
	listener net.Listener
}

// New returns a new instance of a flash-reports API server.
func New(
	cfg *config.Config,
	store store.Store,
	listener net.Listener,
) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		listener: listener,
	}
}

func (s *Server) Run(ctx context.Context) error {
	zap.S().Named("api_server").Info("Initializing API server")

	router := chi.NewRouter()

	metricMiddleware := metrics.NewMiddleware("api_server")
	metricMiddleware.MustRegisterDefault()

	router.Use(
		metricMiddleware.Handler,
		cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "PUT", "POST", "DELETE", "HEAD", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: false,
			MaxAge:           300,
		}),
		middleware.RequestID,
		middleware.Logger(),
		chiMiddleware.Recoverer,
	)

	objectStore, err := s.newObjectStore()
	if err != nil {
		return fmt.Errorf("failed to initialize object store: %w", err)
	}

	aiClient := genai.NewClient(s.cfg)
	fetcher := projects.NewClient(s.cfg, cache.New(s.cfg.Projects.CacheTTL))
	compressor := compress.New(compressOptions(s.cfg.Pipeline))

	runner := jobs.NewRunner(s.store, compressor, aiClient, aiClient, objectStore, fetcher, s.cfg.Pipeline)

	queue, cleanup, err := s.newQueue(ctx, runner)
	if err != nil {
		return fmt.Errorf("failed to initialize job queue: %w", err)
	}
	defer cleanup()

	if err := queue.Start(ctx); err != nil {
		return fmt.Errorf("failed to start job queue: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), queueStopTimeout)
		defer cancel()
		if err := queue.Stop(stopCtx); err != nil {
			zap.S().Named("api_server").Warnw("failed to stop job queue", "error", err)
		}
	}()

	zap.S().Named("api_server").Infof("Job queue initialized (%s)", s.cfg.Service.QueueType)

	jobClient := jobs.NewClient(s.store, queue, s.cfg.Pipeline)
	controller := iteration.NewController(jobClient, s.store, s.cfg.Pipeline)
	reportService := service.NewReportService(jobClient, controller, s.store, fetcher)

	h := handlers.New(reportService)
	h.Routes(router)
	router.Handle("/metrics", promhttp.Handler())

	srv := http.Server{Addr: s.cfg.Service.Address, Handler: router}

	go func() {
		<-ctx.Done()
		zap.S().Named("api_server").Infof("Shutdown signal received: %s", ctx.Err())
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
		zap.S().Named("api_server").Info("api server terminated")
	}()

	zap.S().Named("api_server").Infof("Listening on %s...", s.listener.Addr().String())
	if err := srv.Serve(s.listener); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) newObjectStore() (storage.ObjectStore, error) {
	if s.cfg.Storage.AccessKey == "" {
		zap.S().Named("api_server").Warn("no object store credentials, storing artifacts in memory")
		return storage.NewMemoryStore(s.cfg.Service.BaseUrl + "/artifacts"), nil
	}

	return storage.NewMinioStore(
		storage.WithEndpoint(s.cfg.Storage.Endpoint),
		storage.WithBucket(s.cfg.Storage.Bucket),
		storage.WithAccessKey(s.cfg.Storage.AccessKey),
		storage.WithSecretKey(s.cfg.Storage.SecretKey),
		storage.WithSSL(s.cfg.Storage.UseSSL),
	)
}

// newQueue builds the trigger queue. Production runs on river over postgres;
// everything else falls back to the in-process dispatcher.
func (s *Server) newQueue(ctx context.Context, runner *jobs.Runner) (jobs.Queue, func(), error) {
	if s.cfg.Service.QueueType != "river" || s.cfg.Database.Type != "pgsql" {
		return jobs.NewMemoryQueue(runner, s.cfg.Service.QueueWorkers), func() {}, nil
	}

	dsn := fmt.Sprintf("host=%s user=%s password=%s port=%d dbname=%s",
		s.cfg.Database.Hostname,
		s.cfg.Database.User,
		s.cfg.Database.Password,
		s.cfg.Database.Port,
		s.cfg.Database.Name,
	)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse pgx config: %w", err)
	}

	// Pool sized for job processing plus LISTEN/NOTIFY
	poolCfg.MaxConns = 20
	poolCfg.MinConns = 5
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	dbPool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	queue, err := jobs.NewRiverQueue(dbPool, runner, s.cfg.Service.QueueWorkers)
	if err != nil {
		dbPool.Close()
		return nil, nil, err
	}

	return queue, dbPool.Close, nil
}

func compressOptions(pipeline *config.PipelineConfig) compress.Options {
	opts := compress.DefaultOptions()
	opts.LongTextLimit = pipeline.LongTextLimit
	opts.EscalatedTextLimit = pipeline.EscalatedTextLimit
	opts.RecordFloor = pipeline.RecordFloor
	opts.RecordSafetyCap = pipeline.RecordSafetyCap
	return opts
}
