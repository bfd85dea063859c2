package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/Strob0t/foodshare/internal/adapter/blobfs"
	fshttp "github.com/Strob0t/foodshare/internal/adapter/http"
	fsnats "github.com/Strob0t/foodshare/internal/adapter/nats"
	"github.com/Strob0t/foodshare/internal/adapter/natskv"
	fsotel "github.com/Strob0t/foodshare/internal/adapter/otel"
	"github.com/Strob0t/foodshare/internal/adapter/postgres"
	"github.com/Strob0t/foodshare/internal/adapter/ristretto"
	"github.com/Strob0t/foodshare/internal/adapter/tiered"
	"github.com/Strob0t/foodshare/internal/adapter/ws"
	"github.com/Strob0t/foodshare/internal/clock"
	"github.com/Strob0t/foodshare/internal/config"
	"github.com/Strob0t/foodshare/internal/domain/delivery"
	"github.com/Strob0t/foodshare/internal/domain/reward"
	"github.com/Strob0t/foodshare/internal/logger"
	"github.com/Strob0t/foodshare/internal/middleware"
	"github.com/Strob0t/foodshare/internal/resilience"
	"github.com/Strob0t/foodshare/internal/service"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLog := logger.New(cfg.Logging)
	defer closeLog.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"pg_max_conns", cfg.Postgres.MaxConns,
		"otel", cfg.OTEL.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability ---

	shutdownOTEL, err := fsotel.Setup(ctx, cfg.OTEL, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTEL(shutdownCtx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()
	metrics, err := fsotel.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---

	// PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	// NATS
	queue, err := fsnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()
	queue.SetBreaker(resilience.NewBreaker(5, 30*time.Second, clock.Real{}))

	cacheKV, err := queue.KeyValue(ctx, cfg.Cache.L2Bucket, cfg.Cache.L2TTL)
	if err != nil {
		return fmt.Errorf("cache bucket: %w", err)
	}
	idemKV, err := queue.KeyValue(ctx, cfg.NATS.IdempotencyBucket, cfg.NATS.IdempotencyTTL)
	if err != nil {
		return fmt.Errorf("idempotency bucket: %w", err)
	}

	// Cache: ristretto L1 in front of NATS KV L2
	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB)
	if err != nil {
		return fmt.Errorf("l1 cache: %w", err)
	}
	defer l1.Close()
	appCache := tiered.New(l1, natskv.New(cacheKV), cfg.Cache.LeaderboardTTL)

	// Blob storage
	blobs, err := blobfs.New(cfg.Storage.Dir, cfg.Storage.PublicBaseURL)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	taskPool, err := loadTaskPool(cfg.Delivery.PoolFile)
	if err != nil {
		return fmt.Errorf("delivery pool: %w", err)
	}

	// --- Services ---
	hub := ws.NewHub(cfg.Server.CORSOrigin)
	store := postgres.NewStore(pool)

	uploadSvc := service.NewUploadService(blobs)
	profileSvc := service.NewProfileService(store, uploadSvc)
	donationSvc := service.NewDonationService(store, uploadSvc, hub)
	donationSvc.SetMetrics(metrics)
	orderSvc := service.NewOrderService(store, queue, hub, cfg.Rewards.DeliveryFee)
	orderSvc.SetMetrics(metrics)
	rewardSvc := service.NewRewardService(store, appCache, queue, hub, reward.DefaultCatalog(), cfg.Cache.LeaderboardTTL, cfg.Rewards.LeaderboardLimit)
	rewardSvc.SetMetrics(metrics)
	deliverySvc := service.NewDeliveryService(taskPool.Tasks, cfg.Delivery, clock.Real{}, hub, queue)
	deliverySvc.SetMetrics(metrics)
	defer deliverySvc.CloseAll()

	// Start NATS subscribers
	cancelCredit, err := rewardSvc.StartCreditSubscriber(ctx)
	if err != nil {
		return fmt.Errorf("credit subscriber: %w", err)
	}
	defer cancelCredit()

	cancelNotifier, err := orderSvc.StartDonorNotifier(ctx)
	if err != nil {
		return fmt.Errorf("donor notifier: %w", err)
	}
	defer cancelNotifier()

	// --- HTTP ---
	handlers := &fshttp.Handlers{
		Profiles:       profileSvc,
		Donations:      donationSvc,
		Orders:         orderSvc,
		Rewards:        rewardSvc,
		Uploads:        uploadSvc,
		Delivery:       deliverySvc,
		MaxUploadBytes: cfg.Storage.MaxUploadMB << 20,
	}

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopCleanup := limiter.StartCleanup(cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
	defer stopCleanup()

	r := chi.NewRouter()

	// Middleware
	r.Use(fsotel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(fshttp.CORS(cfg.Server.CORSOrigin))
	r.Use(middleware.RequestID)
	r.Use(fshttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(fshttp.SecurityHeaders)
	r.Use(middleware.UserIdentity)

	r.Get("/health", healthHandler(store, queue, hub, deliverySvc))
	r.Get("/ws", hub.HandleWS)
	r.Handle("/storage/*", http.StripPrefix("/storage/", http.FileServer(http.Dir(blobs.Root()))))

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(30 * time.Second))
		r.Use(limiter.Handler)
		fshttp.MountRoutes(r, handlers, middleware.Idempotency(natskv.New(idemKV), cfg.NATS.IdempotencyTTL))
	})

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		deliverySvc.CloseAll()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := queue.Drain(); err != nil {
			slog.Warn("nats drain", "error", err)
		}
		return nil
	})
	return g.Wait()
}

// loadTaskPool reads the delivery task pool, falling back to the built-in one.
func loadTaskPool(path string) (*delivery.Pool, error) {
	if path == "" {
		return delivery.DefaultPool()
	}
	return delivery.LoadPool(path)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type connChecker interface {
	IsConnected() bool
	PublishCircuit() string
}

// healthHandler reports dependency status. Postgres or NATS being down
// turns the response into 503.
func healthHandler(db pinger, nc connChecker, hub *ws.Hub, deliverySvc *service.DeliveryService) http.HandlerFunc {
	type healthStatus struct {
		Status           string `json:"status"`
		Postgres         string `json:"postgres"`
		NATS             string `json:"nats"`
		PublishCircuit   string `json:"publish_circuit"`
		WSConnections    int    `json:"ws_connections"`
		DeliverySessions int    `json:"delivery_sessions"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := healthStatus{
			Status:           "ok",
			Postgres:         "ok",
			NATS:             "ok",
			PublishCircuit:   nc.PublishCircuit(),
			WSConnections:    hub.ConnectionCount(),
			DeliverySessions: deliverySvc.SessionCount(),
		}
		code := http.StatusOK
		if err := db.Ping(ctx); err != nil {
			status.Postgres, status.Status, code = "down", "degraded", http.StatusServiceUnavailable
		}
		if !nc.IsConnected() {
			status.NATS, status.Status, code = "down", "degraded", http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	}
}
