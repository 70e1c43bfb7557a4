package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kanzey-ticketing/internal/auth"
	"kanzey-ticketing/internal/config"
	"kanzey-ticketing/internal/database"
	"kanzey-ticketing/internal/database/migrations"
	"kanzey-ticketing/internal/entry"
	inventorydb "kanzey-ticketing/internal/inventory/db"
	"kanzey-ticketing/internal/kafka"
	"kanzey-ticketing/internal/logger"
	"kanzey-ticketing/internal/monitoring"
	"kanzey-ticketing/internal/notify"
	"kanzey-ticketing/internal/payment"
	"kanzey-ticketing/internal/payment/storage"
	"kanzey-ticketing/internal/payment_api"
	"kanzey-ticketing/internal/purchase"
	lockredis "kanzey-ticketing/internal/purchase/redis"
	"kanzey-ticketing/internal/reconcile"
	"kanzey-ticketing/internal/sse"
	ticketdb "kanzey-ticketing/internal/tickets/db"
	tickets "kanzey-ticketing/internal/tickets/service"
	"kanzey-ticketing/internal/tickets/ticket_api"
	"kanzey-ticketing/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(logger.Options{Dir: cfg.Log.Dir, Level: logger.ParseLevel(cfg.Log.Level)})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	if err := cfg.Validate(); err != nil {
		log.Fatal("CONFIG", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.AutoMigrate {
		if err := migrate(ctx, cfg.Database, log); err != nil {
			log.Fatal("MIGRATE", err.Error())
		}
	}

	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	verifyLock := lockredis.NewRedis(redisClient, cfg.Ticketing.VerifyLockTTL, log)
	if err := verifyLock.Ping(ctx); err != nil {
		// the verify path polls without the lock when Redis is down
		log.Warn("REDIS", fmt.Sprintf("redis at %s unavailable: %v", cfg.Redis.Addr, err))
	}

	notifier, closeKafka := newNotifier(ctx, cfg.Kafka, log)
	defer closeKafka()

	verifier, err := auth.NewVerifier(ctx, cfg.Auth)
	if err != nil {
		log.Fatal("AUTH", err.Error())
	}

	inventory := &inventorydb.DB{Bun: bunDB}
	ticketStore := &ticketdb.DB{Bun: bunDB, Counters: inventory}
	attempts := storage.NewBunStore(bunDB, log)
	gateway := payment.NewGateway(cfg.Payment, cfg.Ticketing.FrontendURL, &http.Client{Timeout: cfg.Payment.Timeout}, log)
	stream := sse.NewPaymentEventEmitter()

	purchases := purchase.NewService(ticketStore, inventory, gateway, attempts, notifier, purchase.Options{
		QRBaseURL:      cfg.Ticketing.QRBaseURL,
		CallbackURL:    cfg.Ticketing.CallbackURL,
		RedirectURL:    cfg.Ticketing.RedirectURL,
		PaymentTimeout: cfg.Payment.Timeout,
		MaxQuantity:    cfg.Ticketing.MaxQuantity,
	}, log)
	reconciler := reconcile.NewService(ticketStore, inventory, gateway, verifyLock, attempts, notifier, stream, log)
	validator := entry.NewValidator(ticketStore, inventory, cfg.Ticketing.VenueTimezone, log)
	ticketService := tickets.NewTicketService(ticketStore, inventory, notifier, tickets.Options{
		QRBaseURL:        cfg.Ticketing.QRBaseURL,
		CancelCutoff:     cfg.Ticketing.CancelCutoff,
		DefaultPageLimit: cfg.Ticketing.DefaultPageLimit,
	}, log)

	authn := auth.Middleware(verifier, log)
	paymentHandler := payment_api.NewHandler(purchases, reconciler, ticketService, stream, log)
	ticketHandler := ticket_api.NewHandler(ticketService, validator, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(log.RequestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", healthz(attempts, verifyLock))
	r.Handle("/metrics", monitoring.Handler())
	r.Mount("/api/payments", paymentHandler.Routes(authn))
	r.Mount("/api/tickets", ticketHandler.Routes(authn))

	server := &http.Server{
		Addr:        cfg.Server.Port,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		// no WriteTimeout: the payment status stream stays open
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", "ticket service listening on "+cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("SERVER", fmt.Sprintf("HTTP error: %v", err))
		}
	}()

	<-ctx.Done()
	log.Info("SERVER", "shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("SERVER", fmt.Sprintf("forced shutdown: %v", err))
	}
	reconciler.Wait()
	log.Info("SERVER", "shutdown complete")
}

func migrate(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) error {
	sqldb, err := database.OpenSQL(ctx, cfg)
	if err != nil {
		return err
	}
	runner := migrations.NewRunner(sqldb, migrations.MigrateOptions{MigrationsDir: cfg.MigrationsDir}, log)
	defer runner.Close()
	return runner.MigrateUp()
}

// newNotifier publishes to Kafka when enabled and logs only otherwise.
func newNotifier(ctx context.Context, cfg config.KafkaConfig, log *logger.Logger) (*notify.Notifier, func()) {
	if !cfg.Enabled {
		log.Info("KAFKA", "disabled, notifications are logged only")
		return notify.New(nil, cfg.Topics, log), func() {}
	}

	topics := []string{cfg.Topics.TicketCreated, cfg.Topics.TicketIssued, cfg.Topics.PaymentUpdated}
	if err := kafka.EnsureTopicsExist(ctx, cfg.Brokers, topics, log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("could not ensure topics: %v", err))
	}
	producer := kafka.NewProducer(cfg.Brokers, log)
	return notify.New(producer, cfg.Topics, log), func() {
		if err := producer.Close(); err != nil {
			log.Warn("KAFKA", err.Error())
		}
	}
}

func healthz(store *storage.BunStore, lock *lockredis.Redis) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{"database": "ok", "redis": "ok"}
		status := http.StatusOK
		if err := store.HealthCheck(ctx); err != nil {
			checks["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if err := lock.Ping(ctx); err != nil {
			// degraded, not down
			checks["redis"] = err.Error()
		}
		utils.WriteResult(w, status, status == http.StatusOK, "health", checks)
	}
}
