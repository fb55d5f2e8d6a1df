package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"

	"github.com/cellarcount/cellarcount-backend/internal/access"
	"github.com/cellarcount/cellarcount-backend/internal/auth/jwt"
	"github.com/cellarcount/cellarcount-backend/internal/catalog"
	"github.com/cellarcount/cellarcount-backend/internal/inventory/consumers"
	"github.com/cellarcount/cellarcount-backend/internal/inventory/events"
	"github.com/cellarcount/cellarcount-backend/internal/inventory/handler"
	"github.com/cellarcount/cellarcount-backend/internal/inventory/repository"
	"github.com/cellarcount/cellarcount-backend/internal/inventory/service"
	"github.com/cellarcount/cellarcount-backend/pkg/config"
	"github.com/cellarcount/cellarcount-backend/pkg/database"
	"github.com/cellarcount/cellarcount-backend/pkg/httputil"
	"github.com/cellarcount/cellarcount-backend/pkg/logger"
	"github.com/cellarcount/cellarcount-backend/pkg/messaging"
	"github.com/cellarcount/cellarcount-backend/pkg/permissions"
)

const serviceName = "inventory-service"

func main() {
	// Fails fast in production when required configuration is missing
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Msg("starting Inventory Service")

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Repositories
	store := repository.NewPostgresStore(db)
	locationRepo := repository.NewLocationRepository(db)
	productRepo := repository.NewProductRepository(db)

	// Unit costs are read through Redis when it is configured
	var costs service.CostSource = productRepo
	var journal consumers.Journal
	var costCache *catalog.CachedSource
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		costCache = catalog.NewCachedSource(productRepo, client, cfg.Redis.CostTTL, log)
		costs = costCache
		journal = consumers.NewRedisJournal(client)
	}

	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	eventPublisher, publisher, err := events.NewInventoryEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}
	if err := rmq.DeclareDeadLetterQueue(serviceName); err != nil {
		log.Fatal().Err(err).Msg("failed to declare dead letter queue")
	}

	// Services
	absolute, relative, err := cfg.Reconciliation.Thresholds()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid reconciliation thresholds")
	}
	policy := service.VariancePolicy{Absolute: absolute, Relative: relative}
	retry := database.RetryPolicy{MaxRetries: cfg.Ledger.MaxRetries, Backoff: cfg.Ledger.RetryBackoff}

	gate := access.NewGate(locationRepo, permissions.NewRoleTable(cfg.Access.ElevatedRoles), log)
	ledgerService := service.NewLedgerService(store, gate, eventPublisher, retry, log)
	reconciler := service.NewReconciler(store, gate, eventPublisher, retry, log)
	countService := service.NewCountService(store, gate, costs, reconciler, eventPublisher, policy, retry, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Point of sale depletion needs the Redis journal to stay idempotent
	var depletion *consumers.DepletionConsumer
	if journal != nil {
		depletion, err = consumers.NewDepletionConsumer(rmq, ledgerService, journal, cfg.RabbitMQ.MaxRedeliveries, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create depletion consumer")
		}
		if err := depletion.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start depletion consumer")
		}
	} else {
		log.Warn().Msg("redis not configured, point of sale depletion disabled")
	}
	go rmq.Watch(ctx, func(ctx context.Context) error {
		if err := publisher.Rebind(rmq); err != nil {
			return err
		}
		if depletion == nil {
			return nil
		}
		return depletion.Restart(ctx)
	})

	// Handlers
	ledgerHandler := handler.NewLedgerHandler(ledgerService, gate, log)
	countHandler := handler.NewCountHandler(countService, reconciler, log)
	tokens := jwt.NewManager(&cfg.JWT)

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := map[string]interface{}{
			"status":   "healthy",
			"service":  serviceName,
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		}
		if costCache != nil {
			health["redis"] = costCache.Health(r.Context())
		}
		httputil.JSON(w, http.StatusOK, health)
	})

	r.Route("/api/v1/inventory", func(r chi.Router) {
		r.Use(httputil.Authenticate(tokens))
		handler.Mount(r, ledgerHandler, countHandler)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Stops the consumer and the reconnect watcher
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
