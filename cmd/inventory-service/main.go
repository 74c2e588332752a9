package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/storeflow/storeflow-backend/internal/inventory/events"
	"github.com/storeflow/storeflow-backend/internal/inventory/handler"
	"github.com/storeflow/storeflow-backend/internal/inventory/repository"
	"github.com/storeflow/storeflow-backend/internal/inventory/service"
	"github.com/storeflow/storeflow-backend/pkg/config"
	"github.com/storeflow/storeflow-backend/pkg/database"
	"github.com/storeflow/storeflow-backend/pkg/httputil"
	"github.com/storeflow/storeflow-backend/pkg/logger"
	"github.com/storeflow/storeflow-backend/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("inventory-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("inventory-service", cfg.Server.Environment)
	log.Info().Msg("starting Inventory Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Initialize event publisher
	publisher, err := events.NewInventoryEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Initialize repositories
	productRepo := repository.NewProductRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	shelfRepo := repository.NewShelfRepository(db)
	allocRepo := repository.NewAllocationRepository(db)
	damageRepo := repository.NewDamageRepository(db)
	movementRepo := repository.NewMovementRepository(db)

	// Initialize services
	capacity := service.NewCapacityTracker(shelfRepo, allocRepo, db, log)
	batchStore := service.NewBatchStore(productRepo, batchRepo, movementRepo, capacity, publisher, db, log)
	assignments := service.NewAssignmentService(batchRepo, shelfRepo, allocRepo, movementRepo, capacity, publisher, db, log)
	planner := service.NewConsumptionPlanner(productRepo, batchRepo, movementRepo, capacity, publisher, db, log)
	damage := service.NewDamageService(batchRepo, productRepo, damageRepo, movementRepo, capacity, publisher, db, log)
	auditor := service.NewAuditor(shelfRepo, allocRepo, publisher, db, log)
	scanner := service.NewExpiryScanner(batchRepo, publisher, cfg.Audit.ExpiryWarningDays, log)

	// Initialize handlers
	productHandler := handler.NewProductHandler(batchStore, log)
	batchHandler := handler.NewBatchHandler(batchStore, log)
	allocationHandler := handler.NewAllocationHandler(assignments, log)
	consumptionHandler := handler.NewConsumptionHandler(planner, log)
	damageHandler := handler.NewDamageHandler(damage, log)
	auditHandler := handler.NewAuditHandler(auditor, log)
	shelfHandler := handler.NewShelfHandler(shelfRepo, capacity, assignments, log)

	// Start the background scheduler
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := service.NewScheduler(auditor, scanner, cfg.Audit.Interval, log)
	scheduler.Start(ctx)

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			// Local frontends plus *.storeflow.io
			if origin == "http://localhost:3000" || origin == "http://localhost:5173" {
				return true
			}
			return strings.HasSuffix(origin, ".storeflow.io")
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "X-User-ID", "X-User-Email"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(httputil.Operator) // Extract operator identity from headers

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "inventory-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// API routes
	r.Route("/api/v1/inventory", func(r chi.Router) {
		// Product routes
		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.List)
			r.Get("/{id}", productHandler.Get)
			r.Get("/{id}/batches", batchHandler.ListByProduct)
			r.Post("/{id}/batches", batchHandler.Create)
			r.Get("/{id}/movements", productHandler.Movements)
			r.Get("/{id}/consume/preview", consumptionHandler.Preview)
		})

		// Batch routes
		r.Route("/batches", func(r chi.Router) {
			r.Get("/expiring", batchHandler.Expiring)
			r.Get("/{id}", batchHandler.Get)
			r.Post("/{id}/decrement", batchHandler.Decrement)
			r.Get("/{id}/allocations", allocationHandler.ListByBatch)
		})

		// Allocation routes
		r.Route("/allocations", func(r chi.Router) {
			r.Post("/", allocationHandler.Assign)
			r.Post("/move", allocationHandler.Move)
			r.Post("/remove", allocationHandler.Remove)
		})

		// Consumption
		r.Post("/consume", consumptionHandler.Consume)

		// Damage workflow
		r.Route("/damages", func(r chi.Router) {
			r.Get("/", damageHandler.List)
			r.Post("/", damageHandler.Report)
			r.Get("/{id}", damageHandler.Get)
			r.Post("/{id}/review", damageHandler.Review)
			r.Post("/{id}/resolve", damageHandler.Resolve)
		})

		// Reconciliation
		r.Get("/audit", auditHandler.Audit)
		r.Get("/audit/{shelfID}", auditHandler.AuditShelf)
		r.Post("/audit/repair", auditHandler.Repair)

		// Shelf routes
		r.Route("/shelves", func(r chi.Router) {
			r.Get("/", shelfHandler.List)
			r.Get("/{id}/occupancy", shelfHandler.Occupancy)
			r.Get("/{id}/contents", shelfHandler.Contents)
		})
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Stop the scheduler
	scheduler.Stop()
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
