package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/geopanel/internal/adapters/http"
	natsadapter "github.com/samirrijal/geopanel/internal/adapters/nats"
	"github.com/samirrijal/geopanel/internal/adapters/valkey"
	"github.com/samirrijal/geopanel/internal/adapters/views"
	"github.com/samirrijal/geopanel/internal/core/domain"
	"github.com/samirrijal/geopanel/internal/core/ports"
	"github.com/samirrijal/geopanel/internal/core/usecases"
	"github.com/samirrijal/geopanel/internal/pkg/config"
	"github.com/samirrijal/geopanel/internal/pkg/logging"
	"github.com/samirrijal/geopanel/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("geopanel-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Shared view cache (optional)
	var cache *valkey.Cache
	var cacheSvc ports.CacheService
	if cfg.Valkey.Enabled {
		cache, err = valkey.New(cfg.Valkey.Addr)
		if err != nil {
			slog.Warn("valkey unavailable", "error", err)
			cache = nil
		} else {
			defer cache.Close()
			cacheSvc = cache
		}
	}

	// NATS coordinate propagation (optional)
	var publisher ports.CoordinatePublisher
	var pub *natsadapter.Publisher
	var sub *natsadapter.Subscriber
	if cfg.NATS.Enabled {
		pub, err = natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
			pub = nil
		} else {
			defer pub.Close()
			publisher = pub
		}
	}

	// Route table and view loading
	routes, err := usecases.NewRouteTable(usecases.DefaultRoutes())
	if err != nil {
		log.Fatalf("routes: %v", err)
	}
	source, err := views.New(cfg.Views.Source, cfg.Views.Dir, cfg.Views.BaseURL)
	if err != nil {
		log.Fatalf("views: %v", err)
	}
	viewSvc := usecases.NewViewService(routes, source, cacheSvc, usecases.ViewOptions{
		LoadTimeout:   cfg.Views.LoadTimeout,
		RetryAttempts: cfg.Views.RetryAttempts,
		RetryInterval: cfg.Views.RetryInterval,
		CacheTTL:      cfg.Views.CacheTTL,
	})
	if cfg.Views.Preload {
		if err := viewSvc.Preload(ctx); err != nil {
			// Not fatal: navigation retries the load.
			slog.Warn("view preload failed", "error", err)
		}
	}

	// Coordinate store
	initial := domain.DefaultCoordinate()
	if cfg.Store.InitialAbsent {
		initial = domain.AbsentCoordinate()
	}
	store := usecases.NewCoordinateStore(initial, publisher)

	if pub != nil {
		sub, err = natsadapter.NewSubscriber(cfg.NATS.URL)
		if err == nil {
			err = sub.SubscribeCoordinateChanges(ctx, store.Apply)
		}
		if err != nil {
			slog.Warn("coordinate subscription unavailable", "error", err)
		}
		if sub != nil {
			defer sub.Close()
		}
	}

	deps := &http.Dependencies{
		Views:     viewSvc,
		Store:     store,
		Cache:     cache,
		BasePath:  cfg.Server.BasePath,
		RateLimit: cfg.Server.RateLimit,
	}
	if pub != nil {
		deps.NATS = pub.Conn()
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:   time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:  time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:     64 * 1024,
		CaseSensitive: true,
		AppName:       "geopanel",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "http://localhost:5173, http://localhost:3000",
		AllowMethods: "GET,PUT,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
		MaxAge:       3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "base_path", cfg.Server.BasePath, "views", cfg.Views.Source)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
