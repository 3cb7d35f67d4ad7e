package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/samirrijal/geopanel/internal/adapters/valkey"
	"github.com/samirrijal/geopanel/internal/adapters/views"
	"github.com/samirrijal/geopanel/internal/core/usecases"
	"github.com/samirrijal/geopanel/internal/pkg/config"
	"github.com/samirrijal/geopanel/internal/pkg/logging"
)

// viewcache fills or clears the shared view module cache, e.g. after a
// frontend deploy.
func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: viewcache <warm|purge>")
	}

	cfg, err := config.Load("geopanel-viewcache")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, "text")

	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		log.Fatalf("valkey: %v", err)
	}
	defer cache.Close()

	routes, err := usecases.NewRouteTable(usecases.DefaultRoutes())
	if err != nil {
		log.Fatalf("routes: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch os.Args[1] {
	case "warm":
		source, err := views.New(cfg.Views.Source, cfg.Views.Dir, cfg.Views.BaseURL)
		if err != nil {
			log.Fatalf("views: %v", err)
		}
		svc := usecases.NewViewService(routes, source, cache, usecases.ViewOptions{
			LoadTimeout:   cfg.Views.LoadTimeout,
			RetryAttempts: cfg.Views.RetryAttempts,
			RetryInterval: cfg.Views.RetryInterval,
			CacheTTL:      cfg.Views.CacheTTL,
		})
		for _, e := range routes.Entries() {
			// Drop the old copy so Load goes back to the source.
			if err := cache.Delete(ctx, usecases.ViewCacheKey(e.Module)); err != nil {
				log.Fatalf("purge %s: %v", e.Module, err)
			}
			if _, _, err := svc.Load(ctx, e); err != nil {
				log.Fatalf("warm %s: %v", e.Name, err)
			}
			fmt.Printf("OK  %-10s %s\n", e.Name, e.Module)
		}
		log.Println("view cache warmed")
	case "purge":
		for _, e := range routes.Entries() {
			if err := cache.Delete(ctx, usecases.ViewCacheKey(e.Module)); err != nil {
				log.Fatalf("purge %s: %v", e.Module, err)
			}
			fmt.Printf("DEL %-10s %s\n", e.Name, e.Module)
		}
		log.Println("view cache purged")
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}
