package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shopops/backend/internal/cache"
	"shopops/backend/internal/config"
	"shopops/backend/internal/events"
	"shopops/backend/internal/httpapi"
	"shopops/backend/internal/realtime"
	"shopops/backend/internal/service"
	"shopops/backend/internal/store"
	"shopops/backend/internal/store/memory"
	pgstore "shopops/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	location, err := cfg.Location()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 5)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		if cfg.AutoMigrate {
			if err := pg.Migrate(ctx); err != nil {
				log.Fatalf("schema migration failed: %v", err)
			}
			log.Println("schema: migrated")
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	runCtx, stopRelay := context.WithCancel(context.Background())
	defer stopRelay()

	hub := realtime.NewHub(0)
	relay := realtime.Relay(hub)
	views := cache.ViewCache(cache.NoopViewCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisViewCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache and local relay", err)
			_ = redisCache.Close()
		} else {
			views = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")

			redisRelay := realtime.NewRedisRelay(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RealtimeChannel, hub)
			relay = redisRelay
			closers = append(closers, redisRelay.Close)
			go func() {
				if err := redisRelay.Run(runCtx); err != nil && runCtx.Err() == nil {
					log.Printf("[relay] WARN redis subscription ended, delivering locally: %v", err)
				}
			}()
			log.Printf("relay: redis channel %s", cfg.RealtimeChannel)
		}
	} else {
		log.Println("cache: noop")
		log.Println("relay: in-process")
	}

	publisher := events.Publisher(events.NoopPublisher{})
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		log.Printf("events: kafka topic %s", cfg.KafkaTopic)
	} else {
		log.Println("events: disabled")
	}
	closers = append(closers, publisher.Close)

	svc := service.New(repo, service.Options{
		Relay:     relay,
		ViewCache: views,
		ViewTTL:   cfg.ViewCacheTTL(),
		Events:    publisher,
		Location:  location,
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(), repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	// WriteTimeout is left unset: it would cut long-lived websocket feeds.
	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("shopops backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	stopRelay()
	hub.Close()

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.AllowedOrigin == "*" {
		return fmt.Errorf("ALLOWED_ORIGIN must name a single origin, not *")
	}
	return nil
}
