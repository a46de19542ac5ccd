package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zutrittswerk/portier/internal/handlers"
	infracache "github.com/zutrittswerk/portier/internal/infrastructure/cache"
	"github.com/zutrittswerk/portier/internal/infrastructure/config"
	"github.com/zutrittswerk/portier/internal/infrastructure/database"
	"github.com/zutrittswerk/portier/internal/infrastructure/metrics"
	"github.com/zutrittswerk/portier/internal/repositories"
	"github.com/zutrittswerk/portier/internal/repositories/postgres"
	"github.com/zutrittswerk/portier/internal/services"
	"github.com/zutrittswerk/portier/internal/services/authorization"
	"github.com/zutrittswerk/portier/internal/store"
	"github.com/zutrittswerk/portier/pkg/cache"
	"github.com/zutrittswerk/portier/pkg/cache/memorycache"
)

const (
	defaultEnv           = "dev"
	migrationsPathSuffix = "internal/infrastructure/database/migrations/postgres"
)

// findProjectRoot walks up from the working directory until it finds go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found in any parent directory")
		}
		dir = parent
	}
}

func main() {
	// Get environment from ENV variable or use default
	env := os.Getenv("ENV")
	if env == "" {
		env = defaultEnv
	}

	// Initialize configuration
	if err := config.InitConfig(env); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// In-memory state: both hierarchies plus entity and edge stores
	principalGroups := store.NewHierarchy()
	resourceGroups := store.NewHierarchy()
	permissions := store.NewPermissionStore()
	memberships := store.NewMembershipStore()

	// Resolved-set cache
	var resolveCache cache.Cache
	if cfg.Cache.Enabled {
		resolveCache, err = memorycache.New(&memorycache.Config{
			MaxSizeBytes:  cfg.Cache.MaxMemoryBytes,
			DefaultTTL:    time.Duration(cfg.Cache.TTLMinutes) * time.Minute,
			EnableMetrics: cfg.Cache.Metrics,
		})
		if err != nil {
			log.Fatalf("Failed to create cache: %v", err)
		}
		defer resolveCache.Close()
		log.Printf("Resolve cache enabled (max %d bytes, TTL %dm)", cfg.Cache.MaxMemoryBytes, cfg.Cache.TTLMinutes)
	}

	var resolver *authorization.Resolver
	if resolveCache != nil {
		resolver = authorization.NewResolverWithCache(
			principalGroups, resourceGroups, permissions, memberships,
			resolveCache, time.Duration(cfg.Cache.TTLMinutes)*time.Minute)
	} else {
		resolver = authorization.NewResolver(principalGroups, resourceGroups, permissions, memberships)
	}

	// Optional persistence
	var repo repositories.StateRepository
	if cfg.Database.Enabled {
		pg, err := database.NewPostgres(&cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pg.Close()

		log.Printf("Connected to database: %s@%s:%d/%s",
			cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)

		root, err := findProjectRoot()
		if err != nil {
			log.Fatalf("Failed to find project root: %v", err)
		}
		if err := pg.RunMigrations(filepath.Join(root, migrationsPathSuffix)); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}

		repo = postgres.NewPostgresStateRepository(pg.DB)
	} else {
		log.Println("Database disabled; running memory-only")
	}

	directory := services.NewDirectoryService(
		principalGroups, resourceGroups, permissions, memberships, resolver, repo)

	if repo != nil {
		if err := directory.LoadFromRepository(context.Background()); err != nil {
			log.Fatalf("Failed to load state from database: %v", err)
		}
		log.Println("State loaded from database")
	}

	// Cross-instance cache invalidation over LISTEN/NOTIFY
	var listener *infracache.InvalidationListener
	if cfg.Database.Enabled && resolveCache != nil {
		listener = infracache.NewInvalidationListener(cfg.Database.ConnectionString(), resolver)
		if err := listener.Start(); err != nil {
			log.Fatalf("Failed to start invalidation listener: %v", err)
		}
		defer listener.Stop()
		log.Println("Invalidation listener started")
	}

	// Metrics
	collector := metrics.NewCollector()
	if resolveCache != nil {
		collector.SetCache(resolveCache)
	}
	exporter := metrics.NewPrometheusExporter(collector)

	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: promhttp.Handler(),
	}
	go func() {
		log.Printf("Metrics server listening on :%d", cfg.Server.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	// Keep exported gauges in step with the collector
	updateStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				exporter.Update()
			case <-updateStop:
				return
			}
		}
	}()

	// HTTP API
	access := handlers.NewAccessHandler(resolver, directory, memberships, principalGroups, resourceGroups, collector)
	admin := handlers.NewAdminHandler(directory)
	router := handlers.NewRouter(access, admin, metrics.Middleware(collector, exporter))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("HTTP API listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-serverErrors:
		log.Fatalf("Server error: %v", err)
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
		log.Println("Initiating graceful shutdown...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		close(updateStop)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Forced shutdown: %v", err)
		}
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Metrics server shutdown: %v", err)
		}
		log.Println("Server stopped")
	}
}
