package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Julianb233/ghl-agency-ai-sub004/internal/api"
	"github.com/Julianb233/ghl-agency-ai-sub004/internal/auth"
	"github.com/Julianb233/ghl-agency-ai-sub004/internal/dispatch"
	"github.com/Julianb233/ghl-agency-ai-sub004/internal/eventbus"
	"github.com/Julianb233/ghl-agency-ai-sub004/internal/messagebus"
	"github.com/Julianb233/ghl-agency-ai-sub004/internal/metrics"
	"github.com/Julianb233/ghl-agency-ai-sub004/internal/permissions"
	"github.com/Julianb233/ghl-agency-ai-sub004/internal/pool"
	"github.com/Julianb233/ghl-agency-ai-sub004/internal/queue"
	"github.com/Julianb233/ghl-agency-ai-sub004/internal/subscription"
	"github.com/Julianb233/ghl-agency-ai-sub004/internal/telemetry"
	"github.com/Julianb233/ghl-agency-ai-sub004/internal/usage"
	"github.com/Julianb233/ghl-agency-ai-sub004/pkg/config"
)

const version = "0.1.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	showHelp := flag.Bool("help", false, "Show help message")
	flag.Parse()

	if *showHelp {
		printHelp()
		return
	}

	if *showVersion {
		fmt.Printf("agencyd v%s\n", version)
		return
	}

	cfg, err := config.LoadConfigFromFile(*configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatalf("failed to load config from %s: %v", *configPath, err)
		}
		log.Printf("No config file at %s, using defaults", *configPath)
		cfg = config.DefaultConfig()
	}

	// Override with environment variables if set
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		cfg.NATS.URL = natsURL
		cfg.NATS.Enabled = true
		log.Printf("Using NATS URL from environment: %s", natsURL)
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		cfg.Redis.Addr = redisAddr
		cfg.Redis.Enabled = true
		log.Printf("Using Redis address from environment: %s", redisAddr)
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		cfg.Database.Type = "postgres"
		cfg.Database.DSN = dsn
		log.Printf("Using Postgres DSN from environment")
	}
	if secret := os.Getenv("AGENCY_JWT_SECRET"); secret != "" {
		cfg.Security.JWTSecret = secret
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry
	if cfg.Telemetry.Enabled {
		otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		if otelEndpoint == "" {
			otelEndpoint = cfg.Telemetry.OTLPEndpoint
		}
		shutdownTelemetry, err := telemetry.InitTelemetry(runCtx, cfg.Telemetry.ServiceName, otelEndpoint)
		if err != nil {
			log.Printf("Warning: Failed to initialize telemetry: %v", err)
		} else {
			defer func() {
				if err := shutdownTelemetry(context.Background()); err != nil {
					log.Printf("Error shutting down telemetry: %v", err)
				}
			}()
		}
	}

	m := metrics.NewMetrics()
	eventBus := eventbus.NewEventBus(cfg.Dispatch.EventBufferSize, m)
	defer eventBus.Close()

	// Subscription store
	var store subscription.Store
	if cfg.Database.Type == "postgres" {
		pgStore, err := subscription.NewPostgresStore(cfg.Database.DSN)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		defer pgStore.Close()
		store = pgStore
		log.Printf("Using Postgres subscription store")
	} else {
		store = subscription.NewMemoryStore()
		log.Printf("Using in-memory subscription store")
	}

	// Usage tracker
	var tracker usage.Tracker
	if cfg.Redis.Enabled {
		redisTracker, err := usage.NewRedisTracker(runCtx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisTracker.Close()
		tracker = redisTracker
		log.Printf("Using Redis usage tracker at %s", cfg.Redis.Addr)
	} else {
		tracker = usage.NewMemoryTracker()
		log.Printf("Using in-memory usage tracker")
	}

	perms := permissions.NewService(store, tracker, eventBus, m)
	authManager := auth.NewManager(cfg.Security.JWTSecret)

	// Scheduler core
	taskQueue := queue.NewTaskQueue(eventBus)
	registry := pool.NewRegistry(eventBus, m)
	strategy, err := dispatch.NewStrategy(cfg.Dispatch.Strategy)
	if err != nil {
		log.Fatalf("invalid dispatch strategy: %v", err)
	}
	dispatcher := dispatch.NewDispatcher(taskQueue, strategy, registry, eventBus, m)
	log.Printf("Dispatcher using %s strategy", dispatcher.StrategyName())

	// NATS JetStream bridge for external consumers
	if cfg.NATS.Enabled {
		bus, err := messagebus.NewNatsMessageBus(messagebus.Config{
			URL:        cfg.NATS.URL,
			StreamName: cfg.NATS.StreamName,
			Timeout:    cfg.NATS.Timeout,
		})
		if err != nil {
			log.Printf("Warning: NATS bridge disabled: %v", err)
		} else {
			defer bus.Close()
			bridge := messagebus.NewBridge(eventBus, bus)
			bridge.Start()
			defer bridge.Stop()
		}
	}

	// Hot-reload the config file; only the dispatch interval is picked up
	// live, everything else needs a restart
	intervalCh := make(chan time.Duration, 1)
	watcher, err := config.NewWatcher(*configPath, func(updated *config.Config) {
		_ = eventBus.Publish(&eventbus.Event{
			Type:   eventbus.EventTypeConfigUpdated,
			Source: "agencyd",
			Data:   map[string]interface{}{"path": *configPath},
		})
		select {
		case intervalCh <- updated.Dispatch.Interval:
		default:
		}
	})
	if err != nil {
		log.Printf("Warning: config hot-reload disabled: %v", err)
	} else {
		defer watcher.Stop()
	}

	go distributionLoop(runCtx, dispatcher, registry, cfg.Dispatch.Interval, intervalCh)

	apiServer := api.NewServer(dispatcher, registry, taskQueue, authManager, perms, tracker, eventBus, m, cfg)
	handler := otelhttp.NewHandler(apiServer.SetupRoutes(), "agencyd-http-server")

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("Agency API listening on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = httpSrv.Shutdown(shutdownCtx)
}

// distributionLoop runs distribution passes on a fixed interval and whenever
// the pool signals new capacity (agent registered or turned idle).
func distributionLoop(ctx context.Context, d *dispatch.Dispatcher, registry *pool.Registry, interval time.Duration, intervalCh <-chan time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-registry.Changes():
		case updated := <-intervalCh:
			if updated > 0 && updated != interval {
				interval = updated
				ticker.Reset(interval)
				log.Printf("Dispatch interval updated to %s", interval)
			}
			continue
		}

		if assigned := d.DistributeTasks(ctx, registry.Snapshot()); assigned > 0 {
			log.Printf("Distribution pass assigned %d task(s)", assigned)
		}
	}
}

func printHelp() {
	fmt.Println("Usage: agencyd [flags]")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -config string   Path to configuration file (default \"config.yaml\")")
	fmt.Println("  -version         Show version information")
	fmt.Println("  -help            Show this help message")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  NATS_URL                      Enable the NATS JetStream event bridge")
	fmt.Println("  REDIS_ADDR                    Enable the Redis usage tracker")
	fmt.Println("  DATABASE_DSN                  Use the Postgres subscription store")
	fmt.Println("  AGENCY_JWT_SECRET             JWT signing secret")
	fmt.Println("  OTEL_EXPORTER_OTLP_ENDPOINT   OpenTelemetry collector endpoint")
}
