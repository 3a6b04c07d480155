// Cart Proxy - Serves a board game storefront's cart, auth, and checkout
// flows over one upstream retail REST API.
// Designed for Cloud Run deployment.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"cart-proxy/internal/cache"
	"cart-proxy/internal/cart"
	"cart-proxy/internal/checkout"
	"cart-proxy/internal/config"
	"cart-proxy/internal/guestcart"
	"cart-proxy/internal/handler"
	"cart-proxy/internal/middleware"
	"cart-proxy/internal/optimistic"
	"cart-proxy/internal/remotecart"
	"cart-proxy/internal/session"
	"cart-proxy/internal/storage"
	"cart-proxy/internal/storeapi"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Initialize structured logger
	logger := initLogger()

	// Load configuration
	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Info("configuration loaded",
		slog.String("store_id", cfg.StoreID),
		slog.String("environment", cfg.Environment),
		slog.String("api_url", cfg.Store.APIURL),
		slog.String("cache_backend", cfg.Cart.CacheBackend),
	)

	// Durable slot store: guest carts and session tokens
	store, err := storage.NewStore(cfg.Cart.DataDir)
	if err != nil {
		return fmt.Errorf("opening slot store: %w", err)
	}

	sessions := session.NewManager(store, logger)
	api := storeapi.NewClient(cfg.Store.APIURL, cfg.Store.BrowserFingerprint)

	// The two cart backends behind the routing service
	guest := guestcart.New(store, logger)
	remote := remotecart.New(api, sessions)
	svc := cart.NewService(sessions, guest, remote, api, logger)

	cacheStore, err := buildCache(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating cart cache: %w", err)
	}

	engine := optimistic.New(svc, cacheStore, optimistic.Options{
		AddDelay:    cfg.Cart.AddDebounce(),
		UpdateDelay: cfg.Cart.UpdateDebounce(),
		Staleness:   cfg.Cart.CacheStaleness(),
		OnError: func(session string, err error) {
			logger.Warn("cart mutation rolled back",
				slog.String("session", session),
				slog.String("error", err.Error()),
			)
		},
	}, logger)
	defer engine.Close()

	checkoutStore := checkout.NewStore(checkout.DefaultIdleTTL)
	defer checkoutStore.Close()

	h := handler.New(engine, svc, sessions, api, checkoutStore, cfg.DeliveryOptions(), logger)

	// Setup routes
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Apply middleware chain: recovery → logging → client gate → session
	// Recovery must be outermost to catch panics from logging middleware
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.Logging(logger),
		middleware.ClientGate(cfg.Cart.MinClientVersion, logger),
		middleware.Session(),
	)(mux)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Channel for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Channel for server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
		)
		serverErr <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give outstanding requests time to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// Force close if graceful shutdown fails
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// buildCache creates the cart snapshot cache per configuration.
func buildCache(ctx context.Context, cfg *config.Config) (cache.Store, error) {
	switch cfg.Cart.CacheBackend {
	case "", "memory":
		return cache.NewMemory(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Cart.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("pinging redis at %s: %w", cfg.Cart.RedisAddr, err)
		}
		return cache.NewRedis(client, cfg.Cart.CacheStaleness()), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Cart.CacheBackend)
	}
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	// JSON for production (Cloud Logging compatible), text for development
	if os.Getenv("ENVIRONMENT") == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
