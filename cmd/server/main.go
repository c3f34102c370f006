package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/projecthub/internal/api"
	"github.com/Rrens/projecthub/internal/config"
	"github.com/Rrens/projecthub/internal/logging"
	"github.com/Rrens/projecthub/internal/realtime"
	"github.com/Rrens/projecthub/internal/repository/postgres"
	"github.com/Rrens/projecthub/internal/repository/redis"
)

func main() {
	// Load .env file - try multiple locations
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			fmt.Printf("Loaded .env from: %s\n", p)
			break
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logFile, err := logging.Setup(cfg.Logging, os.Getenv("ENV") == "production")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}
	defer logFile.Close()

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Bool("scope_subresources", cfg.Realtime.ScopeSubresource).
		Msg("Starting projecthub server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	broker := realtime.NewBroker(realtime.NewMetrics(registry))
	opts := realtime.DispatcherOptions{
		ScopeSubresources: cfg.Realtime.ScopeSubresource,
		Versions:          redis.NewVersionStore(redisClient),
	}

	var relay *redis.EventRelay
	if cfg.Realtime.RelayEnabled {
		relay = redis.NewEventRelay(redisClient, cfg.Realtime.RelayChannel)
		opts.Relay = relay
	}
	dispatcher := realtime.NewDispatcher(broker, opts)

	if relay != nil {
		if err := relay.Subscribe(ctx, dispatcher.HandleRelayed); err != nil {
			log.Fatal().Err(err).Msg("Failed to subscribe to event relay")
		}
		log.Info().Str("channel", cfg.Realtime.RelayChannel).Msg("Event relay enabled")
	}

	router := api.NewRouter(api.Deps{
		Config:     cfg,
		DB:         db,
		Redis:      redisClient,
		Broker:     broker,
		Dispatcher: dispatcher,
		Gatherer:   registry,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
