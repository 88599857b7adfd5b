package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"storyforge/config"
	"storyforge/logging"
	"storyforge/stubserver"
)

func main() {
	// Load environment variables
	_ = godotenv.Load()

	// Parse command-line flags
	configPath := flag.String("config", "", "Path to the YAML config file")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	storeKind := flag.String("store", "", "Job store: memory or redis (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Stub.Addr = *addr
	}
	if *storeKind != "" {
		cfg.Stub.Store = *storeKind
	}

	log := logging.NewConsole(cfg.Stub.LogLevel)

	var store stubserver.Store
	switch cfg.Stub.Store {
	case "redis":
		store, err = stubserver.NewRedisStore(cfg.Stub.RedisAddr, cfg.Stub.RedisPass, cfg.Stub.DraftTTL)
		if err != nil {
			log.Fatal().Err(err).Msg("redis store init failed")
		}
		log.Info().Str("addr", cfg.Stub.RedisAddr).Msg("using redis job store")
	default:
		store = stubserver.NewMemoryStore()
		log.Info().Msg("using in-memory job store")
	}

	srv := stubserver.New(store, stubserver.Config{
		StepDelay:  cfg.Stub.StepDelay,
		DraftTTL:   cfg.Stub.DraftTTL,
		SweepEvery: cfg.Stub.SweepEvery,
		Logger:     log,
	})

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("shutdown error")
		}
	}()

	if err := srv.Run(cfg.Stub.Addr); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
	log.Info().Msg("server stopped")
}
