package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/xhad/docqa/pkg/config"
	"github.com/xhad/docqa/pkg/logging"
	"github.com/xhad/docqa/pkg/pipeline"
	"github.com/xhad/docqa/server"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var (
		configPath string
		port       string
		ollamaURL  string
		dbURL      string
		storeType  string
	)
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&port, "port", "", "HTTP listen port")
	flag.StringVar(&ollamaURL, "ollama-url", "", "Ollama server URL")
	flag.StringVar(&dbURL, "db-url", "", "PostgreSQL connection string")
	flag.StringVar(&storeType, "store", "", "Vector store: memory or pgvector")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	// Override config with command line flags if provided
	if port != "" {
		cfg.Server.Port = port
	}
	if ollamaURL != "" {
		cfg.LLM.BaseURL = ollamaURL
	}
	if dbURL != "" {
		cfg.Store.URL = dbURL
	}
	if storeType != "" {
		cfg.Store.Type = storeType
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e.Error())
		}
		return fmt.Errorf("invalid configuration")
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, closeStore, err := pipeline.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build pipeline", zap.Error(err))
		return err
	}
	defer closeStore()

	srv := server.NewWithConfig(server.Config{
		Port:            cfg.Server.Port,
		Mode:            cfg.Server.Mode,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, p, logger)

	return srv.ListenAndServe(ctx)
}
