// Package main provides the entry point for the chemochat server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/oncoline/chemochat-go/internal/config"
	"github.com/oncoline/chemochat-go/internal/engine"
	"github.com/oncoline/chemochat-go/internal/knowledge"
	"github.com/oncoline/chemochat-go/internal/llm"
	"github.com/oncoline/chemochat-go/internal/server"
	"github.com/oncoline/chemochat-go/internal/store"
	"github.com/oncoline/chemochat-go/internal/vectorindex"
)

const version = "0.1.0"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	logger.Info("chemochat starting",
		"version", version,
		"listen_addr", cfg.ListenAddr,
		"llm_provider", cfg.LLMProvider,
		"llm_model", cfg.LLMModel,
	)

	st, err := store.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to open session store", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("closing session store")
		_ = st.Close()
	}()

	model, err := llm.NewModel(cfg)
	if err != nil {
		logger.Error("failed to create model", "error", err)
		os.Exit(1)
	}
	logger.Info("model initialized", "model", model.Model())

	// A missing embedder degrades retrieval, it doesn't stop the server.
	var embedder knowledge.Embedder
	if emb, err := llm.NewEmbedder(cfg); err != nil {
		logger.Warn("embedder unavailable, retrieval disabled", "error", err)
	} else {
		embedder = emb
		logger.Info("embedder initialized", "model", emb.Model())
	}

	index, err := vectorindex.Load(
		filepath.Join(cfg.ModelInputsDir, "vectors.json"),
		filepath.Join(cfg.ModelInputsDir, "documents.json"),
		vectorindex.MetricCosine,
		logger,
	)
	if err != nil {
		logger.Error("failed to load vector index", "error", err)
		os.Exit(1)
	}
	logger.Info("vector index loaded", "documents", index.Len())

	assembler := knowledge.NewAssembler(cfg.ModelInputsDir, index, embedder, nil, logger)

	eng := engine.New(st, assembler, model, logger,
		engine.WithDefaultTimezone(cfg.DefaultTimezone))

	srv := server.New(eng, logger)
	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 120 * time.Second, // long for model turns
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server ready", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("received shutdown signal", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
