// Command server runs the document Q&A backend: it loads configuration,
// opens the SQLite store, assembles the embedding, vector index, and
// generation clients, starts the ingestion worker pool, and serves the
// HTTP API until interrupted.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/shreyansh2912/prashnly-backend/internal/chunker"
	"github.com/shreyansh2912/prashnly-backend/internal/config"
	"github.com/shreyansh2912/prashnly-backend/internal/embedding/openai"
	"github.com/shreyansh2912/prashnly-backend/internal/extract"
	"github.com/shreyansh2912/prashnly-backend/internal/generation/groq"
	httpapi "github.com/shreyansh2912/prashnly-backend/internal/http"
	"github.com/shreyansh2912/prashnly-backend/internal/ingest"
	"github.com/shreyansh2912/prashnly-backend/internal/notify"
	"github.com/shreyansh2912/prashnly-backend/internal/observability"
	"github.com/shreyansh2912/prashnly-backend/internal/repo"
	"github.com/shreyansh2912/prashnly-backend/internal/sysutil"
	"github.com/shreyansh2912/prashnly-backend/internal/vectorindex"
	"github.com/shreyansh2912/prashnly-backend/internal/vectorindex/memory"
	"github.com/shreyansh2912/prashnly-backend/internal/vectorindex/qdrant"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

const shutdownGrace = 15 * time.Second

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("cannot open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o750); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.UploadDir).Msg("cannot create upload dir")
	}

	embedder, err := openai.New(openai.Config{
		BaseURL:   cfg.Embedding.BaseURL,
		APIKey:    cfg.Embedding.APIKey,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
		Timeout:   cfg.Embedding.Timeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("embedding client setup failed")
	}

	var index vectorindex.Index
	switch cfg.VectorBackend {
	case "memory":
		index = memory.New()
		log.Warn().Msg("using in-memory vector index; vectors are lost on restart")
	case "qdrant":
		qx := qdrant.New(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Qdrant.Collection,
			Timeout:    cfg.Qdrant.Timeout,
		})
		if cfg.Embedding.Dimension > 0 {
			if err := qx.Init(ctx, cfg.Embedding.Dimension); err != nil {
				log.Fatal().Err(err).Str("collection", cfg.Qdrant.Collection).
					Msg("qdrant collection setup failed")
			}
		} else {
			log.Warn().Str("collection", cfg.Qdrant.Collection).
				Msg("EMBEDDING_DIMENSION unset; expecting the collection to exist")
		}
		index = qx
	}

	generator, err := groq.New(groq.Config{
		BaseURL:     cfg.Generation.BaseURL,
		APIKey:      cfg.Generation.APIKey,
		Model:       cfg.Generation.Model,
		Temperature: cfg.Generation.Temperature,
		Timeout:     cfg.Generation.Timeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("generation client setup failed")
	}

	hub := notify.NewHub(notify.Logger{Log: log.With().Str("component", "ingest").Logger()})

	pipeline := &ingest.Pipeline{
		DB:           db,
		Extract:      extract.NewPlain(),
		Chunker:      chunker.New(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap),
		Embedder:     embedder,
		Index:        index,
		Notify:       hub,
		Log:          log.With().Str("component", "pipeline").Logger(),
		StageTimeout: cfg.Ingest.StageTimeout,
	}
	queue := ingest.NewQueue(pipeline, cfg.Ingest.Workers, cfg.Ingest.QueueDepth,
		log.With().Str("component", "queue").Logger())
	if n, err := queue.Resume(ctx); err != nil {
		log.Error().Err(err).Msg("could not requeue interrupted documents")
	} else if n > 0 {
		log.Info().Int("count", n).Msg("requeued interrupted documents")
	}
	queue.Start(ctx)

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Dependencies{
		DB:        db,
		Index:     index,
		Embedder:  embedder,
		Generator: generator,
		Queue:     queue,
		Hub:       hub,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	queue.Stop()
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown failed")
	}
	log.Info().Msg("server stopped")
}
