package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/veldt-labs/corpora/internal/api/handlers"
	"github.com/veldt-labs/corpora/internal/config"
	"github.com/veldt-labs/corpora/internal/database"
	"github.com/veldt-labs/corpora/internal/domain"
	"github.com/veldt-labs/corpora/internal/extract"
	"github.com/veldt-labs/corpora/internal/jobs"
	"github.com/veldt-labs/corpora/internal/openai"
	"github.com/veldt-labs/corpora/internal/repository"
	"github.com/veldt-labs/corpora/internal/server"
	"github.com/veldt-labs/corpora/internal/service"
	"github.com/veldt-labs/corpora/internal/storage"
	"github.com/veldt-labs/corpora/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the corpora API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, database.Config{
		URL:            cfg.DatabaseURL,
		MaxConns:       cfg.DBMaxConns,
		MinConns:       cfg.DBMinConns,
		ConnectTimeout: cfg.DBAcquireTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	if !cfg.HasLLM() {
		return fmt.Errorf("CORPORA_LLM_API_KEY is required: ingestion and retrieval need the embedding endpoint")
	}

	llmCfg := openai.Config{
		APIKey:              cfg.LLMAPIKey,
		BaseURL:             cfg.LLMBaseURL,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		ChatModel:           cfg.ChatModel,
		VisionModel:         cfg.VisionModel,
	}
	embeddingClient := openai.NewClientWithConfig(llmCfg)
	chatClient := openai.NewChatClient(llmCfg)

	codec := domain.NewVectorCodec(cfg.EmbeddingDimensions)

	kbRepo := repository.NewKnowledgeBaseRepository(pool, cfg.DBAcquireTimeout)
	chunkRepo := repository.NewChunkRepository(pool, codec, cfg.DBAcquireTimeout)
	txRunner := repository.NewTxRunner(pool, codec, cfg.DBAcquireTimeout)

	registry := service.NewKnowledgeBaseService(kbRepo, txRunner)
	ingestion := service.NewIngestionService(registry, chunkRepo, embeddingClient, codec, service.IngestionConfig{
		ChunkConfig:   service.ChunkConfig{MaxChars: cfg.ChunkMaxChars, Overlap: cfg.ChunkOverlap},
		Workers:       cfg.IngestWorkers,
		OracleTimeout: cfg.OracleTimeout,
	})
	retrieval := service.NewRetrievalService(chunkRepo, embeddingClient, cfg.OracleTimeout)
	composer := service.NewComposeService(registry, ingestion, chatClient)
	extractor := extract.NewExtractor(chatClient)
	documents := service.NewDocumentService(extractor, chatClient, ingestion)

	var archiver handlers.Archiver
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		archiver = s3Client
	}

	queue := jobs.NewIngestQueue(cfg.IngestQueueLen)
	worker := jobs.NewWorker(queue, 2*time.Second)
	go worker.Start(ctx)
	log.Println("ingest worker started")

	routerCfg := server.RouterConfig{
		KnowledgeBaseHandler: handlers.NewKnowledgeBaseHandler(registry, ingestion),
		RetrieveHandler:      handlers.NewRetrieveHandler(retrieval),
		ComposeHandler:       handlers.NewComposeHandler(composer, queue),
		UploadHandler:        handlers.NewUploadHandler(documents, queue, archiver, cfg.UploadDir),
		JobsHandler:          handlers.NewJobsHandler(queue),
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	worker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func runMigrations(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else {
		log.Printf("migrations: database at version %d", version)
	}

	return nil
}
