package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"8"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"1"`
	// DBAcquireTimeout caps each database operation, including the wait for
	// a free pool connection when the pool is exhausted.
	DBAcquireTimeout time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"15s"`

	// LLM endpoint. Defaults target DashScope's OpenAI-compatible mode; any
	// OpenAI-compatible endpoint works.
	LLMAPIKey      string `envconfig:"LLM_API_KEY"`
	LLMBaseURL     string `envconfig:"LLM_BASE_URL" default:"https://dashscope.aliyuncs.com/compatible-mode/v1"`
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-v4"`
	ChatModel      string `envconfig:"CHAT_MODEL" default:"qwen3-max"`
	VisionModel    string `envconfig:"VISION_MODEL" default:"qwen-vl-ocr-2025-11-20"`

	EmbeddingDimensions int           `envconfig:"EMBEDDING_DIMENSIONS" default:"2048"`
	OracleTimeout       time.Duration `envconfig:"ORACLE_TIMEOUT" default:"60s"`

	ChunkMaxChars int `envconfig:"CHUNK_MAX_CHARS" default:"800"`
	ChunkOverlap  int `envconfig:"CHUNK_OVERLAP" default:"150"`

	IngestWorkers  int `envconfig:"INGEST_WORKERS" default:"4"`
	IngestQueueLen int `envconfig:"INGEST_QUEUE_LEN" default:"64"`

	UploadDir string `envconfig:"UPLOAD_DIR" default:"uploads"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"corpora-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("CORPORA", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasLLM() bool {
	return c.LLMAPIKey != ""
}
