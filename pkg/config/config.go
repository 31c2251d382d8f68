package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Assembly AssemblyAIConfig
	Groq     GroqConfig
	Ollama   OllamaConfig
	Upload   UploadConfig
	Search   SearchConfig
	Pipeline PipelineConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Host            string
	Environment     string
	AllowedOrigins  []string
	ShutdownTimeout int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host          string
	Port          string
	User          string
	Password      string
	Name          string
	SSLMode       string
	MaxConns      int
	MinConns      int
	AutoMigrate   bool
	MigrationsDir string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// StorageConfig holds object storage configuration for raw media
type StorageConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	UseSSL          bool
}

// AssemblyAIConfig holds transcription provider settings
type AssemblyAIConfig struct {
	APIKey       string
	LanguageCode string
}

// GroqConfig holds LLM provider settings used for extraction
type GroqConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OllamaConfig holds embedding provider settings
type OllamaConfig struct {
	BaseURL        string
	EmbeddingModel string
	Dimensions     int
	Timeout        time.Duration
}

// UploadConfig holds upload validation limits
type UploadConfig struct {
	MaxSizeMB         int64
	AllowedExtensions []string
}

// SearchConfig holds semantic search settings
type SearchConfig struct {
	ResultLimit      int
	QueryCacheTTL    time.Duration
	QueryCacheMaxLen int
}

// PipelineConfig holds worker pool and retry settings.
// Loaded with envconfig from PIPELINE_* variables.
type PipelineConfig struct {
	Workers              int           `envconfig:"WORKERS" default:"4"`
	QueueStream          string        `envconfig:"QUEUE_STREAM" default:"meetings:pipeline"`
	QueueGroup           string        `envconfig:"QUEUE_GROUP" default:"pipeline-workers"`
	QueueConsumer        string        `envconfig:"QUEUE_CONSUMER"`
	QueueMaxDeliveries   int           `envconfig:"QUEUE_MAX_DELIVERIES" default:"5"`
	QueueClaimIdle       time.Duration `envconfig:"QUEUE_CLAIM_IDLE" default:"45m"`
	JobTimeout           time.Duration `envconfig:"JOB_TIMEOUT" default:"30m"`
	StageMaxAttempts     int           `envconfig:"STAGE_MAX_ATTEMPTS" default:"3"`
	RetryInitialInterval time.Duration `envconfig:"RETRY_INITIAL_INTERVAL" default:"2s"`
	RetryMaxInterval     time.Duration `envconfig:"RETRY_MAX_INTERVAL" default:"10s"`
	ChunkMaxWords        int           `envconfig:"CHUNK_MAX_WORDS" default:"500"`
	EmbedBatchSize       int           `envconfig:"EMBED_BATCH_SIZE" default:"16"`
	StaleAfter           time.Duration `envconfig:"STALE_AFTER" default:"30m"`
	SweepInterval        time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`
	MaxJobAttempts       int           `envconfig:"MAX_JOB_ATTEMPTS" default:"3"`
}

// VectorDimensions is the width of the vector_entries.embedding column
const VectorDimensions = 768

// DefaultAllowedExtensions are the media extensions accepted without a sniffed audio/video type.
var DefaultAllowedExtensions = []string{
	"mp3", "wav", "m4a", "ogg", "flac", "aac", "webm",
	"mp4", "avi", "mov", "wmv", "flv", "mkv",
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables or defaults")
	}

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8000"),
			Host:            getEnv("HOST", "0.0.0.0"),
			Environment:     getEnv("ENVIRONMENT", "development"),
			AllowedOrigins:  getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			ShutdownTimeout: getEnvAsInt("SHUTDOWN_TIMEOUT", 10),
		},
		Database: DatabaseConfig{
			Host:          getEnv("DB_HOST", "localhost"),
			Port:          getEnv("DB_PORT", "5432"),
			User:          getEnv("DB_USER", "postgres"),
			Password:      getEnv("DB_PASSWORD", "postgres"),
			Name:          getEnv("DB_NAME", "meeting_intelligence"),
			SSLMode:       getEnv("DB_SSLMODE", "disable"),
			MaxConns:      getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:      getEnvAsInt("DB_MIN_CONNS", 5),
			AutoMigrate:   getEnvAsBool("DB_AUTO_MIGRATE", false),
			MigrationsDir: getEnv("DB_MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			Endpoint:        getEnv("STORAGE_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getEnv("STORAGE_ACCESS_KEY", "minioadmin"),
			SecretAccessKey: getEnv("STORAGE_SECRET_KEY", "minioadmin"),
			BucketName:      getEnv("STORAGE_BUCKET", "meeting-uploads"),
			UseSSL:          getEnvAsBool("STORAGE_USE_SSL", false),
		},
		Assembly: AssemblyAIConfig{
			APIKey:       getEnv("ASSEMBLYAI_API_KEY", ""),
			LanguageCode: getEnv("ASSEMBLYAI_LANGUAGE_CODE", ""),
		},
		Groq: GroqConfig{
			APIKey:  getEnv("GROQ_API_KEY", ""),
			BaseURL: getEnv("GROQ_API_URL", "https://api.groq.com"),
			Model:   getEnv("GROQ_MODEL", "llama-3.3-70b-versatile"),
			Timeout: getEnvAsDuration("GROQ_TIMEOUT", "60s"),
		},
		Ollama: OllamaConfig{
			BaseURL:        getEnv("OLLAMA_API_URL", "http://localhost:11434"),
			EmbeddingModel: getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			Dimensions:     getEnvAsInt("EMBEDDING_DIMENSIONS", VectorDimensions),
			Timeout:        getEnvAsDuration("OLLAMA_TIMEOUT", "60s"),
		},
		Upload: UploadConfig{
			MaxSizeMB:         int64(getEnvAsInt("MAX_UPLOAD_SIZE_MB", 100)),
			AllowedExtensions: getEnvAsSlice("UPLOAD_ALLOWED_EXTENSIONS", DefaultAllowedExtensions),
		},
		Search: SearchConfig{
			ResultLimit:      getEnvAsInt("SEARCH_RESULT_LIMIT", 5),
			QueryCacheTTL:    getEnvAsDuration("SEARCH_QUERY_CACHE_TTL", "5m"),
			QueryCacheMaxLen: getEnvAsInt("SEARCH_QUERY_CACHE_MAX_LEN", 1024),
		},
	}

	if err := envconfig.Process("PIPELINE", &config.Pipeline); err != nil {
		return nil, fmt.Errorf("failed to load pipeline config: %w", err)
	}
	if config.Pipeline.QueueConsumer == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "worker"
		}
		config.Pipeline.QueueConsumer = host
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Assembly.APIKey == "" {
		return fmt.Errorf("ASSEMBLYAI_API_KEY is required")
	}
	if c.Groq.APIKey == "" {
		return fmt.Errorf("GROQ_API_KEY is required")
	}
	if c.Ollama.Dimensions != VectorDimensions {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be %d to match the vector_entries column", VectorDimensions)
	}
	if c.Upload.MaxSizeMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE_MB must be positive")
	}
	if c.Search.ResultLimit <= 0 {
		return fmt.Errorf("SEARCH_RESULT_LIMIT must be positive")
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("PIPELINE_WORKERS must be positive")
	}
	if c.Pipeline.StageMaxAttempts <= 0 {
		return fmt.Errorf("PIPELINE_STAGE_MAX_ATTEMPTS must be positive")
	}
	if c.Pipeline.ChunkMaxWords <= 0 {
		return fmt.Errorf("PIPELINE_CHUNK_MAX_WORDS must be positive")
	}
	if c.Pipeline.QueueClaimIdle <= c.Pipeline.JobTimeout {
		return fmt.Errorf("PIPELINE_QUEUE_CLAIM_IDLE must exceed PIPELINE_JOB_TIMEOUT")
	}
	if c.Pipeline.StaleAfter < c.Pipeline.JobTimeout {
		return fmt.Errorf("PIPELINE_STALE_AFTER must not be shorter than PIPELINE_JOB_TIMEOUT")
	}
	return nil
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// MaxUploadBytes returns the upload limit in bytes
func (c *Config) MaxUploadBytes() int64 {
	return c.Upload.MaxSizeMB * 1024 * 1024
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
