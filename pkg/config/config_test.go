package config

import (
	"testing"
	"time"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ASSEMBLYAI_API_KEY", "asm-key")
	t.Setenv("GROQ_API_KEY", "groq-key")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "8000" {
		t.Fatalf("expected default port 8000, got %s", cfg.Server.Port)
	}
	if cfg.Pipeline.Workers != 4 {
		t.Fatalf("expected 4 workers, got %d", cfg.Pipeline.Workers)
	}
	if cfg.Pipeline.ChunkMaxWords != 500 {
		t.Fatalf("expected chunk size 500, got %d", cfg.Pipeline.ChunkMaxWords)
	}
	if cfg.Pipeline.JobTimeout != 30*time.Minute {
		t.Fatalf("unexpected job timeout %s", cfg.Pipeline.JobTimeout)
	}
	if cfg.Pipeline.QueueConsumer == "" {
		t.Fatalf("expected consumer name to default to hostname")
	}
	if cfg.Search.ResultLimit != 5 {
		t.Fatalf("expected search limit 5, got %d", cfg.Search.ResultLimit)
	}
	if cfg.MaxUploadBytes() != 100*1024*1024 {
		t.Fatalf("unexpected upload limit %d", cfg.MaxUploadBytes())
	}
	if len(cfg.Upload.AllowedExtensions) != len(DefaultAllowedExtensions) {
		t.Fatalf("unexpected extensions %v", cfg.Upload.AllowedExtensions)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PIPELINE_WORKERS", "8")
	t.Setenv("PIPELINE_STAGE_MAX_ATTEMPTS", "5")
	t.Setenv("PIPELINE_RETRY_INITIAL_INTERVAL", "250ms")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("DB_AUTO_MIGRATE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Pipeline.Workers != 8 || cfg.Pipeline.StageMaxAttempts != 5 {
		t.Fatalf("pipeline overrides not applied: %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.RetryInitialInterval != 250*time.Millisecond {
		t.Fatalf("unexpected retry interval %s", cfg.Pipeline.RetryInitialInterval)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "http://b.test" {
		t.Fatalf("unexpected origins %v", cfg.Server.AllowedOrigins)
	}
	if !cfg.Database.AutoMigrate {
		t.Fatalf("expected auto migrate enabled")
	}
}

func TestLoad_MissingKeys(t *testing.T) {
	t.Setenv("ASSEMBLYAI_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing api keys")
	}
}

func TestValidate_ClaimIdleMustExceedJobTimeout(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PIPELINE_QUEUE_CLAIM_IDLE", "10m")
	t.Setenv("PIPELINE_JOB_TIMEOUT", "30m")

	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_StaleAfterCoversJobTimeout(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PIPELINE_JOB_TIMEOUT", "30m")
	t.Setenv("PIPELINE_STALE_AFTER", "5m")

	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_EmbeddingDimensionsMatchColumn(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("EMBEDDING_DIMENSIONS", "1024")

	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestVectorDimensions_MatchesEntity(t *testing.T) {
	if VectorDimensions != entities.EmbeddingDimensions {
		t.Fatalf("config %d != entity %d", VectorDimensions, entities.EmbeddingDimensions)
	}
}
