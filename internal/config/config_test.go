package config

import (
	"os"
	"path/filepath"
	"testing"

	"layout-translator/internal/types"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	cfg := m.Get()
	if cfg.OpenAIBaseURL != DefaultBaseURL {
		t.Errorf("base URL = %q, want default", cfg.OpenAIBaseURL)
	}
	if cfg.ChunkSize != DefaultChunkSize {
		t.Errorf("chunk size = %d, want %d", cfg.ChunkSize, DefaultChunkSize)
	}
	if cfg.BatchSize != DefaultBatchSize {
		t.Errorf("batch size = %d, want %d", cfg.BatchSize, DefaultBatchSize)
	}
	if cfg.TargetLanguage != DefaultTargetLanguage {
		t.Errorf("target language = %q, want %q", cfg.TargetLanguage, DefaultTargetLanguage)
	}
}

func TestLoadInvalidJSONFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	m, _ := NewManager(path)
	if err := m.Load(); err != nil {
		t.Fatalf("Load should tolerate invalid JSON: %v", err)
	}
	if m.Get().OpenAIModel != DefaultModel {
		t.Errorf("model = %q, want default", m.Get().OpenAIModel)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvOpenAIAPIKey, "env-key")
	t.Setenv(EnvAzureDIEndpoint, "https://di.example.com")

	m, _ := NewManager(filepath.Join(t.TempDir(), "cfg.json"))
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Get().OpenAIAPIKey != "env-key" {
		t.Errorf("api key = %q, want env override", m.Get().OpenAIAPIKey)
	}
	if m.Get().AzureDIEndpoint != "https://di.example.com" {
		t.Errorf("DI endpoint = %q, want env override", m.Get().AzureDIEndpoint)
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	m, _ := NewManager(path)
	if err := m.Load(); err != nil {
		t.Fatal(err)
	}

	cfg := m.Get()
	cfg.OpenAIModel = "gpt-4o-mini"
	cfg.ChunkSize = 5
	if err := m.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	m2, _ := NewManager(path)
	if err := m2.Load(); err != nil {
		t.Fatal(err)
	}
	if m2.Get().OpenAIModel != "gpt-4o-mini" {
		t.Errorf("model not persisted, got %q", m2.Get().OpenAIModel)
	}
	if m2.Get().ChunkSize != 5 {
		t.Errorf("chunk size not persisted, got %d", m2.Get().ChunkSize)
	}
}

func TestValidateRequiresAPIKey(t *testing.T) {
	t.Setenv(EnvOpenAIAPIKey, "")
	m, _ := NewManager(filepath.Join(t.TempDir(), "cfg.json"))
	if err := m.Load(); err != nil {
		t.Fatal(err)
	}

	err := m.Validate()
	if err == nil {
		t.Fatal("Validate should fail without an API key")
	}
	appErr, ok := err.(*types.AppError)
	if !ok || appErr.Code != types.ErrConfig {
		t.Errorf("expected CONFIG_ERROR AppError, got %v", err)
	}

	m.Get().OpenAIAPIKey = "k"
	if err := m.Validate(); err != nil {
		t.Errorf("Validate with key: %v", err)
	}
}
