// Package config provides configuration management for the PDF translator.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"layout-translator/internal/logger"
	"layout-translator/internal/types"
)

const (
	// DefaultConfigFileName is the default configuration file name
	DefaultConfigFileName = "pdftranslate-config.json"
	// EnvOpenAIAPIKey is the environment variable name for the OpenAI API key
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	// EnvOpenAIBaseURL is the environment variable name for the OpenAI base URL
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
	// EnvAzureDIEndpoint is the environment variable for the Document Intelligence endpoint
	EnvAzureDIEndpoint = "AZURE_DI_ENDPOINT"
	// EnvAzureDIKey is the environment variable for the Document Intelligence key
	EnvAzureDIKey = "AZURE_DI_KEY"

	// DefaultBaseURL is the default OpenAI API base URL
	DefaultBaseURL = "https://api.openai.com/v1"
	// DefaultModel is the default model used for translation
	DefaultModel = "gpt-4o"
	// DefaultSourceLanguage is the default source language
	DefaultSourceLanguage = "English"
	// DefaultTargetLanguage is the default target language
	DefaultTargetLanguage = "Korean"
	// DefaultChunkSize is the default number of pages per extraction chunk
	DefaultChunkSize = 10
	// DefaultBatchSize is the default number of merged blocks per translation request
	DefaultBatchSize = 40
	// DefaultConcurrency is the default number of concurrent chunk pipelines
	DefaultConcurrency = 3
	// DefaultMaxRetries is the default number of attempts per translation batch
	DefaultMaxRetries = 3
	// DefaultFontSize is the default overlay font size in points
	DefaultFontSize = 10.0
)

// Manager manages application configuration
type Manager struct {
	configPath string
	config     *types.Config
}

// NewManager creates a new configuration Manager with the specified config path.
// If configPath is empty, it uses the default path in the user's home directory.
func NewManager(configPath string) (*Manager, error) {
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			logger.Error("failed to get user home directory", err)
			return nil, types.NewAppError(types.ErrConfig, "failed to get user home directory", err)
		}
		configPath = filepath.Join(homeDir, ".config", "pdftranslate", DefaultConfigFileName)
	}

	logger.Debug("config manager initialized", logger.String("configPath", configPath))
	return &Manager{
		configPath: configPath,
		config:     defaultConfig(),
	}, nil
}

func defaultConfig() *types.Config {
	return &types.Config{
		OpenAIBaseURL:  DefaultBaseURL,
		OpenAIModel:    DefaultModel,
		SourceLanguage: DefaultSourceLanguage,
		TargetLanguage: DefaultTargetLanguage,
		ChunkSize:      DefaultChunkSize,
		BatchSize:      DefaultBatchSize,
		Concurrency:    DefaultConcurrency,
		MaxRetries:     DefaultMaxRetries,
		FontSize:       DefaultFontSize,
	}
}

// Load loads configuration from the config file, then applies environment
// overrides. A .env file in the working directory is honored first.
func (m *Manager) Load() error {
	// Missing .env is fine; explicit env vars still apply.
	_ = godotenv.Load()

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("config file not found, using defaults", logger.String("path", m.configPath))
			m.config = defaultConfig()
		} else {
			logger.Error("failed to read config file", err, logger.String("path", m.configPath))
			return types.NewAppError(types.ErrConfig, "failed to read config file", err)
		}
	} else {
		cfg := &types.Config{}
		if err := json.Unmarshal(data, cfg); err != nil {
			logger.Warn("invalid config file format, using defaults",
				logger.String("path", m.configPath), logger.Err(err))
			m.config = defaultConfig()
		} else {
			m.config = cfg
		}
	}

	m.applyDefaults()
	m.applyEnvOverrides()
	return nil
}

func (m *Manager) applyDefaults() {
	if m.config.OpenAIBaseURL == "" {
		m.config.OpenAIBaseURL = DefaultBaseURL
	}
	if m.config.OpenAIModel == "" {
		m.config.OpenAIModel = DefaultModel
	}
	if m.config.SourceLanguage == "" {
		m.config.SourceLanguage = DefaultSourceLanguage
	}
	if m.config.TargetLanguage == "" {
		m.config.TargetLanguage = DefaultTargetLanguage
	}
	if m.config.ChunkSize <= 0 {
		m.config.ChunkSize = DefaultChunkSize
	}
	if m.config.BatchSize <= 0 {
		m.config.BatchSize = DefaultBatchSize
	}
	if m.config.Concurrency <= 0 {
		m.config.Concurrency = DefaultConcurrency
	}
	if m.config.MaxRetries <= 0 {
		m.config.MaxRetries = DefaultMaxRetries
	}
	if m.config.FontSize <= 0 {
		m.config.FontSize = DefaultFontSize
	}
}

func (m *Manager) applyEnvOverrides() {
	if v := os.Getenv(EnvOpenAIAPIKey); v != "" {
		m.config.OpenAIAPIKey = v
	}
	if v := os.Getenv(EnvOpenAIBaseURL); v != "" {
		m.config.OpenAIBaseURL = v
	}
	if v := os.Getenv(EnvAzureDIEndpoint); v != "" {
		m.config.AzureDIEndpoint = v
	}
	if v := os.Getenv(EnvAzureDIKey); v != "" {
		m.config.AzureDIKey = v
	}
}

// Save persists the current configuration to the config file
func (m *Manager) Save() error {
	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return types.NewAppError(types.ErrConfig, "failed to create config directory", err)
	}

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return types.NewAppError(types.ErrConfig, "failed to marshal config", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return types.NewAppError(types.ErrConfig, "failed to write config file", err)
	}
	return nil
}

// Get returns the current configuration
func (m *Manager) Get() *types.Config {
	return m.config
}

// Set replaces the current configuration
func (m *Manager) Set(cfg *types.Config) {
	m.config = cfg
	m.applyDefaults()
}

// Validate checks that the configuration required for a translation run is
// present. A missing translation credential is the fatal configuration error
// class: the run must not start without it.
func (m *Manager) Validate() error {
	if m.config.OpenAIAPIKey == "" {
		return types.NewAppErrorWithDetails(types.ErrConfig,
			"translation service is not configured",
			"set "+EnvOpenAIAPIKey+" or the openai_api_key config field", nil)
	}
	return nil
}
