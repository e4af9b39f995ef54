package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            string        `yaml:"port"`
		Mode            string        `yaml:"mode"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Fetcher struct {
		Timeout   time.Duration `yaml:"timeout"`
		MaxBytes  int64         `yaml:"max_bytes"`
		RateLimit float64       `yaml:"rate_limit"`
		UserAgent string        `yaml:"user_agent"`
		TempDir   string        `yaml:"temp_dir"`
	} `yaml:"fetcher"`

	Processor struct {
		ChunkSize      int `yaml:"chunk_size"`
		ChunkOverlap   int `yaml:"chunk_overlap"`
		MinChunkLength int `yaml:"min_chunk_length"`
	} `yaml:"processor"`

	LLM struct {
		BaseURL        string  `yaml:"base_url"`
		Model          string  `yaml:"model"`
		EmbeddingModel string  `yaml:"embedding_model"`
		MaxTokens      int     `yaml:"max_tokens"`
		Temperature    float64 `yaml:"temperature"`
		TopK           int     `yaml:"top_k"`
	} `yaml:"llm"`

	Store struct {
		Type      string `yaml:"type"`
		URL       string `yaml:"url"`
		TableName string `yaml:"table_name"`
		VectorDim int    `yaml:"vector_dim"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"store"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/docqa/config.yaml"),
			"/etc/docqa/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Keys absent from the file keep their preset values.
	config := &Config{}
	presetDefaults(config)
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(config)
	applyDefaults(config)

	return config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	presetDefaults(config)
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

// presetDefaults sets the fields for which zero is a valid setting, so they
// are filled before the file is read rather than after.
func presetDefaults(config *Config) {
	config.Processor.ChunkOverlap = 200
	config.LLM.Temperature = 0.1
}

// applyDefaults fills fields left at a zero value that is never valid.
func applyDefaults(config *Config) {
	if config.Server.Port == "" {
		config.Server.Port = "8000"
	}
	if config.Server.Mode == "" {
		config.Server.Mode = "release"
	}
	if config.Server.ShutdownTimeout == 0 {
		config.Server.ShutdownTimeout = 10 * time.Second
	}

	if config.Fetcher.Timeout == 0 {
		config.Fetcher.Timeout = 20 * time.Second
	}
	if config.Fetcher.MaxBytes == 0 {
		config.Fetcher.MaxBytes = 50 << 20
	}
	if config.Fetcher.UserAgent == "" {
		config.Fetcher.UserAgent = "docqa/1.0"
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 1000
	}
	if config.Processor.MinChunkLength == 0 {
		config.Processor.MinChunkLength = 20
	}

	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = "mistral"
	}
	if config.LLM.EmbeddingModel == "" {
		config.LLM.EmbeddingModel = "nomic-embed-text:latest"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 1024
	}
	if config.LLM.TopK == 0 {
		config.LLM.TopK = 4
	}

	if config.Store.Type == "" {
		config.Store.Type = "memory"
	}
	if config.Store.TableName == "" {
		config.Store.TableName = "document_chunks"
	}
	if config.Store.VectorDim == 0 {
		config.Store.VectorDim = 768
	}
	if config.Store.BatchSize == 0 {
		config.Store.BatchSize = 64
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "json"
	}
}

func mergeWithEnv(config *Config) {
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Store.URL = dbURL
	}
	if storeType := os.Getenv("DOCQA_STORE"); storeType != "" {
		config.Store.Type = storeType
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}
}
