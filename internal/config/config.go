// Package config loads the engine configuration: defaults, overlaid by an
// optional YAML file, overlaid by environment variables for addresses and
// credentials. Every tunable the engine uses is a named field here, never
// an inline constant.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Relayline/pulse/internal/assembler"
	"github.com/Relayline/pulse/internal/coldstart"
	"github.com/Relayline/pulse/internal/embed"
	"github.com/Relayline/pulse/internal/insight"
	"github.com/Relayline/pulse/internal/llm"
	"github.com/Relayline/pulse/internal/vecstore"
)

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error
	Format string `yaml:"format"` // console or json
}

// CRMConfig locates the CRM application's database.
type CRMConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// VectorStoreConfig configures the Milvus embedding store.
type VectorStoreConfig struct {
	Address    string `yaml:"address"`
	Collection string `yaml:"collection"`
}

// EmbeddingConfig configures the embedding provider and batch job.
type EmbeddingConfig struct {
	Model          string `yaml:"model"`
	Dimension      int    `yaml:"dimension"`
	BatchSize      int    `yaml:"batch_size"`
	Concurrency    int    `yaml:"concurrency"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// LLMConfig configures the generation provider.
type LLMConfig struct {
	Model          string  `yaml:"model"`
	Temperature    float32 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// Config is the full engine configuration.
type Config struct {
	Server      ServerConfig         `yaml:"server"`
	Log         LogConfig            `yaml:"log"`
	CRM         CRMConfig            `yaml:"crm"`
	VectorStore VectorStoreConfig    `yaml:"vector_store"`
	Embedding   EmbeddingConfig      `yaml:"embedding"`
	LLM         LLMConfig            `yaml:"llm"`
	Retrieval   assembler.Config     `yaml:"retrieval"`
	ColdStart   coldstart.Thresholds `yaml:"cold_start"`
	Insight     insight.Config       `yaml:"insight"`
}

// Default returns the engine defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		Log:    LogConfig{Level: "info", Format: "console"},
		CRM:    CRMConfig{SQLitePath: "crm.db"},
		VectorStore: VectorStoreConfig{
			Address:    "localhost:19530",
			Collection: "pulse_embeddings",
		},
		Embedding: EmbeddingConfig{
			Model:          "text-embedding-3-small",
			Dimension:      1536,
			BatchSize:      16,
			Concurrency:    4,
			TimeoutSeconds: 30,
		},
		LLM: LLMConfig{
			Model:          "gpt-4o",
			MaxTokens:      2000,
			TimeoutSeconds: 30,
		},
		Retrieval: assembler.DefaultConfig(),
		ColdStart: coldstart.DefaultThresholds(),
		Insight:   insight.DefaultConfig(),
	}
}

// Load reads the YAML file at path (when it exists) over the defaults,
// then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("error parsing config file: %w", err)
			}
		}
	}

	applyEnv(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PULSE_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("PULSE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("CRM_SQLITE_PATH"); v != "" {
		cfg.CRM.SQLitePath = v
	}
	if v := os.Getenv("MILVUS_ADDRESS"); v != "" {
		cfg.VectorStore.Address = v
	}
	if v := os.Getenv("MILVUS_COLLECTION"); v != "" {
		cfg.VectorStore.Collection = v
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("EMBEDDING_DIMENSION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Embedding.Dimension = n
		}
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
}

// MilvusConfig projects the loaded configuration into the vector store's
// own config type.
func (c *Config) MilvusConfig() vecstore.MilvusConfig {
	mc := vecstore.DefaultMilvusConfig()
	mc.Address = c.VectorStore.Address
	mc.CollectionName = c.VectorStore.Collection
	mc.Dimension = c.Embedding.Dimension
	return mc
}

// RetrievalConfig projects the retrieval section, carrying the embedding
// provider timeout over to the query-embedding call.
func (c *Config) RetrievalConfig() assembler.Config {
	rc := c.Retrieval
	rc.EmbedTimeout = time.Duration(c.Embedding.TimeoutSeconds) * time.Second
	return rc
}

// GeneratorConfig projects the embedding section into the batch job's
// config type.
func (c *Config) GeneratorConfig() embed.GeneratorConfig {
	return embed.GeneratorConfig{
		BatchSize:       c.Embedding.BatchSize,
		Concurrency:     c.Embedding.Concurrency,
		ProviderTimeout: time.Duration(c.Embedding.TimeoutSeconds) * time.Second,
	}
}

// LLMProviderConfig projects the llm section into the provider's config
// type.
func (c *Config) LLMProviderConfig() llm.Config {
	return llm.Config{
		Model:       c.LLM.Model,
		Temperature: c.LLM.Temperature,
		MaxTokens:   c.LLM.MaxTokens,
		Timeout:     time.Duration(c.LLM.TimeoutSeconds) * time.Second,
	}
}
