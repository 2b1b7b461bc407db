package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the knowledge base service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Databases DatabasesConfig `mapstructure:"databases"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	Listen   string `mapstructure:"listen"`
}

// ProvidersConfig contains model provider configurations
type ProvidersConfig struct {
	HuggingFace HuggingFaceConfig `mapstructure:"huggingface"`
}

// HuggingFaceConfig configures the HuggingFace inference API client.
// Missing credentials surface as failures on the first outbound call,
// not at startup.
type HuggingFaceConfig struct {
	APIToken       string        `mapstructure:"api_token"`
	BaseURL        string        `mapstructure:"base_url"`
	ChatModel      string        `mapstructure:"chat_model"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	Temperature    float64       `mapstructure:"temperature"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

// VectorConfig contains vector index settings
type VectorConfig struct {
	Pinecone PineconeConfig `mapstructure:"pinecone"`
}

// PineconeConfig configures the Pinecone index client
type PineconeConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	Host       string        `mapstructure:"host"`
	Namespace  string        `mapstructure:"namespace"`
	BatchSize  int           `mapstructure:"batch_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

func (p PineconeConfig) Validate() error {
	if p.BatchSize < 0 {
		return fmt.Errorf("vector.pinecone.batch_size must be >= 0")
	}
	return nil
}

// DatabasesConfig contains backing store connections
type DatabasesConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN builds a postgres connection string from the configured fields.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (databases.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// RedisConfig is optional; an empty host disables ingest locks and the
// cleanup scheduler lock.
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Pass string `mapstructure:"pass"`
	DB   int    `mapstructure:"db"`
}

func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	port := r.Port
	if port == "" {
		port = "6379"
	}
	return r.Host + ":" + port
}

// IngestConfig bounds the ingestion pipeline
type IngestConfig struct {
	MaxUploadMB  int `mapstructure:"max_upload_mb"`
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
}

func (i IngestConfig) Validate() error {
	if i.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size must be > 0")
	}
	if i.ChunkOverlap < 0 || i.ChunkOverlap >= i.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap must satisfy 0 <= overlap < chunk_size")
	}
	if i.MaxUploadMB <= 0 {
		return fmt.Errorf("ingest.max_upload_mb must be > 0")
	}
	return nil
}

// MaxUploadBytes returns the upload bound in bytes.
func (i IngestConfig) MaxUploadBytes() int64 {
	return int64(i.MaxUploadMB) * 1024 * 1024
}

// RetrievalConfig bounds the question-answering path
type RetrievalConfig struct {
	TopK int `mapstructure:"top_k"`
}

func (r RetrievalConfig) Validate() error {
	if r.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be > 0")
	}
	return nil
}

// CleanupConfig drives the background retention scheduler
type CleanupConfig struct {
	Enabled               bool   `mapstructure:"enabled"`
	Schedule              string `mapstructure:"schedule"`
	ActivityRetentionDays int    `mapstructure:"activity_retention_days"`
}

func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.listen", ":8080")
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("providers.huggingface.base_url", "https://api-inference.huggingface.co/models")
	viper.SetDefault("providers.huggingface.chat_model", "mistralai/Mistral-7B-Instruct-v0.2")
	viper.SetDefault("providers.huggingface.embedding_model", "sentence-transformers/all-MiniLM-L6-v2")
	viper.SetDefault("providers.huggingface.temperature", 0.7)
	viper.SetDefault("providers.huggingface.max_tokens", 1024)
	viper.SetDefault("providers.huggingface.timeout", "30s")
	viper.SetDefault("providers.huggingface.max_retries", 2)
	viper.SetDefault("vector.pinecone.batch_size", 100)
	viper.SetDefault("vector.pinecone.timeout", "15s")
	viper.SetDefault("vector.pinecone.max_retries", 2)
	viper.SetDefault("ingest.max_upload_mb", 100)
	viper.SetDefault("ingest.chunk_size", 1000)
	viper.SetDefault("ingest.chunk_overlap", 200)
	viper.SetDefault("retrieval.top_k", 10)
	viper.SetDefault("cleanup.enabled", true)
	viper.SetDefault("cleanup.schedule", "@daily")
	viper.SetDefault("cleanup.activity_retention_days", 90)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("KBASE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// env-only operation is allowed; a present-but-broken file is not
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Ingest.Validate(); err != nil {
		panic(err)
	}
	if err := config.Retrieval.Validate(); err != nil {
		panic(err)
	}
	if err := config.Vector.Pinecone.Validate(); err != nil {
		panic(err)
	}
	return &config
}
