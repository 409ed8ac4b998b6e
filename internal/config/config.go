package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Database  DatabaseConfig   `json:"database"`
	Port      int              `json:"port"`
	LogConfig logger.LogConfig `json:"log_config"`
	AI        AIConfig         `json:"ai"`
	Cache     CacheConfig      `json:"cache"`
	Queue     QueueConfig      `json:"queue"`
	Hybrid    HybridConfig     `json:"hybrid"`
	API       APIConfig        `json:"api"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type AIProviderConfig struct {
	Name         string      `json:"name"`
	Provider     string      `json:"provider"`
	Model        string      `json:"model"`
	ModelVersion string      `json:"model_version"`
	Args         interface{} `json:"args"`
}

type AIConfig struct {
	Providers      []AIProviderConfig `json:"providers"`
	TimeoutSeconds int                `json:"timeout_seconds"`
}

type CacheConfig struct {
	Backend            string  `json:"backend"`
	TTLSeconds         int64   `json:"ttl_seconds"`
	MaxEntries         int64   `json:"max_entries"`
	CleanupProbability float64 `json:"cleanup_probability"`
	Compression        bool    `json:"compression"`
	MemorySize         int     `json:"memory_size"`
}

type PriorityConfig struct {
	High   int `json:"high"`
	Normal int `json:"normal"`
	Low    int `json:"low"`
}

type QueueConfig struct {
	Enabled              bool            `json:"enabled"`
	DefaultServerEnabled bool            `json:"default_server_enabled"`
	ServerOverrides      map[string]bool `json:"server_overrides"`
	BatchSize            int             `json:"batch_size"`
	MaxProcessingSeconds int             `json:"max_processing_seconds"`
	LeaseTimeoutSeconds  int             `json:"lease_timeout_seconds"`
	MaxAttempts          int             `json:"max_attempts"`
	Priorities           PriorityConfig  `json:"priorities"`
}

type HybridConfig struct {
	TextWeight          float64 `json:"text_weight"`
	VectorWeight        float64 `json:"vector_weight"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
}

type APIConfig struct {
	CORSAllowlist []string `json:"cors_allowlist"`
	RateLimitMS   int      `json:"rate_limit_ms"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.AI.TimeoutSeconds <= 0 {
		cfg.AI.TimeoutSeconds = 30
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "db"
	}
	if cfg.Cache.Backend != "db" && cfg.Cache.Backend != "memory" {
		return nil, fmt.Errorf("cache.backend must be db or memory")
	}
	if cfg.Cache.TTLSeconds <= 0 {
		cfg.Cache.TTLSeconds = 30 * 24 * 3600
	}
	if cfg.Cache.MaxEntries <= 0 {
		cfg.Cache.MaxEntries = 100000
	}
	if cfg.Cache.CleanupProbability <= 0 {
		cfg.Cache.CleanupProbability = 0.01
	}
	if cfg.Cache.MemorySize <= 0 {
		cfg.Cache.MemorySize = 10000
	}
	if cfg.Queue.BatchSize <= 0 {
		cfg.Queue.BatchSize = 50
	}
	if cfg.Queue.MaxProcessingSeconds <= 0 {
		cfg.Queue.MaxProcessingSeconds = 60
	}
	if cfg.Queue.LeaseTimeoutSeconds <= 0 {
		cfg.Queue.LeaseTimeoutSeconds = 600
	}
	if cfg.Queue.MaxAttempts <= 0 {
		cfg.Queue.MaxAttempts = 5
	}
	if cfg.Queue.Priorities.High <= 0 {
		cfg.Queue.Priorities.High = 10
	}
	if cfg.Queue.Priorities.Normal <= 0 {
		cfg.Queue.Priorities.Normal = 50
	}
	if cfg.Queue.Priorities.Low <= 0 {
		cfg.Queue.Priorities.Low = 90
	}
	if cfg.Hybrid.TextWeight <= 0 {
		cfg.Hybrid.TextWeight = 0.7
	}
	if cfg.Hybrid.VectorWeight <= 0 {
		cfg.Hybrid.VectorWeight = 0.3
	}
	if cfg.Hybrid.SimilarityThreshold <= 0 {
		cfg.Hybrid.SimilarityThreshold = 0.6
	}
	return &cfg, nil
}
