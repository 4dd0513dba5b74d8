// Package config assembles persona-core settings from defaults, an optional
// YAML file, a .env file and the process environment, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/persona-core/internal/core/domain"
)

// Lock backends
const (
	LockBackendAuto     = "auto"
	LockBackendRedis    = "redis"
	LockBackendPostgres = "postgres"
	LockBackendNone     = "none"
)

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ChatConfig bounds the orchestration loop
type ChatConfig struct {
	MaxToolRounds int `yaml:"max_tool_rounds"`
}

// PineconeConfig configures the managed vector index service
type PineconeConfig struct {
	APIKey      string        `yaml:"-"` // Environment only
	ControlURL  string        `yaml:"control_url"`
	APIVersion  string        `yaml:"api_version"`
	Timeout     time.Duration `yaml:"timeout"`
	UpsertRate  float64       `yaml:"upsert_rate"`
	UpsertBurst int           `yaml:"upsert_burst"`
}

// CorpusConfig locates the historical posts table
type CorpusConfig struct {
	Path                 string `yaml:"path"`
	Table                string `yaml:"table"` // SQLite only
	domain.CorpusOptions `yaml:",inline"`
}

// RetrievalConfig configures the retriever
type RetrievalConfig struct {
	CacheEnabled bool          `yaml:"cache_enabled"` // Needs Redis
	CacheTTL     time.Duration `yaml:"cache_ttl"`
}

// LockConfig selects the provisioning lock backend
type LockConfig struct {
	Backend string        `yaml:"backend"` // auto, redis, postgres or none
	TTL     time.Duration `yaml:"ttl"`
}

// DatabaseConfig configures the optional PostgreSQL index state registry
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	StartupTimeout  time.Duration `yaml:"startup_timeout"`
}

// RedisConfig configures the optional Redis lock and hit cache
type RedisConfig struct {
	URL string `yaml:"url"`
}

// LogConfig selects the slog handler
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn or error
	Format string `yaml:"format"` // text or json
}

// Config is the root application configuration
type Config struct {
	Server    ServerConfig           `yaml:"server"`
	LLM       domain.LLMSettings     `yaml:"llm"`
	Persona   domain.PersonaSettings `yaml:"persona"`
	Chat      ChatConfig             `yaml:"chat"`
	Index     domain.IndexSpec       `yaml:"index"`
	Pinecone  PineconeConfig         `yaml:"pinecone"`
	Corpus    CorpusConfig           `yaml:"corpus"`
	Retrieval RetrievalConfig        `yaml:"retrieval"`
	Lock      LockConfig             `yaml:"lock"`
	Database  DatabaseConfig         `yaml:"database"`
	Redis     RedisConfig            `yaml:"redis"`
	Log       LogConfig              `yaml:"log"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8000,
			AllowedOrigins: []string{"*"},
		},
		LLM:     domain.LLMSettings{Provider: domain.AIProviderOpenAI}, // Model defaults per provider
		Persona: domain.DefaultPersonaSettings(),
		Chat:    ChatConfig{MaxToolRounds: 1},
		Index:   domain.DefaultIndexSpec(),
		Pinecone: PineconeConfig{
			ControlURL:  "https://api.pinecone.io",
			APIVersion:  "2025-01",
			Timeout:     30 * time.Second,
			UpsertRate:  5,
			UpsertBurst: 1,
		},
		Corpus: CorpusConfig{
			Path:          "data/tweets.csv",
			CorpusOptions: domain.DefaultCorpusOptions(),
		},
		Retrieval: RetrievalConfig{CacheEnabled: true, CacheTTL: 5 * time.Minute},
		Lock:      LockConfig{Backend: LockBackendAuto, TTL: 10 * time.Minute},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
			StartupTimeout:  15 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration.
// A .env file in the working directory is loaded first when present; it never overrides
// variables already set. path may be empty, in which case only defaults and environment apply.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

// applyEnv overrides file values with environment variables
func applyEnv(cfg *Config) {
	cfg.Server.Host = getEnv("HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("PORT", cfg.Server.Port)
	if origins := getEnv("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		cfg.Server.AllowedOrigins = splitList(origins)
	}

	cfg.LLM.Provider = domain.AIProvider(getEnv("LLM_PROVIDER", string(cfg.LLM.Provider)))
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.BaseURL = getEnv("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.APIKey = getEnv("OPENAI_API_KEY", cfg.LLM.APIKey)

	cfg.Persona.Name = getEnv("PERSONA_NAME", cfg.Persona.Name)
	cfg.Persona.Prompt = getEnv("PERSONA_PROMPT", cfg.Persona.Prompt)
	cfg.Chat.MaxToolRounds = getEnvInt("CHAT_MAX_TOOL_ROUNDS", cfg.Chat.MaxToolRounds)

	cfg.Index.Name = getEnv("INDEX_NAME", cfg.Index.Name)
	cfg.Index.Namespace = getEnv("INDEX_NAMESPACE", cfg.Index.Namespace)
	cfg.Index.EmbeddingModel = getEnv("INDEX_EMBEDDING_MODEL", cfg.Index.EmbeddingModel)
	cfg.Index.Cloud = getEnv("INDEX_CLOUD", cfg.Index.Cloud)
	cfg.Index.Region = getEnv("INDEX_REGION", cfg.Index.Region)
	cfg.Index.BatchSize = getEnvInt("INDEX_BATCH_SIZE", cfg.Index.BatchSize)
	cfg.Index.UploadMode = domain.UploadMode(getEnv("INDEX_UPLOAD_MODE", string(cfg.Index.UploadMode)))
	cfg.Index.IngestionWait = domain.IngestionWait(getEnv("INDEX_INGESTION_WAIT", string(cfg.Index.IngestionWait)))
	cfg.Index.IngestionDelay = getEnvDuration("INDEX_INGESTION_DELAY", cfg.Index.IngestionDelay)
	cfg.Index.IngestionTimeout = getEnvDuration("INDEX_INGESTION_TIMEOUT", cfg.Index.IngestionTimeout)

	cfg.Pinecone.APIKey = getEnv("PINECONE_API_KEY", cfg.Pinecone.APIKey)
	cfg.Pinecone.ControlURL = getEnv("PINECONE_CONTROL_URL", cfg.Pinecone.ControlURL)

	cfg.Corpus.Path = getEnv("CORPUS_PATH", cfg.Corpus.Path)
	cfg.Corpus.Table = getEnv("CORPUS_TABLE", cfg.Corpus.Table)
	cfg.Corpus.TextColumn = getEnv("CORPUS_TEXT_COLUMN", cfg.Corpus.TextColumn)
	cfg.Corpus.IDColumn = getEnv("CORPUS_ID_COLUMN", cfg.Corpus.IDColumn)

	cfg.Retrieval.CacheEnabled = getEnvBool("RETRIEVAL_CACHE_ENABLED", cfg.Retrieval.CacheEnabled)
	cfg.Retrieval.CacheTTL = getEnvDuration("RETRIEVAL_CACHE_TTL", cfg.Retrieval.CacheTTL)
	cfg.Lock.Backend = getEnv("LOCK_BACKEND", cfg.Lock.Backend)
	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)
	cfg.Database.StartupTimeout = getEnvDuration("DATABASE_STARTUP_TIMEOUT", cfg.Database.StartupTimeout)
	cfg.Redis.URL = getEnv("REDIS_URL", cfg.Redis.URL)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
}

// applyDefaults fills zero values a partial YAML file may leave behind
func applyDefaults(cfg *Config) {
	def := Default()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = def.Server.AllowedOrigins
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = def.LLM.Provider
	}
	if cfg.Chat.MaxToolRounds <= 0 {
		cfg.Chat.MaxToolRounds = def.Chat.MaxToolRounds
	}
	if cfg.Index.Namespace == "" {
		cfg.Index.Namespace = def.Index.Namespace
	}
	if cfg.Index.TextField == "" {
		cfg.Index.TextField = def.Index.TextField
	}
	if cfg.Index.UploadMode == "" {
		cfg.Index.UploadMode = def.Index.UploadMode
	}
	if cfg.Index.IngestionWait == "" {
		cfg.Index.IngestionWait = def.Index.IngestionWait
	}
	if cfg.Corpus.TextColumn == "" {
		cfg.Corpus.TextColumn = def.Corpus.TextColumn
	}
	if cfg.Corpus.IDColumn == "" {
		cfg.Corpus.IDColumn = def.Corpus.IDColumn
	}
	if cfg.Lock.Backend == "" {
		cfg.Lock.Backend = def.Lock.Backend
	}
	if cfg.Lock.TTL <= 0 {
		cfg.Lock.TTL = def.Lock.TTL
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
}

// Validate checks settings every command relies on.
// needsLLM is false for commands that never call the language model.
func (c *Config) Validate(needsLLM bool) error {
	var errs []error

	if c.Pinecone.APIKey == "" {
		errs = append(errs, errors.New("PINECONE_API_KEY is required"))
	}
	if err := c.Index.Validate(); err != nil {
		errs = append(errs, err)
	}
	if needsLLM {
		if !c.LLM.Provider.IsValid() {
			errs = append(errs, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, c.LLM.Provider))
		} else if !c.LLM.IsConfigured() {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai provider"))
		}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Server.Port))
	}
	switch c.Lock.Backend {
	case LockBackendAuto, LockBackendNone:
	case LockBackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("lock backend redis requires REDIS_URL"))
		}
	case LockBackendPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("lock backend postgres requires DATABASE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown lock backend %q", c.Lock.Backend))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ResolveLockBackend turns "auto" into the best available backend
func (c *Config) ResolveLockBackend() string {
	if c.Lock.Backend != LockBackendAuto {
		return c.Lock.Backend
	}
	switch {
	case c.Redis.URL != "":
		return LockBackendRedis
	case c.Database.URL != "":
		return LockBackendPostgres
	default:
		return LockBackendNone
	}
}

// NewLogger builds the slog logger described by the log settings
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// Environment helpers

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(value); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
