// Package config loads and validates the recognized configuration surface
// from spec §6. Grounded on the teacher's config.go: viper for
// load/merge/env-binding, but enumerated recognized options are additionally
// checked with go-playground/validator struct tags instead of the teacher's
// hand-rolled Validate().
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds every recognized option from spec §6.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Execution  ExecutionConfig  `mapstructure:"execution"`
	IMAP       IMAPConfig       `mapstructure:"imap"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Redis      RedisConfig      `mapstructure:"redis"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port" validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname" validate:"required"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (c DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// SchedulerConfig governs the dispatcher's tick cadence and lock reclamation
// (spec §4.9, §5).
type SchedulerConfig struct {
	TickInterval   time.Duration `mapstructure:"tick_interval" validate:"required"`
	StaleLockGrace time.Duration `mapstructure:"stale_lock_grace" validate:"required"`
}

// ExecutionConfig governs per-execution behavior (spec §4.8).
type ExecutionConfig struct {
	MaxMessagesPerRun int `mapstructure:"max_messages_per_run" validate:"min=1"`
	DefaultBatchSize  int `mapstructure:"default_batch_size" validate:"min=1"`
}

// IMAPConfig governs the mail fetcher and connection pool (spec §4.3, §4.4).
type IMAPConfig struct {
	FetchTimeout    time.Duration      `mapstructure:"fetch_timeout" validate:"required"`
	ConnectTimeout  time.Duration      `mapstructure:"connect_timeout" validate:"required"`
	HealthFreshness time.Duration      `mapstructure:"health_freshness" validate:"required"`
	AcquireTimeout  time.Duration      `mapstructure:"acquire_timeout" validate:"required"`
	Accounts        []IMAPAccountConfig `mapstructure:"accounts"`
}

// IMAPAccountConfig is one mailbox's connection recipe, keyed by the same
// emailAccountId a Schedule references. Credential storage proper is an
// out-of-scope external collaborator (spec §1); this is the minimal
// config-file-backed adapter cmd/api wires in by default.
type IMAPAccountConfig struct {
	ID           string `mapstructure:"id" validate:"required"`
	Host         string `mapstructure:"host" validate:"required"`
	Port         int    `mapstructure:"port" validate:"required"`
	Username     string `mapstructure:"username" validate:"required"`
	AuthMethod   string `mapstructure:"auth_method"`
	Password     string `mapstructure:"password"`
	OAuth2ClientID     string `mapstructure:"oauth2_client_id"`
	OAuth2ClientSecret string `mapstructure:"oauth2_client_secret"`
	OAuth2RefreshToken string `mapstructure:"oauth2_refresh_token"`
	OAuth2TokenURL     string `mapstructure:"oauth2_token_url"`
}

// LLMConfig governs the LLM client's model selection and limits (spec §4.7, §6).
type LLMConfig struct {
	DefaultModel      string        `mapstructure:"default_model" validate:"required"`
	Provider          string        `mapstructure:"provider"`
	Temperature       float64       `mapstructure:"temperature"`
	PerMessageTimeout time.Duration `mapstructure:"per_message_timeout" validate:"required"`
	MaxConcurrency    int           `mapstructure:"max_concurrency" validate:"min=1"`
	BedrockRegion     string        `mapstructure:"bedrock_region"`
}

// EmbeddingConfig governs the embedding classifier fallback threshold (spec §4.5).
type EmbeddingConfig struct {
	MinConfidence float64 `mapstructure:"min_confidence"`
}

// RedisConfig backs the progress sink pub/sub channel (spec §6 Progress sink).
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Load reads configuration from ./config.yaml (if present), then environment
// variables, validating the result against the struct tags above.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)
	viper.SetDefault("database.sslmode", "disable")

	viper.SetDefault("scheduler.tick_interval", "60s")
	viper.SetDefault("scheduler.stale_lock_grace", "10m")

	viper.SetDefault("execution.max_messages_per_run", 1000)
	viper.SetDefault("execution.default_batch_size", 5)

	viper.SetDefault("imap.fetch_timeout", "120s")
	viper.SetDefault("imap.connect_timeout", "30s")
	viper.SetDefault("imap.health_freshness", "60s")
	viper.SetDefault("imap.acquire_timeout", "60s")

	viper.SetDefault("llm.default_model", "anthropic.claude-3-haiku")
	viper.SetDefault("llm.provider", "bedrock")
	viper.SetDefault("llm.temperature", 0.1)
	viper.SetDefault("llm.per_message_timeout", "60s")
	viper.SetDefault("llm.max_concurrency", 4)
	viper.SetDefault("llm.bedrock_region", "us-east-1")

	viper.SetDefault("embedding.min_confidence", 0.7)

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
}

func bindEnvVars() {
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.dbname", "DB_NAME")
	viper.BindEnv("database.sslmode", "DB_SSLMODE")

	viper.BindEnv("scheduler.tick_interval", "SCHEDULER_TICK_INTERVAL")
	viper.BindEnv("scheduler.stale_lock_grace", "SCHEDULER_STALE_LOCK_GRACE")

	viper.BindEnv("execution.max_messages_per_run", "EXECUTION_MAX_MESSAGES_PER_RUN")
	viper.BindEnv("execution.default_batch_size", "EXECUTION_DEFAULT_BATCH_SIZE")

	viper.BindEnv("imap.fetch_timeout", "IMAP_FETCH_TIMEOUT")
	viper.BindEnv("imap.connect_timeout", "IMAP_CONNECT_TIMEOUT")
	viper.BindEnv("imap.health_freshness", "IMAP_HEALTH_FRESHNESS")
	viper.BindEnv("imap.acquire_timeout", "IMAP_ACQUIRE_TIMEOUT")

	viper.BindEnv("llm.default_model", "LLM_DEFAULT_MODEL")
	viper.BindEnv("llm.provider", "LLM_PROVIDER")
	viper.BindEnv("llm.temperature", "LLM_TEMPERATURE")
	viper.BindEnv("llm.per_message_timeout", "LLM_PER_MESSAGE_TIMEOUT")
	viper.BindEnv("llm.max_concurrency", "LLM_MAX_CONCURRENCY")
	viper.BindEnv("llm.bedrock_region", "LLM_BEDROCK_REGION")

	viper.BindEnv("embedding.min_confidence", "EMBEDDING_MIN_CONFIDENCE")

	viper.BindEnv("redis.addr", "REDIS_ADDR")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")
}
