package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	NATS      NATSConfig
	JWT       JWTConfig
	Gemini    GeminiConfig
	Memory    MemoryConfig
	Chat      ChatConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxConns       int32
	MigrationsPath string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NATSConfig is optional; an empty URL disables the JetStream index queue.
type NATSConfig struct {
	URL string
}

type JWTConfig struct {
	AccessSecret string
	Issuer       string
}

type GeminiConfig struct {
	APIKey             string
	ChatModel          string
	EmbeddingProvider  string
	EmbeddingModel     string
	EmbeddingDimension int
	EmbeddingCacheSize int64
}

type MemoryConfig struct {
	TopK          int
	MinSimilarity float64
	ExcerptLength int
	IndexWorkers  int
	IndexTimeout  time.Duration
}

type ChatConfig struct {
	HistoryLimit int
	TurnTimeout  time.Duration
}

type RateLimitConfig struct {
	AIPerMinute    int
	WritePerMinute int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		DB: DBConfig{
			Host:           k.String("db.host"),
			Port:           k.Int("db.port"),
			User:           k.String("db.user"),
			Password:       k.String("db.password"),
			Name:           k.String("db.name"),
			SSLMode:        k.String("db.sslmode"),
			MaxConns:       int32(k.Int("db.max.conns")),
			MigrationsPath: k.String("db.migrations.path"),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		JWT: JWTConfig{
			AccessSecret: k.String("jwt.access.secret"),
			Issuer:       k.String("jwt.issuer"),
		},
		Gemini: GeminiConfig{
			APIKey:             k.String("gemini.api.key"),
			ChatModel:          k.String("gemini.chat.model"),
			EmbeddingProvider:  k.String("embedding.provider"),
			EmbeddingModel:     k.String("gemini.embedding.model"),
			EmbeddingDimension: k.Int("gemini.embedding.dimension"),
			EmbeddingCacheSize: k.Int64("embedding.cache.size"),
		},
		Memory: MemoryConfig{
			TopK:          k.Int("memory.top.k"),
			MinSimilarity: k.Float64("memory.min.similarity"),
			ExcerptLength: k.Int("memory.excerpt.length"),
			IndexWorkers:  k.Int("memory.index.workers"),
		},
		Chat: ChatConfig{
			HistoryLimit: k.Int("chat.history.limit"),
		},
		RateLimit: RateLimitConfig{
			AIPerMinute:    k.Int("ratelimit.ai.per.minute"),
			WritePerMinute: k.Int("ratelimit.write.per.minute"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	if origins := k.String("cors.allowed.origins"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORS.AllowedOrigins = append(cfg.CORS.AllowedOrigins, o)
			}
		}
	}

	applyDefaults(cfg)

	// Parse durations
	cfg.Memory.IndexTimeout, err = parseDuration(k.String("memory.index.timeout"), "30s")
	if err != nil {
		return nil, fmt.Errorf("parsing memory index timeout: %w", err)
	}
	cfg.Chat.TurnTimeout, err = parseDuration(k.String("chat.turn.timeout"), "2m")
	if err != nil {
		return nil, fmt.Errorf("parsing chat turn timeout: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "futureecho"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "futureecho"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.DB.MigrationsPath == "" {
		cfg.DB.MigrationsPath = "migrations"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "futureecho"
	}
	if cfg.Gemini.ChatModel == "" {
		cfg.Gemini.ChatModel = "gemini-2.0-flash"
	}
	if cfg.Gemini.EmbeddingProvider == "" {
		cfg.Gemini.EmbeddingProvider = "gemini"
	}
	if cfg.Gemini.EmbeddingModel == "" {
		cfg.Gemini.EmbeddingModel = "gemini-embedding-001"
	}
	if cfg.Gemini.EmbeddingDimension == 0 {
		cfg.Gemini.EmbeddingDimension = 768
	}
	if cfg.Gemini.EmbeddingCacheSize == 0 {
		cfg.Gemini.EmbeddingCacheSize = 1000
	}
	if cfg.Memory.TopK == 0 {
		cfg.Memory.TopK = 5
	}
	if cfg.Memory.MinSimilarity == 0 {
		cfg.Memory.MinSimilarity = 0.1
	}
	if cfg.Memory.ExcerptLength == 0 {
		cfg.Memory.ExcerptLength = 500
	}
	if cfg.Memory.IndexWorkers == 0 {
		cfg.Memory.IndexWorkers = 4
	}
	if cfg.Chat.HistoryLimit == 0 {
		cfg.Chat.HistoryLimit = 20
	}
	if cfg.RateLimit.AIPerMinute == 0 {
		cfg.RateLimit.AIPerMinute = 10
	}
	if cfg.RateLimit.WritePerMinute == 0 {
		cfg.RateLimit.WritePerMinute = 60
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "debug"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func parseDuration(s, fallback string) (time.Duration, error) {
	if s == "" {
		s = fallback
	}
	return time.ParseDuration(s)
}
