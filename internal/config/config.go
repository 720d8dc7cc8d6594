package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	BackendMongo  = "mongo"
	BackendMySQL  = "mysql"
	BackendMemory = "memory"

	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	App      AppConfig      `toml:"app"`
	Log      LogConfig      `toml:"log"`
	Storage  StorageConfig  `toml:"storage"`
	Mongo    MongoConfig    `toml:"mongo"`
	MySQL    MySQLConfig    `toml:"mysql"`
	Redis    RedisConfig    `toml:"redis"`
	RabbitMQ RabbitMQConfig `toml:"rabbitmq"`
	LLM      LLMConfig      `toml:"llm"`
	CORS     CORSConfig     `toml:"cors"`
}

type AppConfig struct {
	Name      string `toml:"name" env:"APP_NAME"`
	Env       string `toml:"env" env:"APP_ENV"`
	Host      string `toml:"host" env:"APP_HOST"`
	Port      int    `toml:"port" env:"APP_PORT"`
	GinMode   string `toml:"gin_mode" env:"GIN_MODE"`
	APIPrefix string `toml:"api_prefix" env:"API_PREFIX"`
}

type LogConfig struct {
	Level  string `toml:"level" env:"LOG_LEVEL"`
	Format string `toml:"format" env:"LOG_FORMAT"`
}

type StorageConfig struct {
	Backend   string `toml:"backend" env:"STORAGE_BACKEND"`
	UploadDir string `toml:"upload_dir" env:"UPLOAD_DIR"`
}

type MongoConfig struct {
	URL string `toml:"url" env:"MONGO_URL"`
	DB  string `toml:"db" env:"DB_NAME"`
}

type MySQLConfig struct {
	Host     string `toml:"host" env:"MYSQL_HOST"`
	Port     int    `toml:"port" env:"MYSQL_PORT"`
	User     string `toml:"user" env:"MYSQL_USER"`
	Password string `toml:"password" env:"MYSQL_PASSWORD"`
	DB       string `toml:"db" env:"MYSQL_DB"`
	Params   string `toml:"params" env:"MYSQL_PARAMS"`
}

type RedisConfig struct {
	Addr              string `toml:"addr" env:"REDIS_ADDR"`
	Password          string `toml:"password" env:"REDIS_PASSWORD"`
	DB                int    `toml:"db" env:"REDIS_DB"`
	HistoryTTLSeconds int    `toml:"history_ttl_seconds" env:"REDIS_HISTORY_TTL_SECONDS"`
}

type RabbitMQConfig struct {
	URL           string `toml:"url" env:"RABBITMQ_URL"`
	EventExchange string `toml:"event_exchange" env:"RABBITMQ_EVENT_EXCHANGE"`
}

type LLMConfig struct {
	Provider string `toml:"provider" env:"LLM_PROVIDER"`
	BaseURL  string `toml:"base_url" env:"LLM_BASE_URL"`
	APIKey   string `toml:"api_key" env:"LLM_API_KEY"`
	// Model is empty unless set; the provider picks its own default.
	Model string `toml:"model" env:"LLM_MODEL"`
}

type CORSConfig struct {
	Origins []string `toml:"origins" env:"CORS_ORIGINS" envSeparator:","`
}

// Load builds the configuration from defaults, the optional TOML file,
// an optional .env file and finally the process environment.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env failed: %w", err)
	}

	configPath := getEnv("CONFIG_FILE", "configs/config.toml")
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("decode config file failed: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env failed: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = getEnv("EMERGENT_LLM_KEY", "")
	}
	cfg.CORS.Origins = normalizeOrigins(cfg.CORS.Origins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMongo, BackendMySQL, BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.LLM.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("invalid app port %d", c.App.Port)
	}
	if strings.TrimSpace(c.Storage.UploadDir) == "" {
		return errors.New("upload dir is empty")
	}
	return nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		c.MySQL.User,
		c.MySQL.Password,
		c.MySQL.Host,
		c.MySQL.Port,
		c.MySQL.DB,
		c.MySQL.Params,
	)
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:      "gopherai-chat",
			Env:       "dev",
			Host:      "0.0.0.0",
			Port:      8001,
			GinMode:   "release",
			APIPrefix: "/api",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Storage: StorageConfig{
			Backend:   BackendMongo,
			UploadDir: "uploads",
		},
		Mongo: MongoConfig{
			URL: "mongodb://127.0.0.1:27017",
			DB:  "chat",
		},
		MySQL: MySQLConfig{
			Host:   "127.0.0.1",
			Port:   3306,
			User:   "root",
			DB:     "gopherai_chat",
			Params: "parseTime=true&loc=UTC&charset=utf8mb4",
		},
		Redis: RedisConfig{
			HistoryTTLSeconds: 60,
		},
		RabbitMQ: RabbitMQConfig{
			EventExchange: "chat.events",
		},
		LLM: LLMConfig{
			Provider: ProviderGemini,
			BaseURL:  "https://api.openai.com/v1",
		},
		CORS: CORSConfig{
			Origins: []string{"*"},
		},
	}
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
