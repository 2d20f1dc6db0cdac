package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// StorageDriverMemory хранит данные в памяти процесса.
	StorageDriverMemory = "memory"
	// StorageDriverPostgres использует PostgreSQL.
	StorageDriverPostgres = "postgres"

	// SessionDriverMemory хранит сессии в памяти процесса.
	SessionDriverMemory = "memory"
	// SessionDriverRedis хранит сессии в Redis.
	SessionDriverRedis = "redis"

	envPrefix     = "STOREFRONT_"
	envConfigFile = "STOREFRONT_CONFIG_FILE"
	envAIKey      = "AI_INTEGRATIONS_OPENAI_API_KEY"
	envAIBaseURL  = "AI_INTEGRATIONS_OPENAI_BASE_URL"
)

// Config описывает все настройки запуска витрины.
type Config struct {
	Environment string `koanf:"environment"`

	HTTP struct {
		Addr         string `koanf:"addr"`
		CookieName   string `koanf:"cookie_name"`
		CookieSecure bool   `koanf:"cookie_secure"`
	} `koanf:"http"`

	Ops struct {
		Addr string `koanf:"addr"`
	} `koanf:"ops"`

	GRPC struct {
		Addr string `koanf:"addr"`
	} `koanf:"grpc"`

	Log struct {
		Level  string `koanf:"level"`
		Format string `koanf:"format"`
		File   string `koanf:"file"`
	} `koanf:"log"`

	Storage struct {
		Driver          string        `koanf:"driver"`
		DSN             string        `koanf:"dsn"`
		AutoMigrate     bool          `koanf:"auto_migrate"`
		MaxOpenConns    int           `koanf:"max_open_conns"`
		MaxIdleConns    int           `koanf:"max_idle_conns"`
		ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	} `koanf:"storage"`

	Sessions struct {
		Driver        string        `koanf:"driver"`
		RedisAddr     string        `koanf:"redis_addr"`
		RedisPassword string        `koanf:"redis_password"`
		RedisDB       int           `koanf:"redis_db"`
		JWTSecret     string        `koanf:"jwt_secret"`
		Issuer        string        `koanf:"issuer"`
		TTL           time.Duration `koanf:"ttl"`
		BcryptCost    int           `koanf:"bcrypt_cost"`
		AdminUsername string        `koanf:"admin_username"`
		AdminPassword string        `koanf:"admin_password"`
	} `koanf:"sessions"`

	Kafka struct {
		Brokers        []string      `koanf:"brokers"`
		ClientID       string        `koanf:"client_id"`
		Topic          string        `koanf:"topic"`
		DLQTopic       string        `koanf:"dlq_topic"`
		PollInterval   time.Duration `koanf:"poll_interval"`
		BatchSize      int           `koanf:"batch_size"`
		MaxAttempts    int           `koanf:"max_attempts"`
		RetryBaseDelay time.Duration `koanf:"retry_base_delay"`
	} `koanf:"kafka"`

	Advisory struct {
		APIKey   string        `koanf:"api_key"`
		BaseURL  string        `koanf:"base_url"`
		Model    string        `koanf:"model"`
		Timeout  time.Duration `koanf:"timeout"`
		Language string        `koanf:"language"`
		Brand    string        `koanf:"brand"`
	} `koanf:"advisory"`

	Catalog struct {
		Seed bool `koanf:"seed"`
	} `koanf:"catalog"`
}

// DefaultConfig возвращает настройки для локального запуска без внешних зависимостей.
func DefaultConfig() Config {
	var cfg Config
	cfg.Environment = "development"
	cfg.HTTP.Addr = ":8080"
	cfg.HTTP.CookieName = "storefront_session"
	cfg.Ops.Addr = ":9090"
	cfg.GRPC.Addr = ":50051"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Storage.Driver = StorageDriverMemory
	cfg.Storage.AutoMigrate = true
	cfg.Storage.MaxOpenConns = 20
	cfg.Storage.MaxIdleConns = 10
	cfg.Storage.ConnMaxLifetime = 30 * time.Minute
	cfg.Sessions.Driver = SessionDriverMemory
	cfg.Sessions.RedisAddr = "localhost:6379"
	cfg.Sessions.Issuer = "storefront"
	cfg.Sessions.TTL = 24 * time.Hour
	cfg.Kafka.ClientID = "storefront"
	cfg.Kafka.Topic = "storefront.order.events"
	cfg.Kafka.DLQTopic = "storefront.order.dlq"
	cfg.Kafka.PollInterval = time.Second
	cfg.Kafka.BatchSize = 100
	cfg.Kafka.MaxAttempts = 3
	cfg.Kafka.RetryBaseDelay = 50 * time.Millisecond
	cfg.Advisory.Model = "gpt-4o"
	cfg.Advisory.Timeout = 30 * time.Second
	cfg.Advisory.Language = "pt-BR"
	cfg.Advisory.Brand = "Ecosopis"
	cfg.Catalog.Seed = true
	return cfg
}

// Production сообщает, что сервис запущен в production-окружении.
func (c Config) Production() bool {
	return strings.EqualFold(c.Environment, "production")
}

// KafkaEnabled сообщает, настроены ли брокеры Kafka.
func (c Config) KafkaEnabled() bool {
	for _, b := range c.Kafka.Brokers {
		if strings.TrimSpace(b) != "" {
			return true
		}
	}
	return false
}

// LoadConfig собирает конфигурацию: значения по умолчанию, затем YAML из
// STOREFRONT_CONFIG_FILE, затем переменные STOREFRONT_* (вложенность через "__"),
// затем ключ и адрес completion-сервиса из AI_INTEGRATIONS_OPENAI_*.
func LoadConfig() (Config, error) {
	return loadConfig(os.Getenv(envConfigFile))
}

func loadConfig(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		if s == envConfigFile {
			return ""
		}
		s = strings.TrimPrefix(s, envPrefix)
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load env overlay: %w", err)
	}

	cfg := DefaultConfig()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if v := os.Getenv(envAIKey); v != "" {
		cfg.Advisory.APIKey = v
	}
	if v := os.Getenv(envAIBaseURL); v != "" {
		cfg.Advisory.BaseURL = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек. Отсутствие ключа completion-сервиса
// не ошибка: консультант вернёт ServiceUnavailable на первом запросе.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.HTTP.Addr) == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}

	switch c.Storage.Driver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.Storage.DSN) == "" {
			errs = append(errs, errors.New("storage.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver))
	}

	switch c.Sessions.Driver {
	case SessionDriverMemory:
	case SessionDriverRedis:
		if strings.TrimSpace(c.Sessions.RedisAddr) == "" {
			errs = append(errs, errors.New("sessions.redis_addr is required for the redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("sessions.driver %q is not supported", c.Sessions.Driver))
	}

	if c.Sessions.TTL <= 0 {
		errs = append(errs, errors.New("sessions.ttl must be positive"))
	}
	if c.Production() && strings.TrimSpace(c.Sessions.JWTSecret) == "" {
		errs = append(errs, errors.New("sessions.jwt_secret is required in production"))
	}
	if c.Advisory.Timeout <= 0 {
		errs = append(errs, errors.New("advisory.timeout must be positive"))
	}
	if c.KafkaEnabled() {
		if strings.TrimSpace(c.Kafka.Topic) == "" {
			errs = append(errs, errors.New("kafka.topic is required when brokers are set"))
		}
		if c.Kafka.BatchSize <= 0 {
			errs = append(errs, errors.New("kafka.batch_size must be positive"))
		}
	}

	return errors.Join(errs...)
}
