package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type StoreConfig struct {
	// Driver is one of memory, sqlite, redis, mysql.
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
	RedisAddr  string `yaml:"redis_addr"`
	MySQLDSN   string `yaml:"mysql_dsn"`
	Namespace  string `yaml:"namespace"`
}

type SyncConfig struct {
	Debounce          time.Duration `yaml:"debounce"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	LookupConcurrency int           `yaml:"lookup_concurrency"`
}

type Config struct {
	AppEnv   string `yaml:"app_env"`
	LogLevel string `yaml:"log_level"`

	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`

	APIBaseURL  string `yaml:"api_base_url"`
	AccessToken string `yaml:"access_token"`

	Locale         string `yaml:"locale"`
	Currency       string `yaml:"currency"`
	QuantityPolicy string `yaml:"quantity_policy"`
	SnapshotKey    string `yaml:"snapshot_key"`

	OrderWorkers   int `yaml:"order_workers"`
	OrderQueueSize int `yaml:"order_queue_size"`

	Store StoreConfig `yaml:"store"`
	Sync  SyncConfig  `yaml:"sync"`
}

func Default() Config {
	return Config{
		AppEnv:         "dev",
		LogLevel:       "info",
		HTTPAddr:       ":8080",
		GRPCAddr:       ":50051",
		APIBaseURL:     "https://app-stage.zavarka39.ru/api",
		Locale:         "ru-RU",
		Currency:       "RUB",
		QuantityPolicy: "remove",
		SnapshotKey:    "storefront-cart",
		OrderWorkers:   2,
		OrderQueueSize: 64,
		Store: StoreConfig{
			Driver:     "sqlite",
			SQLitePath: "cart-sync.db",
			RedisAddr:  "localhost:6379",
			MySQLDSN:   "root:root@tcp(localhost:3306)/cartsync",
		},
		Sync: SyncConfig{
			Debounce:          350 * time.Millisecond,
			RequestTimeout:    10 * time.Second,
			LookupConcurrency: 4,
		},
	}
}

// Load starts from Default, applies the YAML file at path when path is not
// empty, then the CART_* environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.AppEnv = getEnv("CART_APP_ENV", c.AppEnv)
	c.LogLevel = getEnv("CART_LOG_LEVEL", c.LogLevel)
	c.HTTPAddr = getEnv("CART_HTTP_ADDR", c.HTTPAddr)
	c.GRPCAddr = getEnv("CART_GRPC_ADDR", c.GRPCAddr)
	c.APIBaseURL = getEnv("CART_API_BASE_URL", c.APIBaseURL)
	c.AccessToken = getEnv("CART_ACCESS_TOKEN", c.AccessToken)
	c.Locale = getEnv("CART_LOCALE", c.Locale)
	c.Currency = getEnv("CART_CURRENCY", c.Currency)
	c.QuantityPolicy = getEnv("CART_QUANTITY_POLICY", c.QuantityPolicy)
	c.SnapshotKey = getEnv("CART_SNAPSHOT_KEY", c.SnapshotKey)
	c.OrderWorkers = getEnvInt("CART_ORDER_WORKERS", c.OrderWorkers)
	c.OrderQueueSize = getEnvInt("CART_ORDER_QUEUE_SIZE", c.OrderQueueSize)

	c.Store.Driver = getEnv("CART_STORE_DRIVER", c.Store.Driver)
	c.Store.SQLitePath = getEnv("CART_SQLITE_PATH", c.Store.SQLitePath)
	c.Store.RedisAddr = getEnv("CART_REDIS_ADDR", c.Store.RedisAddr)
	c.Store.MySQLDSN = getEnv("CART_MYSQL_DSN", c.Store.MySQLDSN)
	c.Store.Namespace = getEnv("CART_STORE_NAMESPACE", c.Store.Namespace)

	c.Sync.Debounce = getEnvDuration("CART_SYNC_DEBOUNCE", c.Sync.Debounce)
	c.Sync.RequestTimeout = getEnvDuration("CART_SYNC_TIMEOUT", c.Sync.RequestTimeout)
	c.Sync.LookupConcurrency = getEnvInt("CART_LOOKUP_CONCURRENCY", c.Sync.LookupConcurrency)
}

func (c Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case "memory", "sqlite", "redis", "mysql":
	default:
		errs = append(errs, fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver))
	}
	switch c.QuantityPolicy {
	case "remove", "clamp":
	default:
		errs = append(errs, fmt.Errorf("quantity_policy: must be remove or clamp, got %q", c.QuantityPolicy))
	}
	if c.APIBaseURL == "" {
		errs = append(errs, errors.New("api_base_url: required"))
	}
	if c.Sync.Debounce <= 0 {
		errs = append(errs, errors.New("sync.debounce: must be positive"))
	}
	if c.OrderWorkers < 1 {
		errs = append(errs, errors.New("order_workers: must be at least 1"))
	}

	return errors.Join(errs...)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)

	if v == "" {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}

	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
