package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendFile  = "file"
	BackendMongo = "mongo"
	BackendMySQL = "mysql"
)

// Config describes runtime settings loaded from environment variables.
// TrustedProxies lists the peers whose X-Forwarded-For and X-Real-IP headers
// are believed when keying the rate limiter.
type Config struct {
	Port            string         `env:"PORT" envDefault:"3000"`
	StoreBackend    string         `env:"STORE_BACKEND" envDefault:"file"`
	TasksFile       string         `env:"TASKS_FILE" envDefault:"tasks.json"`
	MongoURI        string         `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase   string         `env:"MONGO_DATABASE" envDefault:"ToDOList"`
	MongoCollection string         `env:"MONGO_COLLECTION" envDefault:"taskscontainers"`
	MySQLDSN        string         `env:"MYSQL_DSN"`
	StoreTimeout    time.Duration  `env:"STORE_TIMEOUT" envDefault:"5s"`
	UpdateRetries   int            `env:"UPDATE_RETRIES" envDefault:"3"`
	DefaultLimit    int            `env:"DEFAULT_PAGE_LIMIT" envDefault:"10"`
	MaxLimit        int            `env:"MAX_PAGE_LIMIT" envDefault:"100"`
	RateLimitRPS    float64        `env:"RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst  int            `env:"RATE_LIMIT_BURST" envDefault:"20"`
	TrustedProxies  []netip.Prefix `env:"TRUSTED_PROXIES"`
	LogLevel        string         `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string         `env:"LOG_FORMAT" envDefault:"text"`
	ShutdownTimeout time.Duration  `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// Load reads configuration from environment variables, applying defaults when necessary.
// Variables from a .env file in the working directory are loaded first; they
// never override variables already set in the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Port:            "3000",
		StoreBackend:    BackendFile,
		TasksFile:       "tasks.json",
		MongoURI:        "mongodb://localhost:27017",
		MongoDatabase:   "ToDOList",
		MongoCollection: "taskscontainers",
		StoreTimeout:    5 * time.Second,
		UpdateRetries:   3,
		DefaultLimit:    10,
		MaxLimit:        100,
		RateLimitRPS:    10,
		RateLimitBurst:  20,
		LogLevel:        "info",
		LogFormat:       "text",
		ShutdownTimeout: 5 * time.Second,
	}

	setString(&cfg.Port, "PORT")
	setString(&cfg.StoreBackend, "STORE_BACKEND")
	setString(&cfg.TasksFile, "TASKS_FILE")
	setString(&cfg.MongoURI, "MONGO_URI")
	setString(&cfg.MongoDatabase, "MONGO_DATABASE")
	setString(&cfg.MongoCollection, "MONGO_COLLECTION")
	setString(&cfg.MySQLDSN, "MYSQL_DSN")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFormat, "LOG_FORMAT")

	if err := setDuration(&cfg.StoreTimeout, "STORE_TIMEOUT"); err != nil {
		return nil, err
	}
	if err := setDuration(&cfg.ShutdownTimeout, "SHUTDOWN_TIMEOUT"); err != nil {
		return nil, err
	}
	if err := setInt(&cfg.UpdateRetries, "UPDATE_RETRIES"); err != nil {
		return nil, err
	}
	if err := setInt(&cfg.DefaultLimit, "DEFAULT_PAGE_LIMIT"); err != nil {
		return nil, err
	}
	if err := setInt(&cfg.MaxLimit, "MAX_PAGE_LIMIT"); err != nil {
		return nil, err
	}
	if err := setInt(&cfg.RateLimitBurst, "RATE_LIMIT_BURST"); err != nil {
		return nil, err
	}

	if rps := os.Getenv("RATE_LIMIT_RPS"); rps != "" {
		value, err := strconv.ParseFloat(rps, 64)
		if err != nil {
			return nil, fmt.Errorf("parse RATE_LIMIT_RPS: %w", err)
		}
		cfg.RateLimitRPS = value
	}

	proxies, err := parsePrefixes(os.Getenv("TRUSTED_PROXIES"))
	if err != nil {
		return nil, fmt.Errorf("parse TRUSTED_PROXIES: %w", err)
	}
	cfg.TrustedProxies = proxies

	switch cfg.StoreBackend {
	case BackendFile, BackendMongo:
	case BackendMySQL:
		if cfg.MySQLDSN == "" {
			return nil, errors.New("MYSQL_DSN is required when STORE_BACKEND=mysql")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	return cfg, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	value, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = value
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	dur, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = dur
	return nil
}

// parsePrefixes reads a comma separated list of IP addresses and CIDR blocks.
func parsePrefixes(v string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if strings.Contains(item, "/") {
			p, err := netip.ParsePrefix(item)
			if err != nil {
				return nil, err
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			return nil, err
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}
