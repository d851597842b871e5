package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

const (
	ModeTTL    = "ttl"
	ModeServer = "server"

	StoreMemory = "memory"
	StoreSQLite = "sqlite3"
	StoreMySQL  = "mysql"
	StoreRedis  = "redis"
)

const (
	DefaultPollInterval = 1500 * time.Millisecond
	DefaultDismissTTL   = 21 * 24 * time.Hour
	DefaultServeAddress = ":8091"
)

// Config represents runtime configuration for the client.
type Config struct {
	ServerURL    string                    `json:"server_url" yaml:"server_url"`
	CurrentUser  string                    `json:"current_user" yaml:"current_user"`
	PollInterval Duration                  `json:"poll_interval" yaml:"poll_interval"`
	HTTPTimeout  Duration                  `json:"http_timeout" yaml:"http_timeout"`
	LogLevel     string                    `json:"log_level" yaml:"log_level"`
	ServeAddress string                    `json:"serve_address" yaml:"serve_address"`
	Dismissal    DismissalConfig           `json:"dismissal" yaml:"dismissal"`
	Databases    map[string]DatabaseConfig `json:"databases" yaml:"databases"`
	Redis        RedisConfig               `json:"redis" yaml:"redis"`
}

type DismissalConfig struct {
	Mode  string   `json:"mode" yaml:"mode"`
	TTL   Duration `json:"ttl" yaml:"ttl"`
	Store string   `json:"store" yaml:"store"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn" yaml:"dsn"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DBName   string `json:"db_name" yaml:"db_name"`
	Params   string `json:"params" yaml:"params"`
}

type RedisConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

// Default returns a configuration usable without any file.
func Default() *Config {
	return &Config{
		ServerURL:    "http://127.0.0.1:5000",
		PollInterval: Duration(DefaultPollInterval),
		LogLevel:     "info",
		ServeAddress: DefaultServeAddress,
		Dismissal: DismissalConfig{
			Mode:  ModeTTL,
			TTL:   Duration(DefaultDismissTTL),
			Store: StoreSQLite,
		},
		Databases: map[string]DatabaseConfig{
			StoreSQLite: {DSN: "dashsync.db"},
		},
	}
}

// Load reads configuration from the provided path. An empty path falls back
// to DASHSYNC_CONFIG; if that is empty too, defaults are used. A .env file in
// the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("DASHSYNC_CONFIG")
	}
	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("open config %s: %w", absPath, err)
	}

	switch strings.ToLower(filepath.Ext(absPath)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
	}

	// relative sqlite paths are resolved against the config file
	if db, ok := c.Databases[StoreSQLite]; ok && db.DSN != "" && db.DSN != ":memory:" &&
		!strings.HasPrefix(db.DSN, "file:") && !filepath.IsAbs(db.DSN) {
		db.DSN = filepath.Join(filepath.Dir(absPath), db.DSN)
		c.Databases[StoreSQLite] = db
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DASHSYNC_SERVER_URL"); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv("DASHSYNC_USER"); v != "" {
		c.CurrentUser = v
	}
	if v := os.Getenv("DASHSYNC_STORE"); v != "" {
		c.Dismissal.Store = v
	}
	if v := os.Getenv("DASHSYNC_DISMISS_MODE"); v != "" {
		c.Dismissal.Mode = v
	}
	if v := os.Getenv("DASHSYNC_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks the configuration for values the client cannot run with.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return errors.New("server_url must be configured")
	}
	if c.PollInterval.Std() <= 0 {
		return errors.New("poll_interval must be positive")
	}
	if c.HTTPTimeout.Std() < 0 {
		return errors.New("http_timeout must not be negative")
	}
	switch c.Dismissal.Mode {
	case ModeTTL:
		if c.Dismissal.TTL.Std() <= 0 {
			return errors.New("dismissal.ttl must be positive")
		}
		switch c.Dismissal.Store {
		case StoreMemory, StoreSQLite, StoreMySQL, StoreRedis:
		default:
			return fmt.Errorf("unsupported dismissal store: %q", c.Dismissal.Store)
		}
	case ModeServer:
	default:
		return fmt.Errorf("unsupported dismissal mode: %q", c.Dismissal.Mode)
	}
	return nil
}
