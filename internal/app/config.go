package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix      = "NSYTE"
	ConfigFilename = "config.yaml"

	StoreFile  = "file"
	StoreRedis = "redis"
)

// LogConfig selects log level, encoding and destination.
type LogConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Format   string `yaml:"format" envconfig:"FORMAT"` // json | console
	Output   string `yaml:"output" envconfig:"OUTPUT"` // stderr | stdout | file
	FilePath string `yaml:"file_path" envconfig:"FILE"`
}

// Config holds runtime wiring options for building the app.
type Config struct {
	Home string `yaml:"-" envconfig:"HOME"` // e.g. $HOME/.nsyte

	Relays          []string `yaml:"relays" envconfig:"RELAYS"`
	BroadcastRelays []string `yaml:"broadcast_relays" envconfig:"BROADCAST_RELAYS"`
	AppName         string   `yaml:"app_name" envconfig:"APP_NAME"`
	Permissions     []string `yaml:"permissions" envconfig:"PERMISSIONS"`

	HandshakeTimeout time.Duration `yaml:"handshake_timeout" envconfig:"HANDSHAKE_TIMEOUT"`
	RequestTimeout   time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	PublishTimeout   time.Duration `yaml:"publish_timeout" envconfig:"PUBLISH_TIMEOUT"`
	DialTimeout      time.Duration `yaml:"dial_timeout" envconfig:"DIAL_TIMEOUT"`

	StoreBackend string `yaml:"store" envconfig:"STORE"`
	RedisURL     string `yaml:"redis_url" envconfig:"REDIS_URL"`
	RedisPrefix  string `yaml:"redis_prefix" envconfig:"REDIS_PREFIX"`

	Log           LogConfig `yaml:"log" envconfig:"LOG"`
	RelayLogLevel string    `yaml:"relay_log_level" envconfig:"RELAY_LOG_LEVEL"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Home: defaultHome(),
		Relays: []string{
			"wss://relay.nsec.app",
			"wss://relay.damus.io",
		},
		AppName:          "nsyte",
		Permissions:      []string{"get_public_key", "sign_event"},
		HandshakeTimeout: 5 * time.Minute,
		RequestTimeout:   30 * time.Second,
		PublishTimeout:   10 * time.Second,
		DialTimeout:      10 * time.Second,
		StoreBackend:     StoreFile,
		RedisPrefix:      "nsyte:bunker:",
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		RelayLogLevel: "warn",
	}
}

func defaultHome() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".nsyte")
	}
	return ".nsyte"
}

// Load layers defaults, the optional YAML file in the home directory and the
// environment. A non-empty home overrides NSYTE_HOME.
func Load(home string) (Config, error) {
	cfg := Defaults()
	if env := os.Getenv(EnvPrefix + "_HOME"); env != "" {
		cfg.Home = env
	}
	if home != "" {
		cfg.Home = home
	}

	if err := cfg.mergeFile(filepath.Join(cfg.Home, ConfigFilename)); err != nil {
		return Config{}, err
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("environment: %w", err)
	}
	if home != "" {
		cfg.Home = home
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// mergeFile overlays path onto cfg; a missing file is not an error.
func (c *Config) mergeFile(path string) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Validate rejects configurations the app cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Home == "" {
		errs = append(errs, errors.New("home directory is empty"))
	}
	switch c.StoreBackend {
	case StoreFile:
	case StoreRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("redis store needs redis_url"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store %q (want file or redis)", c.StoreBackend))
	}
	for name, d := range map[string]time.Duration{
		"handshake_timeout": c.HandshakeTimeout,
		"request_timeout":   c.RequestTimeout,
		"publish_timeout":   c.PublishTimeout,
		"dial_timeout":      c.DialTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	for name, lvl := range map[string]string{"log.level": c.Log.Level, "relay_log_level": c.RelayLogLevel} {
		if _, err := zerolog.ParseLevel(strings.ToLower(lvl)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
