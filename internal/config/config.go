package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `mapstructure:"basic_config"`
	Providers   map[string]ProviderConfig `mapstructure:"providers"`
	Speech      SpeechConfig              `mapstructure:"speech"`
	Databases   map[string]DatabaseConfig `mapstructure:"databases"`
	Redis       RedisConfig               `mapstructure:"redis"`
	Logger      LoggerConfig              `mapstructure:"logger"`
}

type ProviderConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`
}

type SpeechConfig struct {
	Model          string `mapstructure:"model"`
	Voice          string `mapstructure:"voice"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type BasicConfig struct {
	ServerAddress        string `mapstructure:"server_address"`
	Database             string `mapstructure:"database"`
	KVBackend            string `mapstructure:"kv_backend"`
	ChatProvider         string `mapstructure:"chat_provider"`
	VisitorIdleMinutes   int    `mapstructure:"visitor_idle_minutes"`
	StreamTimeoutSeconds int    `mapstructure:"stream_timeout_seconds"`
	AutoPlayDelayMS      int    `mapstructure:"autoplay_delay_ms"`
	FeedbackResetMS      int    `mapstructure:"feedback_reset_ms"`
}

type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"db_name"`
	Params   string `mapstructure:"params"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LoggerConfig struct {
	Level string `mapstructure:"level"`
	Env   string `mapstructure:"env"`
}

// provider api keys that may come from the environment instead of the file
var providerKeyEnv = map[string]string{
	"gemini": "GEMINI_API_KEY",
	"openai": "OPENAI_API_KEY",
	"claude": "ANTHROPIC_API_KEY",
}

// Load reads configuration from the provided path (defaults to config.json).
// A .env file next to the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(absPath)
	v.SetConfigType("json")
	v.SetEnvPrefix("ORIENTACHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", absPath, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.applyEnvKeys()
	cfg.resolvePaths(filepath.Dir(absPath))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("basic_config.server_address", ":8090")
	v.SetDefault("basic_config.database", "sqlite3")
	v.SetDefault("basic_config.kv_backend", "sql")
	v.SetDefault("basic_config.chat_provider", "gemini")
	v.SetDefault("basic_config.visitor_idle_minutes", 30)
	v.SetDefault("basic_config.stream_timeout_seconds", 120)
	v.SetDefault("basic_config.autoplay_delay_ms", 100)
	v.SetDefault("basic_config.feedback_reset_ms", 1000)
	v.SetDefault("speech.model", "gemini-2.5-flash-preview-tts")
	v.SetDefault("speech.voice", "Kore")
	v.SetDefault("speech.timeout_seconds", 60)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.env", "development")
}

func (c *Config) applyEnvKeys() {
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	for name, env := range providerKeyEnv {
		key := os.Getenv(env)
		if key == "" {
			continue
		}
		prov := c.Providers[name]
		if prov.APIKey == "" {
			prov.APIKey = key
			c.Providers[name] = prov
		}
	}
}

func (c *Config) resolvePaths(base string) {
	for name, db := range c.Databases {
		if !isSQLite(name) || db.DSN == "" || db.DSN == ":memory:" || strings.HasPrefix(db.DSN, "file:") {
			continue
		}
		if !filepath.IsAbs(db.DSN) {
			db.DSN = filepath.Join(base, db.DSN)
			c.Databases[name] = db
		}
	}
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	name := c.BasicConfig.ChatProvider
	prov, ok := c.Providers[name]
	if !ok {
		return fmt.Errorf("chat provider %s not configured", name)
	}
	if prov.APIKey == "" {
		return fmt.Errorf("chat provider %s has no api_key", name)
	}
	switch c.BasicConfig.KVBackend {
	case "memory", "sql", "redis":
	default:
		return fmt.Errorf("unsupported kv_backend: %s", c.BasicConfig.KVBackend)
	}
	return nil
}

// SpeechAPIKey returns the key used for speech synthesis, which always goes through gemini.
func (c *Config) SpeechAPIKey() string {
	return c.Providers["gemini"].APIKey
}

func (c *Config) VisitorIdle() time.Duration {
	return time.Duration(c.BasicConfig.VisitorIdleMinutes) * time.Minute
}

func (c *Config) StreamTimeout() time.Duration {
	return time.Duration(c.BasicConfig.StreamTimeoutSeconds) * time.Second
}

func (c *Config) SynthesisTimeout() time.Duration {
	return time.Duration(c.Speech.TimeoutSeconds) * time.Second
}

func (c *Config) AutoPlayDelay() time.Duration {
	return time.Duration(c.BasicConfig.AutoPlayDelayMS) * time.Millisecond
}

func (c *Config) FeedbackReset() time.Duration {
	return time.Duration(c.BasicConfig.FeedbackResetMS) * time.Millisecond
}

func isSQLite(name string) bool {
	name = strings.ToLower(name)
	return name == "sqlite" || name == "sqlite3"
}
