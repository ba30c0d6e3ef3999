package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig   `mapstructure:"server"`
	LLM        LLMConfig      `mapstructure:"llm"`
	Pipeline   PipelineConfig `mapstructure:"pipeline"`
	Store      StoreConfig    `mapstructure:"store"`
	Cache      CacheConfig    `mapstructure:"cache"`
	Log        LogConfig      `mapstructure:"log"`
	Tracing    TracingConfig  `mapstructure:"tracing"`
	ModelsFile string         `mapstructure:"models_file"`
	EnvFile    string         `mapstructure:"env_file"`

	// Populated from ModelsFile and EnvFile, not from config.yaml.
	Models      []ModelDescriptor `mapstructure:"-"`
	Credentials Credentials       `mapstructure:"-"`
}

type ServerConfig struct {
	Port      string          `mapstructure:"port"`
	Env       string          `mapstructure:"env"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// LLMConfig tunes the transport shared by every model client.
type LLMConfig struct {
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryWaitMin time.Duration `mapstructure:"retry_wait_min"`
	RetryWaitMax time.Duration `mapstructure:"retry_wait_max"`
	MaxTokens    int           `mapstructure:"max_tokens"`
}

type PipelineConfig struct {
	TemplatesDir string `mapstructure:"templates_dir"`
	// Model used for the extraction and identification stages. Empty means
	// the default model from the env file.
	Model string `mapstructure:"model"`
	// GenerationModels receive the final prompt. More than one fans out.
	GenerationModels []string `mapstructure:"generation_models"`
}

type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Option customizes where LoadConfig looks for its inputs.
type Option func(*loadOptions)

type loadOptions struct {
	configFile string
	modelsFile string
	envFile    string
}

// WithConfigFile reads an explicit config file instead of searching for config.yaml.
func WithConfigFile(path string) Option {
	return func(o *loadOptions) { o.configFile = path }
}

// WithModelsFile overrides models_file.
func WithModelsFile(path string) Option {
	return func(o *loadOptions) { o.modelsFile = path }
}

// WithEnvFile overrides env_file.
func WithEnvFile(path string) Option {
	return func(o *loadOptions) { o.envFile = path }
}

// LoadConfig reads configuration from file or environment variables, then
// loads the model list and the credentials file it points at.
func LoadConfig(opts ...Option) (*Config, error) {
	var lo loadOptions
	for _, opt := range opts {
		opt(&lo)
	}

	v := viper.New()

	if lo.configFile != "" {
		v.SetConfigFile(lo.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if lo.modelsFile != "" {
		cfg.ModelsFile = lo.modelsFile
	}
	if lo.envFile != "" {
		cfg.EnvFile = lo.envFile
	}

	creds, err := LoadCredentials(cfg.EnvFile)
	if err != nil {
		return nil, err
	}
	cfg.Credentials = creds

	models, err := LoadModels(cfg.ModelsFile)
	if err != nil {
		return nil, err
	}
	cfg.Models = models

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.rate_limit.requests_per_second", 10.0)
	v.SetDefault("server.rate_limit.burst", 20)

	v.SetDefault("llm.read_timeout", 600*time.Second)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_wait_min", 500*time.Millisecond)
	v.SetDefault("llm.retry_wait_max", 8*time.Second)
	v.SetDefault("llm.max_tokens", 512)

	v.SetDefault("pipeline.templates_dir", "templates")

	v.SetDefault("models_file", "available_models.yaml")
	v.SetDefault("env_file", ".env")

	v.SetDefault("store.enabled", false)
	v.SetDefault("store.dsn", "file:forge.db?cache=shared&mode=rwc&_journal_mode=WAL&_busy_timeout=5000")

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", time.Hour)
	v.SetDefault("cache.redis.addr", "localhost:6379")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("tracing.enabled", false)
}

// LoadCredentials reads API_KEY and DEFAULT_MODEL from an env file.
// A missing file is not an error; both values are left empty.
func LoadCredentials(path string) (Credentials, error) {
	if path == "" {
		return Credentials{}, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Credentials{}, nil
	}

	env, err := godotenv.Read(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to read env file %s: %w", path, err)
	}

	return Credentials{
		APIKey:       env["API_KEY"],
		DefaultModel: env["DEFAULT_MODEL"],
	}, nil
}

// LoadModels reads the model descriptor list and validates every entry.
// The file is either a bare YAML list or a mapping with a "models" key.
func LoadModels(path string) ([]ModelDescriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading models file %s: %w", path, err)
	}

	var models []ModelDescriptor
	if err := yaml.Unmarshal(raw, &models); err != nil {
		var wrapped struct {
			Models []ModelDescriptor `yaml:"models"`
		}
		if err2 := yaml.Unmarshal(raw, &wrapped); err2 != nil {
			return nil, fmt.Errorf("unable to decode models file %s: %w", path, err)
		}
		models = wrapped.Models
	}

	if err := ValidateModels(models); err != nil {
		return nil, err
	}
	return models, nil
}

var validate = validator.New()

// ValidateModels checks each descriptor and rejects duplicate names.
func ValidateModels(models []ModelDescriptor) error {
	seen := make(map[string]struct{}, len(models))
	for i := range models {
		m := &models[i]
		if err := validate.Struct(m); err != nil {
			return fmt.Errorf("invalid model descriptor #%d (%q): %w", i, m.Name, err)
		}
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("duplicate model descriptor %q", m.Name)
		}
		seen[m.Name] = struct{}{}
	}
	return nil
}
