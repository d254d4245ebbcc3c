package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Word vector providers.
const (
	ProviderBinary = "binary"
	ProviderOpenAI = "openai"
)

// Config holds the modeld server configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Storage  StorageConfig  `yaml:"storage"`
	Training TrainingConfig `yaml:"training"`
	Word2Vec Word2VecConfig `yaml:"word2vec"`
	Cache    CacheConfig    `yaml:"cache"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int   `yaml:"port"`
	AdminPort       int   `yaml:"admin_port"` // 0 disables /metrics and /health
	ReadTimeoutSec  int   `yaml:"read_timeout_sec"`
	WriteTimeoutSec int   `yaml:"write_timeout_sec"`
	ShutdownSec     int   `yaml:"shutdown_timeout_sec"`
	MaxBodyBytes    int64 `yaml:"max_body_bytes"`
}

// StorageConfig holds model artifact storage settings.
type StorageConfig struct {
	Root         string `yaml:"root"`
	NameAttempts int    `yaml:"name_attempts"`
	SweepOnStart bool   `yaml:"sweep_on_start"`
}

// TrainingConfig holds ALS trainer settings and request caps.
type TrainingConfig struct {
	Workers       int    `yaml:"workers"` // 0 = GOMAXPROCS
	Seed          uint64 `yaml:"seed"`    // 0 = time-based
	MaxRank       int    `yaml:"max_rank"`
	MaxIterations int    `yaml:"max_iterations"`
}

// Word2VecConfig holds word vector table settings.
type Word2VecConfig struct {
	Provider      string       `yaml:"provider"` // binary (default), openai
	ModelFile     string       `yaml:"model_file"`
	MaxWordLength int          `yaml:"max_word_length"`
	LogNearest    bool         `yaml:"log_nearest"`
	LoadOnStart   bool         `yaml:"load_on_start"`
	OpenAI        OpenAIConfig `yaml:"openai"`
}

// OpenAIConfig holds settings for an OpenAI-compatible embeddings API.
type OpenAIConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// CacheConfig holds the Redis center cache settings.
type CacheConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	TTLSec           int      `yaml:"ttl_sec"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML, expands ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 300
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = 64 << 20
	}
	if c.Storage.Root == "" {
		c.Storage.Root = "models"
	}
	if c.Storage.NameAttempts <= 0 {
		c.Storage.NameAttempts = 5
	}
	if c.Word2Vec.Provider == "" {
		c.Word2Vec.Provider = ProviderBinary
	}
	if c.Word2Vec.MaxWordLength <= 0 {
		c.Word2Vec.MaxWordLength = 50
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 3600
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "modeld:"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.HTTP.AdminPort < 0 || c.HTTP.AdminPort > 65535 {
		return fmt.Errorf("http.admin_port must be between 0 and 65535, got %d", c.HTTP.AdminPort)
	}
	if c.HTTP.AdminPort == c.HTTP.Port {
		return fmt.Errorf("http.admin_port must differ from http.port (%d)", c.HTTP.Port)
	}
	if c.Training.Workers < 0 {
		return fmt.Errorf("training.workers must not be negative, got %d", c.Training.Workers)
	}
	if c.Training.MaxRank < 0 || c.Training.MaxIterations < 0 {
		return errors.New("training.max_rank and training.max_iterations must not be negative")
	}
	switch c.Word2Vec.Provider {
	case ProviderBinary:
		if c.Word2Vec.ModelFile == "" {
			return errors.New("word2vec.model_file is required for the binary provider")
		}
	case ProviderOpenAI:
		if c.Word2Vec.OpenAI.Model == "" {
			return errors.New("word2vec.openai.model is required for the openai provider")
		}
	default:
		return fmt.Errorf("word2vec.provider must be %q or %q, got %q",
			ProviderBinary, ProviderOpenAI, c.Word2Vec.Provider)
	}
	if c.Cache.Enabled && len(c.Cache.Addrs) == 0 {
		return errors.New("cache.addrs is required when cache is enabled")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
