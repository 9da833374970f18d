package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. DELIVERYLENS_PREDICTION_URL.
const EnvPrefix = "DELIVERYLENS"

// Global configuration structure.
type Global struct {
	// Prediction model
	PredictionURL        string `mapstructure:"prediction_url" yaml:"prediction_url"`
	PredictionTimeoutSec int    `mapstructure:"prediction_timeout_sec" yaml:"prediction_timeout_sec"`

	// Anomaly detection
	ResidualThreshold float64 `mapstructure:"residual_threshold" yaml:"residual_threshold"`
	ValueThreshold    float64 `mapstructure:"value_threshold" yaml:"value_threshold"`
	SigmaK            float64 `mapstructure:"sigma_k" yaml:"sigma_k"`
	FallbackMethod    string  `mapstructure:"fallback_method" yaml:"fallback_method"`
	DelayToleranceMin float64 `mapstructure:"delay_tolerance_min" yaml:"delay_tolerance_min"`

	// HTTP API
	ListenAddr    string `mapstructure:"listen_addr" yaml:"listen_addr"`
	MaxUploadMB   int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	PageSize      int    `mapstructure:"page_size" yaml:"page_size"`
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RateLimit     int    `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateWindowSec int    `mapstructure:"rate_window_sec" yaml:"rate_window_sec"`

	// Advisory enrichment
	AdvisoryProvider string  `mapstructure:"advisory_provider" yaml:"advisory_provider"`
	AdvisoryModel    string  `mapstructure:"advisory_model" yaml:"advisory_model"`
	APIKey           string  `mapstructure:"api_key" yaml:"api_key"`
	OllamaHost       string  `mapstructure:"ollama_host" yaml:"ollama_host"`
	MaxTokens        int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature      float64 `mapstructure:"temperature" yaml:"temperature"`

	// HTTP/Retry configuration for advisory runtimes
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("prediction_url", "http://127.0.0.1:8080/predict")
	v.SetDefault("prediction_timeout_sec", 30)

	v.SetDefault("residual_threshold", 0.5)
	v.SetDefault("value_threshold", 1.5)
	v.SetDefault("sigma_k", 2.0)
	v.SetDefault("fallback_method", "sigma")
	v.SetDefault("delay_tolerance_min", 30.0)

	v.SetDefault("listen_addr", ":9002")
	v.SetDefault("max_upload_mb", 20)
	v.SetDefault("page_size", 25)
	v.SetDefault("redis_addr", "")
	v.SetDefault("rate_limit", 30)
	v.SetDefault("rate_window_sec", 60)

	v.SetDefault("advisory_provider", "none")
	v.SetDefault("advisory_model", "openai/gpt-4o-mini")
	v.SetDefault("api_key", "")
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("max_tokens", 512)
	v.SetDefault("temperature", 0.3)

	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// DefaultPath is ~/.deliverylens/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".deliverylens", "config.yaml"), nil
}

// Load loads configuration from defaults, the config file, a .env file in the
// working directory, and the environment.
// Precedence: env (including .env) > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		path, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(filepath.Dir(path))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		var nf viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &nf) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Save writes c to cfgFile, or to DefaultPath when cfgFile is empty.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks that all configuration values are usable.
func (c *Global) Validate() error {
	if c.PredictionTimeoutSec <= 0 {
		return fmt.Errorf("prediction_timeout_sec must be positive")
	}
	if c.ResidualThreshold < 0 || c.ValueThreshold < 0 || c.SigmaK <= 0 {
		return fmt.Errorf("residual_threshold and value_threshold must be >= 0, sigma_k > 0")
	}
	switch c.FallbackMethod {
	case "sigma", "iqr":
	default:
		return fmt.Errorf("fallback_method must be sigma or iqr, got %q", c.FallbackMethod)
	}
	if c.DelayToleranceMin < 0 {
		return fmt.Errorf("delay_tolerance_min must be >= 0")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be positive")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive")
	}
	if c.RateLimit < 0 || c.RateWindowSec < 0 {
		return fmt.Errorf("rate_limit and rate_window_sec must be >= 0")
	}
	switch c.AdvisoryProvider {
	case "none", "openrouter", "ollama":
	default:
		return fmt.Errorf("advisory_provider must be none, openrouter or ollama, got %q", c.AdvisoryProvider)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// PredictionTimeout returns prediction_timeout_sec as a duration.
func (c *Global) PredictionTimeout() time.Duration {
	return time.Duration(c.PredictionTimeoutSec) * time.Second
}

// RateWindow returns rate_window_sec as a duration.
func (c *Global) RateWindow() time.Duration {
	return time.Duration(c.RateWindowSec) * time.Second
}

// MaxUploadBytes returns max_upload_mb in bytes.
func (c *Global) MaxUploadBytes() int64 { return int64(c.MaxUploadMB) << 20 }

type setter func(c *Global, val string) error

func stringField(f func(*Global) *string) setter {
	return func(c *Global, val string) error { *f(c) = val; return nil }
}

func intField(key string, f func(*Global) *int) setter {
	return func(c *Global, val string) error {
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		*f(c) = i
		return nil
	}
}

func floatField(key string, f func(*Global) *float64) setter {
	return func(c *Global, val string) error {
		x, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid float for %s: %v", key, val)
		}
		*f(c) = x
		return nil
	}
}

var setters = map[string]setter{
	"prediction_url":         stringField(func(c *Global) *string { return &c.PredictionURL }),
	"prediction_timeout_sec": intField("prediction_timeout_sec", func(c *Global) *int { return &c.PredictionTimeoutSec }),
	"residual_threshold":     floatField("residual_threshold", func(c *Global) *float64 { return &c.ResidualThreshold }),
	"value_threshold":        floatField("value_threshold", func(c *Global) *float64 { return &c.ValueThreshold }),
	"sigma_k":                floatField("sigma_k", func(c *Global) *float64 { return &c.SigmaK }),
	"fallback_method":        stringField(func(c *Global) *string { return &c.FallbackMethod }),
	"delay_tolerance_min":    floatField("delay_tolerance_min", func(c *Global) *float64 { return &c.DelayToleranceMin }),
	"listen_addr":            stringField(func(c *Global) *string { return &c.ListenAddr }),
	"max_upload_mb":          intField("max_upload_mb", func(c *Global) *int { return &c.MaxUploadMB }),
	"page_size":              intField("page_size", func(c *Global) *int { return &c.PageSize }),
	"redis_addr":             stringField(func(c *Global) *string { return &c.RedisAddr }),
	"rate_limit":             intField("rate_limit", func(c *Global) *int { return &c.RateLimit }),
	"rate_window_sec":        intField("rate_window_sec", func(c *Global) *int { return &c.RateWindowSec }),
	"advisory_provider":      stringField(func(c *Global) *string { return &c.AdvisoryProvider }),
	"advisory_model":         stringField(func(c *Global) *string { return &c.AdvisoryModel }),
	"api_key":                stringField(func(c *Global) *string { return &c.APIKey }),
	"ollama_host":            stringField(func(c *Global) *string { return &c.OllamaHost }),
	"max_tokens":             intField("max_tokens", func(c *Global) *int { return &c.MaxTokens }),
	"temperature":            floatField("temperature", func(c *Global) *float64 { return &c.Temperature }),
	"http_timeout_sec":       intField("http_timeout_sec", func(c *Global) *int { return &c.HTTPTimeoutSec }),
	"retry_max_attempts":     intField("retry_max_attempts", func(c *Global) *int { return &c.RetryMaxAttempts }),
	"retry_base_delay_ms":    intField("retry_base_delay_ms", func(c *Global) *int { return &c.RetryBaseDelayMs }),
	"retry_max_delay_ms":     intField("retry_max_delay_ms", func(c *Global) *int { return &c.RetryMaxDelayMs }),
	"log_level":              stringField(func(c *Global) *string { return &c.LogLevel }),
	"log_format":             stringField(func(c *Global) *string { return &c.LogFormat }),
}

// Keys lists the settable keys in sorted order.
func Keys() []string {
	out := make([]string, 0, len(setters))
	for k := range setters {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Set assigns key from its string form and re-validates. On error c is left unchanged.
func (c *Global) Set(key, val string) error {
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("unknown key: %s", key)
	}
	next := *c
	if err := set(&next, val); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}
