package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/deliverylens/internal/ai"
	"github.com/KaramelBytes/deliverylens/internal/analysis"
	cfgpkg "github.com/KaramelBytes/deliverylens/internal/config"
	"github.com/KaramelBytes/deliverylens/internal/delivery"
	"github.com/KaramelBytes/deliverylens/internal/logger"
	"github.com/KaramelBytes/deliverylens/internal/pipeline"
	"github.com/KaramelBytes/deliverylens/internal/predict"
)

var (
	cfgFile  string
	debug    bool
	logLevel string
	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int

	// Loaded configuration
	cfg *cfgpkg.Global
	// cfgErr keeps the load failure for commands that need a config.
	cfgErr error
)

var rootCmd = &cobra.Command{
	Use:   "deliverylens",
	Short: "DeliveryLens: delivery-time anomaly analysis",
	Long: `DeliveryLens ingests delivery CSV exports, compares actual delivery times
against a travel-time prediction model, flags anomalies and renders a summary,
advisory notes and a per-delivery status table. Run it as an HTTP service
(serve) or directly on files (analyze, analyze-batch).`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	// Initialize configuration before executing commands
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.deliverylens/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output (same as --log-level debug)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "advisory HTTP client timeout in seconds (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max advisory retry attempts on 429/5xx (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: config show/set still work on a broken file
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		cfgErr = err
		cfg = nil
		return
	}
	cfg, cfgErr = c, nil

	f := rootCmd.PersistentFlags()
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		cfg.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if f.Changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		cfg.RetryMaxDelayMs = flagRetryMaxDelayMs
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if debug {
		cfg.LogLevel = "debug"
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)
}

func requireConfig() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	if cfgErr != nil {
		return nil, fmt.Errorf("configuration unavailable: %w", cfgErr)
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg = c
	return cfg, nil
}

// pipelineOptions maps configuration onto per-run defaults.
func pipelineOptions(c *cfgpkg.Global) (pipeline.Options, error) {
	method, err := analysis.ParseMethod(c.FallbackMethod)
	if err != nil {
		return pipeline.Options{}, err
	}
	opts := pipeline.DefaultOptions()
	opts.ResidualThreshold = c.ResidualThreshold
	opts.ValueThreshold = c.ValueThreshold
	opts.SigmaK = c.SigmaK
	opts.FallbackMethod = method
	opts.DelayRule = delivery.DelayRule{Tolerance: c.DelayToleranceMin}
	return opts, nil
}

// newAdvisor resolves the configured advisory runtime. With provider "none"
// the advisor renders rule-based text only.
func newAdvisor(c *cfgpkg.Global) (*analysis.Advisor, error) {
	rt, err := ai.NewRuntime(c.AdvisoryProvider, ai.RuntimeConfig{
		HTTPTimeout: time.Duration(c.HTTPTimeoutSec) * time.Second,
		RetryMax:    c.RetryMaxAttempts,
		BaseDelay:   time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
		APIKey:      c.APIKey,
		Host:        c.OllamaHost,
	})
	if err != nil {
		return nil, err
	}
	if rt != nil {
		logger.Debug("advisory runtime %s (model %s)", c.AdvisoryProvider, c.AdvisoryModel)
	}
	return &analysis.Advisor{
		Runtime:     rt,
		Model:       c.AdvisoryModel,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
	}, nil
}

// newPredictClient returns nil when no prediction URL is configured.
func newPredictClient(c *cfgpkg.Global) *predict.Client {
	if c.PredictionURL == "" {
		return nil
	}
	return predict.NewClient(c.PredictionURL, c.PredictionTimeout())
}

// buildPipeline assembles the analysis pipeline from configuration.
func buildPipeline(c *cfgpkg.Global) (*pipeline.Pipeline, *predict.Client, error) {
	opts, err := pipelineOptions(c)
	if err != nil {
		return nil, nil, err
	}
	advisor, err := newAdvisor(c)
	if err != nil {
		return nil, nil, err
	}
	client := newPredictClient(c)
	var pred predict.Predictor
	if client != nil {
		pred = client
	}
	return pipeline.New(pred, advisor, opts), client, nil
}
