package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/deliverylens/internal/logger"
	"github.com/KaramelBytes/deliverylens/internal/ratelimit"
	"github.com/KaramelBytes/deliverylens/internal/server"
)

var (
	serveAddr      string
	serveRedisAddr string
	serveNoLimit   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP analysis API",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			c.ListenAddr = serveAddr
		}
		if cmd.Flags().Changed("redis") {
			c.RedisAddr = serveRedisAddr
		}

		pipe, client, err := buildPipeline(c)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		limiter := ratelimit.Noop()
		if !serveNoLimit && c.RedisAddr != "" {
			rdb, err := ratelimit.Dial(ctx, c.RedisAddr)
			if err != nil {
				fmt.Fprintf(os.Stderr, "⚠ Warning: rate limiting disabled: %v\n", err)
			} else {
				defer rdb.Close()
				limiter = ratelimit.New(rdb, c.RateWindow(), c.RateLimit)
				logger.Info("rate limiting uploads to %d per %s via %s", c.RateLimit, c.RateWindow(), c.RedisAddr)
			}
		}

		var forecaster server.Forecaster
		if client != nil {
			forecaster = client
			logger.Info("prediction model at %s", client.URL())
		} else {
			logger.Warn("no prediction_url configured; anomalies use the %s fallback", c.FallbackMethod)
		}

		if c.LogLevel != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}
		srv := server.New(pipe, forecaster, server.Config{
			MaxUploadBytes: c.MaxUploadBytes(),
			PageSize:       c.PageSize,
			Limiter:        limiter,
		})
		return srv.ListenAndServe(ctx, c.ListenAddr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides listen_addr)")
	serveCmd.Flags().StringVar(&serveRedisAddr, "redis", "", "redis address for upload rate limiting (overrides redis_addr)")
	serveCmd.Flags().BoolVar(&serveNoLimit, "no-rate-limit", false, "disable upload rate limiting")
}
