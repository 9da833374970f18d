package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/deliverylens/internal/analysis"
	"github.com/KaramelBytes/deliverylens/internal/pipeline"
	"github.com/KaramelBytes/deliverylens/internal/utils"
)

var (
	anaNoPredict bool
	anaOutput    string
	anaOutPath   string
	anaPeriod    string
	anaRecords   int
	anaMethod    string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a delivery CSV and report anomalies",
	Long: `Analyze a delivery CSV export ("-" reads stdin). Actual delivery times are
compared with the prediction model when one is configured; otherwise the
sigma or IQR fallback flags outliers in the raw durations.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format := strings.ToLower(anaOutput)
		if format != "table" && format != "json" {
			return fmt.Errorf("unsupported --output: %s (use table|json)", anaOutput)
		}
		c, err := requireConfig()
		if err != nil {
			return err
		}
		pipe, _, err := buildPipeline(c)
		if err != nil {
			return err
		}
		opts, err := analyzeOptions(cmd, pipe.Options)
		if err != nil {
			return err
		}

		in, closeIn, err := openInput(args[0])
		if err != nil {
			return err
		}
		defer closeIn()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		res, err := pipe.RunWith(ctx, in, opts)
		if err != nil {
			return err
		}

		if anaOutPath != "" {
			b, err := utils.PrettyJSON(res)
			if err != nil {
				return err
			}
			if err := utils.SafeWriteFile(anaOutPath, b); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "✓ Wrote report to %s\n", anaOutPath)
		}

		out := cmd.OutOrStdout()
		if format == "json" {
			return writeJSON(out, res)
		}
		return writeReport(out, res, anaRecords)
	},
}

// analyzeOptions applies the analyze flags on top of the configured options.
func analyzeOptions(cmd *cobra.Command, base pipeline.Options) (pipeline.Options, error) {
	opts := base
	opts.Predict = !anaNoPredict
	opts.Period = anaPeriod
	if cmd.Flags().Changed("method") {
		m, err := analysis.ParseMethod(anaMethod)
		if err != nil {
			return opts, err
		}
		opts.FallbackMethod = m
	}
	return opts, nil
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, func() { _ = f.Close() }, nil
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().BoolVar(&anaNoPredict, "no-predict", false, "skip the prediction model and use the fallback detector")
	analyzeCmd.Flags().StringVarP(&anaOutput, "output", "o", "table", "output format: table|json")
	analyzeCmd.Flags().StringVar(&anaOutPath, "out", "", "also write the JSON report to this path")
	analyzeCmd.Flags().StringVar(&anaPeriod, "period", "", "period label used in the advisory text")
	analyzeCmd.Flags().IntVar(&anaRecords, "records", 20, "delivery rows to print in table output (-1 = all, 0 = none)")
	analyzeCmd.Flags().StringVar(&anaMethod, "method", "", "fallback detector: sigma|iqr (overrides fallback_method)")
}
