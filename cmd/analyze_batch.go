package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/deliverylens/internal/analysis"
	"github.com/KaramelBytes/deliverylens/internal/utils"
)

var (
	abOutDir    string
	abNoPredict bool
	abPeriod    string
	abMethod    string
	abQuiet     bool
)

var analyzeBatchCmd = &cobra.Command{
	Use:   "analyze-batch <files...>",
	Short: "Analyze multiple delivery CSVs with progress and an overview table",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := utils.ExpandInputs(args)
		if err != nil {
			return err
		}
		c, err := requireConfig()
		if err != nil {
			return err
		}
		pipe, _, err := buildPipeline(c)
		if err != nil {
			return err
		}
		opts := pipe.Options
		opts.Predict = !abNoPredict
		opts.Period = abPeriod
		if cmd.Flags().Changed("method") {
			m, err := analysis.ParseMethod(abMethod)
			if err != nil {
				return err
			}
			opts.FallbackMethod = m
		}
		if abOutDir != "" {
			if err := os.MkdirAll(abOutDir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		out := cmd.OutOrStdout()
		used := map[string]struct{}{}
		var rows []batchRow
		failed := 0
		total := len(files)
		for i, path := range files {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !abQuiet {
				fmt.Fprintf(out, "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			f, err := os.Open(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "✗ %s: %v\n", path, err)
				failed++
				continue
			}
			res, err := pipe.RunWith(ctx, f, opts)
			_ = f.Close()
			if err != nil {
				fmt.Fprintf(os.Stderr, "✗ %s: %v\n", path, err)
				failed++
				continue
			}
			for _, w := range res.Warnings {
				if !abQuiet {
					fmt.Fprintf(os.Stderr, "⚠ %s: %s\n", filepath.Base(path), w)
				}
			}

			row := batchRow{
				File:      path,
				Orders:    res.KPIs.TotalDeliveries,
				Anomalies: res.Report.Count,
				OnTime:    res.KPIs.OnTimeRate,
				Method:    string(res.Report.Method),
				Output:    "-",
			}
			if abOutDir != "" {
				dest := utils.OutputPath(abOutDir, path, ".report.json", used)
				b, err := utils.PrettyJSON(res)
				if err != nil {
					return err
				}
				if err := utils.SafeWriteFile(dest, b); err != nil {
					return err
				}
				row.Output = dest
			}
			rows = append(rows, row)
		}

		if len(rows) > 0 {
			if err := writeBatchTable(out, rows); err != nil {
				return err
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, total)
		}
		if !abQuiet {
			fmt.Fprintf(out, "✓ Analyzed %d files\n", total)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeBatchCmd)
	analyzeBatchCmd.Flags().StringVar(&abOutDir, "out-dir", "", "write one JSON report per input into this directory")
	analyzeBatchCmd.Flags().BoolVar(&abNoPredict, "no-predict", false, "skip the prediction model and use the fallback detector")
	analyzeBatchCmd.Flags().StringVar(&abPeriod, "period", "", "period label used in the advisory text")
	analyzeBatchCmd.Flags().StringVar(&abMethod, "method", "", "fallback detector: sigma|iqr (overrides fallback_method)")
	analyzeBatchCmd.Flags().BoolVar(&abQuiet, "quiet", false, "suppress progress and non-essential output")
}
