package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	sumPeriod string
	sumFile   string
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Turn an anomaly narrative into advisory notes",
	Long: `Read an anomaly narrative (as printed by analyze) from stdin or --file and
print key findings and recommendations. With advisory_provider set, the
configured language model rewrites the rule-based notes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = cmd.InOrStdin()
		if sumFile != "" {
			f, err := os.Open(sumFile)
			if err != nil {
				return fmt.Errorf("open %s: %w", sumFile, err)
			}
			defer f.Close()
			r = f
		}
		b, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("read anomalies: %w", err)
		}
		text := strings.TrimSpace(string(b))
		if text == "" {
			return fmt.Errorf("no anomaly text provided")
		}

		c, err := requireConfig()
		if err != nil {
			return err
		}
		advisor, err := newAdvisor(c)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), advisor.Advise(cmd.Context(), text, sumPeriod))
		return err
	},
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
	summarizeCmd.Flags().StringVar(&sumPeriod, "period", "the selected period", "period label for the advisory heading")
	summarizeCmd.Flags().StringVarP(&sumFile, "file", "f", "", "read the anomaly text from a file instead of stdin")
}
