package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/deliverylens/internal/pipeline"
)

const testCSVHeader = "order_id,from_dipan_id,from_city_name,delivery_user_id,poi_lng,poi_lat,aoi_id,receipt_time,receipt_lng,receipt_lat,sign_time,sign_lng,sign_lat,typecode,ds\n"

// deliveriesCSV builds one signed delivery per duration (minutes), all received at 08:00.
func deliveriesCSV(durations ...int) string {
	var b strings.Builder
	b.WriteString(testCSVHeader)
	for i, d := range durations {
		fmt.Fprintf(&b, "o%d,d1,Dodoma,u%d,35.75,-6.17,a%d,2024-06-04 08:00:00,35.74,-6.16,2024-06-04 %02d:%02d:00,,,701,604\n",
			i, i, i, 8+d/60, d%60)
	}
	return b.String()
}

// modelServer answers every prediction request with value for each feature.
func modelServer(t *testing.T, value float64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var features []json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&features); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		preds := make([]float64, len(features))
		for i := range preds {
			preds[i] = value
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"predicted_travel_times": preds})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// testEnv isolates HOME and writes a config file; it returns the config path.
func testEnv(t *testing.T, predictionURL string) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(home, "config.yaml")
	body := fmt.Sprintf("prediction_url: %q\nprediction_timeout_sec: 5\nadvisory_provider: none\n", predictionURL)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCmd executes the root command and returns its stdout.
func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	cfg, cfgErr = nil, nil

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestAnalyzeJSONWithModel(t *testing.T) {
	model := modelServer(t, 10)
	cfgPath := testEnv(t, model.URL)
	dir := t.TempDir()
	input := filepath.Join(dir, "june.csv")
	require.NoError(t, os.WriteFile(input, []byte(deliveriesCSV(10, 12, 11, 50, 9)), 0o644))
	reportPath := filepath.Join(dir, "reports", "june.json")

	out, err := runCmd(t, "", "--config", cfgPath, "analyze", input, "-o", "json", "--out", reportPath, "--period", "June")
	require.NoError(t, err)

	var res pipeline.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 1, res.Report.Count)
	assert.Equal(t, []int{3}, res.Report.List)
	assert.Equal(t, "residual-iqr", string(res.Report.Method))
	assert.Contains(t, res.Report.Advisory, "Anomaly Summary for June:")
	require.Len(t, res.Records, 5)
	assert.Equal(t, "Anomaly", string(res.Records[3].Status))
	assert.Equal(t, "On Time", string(res.Records[0].Status))

	saved, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Contains(t, string(saved), res.ID)
}

func TestAnalyzeNoPredictTable(t *testing.T) {
	// Unroutable model URL: --no-predict must never call it.
	cfgPath := testEnv(t, "http://127.0.0.1:1/predict")
	input := filepath.Join(t.TempDir(), "d.csv")
	require.NoError(t, os.WriteFile(input, []byte(deliveriesCSV(10, 10, 10, 10, 10, 10, 10, 10, 10, 100)), 0o644))

	out, err := runCmd(t, "", "--config", cfgPath, "analyze", input, "--no-predict", "--records", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "• Total Orders: 10")
	assert.Contains(t, out, "Detected 1 statistical anomalies in delivery times (based on 2 standard deviations from mean):")
	assert.Contains(t, out, "Anomalies: 1")
	assert.Contains(t, out, "Showing 3 of 10 deliveries")
}

func TestAnalyzeRejectsUnknownOutput(t *testing.T) {
	cfgPath := testEnv(t, "")
	_, err := runCmd(t, "", "--config", cfgPath, "analyze", "x.csv", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported --output")
}

func TestAnalyzeDegradedInput(t *testing.T) {
	cfgPath := testEnv(t, "")
	input := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(input, []byte(testCSVHeader), 0o644))

	out, err := runCmd(t, "", "--config", cfgPath, "analyze", input)
	require.NoError(t, err)
	assert.Contains(t, out, pipeline.NoDataSummary)
}

func TestSummarizeFromStdin(t *testing.T) {
	cfgPath := testEnv(t, "")
	text := "Detected 12 anomalies in delivery times:\n• 12 unusually long delivery times (avg: 95.0 minutes)"

	out, err := runCmd(t, text, "--config", cfgPath, "summarize", "--period", "last week")
	require.NoError(t, err)
	assert.Contains(t, out, "Anomaly Summary for last week:")
	assert.Contains(t, out, "• Total anomalies identified: 12")
	assert.Contains(t, out, "High anomaly rate detected")
	assert.Contains(t, out, "Investigate routes with extended delivery times")
}

func TestSummarizeRequiresInput(t *testing.T) {
	cfgPath := testEnv(t, "")
	_, err := runCmd(t, "  ", "--config", cfgPath, "summarize")
	assert.Error(t, err)
}

func TestConfigSetAndShow(t *testing.T) {
	cfgPath := testEnv(t, "")

	_, err := runCmd(t, "", "--config", cfgPath, "config", "set", "sigma_k", "3")
	require.NoError(t, err)
	_, err = runCmd(t, "", "--config", cfgPath, "config", "set", "api_key", "sk-abcdef123456")
	require.NoError(t, err)

	_, err = runCmd(t, "", "--config", cfgPath, "config", "set", "fallback_method", "median")
	assert.Error(t, err)

	saved, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(saved), "sigma_k: 3")
	assert.Contains(t, string(saved), "fallback_method: sigma")

	// show only prints what loadConfig put in cfg
	resetFlags(rootCmd)
	cfgFile = cfgPath
	loadConfig()
	var out bytes.Buffer
	configShowCmd.SetOut(&out)
	require.NoError(t, configShowCmd.RunE(configShowCmd, nil))
	assert.Contains(t, out.String(), "api_key: sk-****456")
	assert.NotContains(t, out.String(), "abcdef")
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", mask(""))
	assert.Equal(t, "******", mask("abc"))
	assert.Equal(t, "sk-****xyz", mask("sk-123456xyz"))
}
