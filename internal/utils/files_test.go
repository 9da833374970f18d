package utils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/deliverylens/internal/utils"
)

func TestSafeWriteFileCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.json")
	require.NoError(t, utils.SafeWriteFile(path, []byte("{}")))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(b))
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestPrettyJSON(t *testing.T) {
	b, err := utils.PrettyJSON(map[string]int{"count": 2})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"count\": 2\n}", string(b))
}

func TestExpandInputs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.csv", "a.csv", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.csv"), 0o755))

	t.Run("glob sorted and deduplicated", func(t *testing.T) {
		got, err := utils.ExpandInputs([]string{filepath.Join(dir, "*.csv"), filepath.Join(dir, "a.csv")})
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(dir, "a.csv"), filepath.Join(dir, "b.csv")}, got)
	})

	t.Run("no matches", func(t *testing.T) {
		_, err := utils.ExpandInputs([]string{filepath.Join(dir, "*.parquet")})
		assert.ErrorIs(t, err, utils.ErrNoInputs)
	})
}

func TestOutputPathAvoidsCollisions(t *testing.T) {
	dir := t.TempDir()
	used := map[string]struct{}{}

	first := utils.OutputPath(dir, "/data/d1/metrics.csv", ".report.json", used)
	second := utils.OutputPath(dir, "/data/d2/metrics.csv", ".report.json", used)
	assert.Equal(t, filepath.Join(dir, "metrics.report.json"), first)
	assert.Equal(t, filepath.Join(dir, "metrics__2.report.json"), second)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.report.json"), nil, 0o644))
	assert.Equal(t, filepath.Join(dir, "other__2.report.json"), utils.OutputPath(dir, "other.csv", ".report.json", nil))
}
