package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoInputs is returned when no pattern matches an existing file.
var ErrNoInputs = errors.New("no input files matched")

// SafeWriteFile writes data to a temp file and atomically renames it into place.
// Missing parent directories are created.
func SafeWriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}

// PrettyJSON marshals a value as indented JSON.
func PrettyJSON(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	return b, nil
}

// ExpandInputs resolves glob patterns to a sorted, de-duplicated file list.
// A pattern without matches is kept as a literal path if that file exists.
func ExpandInputs(patterns []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", p, err)
		}
		if len(matches) == 0 {
			if _, err := os.Stat(p); err == nil {
				matches = []string{p}
			}
		}
		for _, m := range matches {
			if info, err := os.Stat(m); err != nil || info.IsDir() {
				continue
			}
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, ErrNoInputs
	}
	sort.Strings(files)
	return files, nil
}

// OutputPath returns dir/<input base><suffix>. When that path is already taken,
// either on disk or in used, a "__N" counter is appended to the base name.
// The chosen path is recorded in used.
func OutputPath(dir, input, suffix string, used map[string]struct{}) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	taken := func(p string) bool {
		if _, ok := used[p]; ok {
			return true
		}
		_, err := os.Stat(p)
		return err == nil
	}
	out := filepath.Join(dir, base+suffix)
	for idx := 2; taken(out); idx++ {
		out = filepath.Join(dir, fmt.Sprintf("%s__%d%s", base, idx, suffix))
	}
	if used != nil {
		used[out] = struct{}{}
	}
	return out
}
