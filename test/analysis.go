package test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mickamy/myxplain/internal/config"
	"github.com/mickamy/myxplain/internal/explain"
)

var (
	rootPath string
	once     sync.Once
)

// RootPath resolves a path relative to the repository rootPath (where go.mod resides).
func RootPath(t *testing.T) string {
	t.Helper()
	once.Do(func() {
		wd, err := os.Getwd()
		if err != nil {
			t.Fatalf("getwd: %v", err)
		}
		for {
			if _, err := os.Stat(filepath.Join(wd, "go.mod")); err == nil {
				rootPath = wd
				break
			}
			next := filepath.Dir(wd)
			if next == wd {
				t.Fatalf("go.mod not found from %s", wd)
			}
			wd = next
		}
	})
	return rootPath
}

// ReadSample returns the raw contents of a file under samples/.
func ReadSample(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(RootPath(t), "samples", rel))
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	return string(data)
}

// LoadSample analyzes a sample plan with the default configuration.
func LoadSample(t *testing.T, rel string) *explain.Result {
	t.Helper()
	res := explain.New(explain.OptionsFrom(config.Default())).Analyze(ReadSample(t, rel))
	if !res.Recognized() {
		t.Fatalf("analyze %s: %v", rel, res.Err)
	}
	return res
}
