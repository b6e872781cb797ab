package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func resetState() {
	CloseAll()
	loggers = make(map[Category]*Logger)
	logsDir = ""
	cfgMu.Lock()
	cfg = Config{}
	cfgMu.Unlock()
}

func TestInitializeCreatesLogFilePerCategory(t *testing.T) {
	tempDir := t.TempDir()
	resetState()
	t.Cleanup(resetState)

	if err := Initialize(tempDir, Config{DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !IsDebugMode() {
		t.Fatal("expected debug mode enabled")
	}

	Get(CategoryStore).Info("store up")
	Get(CategoryGraph).Info("graph up")
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(tempDir, "logs"))
	if err != nil {
		t.Fatalf("reading logs dir: %v", err)
	}
	var sawStore, sawGraph bool
	for _, e := range entries {
		if strings.Contains(e.Name(), "store") {
			sawStore = true
		}
		if strings.Contains(e.Name(), "graph") {
			sawGraph = true
		}
	}
	if !sawStore || !sawGraph {
		t.Fatalf("expected store and graph log files, got %v", entries)
	}
}

func TestDisabledCategoryIsSilent(t *testing.T) {
	tempDir := t.TempDir()
	resetState()
	t.Cleanup(resetState)

	if err := Initialize(tempDir, Config{
		DebugMode:  true,
		Level:      "debug",
		Categories: map[string]bool{string(CategoryPolicy): false},
	}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	Get(CategoryPolicy).Info("should not be written")
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(tempDir, "logs"))
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("reading logs dir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), "policy") {
			t.Fatalf("expected no policy log file, found %s", e.Name())
		}
	}
}

func TestNonDebugModeWritesNothing(t *testing.T) {
	tempDir := t.TempDir()
	resetState()
	t.Cleanup(resetState)

	if err := Initialize(tempDir, Config{DebugMode: false}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	Get(CategoryEngine).Info("should be a no-op")

	if _, err := os.Stat(filepath.Join(tempDir, "logs")); !os.IsNotExist(err) {
		t.Fatalf("expected no logs directory, stat err=%v", err)
	}
}

func TestTimerStopReportsElapsed(t *testing.T) {
	tempDir := t.TempDir()
	resetState()
	t.Cleanup(resetState)

	if err := Initialize(tempDir, Config{DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	timer := StartTimer(CategoryManifest, "louvain")
	elapsed := timer.Stop()
	if elapsed < 0 {
		t.Fatalf("expected non-negative elapsed, got %v", elapsed)
	}
}
