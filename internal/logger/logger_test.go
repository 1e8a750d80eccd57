package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestLogger(t *testing.T) (*FileLogger, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")
	l, err := NewFileLogger(&Config{
		LogFilePath: path,
		MaxFileSize: 1024 * 1024,
		MaxBackups:  2,
		Level:       LevelDebug,
	})
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	return l, path
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	return string(data)
}

func TestLogLevels(t *testing.T) {
	l, path := newTestLogger(t)
	defer l.Close()

	l.Debug("debug message")
	l.Info("info message")
	l.Warn("warn message")
	l.Error("error message", os.ErrNotExist)

	content := readLog(t, path)
	for _, want := range []string{"[DEBUG] debug message", "[INFO] info message", "[WARN] warn message", "[ERROR] error message"} {
		if !strings.Contains(content, want) {
			t.Errorf("log missing %q", want)
		}
	}
	if !strings.Contains(content, "file does not exist") {
		t.Errorf("error detail not logged")
	}
}

func TestLevelFiltering(t *testing.T) {
	l, path := newTestLogger(t)
	defer l.Close()

	l.SetLevel(LevelWarn)
	l.Debug("hidden debug")
	l.Info("hidden info")
	l.Warn("visible warn")

	content := readLog(t, path)
	if strings.Contains(content, "hidden debug") || strings.Contains(content, "hidden info") {
		t.Error("messages below level should be filtered")
	}
	if !strings.Contains(content, "visible warn") {
		t.Error("warn message should pass the filter")
	}
}

func TestFields(t *testing.T) {
	l, path := newTestLogger(t)
	defer l.Close()

	l.Info("with fields",
		String("name", "chunk-3"),
		Int("pages", 10),
		Float64("ratio", 0.5),
		Bool("ok", true))

	content := readLog(t, path)
	for _, want := range []string{"name=chunk-3", "pages=10", "ratio=0.5", "ok=true"} {
		if !strings.Contains(content, want) {
			t.Errorf("log missing field %q", want)
		}
	}
}

func TestRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rotate.log")
	l, err := NewFileLogger(&Config{
		LogFilePath: path,
		MaxFileSize: 200,
		MaxBackups:  2,
		Level:       LevelDebug,
	})
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	defer l.Close()

	for i := 0; i < 20; i++ {
		l.Info("a reasonably long log line that will force rotation sooner or later")
	}

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Errorf("expected rotated backup file: %v", err)
	}
}

func TestGlobalLoggerNoop(t *testing.T) {
	SetGlobalLogger(nil)
	// Must not panic when the global logger is unset.
	Debug("noop")
	Info("noop")
	Warn("noop")
	Error("noop", nil)
}
