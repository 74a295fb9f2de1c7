package logger

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	log := New()
	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected logger to be enabled")
	}
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Msg("test message")

	output := buf.String()
	if output == "" {
		t.Error("Expected log output, got empty string")
	}
	if !strings.Contains(output, "test message") {
		t.Errorf("Expected output to contain 'test message', got: %s", output)
	}
}

func TestWithContext(t *testing.T) {
	log := New()
	ctx := context.Background()

	ctxWithLogger := WithContext(ctx, log)

	if ctxWithLogger.Value(LoggerKey) == nil {
		t.Error("Expected logger in context, got nil")
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	testLog := NewWithWriter(buf)
	ctx := WithContext(context.Background(), testLog)

	retrievedLog := FromContext(ctx)
	retrievedLog.Info().Msg("test")

	if buf.Len() == 0 {
		t.Error("Expected log output from retrieved logger")
	}
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())

	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected default logger to be enabled")
	}
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	fields := map[string]interface{}{
		"run_id": "123",
		"month":  "Mar-24",
	}

	logWithFields := WithFields(log, fields)
	logWithFields.Info().Msg("test message")

	output := buf.String()
	if !strings.Contains(output, "run_id") || !strings.Contains(output, "123") {
		t.Errorf("Expected output to contain run_id field, got: %s", output)
	}
	if !strings.Contains(output, "month") || !strings.Contains(output, "Mar-24") {
		t.Errorf("Expected output to contain month field, got: %s", output)
	}
}

func TestNewFile_FiltersByLevelAndWritesStack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "logs.log")
	console := &bytes.Buffer{}

	log, closer, err := NewFile(path, zerolog.InfoLevel, console)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	log.Debug().Msg("debug only on console")
	log.Error().Stack().Err(errors.New("boom")).Msg("Operation failed due to an error")

	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	out := string(data)

	if strings.Contains(out, "debug only on console") {
		t.Error("debug event should not reach the file")
	}
	if !strings.Contains(out, "Operation failed due to an error") {
		t.Errorf("error event missing from file: %s", out)
	}
	if !strings.Contains(out, `"stack"`) {
		t.Errorf("expected stack field in file output: %s", out)
	}
	if !strings.Contains(console.String(), "debug only on console") {
		t.Error("console should receive every event")
	}
}
