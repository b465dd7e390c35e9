package logger

import (
	"path/filepath"
	"testing"

	"github.com/cf-ai-screenwriter-go/internal/config"
	"github.com/sirupsen/logrus"
)

func TestNewLoggerLevelAndFormat(t *testing.T) {
	log, err := NewLogger(&config.LoggingConfig{Level: "debug", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if log.GetLevel() != logrus.DebugLevel {
		t.Errorf("level = %v, want debug", log.GetLevel())
	}
	if _, ok := log.Formatter.(*logrus.JSONFormatter); !ok {
		t.Errorf("expected JSON formatter, got %T", log.Formatter)
	}
}

func TestNewLoggerInvalidLevel(t *testing.T) {
	if _, err := NewLogger(&config.LoggingConfig{Level: "chatty"}); err == nil {
		t.Fatal("expected error for invalid level")
	}
}

func TestNewLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	log, err := NewLogger(&config.LoggingConfig{
		Level:  "info",
		Output: "file",
		File:   config.FileConfig{Path: path, MaxSize: 1},
	})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	entry := WithRequester(log, "42", "10.0.0.1")
	if entry.Data["user_id"] != "42" || entry.Data["client_id"] != "10.0.0.1" {
		t.Errorf("unexpected fields: %v", entry.Data)
	}
}
