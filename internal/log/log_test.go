package log

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func newBufferLogger(t *testing.T, level logrus.Level) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := New()
	logger.log.SetOutput(&buf)
	logger.log.SetLevel(level)
	logger.log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return logger, &buf
}

func TestNew_DefaultLevel(t *testing.T) {
	_ = os.Unsetenv("LOG_LEVEL")
	logger := New()
	if logger.log.GetLevel() != logrus.InfoLevel {
		t.Errorf("expected default level Info, got %v", logger.log.GetLevel())
	}
}

func TestNew_CustomLevels(t *testing.T) {
	tests := []struct {
		envValue string
		expected logrus.Level
	}{
		{"trace", logrus.TraceLevel},
		{"debug", logrus.DebugLevel},
		{"warning", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"invalid", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.envValue, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.envValue)

			logger := New()
			if logger.log.GetLevel() != tt.expected {
				t.Errorf("for LOG_LEVEL=%s, expected level %v, got %v", tt.envValue, tt.expected, logger.log.GetLevel())
			}
		})
	}
}

func TestSetLevel(t *testing.T) {
	logger := New()

	logger.SetLevel("debug")
	if logger.log.GetLevel() != logrus.DebugLevel {
		t.Errorf("expected debug, got %v", logger.log.GetLevel())
	}

	logger.SetLevel("nonsense")
	if logger.log.GetLevel() != logrus.DebugLevel {
		t.Errorf("unknown level should be ignored, got %v", logger.log.GetLevel())
	}
}

func TestLevelsFilter(t *testing.T) {
	logger, buf := newBufferLogger(t, logrus.WarnLevel)

	logger.Debug("hidden debug")
	logger.Info("hidden info")
	logger.Warn("visible warn")
	logger.Error("visible error")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Errorf("messages below warn leaked: %s", output)
	}
	if !strings.Contains(output, "visible warn") || !strings.Contains(output, "visible error") {
		t.Errorf("expected warn and error output, got: %s", output)
	}
}

func TestWithFieldsVariants(t *testing.T) {
	logger, buf := newBufferLogger(t, logrus.DebugLevel)

	logger.DebugWithFields(logrus.Fields{"id": "123"}, "debug %d", 1)
	logger.InfoWithFields(logrus.Fields{"status": "ok"}, "info")
	logger.WarnWithFields(logrus.Fields{"reason": "timeout"}, "warn")
	logger.ErrorWithFields(logrus.Fields{"code": "500"}, "error")

	output := buf.String()
	for _, want := range []string{"debug 1", "id=123", "status=ok", "reason=timeout", "code=500"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestWith_ChildSharesOutputAndLevel(t *testing.T) {
	logger, buf := newBufferLogger(t, logrus.InfoLevel)

	child := logger.With("partition", "in/0").WithFields(logrus.Fields{"queue": "unordered"})
	child.Info("batch done")
	logger.Info("parent line")

	output := buf.String()
	if !strings.Contains(output, "partition=in/0") || !strings.Contains(output, "queue=unordered") {
		t.Errorf("expected child fields in output, got: %s", output)
	}
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 2 || strings.Contains(lines[1], "partition=") {
		t.Errorf("parent must not inherit child fields, got: %s", output)
	}

	logger.SetLevel("error")
	buf.Reset()
	child.Info("suppressed")
	if buf.Len() != 0 {
		t.Errorf("child should follow parent level, got: %s", buf.String())
	}
}

func TestNewDiscard(t *testing.T) {
	logger := NewDiscard()
	logger.Error("dropped")
	if logger.GetLogrus() == nil {
		t.Fatal("GetLogrus() returned nil")
	}
}
