package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNew_WritesMessage(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("experiment finished", "experiment", "exp_lr_high")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !strings.Contains(buf.String(), "experiment finished") {
		t.Errorf("expected message in output, got %q", buf.String())
	}
}

func TestNop(t *testing.T) {
	var logger Logger = Nop()
	logger.Debug("x")
	logger.Info("x", "k", 1)
	logger.Warn("x")
	logger.Error("x")
	if err := logger.Close(); err != nil {
		t.Errorf("expected nil close error, got %v", err)
	}
}
