package shared

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf)
	logger.Info("hello", "key", "value")

	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("expected log output, got %q", buf.String())
	}
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == b {
		t.Error("expected unique ids")
	}
	if len(a) != 36 {
		t.Errorf("expected uuid string, got %q", a)
	}
}

func TestNewPrefix(t *testing.T) {
	a, b := NewPrefix("feed"), NewPrefix("feed")
	if !strings.HasPrefix(a, "feed-") {
		t.Errorf("expected feed- prefix, got %q", a)
	}
	if a == b {
		t.Error("two mounts of the same screen must get distinct prefixes")
	}
}
