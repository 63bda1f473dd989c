// internal/logger/logger_test.go
package logger

import "testing"

func TestNewLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		l, err := New(level, "text", "stderr")
		if err != nil {
			t.Errorf("New(%q) failed: %v", level, err)
			continue
		}
		_ = l.Sync()
	}

	if _, err := New("loud", "text", "stderr"); err == nil {
		t.Error("expected error for unknown log level")
	}
}

func TestNamedAndWith(t *testing.T) {
	l := NewNop()
	named := l.Named("executor")
	if named == nil {
		t.Fatal("Named returned nil")
	}
	withCtx := named.With("query_id", "test")
	if withCtx == nil {
		t.Fatal("With returned nil")
	}
	withCtx.Info("window computed", "rows", 4)
}
