// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine.TreeFanout != 16 {
		t.Errorf("default tree_fanout = %d, want 16", cfg.Engine.TreeFanout)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("default log level = %s, want info", cfg.Log.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vexdb.yaml")
	content := "engine:\n  tree_fanout: 8\nlog:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine.TreeFanout != 8 {
		t.Errorf("tree_fanout = %d, want 8", cfg.Engine.TreeFanout)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %s, want debug", cfg.Log.Level)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := &Config{Engine: EngineConfig{TreeFanout: 1}, Log: LogConfig{Level: "info"}}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for tree_fanout < 2")
	}

	cfg = &Config{Engine: EngineConfig{TreeFanout: 16}, Log: LogConfig{Level: "loud"}}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown log level")
	}
}
