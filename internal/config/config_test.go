package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "database:\n  host: db\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"server port", cfg.Server.Port, 8080},
		{"db host", cfg.Database.Host, "db"},
		{"db port", cfg.Database.Port, 5432},
		{"max faces", cfg.Vision.MaxFaces, 60},
		{"max image dim", cfg.Vision.MaxImageDim, 1920},
		{"metric", cfg.Matching.Metric, "cosine"},
		{"threshold", cfg.Matching.Threshold, 0.6},
		{"liveness pass", cfg.Liveness.PassThreshold, 55.0},
		{"routine policy", cfg.Policy.Routine, 50.0},
		{"strict policy", cfg.Policy.Strict, 85.0},
		{"min images", cfg.Enrollment.MinImages, 3},
		{"refresh", cfg.Cache.RefreshInterval, 5 * time.Minute},
		{"log format", cfg.Logging.Format, "json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestCombinedMetricDefaultThreshold(t *testing.T) {
	cfg, err := Load(writeConfig(t, "matching:\n  metric: combined\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Matching.Threshold != 0.15 {
		t.Errorf("Threshold = %v, want 0.15", cfg.Matching.Threshold)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ATTEND_SERVER_PORT", "9090")
	t.Setenv("ATTEND_DB_NAME", "school")
	t.Setenv("ATTEND_MATCH_THRESHOLD", "0.45")
	t.Setenv("ATTEND_CACHE_REFRESH", "30s")

	cfg, err := Load(writeConfig(t, "server:\n  port: 8000\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Database.Name != "school" {
		t.Errorf("Name = %q, want school", cfg.Database.Name)
	}
	if cfg.Matching.Threshold != 0.45 {
		t.Errorf("Threshold = %v, want 0.45", cfg.Matching.Threshold)
	}
	if cfg.Cache.RefreshInterval != 30*time.Second {
		t.Errorf("RefreshInterval = %v, want 30s", cfg.Cache.RefreshInterval)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: 5433, Name: "n", User: "u", Password: "p"}
	want := "postgres://u:p@h:5433/n?sslmode=disable"
	if got := d.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
