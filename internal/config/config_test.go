package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yml")
	configContent := `
debug: true
server:
  host: "0.0.0.0"
  port: 8060
database:
  host: "localhost"
  port: 5432
  user: "testuser"
  password: "testpass"
  dbname: "testdb"
pipeline:
  job_timeout: 10m
  confidence_threshold: 0.7
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	if cfg == nil {
		t.Fatal("Load() returned nil config")
	}

	if !cfg.Debug {
		t.Error("Load() cfg.Debug = false, want true")
	}

	if cfg.Server.Port != 8060 {
		t.Errorf("Load() cfg.Server.Port = %v, want 8060", cfg.Server.Port)
	}

	if cfg.Pipeline.JobTimeout != 10*time.Minute {
		t.Errorf("Load() cfg.Pipeline.JobTimeout = %v, want 10m", cfg.Pipeline.JobTimeout)
	}

	if cfg.Pipeline.ConfidenceThreshold != 0.7 {
		t.Errorf("Load() cfg.Pipeline.ConfidenceThreshold = %v, want 0.7", cfg.Pipeline.ConfidenceThreshold)
	}
}

func TestLoad_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yml")
	configContent := `
database:
  host: "localhost"
  user: "user"
  password: "pass"
  dbname: "db"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("default server.host = %v, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Port != defaultServerPort {
		t.Errorf("default server.port = %v, want %v", cfg.Server.Port, defaultServerPort)
	}
	if cfg.Database.Port != defaultDatabasePort {
		t.Errorf("default database.port = %v, want %v", cfg.Database.Port, defaultDatabasePort)
	}
	if cfg.Pipeline.JobTimeout != defaultJobTimeout {
		t.Errorf("default pipeline.job_timeout = %v, want %v", cfg.Pipeline.JobTimeout, defaultJobTimeout)
	}
	if cfg.Pipeline.SweepInterval != defaultSweepInterval {
		t.Errorf("default pipeline.sweep_interval = %v, want %v", cfg.Pipeline.SweepInterval, defaultSweepInterval)
	}
	if cfg.Pipeline.DedupBatchSize != defaultDedupBatchSize {
		t.Errorf("default pipeline.dedup_batch_size = %v, want %v", cfg.Pipeline.DedupBatchSize, defaultDedupBatchSize)
	}
	if cfg.Pipeline.DedupSchedule != defaultDedupSchedule {
		t.Errorf("default pipeline.dedup_schedule = %v, want %v", cfg.Pipeline.DedupSchedule, defaultDedupSchedule)
	}
	if cfg.Pipeline.ConfidenceThreshold != defaultConfidenceThreshold {
		t.Errorf("default pipeline.confidence_threshold = %v, want %v",
			cfg.Pipeline.ConfidenceThreshold, defaultConfidenceThreshold)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yml")
	configContent := `
server:
  port: 8060
database:
  host: "localhost"
  user: "user"
  password: "pass"
  dbname: "db"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("JOB_TIMEOUT", "20m")
	t.Setenv("DISCOVERY_CONFIDENCE_THRESHOLD", "0.8")
	t.Setenv("CORS_ORIGINS", "https://admin.camphub.example, https://ops.camphub.example")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("env override server.port = %v, want 9090", cfg.Server.Port)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("env override database.host = %v, want db.internal", cfg.Database.Host)
	}
	if cfg.Pipeline.JobTimeout != 20*time.Minute {
		t.Errorf("env override pipeline.job_timeout = %v, want 20m", cfg.Pipeline.JobTimeout)
	}
	if cfg.Pipeline.ConfidenceThreshold != 0.8 {
		t.Errorf("env override pipeline.confidence_threshold = %v, want 0.8", cfg.Pipeline.ConfidenceThreshold)
	}
	want := []string{"https://admin.camphub.example", "https://ops.camphub.example"}
	if len(cfg.Server.CORSOrigins) != len(want) {
		t.Fatalf("env override cors_origins = %v, want %v", cfg.Server.CORSOrigins, want)
	}
	for i := range want {
		if cfg.Server.CORSOrigins[i] != want[i] {
			t.Errorf("cors_origins[%d] = %q, want %q", i, cfg.Server.CORSOrigins[i], want[i])
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yml"))
	if err == nil {
		t.Error("Load() expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(cfg *Config) {}, false},
		{"missing server host", func(cfg *Config) { cfg.Server.Host = "" }, true},
		{"bad server port", func(cfg *Config) { cfg.Server.Port = 0 }, true},
		{"missing database host", func(cfg *Config) { cfg.Database.Host = "" }, true},
		{"missing database user", func(cfg *Config) { cfg.Database.User = "" }, true},
		{"confidence threshold above one", func(cfg *Config) { cfg.Pipeline.ConfidenceThreshold = 1.5 }, true},
		{"non-positive dedup batch size", func(cfg *Config) { cfg.Pipeline.DedupBatchSize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			setDefaults(cfg)
			cfg.Database.Host = "localhost"
			cfg.Database.User = "user"
			cfg.Database.DBName = "db"
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
