package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		wantErr  bool
		validate func(t *testing.T, settings Settings)
	}{
		{
			name:    "defaults",
			envVars: map[string]string{},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.BundleDir != "models" {
					t.Errorf("expected default BundleDir 'models', got %s", settings.BundleDir)
				}
				if settings.Port != 5000 {
					t.Errorf("expected default Port 5000, got %d", settings.Port)
				}
				if settings.RequestTimeout != 5*time.Second {
					t.Errorf("expected default RequestTimeout 5s, got %v", settings.RequestTimeout)
				}
				if settings.CacheSize != 0 {
					t.Errorf("expected cache disabled by default, got %d", settings.CacheSize)
				}
				if settings.ReferencePath != "" || settings.DataPath != "" {
					t.Errorf("expected optional paths empty, got %q %q", settings.ReferencePath, settings.DataPath)
				}
				if settings.Log.Level != "info" || settings.Log.Format != "json" {
					t.Errorf("unexpected log defaults: %+v", settings.Log)
				}
			},
		},
		{
			name: "custom settings",
			envVars: map[string]string{
				"BUNDLE_DIR":      "/srv/bundle",
				"REFERENCE_PATH":  "/srv/cars.csv",
				"PORT":            "8081",
				"DATA_PATH":       "/var/lib/autoprice",
				"REQUEST_TIMEOUT": "2s",
				"CACHE_SIZE":      "512",
				"LOG_LEVEL":       "debug",
				"LOG_FORMAT":      "console",
				"LOG_FILE":        "/var/log/autoprice.log",
			},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.BundleDir != "/srv/bundle" {
					t.Errorf("expected BundleDir /srv/bundle, got %s", settings.BundleDir)
				}
				if settings.ReferencePath != "/srv/cars.csv" {
					t.Errorf("expected ReferencePath /srv/cars.csv, got %s", settings.ReferencePath)
				}
				if settings.Port != 8081 {
					t.Errorf("expected Port 8081, got %d", settings.Port)
				}
				if settings.RequestTimeout != 2*time.Second {
					t.Errorf("expected RequestTimeout 2s, got %v", settings.RequestTimeout)
				}
				if settings.CacheSize != 512 {
					t.Errorf("expected CacheSize 512, got %d", settings.CacheSize)
				}
				if settings.Log.File != "/var/log/autoprice.log" {
					t.Errorf("expected log file, got %s", settings.Log.File)
				}
			},
		},
		{
			name:    "port out of range",
			envVars: map[string]string{"PORT": "70000"},
			wantErr: true,
		},
		{
			name:    "negative cache size",
			envVars: map[string]string{"CACHE_SIZE": "-1"},
			wantErr: true,
		},
		{
			name:    "unknown log level",
			envVars: map[string]string{"LOG_LEVEL": "loud"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)

			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			settings, err := loadFromEnv()

			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	tests := []struct {
		name         string
		yamlContent  string
		envOverrides map[string]string
		wantErr      bool
		validate     func(t *testing.T, settings Settings)
	}{
		{
			name: "valid YAML config",
			yamlContent: `
model:
  bundleDir: "/opt/bundle"
  referencePath: "/opt/cars.csv"
  cacheSize: 128

server:
  port: 9000
  requestTimeout: "750ms"
  wsReadLimit: 8192

system:
  dataPath: "/opt/data"

logging:
  level: "warn"
  format: "console"
  maxSizeMB: 10
  maxBackups: 1
  maxAgeDays: 7
`,
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.BundleDir != "/opt/bundle" {
					t.Errorf("expected BundleDir /opt/bundle, got %s", settings.BundleDir)
				}
				if settings.CacheSize != 128 {
					t.Errorf("expected CacheSize 128, got %d", settings.CacheSize)
				}
				if settings.Port != 9000 {
					t.Errorf("expected Port 9000, got %d", settings.Port)
				}
				if settings.RequestTimeout != 750*time.Millisecond {
					t.Errorf("expected RequestTimeout 750ms, got %v", settings.RequestTimeout)
				}
				if settings.WSReadLimit != 8192 {
					t.Errorf("expected WSReadLimit 8192, got %d", settings.WSReadLimit)
				}
				if settings.DataPath != "/opt/data" {
					t.Errorf("expected DataPath /opt/data, got %s", settings.DataPath)
				}
				if settings.Log.Level != "warn" || settings.Log.MaxSizeMB != 10 {
					t.Errorf("unexpected log settings: %+v", settings.Log)
				}
			},
		},
		{
			name: "YAML with env overrides",
			yamlContent: `
model:
  bundleDir: "/opt/bundle"
server:
  port: 9000
`,
			envOverrides: map[string]string{
				"PORT":       "9100",
				"CACHE_SIZE": "64",
			},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.Port != 9100 {
					t.Errorf("expected env override Port 9100, got %d", settings.Port)
				}
				if settings.BundleDir != "/opt/bundle" {
					t.Errorf("expected YAML BundleDir, got %s", settings.BundleDir)
				}
				if settings.CacheSize != 64 {
					t.Errorf("expected env override CacheSize 64, got %d", settings.CacheSize)
				}
			},
		},
		{
			name:        "empty YAML falls back to defaults",
			yamlContent: `{}`,
			wantErr:     false,
			validate: func(t *testing.T, settings Settings) {
				if settings.BundleDir != "models" || settings.Port != 5000 {
					t.Errorf("expected defaults, got %+v", settings)
				}
				if settings.RequestTimeout != 5*time.Second {
					t.Errorf("expected default timeout, got %v", settings.RequestTimeout)
				}
			},
		},
		{
			name: "invalid values rejected",
			yamlContent: `
logging:
  format: "xml"
`,
			wantErr: true,
		},
		{
			name: "unparseable request timeout",
			yamlContent: `
server:
  requestTimeout: "5 sec"
`,
			wantErr: true,
		},
		{
			name:        "invalid YAML",
			yamlContent: `invalid: yaml: content: [`,
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)

			for key, value := range tt.envOverrides {
				t.Setenv(key, value)
			}

			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "config.yaml")
			err := os.WriteFile(configPath, []byte(tt.yamlContent), 0o644)
			if err != nil {
				t.Fatalf("failed to write test config file: %v", err)
			}

			settings, err := loadFromYAML(configPath)

			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("load from env when no config file", func(t *testing.T) {
		clearTestEnv(t)
		t.Setenv("PORT", "6000")

		settings, err := Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if settings.Port != 6000 {
			t.Errorf("expected Port 6000, got %d", settings.Port)
		}
	})

	t.Run("load from YAML when config file specified", func(t *testing.T) {
		clearTestEnv(t)
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(configPath, []byte("model:\n  bundleDir: yaml-bundle\n"), 0o644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		t.Setenv("CONFIG_FILE", configPath)

		settings, err := Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if settings.BundleDir != "yaml-bundle" {
			t.Errorf("expected BundleDir yaml-bundle, got %s", settings.BundleDir)
		}
	})

	t.Run("missing config file", func(t *testing.T) {
		clearTestEnv(t)
		t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

		if _, err := Load(); err == nil {
			t.Error("expected error for missing config file")
		}
	})
}

// clearTestEnv blanks every variable the loader reads.
func clearTestEnv(t *testing.T) {
	envVars := []string{
		"CONFIG_FILE", "BUNDLE_DIR", "REFERENCE_PATH", "PORT", "DATA_PATH",
		"REQUEST_TIMEOUT", "CACHE_SIZE", "WS_READ_LIMIT", "LOG_LEVEL", "LOG_FORMAT",
		"LOG_FILE", "LOG_MAX_SIZE_MB", "LOG_MAX_BACKUPS", "LOG_MAX_AGE_DAYS",
	}

	for _, env := range envVars {
		if val := os.Getenv(env); val != "" {
			t.Setenv(env, "")
		}
	}
}
