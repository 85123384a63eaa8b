package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func TestLoadConfigDefaults(t *testing.T) {
	LoadConfig("", nil)
	if AppConfig.Database.Dir != "./data" {
		t.Fatalf("Database.Dir = %q, want ./data", AppConfig.Database.Dir)
	}
	if AppConfig.Server.EnvPrefix != "BS" {
		t.Fatalf("Server.EnvPrefix = %q, want BS", AppConfig.Server.EnvPrefix)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bsnode.yaml")
	data := []byte("database:\n  dir: /var/lib/bsnode\n  cache_entries: 2048\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	LoadConfig(path, nil)
	if AppConfig.Database.Dir != "/var/lib/bsnode" {
		t.Fatalf("Database.Dir = %q, want /var/lib/bsnode", AppConfig.Database.Dir)
	}
	if AppConfig.Database.CacheEntries != 2048 {
		t.Fatalf("Database.CacheEntries = %d, want 2048", AppConfig.Database.CacheEntries)
	}
}

func TestLoadConfigFlagOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bsnode.yaml")
	data := []byte("database:\n  dir: /var/lib/bsnode\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("database.dir", "", "")
	if err := fs.Parse([]string{"--database.dir=/flag/override"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	LoadConfig(path, fs)
	if AppConfig.Database.Dir != "/flag/override" {
		t.Fatalf("Database.Dir = %q, want /flag/override (flag should win over file)", AppConfig.Database.Dir)
	}
}
