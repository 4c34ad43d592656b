package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	f := Flags()
	if err := f.Parse(nil); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(f)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DB != "kartei.db" {
		t.Errorf("db = %q, want kartei.db", cfg.DB)
	}
	if cfg.Listen != "127.0.0.1:8484" {
		t.Errorf("listen = %q", cfg.Listen)
	}
	if cfg.Repos != "repos" {
		t.Errorf("repos = %q", cfg.Repos)
	}
}

func TestFlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("db: from-file.db\nlisten: 0.0.0.0:9000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := Flags()
	if err := f.Parse([]string{"--config", path, "--db", "from-flag.db"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(f)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DB != "from-flag.db" {
		t.Errorf("db = %q, want flag to win over file", cfg.DB)
	}
	if cfg.Listen != "0.0.0.0:9000" {
		t.Errorf("listen = %q, want file value over default", cfg.Listen)
	}
}

func TestMissingConfigFileErrors(t *testing.T) {
	f := Flags()
	if err := f.Parse([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")}); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(f); err == nil {
		t.Fatal("expected error for explicitly given but missing config file")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("db: from-file.db\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("KARTEI_DB", "from-env.db")

	f := Flags()
	if err := f.Parse([]string{"--config", path}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(f)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DB != "from-env.db" {
		t.Errorf("db = %q, want env to win over file", cfg.DB)
	}
}
