package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnv_ParsesOperatorsAndDefaults(t *testing.T) {
	t.Setenv("SZ_OPERATORS", " alice, ,bob ")
	t.Setenv("SZ_ADMIN_TOKEN", "tok")
	t.Setenv("DEPLOY_ENV", "production")
	t.Setenv("SZ_ENABLE_ADMIN_HTTP", "")

	cfg, err := loadEnv("")
	if err != nil {
		t.Fatalf("loadEnv: %v", err)
	}
	if len(cfg.Operators) != 2 || cfg.Operators[0] != "alice" || cfg.Operators[1] != "bob" {
		t.Fatalf("operators: got %q", cfg.Operators)
	}
	if cfg.AdminToken != "tok" {
		t.Fatalf("token: got %q", cfg.AdminToken)
	}
	if cfg.adminHTTPEnabled() {
		t.Fatalf("admin http should default off in production")
	}
	if cfg.IndexArenaID != "arena" {
		t.Fatalf("arena id default: got %q", cfg.IndexArenaID)
	}

	t.Setenv("SZ_ENABLE_ADMIN_HTTP", "true")
	cfg, _ = loadEnv("")
	if !cfg.adminHTTPEnabled() {
		t.Fatalf("explicit SZ_ENABLE_ADMIN_HTTP=true ignored")
	}
}

func TestLoadEnv_DotenvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("SZ_ADMIN_TOKEN=fromfile\nSZ_INDEX_TOKEN=idx\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SZ_ADMIN_TOKEN", "fromenv")
	t.Setenv("SZ_INDEX_TOKEN", "")
	os.Unsetenv("SZ_INDEX_TOKEN")

	cfg, err := loadEnv(path)
	if err != nil {
		t.Fatalf("loadEnv: %v", err)
	}
	if cfg.AdminToken != "fromenv" {
		t.Fatalf("token: got %q want fromenv", cfg.AdminToken)
	}
	if cfg.IndexToken != "idx" {
		t.Fatalf("index token: got %q want idx", cfg.IndexToken)
	}

	if _, err := loadEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("missing dotenv should be ignored: %v", err)
	}
}

func TestDefaultEnableAdminHTTP(t *testing.T) {
	for env, want := range map[string]bool{"": true, "dev": true, "Staging": false, "production": false} {
		if got := defaultEnableAdminHTTP(env); got != want {
			t.Fatalf("%q: got %v want %v", env, got, want)
		}
	}
}
