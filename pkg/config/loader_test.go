package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadConfigMergesEnvironmentFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "db:\n  host: localhost\n  port: 5432\nserver:\n  port: \":8080\"\n")
	writeFile(t, dir, "production.yaml", "db:\n  host: db.internal\n")

	cfgMap, err := LoadConfig("production", dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	var cfg struct {
		DB     DBConfig     `yaml:"db"`
		Server ServerConfig `yaml:"server"`
	}
	if err := Decode(cfgMap, &cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.DB.Host != "db.internal" {
		t.Fatalf("expected env override of host, got %q", cfg.DB.Host)
	}
	if cfg.DB.Port != 5432 {
		t.Fatalf("expected base port to survive merge, got %d", cfg.DB.Port)
	}
	if cfg.Server.Port != ":8080" {
		t.Fatalf("unexpected server port %q", cfg.Server.Port)
	}
}

func TestLoadConfigSubstitutesSecretsAndSystemEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "jwt:\n  secret: ${JWT_KEY}\ndb:\n  password: ${NEXUS_TEST_DB_PASSWORD}\n  user: ${NEXUS_UNSET_VAR}\n")
	writeFile(t, dir, "secrets.env", "# comment\nJWT_KEY=\"s3cret\"\n")
	t.Setenv("NEXUS_TEST_DB_PASSWORD", "pw")

	cfgMap, err := LoadConfig("local", dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	var cfg struct {
		JWT JWTConfig `yaml:"jwt"`
		DB  DBConfig  `yaml:"db"`
	}
	if err := Decode(cfgMap, &cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.JWT.Secret != "s3cret" {
		t.Fatalf("expected secret from secrets.env, got %q", cfg.JWT.Secret)
	}
	if cfg.DB.Password != "pw" {
		t.Fatalf("expected password from system env, got %q", cfg.DB.Password)
	}
	if cfg.DB.User != "${NEXUS_UNSET_VAR}" {
		t.Fatalf("unresolved placeholder should be kept, got %q", cfg.DB.User)
	}
}

func TestLoadConfigMissingBase(t *testing.T) {
	if _, err := LoadConfig("local", t.TempDir()); err == nil {
		t.Fatal("expected error when base.yaml is missing")
	}
}

func TestOverrideJWTFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("JWT_TTL_HOURS", "abc")

	cfg := JWTConfig{Secret: "file", TTLHours: 24}
	OverrideJWTFromEnv(&cfg)
	if cfg.Secret != "from-env" {
		t.Fatalf("secret not overridden: %q", cfg.Secret)
	}
	if cfg.TTLHours != 24 {
		t.Fatalf("invalid ttl should be ignored, got %d", cfg.TTLHours)
	}
}
