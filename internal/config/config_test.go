package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaultsFilesAndEnv(t *testing.T) {
	dir := t.TempDir()
	base := `
db:
  name: tasknexus
  user: nexus
jwt:
  secret: ${NEXUS_TEST_JWT_SECRET}
notification:
  list_limit: 20
`
	local := `
server:
  port: "9090"
outbox:
  batch_size: 10
`
	if err := os.WriteFile(filepath.Join(dir, "base.yaml"), []byte(base), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "local.yaml"), []byte(local), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CONFIG_DIR", dir)
	t.Setenv("CONFIG_ENV", "local")
	t.Setenv("NEXUS_TEST_JWT_SECRET", "from-env")
	t.Setenv("DB_HOST", "db.internal")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.JWT.Secret != "from-env" {
		t.Errorf("jwt secret = %q", cfg.JWT.Secret)
	}
	if cfg.DB.Host != "db.internal" {
		t.Errorf("db host override not applied: %q", cfg.DB.Host)
	}
	if cfg.DB.Port != 5432 {
		t.Errorf("default db port lost: %d", cfg.DB.Port)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("server port = %q", cfg.Server.Port)
	}
	if cfg.Outbox.BatchSize != 10 || cfg.Outbox.MaxRetries != 5 {
		t.Errorf("outbox config = %+v", cfg.Outbox)
	}
	if cfg.TokenTTL() != 24*time.Hour {
		t.Errorf("token ttl = %v", cfg.TokenTTL())
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.DB.Name = "tasknexus"
	if err := cfg.Validate(); err == nil {
		t.Fatal("missing jwt secret must fail validation")
	}
	cfg.JWT.Secret = "s"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.JWT.Secret = "${JWT_SECRET}"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unresolved placeholder must fail validation")
	}
}

func TestWorkerPortOverride(t *testing.T) {
	dir := t.TempDir()
	base := "db:\n  name: tasknexus\njwt:\n  secret: s\n"
	if err := os.WriteFile(filepath.Join(dir, "base.yaml"), []byte(base), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_DIR", dir)
	t.Setenv("CONFIG_ENV", "base")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Worker.Port != "8081" {
		t.Fatalf("default worker port = %q", cfg.Worker.Port)
	}

	t.Setenv("WORKER_PORT", "9191")
	t.Setenv("ADMIN_TOKEN", "tok")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Worker.Port != "9191" || cfg.Admin.Token != "tok" {
		t.Fatalf("env overrides not applied: worker=%q admin=%q", cfg.Worker.Port, cfg.Admin.Token)
	}
}
