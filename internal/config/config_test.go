package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if errWrite := os.WriteFile(path, []byte(body), 0o600); errWrite != nil {
		t.Fatalf("write config: %v", errWrite)
	}
	return path
}

func TestLoad_DefaultsWithSecretFromEnv(t *testing.T) {
	t.Setenv("GATEWAY_JWT_SECRET", "env-secret")

	cfg, errLoad := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if errLoad != nil {
		t.Fatalf("load: %v", errLoad)
	}

	if cfg.JWT.Secret != "env-secret" {
		t.Fatalf("expected secret from env, got %q", cfg.JWT.Secret)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.JWT.Expiry != 30*24*time.Hour {
		t.Fatalf("expected 30 day token expiry, got %s", cfg.JWT.Expiry)
	}
	if cfg.Auth.SessionRetention != 7*24*time.Hour || cfg.Auth.EnforceSessions {
		t.Fatalf("unexpected auth defaults: %+v", cfg.Auth)
	}
	if got := cfg.Quota.PlanLimit("free"); got != 100 {
		t.Fatalf("expected free limit 100, got %d", got)
	}
}

func TestLoad_FileThenEnvOverride(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
jwt:
  secret: file-secret
  expiry: 1h
response:
  creator: acme
quota:
  plan-limits:
    free: 50
    pro: 500
`)
	t.Setenv("GATEWAY_SERVER_PORT", "7070")

	cfg, errLoad := Load(path)
	if errLoad != nil {
		t.Fatalf("load: %v", errLoad)
	}

	if cfg.Server.Port != 7070 {
		t.Fatalf("expected env port 7070, got %d", cfg.Server.Port)
	}
	if cfg.JWT.Secret != "file-secret" || cfg.JWT.Expiry != time.Hour {
		t.Fatalf("unexpected jwt config: %+v", cfg.JWT)
	}
	if cfg.Response.Creator != "acme" {
		t.Fatalf("expected creator acme, got %q", cfg.Response.Creator)
	}
	if cfg.Quota.PlanLimit("free") != 50 || cfg.Quota.PlanLimit("PRO") != 500 {
		t.Fatalf("unexpected plan limits: %v", cfg.Quota.PlanLimits)
	}
}

func TestLoad_RejectsMissingSecret(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 8081\n")

	_, errLoad := Load(path)
	if errLoad == nil || !strings.Contains(errLoad.Error(), "jwt.secret") {
		t.Fatalf("expected jwt.secret error, got %v", errLoad)
	}
}

func TestLoad_RejectsBrokenYAML(t *testing.T) {
	path := writeConfigFile(t, "server: [\n")

	if _, errLoad := Load(path); errLoad == nil {
		t.Fatalf("expected yaml error")
	}
}

func TestPlanLimit_UnknownPlanFallsBackToFree(t *testing.T) {
	q := Default().Quota
	if got := q.PlanLimit("platinum"); got != q.PlanLimits["free"] {
		t.Fatalf("expected free limit for unknown plan, got %d", got)
	}
}

func TestResolveConfigPath(t *testing.T) {
	if got := ResolveConfigPath("  "); got != DefaultConfigPath {
		t.Fatalf("expected default path, got %q", got)
	}
	if got := ResolveConfigPath("conf//app.yaml"); got != filepath.Clean("conf/app.yaml") {
		t.Fatalf("expected cleaned path, got %q", got)
	}
}
