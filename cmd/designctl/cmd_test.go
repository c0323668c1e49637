package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "database:\n  connectionString: " + filepath.Join(dir, "designcase.db") + "\n" +
		"storage:\n  baseDir: " + filepath.Join(dir, "objects") + "\n" + extra
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestSeedAndReconcile(t *testing.T) {
	path := writeConfig(t, "")

	out, err := runCLI(t, "seed", "--config", path)
	if err != nil {
		t.Fatalf("seed failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "seeded 3 templates") {
		t.Errorf("unexpected seed output: %s", out)
	}

	out, err = runCLI(t, "reconcile", "--config", path, "--dry-run")
	if err != nil {
		t.Fatalf("reconcile failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "orphaned 0") {
		t.Errorf("template previews must not count as orphans: %s", out)
	}
}

func TestToken(t *testing.T) {
	path := writeConfig(t, "auth:\n  jwtSecret: cli-secret\n")

	out, err := runCLI(t, "token", "user-42", "--config", path)
	if err != nil {
		t.Fatalf("token failed: %v", err)
	}

	token, err := jwt.Parse(strings.TrimSpace(out), func(*jwt.Token) (any, error) { return []byte("cli-secret"), nil })
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if sub, _ := token.Claims.GetSubject(); sub != "user-42" {
		t.Errorf("subject = %q, want user-42", sub)
	}
}

func TestTokenRequiresSecret(t *testing.T) {
	path := writeConfig(t, "")
	if _, err := runCLI(t, "token", "user-42", "--config", path); err == nil {
		t.Fatal("expected an error without auth.jwtSecret")
	}
}
