package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vovakirdan/wiredoc-server/internal/app"
	"github.com/vovakirdan/wiredoc-server/internal/auth"
	"github.com/vovakirdan/wiredoc-server/internal/config"
)

func TestTokenCommand(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"token", "--config", configPath, "--user-id", "7", "--username", "grace"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	cfg, _, err := config.Load(nil, configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	claims, err := auth.ValidateToken(app.JWTConfig(&cfg), strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("minted token does not validate: %v", err)
	}
	if claims.UserID != 7 || claims.Username != "grace" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenCommandRequiresIdentity(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"token", "--config", filepath.Join(t.TempDir(), "config.yaml")})

	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error without --user-id and --username")
	}
}
