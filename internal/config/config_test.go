package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/Faissen/signatures-recognition/internal/signature"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(viper.New(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.GRPCAddr != ":9090" {
		t.Fatalf("unexpected addresses %q %q", cfg.HTTPAddr, cfg.GRPCAddr)
	}
	if cfg.AcceptThreshold != 60 {
		t.Fatalf("expected accept threshold 60, got %v", cfg.AcceptThreshold)
	}
	if cfg.GallerySource != GallerySourceDatabase {
		t.Fatalf("expected database gallery, got %q", cfg.GallerySource)
	}

	opts := cfg.SignatureOptions()
	def := signature.DefaultOptions()
	if opts.CanvasWidth != def.CanvasWidth || opts.CanvasHeight != def.CanvasHeight || opts.MinInkPixels != def.MinInkPixels {
		t.Fatalf("options drifted from defaults: %+v", opts)
	}
	if opts.CursiveStrategy != signature.CursiveTemplate {
		t.Fatalf("expected template strategy, got %q", opts.CursiveStrategy)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("SIGID_HTTP_ADDR", ":9999")
	t.Setenv("SIGID_QUALITY_MIN_INK_PIXELS", "120")
	t.Setenv("SIGID_MATCHING_CURSIVE_STRATEGY", "Structural")
	t.Setenv("SIGID_HTTP_SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("REDIS_ADDR", "cache:6380")

	cfg, err := load(viper.New(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Fatalf("expected env http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.MinInkPixels != 120 {
		t.Fatalf("expected 120 ink pixels, got %d", cfg.MinInkPixels)
	}
	if cfg.SignatureOptions().CursiveStrategy != signature.CursiveStructural {
		t.Fatalf("expected structural strategy, got %q", cfg.CursiveStrategy)
	}
	if cfg.ShutdownTimeout != 3*time.Second {
		t.Fatalf("expected 3s shutdown, got %v", cfg.ShutdownTimeout)
	}
	if cfg.RedisAddr != "cache:6380" {
		t.Fatalf("expected legacy REDIS_ADDR to apply, got %q", cfg.RedisAddr)
	}
}

func TestPrefixedEnvWinsOverLegacy(t *testing.T) {
	t.Setenv("JWT_SECRET", "legacy")
	t.Setenv("SIGID_JWT_SECRET", "current")

	cfg, err := load(viper.New(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.JWTSecret != "current" {
		t.Fatalf("expected prefixed secret, got %q", cfg.JWTSecret)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sigid.yaml")
	content := []byte("gallery:\n  source: directory\n  dir: /data/signatures\n  names_file: /data/names.json\nmatching:\n  accept_threshold: 72.5\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := load(viper.New(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GallerySource != GallerySourceDirectory || cfg.GalleryDir != "/data/signatures" {
		t.Fatalf("unexpected gallery config: %+v", cfg)
	}
	if cfg.GalleryNamesFile != "/data/names.json" || cfg.AcceptThreshold != 72.5 {
		t.Fatalf("unexpected file values: %+v", cfg)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string][2]string{
		"gallery source":   {"SIGID_GALLERY_SOURCE", "s3"},
		"threshold":        {"SIGID_MATCHING_ACCEPT_THRESHOLD", "140"},
		"cursive strategy": {"SIGID_MATCHING_CURSIVE_STRATEGY", "orb"},
		"canvas":           {"SIGID_CANVAS_WIDTH", "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(env[0], env[1])
			if _, err := load(viper.New(), ""); err == nil {
				t.Fatalf("expected %s=%s to be rejected", env[0], env[1])
			}
		})
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	if _, err := load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected missing config file to fail")
	}
}
