package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTPAddr != ":8081" {
		t.Errorf("expected :8081, got %s", cfg.HTTPAddr)
	}
	if cfg.MaxUploadBytes != 25*1024*1024 {
		t.Errorf("expected default upload cap, got %d", cfg.MaxUploadBytes)
	}
	if cfg.MaxConcurrent != 1 {
		t.Errorf("expected 1 concurrent transcription, got %d", cfg.MaxConcurrent)
	}
	if cfg.FFmpegTimeout != 45*time.Second {
		t.Errorf("expected 45s ffmpeg timeout, got %s", cfg.FFmpegTimeout)
	}
	if cfg.MaxLogPayloadChars != 20000 {
		t.Errorf("expected 20000 payload chars, got %d", cfg.MaxLogPayloadChars)
	}
	if !cfg.LogStoreEnabled {
		t.Error("expected log store enabled by default")
	}
	if cfg.NatsURL != "" {
		t.Errorf("expected NATS disabled by default, got %s", cfg.NatsURL)
	}
	if len(cfg.AllowedPostHosts) != 2 || cfg.AllowedPostHosts[0] != "127.0.0.1" || cfg.AllowedPostHosts[1] != "::1" {
		t.Errorf("expected loopback allow-list, got %v", cfg.AllowedPostHosts)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MAX_UPLOAD_BYTES", "1024")
	t.Setenv("MAX_CONCURRENT_TRANSCRIBES", "4")
	t.Setenv("FFMPEG_TIMEOUT_SECONDS", "10")
	t.Setenv("LOG_STORE_ENABLED", "false")
	t.Setenv("ALLOWED_POST_HOSTS", " 10.0.0.5 , 10.0.0.6 ")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.MaxUploadBytes != 1024 {
		t.Errorf("expected 1024, got %d", cfg.MaxUploadBytes)
	}
	if cfg.MaxConcurrent != 4 {
		t.Errorf("expected 4, got %d", cfg.MaxConcurrent)
	}
	if cfg.FFmpegTimeout != 10*time.Second {
		t.Errorf("expected 10s, got %s", cfg.FFmpegTimeout)
	}
	if cfg.LogStoreEnabled {
		t.Error("expected log store disabled")
	}
	if len(cfg.AllowedPostHosts) != 2 || cfg.AllowedPostHosts[0] != "10.0.0.5" {
		t.Errorf("expected trimmed host list, got %v", cfg.AllowedPostHosts)
	}
}

func TestOriginAllowed(t *testing.T) {
	cfg := &Config{AllowedPostHosts: []string{"127.0.0.1", "::1"}}

	if !cfg.OriginAllowed("127.0.0.1") {
		t.Error("loopback should be allowed")
	}
	if !cfg.OriginAllowed("::1") {
		t.Error("v6 loopback should be allowed")
	}
	if cfg.OriginAllowed("203.0.113.9") {
		t.Error("foreign host should be denied")
	}

	wildcard := &Config{AllowedPostHosts: []string{"*"}}
	if !wildcard.OriginAllowed("203.0.113.9") {
		t.Error("wildcard should allow any host")
	}
}
