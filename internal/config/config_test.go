package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Source != "/dev/video0" {
		t.Errorf("Source = %q, want /dev/video0", cfg.Source)
	}
	if cfg.ConfThreshold != 0.5 {
		t.Errorf("ConfThreshold = %v, want 0.5", cfg.ConfThreshold)
	}
	if cfg.FPS != 10 {
		t.Errorf("FPS = %d, want 10", cfg.FPS)
	}
	if cfg.AuthEnabled {
		t.Error("auth enabled by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("VIDEO_SOURCE", "rtsp://cam.local/stream")
	t.Setenv("CONF_THRESHOLD", "0.7")
	t.Setenv("AUTH_ENABLED", "true")

	cfg := Load()
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.Source != "rtsp://cam.local/stream" {
		t.Errorf("Source = %q, want the rtsp URL", cfg.Source)
	}
	if cfg.ConfThreshold != 0.7 {
		t.Errorf("ConfThreshold = %v, want 0.7", cfg.ConfThreshold)
	}
	if !cfg.AuthEnabled {
		t.Error("AUTH_ENABLED=true not honored")
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	t.Setenv("CONF_THRESHOLD", "high")

	cfg := Load()
	if cfg.Port != 8080 {
		t.Errorf("malformed PORT changed default: %d", cfg.Port)
	}
	if cfg.ConfThreshold != 0.5 {
		t.Errorf("malformed CONF_THRESHOLD changed default: %v", cfg.ConfThreshold)
	}
}
