package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.FPS != 30 || cfg.FadeDurationMs != 500 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Chunking.FastChunkMs != 300_000 || cfg.Chunking.HighFidelityChunkMs != 120_000 {
		t.Fatalf("chunk defaults wrong: %+v", cfg.Chunking)
	}
	if cfg.Render.ReadinessTimeoutMs != 1500 {
		t.Fatalf("readiness default wrong: %d", cfg.Render.ReadinessTimeoutMs)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capvid.toml")
	content := `
fps = 60
fade_duration_ms = 250

[chunking]
fast_chunk_ms = 600000
high_fidelity_chunk_ms = 120000

[encoder]
prefer_hardware = false
audio_bitrate = "192k"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.FPS != 60 || cfg.FadeDurationMs != 250 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Chunking.FastChunkMs != 600_000 {
		t.Fatalf("chunking not applied: %+v", cfg.Chunking)
	}
	if cfg.Encoder.PreferHardware || cfg.Encoder.AudioBitrate != "192k" {
		t.Fatalf("encoder not applied: %+v", cfg.Encoder)
	}
	// untouched sections keep their defaults
	if cfg.Render.ReadinessTimeoutMs != 1500 {
		t.Fatalf("readiness default lost: %d", cfg.Render.ReadinessTimeoutMs)
	}
}

func TestLoadMalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capvid.toml")
	if err := os.WriteFile(path, []byte("fps = [broken"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CAPVID_FPS", "24")
	t.Setenv("CAPVID_FADE_MS", "100")
	t.Setenv("CAPVID_SCRATCH_DIR", "/tmp/capvid-test")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.FPS != 24 || cfg.FadeDurationMs != 100 || cfg.ScratchDir != "/tmp/capvid-test" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.FPS = 0
	if err := cfg.validate(); err == nil {
		t.Error("zero fps accepted")
	}

	cfg = Default()
	cfg.FadeDurationMs = -1
	if err := cfg.validate(); err == nil {
		t.Error("negative fade accepted")
	}

	cfg = Default()
	cfg.Chunking.FastChunkMs = 0
	if err := cfg.validate(); err == nil {
		t.Error("zero chunk target accepted")
	}
}
