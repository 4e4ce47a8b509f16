package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds the export pipeline settings. Values come from defaults,
// then an optional capvid.toml, then CAPVID_* environment overrides.
type Config struct {
	FPS            int    `toml:"fps"`
	FadeDurationMs int64  `toml:"fade_duration_ms"`
	ScratchDir     string `toml:"scratch_dir"`

	Chunking ChunkingConfig `toml:"chunking"`
	Render   RenderConfig   `toml:"render"`
	Encoder  EncoderConfig  `toml:"encoder"`
}

// ChunkingConfig bounds per-chunk duration. Chunking triggers when the
// export duration exceeds the active mode's target.
type ChunkingConfig struct {
	FastChunkMs         int64 `toml:"fast_chunk_ms"`
	HighFidelityChunkMs int64 `toml:"high_fidelity_chunk_ms"`
}

type RenderConfig struct {
	ReadinessTimeoutMs int64 `toml:"readiness_timeout_ms"`
}

type EncoderConfig struct {
	PreferHardware bool   `toml:"prefer_hardware"`
	AudioBitrate   string `toml:"audio_bitrate"`
	BackgroundBlur bool   `toml:"background_blur"`
}

func Default() Config {
	return Config{
		FPS:            30,
		FadeDurationMs: 500,
		ScratchDir:     "",
		Chunking: ChunkingConfig{
			FastChunkMs:         300_000,
			HighFidelityChunkMs: 120_000,
		},
		Render: RenderConfig{
			ReadinessTimeoutMs: 1500,
		},
		Encoder: EncoderConfig{
			PreferHardware: true,
			AudioBitrate:   "320k",
		},
	}
}

// reads the config file at path, if present, over the defaults. A missing
// file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = "capvid.toml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(&cfg)
			return cfg, cfg.validate()
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", filepath.Base(path), err)
	}

	applyEnv(&cfg)
	return cfg, cfg.validate()
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CAPVID_FPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FPS = n
		}
	}
	if v := os.Getenv("CAPVID_SCRATCH_DIR"); v != "" {
		cfg.ScratchDir = v
	}
	if v := os.Getenv("CAPVID_FADE_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.FadeDurationMs = n
		}
	}
}

func (c Config) validate() error {
	if c.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %d", c.FPS)
	}
	if c.FadeDurationMs < 0 {
		return fmt.Errorf("fade_duration_ms must not be negative, got %d", c.FadeDurationMs)
	}
	if c.Chunking.FastChunkMs <= 0 || c.Chunking.HighFidelityChunkMs <= 0 {
		return fmt.Errorf("chunk targets must be positive")
	}
	if c.Render.ReadinessTimeoutMs <= 0 {
		return fmt.Errorf("readiness_timeout_ms must be positive")
	}
	return nil
}
