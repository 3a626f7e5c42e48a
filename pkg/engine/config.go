package engine

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
)

// Config holds the engine host settings.
type Config struct {
	// EnginePath is the path to the engine .wasm module.
	EnginePath string
	// MemoryLimitPages caps engine linear memory in 64 KiB pages.
	MemoryLimitPages uint32
	// CallTimeout bounds one engine action. Zero disables it.
	CallTimeout time.Duration
	// LogLevel names the zerolog level for host output.
	LogLevel string
	// StderrPassthrough copies raw engine stderr to the host process stderr
	// in addition to the leveled log capture.
	StderrPassthrough bool
}

// DefaultConfig returns the settings used when no config file is given.
func DefaultConfig() *Config {
	return &Config{
		MemoryLimitPages: 4096,
		CallTimeout:      5 * time.Minute,
		LogLevel:         "info",
	}
}

// config.toml key mapping.
type fileConfig struct {
	EnginePath        string `toml:"engine_path"`
	MemoryLimitPages  uint32 `toml:"memory_limit_pages"`
	CallTimeoutSecs   int    `toml:"call_timeout_seconds"`
	LogLevel          string `toml:"log_level"`
	StderrPassthrough bool   `toml:"stderr_passthrough"`
}

// LoadConfig reads a TOML file and overlays the keys it defines onto the
// defaults. A relative engine_path resolves against the config file's
// directory.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("load engine config: %w", err)
	}

	if meta.IsDefined("engine_path") {
		p := strings.TrimSpace(raw.EnginePath)
		if p != "" && !filepath.IsAbs(p) {
			p = filepath.Join(filepath.Dir(path), p)
		}
		cfg.EnginePath = p
	}
	if meta.IsDefined("memory_limit_pages") {
		cfg.MemoryLimitPages = raw.MemoryLimitPages
	}
	if meta.IsDefined("call_timeout_seconds") {
		cfg.CallTimeout = time.Duration(raw.CallTimeoutSecs) * time.Second
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("stderr_passthrough") {
		cfg.StderrPassthrough = raw.StderrPassthrough
	}

	if cfg.MemoryLimitPages == 0 {
		return nil, fmt.Errorf("load engine config: memory_limit_pages must be positive")
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("load engine config: log_level %q: %w", cfg.LogLevel, err)
	}
	return cfg, nil
}
