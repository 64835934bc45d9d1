package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/devprofile/internal/companion"
)

// devprofiled config.toml key mapping to helper runtime settings.
type fileConfig struct {
	Name             string `toml:"name"`
	ConfigPath       string `toml:"config_path"`
	SocketPath       string `toml:"socket_path"`
	SocketMode       string `toml:"socket_mode"`
	MaxDocumentBytes int64  `toml:"max_document_bytes"`
	MetricsAddr      string `toml:"metrics_addr"`
}

// devprofiled loader for TOML config with default overlay.
func loadServiceConfig(path string) (companion.ServiceConfig, error) {
	cfg := companion.DefaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return companion.ServiceConfig{}, fmt.Errorf("load devprofiled config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return companion.ServiceConfig{}, fmt.Errorf("load devprofiled config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("config_path") {
		cfg.ConfigPath = strings.TrimSpace(raw.ConfigPath)
	}
	if meta.IsDefined("socket_path") {
		cfg.SocketPath = strings.TrimSpace(raw.SocketPath)
	}
	if meta.IsDefined("socket_mode") {
		mode, err := parseSocketMode(raw.SocketMode)
		if err != nil {
			return companion.ServiceConfig{}, fmt.Errorf("load devprofiled config: %w", err)
		}
		cfg.SocketMode = mode
	}
	if meta.IsDefined("max_document_bytes") {
		if raw.MaxDocumentBytes <= 0 || raw.MaxDocumentBytes > int64(^uint32(0)>>1) {
			return companion.ServiceConfig{}, fmt.Errorf(
				"load devprofiled config: max_document_bytes %d out of range",
				raw.MaxDocumentBytes,
			)
		}
		cfg.Limits.MaxDocumentBytes = int32(raw.MaxDocumentBytes)
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}

	if cfg.ConfigPath == "" {
		return companion.ServiceConfig{}, fmt.Errorf("load devprofiled config: config_path is required")
	}
	if cfg.SocketPath == "" {
		return companion.ServiceConfig{}, fmt.Errorf("load devprofiled config: socket_path is required")
	}
	return cfg, nil
}

func parseSocketMode(raw string) (os.FileMode, error) {
	mode, err := strconv.ParseUint(strings.TrimSpace(raw), 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid socket_mode %q: %w", raw, err)
	}
	if mode == 0 || mode > 0o777 {
		return 0, fmt.Errorf("invalid socket_mode %q", raw)
	}
	return os.FileMode(mode), nil
}
