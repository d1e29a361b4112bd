package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LLMFallbackConfig controls the optional LLM-fallback collaborator (§4.8).
type LLMFallbackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Model      string `yaml:"model"`
	SocketPath string `yaml:"socket_path"`
}

// GlobalConfig is the runner-wide configuration document (§6).
type GlobalConfig struct {
	LogDirectory            string            `yaml:"log_directory"`
	SubprocessTimeoutSeconds int              `yaml:"subprocess_timeout_seconds"`
	VerboseLogging          bool              `yaml:"verbose_logging"`
	ShowErrors              bool              `yaml:"show_errors"`
	LLMFallback             LLMFallbackConfig `yaml:"llm_fallback"`
}

// defaultSubprocessTimeoutSeconds is used when the document omits the field
// or sets it to zero.
const defaultSubprocessTimeoutSeconds = 10

// LoadGlobalConfig reads the global-config YAML document. A missing file
// yields permissive defaults: no verbose logging, a 10s subprocess timeout,
// logs under "./logs".
func LoadGlobalConfig(path string) (*GlobalConfig, error) {
	cfg := &GlobalConfig{
		LogDirectory:             "logs",
		SubprocessTimeoutSeconds: defaultSubprocessTimeoutSeconds,
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: reading global config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing global config %s: %w", path, err)
	}
	if cfg.SubprocessTimeoutSeconds <= 0 {
		cfg.SubprocessTimeoutSeconds = defaultSubprocessTimeoutSeconds
	}
	if cfg.LogDirectory == "" {
		cfg.LogDirectory = "logs"
	}
	return cfg, nil
}
