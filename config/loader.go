package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML agent config from path, applies defaults, and validates
// it. Invalid configuration never reaches the orchestrator.
func Load(path string) (*AgentConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes and validates a YAML agent config.
func Parse(raw []byte) (*AgentConfig, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("config file is empty")
	}
	cfg := &AgentConfig{
		Name:       "Intake Agent",
		Escalation: DefaultEscalationPolicy(),
		LLMModel:   "gpt-4o-mini",
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Name == "" {
		cfg.Name = "Intake Agent"
	}
	if cfg.LLMModel == "" {
		cfg.LLMModel = "gpt-4o-mini"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
