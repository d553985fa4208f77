package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/tbxark/intakeagent/types"
)

// FieldConfig describes one collectible field. Fields are collected in the
// order they appear in AgentConfig.Fields.
type FieldConfig struct {
	Name            string          `yaml:"name" json:"name"`
	Type            types.FieldType `yaml:"type" json:"type"`
	Prompt          string          `yaml:"prompt" json:"prompt"`
	Required        bool            `yaml:"required" json:"required"`
	ValidationRegex string          `yaml:"validation_regex" json:"validation_regex,omitempty"`
}

func (f *FieldConfig) UnmarshalYAML(value *yaml.Node) error {
	type raw FieldConfig
	tmp := raw{Required: true}
	if err := value.Decode(&tmp); err != nil {
		return err
	}
	*f = FieldConfig(tmp)
	return nil
}

// PersonalityConfig controls the agent's tone and fixed messages.
type PersonalityConfig struct {
	Tone      string   `yaml:"tone" json:"tone"`
	Greeting  string   `yaml:"greeting" json:"greeting"`
	Closing   string   `yaml:"closing" json:"closing"`
	Style     string   `yaml:"style" json:"style,omitempty"`
	Formality string   `yaml:"formality" json:"formality,omitempty"`
	UseEmojis bool     `yaml:"use_emojis" json:"use_emojis"`
	EmojiList []string `yaml:"emoji_list" json:"emoji_list,omitempty"`
}

func (p *PersonalityConfig) UnmarshalYAML(value *yaml.Node) error {
	type raw PersonalityConfig
	tmp := raw{
		Tone:    "friendly",
		Closing: "Thank you! We'll be in touch.",
	}
	if err := value.Decode(&tmp); err != nil {
		return err
	}
	*p = PersonalityConfig(tmp)
	return nil
}

// EscalationPolicy controls when the conversation is handed off.
type EscalationPolicy struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	Reason         string   `yaml:"reason" json:"reason,omitempty"`
	AfterAllFields bool     `yaml:"after_all_fields" json:"after_all_fields"`
	TriggerPhrases []string `yaml:"trigger_phrases" json:"trigger_phrases,omitempty"`
}

func (e *EscalationPolicy) UnmarshalYAML(value *yaml.Node) error {
	type raw EscalationPolicy
	tmp := raw{Enabled: true, AfterAllFields: true}
	if err := value.Decode(&tmp); err != nil {
		return err
	}
	*e = EscalationPolicy(tmp)
	return nil
}

// DefaultEscalationPolicy returns the policy used when the config omits the
// escalation section entirely.
func DefaultEscalationPolicy() EscalationPolicy {
	return EscalationPolicy{Enabled: true, AfterAllFields: true}
}

// AgentConfig is the full agent configuration, typically loaded from YAML.
// Field order is authoritative for collection order.
type AgentConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Fields      []FieldConfig     `yaml:"fields" json:"fields"`
	Personality PersonalityConfig `yaml:"personality" json:"personality"`
	Escalation  EscalationPolicy  `yaml:"escalation" json:"escalation"`
	LLMBaseURL  string            `yaml:"llm_base_url" json:"llm_base_url,omitempty"`
	LLMModel    string            `yaml:"llm_model" json:"llm_model"`
}

var knownFieldTypes = map[types.FieldType]bool{
	types.FieldTypeEmail:   true,
	types.FieldTypePhone:   true,
	types.FieldTypeName:    true,
	types.FieldTypeAddress: true,
	types.FieldTypeCustom:  true,
}

// Validate checks structural invariants. It is called by Load; callers that
// build configs in code should call it themselves before handing the config
// to an agent.
func (c *AgentConfig) Validate() error {
	if len(c.Fields) == 0 {
		return fmt.Errorf("config must declare at least one field")
	}
	seen := make(map[string]bool, len(c.Fields))
	for i, f := range c.Fields {
		if f.Name == "" {
			return fmt.Errorf("field %d: name is required", i)
		}
		if seen[f.Name] {
			return fmt.Errorf("field %q: duplicate field name", f.Name)
		}
		seen[f.Name] = true
		if !knownFieldTypes[f.Type] {
			return fmt.Errorf("field %q: unknown type %q", f.Name, f.Type)
		}
		if f.Prompt == "" {
			return fmt.Errorf("field %q: prompt is required", f.Name)
		}
		if f.Type == types.FieldTypeCustom && f.ValidationRegex == "" {
			return fmt.Errorf("field %q: custom type requires validation_regex", f.Name)
		}
	}
	if c.Personality.Greeting == "" {
		return fmt.Errorf("personality.greeting is required")
	}
	return nil
}

// RequiredFieldNames returns the names of required fields in config order.
func (c *AgentConfig) RequiredFieldNames() []string {
	names := make([]string, 0, len(c.Fields))
	for _, f := range c.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// Field returns the config entry for name, or nil if no such field exists.
func (c *AgentConfig) Field(name string) *FieldConfig {
	for i := range c.Fields {
		if c.Fields[i].Name == name {
			return &c.Fields[i]
		}
	}
	return nil
}
