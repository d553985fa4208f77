// Package escalate decides when a conversation is handed off to a human.
package escalate

import (
	"fmt"
	"strings"

	"github.com/tbxark/intakeagent/config"
	"github.com/tbxark/intakeagent/state"
)

// Evaluate returns the escalation payload for this turn, or nil when no
// escalation condition holds. Pure function, no side effects. An explicit
// trigger phrase always wins over the all-fields condition, so a user who
// asks for a human mid-collection is escalated immediately.
func Evaluate(conv *state.Conversation, cfg *config.AgentConfig, loweredUserText string) *state.EscalationState {
	policy := cfg.Escalation
	if !policy.Enabled {
		return nil
	}

	collected := conv.CollectedValues()

	if loweredUserText != "" {
		for _, phrase := range policy.TriggerPhrases {
			if phrase == "" {
				continue
			}
			if strings.Contains(loweredUserText, strings.ToLower(phrase)) {
				return &state.EscalationState{
					Reason: state.ReasonUserRequest,
					Fields: collected,
				}
			}
		}
	}

	if policy.AfterAllFields && allRequiredCollected(conv, cfg) {
		reason := policy.Reason
		if reason == "" {
			reason = state.ReasonAllFieldsCollected
		}
		return &state.EscalationState{
			Reason:         reason,
			Fields:         collected,
			HistorySummary: historySummary(conv, cfg),
		}
	}

	return nil
}

// allRequiredCollected requires at least one configured field to exist;
// with fields configured, an empty required subset is vacuously collected.
func allRequiredCollected(conv *state.Conversation, cfg *config.AgentConfig) bool {
	if len(cfg.Fields) == 0 {
		return false
	}
	for _, f := range cfg.Fields {
		if !f.Required {
			continue
		}
		fs, ok := conv.Fields[f.Name]
		if !ok || !fs.IsCollected() {
			return false
		}
	}
	return true
}

// historySummary lists attempt counts per field in config order, e.g.
// "email: 2 attempts; name: 1 attempt". Fields with no attempts are
// omitted.
func historySummary(conv *state.Conversation, cfg *config.AgentConfig) string {
	var parts []string
	for _, f := range cfg.Fields {
		fs, ok := conv.Fields[f.Name]
		if !ok {
			continue
		}
		switch n := len(fs.Attempts); {
		case n > 1:
			parts = append(parts, fmt.Sprintf("%s: %d attempts", f.Name, n))
		case n == 1:
			parts = append(parts, fmt.Sprintf("%s: 1 attempt", f.Name))
		}
	}
	return strings.Join(parts, "; ")
}
