package state

import "github.com/tbxark/intakeagent/types"

// NextPhase is the pure transition function for the conversation lifecycle.
//
//	greeting -> collecting (unconditional)
//	collecting -> escalated | completed | collecting
//	escalated, completed -> terminal self-loops
//
// Escalation takes priority over completion. An unknown phase value passes
// through unchanged.
func NextPhase(phase types.Phase, conv *Conversation, requiredFieldNames []string) types.Phase {
	switch phase {
	case types.PhaseGreeting:
		return types.PhaseCollecting
	case types.PhaseCollecting:
		if conv.Escalation != nil {
			return types.PhaseEscalated
		}
		if allRequiredCollected(conv, requiredFieldNames) {
			return types.PhaseCompleted
		}
		return types.PhaseCollecting
	case types.PhaseEscalated, types.PhaseCompleted:
		return phase
	default:
		return phase
	}
}

// allRequiredCollected reports whether every named field has a valid value.
// Vacuously true for an empty list.
func allRequiredCollected(conv *Conversation, requiredFieldNames []string) bool {
	for _, name := range requiredFieldNames {
		fs, ok := conv.Fields[name]
		if !ok || !fs.IsCollected() {
			return false
		}
	}
	return true
}
