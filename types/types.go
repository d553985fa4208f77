package types

// Phase is the conversation's macro-state.
type Phase string

const (
	PhaseGreeting   Phase = "greeting"
	PhaseCollecting Phase = "collecting"
	PhaseEscalated  Phase = "escalated"
	PhaseCompleted  Phase = "completed"
)

// Terminal reports whether the phase admits no further transitions.
func (p Phase) Terminal() bool {
	return p == PhaseEscalated || p == PhaseCompleted
}

// FieldType selects the validator applied to values collected for a field.
type FieldType string

const (
	FieldTypeEmail   FieldType = "email"
	FieldTypePhone   FieldType = "phone"
	FieldTypeName    FieldType = "name"
	FieldTypeAddress FieldType = "address"
	FieldTypeCustom  FieldType = "custom"
)
