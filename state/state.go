// Package state holds the conversation aggregate: per-field append-only
// attempt history, the message transcript, and the sticky escalation record.
package state

import (
	"time"

	"github.com/tbxark/intakeagent/types"
)

// ValidationStatus marks the outcome of validating one attempt.
type ValidationStatus string

const (
	StatusValid   ValidationStatus = "valid"
	StatusInvalid ValidationStatus = "invalid"
	StatusPending ValidationStatus = "pending"
)

// AttemptSource records how an attempt entered the conversation.
type AttemptSource string

const (
	SourceUserProvided AttemptSource = "user_provided"
	SourceCorrected    AttemptSource = "corrected"
)

// Role of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// FieldAttempt is one user-supplied or corrected value for a field.
// Attempts are immutable once created; a field's attempts form an
// append-only sequence in order of receipt.
type FieldAttempt struct {
	Value            string           `json:"value"`
	Timestamp        time.Time        `json:"timestamp"`
	Confidence       float64          `json:"confidence"`
	ValidationStatus ValidationStatus `json:"validation_status"`
	Source           AttemptSource    `json:"source"`
}

// FieldState is one field's attempt history. The current value is derived
// from the attempts rather than stored, so it can never drift out of sync.
type FieldState struct {
	FieldName string         `json:"field_name"`
	Attempts  []FieldAttempt `json:"attempts,omitempty"`
}

// CurrentValue returns the value of the most recent valid attempt. A later
// valid attempt always supersedes an earlier one; invalid attempts never
// clear a previously valid value.
func (f *FieldState) CurrentValue() (string, bool) {
	for i := len(f.Attempts) - 1; i >= 0; i-- {
		if f.Attempts[i].ValidationStatus == StatusValid {
			return f.Attempts[i].Value, true
		}
	}
	return "", false
}

// IsCollected reports whether the field has at least one valid attempt.
func (f *FieldState) IsCollected() bool {
	_, ok := f.CurrentValue()
	return ok
}

// Message is one transcript entry. The transcript is append-only.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// EscalationState is the terminal handoff payload. Once set on a
// conversation it is never cleared or replaced.
type EscalationState struct {
	Reason         string            `json:"reason"`
	Fields         map[string]string `json:"fields"`
	HistorySummary string            `json:"history_summary,omitempty"`
}

// Escalation reason codes.
const (
	ReasonAllFieldsCollected = "all_fields_collected"
	ReasonUserRequest        = "user_request"
)

// Conversation is the aggregate root for one session. It is owned by a
// single HandleMessage call at a time and persisted in full after every
// turn.
type Conversation struct {
	SessionID    string                 `json:"session_id"`
	Phase        types.Phase            `json:"phase"`
	Messages     []Message              `json:"messages"`
	Fields       map[string]*FieldState `json:"fields"`
	CurrentField string                 `json:"current_field,omitempty"`
	Escalation   *EscalationState       `json:"escalation,omitempty"`
}

// NewConversation creates a fresh conversation in the greeting phase.
func NewConversation(sessionID string) *Conversation {
	return &Conversation{
		SessionID: sessionID,
		Phase:     types.PhaseGreeting,
		Fields:    make(map[string]*FieldState),
	}
}

// EnsureField returns the FieldState for name, creating an empty one if the
// conversation has not seen the field before.
func (c *Conversation) EnsureField(name string) *FieldState {
	if c.Fields == nil {
		c.Fields = make(map[string]*FieldState)
	}
	fs, ok := c.Fields[name]
	if !ok {
		fs = &FieldState{FieldName: name}
		c.Fields[name] = fs
	}
	return fs
}

// AppendMessage appends one transcript entry.
func (c *Conversation) AppendMessage(role Role, content string) {
	c.Messages = append(c.Messages, Message{Role: role, Content: content})
}

// LastUserMessage returns the content of the most recent user message.
func (c *Conversation) LastUserMessage() string {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleUser {
			return c.Messages[i].Content
		}
	}
	return ""
}

// CollectedValues returns field name -> current value for every collected
// field.
func (c *Conversation) CollectedValues() map[string]string {
	out := make(map[string]string)
	for name, fs := range c.Fields {
		if v, ok := fs.CurrentValue(); ok {
			out[name] = v
		}
	}
	return out
}

// Clone returns a deep copy. Stores hand out clones so callers never alias
// persisted state.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := &Conversation{
		SessionID:    c.SessionID,
		Phase:        c.Phase,
		CurrentField: c.CurrentField,
	}
	if c.Messages != nil {
		out.Messages = make([]Message, len(c.Messages))
		copy(out.Messages, c.Messages)
	}
	out.Fields = make(map[string]*FieldState, len(c.Fields))
	for name, fs := range c.Fields {
		cp := &FieldState{FieldName: fs.FieldName}
		if fs.Attempts != nil {
			cp.Attempts = make([]FieldAttempt, len(fs.Attempts))
			copy(cp.Attempts, fs.Attempts)
		}
		out.Fields[name] = cp
	}
	if c.Escalation != nil {
		esc := &EscalationState{
			Reason:         c.Escalation.Reason,
			HistorySummary: c.Escalation.HistorySummary,
			Fields:         make(map[string]string, len(c.Escalation.Fields)),
		}
		for k, v := range c.Escalation.Fields {
			esc.Fields[k] = v
		}
		out.Escalation = esc
	}
	return out
}
