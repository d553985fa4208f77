// Package agent contains the conversation orchestrator: the per-turn
// algorithm that combines the oracle's analysis with validation, escalation
// evaluation, and the phase transition into a new persisted state and a
// reply.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tbxark/intakeagent/analysis"
	"github.com/tbxark/intakeagent/config"
	"github.com/tbxark/intakeagent/escalate"
	"github.com/tbxark/intakeagent/oracle"
	"github.com/tbxark/intakeagent/prompt"
	"github.com/tbxark/intakeagent/state"
	"github.com/tbxark/intakeagent/types"
	"github.com/tbxark/intakeagent/validators"
)

// Agent owns one configuration, one oracle, and one state store, and
// processes one turn at a time per session. It assumes at most one in-flight
// HandleMessage per session id; callers that race must serialize.
type Agent struct {
	cfg    *config.AgentConfig
	oracle oracle.Client
	store  state.Store
}

func New(cfg *config.AgentConfig, client oracle.Client, store state.Store) *Agent {
	return &Agent{cfg: cfg, oracle: client, store: store}
}

// StartSession initializes state for a new session, appends and persists
// the configured greeting, and returns it. Restarting an existing session
// is idempotent: the greeting is returned without touching state.
func (a *Agent) StartSession(ctx context.Context, sessionID string) (string, error) {
	conv, err := a.store.Get(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("load state: %w", err)
	}
	greeting := a.cfg.Personality.Greeting
	if conv != nil {
		return greeting, nil
	}

	conv = a.newConversation(sessionID)
	conv.AppendMessage(state.RoleAssistant, greeting)
	if err := a.store.Set(ctx, sessionID, conv); err != nil {
		return "", fmt.Errorf("persist state: %w", err)
	}
	return greeting, nil
}

// HandleMessage processes one user turn: load state, consult the oracle,
// apply the analysis, evaluate escalation, advance the phase, and persist
// the full state. Malformed oracle output and unknown field references are
// absorbed; only transport and storage failures surface as errors, and no
// partial state is persisted before one.
func (a *Agent) HandleMessage(ctx context.Context, sessionID, userText string) (string, error) {
	conv, err := a.store.Get(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("load state: %w", err)
	}
	if conv == nil {
		conv = a.newConversation(sessionID)
		if err := a.store.Set(ctx, sessionID, conv); err != nil {
			return "", fmt.Errorf("persist state: %w", err)
		}
	}

	conv.AppendMessage(state.RoleUser, userText)
	// Config may have grown fields since the session began.
	a.ensureFields(conv)

	systemPrompt := prompt.BuildSystemPrompt(a.cfg, conv)
	raw, err := a.oracle.Complete(ctx, systemPrompt, prompt.UserTurn(conv))
	if err != nil {
		return "", fmt.Errorf("oracle completion: %w", err)
	}
	turn := analysis.Parse(raw)
	slog.Debug("parsed turn analysis",
		"session", sessionID,
		"intent", turn.Intent,
		"confidence", turn.Confidence,
	)

	responseText := turn.ResponseText
	switch {
	case turn.Intent == analysis.IntentFieldResponse && turn.ExtractedValue != nil:
		responseText = a.applyFieldResponse(conv, turn)
	case turn.Intent == analysis.IntentCorrection && turn.ExtractedValue != nil:
		a.applyCorrection(conv, turn)
	}
	// escalation_request mutates no fields; the evaluator below covers it
	// uniformly via the trigger phrases.

	if conv.Escalation == nil {
		conv.Escalation = escalate.Evaluate(conv, a.cfg, strings.ToLower(userText))
		if conv.Escalation != nil {
			slog.Debug("escalation recorded", "session", sessionID, "reason", conv.Escalation.Reason)
		}
	}

	conv.Phase = state.NextPhase(conv.Phase, conv, a.cfg.RequiredFieldNames())

	// The deterministic handoff message takes precedence over whatever the
	// oracle wanted to say.
	if conv.Escalation != nil && conv.Phase == types.PhaseEscalated {
		responseText = a.cfg.Personality.Closing
	}

	conv.CurrentField = a.nextFieldToCollect(conv)
	conv.AppendMessage(state.RoleAssistant, responseText)
	if err := a.store.Set(ctx, sessionID, conv); err != nil {
		return "", fmt.Errorf("persist state: %w", err)
	}
	return responseText, nil
}

// State returns the current conversation for a session, or nil if the
// session is unknown.
func (a *Agent) State(ctx context.Context, sessionID string) (*state.Conversation, error) {
	return a.store.Get(ctx, sessionID)
}

// applyFieldResponse records a new attempt for the target field, unless the
// field is already collected, in which case nothing is appended and a
// reminder naming the next field is synthesized when the oracle left no
// reply text. Returns the reply text to use for this turn.
func (a *Agent) applyFieldResponse(conv *state.Conversation, turn analysis.TurnAnalysis) string {
	responseText := turn.ResponseText
	fieldName := resolveField(turn.FieldName, conv.CurrentField)
	if fieldName == "" {
		return responseText
	}
	fs, known := conv.Fields[fieldName]
	fieldCfg := a.cfg.Field(fieldName)
	if !known || fieldCfg == nil {
		slog.Debug("ignoring value for unknown field", "field", fieldName)
		return responseText
	}

	if fs.IsCollected() {
		if responseText == "" {
			next := a.nextFieldToCollect(conv)
			if next != "" && next != fieldName {
				if nextCfg := a.cfg.Field(next); nextCfg != nil {
					responseText = fmt.Sprintf("I already have your %s. %s", fieldName, nextCfg.Prompt)
				}
			}
		}
		return responseText
	}

	appendAttempt(fs, *turn.ExtractedValue, turn.Confidence, fieldCfg, state.SourceUserProvided)
	return responseText
}

// applyCorrection always appends, even when the field already holds a valid
// value. History is never mutated; a later valid attempt simply wins.
func (a *Agent) applyCorrection(conv *state.Conversation, turn analysis.TurnAnalysis) {
	fieldName := resolveField(turn.FieldName, conv.CurrentField)
	if fieldName == "" {
		return
	}
	fs, known := conv.Fields[fieldName]
	fieldCfg := a.cfg.Field(fieldName)
	if !known || fieldCfg == nil {
		slog.Debug("ignoring correction for unknown field", "field", fieldName)
		return
	}
	appendAttempt(fs, *turn.ExtractedValue, turn.Confidence, fieldCfg, state.SourceCorrected)
}

func appendAttempt(fs *state.FieldState, value string, confidence float64, fieldCfg *config.FieldConfig, source state.AttemptSource) {
	ok, _ := validators.Validate(value, fieldCfg.Type, fieldCfg.ValidationRegex)
	status := state.StatusInvalid
	if ok {
		status = state.StatusValid
	}
	fs.Attempts = append(fs.Attempts, state.FieldAttempt{
		Value:            value,
		Timestamp:        time.Now().UTC(),
		Confidence:       confidence,
		ValidationStatus: status,
		Source:           source,
	})
}

// resolveField prefers the analysis's field name over the conversation's
// current field.
func resolveField(analysisField *string, currentField string) string {
	if analysisField != nil && *analysisField != "" {
		return *analysisField
	}
	return currentField
}

func (a *Agent) newConversation(sessionID string) *state.Conversation {
	conv := state.NewConversation(sessionID)
	a.ensureFields(conv)
	conv.CurrentField = a.nextFieldToCollect(conv)
	return conv
}

func (a *Agent) ensureFields(conv *state.Conversation) {
	for _, f := range a.cfg.Fields {
		conv.EnsureField(f.Name)
	}
}

// nextFieldToCollect returns the first configured field without a valid
// value, or "" once everything is collected.
func (a *Agent) nextFieldToCollect(conv *state.Conversation) string {
	for _, f := range a.cfg.Fields {
		fs, ok := conv.Fields[f.Name]
		if !ok || !fs.IsCollected() {
			return f.Name
		}
	}
	return ""
}
