package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbxark/intakeagent/analysis"
	"github.com/tbxark/intakeagent/config"
	"github.com/tbxark/intakeagent/oracle"
	"github.com/tbxark/intakeagent/state"
	"github.com/tbxark/intakeagent/types"
)

func testConfig() *config.AgentConfig {
	return &config.AgentConfig{
		Name: "TestAgent",
		Fields: []config.FieldConfig{
			{Name: "email", Type: types.FieldTypeEmail, Prompt: "Your email?", Required: true},
			{Name: "name", Type: types.FieldTypeName, Prompt: "Your name?", Required: true},
		},
		Personality: config.PersonalityConfig{
			Tone:     "friendly",
			Greeting: "Hi! I need a couple of details.",
			Closing:  "Thanks!",
		},
		Escalation: config.EscalationPolicy{
			Enabled:        true,
			AfterAllFields: true,
			TriggerPhrases: []string{"speak to a human"},
		},
	}
}

func newTestAgent(cfg *config.AgentConfig, responses ...string) (*Agent, *state.MemoryStore) {
	store := state.NewMemoryStore()
	return New(cfg, oracle.NewScripted(responses...), store), store
}

func TestStartSession(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	a, store := newTestAgent(cfg)

	greeting, err := a.StartSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, cfg.Personality.Greeting, greeting)

	conv, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, types.PhaseGreeting, conv.Phase)
	assert.Equal(t, "email", conv.CurrentField)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, state.RoleAssistant, conv.Messages[0].Role)
	assert.Equal(t, greeting, conv.Messages[0].Content)
	assert.Contains(t, conv.Fields, "email")
	assert.Contains(t, conv.Fields, "name")
}

func TestStartSessionIdempotent(t *testing.T) {
	ctx := context.Background()
	a, store := newTestAgent(testConfig())

	first, err := a.StartSession(ctx, "s1")
	require.NoError(t, err)
	second, err := a.StartSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	conv, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 1, "restart must not append another greeting")
}

func TestFullCollectionFlow(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	a, store := newTestAgent(cfg,
		`{"intent": "field_response", "response_text": "Got it! What's your name?", "extracted_value": "alice@example.com", "confidence": 0.95, "field_name": "email"}`,
		`{"intent": "field_response", "response_text": "Perfect, thanks Alice!", "extracted_value": "Alice", "confidence": 0.9, "field_name": "name"}`,
	)

	_, err := a.StartSession(ctx, "s1")
	require.NoError(t, err)

	// Turn 1: valid email collected, conversation moves on to name.
	reply, err := a.HandleMessage(ctx, "s1", "my email is alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Got it! What's your name?", reply)

	conv, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, types.PhaseCollecting, conv.Phase)
	assert.Equal(t, "name", conv.CurrentField)
	assert.Nil(t, conv.Escalation)
	v, ok := conv.Fields["email"].CurrentValue()
	require.True(t, ok)
	assert.Equal(t, "alice@example.com", v)

	// Turn 2: both required fields collected; escalation with the default
	// reason, phase escalated, and the deterministic closing as the reply.
	reply, err = a.HandleMessage(ctx, "s1", "Alice")
	require.NoError(t, err)
	assert.Equal(t, cfg.Personality.Closing, reply)

	conv, err = store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, types.PhaseEscalated, conv.Phase)
	require.NotNil(t, conv.Escalation)
	assert.Equal(t, state.ReasonAllFieldsCollected, conv.Escalation.Reason)
	assert.Equal(t, map[string]string{"email": "alice@example.com", "name": "Alice"}, conv.Escalation.Fields)
	assert.Equal(t, "", conv.CurrentField)
}

func TestInvalidValueRecordedAndCollectionContinues(t *testing.T) {
	ctx := context.Background()
	a, store := newTestAgent(testConfig(),
		`{"intent": "field_response", "response_text": "Hmm, that doesn't look right.", "extracted_value": "bad@", "confidence": 0.6, "field_name": "email"}`,
	)

	_, err := a.StartSession(ctx, "s1")
	require.NoError(t, err)

	reply, err := a.HandleMessage(ctx, "s1", "bad@")
	require.NoError(t, err)
	assert.Equal(t, "Hmm, that doesn't look right.", reply)

	conv, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, conv.Fields["email"].Attempts, 1)
	attempt := conv.Fields["email"].Attempts[0]
	assert.Equal(t, state.StatusInvalid, attempt.ValidationStatus)
	assert.Equal(t, state.SourceUserProvided, attempt.Source)
	assert.False(t, conv.Fields["email"].IsCollected())
	assert.Equal(t, "email", conv.CurrentField)
	assert.Equal(t, types.PhaseCollecting, conv.Phase)
}

func TestCorrectionAlwaysAppends(t *testing.T) {
	ctx := context.Background()
	a, store := newTestAgent(testConfig(),
		`{"intent": "field_response", "response_text": "Got it.", "extracted_value": "alice@example.com", "confidence": 0.95, "field_name": "email"}`,
		`{"intent": "correction", "response_text": "Let me fix that.", "extracted_value": "bad@", "confidence": 0.8, "field_name": "email"}`,
	)

	_, err := a.StartSession(ctx, "s1")
	require.NoError(t, err)
	_, err = a.HandleMessage(ctx, "s1", "alice@example.com")
	require.NoError(t, err)

	// Invalid correction appends but the prior valid value survives.
	_, err = a.HandleMessage(ctx, "s1", "no wait, it's bad@")
	require.NoError(t, err)

	conv, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, conv.Fields["email"].Attempts, 2)
	second := conv.Fields["email"].Attempts[1]
	assert.Equal(t, state.StatusInvalid, second.ValidationStatus)
	assert.Equal(t, state.SourceCorrected, second.Source)

	v, ok := conv.Fields["email"].CurrentValue()
	require.True(t, ok)
	assert.Equal(t, "alice@example.com", v)
}

func TestValidCorrectionSupersedes(t *testing.T) {
	ctx := context.Background()
	a, store := newTestAgent(testConfig(),
		`{"intent": "field_response", "response_text": "Got it.", "extracted_value": "alice@example.com", "confidence": 0.95, "field_name": "email"}`,
		`{"intent": "correction", "response_text": "Updated!", "extracted_value": "alice@work.example.com", "confidence": 0.9, "field_name": "email"}`,
	)

	_, err := a.StartSession(ctx, "s1")
	require.NoError(t, err)
	_, err = a.HandleMessage(ctx, "s1", "alice@example.com")
	require.NoError(t, err)
	_, err = a.HandleMessage(ctx, "s1", "actually it's alice@work.example.com")
	require.NoError(t, err)

	conv, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	v, ok := conv.Fields["email"].CurrentValue()
	require.True(t, ok)
	assert.Equal(t, "alice@work.example.com", v)
}

func TestAlreadyCollectedFieldResponseDoesNotAppend(t *testing.T) {
	ctx := context.Background()
	a, store := newTestAgent(testConfig(),
		`{"intent": "field_response", "response_text": "Got it.", "extracted_value": "alice@example.com", "confidence": 0.95, "field_name": "email"}`,
		`{"intent": "field_response", "response_text": "", "extracted_value": "other@example.com", "confidence": 0.9, "field_name": "email"}`,
	)

	_, err := a.StartSession(ctx, "s1")
	require.NoError(t, err)
	_, err = a.HandleMessage(ctx, "s1", "alice@example.com")
	require.NoError(t, err)

	// Re-supplying an already-collected field appends nothing; with no
	// oracle text, a reminder naming the next field's prompt is synthesized.
	reply, err := a.HandleMessage(ctx, "s1", "other@example.com")
	require.NoError(t, err)
	assert.Equal(t, "I already have your email. Your name?", reply)

	conv, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, conv.Fields["email"].Attempts, 1)
	v, _ := conv.Fields["email"].CurrentValue()
	assert.Equal(t, "alice@example.com", v)
}

func TestAlreadyCollectedKeepsOracleText(t *testing.T) {
	ctx := context.Background()
	a, store := newTestAgent(testConfig(),
		`{"intent": "field_response", "response_text": "Got it.", "extracted_value": "alice@example.com", "confidence": 0.95, "field_name": "email"}`,
		`{"intent": "field_response", "response_text": "I have that one already - what's your name?", "extracted_value": "other@example.com", "confidence": 0.9, "field_name": "email"}`,
	)

	_, err := a.StartSession(ctx, "s1")
	require.NoError(t, err)
	_, err = a.HandleMessage(ctx, "s1", "alice@example.com")
	require.NoError(t, err)

	reply, err := a.HandleMessage(ctx, "s1", "other@example.com")
	require.NoError(t, err)
	assert.Equal(t, "I have that one already - what's your name?", reply)

	conv, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, conv.Fields["email"].Attempts, 1)
}

func TestUnknownFieldIsNoop(t *testing.T) {
	ctx := context.Background()
	a, store := newTestAgent(testConfig(),
		`{"intent": "field_response", "response_text": "Noted.", "extracted_value": "something", "confidence": 0.9, "field_name": "favorite_color"}`,
	)

	_, err := a.StartSession(ctx, "s1")
	require.NoError(t, err)

	reply, err := a.HandleMessage(ctx, "s1", "my favorite color is blue")
	require.NoError(t, err)
	assert.Equal(t, "Noted.", reply)

	conv, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, conv.Fields["email"].Attempts)
	assert.Empty(t, conv.Fields["name"].Attempts)
	assert.NotContains(t, conv.Fields, "favorite_color")
}

func TestMalformedOracleReplyNeverFailsTheTurn(t *testing.T) {
	ctx := context.Background()
	a, store := newTestAgent(testConfig(),
		"Sorry, I can only respond in prose today.",
	)

	_, err := a.StartSession(ctx, "s1")
	require.NoError(t, err)

	reply, err := a.HandleMessage(ctx, "s1", "my email is alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Sorry, I can only respond in prose today.", reply)

	conv, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, conv.Fields["email"].Attempts)
	// greeting + user + assistant: the turn still completed and persisted.
	assert.Len(t, conv.Messages, 3)
}

func TestTriggerPhraseEscalation(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	a, store := newTestAgent(cfg,
		`{"intent": "escalation_request", "response_text": "Of course, connecting you.", "confidence": 0.9}`,
		`{"intent": "off_topic", "response_text": "One moment.", "confidence": 0.5}`,
	)

	_, err := a.StartSession(ctx, "s1")
	require.NoError(t, err)

	// Escalation is recorded on the first turn; the phase machine still
	// passes through collecting before landing on escalated.
	reply, err := a.HandleMessage(ctx, "s1", "I want to SPEAK TO A HUMAN")
	require.NoError(t, err)
	assert.Equal(t, "Of course, connecting you.", reply)

	conv, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, conv.Escalation)
	assert.Equal(t, state.ReasonUserRequest, conv.Escalation.Reason)
	assert.Equal(t, types.PhaseCollecting, conv.Phase)

	reply, err = a.HandleMessage(ctx, "s1", "hello?")
	require.NoError(t, err)
	assert.Equal(t, cfg.Personality.Closing, reply)

	conv, err = store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, types.PhaseEscalated, conv.Phase)
}

func TestEscalationIsSticky(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	a, store := newTestAgent(cfg,
		`{"intent": "escalation_request", "response_text": "Sure.", "confidence": 0.9}`,
		`{"intent": "field_response", "response_text": "ok", "extracted_value": "alice@example.com", "confidence": 0.9, "field_name": "email"}`,
		`{"intent": "off_topic", "response_text": "hm", "confidence": 0.5}`,
	)

	_, err := a.StartSession(ctx, "s1")
	require.NoError(t, err)
	_, err = a.HandleMessage(ctx, "s1", "speak to a human")
	require.NoError(t, err)

	for _, msg := range []string{"alice@example.com", "anything else"} {
		_, err = a.HandleMessage(ctx, "s1", msg)
		require.NoError(t, err)
	}

	conv, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, conv.Escalation)
	assert.Equal(t, state.ReasonUserRequest, conv.Escalation.Reason, "escalation must never be replaced")
}

func TestLazyInitOnHandleMessage(t *testing.T) {
	ctx := context.Background()
	a, store := newTestAgent(testConfig(),
		`{"intent": "off_topic", "response_text": "Hello! Your email?", "confidence": 0.5}`,
	)

	_, err := a.HandleMessage(ctx, "fresh", "hi")
	require.NoError(t, err)

	conv, err := store.Get(ctx, "fresh")
	require.NoError(t, err)
	require.NotNil(t, conv)
	// No greeting message: just the user turn and the reply.
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, state.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, types.PhaseCollecting, conv.Phase)
}

func TestSessionIsolation(t *testing.T) {
	ctx := context.Background()
	a, store := newTestAgent(testConfig(),
		`{"intent": "field_response", "response_text": "ok", "extracted_value": "alice@example.com", "confidence": 0.9, "field_name": "email"}`,
		`{"intent": "field_response", "response_text": "ok", "extracted_value": "bob@example.com", "confidence": 0.9, "field_name": "email"}`,
	)

	_, err := a.StartSession(ctx, "alice")
	require.NoError(t, err)
	_, err = a.StartSession(ctx, "bob")
	require.NoError(t, err)

	_, err = a.HandleMessage(ctx, "alice", "alice@example.com")
	require.NoError(t, err)
	_, err = a.HandleMessage(ctx, "bob", "bob@example.com")
	require.NoError(t, err)

	aliceConv, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	bobConv, err := store.Get(ctx, "bob")
	require.NoError(t, err)

	aliceEmail, _ := aliceConv.Fields["email"].CurrentValue()
	bobEmail, _ := bobConv.Fields["email"].CurrentValue()
	assert.Equal(t, "alice@example.com", aliceEmail)
	assert.Equal(t, "bob@example.com", bobEmail)
	assert.Len(t, aliceConv.Messages, 3)
	assert.Len(t, bobConv.Messages, 3)
}

func TestValueDroppedWhenNoTargetField(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Escalation.Enabled = false
	a, store := newTestAgent(cfg,
		`{"intent": "field_response", "response_text": "ok", "extracted_value": "alice@example.com", "confidence": 0.9, "field_name": "email"}`,
		`{"intent": "field_response", "response_text": "ok", "extracted_value": "Alice", "confidence": 0.9, "field_name": "name"}`,
		`{"intent": "field_response", "response_text": "noted", "extracted_value": "extra", "confidence": 0.9}`,
	)

	_, err := a.StartSession(ctx, "s1")
	require.NoError(t, err)
	_, err = a.HandleMessage(ctx, "s1", "alice@example.com")
	require.NoError(t, err)
	_, err = a.HandleMessage(ctx, "s1", "Alice")
	require.NoError(t, err)

	conv, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, types.PhaseCompleted, conv.Phase)
	assert.Equal(t, "", conv.CurrentField)

	// A value with no target field and nothing left to collect is dropped.
	reply, err := a.HandleMessage(ctx, "s1", "one more thing: extra")
	require.NoError(t, err)
	assert.Equal(t, "noted", reply)

	conv, err = store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, conv.Fields["email"].Attempts, 1)
	assert.Len(t, conv.Fields["name"].Attempts, 1)
}

type failingOracle struct{}

func (failingOracle) Complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	return "", errors.New("connection refused")
}

func TestOracleTransportErrorLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	a := New(testConfig(), failingOracle{}, store)

	_, err := a.StartSession(ctx, "s1")
	require.NoError(t, err)
	before, err := store.Get(ctx, "s1")
	require.NoError(t, err)

	_, err = a.HandleMessage(ctx, "s1", "my email is alice@example.com")
	require.Error(t, err)

	after, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, len(before.Messages), len(after.Messages), "aborted turn must not partially persist")
	assert.Equal(t, before.Phase, after.Phase)
}

func TestParseFallbackIntegration(t *testing.T) {
	// The analysis fallback shape the orchestrator relies on.
	turn := analysis.Parse("{broken")
	assert.Equal(t, analysis.IntentOffTopic, turn.Intent)
	assert.Nil(t, turn.ExtractedValue)
}
