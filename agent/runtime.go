package agent

import (
	"context"

	"github.com/tbxark/intakeagent/config"
	"github.com/tbxark/intakeagent/oracle"
	"github.com/tbxark/intakeagent/state"
)

// Runtime routes session identifiers to one Agent. Sessions are isolated
// purely by using the session id as the store key; the runtime holds no
// per-session state of its own.
type Runtime struct {
	cfg   *config.AgentConfig
	agent *Agent
}

func NewRuntime(cfg *config.AgentConfig, client oracle.Client, store state.Store) *Runtime {
	return &Runtime{
		cfg:   cfg,
		agent: New(cfg, client, store),
	}
}

// StartSession starts (or idempotently restarts) a session and returns the
// greeting.
func (r *Runtime) StartSession(ctx context.Context, sessionID string) (string, error) {
	return r.agent.StartSession(ctx, sessionID)
}

// HandleMessage routes one user message to the agent and returns the reply.
func (r *Runtime) HandleMessage(ctx context.Context, sessionID, userText string) (string, error) {
	return r.agent.HandleMessage(ctx, sessionID, userText)
}

// State returns the conversation for a session, or nil if unknown.
func (r *Runtime) State(ctx context.Context, sessionID string) (*state.Conversation, error) {
	return r.agent.State(ctx, sessionID)
}

// Greeting returns the configured greeting for new sessions.
func (r *Runtime) Greeting() string {
	return r.cfg.Personality.Greeting
}
