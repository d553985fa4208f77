package oracle

import (
	"context"
	"sync"
)

// defaultScriptedReply keeps scripted conversations moving once the script
// runs out instead of failing the turn.
const defaultScriptedReply = `{"intent": "off_topic", "response_text": "I didn't understand.", "confidence": 0.5}`

// Scripted is a deterministic Client for tests: it replays canned responses
// in order without touching the network.
type Scripted struct {
	mu        sync.Mutex
	responses []string
	calls     int

	// LastSystemPrompt and LastUserText capture the most recent request for
	// prompt assertions.
	LastSystemPrompt string
	LastUserText     string
}

func NewScripted(responses ...string) *Scripted {
	return &Scripted{responses: responses}
}

func (s *Scripted) Complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastSystemPrompt = systemPrompt
	s.LastUserText = userText
	out := defaultScriptedReply
	if s.calls < len(s.responses) {
		out = s.responses[s.calls]
	}
	s.calls++
	return out, nil
}

// Calls returns how many completions have been requested.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var _ Client = (*Scripted)(nil)
