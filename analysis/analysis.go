// Package analysis defines the structured shape the oracle must emit for
// each turn and the parser that degrades malformed output into a safe
// fallback. A turn never fails because the model replied with prose.
package analysis

import (
	"strings"

	"github.com/bytedance/sonic"
)

// Intent classifies what the user did this turn.
type Intent string

const (
	IntentFieldResponse     Intent = "field_response"
	IntentCorrection        Intent = "correction"
	IntentEscalationRequest Intent = "escalation_request"
	IntentOffTopic          Intent = "off_topic"
)

// FallbackResponseText is shown when the oracle reply is malformed and
// carried no usable text of its own.
const FallbackResponseText = "I didn't understand. Could you rephrase?"

// TurnAnalysis is the oracle's structured verdict for one turn.
// ExtractedValue and FieldName are nil when the model supplied no value,
// which is distinct from an empty string.
type TurnAnalysis struct {
	Intent         Intent  `json:"intent"`
	ResponseText   string  `json:"response_text"`
	ExtractedValue *string `json:"extracted_value,omitempty"`
	Confidence     float64 `json:"confidence"`
	FieldName      *string `json:"field_name,omitempty"`
}

// wireAnalysis mirrors the JSON contract with every key optional, so schema
// validation can distinguish absent keys from zero values.
type wireAnalysis struct {
	Intent         *string  `json:"intent"`
	ResponseText   *string  `json:"response_text"`
	ExtractedValue *string  `json:"extracted_value"`
	Confidence     *float64 `json:"confidence"`
	FieldName      *string  `json:"field_name"`
}

var validIntents = map[Intent]bool{
	IntentFieldResponse:     true,
	IntentCorrection:        true,
	IntentEscalationRequest: true,
	IntentOffTopic:          true,
}

// Parse turns the oracle's raw reply into a TurnAnalysis. A wrapping fenced
// code block is stripped before decoding. Any parse or schema failure
// degrades to an off_topic analysis carrying the raw text (or a generic
// redirect when the reply was empty) with confidence 0. Parse never fails.
func Parse(raw string) TurnAnalysis {
	raw = stripFence(strings.TrimSpace(raw))

	var wire wireAnalysis
	if err := sonic.UnmarshalString(raw, &wire); err != nil {
		return fallback(raw)
	}
	if wire.Intent == nil || !validIntents[Intent(*wire.Intent)] {
		return fallback(raw)
	}
	if wire.ResponseText == nil {
		return fallback(raw)
	}
	confidence := 1.0
	if wire.Confidence != nil {
		confidence = *wire.Confidence
		if confidence < 0 || confidence > 1 {
			return fallback(raw)
		}
	}

	return TurnAnalysis{
		Intent:         Intent(*wire.Intent),
		ResponseText:   *wire.ResponseText,
		ExtractedValue: wire.ExtractedValue,
		Confidence:     confidence,
		FieldName:      wire.FieldName,
	}
}

func fallback(raw string) TurnAnalysis {
	text := raw
	if text == "" {
		text = FallbackResponseText
	}
	return TurnAnalysis{
		Intent:       IntentOffTopic,
		ResponseText: text,
		Confidence:   0.0,
	}
}

// stripFence removes a leading/trailing markdown code fence when the whole
// reply is wrapped in one, e.g. "```json\n{...}\n```".
func stripFence(raw string) string {
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	lines := strings.Split(raw, "\n")
	if len(lines) > 0 && strings.HasPrefix(lines[0], "```") {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
