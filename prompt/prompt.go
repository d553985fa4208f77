// Package prompt assembles the oracle's input from the agent config and the
// current conversation. Only the information content matters to the
// orchestrator; the wording here is free to evolve.
package prompt

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"

	"github.com/tbxark/intakeagent/config"
	"github.com/tbxark/intakeagent/state"
)

// turnJSONSchema tells the model the exact reply shape the analysis parser
// expects.
const turnJSONSchema = `You must reply with a single JSON object (no markdown, no extra text) with exactly these keys:
- "intent": one of "field_response", "correction", "escalation_request", "off_topic"
- "response_text": string (what to say to the user)
- "extracted_value": string or null (for field_response/correction: the value the user provided)
- "confidence": number 0.0-1.0
- "field_name": string or null (which field this value is for, e.g. "email")`

// BuildSystemPrompt enumerates the configured fields in order, the current
// target field, the already-collected values, the conversational ground
// rules, and the required JSON response schema.
func BuildSystemPrompt(cfg *config.AgentConfig, conv *state.Conversation) string {
	var sections []string

	sections = append(sections, personalitySection(cfg))
	sections = append(sections, fieldsSection(cfg))
	if conv.CurrentField != "" {
		sections = append(sections, fmt.Sprintf("Current field you are collecting: %s", conv.CurrentField))
	}
	sections = append(sections, collectedSection(cfg, conv))
	sections = append(sections, rulesSection())
	sections = append(sections, "Handle intents as follows: field_response (user gives a value), correction (user corrects a previous value), escalation_request (user wants a human), off_topic (redirect back to collecting the current field).")
	sections = append(sections, turnJSONSchema)

	return strings.Join(sections, "\n\n")
}

// UserTurn returns the most recent user message in the transcript, which is
// the oracle's user-turn input.
func UserTurn(conv *state.Conversation) string {
	return conv.LastUserMessage()
}

func personalitySection(cfg *config.AgentConfig) string {
	p := cfg.Personality
	parts := []string{fmt.Sprintf("You are %s. Tone: %s.", cfg.Name, p.Tone)}
	if p.Style != "" {
		parts = append(parts, fmt.Sprintf("Style: %s.", p.Style))
	}
	if p.Formality != "" {
		parts = append(parts, fmt.Sprintf("Formality: %s.", p.Formality))
	}
	if p.UseEmojis {
		parts = append(parts, "Use emojis naturally where appropriate.")
		if len(p.EmojiList) > 0 {
			parts = append(parts, fmt.Sprintf("You may use these emojis in particular: %s.", strings.Join(p.EmojiList, ", ")))
		}
	}
	return strings.Join(parts, " ")
}

func fieldsSection(cfg *config.AgentConfig) string {
	var buf strings.Builder
	buf.WriteString("Your job is to collect the following fields from the user, one at a time, and respond in JSON.\n\n")
	buf.WriteString("Fields to collect (in order):\n")
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("Field", "Type", "Prompt")
	for _, f := range cfg.Fields {
		_ = table.Append(f.Name, string(f.Type), f.Prompt)
	}
	_ = table.Render()
	return strings.TrimRight(buf.String(), "\n")
}

func collectedSection(cfg *config.AgentConfig, conv *state.Conversation) string {
	var buf strings.Builder
	buf.WriteString("Already collected (do not ask again unless the user clearly corrects them):\n")
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("Field", "Value")
	rows := 0
	for _, f := range cfg.Fields {
		fs, ok := conv.Fields[f.Name]
		if !ok {
			continue
		}
		if v, collected := fs.CurrentValue(); collected {
			_ = table.Append(f.Name, v)
			rows++
		}
	}
	if rows == 0 {
		return "Already collected: nothing yet."
	}
	_ = table.Render()
	return strings.TrimRight(buf.String(), "\n")
}

func rulesSection() string {
	rules := []string{
		"Conversation rules (follow these strictly):",
		"- Always work on exactly one field at a time: the current field shown above.",
		"- When you have a valid value for the current field, move on to the next field and do not ask for the old one again unless the user clearly corrects it.",
		"- If the user replies with a short confirmation like 'yes', 'ok', 'that is right', or 'correct' just after you proposed a value, treat it as confirming that value for the current field. Do not re-ask; advance to the next field.",
		"- Treat phrases like 'no, my X is ...', 'actually it is ...', or 'correction' as corrections for the relevant field.",
		"- If the user talks about something unrelated (off-topic), give a brief friendly redirect and then ask about the current field only.",
	}
	return strings.Join(rules, "\n")
}
