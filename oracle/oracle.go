// Package oracle abstracts the LLM used to classify each turn. The model is
// treated as an untrusted black box that returns text; parsing its output is
// the analysis package's job.
package oracle

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Client is the narrow completion contract the orchestrator depends on.
// Transport failures are returned as errors and propagated; malformed but
// successful replies are returned verbatim.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userText string) (string, error)
}

// ChatModel adapts an eino chat model to the Client contract.
type ChatModel struct {
	chatModel model.BaseChatModel
}

func NewChatModel(chatModel model.BaseChatModel) *ChatModel {
	return &ChatModel{chatModel: chatModel}
}

func (c *ChatModel) Complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userText),
	}
	response, err := c.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("LLM call failed: %w", err)
	}
	return response.Content, nil
}

var _ Client = (*ChatModel)(nil)
