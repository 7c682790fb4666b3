package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const creativeSystemPrompt = `Ты копирайтер перформанс-агентства. Напиши короткий рекламный текст
по брифу: заголовок, 2-3 предложения основного текста и призыв к действию.
Пиши на языке брифа. Без пояснений, только сам текст.`

type modelCreativeClient struct {
	chatModel model.BaseChatModel
}

// NewModelCreativeClient drafts ad copy with the configured chat model.
func NewModelCreativeClient(chatModel model.BaseChatModel) (CreativeClient, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}
	return &modelCreativeClient{chatModel: chatModel}, nil
}

func (c *modelCreativeClient) GenerateText(ctx context.Context, brief string) (string, error) {
	resp, err := c.chatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(creativeSystemPrompt),
		schema.UserMessage(brief),
	})
	if err != nil {
		return "", fmt.Errorf("creative model call: %w", err)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", fmt.Errorf("creative model returned empty text")
	}
	return text, nil
}
