package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
)

type GenerateTextInput struct {
	Brief string `json:"brief" jsonschema:"required,description=What the ad copy should sell and to whom"`
}

type GenerateTextOutput struct {
	Text string `json:"text"`
}

type generateTextToolImpl struct {
	client CreativeClient
}

func (t *generateTextToolImpl) execute(ctx context.Context, input *GenerateTextInput) (*GenerateTextOutput, error) {
	brief := strings.TrimSpace(input.Brief)
	if brief == "" {
		return nil, fmt.Errorf("brief is required")
	}
	text, err := t.client.GenerateText(ctx, brief)
	if err != nil {
		return nil, fmt.Errorf("generate creative text: %w", err)
	}
	return &GenerateTextOutput{Text: text}, nil
}

// NewGenerateTextTool drafts ad copy from a short brief.
func NewGenerateTextTool(client CreativeClient) (tool.InvokableTool, error) {
	if client == nil {
		return nil, fmt.Errorf("creative client is required")
	}
	impl := &generateTextToolImpl{client: client}
	return utils.InferTool(ToolCreativeGenerateText, "Draft ad copy from a brief", impl.execute)
}
