package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adpilot/adpilot/internal/domain"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const defaultClassifyTimeout = 15 * time.Second

// ModelClassifier is the routing fallback for messages the keyword phase
// could not place: it asks a chat model to pick exactly one label from the
// closed domain set.
type ModelClassifier struct {
	model    model.BaseChatModel
	timeout  time.Duration
	maxChars int
}

// NewModelClassifier builds the model phase. maxChars bounds how much of the
// message is sent to the model.
func NewModelClassifier(chatModel model.BaseChatModel, timeout time.Duration, maxChars int) *ModelClassifier {
	if timeout <= 0 {
		timeout = defaultClassifyTimeout
	}
	if maxChars <= 0 {
		maxChars = 200
	}
	return &ModelClassifier{model: chatModel, timeout: timeout, maxChars: maxChars}
}

// Classify asks the model for a domain label. An unparsable or out-of-set
// reply is coerced to general; a transport failure is reported as "no
// opinion" so the router can fall back without surfacing an error.
func (c *ModelClassifier) Classify(ctx context.Context, message string) (domain.RouteResult, bool, error) {
	if c.model == nil {
		return domain.RouteResult{}, false, nil
	}

	truncated := []rune(message)
	if len(truncated) > c.maxChars {
		truncated = truncated[:c.maxChars]
	}

	labels := make([]string, 0, len(domain.AllDomains()))
	for _, d := range domain.AllDomains() {
		labels = append(labels, string(d))
	}

	prompt := fmt.Sprintf(
		"Classify the user message into exactly one domain label.\n"+
			"Labels: %s\n"+
			"Reply with the label only, nothing else.\n\n"+
			"Message: %s",
		strings.Join(labels, ", "), string(truncated),
	)

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.model.Generate(callCtx, []*schema.Message{
		schema.SystemMessage("You are a routing classifier for a marketing assistant."),
		schema.UserMessage(prompt),
	})
	if err != nil {
		return domain.RouteResult{}, false, err
	}

	resolved := coerceLabel(resp.Content)
	return domain.RouteResult{
		Domain: resolved,
		Method: domain.MethodModel,
		Usage:  usageFrom(resp),
	}, true, nil
}

func coerceLabel(reply string) domain.Domain {
	label := strings.ToLower(strings.TrimSpace(reply))
	label = strings.Trim(label, "\"'`.")
	d := domain.Domain(label)
	if !d.Valid() {
		return domain.DomainGeneral
	}
	return d
}

func usageFrom(resp *schema.Message) *domain.TokenUsage {
	if resp == nil || resp.ResponseMeta == nil || resp.ResponseMeta.Usage == nil {
		return nil
	}
	u := resp.ResponseMeta.Usage
	return &domain.TokenUsage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}
