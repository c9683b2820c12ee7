package translator

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/folio-cms/folio/internal/config"
)

// AnthropicProvider translates through the messages API.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

// NewAnthropicProvider creates a provider; baseURL is optional.
func NewAnthropicProvider(apiKey, baseURL, model string) *AnthropicProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicProvider{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

func (p *AnthropicProvider) Name() string {
	return config.ProviderAnthropic
}

func (p *AnthropicProvider) Translate(ctx context.Context, req Request) (string, error) {
	if req.Text == "" {
		return "", nil
	}

	disabled := anthropic.NewThinkingConfigDisabledParam()
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: defaultMaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt(req)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Text)),
		},
		Thinking: anthropic.ThinkingConfigParamUnion{OfDisabled: &disabled},
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", normalize(ctx, apiError(p.Name(), err))
	}
	if resp.StopReason == anthropic.StopReasonMaxTokens {
		return "", errTruncatedCompletion
	}

	// skip thinking blocks
	var b strings.Builder
	for _, block := range resp.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			b.WriteString(v.Text)
		}
	}
	return llmResult(b.String())
}
