package translator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/folio-cms/folio/internal/model"
	"github.com/openai/openai-go"
)

const defaultMaxTokens = 4096

// A completion cut off at the token limit is a partial translation.
var errTruncatedCompletion = fmt.Errorf("%w: completion truncated at max tokens", ErrMalformedResponse)

func systemPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a translation engine for a personal portfolio website. ")
	fmt.Fprintf(&b, "Translate the user's message from %s to %s. ", req.Source, req.Target)
	if req.Format == model.FormatHTML {
		b.WriteString("The text is an HTML fragment: keep every tag and attribute unchanged and translate only the human-readable text. ")
	}
	b.WriteString("Reply with the translation only, without quotes, notes or explanations.")
	return b.String()
}

// llmResult validates the text a chat model returned.
func llmResult(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty completion", ErrMalformedResponse)
	}
	return text, nil
}

// apiError converts SDK errors into ProviderError where a status is known.
func apiError(provider string, err error) error {
	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) {
		return &ProviderError{Provider: provider, StatusCode: oaiErr.StatusCode, Message: oaiErr.Message}
	}
	var antErr *anthropic.Error
	if errors.As(err, &antErr) {
		return &ProviderError{Provider: provider, StatusCode: antErr.StatusCode, Message: truncateMessage(antErr.Error())}
	}
	return err
}

func truncateMessage(msg string) string {
	return model.Truncate(msg, 300)
}
