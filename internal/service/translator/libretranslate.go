package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/folio-cms/folio/internal/config"
	"github.com/folio-cms/folio/internal/model"
)

// LibreTranslateProvider talks to a LibreTranslate compatible /translate endpoint.
type LibreTranslateProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewLibreTranslateProvider(baseURL, apiKey string) *LibreTranslateProvider {
	return &LibreTranslateProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{},
	}
}

func (p *LibreTranslateProvider) Name() string {
	return config.ProviderLibreTranslate
}

type libreResponse struct {
	TranslatedText *string `json:"translatedText"`
	Error          string  `json:"error"`
}

func (p *LibreTranslateProvider) Translate(ctx context.Context, req Request) (string, error) {
	if req.Text == "" {
		return "", nil
	}

	format := "text"
	if req.Format == model.FormatHTML {
		format = "html"
	}
	form := url.Values{}
	form.Set("q", req.Text)
	form.Set("source", req.Source)
	form.Set("target", req.Target)
	form.Set("format", format)
	if p.apiKey != "" {
		form.Set("api_key", p.apiKey)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/translate", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", normalize(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", normalize(ctx, err)
	}

	var parsed libreResponse
	decodeErr := json.Unmarshal(body, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := parsed.Error
		if decodeErr != nil || msg == "" {
			msg = snippet(body)
		}
		return "", &ProviderError{Provider: p.Name(), StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, decodeErr)
	}
	if parsed.TranslatedText == nil {
		return "", fmt.Errorf("%w: missing translatedText", ErrMalformedResponse)
	}
	return *parsed.TranslatedText, nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if s == "" {
		return "empty response body"
	}
	return model.Truncate(s, 200)
}
