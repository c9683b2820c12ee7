package translator

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/folio-cms/folio/internal/config"
	"github.com/folio-cms/folio/internal/model"
)

// Request is one unit of work for a provider.
type Request struct {
	Text   string
	Source string
	Target string
	Format model.Format
}

// Provider translates text between two languages.
type Provider interface {
	// Name identifies the provider in logs, metrics and stored rows.
	Name() string
	// Translate returns the translated text. Implementations must honour ctx.
	Translate(ctx context.Context, req Request) (string, error)
}

var (
	// ErrTimeout is returned when a call outlives its deadline.
	ErrTimeout = errors.New("translation provider timed out")
	// ErrMalformedResponse is returned when a provider answers 2xx without a usable translation.
	ErrMalformedResponse = errors.New("malformed translation response")
	// ErrProviderMisconfigured is returned by New for unusable settings.
	ErrProviderMisconfigured = errors.New("translation provider misconfigured")
)

// ProviderError is a non-success answer from the remote service.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s returned HTTP %d: %s", e.Provider, e.StatusCode, e.Message)
}

// New builds the provider selected by cfg.Provider.
func New(cfg config.TranslationConfig) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderLibreTranslate:
		if cfg.APIURL == "" {
			return nil, fmt.Errorf("%w: api_url is required for %s", ErrProviderMisconfigured, cfg.Provider)
		}
		return NewLibreTranslateProvider(cfg.APIURL, cfg.APIKey), nil
	case config.ProviderOpenAI:
		if cfg.APIKey == "" || cfg.Model == "" {
			return nil, fmt.Errorf("%w: api_key and model are required for %s", ErrProviderMisconfigured, cfg.Provider)
		}
		return NewOpenAIProvider(cfg.APIKey, cfg.APIURL, cfg.Model), nil
	case config.ProviderAnthropic:
		if cfg.APIKey == "" || cfg.Model == "" {
			return nil, fmt.Errorf("%w: api_key and model are required for %s", ErrProviderMisconfigured, cfg.Provider)
		}
		return NewAnthropicProvider(cfg.APIKey, cfg.APIURL, cfg.Model), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrProviderMisconfigured, cfg.Provider)
	}
}

// Describe turns a provider failure into the message stored on a failed row.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var perr *ProviderError
	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "translation timed out before the provider answered"
	case errors.As(err, &perr):
		return perr.Error()
	case errors.Is(err, ErrMalformedResponse):
		return err.Error()
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "translation timed out before the provider answered"
	}
	return "translation provider unreachable: " + err.Error()
}

// normalize folds deadline errors into ErrTimeout.
func normalize(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
