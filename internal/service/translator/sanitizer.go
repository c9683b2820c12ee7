package translator

import (
	"github.com/folio-cms/folio/internal/model"
	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer strips unsafe markup that a provider may have introduced into
// html fields. Plain text passes through unchanged.
type Sanitizer struct {
	policy *bluemonday.Policy
}

func NewSanitizer() *Sanitizer {
	return &Sanitizer{policy: bluemonday.UGCPolicy()}
}

func (s *Sanitizer) Clean(format model.Format, text string) string {
	if format != model.FormatHTML {
		return text
	}
	return s.policy.Sanitize(text)
}
