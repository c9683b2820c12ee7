package model

import (
	"time"
)

type Status string

const (
	StatusNotApplicable Status = "not_applicable"
	StatusPending       Status = "pending"
	StatusGenerated     Status = "generated"
	StatusFailed        Status = "failed"
)

// MaxErrorLength bounds LastError.
const MaxErrorLength = 1000

// TranslationState is the state of one (entity, field, language) target.
// The concrete types are NotApplicable, Pending, Generated and Failed.
type TranslationState interface {
	Status() Status
	isTranslationState()
}

type NotApplicable struct{}

type Pending struct{}

type Generated struct {
	Value string
}

type Failed struct {
	Err string
}

func (NotApplicable) Status() Status { return StatusNotApplicable }
func (Pending) Status() Status       { return StatusPending }
func (Generated) Status() Status     { return StatusGenerated }
func (Failed) Status() Status        { return StatusFailed }

func (NotApplicable) isTranslationState() {}
func (Pending) isTranslationState()       {}
func (Generated) isTranslationState()     {}
func (Failed) isTranslationState()        {}

// TranslatableField holds the value of one field in one language.
// The row for the default language carries the authoritative source value.
type TranslatableField struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	EntityID   uint      `gorm:"not null;uniqueIndex:idx_field_language,priority:1" json:"entity_id"`
	Field      string    `gorm:"size:64;not null;uniqueIndex:idx_field_language,priority:2" json:"field"`
	Language   string    `gorm:"size:16;not null;uniqueIndex:idx_field_language,priority:3" json:"language"`
	Value      string    `gorm:"type:text" json:"value"`
	Status     Status    `gorm:"size:20;not null;index" json:"status"`
	LastError  string    `gorm:"size:1000" json:"last_error,omitempty"`
	Manual     bool      `gorm:"not null;default:false" json:"manual"`
	SourceHash string    `gorm:"size:64" json:"-"`
	Provider   string    `gorm:"size:32" json:"provider,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (TranslatableField) TableName() string {
	return "translatable_fields"
}

// State decodes the stored status into its variant.
func (f *TranslatableField) State() TranslationState {
	switch f.Status {
	case StatusPending:
		return Pending{}
	case StatusGenerated:
		return Generated{Value: f.Value}
	case StatusFailed:
		return Failed{Err: f.LastError}
	default:
		return NotApplicable{}
	}
}

// ApplyState writes a state onto the row. Failed keeps the previous value.
func (f *TranslatableField) ApplyState(s TranslationState) {
	switch st := s.(type) {
	case Pending:
		f.Status = StatusPending
	case Generated:
		f.Status = StatusGenerated
		f.Value = st.Value
		f.LastError = ""
	case Failed:
		f.Status = StatusFailed
		f.LastError = TruncateError(st.Err)
	default:
		f.Status = StatusNotApplicable
		f.LastError = ""
	}
}

func TruncateError(msg string) string {
	return Truncate(msg, MaxErrorLength)
}

// FieldStatus is the admin-facing view of one target row.
type FieldStatus struct {
	Field     string    `json:"field"`
	Language  string    `json:"language"`
	Status    Status    `json:"status"`
	Value     string    `json:"value"`
	LastError string    `json:"last_error,omitempty"`
	Manual    bool      `json:"manual"`
	Provider  string    `json:"provider,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (f *TranslatableField) ToStatus() FieldStatus {
	return FieldStatus{
		Field:     f.Field,
		Language:  f.Language,
		Status:    f.Status,
		Value:     f.Value,
		LastError: f.LastError,
		Manual:    f.Manual,
		Provider:  f.Provider,
		UpdatedAt: f.UpdatedAt,
	}
}
