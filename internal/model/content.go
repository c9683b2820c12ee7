package model

import (
	"time"
)

type Kind string

const (
	KindProfile    Kind = "profile"
	KindProject    Kind = "project"
	KindBlogPost   Kind = "blog_post"
	KindExperience Kind = "experience"
	KindEducation  Kind = "education"
)

type Format string

const (
	FormatText Format = "text"
	FormatHTML Format = "html"
)

// FieldSpec describes one content field of a kind.
type FieldSpec struct {
	Name         string `json:"name"`
	Format       Format `json:"format"`
	Translatable bool   `json:"translatable"`
}

// Registry lists the fields of every kind in processing order.
var Registry = map[Kind][]FieldSpec{
	KindProfile: {
		{Name: "name", Format: FormatText, Translatable: true},
		{Name: "title", Format: FormatText, Translatable: true},
		{Name: "bio", Format: FormatHTML, Translatable: true},
		{Name: "location", Format: FormatText, Translatable: true},
		{Name: "email", Format: FormatText},
	},
	KindProject: {
		{Name: "title", Format: FormatText, Translatable: true},
		{Name: "description", Format: FormatText, Translatable: true},
		{Name: "detailed_description", Format: FormatHTML, Translatable: true},
		{Name: "github_url", Format: FormatText},
	},
	KindBlogPost: {
		{Name: "title", Format: FormatText, Translatable: true},
		{Name: "content", Format: FormatHTML, Translatable: true},
		{Name: "excerpt", Format: FormatText, Translatable: true},
		{Name: "slug", Format: FormatText},
	},
	KindExperience: {
		{Name: "company", Format: FormatText, Translatable: true},
		{Name: "position", Format: FormatText, Translatable: true},
		{Name: "description", Format: FormatHTML, Translatable: true},
	},
	KindEducation: {
		{Name: "institution", Format: FormatText, Translatable: true},
		{Name: "degree", Format: FormatText, Translatable: true},
		{Name: "field_of_study", Format: FormatText, Translatable: true},
		{Name: "description", Format: FormatHTML, Translatable: true},
	},
}

func (k Kind) Valid() bool {
	_, ok := Registry[k]
	return ok
}

// Field looks up a field spec by name.
func (k Kind) Field(name string) (FieldSpec, bool) {
	for _, f := range Registry[k] {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Entity is one piece of portfolio content. Its field values live in
// TranslatableField rows, one per (field, language).
type Entity struct {
	ID        uint                `gorm:"primaryKey" json:"id"`
	Kind      Kind                `gorm:"size:20;not null;index" json:"kind"`
	Slug      string              `gorm:"size:200;index" json:"slug,omitempty"`
	Fields    []TranslatableField `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func (Entity) TableName() string {
	return "entities"
}
