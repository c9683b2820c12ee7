package model

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestStateRoundTrip(t *testing.T) {
	row := &TranslatableField{Value: "Hola"}

	row.ApplyState(Pending{})
	assert.Equal(t, Pending{}, row.State())

	row.ApplyState(Generated{Value: "Hola mundo"})
	assert.Equal(t, Generated{Value: "Hola mundo"}, row.State())
	assert.Empty(t, row.LastError)

	row.ApplyState(Failed{Err: "provider timeout"})
	assert.Equal(t, Failed{Err: "provider timeout"}, row.State())
	assert.Equal(t, "Hola mundo", row.Value, "failed keeps the last good value")

	row.ApplyState(NotApplicable{})
	assert.Equal(t, StatusNotApplicable, row.State().Status())
}

func TestFailedErrorIsTruncated(t *testing.T) {
	row := &TranslatableField{}
	row.ApplyState(Failed{Err: strings.Repeat("x", 2*MaxErrorLength)})
	assert.Len(t, row.LastError, MaxErrorLength)
}

func TestRegistry(t *testing.T) {
	f, ok := KindProfile.Field("bio")
	assert.True(t, ok)
	assert.Equal(t, FormatHTML, f.Format)

	f, ok = KindProfile.Field("email")
	assert.True(t, ok)
	assert.False(t, f.Translatable)

	assert.False(t, Kind("skill").Valid())
	assert.True(t, KindBlogPost.Valid())
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "añ", Truncate("año", 3))
	assert.Equal(t, "a", Truncate("añ", 2))
	assert.Equal(t, "", Truncate("ñ", 1))
	assert.Equal(t, "abc", Truncate("abc", 10))
}

func TestTruncateErrorAtMultiByteBoundary(t *testing.T) {
	msg := strings.Repeat("a", MaxErrorLength-1) + "ñ" + strings.Repeat("b", 50)
	got := TruncateError(msg)

	assert.True(t, utf8.ValidString(got))
	assert.Len(t, got, MaxErrorLength-1)

	row := &TranslatableField{}
	row.ApplyState(Failed{Err: msg})
	assert.True(t, utf8.ValidString(row.LastError))
}
