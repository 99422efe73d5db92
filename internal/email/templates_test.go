package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestRender_NamedTemplate(t *testing.T) {
	r, err := Render("Welcome {{name}}", strPtr("welcome"), nil, Vars{
		Name: "ann smith", Email: "ann@example.com", SiteURL: "https://itracksy.com/",
	})
	require.NoError(t, err)

	assert.Equal(t, "Welcome Ann Smith", r.Subject)
	assert.Contains(t, r.Text, "# Welcome to iTracksy, Ann Smith!")
	assert.Contains(t, r.HTML, "<h1>Welcome to iTracksy, Ann Smith!</h1>")
	assert.Contains(t, r.HTML, `<a href="https://itracksy.com/download">Download iTracksy</a>`)
	assert.Contains(t, r.HTML, "<!DOCTYPE html>")
	assert.NotContains(t, r.HTML, "{{")
}

func TestRender_LiteralContent(t *testing.T) {
	r, err := Render("News", nil, strPtr("Hi {{name}}, your address is {{email}}"), Vars{Email: "a@b.com"})
	require.NoError(t, err)
	assert.Contains(t, r.HTML, "<p>Hi there, your address is a@b.com</p>")
}

func TestRender_EscapesPlaceholderValues(t *testing.T) {
	r, err := Render("S", nil, strPtr("Hi {{name}}"), Vars{Name: "<b>x</b>"})
	require.NoError(t, err)
	assert.NotContains(t, r.HTML, "<b>")
}

func TestRender_Errors(t *testing.T) {
	_, err := Render("S", strPtr("nope"), nil, Vars{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown email template "nope"`)

	_, err = Render("S", nil, strPtr("   "), Vars{})
	assert.Error(t, err)

	_, err = Render("S", nil, nil, Vars{})
	assert.Error(t, err)
}

func TestRender_NameCasing(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase is capitalised", "ann smith", "Hi Ann Smith"},
		{"inner capital kept", "DeShawn", "Hi DeShawn"},
		{"prefix capital kept", "McDonald", "Hi McDonald"},
		{"all caps kept", "ANN", "Hi ANN"},
		{"blank falls back", "  ", "Hi there"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Render("S", nil, strPtr("Hi {{name}}"), Vars{Name: tt.in})
			require.NoError(t, err)
			assert.Contains(t, r.HTML, tt.want)
		})
	}
}

func TestRender_AllNamedTemplates(t *testing.T) {
	keys := TemplateKeys()
	assert.ElementsMatch(t, []string{"welcome", "beta_invite", "download_reminder"}, keys)

	for _, key := range keys {
		t.Run(key, func(t *testing.T) {
			r, err := Render("S", strPtr(key), nil, Vars{Name: "Ann", Email: "ann@example.com", SiteURL: "https://itracksy.com"})
			require.NoError(t, err)
			assert.Contains(t, r.HTML, "https://itracksy.com")
			assert.NotContains(t, r.Text, "{{")
		})
	}
}

func TestRenderReply_QuotesOriginal(t *testing.T) {
	html, err := RenderReply("Thanks **{{name}}**!", "ann", "The app crashes", "https://itracksy.com")
	require.NoError(t, err)
	assert.Contains(t, html, "<strong>Ann</strong>")
	assert.Contains(t, html, "<blockquote")
	assert.Contains(t, html, "The app crashes")

	html, err = RenderReply("Thanks", "", "", "https://itracksy.com")
	require.NoError(t, err)
	assert.NotContains(t, html, "<blockquote")
}
