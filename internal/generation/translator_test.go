package generation_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/phrazzld/bpm-api/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeModel answers each prompt with the next canned completion.
type fakeModel struct {
	prompts     []string
	completions []string
	err         error
}

func (m *fakeModel) Complete(_ context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	if len(m.completions) == 0 {
		return "{}", nil
	}
	c := m.completions[0]
	m.completions = m.completions[1:]
	return c, nil
}

func TestRenderPrompt(t *testing.T) {
	prompt, err := generation.RenderPrompt(generation.PromptText, `{"7":["First name"]}`, "Spanish", "END_")
	require.NoError(t, err)

	assert.Contains(t, prompt, `{"7":["First name"]}`)
	assert.Contains(t, prompt, "into Spanish")
	assert.Contains(t, prompt, "{{name}}")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(prompt), "END_"))

	html, err := generation.RenderPrompt(generation.PromptHTML, `{"7":["<p>Hi</p>"]}`, "German", "END_")
	require.NoError(t, err)
	assert.Contains(t, html, "HTML fragments")

	_, err = generation.RenderPrompt(generation.PromptText, "[]", " ", "END_")
	assert.ErrorIs(t, err, generation.ErrEmptyLanguage)

	_, err = generation.RenderPrompt(generation.PromptKind("markdown"), "[]", "German", "END_")
	assert.Error(t, err)
}

func TestSplitStrings(t *testing.T) {
	g := generation.SplitStrings(7, []string{"First name", "<p>Welcome</p>", "a < b", "<b>Total</b>"})

	assert.Equal(t, map[string][]string{"7": {"First name", "a < b"}}, g.Text)
	assert.Equal(t, map[string][]string{"7": {"<p>Welcome</p>", "<b>Total</b>"}}, g.HTML)
}

func TestCleanResponse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trims", "  \n{\"a\":\"b\"}  ", `{"a":"b"}`},
		{"cuts continuation", "{\"a\":\"b\"}\nQuestion: translate more", `{"a":"b"}`},
		{"drops newlines", "{\n  \"a\": \"b\"\n}", `{  "a": "b"}`},
		{"drops single quotes", `{"it's":"c'est"}`, `{"its":"cest"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, generation.CleanResponse(tt.in))
		})
	}
}

func TestParseTranslations(t *testing.T) {
	got, err := generation.ParseTranslations(`Here you go: {"First name":"Nombre"} END_`)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"First name": "Nombre"}, got)

	grouped, err := generation.ParseTranslations(`{"7":{"First name":"Nombre","Street":"Calle"}}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"First name": "Nombre", "Street": "Calle"}, grouped)

	_, err = generation.ParseTranslations("no json here")
	assert.ErrorIs(t, err, generation.ErrInvalidResponse)

	_, err = generation.ParseTranslations(`{"broken": }`)
	assert.ErrorIs(t, err, generation.ErrInvalidResponse)
}

func TestTranslator_Translate(t *testing.T) {
	model := &fakeModel{completions: []string{
		"\n{\"First name\": \"Nombre\", \"Street\": \"\"}\nQuestion: ignored",
		`{"<p>Welcome</p>": "<p>Bienvenido</p>"}`,
	}}
	tr, err := generation.NewTranslator(model, "END_", nil)
	require.NoError(t, err)

	got, err := tr.Translate(context.Background(), 7, "Spanish", []string{"First name", "Street", "<p>Welcome</p>"})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"First name":     "Nombre",
		"<p>Welcome</p>": "<p>Bienvenido</p>",
	}, got)
	require.Len(t, model.prompts, 2)
	assert.Contains(t, model.prompts[0], `{"7":["First name","Street"]}`)
	assert.Contains(t, model.prompts[1], `{"7":["<p>Welcome</p>"]}`)
}

func TestTranslator_SkipsEmptyGroups(t *testing.T) {
	model := &fakeModel{completions: []string{`{"Street":"Rue"}`}}
	tr, err := generation.NewTranslator(model, "END_", nil)
	require.NoError(t, err)

	got, err := tr.Translate(context.Background(), 1, "French", []string{"Street"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Street": "Rue"}, got)
	assert.Len(t, model.prompts, 1)

	none, err := tr.Translate(context.Background(), 1, "French", nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTranslator_Errors(t *testing.T) {
	_, err := generation.NewTranslator(nil, "END_", nil)
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	failing := &fakeModel{err: generation.ErrContentBlocked}
	tr, err := generation.NewTranslator(failing, "END_", nil)
	require.NoError(t, err)

	_, err = tr.Translate(context.Background(), 1, "French", []string{"Street"})
	assert.ErrorIs(t, err, generation.ErrTranslationFailed)
	assert.ErrorIs(t, err, generation.ErrContentBlocked)
	assert.True(t, generation.IsPermanent(err))

	_, err = tr.Translate(context.Background(), 1, "", []string{"Street"})
	assert.ErrorIs(t, err, generation.ErrEmptyLanguage)

	empty := &fakeModel{completions: []string{`{}`}}
	tr, err = generation.NewTranslator(empty, "END_", nil)
	require.NoError(t, err)
	_, err = tr.Translate(context.Background(), 1, "French", []string{"Street"})
	assert.ErrorIs(t, err, generation.ErrInvalidResponse)

	assert.False(t, generation.IsPermanent(errors.New("connection reset")))
}
