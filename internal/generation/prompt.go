package generation

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"text/template"
)

//go:embed prompts/*.md
var promptFiles embed.FS

// PromptKind selects the prompt template for a group of strings.
type PromptKind string

// Prompt kinds
const (
	PromptText PromptKind = "text"
	PromptHTML PromptKind = "html"
)

var prompts = template.Must(template.ParseFS(promptFiles, "prompts/*.md"))

// promptData represents the data passed to the prompt templates
type promptData struct {
	JSONList     string
	Language     string
	StopSequence string
}

// RenderPrompt renders the kind template for one JSON list of strings.
func RenderPrompt(kind PromptKind, jsonList, language, stopSequence string) (string, error) {
	if strings.TrimSpace(language) == "" {
		return "", ErrEmptyLanguage
	}
	name := "language_translation_" + string(kind) + ".md"
	tmpl := prompts.Lookup(name)
	if tmpl == nil {
		return "", fmt.Errorf("no prompt template for %q", kind)
	}

	var buf bytes.Buffer
	err := tmpl.Execute(&buf, promptData{
		JSONList:     jsonList,
		Language:     language,
		StopSequence: stopSequence,
	})
	if err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}

var tagPattern = regexp.MustCompile(`<[^<>]+>`)

// IsHTML reports whether s contains markup.
func IsHTML(s string) bool {
	return tagPattern.MatchString(s)
}

// Groups holds the strings of screens split by prompt kind, keyed by screen id.
type Groups struct {
	Text map[string][]string
	HTML map[string][]string
}

// SplitStrings groups the strings of screen screenID by whether they contain markup.
func SplitStrings(screenID int64, texts []string) Groups {
	key := strconv.FormatInt(screenID, 10)
	g := Groups{
		Text: map[string][]string{key: {}},
		HTML: map[string][]string{key: {}},
	}
	for _, s := range texts {
		if IsHTML(s) {
			g.HTML[key] = append(g.HTML[key], s)
		} else {
			g.Text[key] = append(g.Text[key], s)
		}
	}
	return g
}

// jsonList encodes one group for a prompt. It returns "" when the group is empty.
func jsonList(group map[string][]string) (string, error) {
	n := 0
	for _, list := range group {
		n += len(list)
	}
	if n == 0 {
		return "", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(group); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// CleanResponse normalizes a raw completion: anything after a "Question:"
// continuation is dropped, as are line breaks and single quotes.
func CleanResponse(text string) string {
	text = strings.TrimLeft(text, " \t\r\n")
	if i := strings.Index(text, "Question:"); i >= 0 {
		text = text[:i]
	}
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.ReplaceAll(text, "\n", "")
	text = strings.TrimRight(text, " \t")
	return strings.ReplaceAll(text, "'", "")
}

// ParseTranslations reads the JSON object of source string to translation
// from a cleaned completion. Text around the object is ignored.
func ParseTranslations(text string) (map[string]string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrInvalidResponse)
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	out := make(map[string]string, len(raw))
	for source, v := range raw {
		switch t := v.(type) {
		case string:
			out[source] = t
		case map[string]any:
			// some models answer grouped by screen id like the prompt
			for s, tr := range t {
				if str, ok := tr.(string); ok {
					out[s] = str
				}
			}
		}
	}
	return out, nil
}
