package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Model sends one prompt to a language model and returns the raw completion.
type Model interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Translator translates screen strings through a Model.
type Translator struct {
	model        Model
	stopSequence string
	logger       *slog.Logger
}

// NewTranslator returns a Translator. stopSequence is written at the end of
// every prompt and should match the stop sequence the model is called with.
func NewTranslator(model Model, stopSequence string, logger *slog.Logger) (*Translator, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: model cannot be nil", ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Translator{
		model:        model,
		stopSequence: stopSequence,
		logger:       logger.With(slog.String("component", "translator")),
	}, nil
}

// Translate returns the translations into language of the strings of the
// screen with local id screenID. Strings the model did not answer for are
// missing from the result.
func (t *Translator) Translate(ctx context.Context, screenID int64, language string, texts []string) (map[string]string, error) {
	language = strings.TrimSpace(language)
	if language == "" {
		return nil, ErrEmptyLanguage
	}

	groups := SplitStrings(screenID, texts)
	out := make(map[string]string, len(texts))
	for _, g := range []struct {
		kind  PromptKind
		group map[string][]string
	}{
		{PromptText, groups.Text},
		{PromptHTML, groups.HTML},
	} {
		list, err := jsonList(g.group)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s strings: %w", g.kind, err)
		}
		if list == "" {
			continue
		}

		prompt, err := RenderPrompt(g.kind, list, language, t.stopSequence)
		if err != nil {
			return nil, err
		}
		completion, err := t.model.Complete(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTranslationFailed, err)
		}
		translations, err := ParseTranslations(CleanResponse(completion))
		if err != nil {
			return nil, err
		}
		for source, translated := range translations {
			if strings.TrimSpace(translated) != "" {
				out[source] = translated
			}
		}
		t.logger.DebugContext(ctx, "translated string group",
			slog.String("kind", string(g.kind)),
			slog.Int64("screen_id", screenID),
			slog.Int("answered", len(translations)))
	}

	if len(texts) > 0 && len(out) == 0 {
		return nil, fmt.Errorf("%w: model returned no translations", ErrInvalidResponse)
	}
	return out, nil
}

// IsPermanent reports whether err will not go away on retry.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrContentBlocked) ||
		errors.Is(err, ErrInvalidResponse) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrEmptyLanguage)
}
