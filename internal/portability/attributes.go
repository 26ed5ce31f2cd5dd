package portability

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"
	"github.com/ohler55/ojg/jp"
	"github.com/phrazzld/bpm-api/internal/domain"
)

// watcherScripts selects the script reference of every screen watcher.
var watcherScripts = jp.MustParseString("$[*].script_id")

type categoryAttributes struct {
	Name   string `mapstructure:"name" validate:"required,max=100"`
	Status string `mapstructure:"status" validate:"omitempty,oneof=ACTIVE INACTIVE"`
}

type scriptAttributes struct {
	Title          string `mapstructure:"title" validate:"required"`
	Description    string `mapstructure:"description"`
	Language       string `mapstructure:"language" validate:"required,oneof=php lua javascript python go"`
	Code           string `mapstructure:"code"`
	Timeout        int    `mapstructure:"timeout" validate:"gte=0"`
	ScriptCategory string `mapstructure:"script_category" validate:"omitempty,stable_id"`
}

type screenAttributes struct {
	Title            string   `mapstructure:"title" validate:"required"`
	Description      string   `mapstructure:"description"`
	Type             string   `mapstructure:"type" validate:"required,oneof=FORM DISPLAY EMAIL CONVERSATIONAL"`
	Config           any      `mapstructure:"config"`
	Computed         any      `mapstructure:"computed"`
	Watchers         any      `mapstructure:"watchers"`
	CustomCSS        string   `mapstructure:"custom_css"`
	ScreenCategories []string `mapstructure:"screen_categories" validate:"dive,stable_id"`
}

var attributeValidator = newAttributeValidator()

func newAttributeValidator() *validator.Validate {
	v := newStableIDValidator()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
	})
	return v
}

// newStableIDValidator returns a validator with the stable_id rule: a
// hyphenated 36-character UUID in either letter case, the same shape the
// payload schema accepts.
func newStableIDValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("stable_id", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if len(s) != 36 {
			return false
		}
		_, err := uuid.Parse(s)
		return err == nil
	})
	return v
}

// decodeAttributes decodes and validates the attributes of node into out.
func decodeAttributes(node *PayloadNode, out any) error {
	if err := mapstructure.Decode(node.Attributes, out); err != nil {
		return &ValidationError{Kind: node.Type, StableID: node.UUID, Message: err.Error(), Err: err}
	}
	if err := attributeValidator.Struct(out); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &ValidationError{
				Kind:     node.Type,
				StableID: node.UUID,
				Field:    fe.Field(),
				Message:  fmt.Sprintf("failed on the '%s' rule", fe.Tag()),
				Err:      err,
			}
		}
		return &ValidationError{Kind: node.Type, StableID: node.UUID, Message: err.Error(), Err: err}
	}
	return nil
}

// fromDomainError converts an entity validation failure into a ValidationError for node.
func fromDomainError(node *PayloadNode, err error) *ValidationError {
	ve := &ValidationError{Kind: node.Type, StableID: node.UUID, Message: err.Error(), Err: err}
	var de *domain.ValidationError
	if errors.As(err, &de) {
		ve.Field = de.Field
		ve.Message = de.Message
	}
	return ve
}

func categoryAttributesOf(name string, status domain.CategoryStatus) map[string]any {
	return map[string]any{
		"name":   name,
		"status": string(status),
	}
}

// decodeRawJSON decodes raw keeping numbers as json.Number so ids survive intact.
func decodeRawJSON(raw json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func encodeRawJSON(v any, fallback string) (json.RawMessage, error) {
	if v == nil {
		return json.RawMessage(fallback), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// watcherScriptIDs returns the script ids named by watchers, in watcher order
// and without duplicates.
func watcherScriptIDs(watchers any) []int64 {
	var ids []int64
	seen := make(map[int64]bool)
	for _, v := range watcherScripts.Get(watchers) {
		id, ok := domain.AsInt64(v)
		if !ok || id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// rewriteWatcherScripts replaces every watcher script_id with fn(script_id).
// Watchers without a script are left alone.
func rewriteWatcherScripts(watchers any, fn func(any) (any, error)) error {
	list, ok := watchers.([]any)
	if !ok {
		return nil
	}
	for _, item := range list {
		watcher, ok := item.(map[string]any)
		if !ok {
			continue
		}
		ref, ok := watcher["script_id"]
		if !ok || ref == nil {
			continue
		}
		if s, isString := ref.(string); isString && s == "" {
			continue
		}
		v, err := fn(ref)
		if err != nil {
			return err
		}
		watcher["script_id"] = v
	}
	return nil
}

// rewriteNestedScreens replaces the screen reference of every nested screen
// component in config with fn(reference).
func rewriteNestedScreens(config any, fn func(any) (any, error)) error {
	var err error
	domain.WalkItems(config, func(item map[string]any) {
		if err != nil || item["component"] != domain.NestedScreenComponent {
			return
		}
		cfg, ok := item["config"].(map[string]any)
		if !ok {
			return
		}
		ref, ok := cfg["screen"]
		if !ok || ref == nil {
			return
		}
		var v any
		v, err = fn(ref)
		if err == nil {
			cfg["screen"] = v
		}
	})
	return err
}

// stableRef parses a reference attribute holding a stable id.
func stableRef(v any) (uuid.UUID, bool) {
	s, ok := v.(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	return id, err == nil
}
