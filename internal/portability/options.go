package portability

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"
)

// Mode decides what happens when a payload node matches a stored entity.
type Mode string

// Collision modes
const (
	ModeUpdate Mode = "update"
	ModeSkip   Mode = "skip"
)

// ValidationPolicy decides what happens when a node fails validation.
type ValidationPolicy string

// Validation policies
const (
	PolicyAbort ValidationPolicy = "abort"
	PolicySkip  ValidationPolicy = "skip"
)

// Option keys accepted by NewOptions.
const (
	OptionMode              = "mode"
	OptionSkipIfExists      = "skip_if_exists"
	OptionOverwrite         = "overwrite"
	OptionOnValidationError = "on_validation_error"
	OptionModes             = "modes"
)

type rawOptions struct {
	Mode              string            `mapstructure:"mode" validate:"omitempty,oneof=update skip"`
	SkipIfExists      *bool             `mapstructure:"skip_if_exists"`
	Overwrite         *bool             `mapstructure:"overwrite"`
	OnValidationError string            `mapstructure:"on_validation_error" validate:"omitempty,oneof=abort skip"`
	Modes             map[string]string `mapstructure:"modes" validate:"dive,keys,stable_id,endkeys,oneof=update skip"`
}

// Options controls an import. The zero value is not usable; use NewOptions
// or DefaultOptions.
type Options struct {
	mode   Mode
	policy ValidationPolicy
	modes  map[uuid.UUID]Mode
}

// DefaultOptions updates existing entities and aborts on the first invalid node.
func DefaultOptions() *Options {
	return &Options{mode: ModeUpdate, policy: PolicyAbort, modes: map[uuid.UUID]Mode{}}
}

var optionsValidator = newStableIDValidator()

// NewOptions builds Options from a key/value map such as a decoded JSON body.
// Unknown keys, values of the wrong type and contradictory aliases are
// rejected with an error wrapping ErrInvalidOptions.
func NewOptions(values map[string]any) (*Options, error) {
	var raw rawOptions
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      &raw,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create options decoder: %w", err)
	}
	if err := dec.Decode(values); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	if err := optionsValidator.Struct(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}

	mode, err := resolveMode(raw)
	if err != nil {
		return nil, err
	}

	opts := DefaultOptions()
	opts.mode = mode
	if raw.OnValidationError != "" {
		opts.policy = ValidationPolicy(raw.OnValidationError)
	}
	for id, m := range raw.Modes {
		opts.modes[uuid.MustParse(id)] = Mode(m)
	}
	return opts, nil
}

// resolveMode folds mode, skip_if_exists and overwrite into one Mode.
func resolveMode(raw rawOptions) (Mode, error) {
	var implied []Mode
	if raw.Mode != "" {
		implied = append(implied, Mode(raw.Mode))
	}
	if raw.SkipIfExists != nil && *raw.SkipIfExists {
		implied = append(implied, ModeSkip)
	}
	if raw.Overwrite != nil {
		if *raw.Overwrite {
			implied = append(implied, ModeUpdate)
		} else {
			implied = append(implied, ModeSkip)
		}
	}

	if len(implied) == 0 {
		return ModeUpdate, nil
	}
	for _, m := range implied[1:] {
		if m != implied[0] {
			return "", fmt.Errorf("%w: %s, %s and %s disagree on collision handling",
				ErrInvalidOptions, OptionMode, OptionSkipIfExists, OptionOverwrite)
		}
	}
	return implied[0], nil
}

// Mode returns the default collision mode.
func (o *Options) Mode() Mode { return o.mode }

// ModeFor returns the collision mode for the node with stable id id.
func (o *Options) ModeFor(id uuid.UUID) Mode {
	if m, ok := o.modes[id]; ok {
		return m
	}
	return o.mode
}

// ValidationPolicy returns the policy for invalid nodes.
func (o *Options) ValidationPolicy() ValidationPolicy { return o.policy }

func (o *Options) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "mode=%s on_validation_error=%s", o.mode, o.policy)
	if len(o.modes) > 0 {
		fmt.Fprintf(&b, " overrides=%d", len(o.modes))
	}
	return b.String()
}
