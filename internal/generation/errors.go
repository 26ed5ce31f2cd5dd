package generation

import "errors"

// Common errors returned by the generation package
var (
	// ErrTranslationFailed is returned when a translation fails for any general reason
	ErrTranslationFailed = errors.New("failed to translate strings")

	// ErrInvalidResponse is returned when the model response cannot be parsed or is malformed
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the model blocks the content due to safety filters
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrTransientFailure is returned for temporary errors that might resolve on retry
	ErrTransientFailure = errors.New("transient error during translation")

	// ErrInvalidConfig is returned when the model configuration is invalid
	ErrInvalidConfig = errors.New("invalid language model configuration")

	// ErrEmptyLanguage is returned when no target language is given
	ErrEmptyLanguage = errors.New("target language cannot be empty")
)
