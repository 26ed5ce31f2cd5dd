package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// TypeScreenTranslation identifies screen translation jobs.
const TypeScreenTranslation = "screen_translation"

// Common errors
var (
	ErrNilTranslator = errors.New("translator cannot be nil")
	ErrEmptyScreenID = errors.New("screen ID cannot be empty")
	ErrEmptyLanguage = errors.New("language cannot be empty")
)

// ScreenTranslator translates the user-facing strings of a screen and stores the result.
type ScreenTranslator interface {
	TranslateScreen(ctx context.Context, screenID uuid.UUID, language string) error
}

// screenTranslationPayload represents the serialized data stored with the job.
type screenTranslationPayload struct {
	ScreenUUID uuid.UUID `json:"screen_uuid"`
	Language   string    `json:"language"`
}

// ScreenTranslationJob translates one screen into one language.
type ScreenTranslationJob struct {
	id         uuid.UUID
	payload    screenTranslationPayload
	translator ScreenTranslator
	logger     *slog.Logger
	status     Status
}

// NewScreenTranslationJob creates a pending translation job for screenID.
func NewScreenTranslationJob(
	screenID uuid.UUID,
	language string,
	translator ScreenTranslator,
	logger *slog.Logger,
) (*ScreenTranslationJob, error) {
	return newScreenTranslationJob(uuid.New(), screenTranslationPayload{
		ScreenUUID: screenID,
		Language:   strings.TrimSpace(language),
	}, translator, logger)
}

func newScreenTranslationJob(
	id uuid.UUID,
	payload screenTranslationPayload,
	translator ScreenTranslator,
	logger *slog.Logger,
) (*ScreenTranslationJob, error) {
	if translator == nil {
		return nil, ErrNilTranslator
	}
	if payload.ScreenUUID == uuid.Nil {
		return nil, ErrEmptyScreenID
	}
	if payload.Language == "" {
		return nil, ErrEmptyLanguage
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ScreenTranslationJob{
		id:         id,
		payload:    payload,
		translator: translator,
		logger: logger.With(
			"job_type", TypeScreenTranslation,
			"screen_uuid", payload.ScreenUUID,
			"language", payload.Language),
		status: StatusPending,
	}, nil
}

// ScreenTranslationFactory returns the Factory that rebuilds translation jobs after a restart.
func ScreenTranslationFactory(translator ScreenTranslator, logger *slog.Logger) Factory {
	return func(rec Record) (Job, error) {
		var payload screenTranslationPayload
		if err := json.Unmarshal(rec.Payload, &payload); err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", TypeScreenTranslation, err)
		}
		job, err := newScreenTranslationJob(rec.ID, payload, translator, logger)
		if err != nil {
			return nil, err
		}
		job.status = rec.Status
		return job, nil
	}
}

// ID returns the job's unique identifier
func (j *ScreenTranslationJob) ID() uuid.UUID { return j.id }

// Type returns TypeScreenTranslation
func (j *ScreenTranslationJob) Type() string { return TypeScreenTranslation }

// Payload returns the JSON encoded screen id and language
func (j *ScreenTranslationJob) Payload() []byte {
	b, err := json.Marshal(j.payload)
	if err != nil {
		// A struct of a UUID and a string always encodes.
		return nil
	}
	return b
}

// Status returns the job status as last seen by this instance
func (j *ScreenTranslationJob) Status() Status { return j.status }

// ScreenID returns the stable id of the screen being translated.
func (j *ScreenTranslationJob) ScreenID() uuid.UUID { return j.payload.ScreenUUID }

// Language returns the target language.
func (j *ScreenTranslationJob) Language() string { return j.payload.Language }

// Execute runs the translation.
func (j *ScreenTranslationJob) Execute(ctx context.Context) error {
	j.status = StatusProcessing
	j.logger.Info("translating screen")

	if err := j.translator.TranslateScreen(ctx, j.payload.ScreenUUID, j.payload.Language); err != nil {
		j.status = StatusFailed
		return fmt.Errorf("failed to translate screen %s: %w", j.payload.ScreenUUID, err)
	}

	j.status = StatusCompleted
	return nil
}
