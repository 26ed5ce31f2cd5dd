package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/bpm-api/internal/jobs"
	"github.com/phrazzld/bpm-api/internal/platform/logger"
	"github.com/phrazzld/bpm-api/internal/store"
)

// StringTranslator translates the strings of one screen.
// It is satisfied by *generation.Translator.
type StringTranslator interface {
	Translate(ctx context.Context, screenID int64, language string, texts []string) (map[string]string, error)
}

// JobQueue accepts background jobs and reports their state.
// It is satisfied by *jobs.Runner.
type JobQueue interface {
	Submit(ctx context.Context, job jobs.Job) error
	Status(ctx context.Context, id uuid.UUID) (*jobs.Record, error)
}

// TranslationService enqueues and runs screen translations.
type TranslationService struct {
	repo       store.Repository
	tx         store.Transactor
	translator StringTranslator
	queue      JobQueue
	logger     *slog.Logger
}

var _ jobs.ScreenTranslator = (*TranslationService)(nil)

// NewTranslationService creates a TranslationService.
func NewTranslationService(
	repo store.Repository,
	tx store.Transactor,
	translator StringTranslator,
	queue JobQueue,
	logger *slog.Logger,
) (*TranslationService, error) {
	if repo == nil || tx == nil {
		return nil, fmt.Errorf("repository and transactor cannot be nil")
	}
	if translator == nil {
		return nil, fmt.Errorf("translator cannot be nil")
	}
	if queue == nil {
		return nil, fmt.Errorf("job queue cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &TranslationService{
		repo:       repo,
		tx:         tx,
		translator: translator,
		queue:      queue,
		logger:     logger.With("component", "translation_service"),
	}, nil
}

// RequestTranslation enqueues a job translating the screen with local id
// screenID into language and returns the job id.
// Returns store.ErrScreenNotFound or ErrNothingToTranslate.
func (s *TranslationService) RequestTranslation(ctx context.Context, screenID int64, language string) (uuid.UUID, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	screen, err := s.repo.Screens().GetByID(ctx, screenID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to load screen %d: %w", screenID, err)
	}
	texts, err := screen.TranslatableStrings()
	if err != nil {
		return uuid.Nil, err
	}
	if len(texts) == 0 {
		return uuid.Nil, ErrNothingToTranslate
	}

	job, err := jobs.NewScreenTranslationJob(screen.UUID, language, s, log)
	if err != nil {
		return uuid.Nil, err
	}
	if err := s.queue.Submit(ctx, job); err != nil {
		return uuid.Nil, fmt.Errorf("failed to enqueue translation: %w", err)
	}

	log.InfoContext(ctx, "screen translation enqueued",
		slog.String("job_id", job.ID().String()),
		slog.Int64("screen_id", screenID),
		slog.String("language", job.Language()),
		slog.Int("strings", len(texts)))
	return job.ID(), nil
}

// JobStatus returns the persisted state of a translation job.
func (s *TranslationService) JobStatus(ctx context.Context, id uuid.UUID) (*jobs.Record, error) {
	return s.queue.Status(ctx, id)
}

// TranslateScreen implements jobs.ScreenTranslator. The model is called
// outside the transaction; the translations are then written to the
// current version of the screen so concurrent edits are kept.
func (s *TranslationService) TranslateScreen(ctx context.Context, screenID uuid.UUID, language string) error {
	language = strings.TrimSpace(language)

	screen, err := s.repo.Screens().GetByUUID(ctx, screenID)
	if err != nil {
		return fmt.Errorf("failed to load screen %s: %w", screenID, err)
	}
	texts, err := screen.TranslatableStrings()
	if err != nil {
		return err
	}
	if len(texts) == 0 {
		return ErrNothingToTranslate
	}

	translations, err := s.translator.Translate(ctx, screen.ID, language, texts)
	if err != nil {
		return err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, repo store.Repository) error {
		current, err := repo.Screens().GetByUUID(ctx, screenID)
		if err != nil {
			return err
		}
		if err := current.SetTranslations(language, translations); err != nil {
			return err
		}
		return repo.Screens().Update(ctx, current)
	})
	if err != nil {
		return fmt.Errorf("failed to store translations: %w", err)
	}

	s.logger.InfoContext(ctx, "screen translated",
		slog.String("screen_uuid", screenID.String()),
		slog.String("language", language),
		slog.Int("strings", len(texts)),
		slog.Int("translated", len(translations)))
	return nil
}
