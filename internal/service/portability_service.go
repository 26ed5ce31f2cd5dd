package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/bpm-api/internal/platform/logger"
	"github.com/phrazzld/bpm-api/internal/portability"
	"github.com/phrazzld/bpm-api/internal/store"
)

// PortabilityObserver is notified when an export or import finishes.
type PortabilityObserver interface {
	ExportFinished(nodes int, elapsed time.Duration, err error)
	ImportFinished(result *portability.Result, elapsed time.Duration, err error)
}

// ScreenExport is the result of exporting one screen.
type ScreenExport struct {
	Payload *portability.Payload
	Tree    []portability.TreeNode
}

// PortabilityService exports screens and imports payloads.
type PortabilityService interface {
	// ExportScreen exports the screen with local id screenID and everything it depends on.
	// Returns store.ErrScreenNotFound if the screen does not exist.
	ExportScreen(ctx context.Context, screenID int64) (*ScreenExport, error)

	// Import writes payload in a single transaction.
	// A nil options means portability.DefaultOptions.
	Import(ctx context.Context, payload *portability.Payload, options *portability.Options) (*portability.Result, error)
}

// portabilityService implements the PortabilityService interface
type portabilityService struct {
	repo     store.Repository
	tx       store.Transactor
	observer PortabilityObserver
	logger   *slog.Logger
}

var _ PortabilityService = (*portabilityService)(nil)

// NewPortabilityService creates a PortabilityService. Exports read from repo;
// imports run through tx. observer may be nil.
func NewPortabilityService(
	repo store.Repository,
	tx store.Transactor,
	observer PortabilityObserver,
	logger *slog.Logger,
) (PortabilityService, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository cannot be nil")
	}
	if tx == nil {
		return nil, fmt.Errorf("transactor cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &portabilityService{
		repo:     repo,
		tx:       tx,
		observer: observer,
		logger:   logger.With("component", "portability_service"),
	}, nil
}

// ExportScreen implements PortabilityService.
func (s *portabilityService) ExportScreen(ctx context.Context, screenID int64) (export *ScreenExport, err error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	start := time.Now()
	nodes := 0
	defer func() {
		if s.observer != nil {
			s.observer.ExportFinished(nodes, time.Since(start), err)
		}
	}()

	screen, err := s.repo.Screens().GetByID(ctx, screenID)
	if err != nil {
		return nil, fmt.Errorf("failed to load screen %d: %w", screenID, err)
	}

	exporter := portability.NewExporter(s.repo, log)
	if err := exporter.ExportScreen(ctx, screen); err != nil {
		log.WarnContext(ctx, "screen export failed",
			slog.Int64("screen_id", screenID),
			slog.String("error", err.Error()))
		return nil, err
	}

	payload := exporter.Payload()
	nodes = len(payload.Nodes)
	log.InfoContext(ctx, "screen exported",
		slog.Int64("screen_id", screenID),
		slog.String("screen_uuid", screen.UUID.String()),
		slog.Int("nodes", nodes))

	return &ScreenExport{
		Payload: payload,
		Tree:    portability.View(exporter.Tree()),
	}, nil
}

// Import implements PortabilityService.
func (s *portabilityService) Import(
	ctx context.Context,
	payload *portability.Payload,
	options *portability.Options,
) (result *portability.Result, err error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	start := time.Now()
	defer func() {
		if s.observer != nil {
			s.observer.ImportFinished(result, time.Since(start), err)
		}
	}()

	result, err = portability.NewImporter(s.tx, payload, options, log).DoImport(ctx)
	if err != nil {
		log.WarnContext(ctx, "import failed", slog.String("error", err.Error()))
		return nil, err
	}
	return result, nil
}
