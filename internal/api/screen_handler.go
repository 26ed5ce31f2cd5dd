package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/bpm-api/internal/api/shared"
	"github.com/phrazzld/bpm-api/internal/jobs"
	"github.com/phrazzld/bpm-api/internal/platform/logger"
	"github.com/phrazzld/bpm-api/internal/portability"
	"github.com/phrazzld/bpm-api/internal/service"
)

// TranslationRequester queues screen translations and reports on them.
type TranslationRequester interface {
	RequestTranslation(ctx context.Context, screenID int64, language string) (uuid.UUID, error)
	JobStatus(ctx context.Context, id uuid.UUID) (*jobs.Record, error)
}

// ScreenHandler serves screen export and translation requests.
type ScreenHandler struct {
	portability  service.PortabilityService
	translations TranslationRequester
	logger       *slog.Logger
}

// NewScreenHandler creates a new ScreenHandler.
func NewScreenHandler(
	portability service.PortabilityService,
	translations TranslationRequester,
	logger *slog.Logger,
) *ScreenHandler {
	if logger == nil {
		panic("logger cannot be nil for ScreenHandler")
	}
	return &ScreenHandler{
		portability:  portability,
		translations: translations,
		logger:       logger.With("component", "screen_handler"),
	}
}

// Export handles GET /api/screens/{id}/export.
// With view=tree the dependency tree is returned instead of the payload.
func (h *ScreenHandler) Export(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	screenID, err := getPathInt64(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	export, err := h.portability.ExportScreen(r.Context(), screenID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to export screen")
		return
	}

	log.Debug("screen exported",
		slog.Int64("screen_id", screenID),
		slog.Int("nodes", len(export.Payload.Nodes)))

	if r.URL.Query().Get("view") == "tree" {
		if export.Tree == nil {
			export.Tree = []portability.TreeNode{}
		}
		shared.RespondWithJSON(w, r, http.StatusOK, export.Tree)
		return
	}

	if len(export.Payload.Root) > 0 {
		w.Header().Set("Content-Disposition", `attachment; filename="screen-`+
			export.Payload.Root[0].String()+`.json"`)
	}
	shared.RespondWithJSON(w, r, http.StatusOK, export.Payload)
}

// RequestTranslation handles POST /api/screens/{id}/translations.
func (h *ScreenHandler) RequestTranslation(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	screenID, err := getPathInt64(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req TranslationRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	jobID, err := h.translations.RequestTranslation(r.Context(), screenID, req.Language)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to request translation")
		return
	}

	log.Info("screen translation queued",
		slog.Int64("screen_id", screenID),
		slog.String("language", req.Language),
		slog.String("job_id", jobID.String()))

	w.Header().Set("Location", "/api/jobs/"+jobID.String())
	shared.RespondWithJSON(w, r, http.StatusAccepted, JobResponse{
		ID:     jobID,
		Type:   jobs.TypeScreenTranslation,
		Status: string(jobs.StatusPending),
	})
}

// JobStatus handles GET /api/jobs/{id}.
func (h *ScreenHandler) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	rec, err := h.translations.JobStatus(r.Context(), jobID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get job status")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, jobToResponse(rec))
}
