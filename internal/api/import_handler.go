package api

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/phrazzld/bpm-api/internal/api/shared"
	"github.com/phrazzld/bpm-api/internal/platform/logger"
	"github.com/phrazzld/bpm-api/internal/portability"
	"github.com/phrazzld/bpm-api/internal/service"
)

// ImportHandler serves payload imports.
type ImportHandler struct {
	portability service.PortabilityService
	logger      *slog.Logger
}

// NewImportHandler creates a new ImportHandler.
func NewImportHandler(portability service.PortabilityService, logger *slog.Logger) *ImportHandler {
	if logger == nil {
		panic("logger cannot be nil for ImportHandler")
	}
	return &ImportHandler{
		portability: portability,
		logger:      logger.With("component", "import_handler"),
	}
}

// Import handles POST /api/import.
//
// A successful import answers 201 with the per-node result. Aborted imports
// answer 422 for invalid nodes, 409 for duplicate stable ids and 400 for
// reference integrity or schema errors.
func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req ImportRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		HandleAPIError(w, r, err, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	options, err := portability.NewOptions(req.Options)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	payload, err := portability.DecodePayload(bytes.NewReader(req.Payload))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	result, err := h.portability.Import(r.Context(), payload, options)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to import payload")
		return
	}

	log.Info("payload imported",
		slog.Int("nodes", len(result.Nodes)),
		slog.Int("invalid", len(result.Errors)),
		slog.String("options", options.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, result)
}
