package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/relgraph/relgraph-engine/pkg/models"
	"github.com/relgraph/relgraph-engine/pkg/services"
)

// ImpactHandler exposes impact analysis.
type ImpactHandler struct {
	impact services.ImpactService
	logger *zap.Logger
}

// NewImpactHandler creates a new ImpactHandler.
func NewImpactHandler(impact services.ImpactService, logger *zap.Logger) *ImpactHandler {
	return &ImpactHandler{impact: impact, logger: logger.Named("impact-handler")}
}

// RegisterRoutes registers the impact routes on the given mux.
func (h *ImpactHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/projects/{pid}/impact", h.Analyze)
}

// Analyze handles GET /api/projects/{pid}/impact.
// Query parameters: entity_type, entity_id, change_type.
func (h *ImpactHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	q := r.URL.Query()

	entityType := models.EntityType(strings.ToUpper(q.Get("entity_type")))
	if !models.IsValidEntityType(entityType) {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_entity_type", "Unknown entity_type")
		return
	}

	entityID, err := strconv.ParseInt(q.Get("entity_id"), 10, 64)
	if err != nil || entityID <= 0 {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_entity_id", "entity_id must be a positive integer")
		return
	}

	changeType := models.ChangeType(strings.ToUpper(q.Get("change_type")))
	if !models.IsValidChangeType(changeType) {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_change_type", "change_type must be MODIFY or DELETE")
		return
	}

	report, err := h.impact.Analyze(r.Context(), projectID,
		models.EntityRef{Type: entityType, ID: entityID}, changeType)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, report); err != nil {
		h.logger.Error("Failed to encode impact report", zap.Error(err))
	}
}
