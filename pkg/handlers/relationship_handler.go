package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/relgraph/relgraph-engine/pkg/services"
)

// RelationshipHandler exposes detection and logical FK curation.
type RelationshipHandler struct {
	detection services.DetectionService
	curation  services.CurationService
	logger    *zap.Logger
}

// NewRelationshipHandler creates a new RelationshipHandler.
func NewRelationshipHandler(
	detection services.DetectionService,
	curation services.CurationService,
	logger *zap.Logger,
) *RelationshipHandler {
	return &RelationshipHandler{
		detection: detection,
		curation:  curation,
		logger:    logger.Named("relationship-handler"),
	}
}

// RegisterRoutes registers the relationship routes on the given mux.
func (h *RelationshipHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/projects/{pid}/detect", h.Detect)
	mux.HandleFunc("GET /api/projects/{pid}/tables/{tid}/logical-fks", h.ListByTable)
	mux.HandleFunc("POST /api/projects/{pid}/logical-fks", h.CreateManual)
	mux.HandleFunc("POST /api/projects/{pid}/logical-fks/{fkid}/confirm", h.Confirm)
	mux.HandleFunc("POST /api/projects/{pid}/logical-fks/{fkid}/reject", h.Reject)
	mux.HandleFunc("DELETE /api/projects/{pid}/logical-fks/{fkid}", h.Delete)
}

// Detect handles POST /api/projects/{pid}/detect.
func (h *RelationshipHandler) Detect(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.detection.DetectCandidates(r.Context(), projectID)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode detection result", zap.Error(err))
	}
}

// ListByTable handles GET /api/projects/{pid}/tables/{tid}/logical-fks.
func (h *RelationshipHandler) ListByTable(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	tableID, ok := ParseTableID(w, r, h.logger)
	if !ok {
		return
	}

	fks, err := h.curation.ListByTable(r.Context(), projectID, tableID)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{"logical_fks": fks}); err != nil {
		h.logger.Error("Failed to encode logical fks", zap.Error(err))
	}
}

type createManualRequest struct {
	SourceTableID   int64   `json:"source_table_id"`
	SourceColumnIDs []int64 `json:"source_column_ids"`
	TargetTableID   int64   `json:"target_table_id"`
	TargetColumnIDs []int64 `json:"target_column_ids"`
	Notes           *string `json:"notes,omitempty"`
}

// CreateManual handles POST /api/projects/{pid}/logical-fks.
func (h *RelationshipHandler) CreateManual(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var req createManualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_body", "Invalid request body")
		return
	}

	fk, warnings, err := h.curation.CreateManual(r.Context(), services.ManualFKRequest{
		ProjectID:       projectID,
		SourceTableID:   req.SourceTableID,
		SourceColumnIDs: req.SourceColumnIDs,
		TargetTableID:   req.TargetTableID,
		TargetColumnIDs: req.TargetColumnIDs,
		Actor:           Actor(r),
		Notes:           req.Notes,
	})
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, map[string]any{
		"logical_fk": fk,
		"warnings":   warnings,
	}); err != nil {
		h.logger.Error("Failed to encode created logical fk", zap.Error(err))
	}
}

// Confirm handles POST /api/projects/{pid}/logical-fks/{fkid}/confirm.
func (h *RelationshipHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseProjectID(w, r, h.logger); !ok {
		return
	}
	fkID, ok := ParseFKID(w, r, h.logger)
	if !ok {
		return
	}

	fk, err := h.curation.Confirm(r.Context(), fkID, Actor(r))
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, fk); err != nil {
		h.logger.Error("Failed to encode confirmed logical fk", zap.Error(err))
	}
}

type rejectRequest struct {
	Reason *string `json:"reason,omitempty"`
}

// Reject handles POST /api/projects/{pid}/logical-fks/{fkid}/reject.
func (h *RelationshipHandler) Reject(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseProjectID(w, r, h.logger); !ok {
		return
	}
	fkID, ok := ParseFKID(w, r, h.logger)
	if !ok {
		return
	}

	var req rejectRequest
	if r.Body != nil {
		// an empty body means no reason
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	fk, err := h.curation.Reject(r.Context(), fkID, Actor(r), req.Reason)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, fk); err != nil {
		h.logger.Error("Failed to encode rejected logical fk", zap.Error(err))
	}
}

// Delete handles DELETE /api/projects/{pid}/logical-fks/{fkid}.
func (h *RelationshipHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseProjectID(w, r, h.logger); !ok {
		return
	}
	fkID, ok := ParseFKID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.curation.Delete(r.Context(), fkID); err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
