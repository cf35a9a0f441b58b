package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/relgraph/relgraph-engine/pkg/adapters/datasource"
	"github.com/relgraph/relgraph-engine/pkg/logging"
	"github.com/relgraph/relgraph-engine/pkg/repositories"
	"github.com/relgraph/relgraph-engine/pkg/services"
)

// SchemaHandler exposes schema sync and table metadata curation.
type SchemaHandler struct {
	sync       services.SchemaSyncService
	schemaRepo repositories.SchemaRepository
	openSource func(r *http.Request, kind, connectionString string) (datasource.SchemaSource, error)
	logger     *zap.Logger
}

// NewSchemaHandler creates a new SchemaHandler.
func NewSchemaHandler(
	sync services.SchemaSyncService,
	schemaRepo repositories.SchemaRepository,
	logger *zap.Logger,
) *SchemaHandler {
	return &SchemaHandler{
		sync:       sync,
		schemaRepo: schemaRepo,
		openSource: func(r *http.Request, kind, connectionString string) (datasource.SchemaSource, error) {
			return datasource.New(r.Context(), kind, connectionString, logger)
		},
		logger: logger.Named("schema-handler"),
	}
}

// RegisterRoutes registers the schema routes on the given mux.
func (h *SchemaHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/projects/{pid}/schema/sync", h.Sync)
	mux.HandleFunc("PUT /api/projects/{pid}/tables/{tid}/criticality", h.SetCriticality)
}

type syncRequest struct {
	Kind             string `json:"kind"`
	ConnectionString string `json:"connection_string"`
}

// Sync handles POST /api/projects/{pid}/schema/sync.
func (h *SchemaHandler) Sync(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ConnectionString == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_body", "kind and connection_string are required")
		return
	}

	source, err := h.openSource(r, req.Kind, req.ConnectionString)
	if err != nil {
		// Driver errors routinely echo the DSN back; never return
		// credentials to the caller.
		_ = ErrorResponse(w, http.StatusBadGateway, "datasource_unreachable", logging.SanitizeError(err))
		return
	}
	defer func() {
		if err := source.Close(); err != nil {
			h.logger.Warn("failed to close datasource", zap.Error(err))
		}
	}()

	result, err := h.sync.Sync(r.Context(), projectID, source)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode sync result", zap.Error(err))
	}
}

type criticalityRequest struct {
	Level int `json:"level"`
}

// SetCriticality handles PUT /api/projects/{pid}/tables/{tid}/criticality.
func (h *SchemaHandler) SetCriticality(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	tableID, ok := ParseTableID(w, r, h.logger)
	if !ok {
		return
	}

	var req criticalityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_body", "Invalid request body")
		return
	}
	if req.Level < 1 || req.Level > 5 {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_level", "level must be between 1 and 5")
		return
	}

	if err := h.schemaRepo.SetTableCriticality(r.Context(), projectID, tableID, req.Level); err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
