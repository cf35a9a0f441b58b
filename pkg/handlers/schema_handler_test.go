package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/relgraph/relgraph-engine/pkg/adapters/datasource"
	"github.com/relgraph/relgraph-engine/pkg/apperrors"
	"github.com/relgraph/relgraph-engine/pkg/services"
)

func newSchemaMux(sync services.SchemaSyncService, repo *mockSchemaRepo, open func(r *http.Request, kind, connectionString string) (datasource.SchemaSource, error)) *http.ServeMux {
	h := NewSchemaHandler(sync, repo, zap.NewNop())
	if open != nil {
		h.openSource = open
	}
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}

func TestSchemaHandler_Sync(t *testing.T) {
	projectID := uuid.New()
	source := &stubSchemaSource{kind: "postgres"}

	var gotProject uuid.UUID
	sync := &mockSchemaSyncService{
		syncFn: func(ctx context.Context, pid uuid.UUID, src datasource.SchemaSource) (*services.SyncResult, error) {
			gotProject = pid
			return &services.SyncResult{Tables: 3, Columns: 12, Routines: 2, ForeignKeys: 1}, nil
		},
	}
	mux := newSchemaMux(sync, &mockSchemaRepo{}, func(r *http.Request, kind, connStr string) (datasource.SchemaSource, error) {
		assert.Equal(t, "postgres", kind)
		return source, nil
	})

	body := `{"kind": "postgres", "connection_string": "host=db user=app password=x"}`
	req := httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/api/projects/%s/schema/sync", projectID), strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, projectID, gotProject)
	assert.Contains(t, rec.Body.String(), `"tables":3`)
	assert.True(t, source.closed, "source must be closed after sync")
}

func TestSchemaHandler_SyncMissingConnectionString(t *testing.T) {
	mux := newSchemaMux(&mockSchemaSyncService{}, &mockSchemaRepo{}, nil)

	req := httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/api/projects/%s/schema/sync", uuid.New()), strings.NewReader(`{"kind": "postgres"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_body")
}

func TestSchemaHandler_SyncUnreachableSourceRedactsCredentials(t *testing.T) {
	mux := newSchemaMux(&mockSchemaSyncService{}, &mockSchemaRepo{}, func(r *http.Request, kind, connStr string) (datasource.SchemaSource, error) {
		return nil, errors.New("failed to connect to postgres://app:hunter2@db:5432/prod")
	})

	body := `{"kind": "postgres", "connection_string": "postgres://app:hunter2@db:5432/prod"}`
	req := httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/api/projects/%s/schema/sync", uuid.New()), strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "datasource_unreachable")
	assert.NotContains(t, rec.Body.String(), "hunter2")
}

func TestSchemaHandler_SetCriticality(t *testing.T) {
	projectID := uuid.New()

	var gotTable int64
	var gotLevel int
	repo := &mockSchemaRepo{
		setCriticalityFn: func(ctx context.Context, pid uuid.UUID, tableID int64, level int) error {
			gotTable, gotLevel = tableID, level
			return nil
		},
	}
	mux := newSchemaMux(&mockSchemaSyncService{}, repo, nil)

	req := httptest.NewRequest(http.MethodPut,
		fmt.Sprintf("/api/projects/%s/tables/42/criticality", projectID), strings.NewReader(`{"level": 5}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(42), gotTable)
	assert.Equal(t, 5, gotLevel)
}

func TestSchemaHandler_SetCriticalityValidation(t *testing.T) {
	repo := &mockSchemaRepo{
		setCriticalityFn: func(ctx context.Context, pid uuid.UUID, tableID int64, level int) error {
			return apperrors.ErrNotFound
		},
	}
	mux := newSchemaMux(&mockSchemaSyncService{}, repo, nil)

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
	}{
		{"level out of range", "/api/projects/%s/tables/42/criticality", `{"level": 0}`, http.StatusBadRequest},
		{"bad table id", "/api/projects/%s/tables/abc/criticality", `{"level": 3}`, http.StatusBadRequest},
		{"unknown table", "/api/projects/%s/tables/42/criticality", `{"level": 3}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut,
				fmt.Sprintf(tt.path, uuid.New()), strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
