package models

import (
	"time"

	"github.com/google/uuid"
)

// DependencyType classifies how the source entity uses the target.
type DependencyType string

const (
	DependencyTypeFK     DependencyType = "FK"
	DependencyTypeSelect DependencyType = "SELECT"
	DependencyTypeInsert DependencyType = "INSERT"
	DependencyTypeUpdate DependencyType = "UPDATE"
	DependencyTypeExec   DependencyType = "EXEC"
)

// Dependency is a directed, typed edge in the project dependency graph.
// Rows are unique per (project_id, source_type, source_id, target_type,
// target_id, dependency_type); re-detection refreshes score and timestamp
// through the repository upsert instead of inserting duplicates.
type Dependency struct {
	ID              uuid.UUID      `json:"id"`
	ProjectID       uuid.UUID      `json:"project_id"`
	Source          EntityRef      `json:"source"`
	Target          EntityRef      `json:"target"`
	DependencyType  DependencyType `json:"dependency_type"`
	ConfidenceScore float64        `json:"confidence_score"` // 0.0-1.0
	DiscoveredBy    string         `json:"discovered_by"`
	DiscoveredAt    time.Time      `json:"discovered_at"`
}
