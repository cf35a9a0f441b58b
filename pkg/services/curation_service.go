package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relgraph/relgraph-engine/pkg/apperrors"
	"github.com/relgraph/relgraph-engine/pkg/detect"
	"github.com/relgraph/relgraph-engine/pkg/models"
	"github.com/relgraph/relgraph-engine/pkg/repositories"
)

// ManualFKRequest carries a user-authored logical FK.
type ManualFKRequest struct {
	ProjectID       uuid.UUID
	SourceTableID   int64
	SourceColumnIDs []int64
	TargetTableID   int64
	TargetColumnIDs []int64
	Actor           string
	Notes           *string
}

// CurationService drives the logical FK state machine. Status moves
// through a compare-and-set in the repository, so two users acting on
// the same suggestion race safely: one wins, the other gets a conflict.
type CurationService interface {
	// Confirm moves a SUGGESTED or REJECTED edge to CONFIRMED and
	// records who confirmed it. Confirming a CONFIRMED edge is an
	// invalid transition.
	Confirm(ctx context.Context, id uuid.UUID, actor string) (*models.LogicalForeignKey, error)

	// Reject moves a SUGGESTED or CONFIRMED edge to REJECTED, capturing
	// the confidence score at rejection time so re-detection can report
	// whether the signal has since strengthened.
	Reject(ctx context.Context, id uuid.UUID, actor string, reason *string) (*models.LogicalForeignKey, error)

	// CreateManual inserts a user-authored edge, born CONFIRMED with
	// full confidence. Advisory warnings (type mismatch, self
	// reference) never block creation.
	CreateManual(ctx context.Context, req ManualFKRequest) (*models.LogicalForeignKey, []string, error)

	// Delete removes an edge in any state.
	Delete(ctx context.Context, id uuid.UUID) error

	ListByTable(ctx context.Context, projectID uuid.UUID, tableID int64) ([]*models.LogicalForeignKey, error)
}

type curationService struct {
	logicalRepo repositories.LogicalFKRepository
	schemaRepo  repositories.SchemaRepository
	logger      *zap.Logger
}

// NewCurationService creates a new CurationService.
func NewCurationService(
	logicalRepo repositories.LogicalFKRepository,
	schemaRepo repositories.SchemaRepository,
	logger *zap.Logger,
) CurationService {
	return &curationService{
		logicalRepo: logicalRepo,
		schemaRepo:  schemaRepo,
		logger:      logger.Named("curation"),
	}
}

var _ CurationService = (*curationService)(nil)

func (s *curationService) Confirm(ctx context.Context, id uuid.UUID, actor string) (*models.LogicalForeignKey, error) {
	return s.transition(ctx, id, models.LogicalFKStatusConfirmed, func(fk *models.LogicalForeignKey) {
		now := time.Now()
		fk.Status = models.LogicalFKStatusConfirmed
		fk.ConfirmedBy = &actor
		fk.ConfirmedAt = &now
		fk.RejectedScore = nil
	})
}

func (s *curationService) Reject(ctx context.Context, id uuid.UUID, actor string, reason *string) (*models.LogicalForeignKey, error) {
	fk, err := s.transition(ctx, id, models.LogicalFKStatusRejected, func(fk *models.LogicalForeignKey) {
		score := fk.ConfidenceScore
		fk.Status = models.LogicalFKStatusRejected
		fk.RejectedScore = &score
		fk.ConfirmedBy = nil
		fk.ConfirmedAt = nil
		if reason != nil {
			fk.Notes = reason
		}
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("logical fk rejected",
		zap.String("id", id.String()),
		zap.String("actor", actor))
	return fk, nil
}

// transition applies a status change through a compare-and-set with a
// single retry on interleaved writes.
func (s *curationService) transition(
	ctx context.Context,
	id uuid.UUID,
	to models.LogicalFKStatus,
	apply func(*models.LogicalForeignKey),
) (*models.LogicalForeignKey, error) {
	for attempt := 0; attempt < 2; attempt++ {
		fk, err := s.logicalRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !models.ValidTransition(fk.Status, to) {
			return nil, fmt.Errorf("cannot move logical fk from %s to %s: %w",
				fk.Status, to, apperrors.ErrInvalidTransition)
		}

		expected := fk.Status
		apply(fk)
		ok, err := s.logicalRepo.SetStatus(ctx, id, expected, fk)
		if err != nil {
			return nil, err
		}
		if ok {
			return fk, nil
		}
		// Lost the race; re-read and re-check the transition once.
	}
	return nil, fmt.Errorf("logical fk changed concurrently: %w", apperrors.ErrConflict)
}

func (s *curationService) CreateManual(ctx context.Context, req ManualFKRequest) (*models.LogicalForeignKey, []string, error) {
	now := time.Now()
	fk := &models.LogicalForeignKey{
		ProjectID:        req.ProjectID,
		SourceTableID:    req.SourceTableID,
		SourceColumnIDs:  req.SourceColumnIDs,
		TargetTableID:    req.TargetTableID,
		TargetColumnIDs:  req.TargetColumnIDs,
		DiscoveryMethod:  models.DiscoveryMethodManual,
		DiscoveryMethods: []models.DiscoveryMethod{models.DiscoveryMethodManual},
		ConfidenceScore:  1.0,
		Status:           models.LogicalFKStatusConfirmed,
		ConfirmedBy:      &req.Actor,
		ConfirmedAt:      &now,
		Notes:            req.Notes,
	}
	if err := fk.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %s", apperrors.ErrInvalidReference, err)
	}

	snap, err := s.schemaRepo.GetSnapshot(ctx, req.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load schema snapshot: %w", err)
	}
	warnings, err := validateManualFK(snap, fk)
	if err != nil {
		return nil, nil, err
	}

	if err := s.logicalRepo.CreateManual(ctx, fk); err != nil {
		return nil, nil, err
	}

	s.logger.Info("manual logical fk created",
		zap.String("id", fk.ID.String()),
		zap.String("actor", req.Actor),
		zap.Int64("source_table", fk.SourceTableID),
		zap.Int64("target_table", fk.TargetTableID))

	return fk, warnings, nil
}

// validateManualFK checks that every referenced entity exists and
// belongs where the request says it does. Type incompatibilities and
// self references are advisory only: the user may know better.
func validateManualFK(snap *models.SchemaSnapshot, fk *models.LogicalForeignKey) ([]string, error) {
	if _, ok := snap.TableByID(fk.SourceTableID); !ok {
		return nil, fmt.Errorf("source table %d not found: %w", fk.SourceTableID, apperrors.ErrInvalidReference)
	}
	if _, ok := snap.TableByID(fk.TargetTableID); !ok {
		return nil, fmt.Errorf("target table %d not found: %w", fk.TargetTableID, apperrors.ErrInvalidReference)
	}

	var warnings []string
	for i := range fk.SourceColumnIDs {
		srcCol, ok := snap.ColumnByID(fk.SourceColumnIDs[i])
		if !ok {
			return nil, fmt.Errorf("source column %d not found: %w", fk.SourceColumnIDs[i], apperrors.ErrInvalidReference)
		}
		if owner, _ := snap.TableForColumn(srcCol.ID); owner == nil || owner.ID != fk.SourceTableID {
			return nil, fmt.Errorf("column %d does not belong to table %d: %w",
				srcCol.ID, fk.SourceTableID, apperrors.ErrInvalidReference)
		}
		tgtCol, ok := snap.ColumnByID(fk.TargetColumnIDs[i])
		if !ok {
			return nil, fmt.Errorf("target column %d not found: %w", fk.TargetColumnIDs[i], apperrors.ErrInvalidReference)
		}
		if owner, _ := snap.TableForColumn(tgtCol.ID); owner == nil || owner.ID != fk.TargetTableID {
			return nil, fmt.Errorf("column %d does not belong to table %d: %w",
				tgtCol.ID, fk.TargetTableID, apperrors.ErrInvalidReference)
		}
		if !detect.TypeCompatible(srcCol.DataType, tgtCol.DataType) {
			warnings = append(warnings, fmt.Sprintf("column types differ: %s (%s) vs %s (%s)",
				srcCol.Name, srcCol.DataType, tgtCol.Name, tgtCol.DataType))
		}
	}
	if fk.SelfReferential() {
		warnings = append(warnings, "relationship is self-referential")
	}
	return warnings, nil
}

func (s *curationService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.logicalRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("logical fk deleted", zap.String("id", id.String()))
	return nil
}

func (s *curationService) ListByTable(ctx context.Context, projectID uuid.UUID, tableID int64) ([]*models.LogicalForeignKey, error) {
	return s.logicalRepo.ListByTable(ctx, projectID, tableID)
}
