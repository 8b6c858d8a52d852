package workflow

import (
	"context"
	"time"

	"github.com/pdcgo/procurement_service/procurement_core"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type WorkflowService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewWorkflowService(db *gorm.DB, log *zap.Logger) *WorkflowService {
	return &WorkflowService{
		db:  db,
		log: log,
	}
}

// Save validates and persists a workflow definition. A definition already
// referenced by an in-flight chain is immutable, saving under the same code
// deactivates it and inserts the next version instead.
func (s *WorkflowService) Save(ctx context.Context, wf *procurement_core.ApprovalWorkflow, actorID uint) (*procurement_core.ApprovalWorkflow, error) {
	if err := wf.Validate(); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current procurement_core.ApprovalWorkflow
		err := tx.Model(&procurement_core.ApprovalWorkflow{}).
			Where("workflow_code = ?", wf.WorkflowCode).
			Where("is_active = ?", true).
			Order("version desc").
			Limit(1).
			Find(&current).
			Error
		if err != nil {
			return err
		}

		wf.Version = 1
		if current.ID != 0 {
			var inFlight int64
			err = tx.Model(&procurement_core.ApprovalRequest{}).
				Where("workflow_id = ?", current.ID).
				Where("status IN ?", []procurement_core.ApprovalRequestStatus{
					procurement_core.RequestQueued,
					procurement_core.RequestPending,
				}).
				Count(&inFlight).
				Error
			if err != nil {
				return err
			}

			err = tx.Model(&procurement_core.ApprovalWorkflow{}).
				Where("id = ?", current.ID).
				Update("is_active", false).
				Error
			if err != nil {
				return err
			}

			wf.Version = current.Version + 1

			if inFlight > 0 {
				s.log.Info("workflow referenced by in-flight chains, versioning up",
					zap.String("workflow_code", wf.WorkflowCode),
					zap.Int("new_version", wf.Version),
					zap.Int64("in_flight", inFlight),
				)
			}
		}

		wf.ID = 0
		wf.IsActive = true
		wf.CreatedAt = time.Now()
		wf.CreatedByID = actorID
		for _, level := range wf.Levels {
			level.ID = 0
			level.WorkflowID = 0
			level.IsActive = true
			level.CreatedAt = time.Now()
		}

		return tx.Create(wf).Error
	})

	if err != nil {
		return nil, err
	}

	return wf, nil
}

// ByID loads a workflow version with its levels.
func (s *WorkflowService) ByID(ctx context.Context, workflowID uint) (*procurement_core.ApprovalWorkflow, error) {
	var wf procurement_core.ApprovalWorkflow

	err := s.db.WithContext(ctx).
		Preload("Levels", func(db *gorm.DB) *gorm.DB {
			return db.Order("level_number asc")
		}).
		Model(&procurement_core.ApprovalWorkflow{}).
		Where("id = ?", workflowID).
		Find(&wf).
		Error
	if err != nil {
		return nil, err
	}

	if wf.ID == 0 {
		return nil, &procurement_core.ValidationError{Field: "workflow_id", Reason: "not found"}
	}

	return &wf, nil
}
