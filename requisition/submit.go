package requisition

import (
	"context"
	"time"

	"github.com/pdcgo/procurement_service/budget"
	"github.com/pdcgo/procurement_service/procurement_core"
	"github.com/pdcgo/procurement_service/workflow"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Submit moves a draft into its approval chain. In one transaction the
// estimated total is committed against the budget, the workflow is resolved
// and one approval request per applicable level is created. A failed budget
// check aborts the whole submit, the requisition stays a draft.
func (s *RequisitionService) Submit(ctx context.Context, requisitionID uint, actorID uint) (*procurement_core.Requisition, error) {
	var req *procurement_core.Requisition

	err := procurement_core.OpenTransaction(ctx, s.db, func(tx *gorm.DB, evmng procurement_core.EventManage) error {
		var err error
		req, err = lockRequisition(tx, requisitionID)
		if err != nil {
			return err
		}

		if req.Status != procurement_core.StatusDraft {
			return &procurement_core.ConcurrencyConflictError{
				Entity: "requisition",
				ID:     req.ID,
				Reason: "submit requires draft, found " + string(req.Status),
			}
		}
		if req.RequestedByID != actorID {
			return &procurement_core.AuthorizationError{
				ActorID: actorID,
				Reason:  "only the requester can submit",
			}
		}

		err = tx.Model(&procurement_core.RequisitionItem{}).
			Where("requisition_id = ?", req.ID).
			Order("line_number asc").
			Find(&req.Items).
			Error
		if err != nil {
			return err
		}

		if err = validateForSubmit(tx, req); err != nil {
			return err
		}

		total := req.ComputeTotal()
		req.EstimatedTotalValue = total

		now := time.Now()
		err = setStatus(tx, evmng, req, procurement_core.StatusSubmitted, actorID, "submitted for approval", map[string]any{
			"submitted_at":          now,
			"estimated_total_value": total,
		})
		if err != nil {
			return err
		}

		commit := budget.NewCommit(tx).
			Budget(req.BudgetID).
			Source(procurement_core.NewDocRef(&procurement_core.DocRefData{
				DocType: procurement_core.RequisitionDoc,
				ID:      req.ID,
			})).
			Amount(total).
			Desc("commitment for " + req.RequisitionNumber).
			CreatedBy(actorID)
		if req.AllocationID != nil {
			commit = commit.Allocation(*req.AllocationID)
		}
		if err = commit.Exec(evmng).Err(); err != nil {
			return err
		}
		req.CommitTransactionID = &commit.Data().ID

		resolution, err := s.resolver.Resolve(ctx, tx, &workflow.ResolveQuery{
			DocumentType: procurement_core.RequisitionDoc,
			UnitID:       req.UnitID,
			Category:     req.Category,
			Amount:       total,
			Currency:     req.Currency,
		})
		if err != nil {
			return err
		}

		req.WorkflowID = &resolution.Workflow.ID
		req.RequiresApprovalLevels = len(resolution.Levels)

		// Every amount-applicable level was skipped by threshold, nothing to
		// approve.
		if len(resolution.Levels) == 0 {
			return setStatus(tx, evmng, req, procurement_core.StatusApproved, actorID, "auto-approved, no applicable levels", map[string]any{
				"workflow_id":              resolution.Workflow.ID,
				"requires_approval_levels": 0,
				"approval_level":           0,
				"commit_transaction_id":    req.CommitTransactionID,
				"approved_at":              time.Now(),
			})
		}

		if err = s.openRequests(tx, req, resolution); err != nil {
			return err
		}

		req.ApprovalLevel = resolution.Levels[0].Level.LevelNumber
		return setStatus(tx, evmng, req, procurement_core.StatusPendingApproval, actorID, "approval chain opened", map[string]any{
			"workflow_id":              resolution.Workflow.ID,
			"requires_approval_levels": req.RequiresApprovalLevels,
			"approval_level":           req.ApprovalLevel,
			"commit_transaction_id":    req.CommitTransactionID,
		})
	})

	if err != nil {
		return nil, err
	}

	s.log.Info("requisition submitted",
		zap.Uint("requisition_id", req.ID),
		zap.String("status", string(req.Status)),
		zap.Float64("committed", req.EstimatedTotalValue),
	)

	return req, nil
}

func validateForSubmit(tx *gorm.DB, req *procurement_core.Requisition) error {
	if len(req.Items) == 0 {
		return &procurement_core.ValidationError{Field: "items", Reason: "at least one line item required"}
	}
	if !req.RequiredByDate.After(time.Now()) {
		return &procurement_core.ValidationError{Field: "required_by_date", Reason: "must be in the future"}
	}

	var bud procurement_core.Budget
	err := tx.Model(&procurement_core.Budget{}).
		Where("id = ?", req.BudgetID).
		Find(&bud).
		Error
	if err != nil {
		return err
	}
	if bud.ID == 0 {
		return &procurement_core.ValidationError{Field: "budget_id", Reason: "budget not found"}
	}
	if bud.Currency != req.Currency {
		return &procurement_core.ValidationError{
			Field:  "currency",
			Reason: "requisition currency " + req.Currency + " does not match budget " + bud.Currency,
		}
	}

	return nil
}

// openRequests creates one approval request per applicable level up front so
// the resolution snapshot survives role changes. Sequential chains keep later
// levels queued, parallel chains open everything at once.
func (s *RequisitionService) openRequests(tx *gorm.DB, req *procurement_core.Requisition, resolution *workflow.Resolution) error {
	now := time.Now()

	for idx, resolved := range resolution.Levels {
		status := procurement_core.RequestQueued
		if idx == 0 || resolution.Workflow.ParallelApproval {
			status = procurement_core.RequestPending
		}

		request := procurement_core.ApprovalRequest{
			RequestNumber:     newRequestNumber(),
			RequisitionID:     req.ID,
			WorkflowID:        resolution.Workflow.ID,
			LevelID:           resolved.Level.ID,
			LevelNumber:       resolved.Level.LevelNumber,
			CandidateIDs:      resolved.CandidateIDs,
			AssignedRole:      resolved.AssignedRole,
			ApprovalsRequired: resolved.ApprovalsRequired,
			Amount:            req.EstimatedTotalValue,
			Currency:          req.Currency,
			Status:            status,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if len(resolved.CandidateIDs) == 1 {
			request.AssignedToID = &resolved.CandidateIDs[0]
		}
		if status == procurement_core.RequestPending {
			request.AssignedAt = now
			due := now.Add(time.Duration(resolved.Level.TimeoutHours) * time.Hour)
			request.DueDate = &due
		}

		if err := tx.Create(&request).Error; err != nil {
			return err
		}
	}

	return nil
}
