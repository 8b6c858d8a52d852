package requisition

import (
	"context"

	"github.com/pdcgo/procurement_service/procurement_core"
	"gorm.io/gorm"
)

type RequisitionDetail struct {
	*procurement_core.Requisition
	Requests []*procurement_core.ApprovalRequest `json:"requests"`
}

// Detail loads a requisition with its lines, decision history and chain state.
func (s *RequisitionService) Detail(ctx context.Context, requisitionID uint) (*RequisitionDetail, error) {
	var req procurement_core.Requisition

	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("line_number asc")
		}).
		Preload("Approvals", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at asc")
		}).
		Model(&procurement_core.Requisition{}).
		Where("id = ?", requisitionID).
		Where("is_deleted = ?", false).
		Find(&req).
		Error
	if err != nil {
		return nil, err
	}

	if req.ID == 0 {
		return nil, &procurement_core.ValidationError{Field: "requisition_id", Reason: "not found"}
	}

	detail := RequisitionDetail{Requisition: &req}

	err = s.db.WithContext(ctx).
		Model(&procurement_core.ApprovalRequest{}).
		Where("requisition_id = ?", req.ID).
		Order("level_number asc").
		Find(&detail.Requests).
		Error
	if err != nil {
		return nil, err
	}

	return &detail, nil
}

// GetWorkflow returns the workflow version a submitted requisition is pinned
// to, with its levels.
func (s *RequisitionService) GetWorkflow(ctx context.Context, requisitionID uint) (*procurement_core.ApprovalWorkflow, error) {
	var req procurement_core.Requisition
	err := s.db.WithContext(ctx).
		Model(&procurement_core.Requisition{}).
		Where("id = ?", requisitionID).
		Where("is_deleted = ?", false).
		Find(&req).
		Error
	if err != nil {
		return nil, err
	}
	if req.ID == 0 {
		return nil, &procurement_core.ValidationError{Field: "requisition_id", Reason: "not found"}
	}
	if req.WorkflowID == nil {
		return nil, &procurement_core.ValidationError{Field: "workflow", Reason: "requisition has no resolved workflow"}
	}

	var wf procurement_core.ApprovalWorkflow
	err = s.db.WithContext(ctx).
		Preload("Levels", func(db *gorm.DB) *gorm.DB {
			return db.Order("level_number asc")
		}).
		Model(&procurement_core.ApprovalWorkflow{}).
		Where("id = ?", *req.WorkflowID).
		Find(&wf).
		Error
	if err != nil {
		return nil, err
	}

	return &wf, nil
}

type ListQuery struct {
	UnitID   uint                               `form:"unit_id"`
	Status   procurement_core.RequisitionStatus `form:"status"`
	BudgetID uint                               `form:"budget_id"`
	Limit    int                                `form:"limit"`
	Offset   int                                `form:"offset"`
}

func (s *RequisitionService) List(ctx context.Context, q *ListQuery) ([]*procurement_core.Requisition, error) {
	reqs := []*procurement_core.Requisition{}

	query := s.db.WithContext(ctx).
		Model(&procurement_core.Requisition{}).
		Where("is_deleted = ?", false)

	if q.UnitID != 0 {
		query = query.Where("unit_id = ?", q.UnitID)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.BudgetID != 0 {
		query = query.Where("budget_id = ?", q.BudgetID)
	}

	limit := q.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	err := query.
		Order("created_at desc").
		Limit(limit).
		Offset(q.Offset).
		Find(&reqs).
		Error

	return reqs, err
}

// PendingForApprover lists actionable approval requests where the user is in
// the candidate snapshot. The snapshot is a JSON column, membership is checked
// after load to stay portable across sqlite and postgres.
func (s *RequisitionService) PendingForApprover(ctx context.Context, approverID uint) ([]*procurement_core.ApprovalRequest, error) {
	requests := []*procurement_core.ApprovalRequest{}

	err := s.db.WithContext(ctx).
		Model(&procurement_core.ApprovalRequest{}).
		Where("status = ?", procurement_core.RequestPending).
		Order("due_date asc").
		Find(&requests).
		Error
	if err != nil {
		return nil, err
	}

	mine := []*procurement_core.ApprovalRequest{}
	for _, request := range requests {
		if request.CandidateIDs.Contains(approverID) {
			mine = append(mine, request)
		}
	}

	return mine, nil
}
