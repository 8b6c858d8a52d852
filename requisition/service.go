package requisition

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pdcgo/procurement_service/common"
	"github.com/pdcgo/procurement_service/procurement_core"
	"github.com/pdcgo/procurement_service/workflow"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RequisitionService drives the requisition lifecycle. Every transition runs
// inside OpenTransaction so budget mutations, approval rows and status events
// commit or roll back together.
type RequisitionService struct {
	db       *gorm.DB
	resolver *workflow.Resolver
	units    common.UnitRegistry
	log      *zap.Logger
}

func NewRequisitionService(
	db *gorm.DB,
	resolver *workflow.Resolver,
	units common.UnitRegistry,
	log *zap.Logger,
) *RequisitionService {
	return &RequisitionService{
		db:       db,
		resolver: resolver,
		units:    units,
		log:      log,
	}
}

func newRequisitionNumber() string {
	return "PR-" + uuid.NewString()
}

func newRequestNumber() string {
	return "APR-" + uuid.NewString()
}

func lockRequisition(tx *gorm.DB, requisitionID uint) (*procurement_core.Requisition, error) {
	var req procurement_core.Requisition

	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Model(&procurement_core.Requisition{}).
		Where("id = ?", requisitionID).
		Where("is_deleted = ?", false).
		Find(&req).
		Error

	if err != nil {
		return nil, err
	}

	if req.ID == 0 {
		return nil, &procurement_core.ValidationError{
			Field:  "requisition_id",
			Reason: fmt.Sprintf("requisition %d not found", requisitionID),
		}
	}

	return &req, nil
}

func lockRequest(tx *gorm.DB, requestID uint) (*procurement_core.ApprovalRequest, error) {
	var request procurement_core.ApprovalRequest

	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Model(&procurement_core.ApprovalRequest{}).
		Where("id = ?", requestID).
		Find(&request).
		Error

	if err != nil {
		return nil, err
	}

	if request.ID == 0 {
		return nil, &procurement_core.ValidationError{
			Field:  "approval_request_id",
			Reason: fmt.Sprintf("approval request %d not found", requestID),
		}
	}

	return &request, nil
}

func setStatus(
	tx *gorm.DB,
	evmng procurement_core.EventManage,
	req *procurement_core.Requisition,
	to procurement_core.RequisitionStatus,
	actorID uint,
	reason string,
	extra map[string]any,
) error {
	from := req.Status
	now := time.Now()

	updates := map[string]any{
		"status":        to,
		"updated_at":    now,
		"updated_by_id": actorID,
	}
	for key, val := range extra {
		updates[key] = val
	}

	err := tx.Model(&procurement_core.Requisition{}).
		Where("id = ?", req.ID).
		Updates(updates).
		Error
	if err != nil {
		return err
	}

	req.Status = to

	evmng.StatusChanged(&procurement_core.RequisitionEvent{
		RequisitionID: req.ID,
		FromStatus:    from,
		ToStatus:      to,
		ActorID:       actorID,
		Timestamp:     now,
		Reason:        reason,
	})

	return nil
}
