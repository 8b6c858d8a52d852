package requisition

import (
	"context"
	"time"

	"github.com/pdcgo/procurement_service/procurement_core"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CancelPayload struct {
	Reason string `json:"reason" binding:"required"`
}

// Cancel withdraws a requisition that has not cleared its chain. Open approval
// requests are cancelled and an open commitment is released. Once approved the
// requisition is a promise to the supplier and only fulfillment closes it.
func (s *RequisitionService) Cancel(ctx context.Context, requisitionID uint, pay *CancelPayload, actorID uint) (*procurement_core.Requisition, error) {
	var req *procurement_core.Requisition

	err := procurement_core.OpenTransaction(ctx, s.db, func(tx *gorm.DB, evmng procurement_core.EventManage) error {
		var err error
		req, err = lockRequisition(tx, requisitionID)
		if err != nil {
			return err
		}

		switch req.Status {
		case procurement_core.StatusDraft,
			procurement_core.StatusSubmitted,
			procurement_core.StatusPendingApproval,
			procurement_core.StatusRejected:
		default:
			return &procurement_core.ConcurrencyConflictError{
				Entity: "requisition",
				ID:     req.ID,
				Reason: "cannot cancel in status " + string(req.Status),
			}
		}

		if err = cancelOpenRequests(tx, req.ID, "requisition cancelled"); err != nil {
			return err
		}
		if err = releaseCommitment(tx, evmng, req, actorID, "requisition cancelled"); err != nil {
			return err
		}

		return setStatus(tx, evmng, req, procurement_core.StatusCancelled, actorID, pay.Reason, map[string]any{
			"cancelled_at":          time.Now(),
			"cancelled_by_id":       actorID,
			"cancellation_reason":   pay.Reason,
			"commit_transaction_id": nil,
		})
	})

	if err != nil {
		return nil, err
	}

	s.log.Info("requisition cancelled",
		zap.Uint("requisition_id", req.ID),
		zap.String("reason", pay.Reason),
	)

	return req, nil
}
