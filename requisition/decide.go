package requisition

import (
	"context"
	"time"

	"github.com/pdcgo/procurement_service/budget"
	"github.com/pdcgo/procurement_service/procurement_core"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type DecidePayload struct {
	Decision procurement_core.Decision `json:"decision" binding:"required"`
	Comments string                    `json:"comments"`
}

type DecideData struct {
	Request     *procurement_core.ApprovalRequest `json:"request"`
	Requisition *procurement_core.Requisition     `json:"requisition"`
	// Idempotent marks a duplicate decision by the same approver, the stored
	// outcome is returned and nothing changed.
	Idempotent bool `json:"idempotent"`
}

// Decide records one approver's verdict on a pending approval request and
// advances the chain. Approvals move to the next level or finish the
// requisition, a rejection or return tears the chain down and releases the
// budget commitment in the same transaction.
func (s *RequisitionService) Decide(ctx context.Context, requestID uint, pay *DecidePayload, actorID uint) (*DecideData, error) {
	switch pay.Decision {
	case procurement_core.DecisionApproved, procurement_core.DecisionRejected, procurement_core.DecisionReturned:
	default:
		return nil, &procurement_core.ValidationError{Field: "decision", Reason: "unknown decision " + string(pay.Decision)}
	}

	data := DecideData{}

	err := procurement_core.OpenTransaction(ctx, s.db, func(tx *gorm.DB, evmng procurement_core.EventManage) error {
		// Locks go requisition first, then request, same order as Cancel. The
		// unlocked read only finds which requisition to lock.
		var ref procurement_core.ApprovalRequest
		err := tx.Model(&procurement_core.ApprovalRequest{}).
			Where("id = ?", requestID).
			Find(&ref).
			Error
		if err != nil {
			return err
		}
		if ref.ID == 0 {
			return &procurement_core.ValidationError{
				Field:  "approval_request_id",
				Reason: "not found",
			}
		}

		req, err := lockRequisition(tx, ref.RequisitionID)
		if err != nil {
			return err
		}
		request, err := lockRequest(tx, requestID)
		if err != nil {
			return err
		}

		data.Request = request
		data.Requisition = req

		// Same approver deciding the same level twice is a no-op returning the
		// recorded outcome, retried deliveries must not double-count.
		var prior procurement_core.RequisitionApproval
		err = tx.Model(&procurement_core.RequisitionApproval{}).
			Where("approval_request_id = ?", request.ID).
			Where("approver_id = ?", actorID).
			Find(&prior).
			Error
		if err != nil {
			return err
		}
		if prior.ID != 0 {
			data.Idempotent = true
			return nil
		}

		if request.Status != procurement_core.RequestPending {
			return &procurement_core.ConcurrencyConflictError{
				Entity: "approval_request",
				ID:     request.ID,
				Reason: "not pending, found " + string(request.Status),
			}
		}
		if req.Status != procurement_core.StatusPendingApproval {
			return &procurement_core.ConcurrencyConflictError{
				Entity: "requisition",
				ID:     req.ID,
				Reason: "not awaiting approval, found " + string(req.Status),
			}
		}
		if !request.CandidateIDs.Contains(actorID) {
			return &procurement_core.AuthorizationError{
				ActorID: actorID,
				Reason:  "not a candidate for this approval level",
			}
		}

		now := time.Now()
		approval := procurement_core.RequisitionApproval{
			RequisitionID:     req.ID,
			ApprovalRequestID: request.ID,
			ApprovalLevel:     request.LevelNumber,
			ApproverID:        actorID,
			ApproverRole:      request.AssignedRole,
			Decision:          pay.Decision,
			DecisionDate:      now,
			Comments:          pay.Comments,
			ApprovedAmount:    request.Amount,
			Currency:          request.Currency,
			CreatedAt:         now,
		}
		if err = tx.Create(&approval).Error; err != nil {
			return err
		}

		switch pay.Decision {
		case procurement_core.DecisionApproved:
			return s.applyApproval(tx, evmng, req, request, actorID)
		case procurement_core.DecisionRejected:
			return s.tearDown(tx, evmng, req, request, actorID,
				procurement_core.RequestRejected, procurement_core.StatusRejected, pay.Comments)
		default:
			return s.tearDown(tx, evmng, req, request, actorID,
				procurement_core.RequestReturned, procurement_core.StatusDraft, pay.Comments)
		}
	})

	if err != nil {
		return nil, err
	}

	s.log.Info("approval decided",
		zap.Uint("request_id", requestID),
		zap.Uint("requisition_id", data.Requisition.ID),
		zap.String("decision", string(pay.Decision)),
		zap.Bool("idempotent", data.Idempotent),
	)

	return &data, nil
}

// applyApproval counts the vote and, once the level is satisfied, either
// promotes the next queued level or finishes the requisition.
func (s *RequisitionService) applyApproval(
	tx *gorm.DB,
	evmng procurement_core.EventManage,
	req *procurement_core.Requisition,
	request *procurement_core.ApprovalRequest,
	actorID uint,
) error {
	now := time.Now()

	request.ApprovalsReceived++
	updates := map[string]any{
		"approvals_received": request.ApprovalsReceived,
		"updated_at":         now,
	}

	if request.ApprovalsReceived < request.ApprovalsRequired {
		return tx.Model(&procurement_core.ApprovalRequest{}).
			Where("id = ?", request.ID).
			Updates(updates).
			Error
	}

	request.Status = procurement_core.RequestApproved
	updates["status"] = request.Status
	updates["decision_date"] = now
	updates["decision_by_id"] = actorID

	err := tx.Model(&procurement_core.ApprovalRequest{}).
		Where("id = ?", request.ID).
		Updates(updates).
		Error
	if err != nil {
		return err
	}

	var open int64
	err = tx.Model(&procurement_core.ApprovalRequest{}).
		Where("requisition_id = ?", req.ID).
		Where("status = ?", procurement_core.RequestPending).
		Count(&open).
		Error
	if err != nil {
		return err
	}
	if open > 0 {
		// Parallel chain, other levels still deciding.
		return nil
	}

	var next procurement_core.ApprovalRequest
	err = tx.Model(&procurement_core.ApprovalRequest{}).
		Where("requisition_id = ?", req.ID).
		Where("status = ?", procurement_core.RequestQueued).
		Order("level_number asc").
		Limit(1).
		Find(&next).
		Error
	if err != nil {
		return err
	}

	if next.ID == 0 {
		return setStatus(tx, evmng, req, procurement_core.StatusApproved, actorID, "approval chain satisfied", map[string]any{
			"approved_at": now,
		})
	}

	var level procurement_core.ApprovalLevel
	err = tx.Model(&procurement_core.ApprovalLevel{}).
		Where("id = ?", next.LevelID).
		Find(&level).
		Error
	if err != nil {
		return err
	}

	due := now.Add(time.Duration(level.TimeoutHours) * time.Hour)
	err = tx.Model(&procurement_core.ApprovalRequest{}).
		Where("id = ?", next.ID).
		Updates(map[string]any{
			"status":      procurement_core.RequestPending,
			"assigned_at": now,
			"due_date":    due,
			"updated_at":  now,
		}).
		Error
	if err != nil {
		return err
	}

	req.ApprovalLevel = next.LevelNumber
	return tx.Model(&procurement_core.Requisition{}).
		Where("id = ?", req.ID).
		Updates(map[string]any{
			"approval_level": next.LevelNumber,
			"updated_at":     now,
			"updated_by_id":  actorID,
		}).
		Error
}

// tearDown ends the chain on a rejection or return: the deciding request gets
// its terminal status, every other open request is cancelled and the budget
// commitment is released. A return goes back to draft for rework, a rejection
// is final.
func (s *RequisitionService) tearDown(
	tx *gorm.DB,
	evmng procurement_core.EventManage,
	req *procurement_core.Requisition,
	request *procurement_core.ApprovalRequest,
	actorID uint,
	requestStatus procurement_core.ApprovalRequestStatus,
	reqStatus procurement_core.RequisitionStatus,
	comments string,
) error {
	now := time.Now()

	err := tx.Model(&procurement_core.ApprovalRequest{}).
		Where("id = ?", request.ID).
		Updates(map[string]any{
			"status":            requestStatus,
			"decision_date":     now,
			"decision_by_id":    actorID,
			"decision_comments": comments,
			"updated_at":        now,
		}).
		Error
	if err != nil {
		return err
	}

	err = cancelOpenRequests(tx, req.ID, "chain ended by level "+string(requestStatus))
	if err != nil {
		return err
	}

	if err = releaseCommitment(tx, evmng, req, actorID, string(requestStatus)); err != nil {
		return err
	}

	extra := map[string]any{
		"commit_transaction_id": nil,
	}
	reason := ""
	switch reqStatus {
	case procurement_core.StatusRejected:
		extra["rejected_at"] = now
		extra["rejected_by_id"] = actorID
		extra["rejection_reason"] = comments
		reason = "rejected at level"
	default:
		// Returned for rework, the chain state resets with the draft.
		extra["workflow_id"] = nil
		extra["approval_level"] = 0
		extra["requires_approval_levels"] = 0
		reason = "returned to requester"
	}

	return setStatus(tx, evmng, req, reqStatus, actorID, reason, extra)
}

func cancelOpenRequests(tx *gorm.DB, requisitionID uint, reason string) error {
	return tx.Model(&procurement_core.ApprovalRequest{}).
		Where("requisition_id = ?", requisitionID).
		Where("status IN ?", []procurement_core.ApprovalRequestStatus{
			procurement_core.RequestQueued,
			procurement_core.RequestPending,
		}).
		Updates(map[string]any{
			"status":            procurement_core.RequestCancelled,
			"decision_comments": reason,
			"updated_at":        time.Now(),
		}).
		Error
}

func releaseCommitment(
	tx *gorm.DB,
	evmng procurement_core.EventManage,
	req *procurement_core.Requisition,
	actorID uint,
	reason string,
) error {
	if req.CommitTransactionID == nil {
		return nil
	}

	release := budget.NewRelease(tx).
		Transaction(*req.CommitTransactionID).
		Reason(reason).
		CreatedBy(actorID).
		Exec(evmng)
	if err := release.Err(); err != nil {
		return err
	}

	req.CommitTransactionID = nil
	return nil
}
