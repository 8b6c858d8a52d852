package requisition_test

import (
	"context"
	"testing"

	"github.com/pdcgo/procurement_service/budget"
	"github.com/pdcgo/procurement_service/procurement_core"
	"github.com/pdcgo/procurement_service/procurement_mock"
	"github.com/pdcgo/procurement_service/requisition"
	"github.com/stretchr/testify/assert"
)

func TestMultiLevelChain(t *testing.T) {
	db := procurement_mock.SetupTestDB(t)
	bud := seedChain(t, db, 50000)
	svc := newService(db)
	ctx := context.TODO()

	// 12000 sits above the 5000 threshold, both levels apply.
	req, err := svc.Create(ctx, draftPayload(bud.ID, 4000), requesterID)
	assert.Nil(t, err)
	assert.Equal(t, float64(12000), req.EstimatedTotalValue)

	req, err = svc.Submit(ctx, req.ID, requesterID)
	assert.Nil(t, err)
	assert.Equal(t, 2, req.RequiresApprovalLevels)
	assert.Equal(t, 1, req.ApprovalLevel)

	t.Run("level one approval promotes level two", func(t *testing.T) {
		request := pendingRequest(t, db, req.ID)
		assert.Equal(t, 1, request.LevelNumber)

		_, err := svc.Decide(ctx, request.ID, &requisition.DecidePayload{
			Decision: procurement_core.DecisionApproved,
		}, unitManagerID)
		assert.Nil(t, err)

		next := pendingRequest(t, db, req.ID)
		assert.Equal(t, 2, next.LevelNumber)

		detail, err := svc.Detail(ctx, req.ID)
		assert.Nil(t, err)
		assert.Equal(t, procurement_core.StatusPendingApproval, detail.Status)
		assert.Equal(t, 2, detail.ApprovalLevel)
	})

	t.Run("rejection releases the commitment", func(t *testing.T) {
		request := pendingRequest(t, db, req.ID)

		_, err := svc.Decide(ctx, request.ID, &requisition.DecidePayload{
			Decision: procurement_core.DecisionRejected,
			Comments: "over quarterly cap",
		}, generalManagerID)
		assert.Nil(t, err)

		detail, err := svc.Detail(ctx, req.ID)
		assert.Nil(t, err)
		assert.Equal(t, procurement_core.StatusRejected, detail.Status)
		assert.Equal(t, "over quarterly cap", detail.RejectionReason)

		status, err := budget.QueryStatus(db, bud.ID, nil)
		assert.Nil(t, err)
		assert.Equal(t, float64(0), status.Committed)
	})

	t.Run("rejected requisition can still be cancelled", func(t *testing.T) {
		cancelled, err := svc.Cancel(ctx, req.ID, &requisition.CancelPayload{
			Reason: "restarting procurement",
		}, requesterID)
		assert.Nil(t, err)
		assert.Equal(t, procurement_core.StatusCancelled, cancelled.Status)
	})
}

func TestDecideIdempotency(t *testing.T) {
	db := procurement_mock.SetupTestDB(t)
	bud := seedChain(t, db, 50000)
	svc := newService(db)
	ctx := context.TODO()

	req, err := svc.Create(ctx, draftPayload(bud.ID, 4000), requesterID)
	assert.Nil(t, err)
	req, err = svc.Submit(ctx, req.ID, requesterID)
	assert.Nil(t, err)

	request := pendingRequest(t, db, req.ID)

	first, err := svc.Decide(ctx, request.ID, &requisition.DecidePayload{
		Decision: procurement_core.DecisionApproved,
	}, unitManagerID)
	assert.Nil(t, err)
	assert.False(t, first.Idempotent)

	// Retried delivery of the same decision must not double-count.
	second, err := svc.Decide(ctx, request.ID, &requisition.DecidePayload{
		Decision: procurement_core.DecisionApproved,
	}, unitManagerID)
	assert.Nil(t, err)
	assert.True(t, second.Idempotent)

	var approvals int64
	err = db.Model(&procurement_core.RequisitionApproval{}).
		Where("requisition_id = ?", req.ID).
		Count(&approvals).
		Error
	assert.Nil(t, err)
	assert.Equal(t, int64(1), approvals)
}

func TestDecideGuards(t *testing.T) {
	db := procurement_mock.SetupTestDB(t)
	bud := seedChain(t, db, 50000)
	svc := newService(db)
	ctx := context.TODO()

	req, err := svc.Create(ctx, draftPayload(bud.ID, 100), requesterID)
	assert.Nil(t, err)
	req, err = svc.Submit(ctx, req.ID, requesterID)
	assert.Nil(t, err)

	request := pendingRequest(t, db, req.ID)

	t.Run("unknown request fails validation", func(t *testing.T) {
		_, err := svc.Decide(ctx, uint(99999), &requisition.DecidePayload{
			Decision: procurement_core.DecisionApproved,
		}, unitManagerID)

		var invalid *procurement_core.ValidationError
		assert.ErrorAs(t, err, &invalid)
	})

	t.Run("outside the candidate snapshot is forbidden", func(t *testing.T) {
		_, err := svc.Decide(ctx, request.ID, &requisition.DecidePayload{
			Decision: procurement_core.DecisionApproved,
		}, uint(99))

		var denied *procurement_core.AuthorizationError
		assert.ErrorAs(t, err, &denied)
	})

	t.Run("deciding a cancelled chain conflicts", func(t *testing.T) {
		_, err := svc.Cancel(ctx, req.ID, &requisition.CancelPayload{
			Reason: "no longer needed",
		}, requesterID)
		assert.Nil(t, err)

		_, err = svc.Decide(ctx, request.ID, &requisition.DecidePayload{
			Decision: procurement_core.DecisionApproved,
		}, unitManagerID)

		var conflict *procurement_core.ConcurrencyConflictError
		assert.ErrorAs(t, err, &conflict)
	})
}

func TestCancelAfterApproval(t *testing.T) {
	db := procurement_mock.SetupTestDB(t)
	bud := seedChain(t, db, 50000)
	svc := newService(db)
	ctx := context.TODO()

	req, err := svc.Create(ctx, draftPayload(bud.ID, 100), requesterID)
	assert.Nil(t, err)
	req, err = svc.Submit(ctx, req.ID, requesterID)
	assert.Nil(t, err)

	request := pendingRequest(t, db, req.ID)
	_, err = svc.Decide(ctx, request.ID, &requisition.DecidePayload{
		Decision: procurement_core.DecisionApproved,
	}, unitManagerID)
	assert.Nil(t, err)

	// Approval commits the organization to the purchase, the window for
	// withdrawal is closed and the budget commitment stays put.
	_, err = svc.Cancel(ctx, req.ID, &requisition.CancelPayload{
		Reason: "changed our mind",
	}, requesterID)

	var conflict *procurement_core.ConcurrencyConflictError
	assert.ErrorAs(t, err, &conflict)

	detail, err := svc.Detail(ctx, req.ID)
	assert.Nil(t, err)
	assert.Equal(t, procurement_core.StatusApproved, detail.Status)
	assert.NotNil(t, detail.CommitTransactionID)

	status, err := budget.QueryStatus(db, bud.ID, nil)
	assert.Nil(t, err)
	assert.Equal(t, float64(300), status.Committed)
}

func TestReturnForRework(t *testing.T) {
	db := procurement_mock.SetupTestDB(t)
	bud := seedChain(t, db, 50000)
	svc := newService(db)
	ctx := context.TODO()

	req, err := svc.Create(ctx, draftPayload(bud.ID, 200), requesterID)
	assert.Nil(t, err)
	req, err = svc.Submit(ctx, req.ID, requesterID)
	assert.Nil(t, err)

	request := pendingRequest(t, db, req.ID)

	_, err = svc.Decide(ctx, request.ID, &requisition.DecidePayload{
		Decision: procurement_core.DecisionReturned,
		Comments: "split into two requests",
	}, unitManagerID)
	assert.Nil(t, err)

	detail, err := svc.Detail(ctx, req.ID)
	assert.Nil(t, err)
	assert.Equal(t, procurement_core.StatusDraft, detail.Status)
	assert.Nil(t, detail.WorkflowID)
	assert.Nil(t, detail.CommitTransactionID)

	status, err := budget.QueryStatus(db, bud.ID, nil)
	assert.Nil(t, err)
	assert.Equal(t, float64(0), status.Committed)

	// Reworked draft goes through a fresh chain.
	_, err = svc.Submit(ctx, req.ID, requesterID)
	assert.Nil(t, err)
}
