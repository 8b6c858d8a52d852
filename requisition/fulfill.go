package requisition

import (
	"context"
	"time"

	"github.com/pdcgo/procurement_service/budget"
	"github.com/pdcgo/procurement_service/procurement_core"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type FulfillLine struct {
	LineNumber int     `json:"line_number" binding:"required,gt=0"`
	Quantity   float64 `json:"quantity_fulfilled" binding:"required,gt=0"`
}

type FulfillPayload struct {
	Lines []*FulfillLine `json:"lines" binding:"required,min=1"`

	// ActualAmount is required on the closing fulfillment, that is when the
	// commitment converts to actual spend.
	ActualAmount float64 `json:"actual_amount"`

	// Complete closes the requisition even if some quantities stay short.
	Complete bool `json:"complete"`
}

// RecordFulfillment books received quantities against an approved requisition.
// The closing fulfillment converts the budget commitment into actual
// expenditure at the real cost, partial deliveries only move quantities.
func (s *RequisitionService) RecordFulfillment(ctx context.Context, requisitionID uint, pay *FulfillPayload, actorID uint) (*procurement_core.Requisition, error) {
	var req *procurement_core.Requisition

	err := procurement_core.OpenTransaction(ctx, s.db, func(tx *gorm.DB, evmng procurement_core.EventManage) error {
		var err error
		req, err = lockRequisition(tx, requisitionID)
		if err != nil {
			return err
		}

		switch req.Status {
		case procurement_core.StatusApproved, procurement_core.StatusPartiallyFulfilled:
		default:
			return &procurement_core.ConcurrencyConflictError{
				Entity: "requisition",
				ID:     req.ID,
				Reason: "fulfillment requires approved, found " + string(req.Status),
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

		byLine := map[int]*procurement_core.RequisitionItem{}
		for _, item := range req.Items {
			byLine[item.LineNumber] = item
		}

		now := time.Now()
		for _, line := range pay.Lines {
			item := byLine[line.LineNumber]
			if item == nil {
				return &procurement_core.ValidationError{
					Field:  "lines",
					Reason: "unknown line number",
				}
			}

			item.QuantityFulfilled = procurement_core.RoundUp(
				item.QuantityFulfilled+line.Quantity, procurement_core.Precision)

			err = tx.Model(&procurement_core.RequisitionItem{}).
				Where("id = ?", item.ID).
				Updates(map[string]any{
					"quantity_fulfilled": item.QuantityFulfilled,
					"updated_at":         now,
				}).
				Error
			if err != nil {
				return err
			}
		}

		allFulfilled := true
		for _, item := range req.Items {
			if item.QuantityFulfilled < item.QuantityRequested {
				allFulfilled = false
				break
			}
		}

		if !allFulfilled && !pay.Complete {
			return setStatus(tx, evmng, req, procurement_core.StatusPartiallyFulfilled, actorID, "partial delivery recorded", nil)
		}

		if pay.ActualAmount <= 0 {
			return &procurement_core.ValidationError{
				Field:  "actual_amount",
				Reason: "required to close fulfillment",
			}
		}
		if req.CommitTransactionID == nil {
			return &procurement_core.ConcurrencyConflictError{
				Entity: "requisition",
				ID:     req.ID,
				Reason: "no open commitment to convert",
			}
		}

		spend := budget.NewConvertToSpend(tx).
			Transaction(*req.CommitTransactionID).
			ActualAmount(pay.ActualAmount).
			Desc("fulfillment of " + req.RequisitionNumber).
			CreatedBy(actorID).
			Exec(evmng)
		if err = spend.Err(); err != nil {
			return err
		}

		return setStatus(tx, evmng, req, procurement_core.StatusFulfilled, actorID, "fulfillment closed", map[string]any{
			"fulfilled_at": now,
		})
	})

	if err != nil {
		return nil, err
	}

	s.log.Info("fulfillment recorded",
		zap.Uint("requisition_id", req.ID),
		zap.String("status", string(req.Status)),
	)

	return req, nil
}
