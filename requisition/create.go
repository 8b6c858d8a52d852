package requisition

import (
	"context"
	"time"

	"github.com/pdcgo/procurement_service/procurement_core"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ItemPayload struct {
	LineNumber         int     `json:"line_number" binding:"required,gt=0"`
	ProductCode        string  `json:"product_code"`
	ProductName        string  `json:"product_name" binding:"required"`
	ProductDescription string  `json:"product_description"`
	Quantity           float64 `json:"quantity_requested" binding:"required,gt=0"`
	UnitOfMeasure      string  `json:"unit_of_measure" binding:"required"`
	EstimatedUnitPrice float64 `json:"estimated_unit_price" binding:"required,gt=0"`
}

type CreatePayload struct {
	Title                 string `json:"title" binding:"required"`
	Description           string `json:"description"`
	UnitID                uint   `json:"unit_id" binding:"required"`
	Department            string `json:"department"`
	Category              string `json:"category" binding:"required"`
	Priority              string `json:"priority"`
	RequiredByDate        string `json:"required_by_date" binding:"required"`
	BusinessJustification string `json:"business_justification"`

	BudgetID     uint  `json:"budget_id" binding:"required"`
	AllocationID *uint `json:"allocation_id"`

	Items []*ItemPayload `json:"items"`
}

// Create opens a draft. Drafts are free to edit, nothing is committed against
// the budget until submit.
func (s *RequisitionService) Create(ctx context.Context, pay *CreatePayload, actorID uint) (*procurement_core.Requisition, error) {
	requiredBy, err := time.Parse(time.RFC3339, pay.RequiredByDate)
	if err != nil {
		return nil, &procurement_core.ValidationError{Field: "required_by_date", Reason: "must be RFC3339"}
	}

	unit, err := s.units.Unit(ctx, pay.UnitID)
	if err != nil {
		return nil, &procurement_core.ValidationError{Field: "unit_id", Reason: err.Error()}
	}

	priority := procurement_core.RequisitionPriority(pay.Priority)
	if priority == "" {
		priority = procurement_core.PriorityMedium
	}

	req := procurement_core.Requisition{
		RequisitionNumber:     newRequisitionNumber(),
		Title:                 pay.Title,
		Description:           pay.Description,
		UnitID:                unit.ID,
		Department:            pay.Department,
		Category:              pay.Category,
		Status:                procurement_core.StatusDraft,
		Priority:              priority,
		RequestedByID:         actorID,
		RequestedDate:         time.Now(),
		RequiredByDate:        requiredBy,
		BusinessJustification: pay.BusinessJustification,
		Currency:              unit.Currency,
		BudgetID:              pay.BudgetID,
		AllocationID:          pay.AllocationID,
		CreatedAt:             time.Now(),
		UpdatedAt:             time.Now(),
		CreatedByID:           actorID,
		UpdatedByID:           actorID,
	}

	for _, item := range pay.Items {
		req.Items = append(req.Items, itemFromPayload(item, unit.Currency))
	}
	req.EstimatedTotalValue = req.ComputeTotal()

	err = s.db.WithContext(ctx).Create(&req).Error
	if err != nil {
		return nil, err
	}

	s.log.Info("requisition drafted",
		zap.Uint("requisition_id", req.ID),
		zap.String("requisition_number", req.RequisitionNumber),
		zap.Uint("unit_id", req.UnitID),
	)

	return &req, nil
}

type UpdatePayload struct {
	Title                 *string `json:"title"`
	Description           *string `json:"description"`
	Priority              *string `json:"priority"`
	RequiredByDate        *string `json:"required_by_date"`
	BusinessJustification *string `json:"business_justification"`
	BudgetID              *uint   `json:"budget_id"`
	AllocationID          *uint   `json:"allocation_id"`

	// Non-nil replaces the whole line set.
	Items []*ItemPayload `json:"items"`
}

// Update edits requester-side content. Only drafts and just-submitted
// requisitions are editable, anything already in its approval chain is frozen.
func (s *RequisitionService) Update(ctx context.Context, requisitionID uint, pay *UpdatePayload, actorID uint) (*procurement_core.Requisition, error) {
	var req *procurement_core.Requisition

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		req, err = lockRequisition(tx, requisitionID)
		if err != nil {
			return err
		}

		if !req.Editable() {
			return &procurement_core.ConcurrencyConflictError{
				Entity: "requisition",
				ID:     req.ID,
				Reason: "not editable in status " + string(req.Status),
			}
		}
		if req.RequestedByID != actorID {
			return &procurement_core.AuthorizationError{
				ActorID: actorID,
				Reason:  "only the requester can edit",
			}
		}

		if pay.Title != nil {
			req.Title = *pay.Title
		}
		if pay.Description != nil {
			req.Description = *pay.Description
		}
		if pay.Priority != nil {
			req.Priority = procurement_core.RequisitionPriority(*pay.Priority)
		}
		if pay.BusinessJustification != nil {
			req.BusinessJustification = *pay.BusinessJustification
		}
		if pay.RequiredByDate != nil {
			requiredBy, err := time.Parse(time.RFC3339, *pay.RequiredByDate)
			if err != nil {
				return &procurement_core.ValidationError{Field: "required_by_date", Reason: "must be RFC3339"}
			}
			req.RequiredByDate = requiredBy
		}
		if pay.BudgetID != nil {
			req.BudgetID = *pay.BudgetID
		}
		if pay.AllocationID != nil {
			req.AllocationID = pay.AllocationID
		}

		if pay.Items != nil {
			err = tx.
				Where("requisition_id = ?", req.ID).
				Delete(&procurement_core.RequisitionItem{}).
				Error
			if err != nil {
				return err
			}

			req.Items = nil
			for _, item := range pay.Items {
				line := itemFromPayload(item, req.Currency)
				line.RequisitionID = req.ID
				req.Items = append(req.Items, line)
			}

			if len(req.Items) > 0 {
				err = tx.Create(&req.Items).Error
				if err != nil {
					return err
				}
			}
		} else {
			err = tx.Model(&procurement_core.RequisitionItem{}).
				Where("requisition_id = ?", req.ID).
				Order("line_number asc").
				Find(&req.Items).
				Error
			if err != nil {
				return err
			}
		}

		req.EstimatedTotalValue = req.ComputeTotal()
		req.UpdatedAt = time.Now()
		req.UpdatedByID = actorID

		return tx.Model(&procurement_core.Requisition{}).
			Where("id = ?", req.ID).
			Updates(map[string]any{
				"title":                  req.Title,
				"description":            req.Description,
				"priority":               req.Priority,
				"business_justification": req.BusinessJustification,
				"required_by_date":       req.RequiredByDate,
				"budget_id":              req.BudgetID,
				"allocation_id":          req.AllocationID,
				"estimated_total_value":  req.EstimatedTotalValue,
				"updated_at":             req.UpdatedAt,
				"updated_by_id":          actorID,
			}).
			Error
	})

	if err != nil {
		return nil, err
	}

	return req, nil
}

func itemFromPayload(pay *ItemPayload, currency string) *procurement_core.RequisitionItem {
	item := procurement_core.RequisitionItem{
		LineNumber:         pay.LineNumber,
		ProductCode:        pay.ProductCode,
		ProductName:        pay.ProductName,
		ProductDescription: pay.ProductDescription,
		QuantityRequested:  pay.Quantity,
		UnitOfMeasure:      pay.UnitOfMeasure,
		EstimatedUnitPrice: pay.EstimatedUnitPrice,
		Currency:           currency,
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	}
	item.EstimatedTotalPrice = item.Total()
	return &item
}
