package budget

import (
	"context"
	"time"

	"github.com/pdcgo/procurement_service/procurement_core"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type BudgetService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewBudgetService(db *gorm.DB, log *zap.Logger) *BudgetService {
	return &BudgetService{
		db:  db,
		log: log,
	}
}

type BudgetCreatePayload struct {
	BudgetCode string  `json:"budget_code" binding:"required"`
	BudgetName string  `json:"budget_name" binding:"required"`
	UnitID     uint    `json:"unit_id" binding:"required"`
	Department string  `json:"department"`
	Category   string  `json:"category"`
	BudgetType string  `json:"budget_type" binding:"required"`
	Total      float64 `json:"total_amount" binding:"required,gt=0"`
	Currency   string  `json:"currency" binding:"required,len=3"`
	FiscalYear int     `json:"fiscal_year" binding:"required"`
	StartDate  string  `json:"start_date" binding:"required"`
	EndDate    string  `json:"end_date" binding:"required"`

	WarningThresholdPct float64 `json:"warning_threshold_pct"`
	FreezeThresholdPct  float64 `json:"freeze_threshold_pct"`
	FreezeOnThreshold   bool    `json:"freeze_on_threshold"`
	AllowOverspend      bool    `json:"allow_overspend"`
	OverspendLimitPct   float64 `json:"overspend_limit_pct"`

	OwnerID uint `json:"owner_id"`
}

func (s *BudgetService) CreateBudget(ctx context.Context, pay *BudgetCreatePayload, actorID uint) (*procurement_core.Budget, error) {
	start, err := time.Parse(time.RFC3339, pay.StartDate)
	if err != nil {
		return nil, &procurement_core.ValidationError{Field: "start_date", Reason: "must be RFC3339"}
	}
	end, err := time.Parse(time.RFC3339, pay.EndDate)
	if err != nil {
		return nil, &procurement_core.ValidationError{Field: "end_date", Reason: "must be RFC3339"}
	}
	if !end.After(start) {
		return nil, &procurement_core.ValidationError{Field: "end_date", Reason: "must be after start_date"}
	}
	if pay.OverspendLimitPct < 0 || pay.OverspendLimitPct > 50 {
		return nil, &procurement_core.ValidationError{Field: "overspend_limit_pct", Reason: "must be within 0..50"}
	}

	warning := pay.WarningThresholdPct
	if warning == 0 {
		warning = 80
	}
	freeze := pay.FreezeThresholdPct
	if freeze == 0 {
		freeze = 95
	}

	bud := procurement_core.Budget{
		BudgetCode:          pay.BudgetCode,
		BudgetName:          pay.BudgetName,
		UnitID:              pay.UnitID,
		Department:          pay.Department,
		Category:            pay.Category,
		BudgetType:          procurement_core.BudgetType(pay.BudgetType),
		TotalAmount:         pay.Total,
		Currency:            pay.Currency,
		FiscalYear:          pay.FiscalYear,
		StartDate:           start,
		EndDate:             end,
		Status:              procurement_core.BudgetActive,
		WarningThresholdPct: warning,
		FreezeThresholdPct:  freeze,
		FreezeOnThreshold:   pay.FreezeOnThreshold,
		AllowOverspend:      pay.AllowOverspend,
		OverspendLimitPct:   pay.OverspendLimitPct,
		OwnerID:             pay.OwnerID,
		CreatedAt:           time.Now(),
		CreatedByID:         actorID,
	}

	err = s.db.WithContext(ctx).Create(&bud).Error
	if err != nil {
		return nil, err
	}

	s.log.Info("budget created",
		zap.Uint("budget_id", bud.ID),
		zap.String("budget_code", bud.BudgetCode),
		zap.Float64("total", bud.TotalAmount),
	)

	return &bud, nil
}

type AllocationCreatePayload struct {
	BudgetID       uint    `json:"budget_id" binding:"required"`
	AllocationCode string  `json:"allocation_code" binding:"required"`
	AllocationName string  `json:"allocation_name" binding:"required"`
	Category       string  `json:"category"`
	ProjectCode    string  `json:"project_code"`
	Amount         float64 `json:"allocated_amount" binding:"required,gt=0"`
	CanOverspend   bool    `json:"can_overspend"`
	OwnerID        *uint   `json:"owner_id"`
}

// CreateAllocation carves a slice out of a budget. The slice must fit the
// parent's available amount at creation time, checked under the budget lock.
func (s *BudgetService) CreateAllocation(ctx context.Context, pay *AllocationCreatePayload, actorID uint) (*procurement_core.BudgetAllocation, error) {
	var alloc procurement_core.BudgetAllocation

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bud, err := lockBudget(tx, pay.BudgetID)
		if err != nil {
			return err
		}

		var allocated float64
		row := tx.Model(&procurement_core.BudgetAllocation{}).
			Select("COALESCE(SUM(allocated_amount), 0)").
			Where("budget_id = ?", bud.ID).
			Where("is_active = ?", true).
			Row()
		if err = row.Scan(&allocated); err != nil {
			return err
		}

		if allocated+pay.Amount > bud.TotalAmount {
			return &procurement_core.BudgetExceededError{
				BudgetID:  bud.ID,
				Requested: pay.Amount,
				Available: bud.TotalAmount - allocated,
			}
		}

		alloc = procurement_core.BudgetAllocation{
			BudgetID:        bud.ID,
			AllocationCode:  pay.AllocationCode,
			AllocationName:  pay.AllocationName,
			Category:        pay.Category,
			ProjectCode:     pay.ProjectCode,
			AllocatedAmount: pay.Amount,
			OwnerID:         pay.OwnerID,
			IsActive:        true,
			CanOverspend:    pay.CanOverspend,
			CreatedAt:       time.Now(),
			CreatedByID:     actorID,
		}

		return tx.Create(&alloc).Error
	})

	if err != nil {
		return nil, err
	}

	return &alloc, nil
}

func (s *BudgetService) Status(ctx context.Context, budgetID uint, allocationID *uint) (*StatusData, error) {
	return QueryStatus(s.db.WithContext(ctx), budgetID, allocationID)
}

type ReconcileData struct {
	Materialized *StatusData `json:"materialized"`
	Replayed     *StatusData `json:"replayed"`
	Consistent   bool        `json:"consistent"`
}

// Reconcile compares the materialized totals with a full replay of the
// transaction log.
func (s *BudgetService) Reconcile(ctx context.Context, budgetID uint) (*ReconcileData, error) {
	db := s.db.WithContext(ctx)

	materialized, err := QueryStatus(db, budgetID, nil)
	if err != nil {
		return nil, err
	}

	replayed, err := Replay(db, budgetID)
	if err != nil {
		return nil, err
	}

	consistent := procurement_core.AmountEqual(materialized.Committed, replayed.Committed) &&
		procurement_core.AmountEqual(materialized.Spent, replayed.Spent)

	if !consistent {
		s.log.Error("budget ledger out of sync",
			zap.Uint("budget_id", budgetID),
			zap.Float64("materialized_committed", materialized.Committed),
			zap.Float64("replayed_committed", replayed.Committed),
		)
	}

	return &ReconcileData{
		Materialized: materialized,
		Replayed:     replayed,
		Consistent:   consistent,
	}, nil
}
