package budget

import (
	"fmt"

	"github.com/pdcgo/procurement_service/procurement_core"
	"gorm.io/gorm"
)

type StatusData struct {
	BudgetID     uint    `json:"budget_id"`
	AllocationID *uint   `json:"allocation_id,omitempty"`
	Total        float64 `json:"total"`
	Committed    float64 `json:"committed"`
	Spent        float64 `json:"spent"`
	Available    float64 `json:"available"`
	Currency     string  `json:"currency"`
}

// QueryStatus reads the materialized totals for a budget or one of its
// allocations.
func QueryStatus(tx *gorm.DB, budgetID uint, allocationID *uint) (*StatusData, error) {
	var bud procurement_core.Budget

	err := tx.Model(&procurement_core.Budget{}).
		Where("id = ?", budgetID).
		Find(&bud).
		Error
	if err != nil {
		return nil, err
	}
	if bud.ID == 0 {
		return nil, &procurement_core.ValidationError{
			Field:  "budget_id",
			Reason: fmt.Sprintf("budget %d not found", budgetID),
		}
	}

	if allocationID == nil {
		return &StatusData{
			BudgetID:  bud.ID,
			Total:     bud.TotalAmount,
			Committed: bud.CommittedAmount,
			Spent:     bud.SpentAmount,
			Available: bud.Available(),
			Currency:  bud.Currency,
		}, nil
	}

	var alloc procurement_core.BudgetAllocation
	err = tx.Model(&procurement_core.BudgetAllocation{}).
		Where("id = ?", *allocationID).
		Where("budget_id = ?", budgetID).
		Find(&alloc).
		Error
	if err != nil {
		return nil, err
	}
	if alloc.ID == 0 {
		return nil, &procurement_core.ValidationError{
			Field:  "allocation_id",
			Reason: fmt.Sprintf("allocation %d not found", *allocationID),
		}
	}

	return &StatusData{
		BudgetID:     bud.ID,
		AllocationID: allocationID,
		Total:        alloc.AllocatedAmount,
		Committed:    alloc.CommittedAmount,
		Spent:        alloc.SpentAmount,
		Available:    alloc.Available(),
		Currency:     bud.Currency,
	}, nil
}

// Replay recomputes committed/spent from the transaction log alone. A live
// commitment is an active commitment row, a converted one is counted through
// its expenditure row, a released one is excluded by its reversed status.
// Used by the reconciliation endpoint and the ledger tests.
func Replay(tx *gorm.DB, budgetID uint) (*StatusData, error) {
	var bud procurement_core.Budget
	err := tx.Model(&procurement_core.Budget{}).
		Where("id = ?", budgetID).
		Find(&bud).
		Error
	if err != nil {
		return nil, err
	}
	if bud.ID == 0 {
		return nil, &procurement_core.ValidationError{
			Field:  "budget_id",
			Reason: fmt.Sprintf("budget %d not found", budgetID),
		}
	}

	var committed, spent float64

	row := tx.Model(&procurement_core.BudgetTransaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("budget_id = ?", budgetID).
		Where("tx_type = ?", procurement_core.TxCommitment).
		Where("status = ?", procurement_core.TxActive).
		Row()
	if err = row.Scan(&committed); err != nil {
		return nil, err
	}

	row = tx.Model(&procurement_core.BudgetTransaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("budget_id = ?", budgetID).
		Where("tx_type = ?", procurement_core.TxExpenditure).
		Where("status = ?", procurement_core.TxActive).
		Row()
	if err = row.Scan(&spent); err != nil {
		return nil, err
	}

	committed = procurement_core.RoundUp(committed, procurement_core.Precision)
	spent = procurement_core.RoundUp(spent, procurement_core.Precision)

	return &StatusData{
		BudgetID:  bud.ID,
		Total:     bud.TotalAmount,
		Committed: committed,
		Spent:     spent,
		Available: procurement_core.RoundUp(bud.TotalAmount-committed-spent, procurement_core.Precision),
		Currency:  bud.Currency,
	}, nil
}
