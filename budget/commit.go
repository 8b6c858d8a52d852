package budget

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pdcgo/procurement_service/procurement_core"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommitBudget reserves an amount against a budget (optionally a
// sub-allocation) in one atomic unit: the available amount is re-read under a
// row lock, the policy check and the commitment row and the running-total
// increment all happen inside the caller's transaction.
type CommitBudget interface {
	Budget(budgetID uint) CommitBudget
	Allocation(allocationID uint) CommitBudget
	Source(ref procurement_core.DocRef) CommitBudget
	Amount(amount float64) CommitBudget
	Desc(desc string) CommitBudget
	CreatedBy(userID uint) CommitBudget
	Exec(evmng procurement_core.EventManage) CommitBudget
	Data() *procurement_core.BudgetTransaction
	Err() error
}

type commitBudgetImpl struct {
	tx *gorm.DB

	budgetID     uint
	allocationID *uint
	source       procurement_core.DocRef
	amount       float64
	desc         string
	createdByID  uint

	data *procurement_core.BudgetTransaction
	err  error
}

// Budget implements CommitBudget.
func (c *commitBudgetImpl) Budget(budgetID uint) CommitBudget {
	c.budgetID = budgetID
	return c
}

// Allocation implements CommitBudget.
func (c *commitBudgetImpl) Allocation(allocationID uint) CommitBudget {
	c.allocationID = &allocationID
	return c
}

// Source implements CommitBudget.
func (c *commitBudgetImpl) Source(ref procurement_core.DocRef) CommitBudget {
	c.source = ref
	return c
}

// Amount implements CommitBudget.
func (c *commitBudgetImpl) Amount(amount float64) CommitBudget {
	c.amount = amount
	return c
}

// Desc implements CommitBudget.
func (c *commitBudgetImpl) Desc(desc string) CommitBudget {
	c.desc = desc
	return c
}

// CreatedBy implements CommitBudget.
func (c *commitBudgetImpl) CreatedBy(userID uint) CommitBudget {
	c.createdByID = userID
	return c
}

// Data implements CommitBudget.
func (c *commitBudgetImpl) Data() *procurement_core.BudgetTransaction {
	return c.data
}

// Err implements CommitBudget.
func (c *commitBudgetImpl) Err() error {
	return c.err
}

// Exec implements CommitBudget.
func (c *commitBudgetImpl) Exec(evmng procurement_core.EventManage) CommitBudget {
	if c.err != nil {
		return c
	}
	if c.amount <= 0 {
		return c.setErr(&procurement_core.ValidationError{Field: "amount", Reason: "must be positive"})
	}
	if c.source == "" {
		return c.setErr(&procurement_core.ValidationError{Field: "source_doc_ref", Reason: "is required"})
	}

	bud, err := lockBudget(c.tx, c.budgetID)
	if err != nil {
		return c.setErr(err)
	}

	if bud.Status != procurement_core.BudgetActive {
		return c.setErr(&procurement_core.ValidationError{
			Field:  "budget",
			Reason: fmt.Sprintf("not active (status %s)", bud.Status),
		})
	}

	beforeUsed := bud.UsedPct()

	if bud.FreezeOnThreshold && beforeUsed >= bud.FreezeThresholdPct {
		return c.setErr(&procurement_core.BudgetExceededError{
			BudgetID:  bud.ID,
			Requested: c.amount,
			Available: bud.Available(),
		})
	}

	// Ceiling check covers the bounded overspend margin. Without overspend
	// this degenerates to amount <= available.
	if bud.CommittedAmount+bud.SpentAmount+c.amount > bud.CommitCeiling() {
		return c.setErr(&procurement_core.BudgetExceededError{
			BudgetID:  bud.ID,
			Requested: c.amount,
			Available: bud.Available(),
		})
	}

	var alloc *procurement_core.BudgetAllocation
	if c.allocationID != nil {
		alloc, err = lockAllocation(c.tx, *c.allocationID)
		if err != nil {
			return c.setErr(err)
		}
		if alloc.BudgetID != bud.ID {
			return c.setErr(&procurement_core.ValidationError{
				Field:  "allocation_id",
				Reason: "does not belong to budget",
			})
		}
		if !alloc.IsActive {
			return c.setErr(&procurement_core.ValidationError{Field: "allocation", Reason: "is inactive"})
		}
		if !alloc.CanOverspend && c.amount > alloc.Available() {
			return c.setErr(&procurement_core.BudgetExceededError{
				BudgetID:     bud.ID,
				AllocationID: alloc.ID,
				Requested:    c.amount,
				Available:    alloc.Available(),
			})
		}
	}

	tran := procurement_core.BudgetTransaction{
		TransactionNumber: newTransactionNumber(),
		BudgetID:          bud.ID,
		AllocationID:      c.allocationID,
		TxType:            procurement_core.TxCommitment,
		SourceDocRef:      c.source,
		Amount:            c.amount,
		Currency:          bud.Currency,
		Description:       c.desc,
		TransactionDate:   time.Now(),
		Status:            procurement_core.TxActive,
		CreatedAt:         time.Now(),
		CreatedByID:       c.createdByID,
	}

	err = c.tx.Create(&tran).Error
	if err != nil {
		return c.setErr(err)
	}

	bud.CommittedAmount = procurement_core.RoundUp(bud.CommittedAmount+c.amount, procurement_core.Precision)
	err = c.tx.Model(&procurement_core.Budget{}).
		Where("id = ?", bud.ID).
		Update("committed_amount", bud.CommittedAmount).
		Error
	if err != nil {
		return c.setErr(err)
	}

	if alloc != nil {
		alloc.CommittedAmount = procurement_core.RoundUp(alloc.CommittedAmount+c.amount, procurement_core.Precision)
		err = c.tx.Model(&procurement_core.BudgetAllocation{}).
			Where("id = ?", alloc.ID).
			Update("committed_amount", alloc.CommittedAmount).
			Error
		if err != nil {
			return c.setErr(err)
		}
	}

	emitThresholdAlerts(evmng, bud, c.allocationID, beforeUsed)

	c.data = &tran
	return c
}

func (c *commitBudgetImpl) setErr(err error) *commitBudgetImpl {
	if c.err != nil {
		return c
	}

	if err != nil {
		c.err = err
	}

	return c
}

func NewCommit(tx *gorm.DB) CommitBudget {
	return &commitBudgetImpl{
		tx: tx,
	}
}

func newTransactionNumber() string {
	return "BTX-" + uuid.NewString()
}

func lockBudget(tx *gorm.DB, budgetID uint) (*procurement_core.Budget, error) {
	var bud procurement_core.Budget

	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Model(&procurement_core.Budget{}).
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

	return &bud, nil
}

func lockAllocation(tx *gorm.DB, allocationID uint) (*procurement_core.BudgetAllocation, error) {
	var alloc procurement_core.BudgetAllocation

	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Model(&procurement_core.BudgetAllocation{}).
		Where("id = ?", allocationID).
		Find(&alloc).
		Error

	if err != nil {
		return nil, err
	}

	if alloc.ID == 0 {
		return nil, &procurement_core.ValidationError{
			Field:  "allocation_id",
			Reason: fmt.Sprintf("allocation %d not found", allocationID),
		}
	}

	return &alloc, nil
}

func lockTransaction(tx *gorm.DB, transactionID uint) (*procurement_core.BudgetTransaction, error) {
	var tran procurement_core.BudgetTransaction

	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Model(&procurement_core.BudgetTransaction{}).
		Where("id = ?", transactionID).
		Find(&tran).
		Error

	if err != nil {
		return nil, err
	}

	if tran.ID == 0 {
		return nil, errors.New("budget transaction not found")
	}

	return &tran, nil
}
