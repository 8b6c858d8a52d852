package budget

import (
	"time"

	"github.com/pdcgo/procurement_service/procurement_core"
	"gorm.io/gorm"
)

// ConvertToSpend moves a commitment to actual expenditure once the real cost
// is known. When the actual is lower than the estimate the delta flows back
// into available automatically; a higher actual must still fit the budget's
// overspend ceiling.
type ConvertToSpend interface {
	Transaction(transactionID uint) ConvertToSpend
	ActualAmount(amount float64) ConvertToSpend
	Desc(desc string) ConvertToSpend
	CreatedBy(userID uint) ConvertToSpend
	Exec(evmng procurement_core.EventManage) ConvertToSpend
	Data() *procurement_core.BudgetTransaction
	Err() error
}

type convertToSpendImpl struct {
	tx *gorm.DB

	transactionID uint
	actual        float64
	desc          string
	createdByID   uint

	data *procurement_core.BudgetTransaction
	err  error
}

// Transaction implements ConvertToSpend.
func (c *convertToSpendImpl) Transaction(transactionID uint) ConvertToSpend {
	c.transactionID = transactionID
	return c
}

// ActualAmount implements ConvertToSpend.
func (c *convertToSpendImpl) ActualAmount(amount float64) ConvertToSpend {
	c.actual = amount
	return c
}

// Desc implements ConvertToSpend.
func (c *convertToSpendImpl) Desc(desc string) ConvertToSpend {
	c.desc = desc
	return c
}

// CreatedBy implements ConvertToSpend.
func (c *convertToSpendImpl) CreatedBy(userID uint) ConvertToSpend {
	c.createdByID = userID
	return c
}

// Data implements ConvertToSpend.
func (c *convertToSpendImpl) Data() *procurement_core.BudgetTransaction {
	return c.data
}

// Err implements ConvertToSpend.
func (c *convertToSpendImpl) Err() error {
	return c.err
}

// Exec implements ConvertToSpend.
func (c *convertToSpendImpl) Exec(evmng procurement_core.EventManage) ConvertToSpend {
	if c.err != nil {
		return c
	}
	if c.actual <= 0 {
		return c.setErr(&procurement_core.ValidationError{Field: "actual_amount", Reason: "must be positive"})
	}

	tran, err := lockTransaction(c.tx, c.transactionID)
	if err != nil {
		return c.setErr(err)
	}

	if tran.TxType != procurement_core.TxCommitment {
		return c.setErr(&procurement_core.ValidationError{
			Field:  "transaction_id",
			Reason: "only commitments can convert to spend",
		})
	}

	if tran.Status != procurement_core.TxActive {
		return c.setErr(&procurement_core.ConcurrencyConflictError{
			Entity: "budget_transaction",
			ID:     tran.ID,
			Reason: "commitment already " + string(tran.Status),
		})
	}

	bud, err := lockBudget(c.tx, tran.BudgetID)
	if err != nil {
		return c.setErr(err)
	}

	beforeUsed := bud.UsedPct()

	// Committed drops by the full estimate, spent grows by actual. An actual
	// above the estimate consumes extra headroom and must fit the ceiling.
	if c.actual > tran.Amount {
		extra := c.actual - tran.Amount
		if bud.CommittedAmount+bud.SpentAmount+extra > bud.CommitCeiling() {
			return c.setErr(&procurement_core.BudgetExceededError{
				BudgetID:  bud.ID,
				Requested: extra,
				Available: bud.Available(),
			})
		}
	}

	var alloc *procurement_core.BudgetAllocation
	if tran.AllocationID != nil {
		alloc, err = lockAllocation(c.tx, *tran.AllocationID)
		if err != nil {
			return c.setErr(err)
		}

		// The allocation already carries the committed estimate, only the
		// overage needs fresh headroom.
		if c.actual > tran.Amount {
			extra := c.actual - tran.Amount
			if !alloc.CanOverspend && extra > alloc.Available() {
				return c.setErr(&procurement_core.BudgetExceededError{
					BudgetID:     bud.ID,
					AllocationID: alloc.ID,
					Requested:    extra,
					Available:    alloc.Available(),
				})
			}
		}
	}

	now := time.Now()
	expenditure := procurement_core.BudgetTransaction{
		TransactionNumber: newTransactionNumber(),
		BudgetID:          tran.BudgetID,
		AllocationID:      tran.AllocationID,
		TxType:            procurement_core.TxExpenditure,
		SourceDocRef:      tran.SourceDocRef,
		Amount:            c.actual,
		Currency:          tran.Currency,
		Description:       c.desc,
		TransactionDate:   now,
		Status:            procurement_core.TxActive,
		CreatedAt:         now,
		CreatedByID:       c.createdByID,
	}

	err = c.tx.Create(&expenditure).Error
	if err != nil {
		return c.setErr(err)
	}

	err = c.tx.Model(&procurement_core.BudgetTransaction{}).
		Where("id = ?", tran.ID).
		Update("status", procurement_core.TxSpent).
		Error
	if err != nil {
		return c.setErr(err)
	}

	bud.CommittedAmount = procurement_core.RoundUp(bud.CommittedAmount-tran.Amount, procurement_core.Precision)
	bud.SpentAmount = procurement_core.RoundUp(bud.SpentAmount+c.actual, procurement_core.Precision)
	err = c.tx.Model(&procurement_core.Budget{}).
		Where("id = ?", bud.ID).
		Updates(map[string]interface{}{
			"committed_amount": bud.CommittedAmount,
			"spent_amount":     bud.SpentAmount,
		}).
		Error
	if err != nil {
		return c.setErr(err)
	}

	if alloc != nil {
		alloc.CommittedAmount = procurement_core.RoundUp(alloc.CommittedAmount-tran.Amount, procurement_core.Precision)
		alloc.SpentAmount = procurement_core.RoundUp(alloc.SpentAmount+c.actual, procurement_core.Precision)
		err = c.tx.Model(&procurement_core.BudgetAllocation{}).
			Where("id = ?", alloc.ID).
			Updates(map[string]interface{}{
				"committed_amount": alloc.CommittedAmount,
				"spent_amount":     alloc.SpentAmount,
			}).
			Error
		if err != nil {
			return c.setErr(err)
		}
	}

	emitThresholdAlerts(evmng, bud, tran.AllocationID, beforeUsed)

	c.data = &expenditure
	return c
}

func (c *convertToSpendImpl) setErr(err error) *convertToSpendImpl {
	if c.err != nil {
		return c
	}

	if err != nil {
		c.err = err
	}

	return c
}

func NewConvertToSpend(tx *gorm.DB) ConvertToSpend {
	return &convertToSpendImpl{
		tx: tx,
	}
}
