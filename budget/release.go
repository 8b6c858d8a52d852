package budget

import (
	"time"

	"github.com/pdcgo/procurement_service/procurement_core"
	"gorm.io/gorm"
)

// ReleaseCommitment reverses an un-spent commitment: a reversal row is
// appended, the original row is marked reversed and committed totals are
// decremented under the same row locks the commit took.
type ReleaseCommitment interface {
	Transaction(transactionID uint) ReleaseCommitment
	Reason(reason string) ReleaseCommitment
	CreatedBy(userID uint) ReleaseCommitment
	Exec(evmng procurement_core.EventManage) ReleaseCommitment
	Data() *procurement_core.BudgetTransaction
	Err() error
}

type releaseCommitmentImpl struct {
	tx *gorm.DB

	transactionID uint
	reason        string
	createdByID   uint

	data *procurement_core.BudgetTransaction
	err  error
}

// Transaction implements ReleaseCommitment.
func (r *releaseCommitmentImpl) Transaction(transactionID uint) ReleaseCommitment {
	r.transactionID = transactionID
	return r
}

// Reason implements ReleaseCommitment.
func (r *releaseCommitmentImpl) Reason(reason string) ReleaseCommitment {
	r.reason = reason
	return r
}

// CreatedBy implements ReleaseCommitment.
func (r *releaseCommitmentImpl) CreatedBy(userID uint) ReleaseCommitment {
	r.createdByID = userID
	return r
}

// Data implements ReleaseCommitment.
func (r *releaseCommitmentImpl) Data() *procurement_core.BudgetTransaction {
	return r.data
}

// Err implements ReleaseCommitment.
func (r *releaseCommitmentImpl) Err() error {
	return r.err
}

// Exec implements ReleaseCommitment.
func (r *releaseCommitmentImpl) Exec(evmng procurement_core.EventManage) ReleaseCommitment {
	if r.err != nil {
		return r
	}

	tran, err := lockTransaction(r.tx, r.transactionID)
	if err != nil {
		return r.setErr(err)
	}

	if tran.TxType != procurement_core.TxCommitment {
		return r.setErr(&procurement_core.ValidationError{
			Field:  "transaction_id",
			Reason: "only commitments can be released",
		})
	}

	if tran.Status != procurement_core.TxActive {
		return r.setErr(&procurement_core.ConcurrencyConflictError{
			Entity: "budget_transaction",
			ID:     tran.ID,
			Reason: "commitment already " + string(tran.Status),
		})
	}

	bud, err := lockBudget(r.tx, tran.BudgetID)
	if err != nil {
		return r.setErr(err)
	}

	beforeUsed := bud.UsedPct()
	now := time.Now()

	reversal := procurement_core.BudgetTransaction{
		TransactionNumber: newTransactionNumber(),
		BudgetID:          tran.BudgetID,
		AllocationID:      tran.AllocationID,
		TxType:            procurement_core.TxReversal,
		SourceDocRef:      tran.SourceDocRef,
		Amount:            -tran.Amount,
		Currency:          tran.Currency,
		Description:       r.reason,
		TransactionDate:   now,
		Status:            procurement_core.TxActive,
		CreatedAt:         now,
		CreatedByID:       r.createdByID,
	}

	err = r.tx.Create(&reversal).Error
	if err != nil {
		return r.setErr(err)
	}

	err = r.tx.Model(&procurement_core.BudgetTransaction{}).
		Where("id = ?", tran.ID).
		Updates(map[string]interface{}{
			"status":                     procurement_core.TxReversed,
			"reversed_by_transaction_id": reversal.ID,
			"reversal_reason":            r.reason,
			"reversed_at":                now,
		}).
		Error
	if err != nil {
		return r.setErr(err)
	}

	bud.CommittedAmount = procurement_core.RoundUp(bud.CommittedAmount-tran.Amount, procurement_core.Precision)
	err = r.tx.Model(&procurement_core.Budget{}).
		Where("id = ?", bud.ID).
		Update("committed_amount", bud.CommittedAmount).
		Error
	if err != nil {
		return r.setErr(err)
	}

	if tran.AllocationID != nil {
		alloc, err := lockAllocation(r.tx, *tran.AllocationID)
		if err != nil {
			return r.setErr(err)
		}

		alloc.CommittedAmount = procurement_core.RoundUp(alloc.CommittedAmount-tran.Amount, procurement_core.Precision)
		err = r.tx.Model(&procurement_core.BudgetAllocation{}).
			Where("id = ?", alloc.ID).
			Update("committed_amount", alloc.CommittedAmount).
			Error
		if err != nil {
			return r.setErr(err)
		}
	}

	emitThresholdAlerts(evmng, bud, tran.AllocationID, beforeUsed)

	r.data = &reversal
	return r
}

func (r *releaseCommitmentImpl) setErr(err error) *releaseCommitmentImpl {
	if r.err != nil {
		return r
	}

	if err != nil {
		r.err = err
	}

	return r
}

func NewRelease(tx *gorm.DB) ReleaseCommitment {
	return &releaseCommitmentImpl{
		tx: tx,
	}
}
