package procurement_core

import (
	"time"
)

type BudgetStatus string

const (
	BudgetDraft     BudgetStatus = "draft"
	BudgetActive    BudgetStatus = "active"
	BudgetSuspended BudgetStatus = "suspended"
	BudgetExpired   BudgetStatus = "expired"
	BudgetClosed    BudgetStatus = "closed"
)

type BudgetType string

const (
	BudgetOperational BudgetType = "operational"
	BudgetCapital     BudgetType = "capital"
	BudgetMaintenance BudgetType = "maintenance"
	BudgetProject     BudgetType = "project"
	BudgetEmergency   BudgetType = "emergency"
)

// Budget holds per unit/fiscal-period totals. CommittedAmount and SpentAmount
// are a materialized view over BudgetTransaction and must always reconcile to
// the non-reversed rows of that log.
type Budget struct {
	ID         uint   `json:"id" gorm:"primarykey"`
	BudgetCode string `json:"budget_code" gorm:"index:budget_code,unique"`
	BudgetName string `json:"budget_name"`

	UnitID     uint   `json:"unit_id" gorm:"index:budget_unit_type"`
	Department string `json:"department"`
	Category   string `json:"category"`

	BudgetType BudgetType `json:"budget_type" gorm:"index:budget_unit_type"`

	TotalAmount     float64 `json:"total_amount"`
	CommittedAmount float64 `json:"committed_amount"`
	SpentAmount     float64 `json:"spent_amount"`
	Currency        string  `json:"currency"`

	FiscalYear int       `json:"fiscal_year" gorm:"index"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`

	Status BudgetStatus `json:"status" gorm:"index"`

	WarningThresholdPct float64 `json:"warning_threshold_pct"`
	FreezeThresholdPct  float64 `json:"freeze_threshold_pct"`
	FreezeOnThreshold   bool    `json:"freeze_on_threshold"`
	AllowOverspend      bool    `json:"allow_overspend"`
	OverspendLimitPct   float64 `json:"overspend_limit_pct"`

	OwnerID uint `json:"owner_id"`

	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	CreatedByID uint      `json:"created_by_id"`
}

func (b *Budget) Available() float64 {
	return RoundUp(b.TotalAmount-b.CommittedAmount-b.SpentAmount, Precision)
}

// CommitCeiling is the maximum committed+spent the budget tolerates,
// including the bounded overspend margin when enabled.
func (b *Budget) CommitCeiling() float64 {
	if b.AllowOverspend {
		return b.TotalAmount * (1 + b.OverspendLimitPct/100)
	}
	return b.TotalAmount
}

func (b *Budget) UsedPct() float64 {
	if b.TotalAmount == 0 {
		return 0
	}
	return (b.CommittedAmount + b.SpentAmount) / b.TotalAmount * 100
}

// BudgetAllocation is a finer-grained slice of a Budget with the same
// commit/spend/available invariant. It must stay within the parent's
// available amount.
type BudgetAllocation struct {
	ID       uint `json:"id" gorm:"primarykey"`
	BudgetID uint `json:"budget_id" gorm:"index:budget_alloc_code,unique"`

	AllocationCode string `json:"allocation_code" gorm:"index:budget_alloc_code,unique"`
	AllocationName string `json:"allocation_name"`
	Category       string `json:"category"`
	ProjectCode    string `json:"project_code"`

	AllocatedAmount float64 `json:"allocated_amount"`
	CommittedAmount float64 `json:"committed_amount"`
	SpentAmount     float64 `json:"spent_amount"`

	OwnerID      *uint `json:"owner_id"`
	IsActive     bool  `json:"is_active"`
	CanOverspend bool  `json:"can_overspend"`

	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	CreatedByID uint      `json:"created_by_id"`
}

func (a *BudgetAllocation) Available() float64 {
	return RoundUp(a.AllocatedAmount-a.CommittedAmount-a.SpentAmount, Precision)
}

type TransactionType string

const (
	TxCommitment  TransactionType = "commitment"
	TxExpenditure TransactionType = "expenditure"
	TxAdjustment  TransactionType = "adjustment"
	TxReversal    TransactionType = "reversal"
)

type TransactionStatus string

const (
	TxActive   TransactionStatus = "active"
	TxReversed TransactionStatus = "reversed"
	TxSpent    TransactionStatus = "spent"
)

// BudgetTransaction is the append-only ledger. Rows are never deleted, a
// rejected or cancelled requisition leaves its commitment row behind with a
// reversal row pointing back at it.
type BudgetTransaction struct {
	ID                uint   `json:"id" gorm:"primarykey"`
	TransactionNumber string `json:"transaction_number" gorm:"index:budget_tx_number,unique"`

	BudgetID     uint  `json:"budget_id" gorm:"index"`
	AllocationID *uint `json:"allocation_id" gorm:"index"`

	TxType TransactionType `json:"tx_type" gorm:"index"`

	SourceDocRef DocRef `json:"source_doc_ref" gorm:"index"`

	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`

	Description     string    `json:"description"`
	TransactionDate time.Time `json:"transaction_date"`

	Status TransactionStatus `json:"status" gorm:"index"`

	ReversedByTransactionID *uint      `json:"reversed_by_transaction_id"`
	ReversalReason          string     `json:"reversal_reason"`
	ReversedAt              *time.Time `json:"reversed_at"`

	CreatedAt   time.Time `json:"created_at"`
	CreatedByID uint      `json:"created_by_id"`
}
