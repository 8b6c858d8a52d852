package procurement_core

import (
	"time"
)

type RequisitionStatus string

const (
	StatusDraft              RequisitionStatus = "draft"
	StatusSubmitted          RequisitionStatus = "submitted"
	StatusPendingApproval    RequisitionStatus = "pending_approval"
	StatusApproved           RequisitionStatus = "approved"
	StatusRejected           RequisitionStatus = "rejected"
	StatusPartiallyFulfilled RequisitionStatus = "partially_fulfilled"
	StatusFulfilled          RequisitionStatus = "fulfilled"
	StatusCancelled          RequisitionStatus = "cancelled"
)

// Terminal reports whether the approval chain can no longer move.
func (s RequisitionStatus) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusCancelled, StatusFulfilled, StatusPartiallyFulfilled:
		return true
	}
	return false
}

type RequisitionPriority string

const (
	PriorityLow       RequisitionPriority = "low"
	PriorityMedium    RequisitionPriority = "medium"
	PriorityHigh      RequisitionPriority = "high"
	PriorityUrgent    RequisitionPriority = "urgent"
	PriorityEmergency RequisitionPriority = "emergency"
)

type Requisition struct {
	ID                uint   `json:"id" gorm:"primarykey"`
	RequisitionNumber string `json:"requisition_number" gorm:"index:req_number,unique"`
	Title             string `json:"title"`
	Description       string `json:"description"`

	UnitID     uint   `json:"unit_id" gorm:"index"`
	Department string `json:"department"`
	Category   string `json:"category"`

	Status   RequisitionStatus   `json:"status" gorm:"index"`
	Priority RequisitionPriority `json:"priority"`

	RequestedByID  uint      `json:"requested_by_id"`
	RequestedDate  time.Time `json:"requested_date"`
	RequiredByDate time.Time `json:"required_by_date"`

	BusinessJustification string `json:"business_justification"`

	EstimatedTotalValue float64 `json:"estimated_total_value"`
	Currency            string  `json:"currency"`

	// Budget line the commitment is booked against, chosen by the requester.
	BudgetID     uint  `json:"budget_id"`
	AllocationID *uint `json:"allocation_id"`

	// Open commitment created on submit, released on reject/return/cancel.
	CommitTransactionID *uint `json:"commit_transaction_id"`

	WorkflowID             *uint `json:"workflow_id"`
	ApprovalLevel          int   `json:"approval_level"`
	RequiresApprovalLevels int   `json:"requires_approval_levels"`

	SubmittedAt *time.Time `json:"submitted_at"`
	ApprovedAt  *time.Time `json:"approved_at"`
	RejectedAt  *time.Time `json:"rejected_at"`
	FulfilledAt *time.Time `json:"fulfilled_at"`
	CancelledAt *time.Time `json:"cancelled_at"`

	RejectionReason    string `json:"rejection_reason"`
	RejectedByID       *uint  `json:"rejected_by_id"`
	CancellationReason string `json:"cancellation_reason"`
	CancelledByID      *uint  `json:"cancelled_by_id"`

	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	CreatedByID uint      `json:"created_by_id"`
	UpdatedByID uint      `json:"updated_by_id"`

	IsDeleted   bool       `json:"is_deleted" gorm:"index"`
	DeletedAt   *time.Time `json:"deleted_at"`
	DeletedByID *uint      `json:"deleted_by_id"`

	Items     []*RequisitionItem     `json:"items"`
	Approvals []*RequisitionApproval `json:"approvals"`
}

// Editable reports whether requester-side content changes are allowed.
func (r *Requisition) Editable() bool {
	return r.Status == StatusDraft || r.Status == StatusSubmitted
}

func (r *Requisition) ComputeTotal() float64 {
	var total float64
	for _, item := range r.Items {
		total += item.Total()
	}
	return RoundUp(total, Precision)
}

type RequisitionItem struct {
	ID            uint `json:"id" gorm:"primarykey"`
	RequisitionID uint `json:"requisition_id" gorm:"index:req_item_line,unique"`
	LineNumber    int  `json:"line_number" gorm:"index:req_item_line,unique"`

	ProductCode        string `json:"product_code"`
	ProductName        string `json:"product_name"`
	ProductDescription string `json:"product_description"`

	QuantityRequested float64  `json:"quantity_requested"`
	QuantityApproved  *float64 `json:"quantity_approved"`
	QuantityFulfilled float64  `json:"quantity_fulfilled"`
	UnitOfMeasure     string   `json:"unit_of_measure"`

	EstimatedUnitPrice  float64 `json:"estimated_unit_price"`
	EstimatedTotalPrice float64 `json:"estimated_total_price"`
	Currency            string  `json:"currency"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (it *RequisitionItem) Total() float64 {
	return RoundUp(it.QuantityRequested*it.EstimatedUnitPrice, Precision)
}

type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
	DecisionReturned Decision = "returned"
)

// RequisitionApproval is the immutable decision record. State is always
// derivable by replaying these rows, they are never updated.
type RequisitionApproval struct {
	ID                uint `json:"id" gorm:"primarykey"`
	RequisitionID     uint `json:"requisition_id" gorm:"index:req_approval_level"`
	ApprovalRequestID uint `json:"approval_request_id" gorm:"index"`
	ApprovalLevel     int  `json:"approval_level" gorm:"index:req_approval_level"`

	ApproverID   uint   `json:"approver_id" gorm:"index"`
	ApproverRole string `json:"approver_role"`

	Decision     Decision  `json:"decision"`
	DecisionDate time.Time `json:"decision_date"`
	Comments     string    `json:"comments"`

	ApprovedAmount float64 `json:"approved_amount"`
	Currency       string  `json:"currency"`

	EscalatedFromID *uint  `json:"escalated_from_id"`
	EscalationNote  string `json:"escalation_note"`

	CreatedAt time.Time `json:"created_at"`
}

type ApprovalRequestStatus string

const (
	// RequestQueued levels exist from submit time so the resolution snapshot
	// survives, but are not actionable until the chain reaches them.
	RequestQueued    ApprovalRequestStatus = "queued"
	RequestPending   ApprovalRequestStatus = "pending"
	RequestApproved  ApprovalRequestStatus = "approved"
	RequestRejected  ApprovalRequestStatus = "rejected"
	RequestReturned  ApprovalRequestStatus = "returned"
	RequestExpired   ApprovalRequestStatus = "expired"
	RequestCancelled ApprovalRequestStatus = "cancelled"
)

func (s ApprovalRequestStatus) Decided() bool {
	switch s {
	case RequestApproved, RequestRejected, RequestReturned:
		return true
	}
	return false
}

// ApprovalRequest tracks one level of one requisition's chain. Created by the
// state machine, terminal once decided, never reused across levels.
type ApprovalRequest struct {
	ID            uint   `json:"id" gorm:"primarykey"`
	RequestNumber string `json:"request_number" gorm:"index:approval_req_number,unique"`

	// One open request per (requisition, level) at a time. The index is not
	// unique because a returned requisition opens a fresh chain on resubmit.
	RequisitionID uint `json:"requisition_id" gorm:"index:approval_req_level"`
	WorkflowID    uint `json:"workflow_id" gorm:"index"`
	LevelID       uint `json:"level_id"`
	LevelNumber   int  `json:"level_number" gorm:"index:approval_req_level"`

	// Candidate set snapshotted at resolution time. Later role changes never
	// alter an in-flight chain.
	CandidateIDs      UintList `json:"candidate_ids" gorm:"serializer:json"`
	AssignedToID      *uint    `json:"assigned_to_id" gorm:"index"`
	AssignedRole      string   `json:"assigned_role"`
	ApprovalsRequired int      `json:"approvals_required"`
	ApprovalsReceived int      `json:"approvals_received"`

	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`

	Status ApprovalRequestStatus `json:"status" gorm:"index"`

	AssignedAt time.Time  `json:"assigned_at"`
	DueDate    *time.Time `json:"due_date" gorm:"index"`

	DecisionDate     *time.Time `json:"decision_date"`
	DecisionByID     *uint      `json:"decision_by_id"`
	DecisionComments string     `json:"decision_comments"`

	EscalatedAt      *time.Time `json:"escalated_at"`
	EscalationCount  int        `json:"escalation_count"`
	EscalatedToID    *uint      `json:"escalated_to_id"`
	EscalationReason string     `json:"escalation_reason"`

	ReminderSentCount int `json:"reminder_sent_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type UintList []uint

func (l UintList) Contains(id uint) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}
