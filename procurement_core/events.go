package procurement_core

import (
	"time"
)

type EventKind string

const (
	EventStatusChanged EventKind = "requisition_status_changed"
	EventBudgetAlert   EventKind = "budget_alert"
	EventEscalated     EventKind = "approval_escalated"
	EventExpired       EventKind = "approval_expired"
)

// RequisitionEvent is the lifecycle event stream entry consumed by the
// notification hook.
type RequisitionEvent struct {
	RequisitionID uint              `json:"requisition_id"`
	FromStatus    RequisitionStatus `json:"from_status"`
	ToStatus      RequisitionStatus `json:"to_status"`
	ActorID       uint              `json:"actor_id"`
	Timestamp     time.Time         `json:"timestamp"`
	Reason        string            `json:"reason"`
}

type BudgetAlertEvent struct {
	BudgetID        uint    `json:"budget_id"`
	AllocationID    *uint   `json:"allocation_id,omitempty"`
	ThresholdPct    float64 `json:"threshold_pct"`
	ThresholdKind   string  `json:"threshold_kind"`
	AvailableAmount float64 `json:"available_amount"`
	UsedPct         float64 `json:"used_pct"`
}

// EscalationEvent covers both reassignment and expiry of overdue approvals.
// An expired request needs manual intervention, the sweeper never decides.
type EscalationEvent struct {
	ApprovalRequestID uint       `json:"approval_request_id"`
	RequisitionID     uint       `json:"requisition_id"`
	LevelNumber       int        `json:"level_number"`
	EscalatedToID     *uint      `json:"escalated_to_id,omitempty"`
	EscalationCount   int        `json:"escalation_count"`
	DueDate           *time.Time `json:"due_date,omitempty"`
	Reason            string     `json:"reason"`
}

type Event struct {
	Kind        EventKind         `json:"kind"`
	Requisition *RequisitionEvent `json:"requisition,omitempty"`
	BudgetAlert *BudgetAlertEvent `json:"budget_alert,omitempty"`
	Escalation  *EscalationEvent  `json:"escalation,omitempty"`
}
