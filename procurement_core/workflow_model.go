package procurement_core

import (
	"time"
)

type ApproverRuleType string

const (
	// RuleSpecificUser assigns one named user.
	RuleSpecificUser ApproverRuleType = "user"
	// RuleAnyOfRole opens the level to every holder of the role, satisfied by
	// ApproversRequired of them.
	RuleAnyOfRole ApproverRuleType = "any_of_role"
	// RuleAllOfRole requires every holder of the role at snapshot time.
	RuleAllOfRole ApproverRuleType = "all_of_role"
)

// ApprovalWorkflow scopes an ordered approval chain to a document type, unit,
// category and amount range. A version is immutable once an in-flight chain
// references it, edits create version n+1.
type ApprovalWorkflow struct {
	ID           uint   `json:"id" gorm:"primarykey"`
	WorkflowCode string `json:"workflow_code" gorm:"index:workflow_code_version,unique"`
	Version      int    `json:"version" gorm:"index:workflow_code_version,unique"`
	WorkflowName string `json:"workflow_name"`
	Description  string `json:"description"`

	// Nil unit scopes the workflow globally.
	UnitID       *uint   `json:"unit_id" gorm:"index"`
	DocumentType DocType `json:"document_type" gorm:"index"`
	Category     *string `json:"category"`

	AmountMin float64  `json:"amount_min"`
	AmountMax *float64 `json:"amount_max"`
	Currency  string   `json:"currency"`

	IsActive  bool `json:"is_active" gorm:"index"`
	IsDefault bool `json:"is_default"`

	// ParallelApproval opens every level at once, the requisition advances
	// only when all of them are satisfied.
	ParallelApproval bool `json:"parallel_approval"`

	EscalationEnabled   bool `json:"escalation_enabled"`
	MaxEscalationLevels int  `json:"max_escalation_levels"`

	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	CreatedByID uint      `json:"created_by_id"`

	Levels []*ApprovalLevel `json:"levels" gorm:"foreignKey:WorkflowID"`
}

type ApprovalLevel struct {
	ID         uint `json:"id" gorm:"primarykey"`
	WorkflowID uint `json:"workflow_id" gorm:"index:approval_level_wf,unique"`

	LevelNumber int    `json:"level_number" gorm:"index:approval_level_wf,unique"`
	LevelName   string `json:"level_name"`

	RuleType          ApproverRuleType `json:"rule_type"`
	RequiredUserID    *uint            `json:"required_user_id"`
	RequiredRole      string           `json:"required_role"`
	ApproversRequired int              `json:"approvers_required"`

	// Levels below the threshold are skipped, low-value requests bypass
	// senior sign-off.
	AmountThreshold *float64 `json:"amount_threshold"`

	TimeoutHours     int    `json:"timeout_hours"`
	EscalationToID   *uint  `json:"escalation_to_id"`
	EscalationToRole string `json:"escalation_to_role"`

	IsActive bool `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks a definition at save time so misconfiguration never
// surfaces mid-chain.
func (w *ApprovalWorkflow) Validate() error {
	if w.WorkflowCode == "" {
		return &ValidationError{Field: "workflow_code", Reason: "is required"}
	}
	if w.DocumentType == "" {
		return &ValidationError{Field: "document_type", Reason: "is required"}
	}
	if w.AmountMin < 0 {
		return &ValidationError{Field: "amount_min", Reason: "must be non-negative"}
	}
	if w.AmountMax != nil && *w.AmountMax <= w.AmountMin {
		return &ValidationError{Field: "amount_max", Reason: "must be greater than amount_min"}
	}
	if w.MaxEscalationLevels < 0 {
		return &ValidationError{Field: "max_escalation_levels", Reason: "must be non-negative"}
	}
	if len(w.Levels) == 0 {
		return &ValidationError{Field: "levels", Reason: "at least one level required"}
	}

	seen := map[int]bool{}
	for _, level := range w.Levels {
		if level.LevelNumber <= 0 {
			return &ValidationError{Field: "level_number", Reason: "must be positive"}
		}
		if seen[level.LevelNumber] {
			return &ValidationError{Field: "level_number", Reason: "duplicated in workflow"}
		}
		seen[level.LevelNumber] = true

		if err := level.validateRule(); err != nil {
			return err
		}
	}

	return nil
}

func (l *ApprovalLevel) validateRule() error {
	switch l.RuleType {
	case RuleSpecificUser:
		if l.RequiredUserID == nil {
			return &ValidationError{Field: "required_user_id", Reason: "required for user rule"}
		}
	case RuleAnyOfRole:
		if l.RequiredRole == "" {
			return &ValidationError{Field: "required_role", Reason: "required for any_of_role rule"}
		}
		if l.ApproversRequired <= 0 {
			return &ValidationError{Field: "approvers_required", Reason: "must be positive"}
		}
	case RuleAllOfRole:
		if l.RequiredRole == "" {
			return &ValidationError{Field: "required_role", Reason: "required for all_of_role rule"}
		}
	default:
		return &ValidationError{Field: "rule_type", Reason: "unknown approver rule"}
	}

	if l.TimeoutHours <= 0 {
		return &ValidationError{Field: "timeout_hours", Reason: "must be positive"}
	}
	if l.AmountThreshold != nil && *l.AmountThreshold < 0 {
		return &ValidationError{Field: "amount_threshold", Reason: "must be non-negative"}
	}

	return nil
}
