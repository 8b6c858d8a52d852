package procurement_core

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ValidationError rejects bad input before any state change happens.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Error implements error.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

// AuthorizationError means the actor is not allowed to act on the document.
type AuthorizationError struct {
	ActorID uint   `json:"actor_id"`
	Reason  string `json:"reason"`
}

// Error implements error.
func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("actor %d not authorized: %s", e.ActorID, e.Reason)
}

// BudgetExceededError is returned when a commit does not fit the available
// amount and overspend is not permitted.
type BudgetExceededError struct {
	BudgetID     uint    `json:"budget_id"`
	AllocationID uint    `json:"allocation_id,omitempty"`
	Requested    float64 `json:"requested"`
	Available    float64 `json:"available"`
}

// Error implements error.
func (e *BudgetExceededError) Error() string {
	raw, _ := json.Marshal(e)
	return "budget exceeded " + string(raw)
}

// AmbiguousWorkflowError signals a configuration error where more than one
// workflow matches at the same specificity tier. Never auto-resolved.
type AmbiguousWorkflowError struct {
	DocumentType string  `json:"document_type"`
	UnitID       uint    `json:"unit_id"`
	Amount       float64 `json:"amount"`
	WorkflowIDs  []uint  `json:"workflow_ids"`
}

// Error implements error.
func (e *AmbiguousWorkflowError) Error() string {
	raw, _ := json.Marshal(e)
	return "ambiguous workflow configuration " + string(raw)
}

// ConcurrencyConflictError is returned when an operation loses a race and
// observes stale or already-terminal state. Callers should refetch before
// deciding whether a retry makes sense.
type ConcurrencyConflictError struct {
	Entity string `json:"entity"`
	ID     uint   `json:"id"`
	Reason string `json:"reason"`
}

// Error implements error.
func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("conflict on %s %d: %s", e.Entity, e.ID, e.Reason)
}

// HTTPStatus maps the error taxonomy to a response status code.
func HTTPStatus(err error) int {
	switch err.(type) {
	case *ValidationError:
		return http.StatusUnprocessableEntity
	case *AuthorizationError:
		return http.StatusForbidden
	case *BudgetExceededError:
		return http.StatusConflict
	case *AmbiguousWorkflowError:
		return http.StatusInternalServerError
	case *ConcurrencyConflictError:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
