package procurement_core_test

import (
	"testing"

	"github.com/pdcgo/procurement_service/procurement_core"
	"github.com/stretchr/testify/assert"
)

func TestComputeTotal(t *testing.T) {
	req := procurement_core.Requisition{
		Items: []*procurement_core.RequisitionItem{
			{QuantityRequested: 2, EstimatedUnitPrice: 149.75},
			{QuantityRequested: 10, EstimatedUnitPrice: 3.5},
		},
	}

	assert.Equal(t, 334.5, req.ComputeTotal())
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, procurement_core.StatusDraft.Terminal())
	assert.False(t, procurement_core.StatusPendingApproval.Terminal())
	assert.True(t, procurement_core.StatusApproved.Terminal())
	assert.True(t, procurement_core.StatusCancelled.Terminal())
}

func TestWorkflowValidate(t *testing.T) {
	userID := uint(1)

	wf := procurement_core.ApprovalWorkflow{
		WorkflowCode: "wf",
		DocumentType: procurement_core.RequisitionDoc,
		Levels: []*procurement_core.ApprovalLevel{
			{
				LevelNumber:    1,
				RuleType:       procurement_core.RuleSpecificUser,
				RequiredUserID: &userID,
				TimeoutHours:   24,
			},
		},
	}
	assert.Nil(t, wf.Validate())

	t.Run("duplicate level numbers rejected", func(t *testing.T) {
		dup := wf
		dup.Levels = append(dup.Levels, &procurement_core.ApprovalLevel{
			LevelNumber:    1,
			RuleType:       procurement_core.RuleSpecificUser,
			RequiredUserID: &userID,
			TimeoutHours:   24,
		})
		assert.NotNil(t, dup.Validate())
	})

	t.Run("role rule needs a role", func(t *testing.T) {
		bad := procurement_core.ApprovalWorkflow{
			WorkflowCode: "wf2",
			DocumentType: procurement_core.RequisitionDoc,
			Levels: []*procurement_core.ApprovalLevel{
				{
					LevelNumber:       1,
					RuleType:          procurement_core.RuleAnyOfRole,
					ApproversRequired: 1,
					TimeoutHours:      24,
				},
			},
		}
		assert.NotNil(t, bad.Validate())
	})
}
