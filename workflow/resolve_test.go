package workflow_test

import (
	"context"
	"testing"

	"github.com/pdcgo/procurement_service/common"
	"github.com/pdcgo/procurement_service/procurement_core"
	"github.com/pdcgo/procurement_service/procurement_mock"
	"github.com/pdcgo/procurement_service/workflow"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestResolvePrecedence(t *testing.T) {
	db := procurement_mock.SetupTestDB(t)

	roles := procurement_mock.StaticRoleDirectory{
		"unit_manager":    {10, 11},
		"finance_officer": {20},
	}
	resolver := workflow.NewResolver(roles)

	// Global default plus a unit-scoped workflow for unit 1.
	globalWf := procurement_mock.SeedWorkflow(t, db, 0, "USD",
		&procurement_mock.LevelSpec{
			Rule:              procurement_core.RuleAnyOfRole,
			Role:              "unit_manager",
			ApproversRequired: 1,
		},
	)

	unitWf := procurement_core.ApprovalWorkflow{
		WorkflowCode: "wf-unit",
		Version:      1,
		DocumentType: procurement_core.RequisitionDoc,
		Currency:     "USD",
		IsActive:     true,
		Levels: []*procurement_core.ApprovalLevel{
			{
				LevelNumber:       1,
				RuleType:          procurement_core.RuleAnyOfRole,
				RequiredRole:      "finance_officer",
				ApproversRequired: 1,
				TimeoutHours:      24,
				IsActive:          true,
			},
		},
	}
	unitID := uint(1)
	unitWf.UnitID = &unitID
	assert.Nil(t, db.Create(&unitWf).Error)

	t.Run("unit workflow beats global default", func(t *testing.T) {
		res, err := resolver.Resolve(context.TODO(), db, &workflow.ResolveQuery{
			DocumentType: procurement_core.RequisitionDoc,
			UnitID:       1,
			Amount:       500,
			Currency:     "USD",
		})
		assert.Nil(t, err)
		assert.Equal(t, unitWf.ID, res.Workflow.ID)
		assert.Equal(t, []uint{20}, res.Levels[0].CandidateIDs)
	})

	t.Run("other units fall back to the global default", func(t *testing.T) {
		res, err := resolver.Resolve(context.TODO(), db, &workflow.ResolveQuery{
			DocumentType: procurement_core.RequisitionDoc,
			UnitID:       2,
			Amount:       500,
			Currency:     "USD",
		})
		assert.Nil(t, err)
		assert.Equal(t, globalWf.ID, res.Workflow.ID)
	})

	t.Run("unit and category beats unit only", func(t *testing.T) {
		category := "engineering"
		catWf := procurement_core.ApprovalWorkflow{
			WorkflowCode: "wf-unit-cat",
			Version:      1,
			DocumentType: procurement_core.RequisitionDoc,
			Currency:     "USD",
			IsActive:     true,
			UnitID:       &unitID,
			Category:     &category,
			Levels: []*procurement_core.ApprovalLevel{
				{
					LevelNumber:       1,
					RuleType:          procurement_core.RuleAnyOfRole,
					RequiredRole:      "unit_manager",
					ApproversRequired: 1,
					TimeoutHours:      24,
					IsActive:          true,
				},
			},
		}
		assert.Nil(t, db.Create(&catWf).Error)

		res, err := resolver.Resolve(context.TODO(), db, &workflow.ResolveQuery{
			DocumentType: procurement_core.RequisitionDoc,
			UnitID:       1,
			Category:     "engineering",
			Amount:       500,
			Currency:     "USD",
		})
		assert.Nil(t, err)
		assert.Equal(t, catWf.ID, res.Workflow.ID)
	})

	t.Run("no matching workflow fails closed", func(t *testing.T) {
		_, err := resolver.Resolve(context.TODO(), db, &workflow.ResolveQuery{
			DocumentType: procurement_core.RequisitionDoc,
			UnitID:       2,
			Amount:       500,
			Currency:     "EUR",
		})

		var invalid *procurement_core.ValidationError
		assert.ErrorAs(t, err, &invalid)
	})
}

func TestResolveAmbiguity(t *testing.T) {
	db := procurement_mock.SetupTestDB(t)
	resolver := workflow.NewResolver(procurement_mock.StaticRoleDirectory{
		"unit_manager": {10},
	})

	unitID := uint(1)
	for _, code := range []string{"wf-a", "wf-b"} {
		wf := procurement_core.ApprovalWorkflow{
			WorkflowCode: code,
			Version:      1,
			DocumentType: procurement_core.RequisitionDoc,
			Currency:     "USD",
			IsActive:     true,
			UnitID:       &unitID,
			Levels: []*procurement_core.ApprovalLevel{
				{
					LevelNumber:       1,
					RuleType:          procurement_core.RuleAnyOfRole,
					RequiredRole:      "unit_manager",
					ApproversRequired: 1,
					TimeoutHours:      24,
					IsActive:          true,
				},
			},
		}
		assert.Nil(t, db.Create(&wf).Error)
	}

	_, err := resolver.Resolve(context.TODO(), db, &workflow.ResolveQuery{
		DocumentType: procurement_core.RequisitionDoc,
		UnitID:       1,
		Amount:       500,
		Currency:     "USD",
	})

	var ambiguous *procurement_core.AmbiguousWorkflowError
	assert.ErrorAs(t, err, &ambiguous)
	assert.Len(t, ambiguous.WorkflowIDs, 2)
}

func TestResolveLevels(t *testing.T) {
	db := procurement_mock.SetupTestDB(t)

	roles := procurement_mock.StaticRoleDirectory{
		"unit_manager":    {10, 11},
		"general_manager": {30},
	}
	resolver := workflow.NewResolver(roles)

	procurement_mock.SeedWorkflow(t, db, 0, "USD",
		&procurement_mock.LevelSpec{
			Rule:              procurement_core.RuleAnyOfRole,
			Role:              "unit_manager",
			ApproversRequired: 1,
		},
		&procurement_mock.LevelSpec{
			Rule:              procurement_core.RuleAnyOfRole,
			Role:              "general_manager",
			ApproversRequired: 1,
			AmountThreshold:   5000,
		},
	)

	t.Run("low amount skips thresholded level", func(t *testing.T) {
		res, err := resolver.Resolve(context.TODO(), db, &workflow.ResolveQuery{
			DocumentType: procurement_core.RequisitionDoc,
			UnitID:       1,
			Amount:       3000,
			Currency:     "USD",
		})
		assert.Nil(t, err)
		assert.Len(t, res.Levels, 1)
		assert.Equal(t, 1, res.Levels[0].Level.LevelNumber)
	})

	t.Run("high amount keeps the whole chain", func(t *testing.T) {
		res, err := resolver.Resolve(context.TODO(), db, &workflow.ResolveQuery{
			DocumentType: procurement_core.RequisitionDoc,
			UnitID:       1,
			Amount:       8000,
			Currency:     "USD",
		})
		assert.Nil(t, err)
		assert.Len(t, res.Levels, 2)
		assert.Equal(t, []uint{30}, res.Levels[1].CandidateIDs)
	})

	t.Run("empty candidate set fails closed", func(t *testing.T) {
		empty := workflow.NewResolver(procurement_mock.StaticRoleDirectory{})

		_, err := empty.Resolve(context.TODO(), db, &workflow.ResolveQuery{
			DocumentType: procurement_core.RequisitionDoc,
			UnitID:       1,
			Amount:       3000,
			Currency:     "USD",
		})

		var invalid *procurement_core.ValidationError
		assert.ErrorAs(t, err, &invalid)
	})
}

// TestResolveInsideTransaction resolves with the database-backed role
// directory on the resolving transaction itself. The harness allows a single
// connection, a role lookup escaping to a second one would hang here.
func TestResolveInsideTransaction(t *testing.T) {
	db := procurement_mock.SetupTestDB(t)

	procurement_mock.SeedUnit(t, db, 1, "USD")
	procurement_mock.SeedRole(t, db, 1, "unit_manager", 10)
	procurement_mock.SeedRole(t, db, 1, "unit_manager", 11)
	procurement_mock.SeedWorkflow(t, db, 0, "USD",
		&procurement_mock.LevelSpec{
			Rule:              procurement_core.RuleAnyOfRole,
			Role:              "unit_manager",
			ApproversRequired: 1,
		},
	)

	resolver := workflow.NewResolver(common.NewUnitService(db))

	err := procurement_core.OpenTransaction(context.TODO(), db, func(tx *gorm.DB, evmng procurement_core.EventManage) error {
		res, err := resolver.Resolve(context.TODO(), tx, &workflow.ResolveQuery{
			DocumentType: procurement_core.RequisitionDoc,
			UnitID:       1,
			Amount:       500,
			Currency:     "USD",
		})
		if err != nil {
			return err
		}

		assert.Len(t, res.Levels, 1)
		assert.Equal(t, []uint{10, 11}, res.Levels[0].CandidateIDs)
		return nil
	})
	assert.Nil(t, err)
}

func TestWorkflowVersioning(t *testing.T) {
	db := procurement_mock.SetupTestDB(t)
	svc := workflow.NewWorkflowService(db, zap.NewNop())

	userID := uint(10)
	draft := func() *procurement_core.ApprovalWorkflow {
		return &procurement_core.ApprovalWorkflow{
			WorkflowCode: "wf-versioned",
			WorkflowName: "Versioned",
			DocumentType: procurement_core.RequisitionDoc,
			Currency:     "USD",
			Levels: []*procurement_core.ApprovalLevel{
				{
					LevelNumber:    1,
					RuleType:       procurement_core.RuleSpecificUser,
					RequiredUserID: &userID,
					TimeoutHours:   24,
				},
			},
		}
	}

	first, err := svc.Save(context.TODO(), draft(), 1)
	assert.Nil(t, err)
	assert.Equal(t, 1, first.Version)

	second, err := svc.Save(context.TODO(), draft(), 1)
	assert.Nil(t, err)
	assert.Equal(t, 2, second.Version)

	var old procurement_core.ApprovalWorkflow
	err = db.Model(&procurement_core.ApprovalWorkflow{}).
		Where("id = ?", first.ID).
		Find(&old).
		Error
	assert.Nil(t, err)
	assert.False(t, old.IsActive)

	// Levels persist through the association on save and load back with it.
	loaded, err := svc.ByID(context.TODO(), second.ID)
	assert.Nil(t, err)
	assert.Len(t, loaded.Levels, 1)
	assert.Equal(t, 1, loaded.Levels[0].LevelNumber)
}
