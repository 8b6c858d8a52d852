package procurement_service

import (
	"log"

	"github.com/pdcgo/procurement_service/common"
	"github.com/pdcgo/procurement_service/procurement_core"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SeedHandler func() error

// NewSeedHandler installs the global fallback workflow so a fresh deployment
// can route requisitions before any unit configures its own chain.
func NewSeedHandler(
	db *gorm.DB,
) SeedHandler {
	return func() error {
		log.Println("seeding procurement service")

		requiredRole := "unit_manager"
		defaultWf := procurement_core.ApprovalWorkflow{
			WorkflowCode: "default-requisition",
			Version:      1,
			WorkflowName: "Default Requisition Approval",
			DocumentType: procurement_core.RequisitionDoc,
			AmountMin:    0,
			Currency:     "USD",
			IsActive:     true,
			IsDefault:    true,

			EscalationEnabled:   true,
			MaxEscalationLevels: 2,

			Levels: []*procurement_core.ApprovalLevel{
				{
					LevelNumber:       1,
					LevelName:         "Unit Manager",
					RuleType:          procurement_core.RuleAnyOfRole,
					RequiredRole:      requiredRole,
					ApproversRequired: 1,
					TimeoutHours:      48,
					EscalationToRole:  "general_manager",
					IsActive:          true,
				},
			},
		}

		return db.
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&defaultWf).
			Error
	}
}

type MigrationHandler func() error

func NewMigrationHandler(
	db *gorm.DB,
) MigrationHandler {
	return func() error {
		log.Println("migrating procurement service")
		return db.AutoMigrate(
			&common.Unit{},
			&common.RoleAssignment{},

			&procurement_core.Budget{},
			&procurement_core.BudgetAllocation{},
			&procurement_core.BudgetTransaction{},

			&procurement_core.ApprovalWorkflow{},
			&procurement_core.ApprovalLevel{},

			&procurement_core.Requisition{},
			&procurement_core.RequisitionItem{},
			&procurement_core.RequisitionApproval{},
			&procurement_core.ApprovalRequest{},
		)
	}
}
