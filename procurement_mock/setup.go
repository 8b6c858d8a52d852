package procurement_mock

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pdcgo/procurement_service/common"
	"github.com/pdcgo/procurement_service/procurement_core"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB opens an in-memory sqlite database with the full schema
// migrated. Each call gets its own database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Named per test so the shared-cache handle is isolated while staying
	// visible to every pooled connection.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
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
	require.NoError(t, err)

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}

func SeedUnit(t *testing.T, db *gorm.DB, unitID uint, currency string) *common.Unit {
	t.Helper()

	unit := common.Unit{
		ID:        unitID,
		UnitCode:  "UNIT",
		Name:      "Test Property",
		Currency:  currency,
		ManagerID: 1,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	require.NoError(t, db.Create(&unit).Error)

	return &unit
}

func SeedRole(t *testing.T, db *gorm.DB, unitID uint, role string, userIDs ...uint) {
	t.Helper()

	for _, userID := range userIDs {
		assignment := common.RoleAssignment{
			UnitID: unitID,
			UserID: userID,
			Role:   role,
		}
		require.NoError(t, db.Create(&assignment).Error)
	}
}

func SeedBudget(t *testing.T, db *gorm.DB, unitID uint, total float64, currency string) *procurement_core.Budget {
	t.Helper()

	bud := procurement_core.Budget{
		BudgetCode:          "BUD-TEST",
		BudgetName:          "Test Budget",
		UnitID:              unitID,
		BudgetType:          procurement_core.BudgetOperational,
		TotalAmount:         total,
		Currency:            currency,
		FiscalYear:          time.Now().Year(),
		StartDate:           time.Now().AddDate(0, -1, 0),
		EndDate:             time.Now().AddDate(1, 0, 0),
		Status:              procurement_core.BudgetActive,
		WarningThresholdPct: 80,
		FreezeThresholdPct:  95,
		CreatedAt:           time.Now(),
	}
	require.NoError(t, db.Create(&bud).Error)

	return &bud
}

type LevelSpec struct {
	Rule              procurement_core.ApproverRuleType
	UserID            uint
	Role              string
	ApproversRequired int
	AmountThreshold   float64
	TimeoutHours      int
	EscalationToID    uint
}

// SeedWorkflow installs an active workflow scoped to the unit (zero unitID
// means global default).
func SeedWorkflow(t *testing.T, db *gorm.DB, unitID uint, currency string, levels ...*LevelSpec) *procurement_core.ApprovalWorkflow {
	t.Helper()

	wf := procurement_core.ApprovalWorkflow{
		WorkflowCode:        "wf-test",
		Version:             1,
		WorkflowName:        "Test Workflow",
		DocumentType:        procurement_core.RequisitionDoc,
		Currency:            currency,
		IsActive:            true,
		EscalationEnabled:   true,
		MaxEscalationLevels: 2,
		CreatedAt:           time.Now(),
	}
	if unitID != 0 {
		wf.UnitID = &unitID
	} else {
		wf.IsDefault = true
	}

	for idx, spec := range levels {
		level := procurement_core.ApprovalLevel{
			LevelNumber:       idx + 1,
			RuleType:          spec.Rule,
			RequiredRole:      spec.Role,
			ApproversRequired: spec.ApproversRequired,
			TimeoutHours:      spec.TimeoutHours,
			IsActive:          true,
			CreatedAt:         time.Now(),
		}
		if spec.Rule == procurement_core.RuleSpecificUser {
			userID := spec.UserID
			level.RequiredUserID = &userID
		}
		if spec.AmountThreshold > 0 {
			threshold := spec.AmountThreshold
			level.AmountThreshold = &threshold
		}
		if spec.TimeoutHours == 0 {
			level.TimeoutHours = 48
		}
		if spec.EscalationToID != 0 {
			escTo := spec.EscalationToID
			level.EscalationToID = &escTo
		}

		wf.Levels = append(wf.Levels, &level)
	}

	require.NoError(t, db.Create(&wf).Error)

	return &wf
}

// StaticRoleDirectory serves fixed role memberships without a database.
type StaticRoleDirectory map[string][]uint

func (d StaticRoleDirectory) UsersWithRole(ctx context.Context, tx *gorm.DB, unitID uint, role string) ([]uint, error) {
	return d[role], nil
}
