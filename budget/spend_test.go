package budget_test

import (
	"context"
	"testing"

	"github.com/pdcgo/procurement_service/budget"
	"github.com/pdcgo/procurement_service/procurement_core"
	"github.com/pdcgo/procurement_service/procurement_mock"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func commitToAllocation(db *gorm.DB, budgetID uint, allocationID uint, amount float64) (*procurement_core.BudgetTransaction, error) {
	var tran *procurement_core.BudgetTransaction

	err := procurement_core.OpenTransaction(context.TODO(), db, func(tx *gorm.DB, evmng procurement_core.EventManage) error {
		commit := budget.NewCommit(tx).
			Budget(budgetID).
			Allocation(allocationID).
			Source(procurement_core.NewDocRef(&procurement_core.DocRefData{
				DocType: procurement_core.RequisitionDoc,
				ID:      1,
			})).
			Amount(amount).
			CreatedBy(1).
			Exec(evmng)

		if err := commit.Err(); err != nil {
			return err
		}

		tran = commit.Data()
		return nil
	})

	return tran, err
}

func convertToSpend(db *gorm.DB, transactionID uint, actual float64) error {
	return procurement_core.OpenTransaction(context.TODO(), db, func(tx *gorm.DB, evmng procurement_core.EventManage) error {
		return budget.NewConvertToSpend(tx).
			Transaction(transactionID).
			ActualAmount(actual).
			CreatedBy(2).
			Exec(evmng).
			Err()
	})
}

func TestConvertToSpendAllocationCeiling(t *testing.T) {
	db := procurement_mock.SetupTestDB(t)
	bud := procurement_mock.SeedBudget(t, db, 1, 1000, "USD")

	alloc := procurement_core.BudgetAllocation{
		BudgetID:        bud.ID,
		AllocationCode:  "fnb-q3",
		AllocationName:  "F&B third quarter",
		AllocatedAmount: 100,
		IsActive:        true,
	}
	assert.Nil(t, db.Create(&alloc).Error)

	tran, err := commitToAllocation(db, bud.ID, alloc.ID, 90)
	assert.Nil(t, err)

	t.Run("actual above the allocation cap is rejected", func(t *testing.T) {
		// Budget headroom is plenty, the 100 allocation is the binding limit.
		err := convertToSpend(db, tran.ID, 180)

		var exceeded *procurement_core.BudgetExceededError
		assert.ErrorAs(t, err, &exceeded)
		assert.Equal(t, alloc.ID, exceeded.AllocationID)
		assert.Equal(t, float64(10), exceeded.Available)

		var after procurement_core.BudgetAllocation
		assert.Nil(t, db.Model(&procurement_core.BudgetAllocation{}).
			Where("id = ?", alloc.ID).
			Find(&after).
			Error)
		assert.Equal(t, float64(90), after.CommittedAmount)
		assert.Equal(t, float64(0), after.SpentAmount)
	})

	t.Run("overage inside the remaining allocation converts", func(t *testing.T) {
		err := convertToSpend(db, tran.ID, 100)
		assert.Nil(t, err)

		var after procurement_core.BudgetAllocation
		assert.Nil(t, db.Model(&procurement_core.BudgetAllocation{}).
			Where("id = ?", alloc.ID).
			Find(&after).
			Error)
		assert.Equal(t, float64(0), after.CommittedAmount)
		assert.Equal(t, float64(100), after.SpentAmount)
	})
}

func TestConvertToSpendOverspendableAllocation(t *testing.T) {
	db := procurement_mock.SetupTestDB(t)
	bud := procurement_mock.SeedBudget(t, db, 1, 1000, "USD")

	alloc := procurement_core.BudgetAllocation{
		BudgetID:        bud.ID,
		AllocationCode:  "maint-q3",
		AllocationName:  "Maintenance third quarter",
		AllocatedAmount: 100,
		IsActive:        true,
		CanOverspend:    true,
	}
	assert.Nil(t, db.Create(&alloc).Error)

	tran, err := commitToAllocation(db, bud.ID, alloc.ID, 90)
	assert.Nil(t, err)

	// The allocation may run over as long as the parent budget holds.
	err = convertToSpend(db, tran.ID, 180)
	assert.Nil(t, err)

	var after procurement_core.BudgetAllocation
	assert.Nil(t, db.Model(&procurement_core.BudgetAllocation{}).
		Where("id = ?", alloc.ID).
		Find(&after).
		Error)
	assert.Equal(t, float64(180), after.SpentAmount)
}
