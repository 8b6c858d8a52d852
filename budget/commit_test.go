package budget_test

import (
	"context"
	"sync"
	"testing"

	"github.com/pdcgo/procurement_service/budget"
	"github.com/pdcgo/procurement_service/procurement_core"
	"github.com/pdcgo/procurement_service/procurement_mock"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func commitAmount(db *gorm.DB, budgetID uint, amount float64) (*procurement_core.BudgetTransaction, error) {
	var tran *procurement_core.BudgetTransaction

	err := procurement_core.OpenTransaction(context.TODO(), db, func(tx *gorm.DB, evmng procurement_core.EventManage) error {
		commit := budget.NewCommit(tx).
			Budget(budgetID).
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

func TestCommitBudget(t *testing.T) {
	db := procurement_mock.SetupTestDB(t)
	bud := procurement_mock.SeedBudget(t, db, 1, 100, "USD")

	t.Run("commit within available succeeds", func(t *testing.T) {
		tran, err := commitAmount(db, bud.ID, 60)
		assert.Nil(t, err)
		assert.Equal(t, procurement_core.TxCommitment, tran.TxType)
		assert.Equal(t, procurement_core.TxActive, tran.Status)

		status, err := budget.QueryStatus(db, bud.ID, nil)
		assert.Nil(t, err)
		assert.Equal(t, float64(60), status.Committed)
		assert.Equal(t, float64(40), status.Available)
	})

	t.Run("commit past available fails and changes nothing", func(t *testing.T) {
		_, err := commitAmount(db, bud.ID, 60)
		assert.NotNil(t, err)

		var exceeded *procurement_core.BudgetExceededError
		assert.ErrorAs(t, err, &exceeded)
		assert.Equal(t, float64(40), exceeded.Available)

		status, err := budget.QueryStatus(db, bud.ID, nil)
		assert.Nil(t, err)
		assert.Equal(t, float64(60), status.Committed)
	})

	t.Run("second commit fits the remainder exactly", func(t *testing.T) {
		_, err := commitAmount(db, bud.ID, 40)
		assert.Nil(t, err)

		status, err := budget.QueryStatus(db, bud.ID, nil)
		assert.Nil(t, err)
		assert.Equal(t, float64(100), status.Committed)
		assert.Equal(t, float64(0), status.Available)
	})

	t.Run("zero amount is rejected", func(t *testing.T) {
		_, err := commitAmount(db, bud.ID, 0)

		var invalid *procurement_core.ValidationError
		assert.ErrorAs(t, err, &invalid)
	})
}

func TestConcurrentCommits(t *testing.T) {
	db := procurement_mock.SetupTestDB(t)
	bud := procurement_mock.SeedBudget(t, db, 1, 100, "USD")

	// Two 60s race for 100 available. The row lock serializes them, exactly
	// one must fail.
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := commitAmount(db, bud.ID, 60)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	failed := 0
	for err := range errs {
		if err != nil {
			var exceeded *procurement_core.BudgetExceededError
			assert.ErrorAs(t, err, &exceeded)
			failed++
		}
	}
	assert.Equal(t, 1, failed)

	status, err := budget.QueryStatus(db, bud.ID, nil)
	assert.Nil(t, err)
	assert.Equal(t, float64(60), status.Committed)
}

func TestCommitFrozenBudget(t *testing.T) {
	db := procurement_mock.SetupTestDB(t)
	bud := procurement_mock.SeedBudget(t, db, 1, 100, "USD")

	err := db.Model(&procurement_core.Budget{}).
		Where("id = ?", bud.ID).
		Update("freeze_on_threshold", true).
		Error
	assert.Nil(t, err)

	_, err = commitAmount(db, bud.ID, 90)
	assert.Nil(t, err)

	// 96% used crosses the 95% freeze line for the next commit.
	_, err = commitAmount(db, bud.ID, 6)
	assert.Nil(t, err)

	_, err = commitAmount(db, bud.ID, 1)
	var exceeded *procurement_core.BudgetExceededError
	assert.ErrorAs(t, err, &exceeded)
}

func TestCommitWithOverspend(t *testing.T) {
	db := procurement_mock.SetupTestDB(t)
	bud := procurement_mock.SeedBudget(t, db, 1, 100, "USD")

	err := db.Model(&procurement_core.Budget{}).
		Where("id = ?", bud.ID).
		Updates(map[string]any{
			"allow_overspend":     true,
			"overspend_limit_pct": 10,
		}).
		Error
	assert.Nil(t, err)

	_, err = commitAmount(db, bud.ID, 105)
	assert.Nil(t, err)

	_, err = commitAmount(db, bud.ID, 10)
	var exceeded *procurement_core.BudgetExceededError
	assert.ErrorAs(t, err, &exceeded)
}

func TestReleaseAndReplay(t *testing.T) {
	db := procurement_mock.SetupTestDB(t)
	bud := procurement_mock.SeedBudget(t, db, 1, 1000, "USD")

	first, err := commitAmount(db, bud.ID, 300)
	assert.Nil(t, err)
	second, err := commitAmount(db, bud.ID, 200)
	assert.Nil(t, err)

	t.Run("release appends reversal and restores available", func(t *testing.T) {
		err := procurement_core.OpenTransaction(context.TODO(), db, func(tx *gorm.DB, evmng procurement_core.EventManage) error {
			return budget.NewRelease(tx).
				Transaction(first.ID).
				Reason("requisition rejected").
				CreatedBy(2).
				Exec(evmng).
				Err()
		})
		assert.Nil(t, err)

		status, err := budget.QueryStatus(db, bud.ID, nil)
		assert.Nil(t, err)
		assert.Equal(t, float64(200), status.Committed)
		assert.Equal(t, float64(800), status.Available)

		var reversed procurement_core.BudgetTransaction
		err = db.Model(&procurement_core.BudgetTransaction{}).
			Where("id = ?", first.ID).
			Find(&reversed).
			Error
		assert.Nil(t, err)
		assert.Equal(t, procurement_core.TxReversed, reversed.Status)
		assert.NotNil(t, reversed.ReversedByTransactionID)
	})

	t.Run("double release conflicts", func(t *testing.T) {
		err := procurement_core.OpenTransaction(context.TODO(), db, func(tx *gorm.DB, evmng procurement_core.EventManage) error {
			return budget.NewRelease(tx).
				Transaction(first.ID).
				Reason("again").
				CreatedBy(2).
				Exec(evmng).
				Err()
		})

		var conflict *procurement_core.ConcurrencyConflictError
		assert.ErrorAs(t, err, &conflict)
	})

	t.Run("convert to spend at lower actual frees the delta", func(t *testing.T) {
		err := procurement_core.OpenTransaction(context.TODO(), db, func(tx *gorm.DB, evmng procurement_core.EventManage) error {
			return budget.NewConvertToSpend(tx).
				Transaction(second.ID).
				ActualAmount(150).
				CreatedBy(2).
				Exec(evmng).
				Err()
		})
		assert.Nil(t, err)

		status, err := budget.QueryStatus(db, bud.ID, nil)
		assert.Nil(t, err)
		assert.Equal(t, float64(0), status.Committed)
		assert.Equal(t, float64(150), status.Spent)
		assert.Equal(t, float64(850), status.Available)
	})

	t.Run("replay matches materialized totals", func(t *testing.T) {
		materialized, err := budget.QueryStatus(db, bud.ID, nil)
		assert.Nil(t, err)

		replayed, err := budget.Replay(db, bud.ID)
		assert.Nil(t, err)

		assert.True(t, procurement_core.AmountEqual(materialized.Committed, replayed.Committed))
		assert.True(t, procurement_core.AmountEqual(materialized.Spent, replayed.Spent))
	})
}
