package notification_test

import (
	"context"
	"errors"
	"testing"

	"github.com/pdcgo/procurement_service/notification"
	"github.com/pdcgo/procurement_service/procurement_core"
	"github.com/pdcgo/procurement_service/procurement_mock"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestHookReceivesCommittedEvents(t *testing.T) {
	db := procurement_mock.SetupTestDB(t)

	received := []*procurement_core.Event{}
	hook := notification.NewHook(zap.NewNop(), func(ctx context.Context, events []*procurement_core.Event) error {
		received = append(received, events...)
		return nil
	})
	hook.Register("test-hook")
	defer hook.Close()

	err := procurement_core.OpenTransaction(context.TODO(), db, func(tx *gorm.DB, evmng procurement_core.EventManage) error {
		evmng.StatusChanged(&procurement_core.RequisitionEvent{
			RequisitionID: 1,
			FromStatus:    procurement_core.StatusDraft,
			ToStatus:      procurement_core.StatusSubmitted,
			ActorID:       5,
		})
		return nil
	})
	assert.Nil(t, err)

	assert.Len(t, received, 1)
	assert.Equal(t, procurement_core.EventStatusChanged, received[0].Kind)
	assert.Equal(t, procurement_core.StatusSubmitted, received[0].Requisition.ToStatus)
}

func TestRolledBackMutationNotifiesNobody(t *testing.T) {
	db := procurement_mock.SetupTestDB(t)

	received := 0
	hook := notification.NewHook(zap.NewNop(), func(ctx context.Context, events []*procurement_core.Event) error {
		received += len(events)
		return nil
	})
	hook.Register("test-hook")
	defer hook.Close()

	err := procurement_core.OpenTransaction(context.TODO(), db, func(tx *gorm.DB, evmng procurement_core.EventManage) error {
		evmng.StatusChanged(&procurement_core.RequisitionEvent{RequisitionID: 1})
		return errors.New("boom")
	})
	assert.NotNil(t, err)
	assert.Equal(t, 0, received)
}

func TestDeliveryFailureIsSwallowed(t *testing.T) {
	db := procurement_mock.SetupTestDB(t)

	hook := notification.NewHook(zap.NewNop(), func(ctx context.Context, events []*procurement_core.Event) error {
		return errors.New("endpoint down")
	})
	hook.Register("test-hook")
	defer hook.Close()

	err := procurement_core.OpenTransaction(context.TODO(), db, func(tx *gorm.DB, evmng procurement_core.EventManage) error {
		evmng.StatusChanged(&procurement_core.RequisitionEvent{RequisitionID: 1})
		return nil
	})
	assert.Nil(t, err)
}
