package procurement_core

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// EventManage collects domain events raised inside an open transaction.
// Events are fanned out to registered handlers only after the transaction
// commits, a rolled-back mutation never notifies anyone.
type EventManage interface {
	StatusChanged(ev *RequisitionEvent)
	BudgetAlert(ev *BudgetAlertEvent)
	Escalated(ev *EscalationEvent)
	Expired(ev *EscalationEvent)
	Events() []*Event
}

type eventManageImpl struct {
	events []*Event
}

// StatusChanged implements EventManage.
func (h *eventManageImpl) StatusChanged(ev *RequisitionEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	h.events = append(h.events, &Event{Kind: EventStatusChanged, Requisition: ev})
}

// BudgetAlert implements EventManage.
func (h *eventManageImpl) BudgetAlert(ev *BudgetAlertEvent) {
	h.events = append(h.events, &Event{Kind: EventBudgetAlert, BudgetAlert: ev})
}

// Escalated implements EventManage.
func (h *eventManageImpl) Escalated(ev *EscalationEvent) {
	h.events = append(h.events, &Event{Kind: EventEscalated, Escalation: ev})
}

// Expired implements EventManage.
func (h *eventManageImpl) Expired(ev *EscalationEvent) {
	h.events = append(h.events, &Event{Kind: EventExpired, Escalation: ev})
}

// Events implements EventManage.
func (h *eventManageImpl) Events() []*Event {
	return h.events
}

type CustomHandler func(ctx context.Context, events []*Event) error

var customHandler = map[string]CustomHandler{}

func RegisterCustomHandler(name string, handler CustomHandler) func() {
	customHandler[name] = handler
	return func() {
		delete(customHandler, name)
	}
}

// OpenTransaction runs handle inside a gorm transaction and, on commit,
// forwards the collected events to every registered handler. Handler errors
// surface to the caller but the mutation itself is already durable.
func OpenTransaction(ctx context.Context, db *gorm.DB, handle func(tx *gorm.DB, evmng EventManage) error) error {
	var err error

	hdlr := eventManageImpl{}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return handle(tx, &hdlr)
	})

	if err != nil {
		return err
	}

	if len(hdlr.events) == 0 {
		return nil
	}

	for _, handler := range customHandler {
		err = handler(ctx, hdlr.events)
		if err != nil {
			return err
		}
	}

	return nil
}
