package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pdcgo/procurement_service/procurement_core"
	"go.uber.org/zap"
)

// Dispatcher delivers one event batch to a downstream channel.
type Dispatcher func(ctx context.Context, events []*procurement_core.Event) error

// Hook subscribes a dispatcher to the post-commit event stream. Delivery
// failures are logged and dropped, a notification must never fail or roll
// back the mutation that raised it.
type Hook struct {
	log        *zap.Logger
	dispatch   Dispatcher
	unregister func()
}

func NewHook(log *zap.Logger, dispatch Dispatcher) *Hook {
	return &Hook{
		log:      log,
		dispatch: dispatch,
	}
}

func (h *Hook) Register(name string) {
	h.unregister = procurement_core.RegisterCustomHandler(name, h.handle)
}

func (h *Hook) Close() {
	if h.unregister != nil {
		h.unregister()
	}
}

func (h *Hook) handle(ctx context.Context, events []*procurement_core.Event) error {
	err := h.dispatch(ctx, events)
	if err != nil {
		h.log.Warn("notification delivery failed",
			zap.Int("events", len(events)),
			zap.Error(err),
		)
	}

	for _, ev := range events {
		h.logEvent(ev)
	}

	return nil
}

func (h *Hook) logEvent(ev *procurement_core.Event) {
	switch ev.Kind {
	case procurement_core.EventStatusChanged:
		h.log.Info("requisition status changed",
			zap.Uint("requisition_id", ev.Requisition.RequisitionID),
			zap.String("from", string(ev.Requisition.FromStatus)),
			zap.String("to", string(ev.Requisition.ToStatus)),
			zap.Uint("actor_id", ev.Requisition.ActorID),
		)
	case procurement_core.EventBudgetAlert:
		h.log.Warn("budget threshold crossed",
			zap.Uint("budget_id", ev.BudgetAlert.BudgetID),
			zap.String("kind", ev.BudgetAlert.ThresholdKind),
			zap.Float64("used_pct", ev.BudgetAlert.UsedPct),
		)
	case procurement_core.EventEscalated:
		h.log.Warn("approval escalated",
			zap.Uint("request_id", ev.Escalation.ApprovalRequestID),
			zap.Uint("requisition_id", ev.Escalation.RequisitionID),
			zap.Int("count", ev.Escalation.EscalationCount),
		)
	case procurement_core.EventExpired:
		h.log.Error("approval expired",
			zap.Uint("request_id", ev.Escalation.ApprovalRequestID),
			zap.Uint("requisition_id", ev.Escalation.RequisitionID),
		)
	}
}

// NopDispatcher drops events, log-only deployments use it.
func NopDispatcher(ctx context.Context, events []*procurement_core.Event) error {
	return nil
}

// WebhookDispatcher posts the batch as JSON to an internal endpoint.
func WebhookDispatcher(endpoint string, timeout time.Duration) Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}

	return func(ctx context.Context, events []*procurement_core.Event) error {
		raw, err := json.Marshal(events)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return fmt.Errorf("webhook returned %d", resp.StatusCode)
		}

		return nil
	}
}
