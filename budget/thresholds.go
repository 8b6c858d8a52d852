package budget

import (
	"github.com/pdcgo/procurement_service/procurement_core"
)

// emitThresholdAlerts raises a budget alert when a mutation crosses the
// warning or freeze threshold. Crossing is edge-triggered against the usage
// before the mutation so repeated commits inside the band stay quiet.
func emitThresholdAlerts(
	evmng procurement_core.EventManage,
	bud *procurement_core.Budget,
	allocationID *uint,
	beforeUsedPct float64,
) {
	if evmng == nil {
		return
	}

	afterUsed := bud.UsedPct()

	type crossing struct {
		pct  float64
		kind string
	}

	for _, th := range []crossing{
		{pct: bud.WarningThresholdPct, kind: "warning"},
		{pct: bud.FreezeThresholdPct, kind: "freeze"},
	} {
		if th.pct <= 0 {
			continue
		}
		if beforeUsedPct < th.pct && afterUsed >= th.pct {
			evmng.BudgetAlert(&procurement_core.BudgetAlertEvent{
				BudgetID:        bud.ID,
				AllocationID:    allocationID,
				ThresholdPct:    th.pct,
				ThresholdKind:   th.kind,
				AvailableAmount: bud.Available(),
				UsedPct:         afterUsed,
			})
		}
	}
}
