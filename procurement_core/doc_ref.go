package procurement_core

import (
	"fmt"
	"strconv"
	"strings"
)

type DocType string

const (
	RequisitionDoc      DocType = "requisition"
	PurchaseOrderDoc    DocType = "purchase_order"
	InvoiceDoc          DocType = "invoice"
	BudgetAdjustmentDoc DocType = "budget_adjustment"
)

// DocRef identifies the source document of a ledger mutation as "type#id".
type DocRef string

type DocRefData struct {
	DocType DocType
	ID      uint
}

func NewDocRef(data *DocRefData) DocRef {
	return DocRef(fmt.Sprintf("%s#%d", data.DocType, data.ID))
}

func (r DocRef) Extract() (*DocRefData, error) {
	ss := strings.SplitN(string(r), "#", 2)
	if len(ss) != 2 {
		return nil, fmt.Errorf("doc ref malformed %s", r)
	}

	idx, err := strconv.ParseUint(ss[1], 10, 64)
	if err != nil {
		return nil, err
	}

	return &DocRefData{
		DocType: DocType(ss[0]),
		ID:      uint(idx),
	}, nil
}
