package procurement_core_test

import (
	"testing"

	"github.com/pdcgo/procurement_service/procurement_core"
	"github.com/zeebo/assert"
)

func TestDocRef(t *testing.T) {
	ref := procurement_core.NewDocRef(&procurement_core.DocRefData{
		DocType: procurement_core.RequisitionDoc,
		ID:      42,
	})
	assert.Equal(t, procurement_core.DocRef("requisition#42"), ref)

	data, err := ref.Extract()
	assert.Nil(t, err)
	assert.Equal(t, procurement_core.RequisitionDoc, data.DocType)
	assert.Equal(t, uint(42), data.ID)

	_, err = procurement_core.DocRef("malformed").Extract()
	assert.NotNil(t, err)
}

func TestAmountEqual(t *testing.T) {
	assert.True(t, procurement_core.AmountEqual(100, 100.0000001))
	assert.False(t, procurement_core.AmountEqual(100, 100.001))
}
