package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_NotBefore(t *testing.T) {
	tests := []struct {
		s, prev State
		want    bool
	}{
		{StateCustomerResolved, StatePaymentPersisted, true},
		{StateInvoiceCreated, StateInvoiceCreated, true},
		{StateBalanceUpdated, StateLedgerRecorded, true},
		{StateInvoiceCreated, StateLedgerRecorded, false},
		{StatePaymentPersisted, StateBalanceUpdated, false},
		{StateFailed, StateItemCreated, false},
		{StateItemCreated, StateRejected, false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.s.NotBefore(tc.prev), "%s after %s", tc.s, tc.prev)
	}
}
