package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNormalizePayment(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		extra map[string]PaymentMethod
		want  PaymentMethod
	}{
		{name: "canonical label", raw: "CARD", want: PaymentCard},
		{name: "lowercase label", raw: "card", want: PaymentCard},
		{name: "french card", raw: "CB", want: PaymentCard},
		{name: "french cash", raw: "Especes", want: PaymentCash},
		{name: "french cash accented", raw: "Espèces", want: PaymentCash},
		{name: "cheque alias", raw: "chq", want: PaymentCheck},
		{name: "cheque accented", raw: "chèque", want: PaymentCheck},
		{name: "transfer alias", raw: "virement", want: PaymentTransfer},
		{name: "voucher alias", raw: "bon", want: PaymentVoucher},
		{name: "surrounding whitespace", raw: "  cash  ", want: PaymentCash},
		{name: "empty label", raw: "", want: PaymentUnknown},
		{name: "blank label", raw: "   ", want: PaymentUnknown},
		{name: "unmapped label passes through uppercased", raw: "crypto", want: PaymentMethod("CRYPTO")},
		{
			name:  "extra alias wins over passthrough",
			raw:   "twint",
			extra: map[string]PaymentMethod{"TWINT": PaymentCard},
			want:  PaymentCard,
		},
		{
			name:  "extra alias overrides default",
			raw:   "cb",
			extra: map[string]PaymentMethod{"CB": PaymentVoucher},
			want:  PaymentVoucher,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePayment(tt.raw, tt.extra))
		})
	}
}

func TestTransactionCalendarHelpers(t *testing.T) {
	// A Wednesday afternoon sale.
	tx := Transaction{Timestamp: time.Date(2024, 1, 3, 14, 30, 0, 0, time.UTC)}

	assert.Equal(t, "2024-01-03", tx.Day())
	assert.Equal(t, 14, tx.Hour())
	assert.Equal(t, time.Wednesday, tx.Weekday())
}

func TestTransactionKey(t *testing.T) {
	ts := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	base := Transaction{
		Timestamp: ts,
		Amount:    decimal.NewFromInt(10),
		Payment:   PaymentCard,
		Employee:  "A",
		Service:   "wash",
		Ticket:    "T1",
	}

	same := base
	assert.Equal(t, base.Key(), same.Key())

	tests := []struct {
		name   string
		mutate func(tx *Transaction)
	}{
		{"timestamp", func(tx *Transaction) { tx.Timestamp = ts.Add(time.Second) }},
		{"amount", func(tx *Transaction) { tx.Amount = decimal.NewFromInt(11) }},
		{"payment", func(tx *Transaction) { tx.Payment = PaymentCash }},
		{"employee", func(tx *Transaction) { tx.Employee = "B" }},
		{"service", func(tx *Transaction) { tx.Service = "cut" }},
		{"ticket", func(tx *Transaction) { tx.Ticket = "T2" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := base
			tt.mutate(&other)
			assert.NotEqual(t, base.Key(), other.Key())
		})
	}
}

func TestTransactionKeyFieldBoundaries(t *testing.T) {
	// Field content must not bleed across the separator: "AB"+"" and
	// "A"+"B" are different lines.
	a := Transaction{Employee: "AB", Service: ""}
	b := Transaction{Employee: "A", Service: "B"}

	assert.NotEqual(t, a.Key(), b.Key())
}

func TestValidationSummaryDrop(t *testing.T) {
	var s ValidationSummary

	s.Drop(DropBadTimestamp)
	s.Drop(DropBadTimestamp)
	s.Drop(DropDuplicate)

	assert.Equal(t, 3, s.RowsDropped)
	assert.Equal(t, 2, s.Dropped(DropBadTimestamp))
	assert.Equal(t, 1, s.Dropped(DropDuplicate))
	assert.Equal(t, 0, s.Dropped(DropNegativeAmount))
}

func TestDatasetEmpty(t *testing.T) {
	var nilDataset *Dataset
	assert.True(t, nilDataset.Empty())
	assert.True(t, (&Dataset{}).Empty())

	ds := &Dataset{Transactions: []Transaction{{}}}
	assert.False(t, ds.Empty())
}
