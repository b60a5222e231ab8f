package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is the canonical tender type of a register transaction
type PaymentMethod string

const (
	PaymentCard     PaymentMethod = "CARD"
	PaymentCash     PaymentMethod = "CASH"
	PaymentCheck    PaymentMethod = "CHECK"
	PaymentTransfer PaymentMethod = "TRANSFER"
	PaymentVoucher  PaymentMethod = "VOUCHER"
	PaymentUnknown  PaymentMethod = "UNKNOWN"
)

// DefaultPaymentAliases maps raw register labels to canonical methods.
// Keys are compared after trimming and uppercasing. Till exports are not
// consistent across vendors or locales, so the set errs on the generous side.
var DefaultPaymentAliases = map[string]PaymentMethod{
	"CARD":        PaymentCard,
	"CB":          PaymentCard,
	"CARTE":       PaymentCard,
	"CREDIT":      PaymentCard,
	"CREDIT CARD": PaymentCard,
	"DEBIT":       PaymentCard,
	"VISA":        PaymentCard,
	"MASTERCARD":  PaymentCard,
	"CASH":        PaymentCash,
	"ESPECES":     PaymentCash,
	"ESPÈCES":     PaymentCash,
	"ESP":         PaymentCash,
	"LIQUIDE":     PaymentCash,
	"CHECK":       PaymentCheck,
	"CHEQUE":      PaymentCheck,
	"CHÈQUE":      PaymentCheck,
	"CHQ":         PaymentCheck,
	"TRANSFER":    PaymentTransfer,
	"VIREMENT":    PaymentTransfer,
	"WIRE":        PaymentTransfer,
	"VOUCHER":     PaymentVoucher,
	"BON":         PaymentVoucher,
	"GIFT":        PaymentVoucher,
}

// NormalizePayment maps a raw register label to its canonical method.
// Extra aliases override and extend the defaults. Labels with no mapping
// pass through uppercased so distinct methods never merge silently; an
// empty label becomes PaymentUnknown.
func NormalizePayment(raw string, extra map[string]PaymentMethod) PaymentMethod {
	label := strings.ToUpper(strings.TrimSpace(raw))
	if label == "" {
		return PaymentUnknown
	}
	if extra != nil {
		if m, ok := extra[label]; ok {
			return m
		}
	}
	if m, ok := DefaultPaymentAliases[label]; ok {
		return m
	}
	return PaymentMethod(label)
}

// Transaction is a single settled register line after normalization
type Transaction struct {
	Timestamp time.Time       `json:"timestamp"`
	Amount    decimal.Decimal `json:"amount"`
	Payment   PaymentMethod   `json:"payment"`
	Employee  string          `json:"employee"`
	Service   string          `json:"service"`
	Ticket    string          `json:"ticket,omitempty"`
}

// Day returns the calendar date of the sale as 2006-01-02
func (t Transaction) Day() string {
	return t.Timestamp.Format("2006-01-02")
}

// Hour returns the hour of day of the sale (0-23)
func (t Transaction) Hour() int {
	return t.Timestamp.Hour()
}

// Weekday returns the weekday of the sale
func (t Transaction) Weekday() time.Weekday {
	return t.Timestamp.Weekday()
}

// Key returns the dedup identity of the transaction. Two transactions with
// the same key are the same register line exported twice.
func (t Transaction) Key() string {
	return strings.Join([]string{
		t.Timestamp.Format(time.RFC3339Nano),
		t.Amount.String(),
		string(t.Payment),
		t.Employee,
		t.Service,
		t.Ticket,
	}, "\x1f")
}

// DropReason classifies why a raw row was excluded from the normalized table
type DropReason string

const (
	DropBadTimestamp   DropReason = "bad_timestamp"
	DropBadAmount      DropReason = "bad_amount"
	DropNegativeAmount DropReason = "negative_amount"
	DropShortRow       DropReason = "short_row"
	DropEmptyRow       DropReason = "empty_row"
	DropDuplicate      DropReason = "duplicate"
)

// ValidationSummary accounts for every raw row of an export. Rows are never
// silently discarded: RowsRead = RowsKept + RowsDropped and RowsDropped is
// the sum over DropReasons.
type ValidationSummary struct {
	RowsRead    int                `json:"rows_read"`
	RowsKept    int                `json:"rows_kept"`
	RowsDropped int                `json:"rows_dropped"`
	DropReasons map[DropReason]int `json:"drop_reasons,omitempty"`
	Columns     []string           `json:"columns,omitempty"`
}

// Drop records one dropped row under the given reason
func (s *ValidationSummary) Drop(reason DropReason) {
	if s.DropReasons == nil {
		s.DropReasons = make(map[DropReason]int)
	}
	s.DropReasons[reason]++
	s.RowsDropped++
}

// Dropped returns the count recorded under the given reason
func (s *ValidationSummary) Dropped(reason DropReason) int {
	return s.DropReasons[reason]
}

// Dataset is a normalized transaction table together with the accounting of
// how it was produced. Transactions keep the encounter order of the source
// file. A Dataset is immutable once built; filtered views copy.
type Dataset struct {
	Transactions []Transaction     `json:"transactions"`
	Summary      ValidationSummary `json:"summary"`
}

// Empty reports whether the table holds no transactions
func (d *Dataset) Empty() bool {
	return d == nil || len(d.Transactions) == 0
}
