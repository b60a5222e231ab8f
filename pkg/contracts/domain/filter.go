package domain

import "strings"

// Filter selects a subset of a normalized table. The zero value matches
// every transaction. From and To are inclusive calendar dates (2006-01-02);
// the slice fields are multiselects where empty means all; Ticket is a
// case-insensitive substring match on the ticket reference.
type Filter struct {
	From      string          `json:"from,omitempty" validate:"omitempty,datetime=2006-01-02"`
	To        string          `json:"to,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Payments  []PaymentMethod `json:"payments,omitempty"`
	Employees []string        `json:"employees,omitempty"`
	Services  []string        `json:"services,omitempty"`
	Ticket    string          `json:"ticket,omitempty"`
}

// IsZero reports whether the filter selects everything
func (f Filter) IsZero() bool {
	return f.From == "" && f.To == "" &&
		len(f.Payments) == 0 && len(f.Employees) == 0 && len(f.Services) == 0 &&
		f.Ticket == ""
}

// Match reports whether the transaction passes the filter
func (f Filter) Match(tx Transaction) bool {
	// ISO dates compare correctly as strings
	if day := tx.Day(); (f.From != "" && day < f.From) || (f.To != "" && day > f.To) {
		return false
	}
	if len(f.Payments) > 0 && !containsPayment(f.Payments, tx.Payment) {
		return false
	}
	if len(f.Employees) > 0 && !containsString(f.Employees, tx.Employee) {
		return false
	}
	if len(f.Services) > 0 && !containsString(f.Services, tx.Service) {
		return false
	}
	if f.Ticket != "" && !strings.Contains(strings.ToLower(tx.Ticket), strings.ToLower(f.Ticket)) {
		return false
	}
	return true
}

// Apply returns the transactions passing the filter, preserving order.
// The zero filter returns the input slice unchanged.
func (f Filter) Apply(txs []Transaction) []Transaction {
	if f.IsZero() {
		return txs
	}
	out := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		if f.Match(tx) {
			out = append(out, tx)
		}
	}
	return out
}

func containsPayment(set []PaymentMethod, m PaymentMethod) bool {
	for _, p := range set {
		if p == m {
			return true
		}
	}
	return false
}

func containsString(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
