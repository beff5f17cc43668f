// Package validation defines the account validation domain model: input records,
// batches, classified outcomes, and the aggregated result set handed to reporting.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Source points back to where a record came from in the input file.
type Source struct {
	File string `json:"file,omitempty"`
	Row  int    `json:"row,omitempty"`
}

// Record is one account to validate. Records are created by the file parser and
// treated as read-only by the pipeline.
type Record struct {
	// Index is the 0-based position of the record in the input.
	// Aggregation orders outcomes by this value.
	Index int `json:"index"`

	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`

	ReferenceID     string          `json:"reference_id,omitempty"`
	AccountName     string          `json:"account_name,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency,omitempty"`
	PhoneNumber     string          `json:"phone_number,omitempty"`
	TransactionType string          `json:"transaction_type,omitempty"`

	Source Source `json:"source"`
}

// Errors returned by Record.Validate.
var (
	ErrMissingAccountNumber = errors.New("account number is required")
	ErrMissingBankCode      = errors.New("bank code is required")
)

// Validate performs the local format check done before any remote call.
func (r Record) Validate() error {
	if strings.TrimSpace(r.AccountNumber) == "" {
		return ErrMissingAccountNumber
	}
	if strings.TrimSpace(r.BankCode) == "" {
		return ErrMissingBankCode
	}
	return nil
}

// MaskedAccount returns the account number with all but the first two and last
// four characters hidden. Short numbers are fully masked.
func (r Record) MaskedAccount() string {
	n := len(r.AccountNumber)
	if n <= 6 {
		return "****"
	}
	return r.AccountNumber[:2] + strings.Repeat("*", n-6) + r.AccountNumber[n-4:]
}

// String implements fmt.Stringer without leaking the full account number.
func (r Record) String() string {
	return fmt.Sprintf("Record(#%d %s@%s)", r.Index, r.MaskedAccount(), r.BankCode)
}
