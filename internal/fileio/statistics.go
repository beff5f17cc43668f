package fileio

import (
	"time"

	"github.com/Sternrassler/account-validator/pkg/validation"
)

// Statistics is the content of statistics.json.
type Statistics struct {
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id,omitempty"`

	TotalAccounts   int `json:"total_accounts"`
	ValidAccounts   int `json:"valid_accounts"`
	InvalidAccounts int `json:"invalid_accounts"`
	ErrorAccounts   int `json:"error_accounts"`

	ValidPercent   float64 `json:"valid_percent"`
	InvalidPercent float64 `json:"invalid_percent"`
	ErrorPercent   float64 `json:"error_percent"`

	Banks      map[string]*BankStats `json:"banks"`
	ErrorCodes map[string]*CodeStats `json:"error_codes"`
}

// BankStats breaks the outcome counts down by bank code.
type BankStats struct {
	Total          int     `json:"total"`
	Valid          int     `json:"valid"`
	Invalid        int     `json:"invalid"`
	Error          int     `json:"error"`
	ValidPercent   float64 `json:"valid_percent"`
	InvalidPercent float64 `json:"invalid_percent"`
	ErrorPercent   float64 `json:"error_percent"`
}

// CodeStats counts one invalid reason or error kind.
type CodeStats struct {
	Count      int           `json:"count"`
	Percentage float64       `json:"percentage"`
	Examples   []CodeExample `json:"examples"`
}

// CodeExample is a sample account for a code.
type CodeExample struct {
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	Message       string `json:"message"`
}

// BuildStatistics computes per-bank and per-code statistics for rs.
func BuildStatistics(runID string, rs validation.ResultSet) Statistics {
	s := rs.Summary
	st := Statistics{
		Timestamp:       time.Now().UTC(),
		RunID:           runID,
		TotalAccounts:   s.Total,
		ValidAccounts:   s.Valid,
		InvalidAccounts: s.Invalid,
		ErrorAccounts:   s.Errored,
		ValidPercent:    s.ValidPercent,
		InvalidPercent:  s.InvalidPercent,
		ErrorPercent:    s.ErrorPercent,
		Banks:           make(map[string]*BankStats),
		ErrorCodes:      make(map[string]*CodeStats),
	}

	for _, o := range rs.All() {
		b := st.Banks[o.Record.BankCode]
		if b == nil {
			b = &BankStats{}
			st.Banks[o.Record.BankCode] = b
		}
		b.Total++
		switch o.Kind {
		case validation.KindValid:
			b.Valid++
			continue
		case validation.KindInvalid:
			b.Invalid++
		default:
			b.Error++
		}

		code := o.Code()
		c := st.ErrorCodes[code]
		if c == nil {
			c = &CodeStats{Examples: []CodeExample{}}
			st.ErrorCodes[code] = c
		}
		c.Count++
		if len(c.Examples) < maxExamples {
			c.Examples = append(c.Examples, CodeExample{
				AccountNumber: o.Record.AccountNumber,
				BankCode:      o.Record.BankCode,
				Message:       o.Detail,
			})
		}
	}

	for _, b := range st.Banks {
		b.ValidPercent = percent(b.Valid, b.Total)
		b.InvalidPercent = percent(b.Invalid, b.Total)
		b.ErrorPercent = percent(b.Error, b.Total)
	}
	for _, c := range st.ErrorCodes {
		c.Percentage = percent(c.Count, st.TotalAccounts)
	}
	return st
}
