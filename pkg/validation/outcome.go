package validation

import "time"

// Kind is the top-level classification of an outcome.
type Kind string

const (
	// KindValid means the remote service confirmed the account.
	KindValid Kind = "valid"

	// KindInvalid means the account was rejected for a definite reason.
	KindInvalid Kind = "invalid"

	// KindErrored means no verdict could be obtained.
	KindErrored Kind = "error"
)

// Reason explains an Invalid outcome.
type Reason string

const (
	ReasonAccountNotFound Reason = "ACCOUNT_NOT_FOUND"
	ReasonBankNotFound    Reason = "BANK_NOT_FOUND"
	ReasonInvalidFormat   Reason = "INVALID_FORMAT"
	ReasonAccountClosed   Reason = "ACCOUNT_CLOSED"
	ReasonAccountBlocked  Reason = "ACCOUNT_BLOCKED"
	ReasonAccountInactive Reason = "ACCOUNT_INACTIVE"

	// ReasonInvalidAccount is used when the service rejects an account with a
	// code we do not recognise.
	ReasonInvalidAccount Reason = "INVALID_ACCOUNT"
)

// Reasons lists every reason code in a stable order.
var Reasons = []Reason{
	ReasonAccountNotFound,
	ReasonBankNotFound,
	ReasonInvalidFormat,
	ReasonAccountClosed,
	ReasonAccountBlocked,
	ReasonAccountInactive,
	ReasonInvalidAccount,
}

// Description returns a human-readable explanation of the reason.
func (r Reason) Description() string {
	switch r {
	case ReasonAccountNotFound:
		return "Account does not exist."
	case ReasonBankNotFound:
		return "The specified bank was not found."
	case ReasonInvalidFormat:
		return "The format of the account information is invalid."
	case ReasonAccountClosed:
		return "Account is closed."
	case ReasonAccountBlocked:
		return "Account is blocked."
	case ReasonAccountInactive:
		return "Account is inactive."
	case ReasonInvalidAccount:
		return "The account is invalid or cannot be validated."
	default:
		return string(r)
	}
}

// ErrorKind explains an Errored outcome.
type ErrorKind string

const (
	ErrorKindRateLimit      ErrorKind = "RATE_LIMIT_ERROR"
	ErrorKindAPI            ErrorKind = "API_ERROR"
	ErrorKindNetwork        ErrorKind = "NETWORK_ERROR"
	ErrorKindTimeout        ErrorKind = "TIMEOUT_ERROR"
	ErrorKindAuthentication ErrorKind = "AUTHENTICATION_ERROR"
	ErrorKindNotAttempted   ErrorKind = "NOT_ATTEMPTED"
	ErrorKindCancelled      ErrorKind = "CANCELLED"
)

// Outcome is the classified result of validating one record.
// Exactly one of the Valid, Invalid or Errored field groups is populated,
// selected by Kind.
type Outcome struct {
	Record Record `json:"record"`
	Kind   Kind   `json:"kind"`

	// Valid
	HolderName string `json:"holder_name,omitempty"`
	BankName   string `json:"bank_name,omitempty"`
	Currency   string `json:"currency,omitempty"`

	// Invalid
	Reason Reason `json:"reason,omitempty"`

	// Errored
	ErrorKind ErrorKind `json:"error_kind,omitempty"`

	// Detail is a human-readable message for Invalid and Errored outcomes.
	Detail string `json:"detail,omitempty"`

	ValidatedAt time.Time     `json:"validated_at"`
	Attempts    int           `json:"attempts"`
	Retries     int           `json:"retries"`
	Duration    time.Duration `json:"duration"`
}

// NewValid builds a Valid outcome.
func NewValid(rec Record, holderName, bankName, currency string) Outcome {
	return Outcome{
		Record:      rec,
		Kind:        KindValid,
		HolderName:  holderName,
		BankName:    bankName,
		Currency:    currency,
		ValidatedAt: time.Now(),
	}
}

// NewInvalid builds an Invalid outcome. An empty detail falls back to the
// reason's description.
func NewInvalid(rec Record, reason Reason, detail string) Outcome {
	if detail == "" {
		detail = reason.Description()
	}
	return Outcome{
		Record:      rec,
		Kind:        KindInvalid,
		Reason:      reason,
		Detail:      detail,
		ValidatedAt: time.Now(),
	}
}

// NewErrored builds an Errored outcome.
func NewErrored(rec Record, kind ErrorKind, detail string) Outcome {
	return Outcome{
		Record:      rec,
		Kind:        KindErrored,
		ErrorKind:   kind,
		Detail:      detail,
		ValidatedAt: time.Now(),
	}
}

// NotAttempted builds the outcome for a record that was never dispatched.
func NotAttempted(rec Record) Outcome {
	return NewErrored(rec, ErrorKindNotAttempted, "record was not attempted")
}

// Code returns the reason or error kind, or "" for Valid outcomes.
func (o Outcome) Code() string {
	switch o.Kind {
	case KindInvalid:
		return string(o.Reason)
	case KindErrored:
		return string(o.ErrorKind)
	default:
		return ""
	}
}

// IsValid reports whether the outcome is Valid.
func (o Outcome) IsValid() bool {
	return o.Kind == KindValid
}
