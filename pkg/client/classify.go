package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/Sternrassler/account-validator/pkg/ratelimit"
	"github.com/Sternrassler/account-validator/pkg/validation"
)

// remoteCodes maps the service's ISO-style error codes onto reasons.
var remoteCodes = map[string]validation.Reason{
	"AC01": validation.ReasonAccountNotFound,
	"AC04": validation.ReasonAccountClosed,
	"AC06": validation.ReasonAccountBlocked,
	"AC07": validation.ReasonAccountInactive,
	"RJCT": validation.ReasonInvalidFormat,
	"AM04": validation.ReasonBankNotFound,
}

// reasonFromCode resolves a remote error code. Our own reason names are
// accepted verbatim.
func reasonFromCode(code string) (validation.Reason, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", false
	}
	if r, ok := remoteCodes[code]; ok {
		return r, true
	}
	for _, r := range validation.Reasons {
		if string(r) == code {
			return r, true
		}
	}
	return "", false
}

// classifyStatus maps an HTTP status to an error class; "" means success.
func classifyStatus(status int) ErrorClass {
	switch {
	case status >= 200 && status < 300:
		return ""
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorClassAuth
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// classifyTransportError distinguishes caller cancellation from an expired
// per-request deadline and plain network failures.
func classifyTransportError(ctx context.Context, err error) ErrorClass {
	if ctx.Err() != nil {
		return ErrorClassCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorClassTimeout
	}
	return ErrorClassNetwork
}

// classify turns the result of one validate call into an attempt result.
// Definite verdicts (2xx, 400, 404) carry an outcome; everything else carries an
// error class for the retry loop.
func classify(ctx context.Context, rec validation.Record, resp *Response, err error) attemptResult {
	if err != nil {
		return attemptResult{class: classifyTransportError(ctx, err), err: err}
	}

	var body ValidateResponse
	decodeErr := json.Unmarshal(resp.Body, &body)

	switch resp.StatusCode {
	case http.StatusBadRequest:
		reason, ok := reasonFromCode(body.ErrorCode)
		if !ok {
			reason = validation.ReasonInvalidFormat
		}
		o := validation.NewInvalid(rec, reason, errorMessage(body, resp))
		return attemptResult{outcome: &o}

	case http.StatusNotFound:
		reason, ok := reasonFromCode(body.ErrorCode)
		if !ok {
			reason = validation.ReasonAccountNotFound
			if strings.Contains(strings.ToLower(errorMessage(body, resp)), "bank") {
				reason = validation.ReasonBankNotFound
			}
		}
		o := validation.NewInvalid(rec, reason, errorMessage(body, resp))
		return attemptResult{outcome: &o}
	}

	class := classifyStatus(resp.StatusCode)
	if class == "" {
		if decodeErr != nil {
			return attemptResult{
				class: ErrorClassClient,
				err: &APIError{
					StatusCode: resp.StatusCode,
					ErrorClass: ErrorClassClient,
					Message:    "malformed response body",
					Err:        decodeErr,
				},
			}
		}
		o := verdict(rec, body)
		return attemptResult{outcome: &o}
	}

	res := attemptResult{
		class: class,
		err: &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Message:    errorMessage(body, resp),
		},
	}
	if class == ErrorClassRateLimit {
		if d, ok := ratelimit.ParseRetryAfter(resp.Header); ok {
			res.retryAfter = d
		}
	}
	return res
}

// verdict interprets a successful response body.
func verdict(rec validation.Record, body ValidateResponse) validation.Outcome {
	if strings.EqualFold(strings.TrimSpace(body.Status), "valid") {
		return validation.NewValid(rec, body.AccountHolderName, body.BankName, body.Currency)
	}

	reason, ok := reasonFromCode(body.ErrorCode)
	if !ok {
		reason = validation.ReasonInvalidAccount
	}
	detail := body.ErrorDescription
	if detail == "" {
		detail = body.Message
	}
	return validation.NewInvalid(rec, reason, detail)
}

func errorMessage(body ValidateResponse, resp *Response) string {
	for _, s := range []string{body.ErrorDescription, body.Message, body.Error, body.Detail} {
		if s != "" {
			return s
		}
	}
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}
