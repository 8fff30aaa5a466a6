package order

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/pandam-storefront/internal/domain/checkout"
)

// Sentinel errors for checkout submission.
var (
	ErrPaymentWindowExpired = errors.New("payment window expired")
	ErrSignInRequired       = errors.New("sign in required")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrSubmitInProgress     = errors.New("submission already in progress")
	ErrAlreadyPlaced        = errors.New("order already placed")
	ErrNotFound             = errors.New("order not found")
)

// ValidationError carries the fields that failed checkout validation.
type ValidationError struct {
	Errors checkout.Errors
}

func (e *ValidationError) Error() string {
	fields := e.Errors.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return "invalid fields: " + strings.Join(names, ", ")
}

// Kind classifies a submission failure for user-facing copy.
type Kind string

const (
	KindGeneric          Kind = "generic"
	KindStockUnavailable Kind = "stock_unavailable"
	KindPriceMismatch    Kind = "price_mismatch"
	KindInvalidPhone     Kind = "invalid_phone"
	KindInvalidEmail     Kind = "invalid_email"
	KindInvalidPostal    Kind = "invalid_postal_code"
)

var classifiers = []struct {
	substr string
	kind   Kind
}{
	{"Stock availability", KindStockUnavailable},
	{"Total amount mismatch", KindPriceMismatch},
	{"Invalid phone number", KindInvalidPhone},
	{"Invalid email", KindInvalidEmail},
	{"Invalid postal code", KindInvalidPostal},
}

// Classify maps a server error message to a Kind by substring.
func Classify(msg string) Kind {
	for _, c := range classifiers {
		if strings.Contains(msg, c.substr) {
			return c.kind
		}
	}
	return KindGeneric
}

// SubmitError is a failed or rejected order submission. The user may retry.
type SubmitError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *SubmitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("submit order (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("submit order (%s): %s", e.Kind, e.Message)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// UserMessage is the copy shown to the shopper.
func (e *SubmitError) UserMessage() string {
	switch e.Kind {
	case KindStockUnavailable:
		return "Some items are out of stock. Please update your cart and try again."
	case KindPriceMismatch:
		return "Price calculation error. Please refresh and try again."
	case KindInvalidPhone:
		return "Please enter a valid 10-digit phone number starting with 6-9."
	case KindInvalidEmail:
		return "Please enter a valid email address."
	case KindInvalidPostal:
		return "Please enter a valid 6-digit PIN code."
	}
	if e.Message != "" {
		return e.Message
	}
	return "Failed to place order. Please try again."
}

// RemoteError is a non-2xx reply from the backend.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

// submitError wraps a Submitter failure, classifying the backend message when
// there is one.
func submitError(err error) *SubmitError {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return &SubmitError{Kind: Classify(remote.Message), Message: remote.Message, Err: err}
	}
	return &SubmitError{Kind: KindGeneric, Err: err}
}
