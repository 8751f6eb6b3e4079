package deliver

import (
	"errors"
	"fmt"

	"github.com/emersion/go-smtp"
)

// AuthError means the relay rejected our credentials. It is fatal for
// the whole run: the credentials are wrong for every recipient, so the
// caller must abort instead of retrying per recipient.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err is an authentication rejection.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// DeliveryError represents a delivery error with type information
type DeliveryError struct {
	Temporary bool
	Message   string
}

func (e *DeliveryError) Error() string {
	return e.Message
}

// IsTemporaryError checks if the error is temporary
func IsTemporaryError(err error) bool {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Temporary
	}
	return true // Assume temporary if unknown
}

// categorizeError determines if an SMTP error is temporary or permanent.
// 4xx codes are temporary, 5xx permanent, anything else assumed
// temporary.
func categorizeError(err error, stage string) error {
	msg := fmt.Sprintf("%s failed: %v", stage, err)

	var se *smtp.SMTPError
	if errors.As(err, &se) {
		return &DeliveryError{
			Temporary: se.Code >= 400 && se.Code < 500,
			Message:   msg,
		}
	}

	return &DeliveryError{
		Temporary: true,
		Message:   msg,
	}
}
