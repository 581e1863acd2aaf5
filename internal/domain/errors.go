package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors (no external dependencies).
var (
	ErrNotFound           = errors.New("record not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidInvoice     = errors.New("invalid invoice")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrUnknownProfile     = errors.New("unknown factur-x profile")
	ErrUnknownPaymentMode = errors.New("unknown payment mode")
	ErrResourceNotFound   = errors.New("installation resource missing")

	// Session state machine.
	ErrNotValidated    = errors.New("factur-x: xml must be validated before embedding")
	ErrNoPDF           = errors.New("factur-x: no pdf has been produced yet")
	ErrSessionClosed   = errors.New("factur-x: session already saved or closed")
	ErrAlreadyEmbedded = errors.New("factur-x: xml already embedded into a pdf")
)

// InvalidDataFacturxError reports invoice content that the requested profile cannot carry.
type InvalidDataFacturxError struct {
	Profile string
	Field   string
	Reason  string
}

func (e *InvalidDataFacturxError) Error() string {
	return fmt.Sprintf("factur-x %s: invalid %s: %s", e.Profile, e.Field, e.Reason)
}

// FailedAssert is one Schematron assertion that did not hold.
type FailedAssert struct {
	Test     string
	ID       string
	Location string
	Message  string
}

// String renders the assert the way operators read it in logs.
func (a FailedAssert) String() string {
	return fmt.Sprintf("%s (id=%s, test=%s, location=%s)", a.Message, a.ID, a.Test, a.Location)
}

// previewSize is how many messages XSLTValidationError.Error shows.
const previewSize = 3

// XSLTValidationError carries every failed assertion of a Schematron run.
type XSLTValidationError struct {
	Profile string
	Asserts []FailedAssert
}

// Messages returns one message per failed assertion.
func (e *XSLTValidationError) Messages() []string {
	out := make([]string, 0, len(e.Asserts))
	for _, a := range e.Asserts {
		out = append(out, a.String())
	}
	return out
}

func (e *XSLTValidationError) Error() string {
	msgs := e.Messages()
	preview := msgs
	if len(preview) > previewSize {
		preview = preview[:previewSize]
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "schematron %s: %d failed assertion(s): %s", e.Profile, len(msgs), strings.Join(preview, "; "))
	if len(msgs) > previewSize {
		fmt.Fprintf(&sb, "; ... and %d more", len(msgs)-previewSize)
	}
	return sb.String()
}

// ResourceError reports a missing or unreadable installation resource
// (stylesheet, schema, signing key). It is a deployment defect, not bad data.
type ResourceError struct {
	Kind string
	Path string
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Kind, e.Path, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// ExternalError tags a failure of an external collaborator without altering the cause.
type ExternalError struct {
	Collaborator string
	Err          error
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Collaborator, e.Err)
}

func (e *ExternalError) Unwrap() error { return e.Err }
