package convert

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrMissingCredential is returned before any I/O when no API credential
// is configured.
var ErrMissingCredential = errors.New("no API credential configured")

// ValidationKind names a rejected input or model payload constraint.
type ValidationKind string

const (
	EmptyInput           ValidationKind = "EmptyInput"
	MalformedURL         ValidationKind = "MalformedUrl"
	TooShort             ValidationKind = "TooShort"
	OversizedImage       ValidationKind = "OversizedImage"
	UnsupportedMediaType ValidationKind = "UnsupportedMediaType"
	MissingTitle         ValidationKind = "MissingTitle"
)

// ValidationError reports a constraint violation on the input or on the
// parsed recipe.
type ValidationError struct {
	Kind   ValidationKind
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("validation failed: %s", e.Kind)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Kind, e.Detail)
}

func invalid(kind ValidationKind, format string, args ...any) error {
	return &ValidationError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err carries a ValidationError of the given kind.
func IsValidation(err error, kind ValidationKind) bool {
	var v *ValidationError
	return errors.As(err, &v) && v.Kind == kind
}

// Source tells which remote end a TransportError came from.
type Source string

const (
	// SourceOrigin is the recipe website (directly or through the fetch proxy).
	SourceOrigin Source = "origin"
	// SourceProvider is the model provider API.
	SourceProvider Source = "provider"
)

// TransportKind distinguishes how a remote call failed.
type TransportKind string

const (
	// KindNetwork means the transport failed outright (refused, DNS, reset).
	KindNetwork TransportKind = "network"
	// KindTimeout means the call exceeded its time budget.
	KindTimeout TransportKind = "timeout"
	// KindHTTPStatus means the remote answered with a non-success status.
	KindHTTPStatus TransportKind = "http_status"
)

// TransportError is a failure talking to the origin site, the fetch proxy
// or the model provider. Status is set only for KindHTTPStatus.
type TransportError struct {
	Source Source
	Kind   TransportKind
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		msg := fmt.Sprintf("%s returned HTTP %d %s", e.Source, e.Status, http.StatusText(e.Status))
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
		return msg
	case KindTimeout:
		return fmt.Sprintf("%s timed out: %v", e.Source, e.Err)
	default:
		return fmt.Sprintf("%s unreachable: %v", e.Source, e.Err)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError builds a KindHTTPStatus TransportError.
func StatusError(src Source, status int, detail error) *TransportError {
	return &TransportError{Source: src, Kind: KindHTTPStatus, Status: status, Err: detail}
}

// WrapTransport classifies an error returned by an HTTP round trip as a
// timeout or a plain network failure.
func WrapTransport(src Source, err error) *TransportError {
	kind := KindNetwork
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		kind = KindTimeout
	}
	return &TransportError{Source: src, Kind: kind, Err: err}
}

// ParseError reports a model reply that is not a usable structured
// document. Raw and Stripped are kept for diagnostics.
type ParseError struct {
	Raw      string
	Stripped string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid structured output: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
