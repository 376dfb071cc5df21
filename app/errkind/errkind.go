package errkind

import (
	"context"
	"errors"
	"fmt"
	"net"
)

type Kind string

const (
	Unknown   Kind = ""
	Config    Kind = "config"
	Auth      Kind = "auth"
	RateLimit Kind = "rate_limit"
	Server    Kind = "server_error"
	Timeout   Kind = "timeout"
	Parse     Kind = "parse_error"
	HTTP      Kind = "http_error"
)

// Error carries a classified failure across package boundaries so callers
// never have to inspect error strings.
type Error struct {
	Kind    Kind
	Service string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Service != "" {
		msg = e.Service + " " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, service, detail string) *Error {
	return &Error{Kind: kind, Service: service, Detail: detail}
}

func Wrap(kind Kind, service string, err error) *Error {
	return &Error{Kind: kind, Service: service, Err: err}
}

func Wrapf(kind Kind, service string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Service: service, Detail: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first classified error in err's chain.
// Unclassified deadline and network timeout errors report Timeout.
func KindOf(err error) Kind {
	if err == nil {
		return Unknown
	}
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Kind
	}
	if IsTimeout(err) {
		return Timeout
	}
	return Unknown
}

func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// FromStatus maps an HTTP status code returned by a provider onto a kind.
func FromStatus(status int) Kind {
	switch {
	case status == 401 || status == 403:
		return Auth
	case status == 429:
		return RateLimit
	case status >= 500:
		return Server
	case status >= 400:
		return HTTP
	default:
		return Unknown
	}
}

// Retryable reports whether a call failing with kind may be attempted again.
func (k Kind) Retryable() bool {
	return k == RateLimit || k == Server || k == Timeout
}
