package xerrors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies an authentication failure.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindRequest       Kind = "request"
	KindMissingToken  Kind = "missing_token"
	KindDecode        Kind = "decode"
	KindConfig        Kind = "config"
	KindPopupBlocked  Kind = "popup_blocked"
	KindCancelled     Kind = "cancelled"
	KindInvalidMethod Kind = "invalid_method"
	KindAuthFailed    Kind = "auth_failed"
)

// Common reusable sentinels. Match with errors.Is; any *Error of the same kind matches.
var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrRequest       = &Error{Kind: KindRequest}
	ErrMissingToken  = &Error{Kind: KindMissingToken}
	ErrDecode        = &Error{Kind: KindDecode}
	ErrConfig        = &Error{Kind: KindConfig}
	ErrPopupBlocked  = &Error{Kind: KindPopupBlocked}
	ErrCancelled     = &Error{Kind: KindCancelled}
	ErrInvalidMethod = &Error{Kind: KindInvalidMethod}
	ErrAuthFailed    = &Error{Kind: KindAuthFailed}
)

// Error is the structured error kept as a session's last error.
type Error struct {
	Kind     Kind              `json:"type"`
	Message  string            `json:"message"`
	Fields   map[string]string `json:"errors,omitempty"`
	Status   int               `json:"status,omitempty"`
	Provider string            `json:"provider,omitempty"`
	Err      error             `json:"-"`
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+e.Fields[k])
		}
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so sentinels match any error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Validation reports missing or invalid login fields. Never sent over the network.
func Validation(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "Validation failed.", Fields: fields}
}

// Request reports a non-success HTTP status or an undecodable body.
func Request(status int, body string, err error) *Error {
	if body == "" {
		body = "Request failed"
	}
	return &Error{Kind: KindRequest, Message: body, Status: status, Err: err}
}

func MissingToken() *Error {
	return &Error{Kind: KindMissingToken, Message: "Access token missing in response."}
}

func Decode(err error) *Error {
	return &Error{Kind: KindDecode, Message: "Malformed access token.", Err: err}
}

func Config(message string) *Error {
	return &Error{Kind: KindConfig, Message: message}
}

func PopupBlocked(provider string) *Error {
	return &Error{
		Kind:     KindPopupBlocked,
		Message:  "Popup blocked! Please allow popups for this site.",
		Provider: provider,
	}
}

func Cancelled(provider string, err error) *Error {
	return &Error{
		Kind:     KindCancelled,
		Message:  "Authentication was cancelled",
		Provider: provider,
		Err:      err,
	}
}

func InvalidMethod(method string) *Error {
	return &Error{
		Kind:    KindInvalidMethod,
		Message: "Invalid login method.",
		Fields:  map[string]string{"provider": method},
	}
}

// AuthFailed reports a failure payload returned by the identity backend.
func AuthFailed(provider, message string) *Error {
	if message == "" {
		message = "Login failed"
	}
	return &Error{Kind: KindAuthFailed, Message: message, Provider: provider}
}

// From coerces any error into a structured *Error. Unknown errors become auth_failed.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindAuthFailed, Message: MessageOrDefault(err, "Login failed"), Err: err}
}

// Wrap adds context to an error (similar to fmt.Errorf("%w")).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// MessageOrDefault returns err.Error() or a fallback message if err is nil.
func MessageOrDefault(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}
