// Package errors defines the typed error taxonomy shared by every
// subsystem in this module (trust, group, session, queue, devauth). It is a
// sibling of the stdlib errors package, not a replacement for it — callers
// still use errors.Is/As against these values as usual.
package errors

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Code names one error kind from spec §7. Kept as a string (not an int) so
// it prints legibly in logs; LegacyCode maps it back to the historical
// negative-int contract the public API boundary still needs to honor.
type Code string

const (
	// input
	CodeInvalidParams   Code = "invalid_params"
	CodeNullPtr         Code = "null_ptr"
	CodeJSONMissingField Code = "json_missing_field"
	CodeJSONBadType     Code = "json_bad_type"

	// resource
	CodeOutOfMemory       Code = "out_of_memory"
	CodePersistFailed     Code = "persist_failed"
	CodeChannelUnavailable Code = "channel_unavailable"
	CodeTransmitFailed    Code = "transmit_failed"

	// state
	CodeGroupNotFound  Code = "group_not_found"
	CodeDeviceNotFound Code = "device_not_found"
	CodeGroupDuplicate Code = "group_duplicate"
	CodeDeviceDuplicate Code = "device_duplicate"
	CodeBeyondLimit    Code = "beyond_limit"
	CodeAccessDenied   Code = "access_denied"
	CodeNotSupported   Code = "not_supported"

	// protocol
	CodeBadMessage      Code = "bad_message"
	CodeAuthFail        Code = "auth_fail"
	CodeIgnoreMsg       Code = "ignore_msg"
	CodeTimedOut        Code = "timed_out"
	CodeDuplicateRequest Code = "duplicate_request"
	CodeTaskIDMismatch  Code = "task_id_mismatch"

	// fatal
	CodeServiceNeedsRestart Code = "service_needs_restart"

	// tlv (§4.1)
	CodeTlvTruncated Code = "tlv_truncated"
	CodeTlvBadLength Code = "tlv_bad_length"
	CodeTlvBadString Code = "tlv_bad_string"
)

// legacyCodes implements the historical "0 on success, negative int on
// failure" contract spec §6 documents for the public API surface. The
// numbering is arbitrary (spec says so explicitly) but stable once
// assigned, since external callers may persist it.
var legacyCodes = map[Code]int32{
	CodeInvalidParams:      -1,
	CodeNullPtr:            -2,
	CodeJSONMissingField:   -3,
	CodeJSONBadType:        -4,
	CodeOutOfMemory:        -10,
	CodePersistFailed:      -11,
	CodeChannelUnavailable: -12,
	CodeTransmitFailed:     -13,
	CodeGroupNotFound:      -20,
	CodeDeviceNotFound:     -21,
	CodeGroupDuplicate:     -22,
	CodeDeviceDuplicate:    -23,
	CodeBeyondLimit:        -24,
	CodeAccessDenied:       -25,
	CodeNotSupported:       -26,
	CodeBadMessage:         -30,
	CodeAuthFail:           -31,
	CodeIgnoreMsg:          -32,
	CodeTimedOut:           -33,
	CodeDuplicateRequest:   -34,
	CodeTaskIDMismatch:     -35,
	CodeServiceNeedsRestart: -40,
	CodeTlvTruncated:       -50,
	CodeTlvBadLength:       -51,
	CodeTlvBadString:       -52,
}

// Error is the error type every package in this module returns instead of
// a bare string error, so that callers can branch on Code rather than
// string-matching Error().
type Error struct {
	Code    Code
	Details string
	cause   error
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Details != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Details)
	}
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.cause.Error())
	}
	return msg
}

// Unwrap lets errors.Is/As see through to a wrapped cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// LegacyCode returns the negative-int contract spec §6 documents for the
// public API boundary. Unknown codes return a generic -1.
func (e *Error) LegacyCode() int32 {
	if c, ok := legacyCodes[e.Code]; ok {
		return c
	}
	return -1
}

// New builds an Error with no underlying cause.
func New(code Code, details string) *Error {
	return &Error{Code: code, Details: details}
}

// Newf is New with a formatted Details string.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Details: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Code to a lower-level error, keeping it as the Unwrap
// cause and, via github.com/pkg/errors, retaining a stack trace for %+v
// logging during development.
func Wrap(code Code, err error, details string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Details: details, cause: pkgerrors.WithStack(err)}
}

// Is reports whether err is an *Error with the given Code.
func Is(err error, code Code) bool {
	var e *Error
	if as(err, &e) {
		return e.Code == code
	}
	return false
}

func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
