package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failed request.
type ErrorKind string

const (
	KindUnauthorized ErrorKind = "unauthorized"
	KindNotFound     ErrorKind = "not_found"
	KindBadRequest   ErrorKind = "bad_request"
	KindServer       ErrorKind = "server_error"
	KindNetwork      ErrorKind = "network_error"
	KindDecode       ErrorKind = "decode_error"
)

// Sentinels matched by RequestError.Is, for use with errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrBadRequest   = errors.New("bad request")
	ErrServer       = errors.New("server error")
	ErrNetwork      = errors.New("network error")
	ErrDecode       = errors.New("decode error")
)

var kindSentinels = map[ErrorKind]error{
	KindUnauthorized: ErrUnauthorized,
	KindNotFound:     ErrNotFound,
	KindBadRequest:   ErrBadRequest,
	KindServer:       ErrServer,
	KindNetwork:      ErrNetwork,
	KindDecode:       ErrDecode,
}

// RequestError is returned by every Client operation that fails.
type RequestError struct {
	Kind   ErrorKind
	Op     string
	Status int
	Detail string
	Err    error
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (%d)", e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RequestError) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *RequestError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// KindOf returns the kind of err, or "" when err is not a RequestError.
func KindOf(err error) ErrorKind {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Kind
	}
	return ""
}

func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindUnauthorized
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= 500:
		return KindServer
	default:
		return KindBadRequest
	}
}
