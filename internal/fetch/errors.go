package fetch

import (
	"errors"
	"fmt"
)

// Op names the stage of a transfer that failed.
type Op string

const (
	OpDownload Op = "download"
	OpDecode   Op = "decode"
	OpWrite    Op = "write"
)

// ErrTooLarge is returned when a response exceeds the configured size limit.
var ErrTooLarge = errors.New("response exceeds size limit")

// FetchError reports a failed transfer. Nothing is cached for URL.
type FetchError struct {
	URL string
	Op  Op
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return "unexpected status " + e.Status
}
