package linestate

import (
	"errors"
	"fmt"

	"memeful/internal/diag"
	"memeful/internal/directive"
	"memeful/internal/fetch"
	"memeful/internal/imgcache"
)

const corruptHint = "This problem could be caused by a corrupt, invalid or unsupported image file."

// LocalError reports a local image that is missing or unreadable.
type LocalError struct {
	Path string
	Err  error
}

func (e *LocalError) Error() string {
	return fmt.Sprintf("cannot load %s: %v", e.Path, e.Err)
}

func (e *LocalError) Unwrap() error { return e.Err }

// diagnosticFor maps a parse or resolution error to a line diagnostic.
func diagnosticFor(line, column int, err error) diag.Diagnostic {
	d := diag.Diagnostic{
		Severity: diag.SevError,
		Code:     diag.UnknownCode,
		Message:  err.Error(),
		Line:     line,
		StartCol: column,
	}
	var (
		perr *directive.ParseError
		ferr *fetch.FetchError
		lerr *LocalError
		derr *imgcache.DecodeError
	)
	switch {
	case errors.As(err, &perr):
		d.Code = diag.DirMalformed
	case errors.As(err, &derr):
		d.Code = diag.ResDecode
		d.Message = err.Error() + ". " + corruptHint
	case errors.As(err, &ferr):
		d.Code = diag.ResFetch
	case errors.As(err, &lerr):
		d.Code = diag.ResLocal
	}
	return d
}
