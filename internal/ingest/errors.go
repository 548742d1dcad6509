// Package ingest loads and cleans retail transaction logs.
package ingest

import "github.com/rotisserie/eris"

var (
	// ErrSchema marks input whose shape is wrong: a missing column, an
	// unparseable date, an unsupported format.
	ErrSchema = eris.New("input schema error")

	// ErrAccess marks input that could not be reached: a missing file, a
	// failed download, a refused database connection.
	ErrAccess = eris.New("input access error")
)

// classifiedError tags an error chain with ErrSchema or ErrAccess while
// leaving the underlying cause reachable through errors.Is and errors.As.
type classifiedError struct {
	class error
	err   error
}

func (e *classifiedError) Error() string {
	return e.err.Error()
}

func (e *classifiedError) Unwrap() error {
	return e.err
}

func (e *classifiedError) Is(target error) bool {
	return target == e.class
}

func schemaErrorf(format string, args ...any) error {
	return &classifiedError{class: ErrSchema, err: eris.Errorf(format, args...)}
}

func accessErrorf(format string, args ...any) error {
	return &classifiedError{class: ErrAccess, err: eris.Errorf(format, args...)}
}

func schemaWrapf(err error, format string, args ...any) error {
	return &classifiedError{class: ErrSchema, err: eris.Wrapf(err, format, args...)}
}

func accessWrapf(err error, format string, args ...any) error {
	return &classifiedError{class: ErrAccess, err: eris.Wrapf(err, format, args...)}
}
