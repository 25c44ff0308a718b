package etl

import "errors"

// FatalInputError aborts the entire batch before anything is written:
// missing input files, unreadable headers, or a rejection rate above the
// configured threshold.
type FatalInputError struct {
	Reason string
}

func (e *FatalInputError) Error() string { return e.Reason }

// IsFatal reports whether err means the batch must not load anything.
func IsFatal(err error) bool {
	var fatal *FatalInputError
	return errors.As(err, &fatal)
}
