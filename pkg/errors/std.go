package errors

import stderrors "errors"

// As and Is forward to the standard library so callers need a single import.
func As(err error, target interface{}) bool { return stderrors.As(err, target) }

func Is(err, target error) bool { return stderrors.Is(err, target) }
