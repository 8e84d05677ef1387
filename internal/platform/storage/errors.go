package storage

import (
	"encoding/json"
	"fmt"
)

// StoreError wraps a failure of a backing store together with the filter or
// key that triggered it.
type StoreError struct {
	Op     string
	Filter any
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("can't %s with %s: %v", e.Op, describe(e.Filter), e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Wrap returns nil when err is nil, otherwise a *StoreError.
func Wrap(op string, filter any, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Filter: filter, Err: err}
}

func describe(v any) string {
	switch f := v.(type) {
	case nil:
		return "no filter"
	case string:
		return f
	case fmt.Stringer:
		return f.String()
	}
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprintf("%+v", v)
}
