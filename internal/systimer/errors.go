package systimer

import "errors"

var ErrNoTickFunc = errors.New("no tick callback")
var ErrAlreadyInitialized = errors.New("system timer already initialized")

// InitError is returned by Initialize. Op names the step that failed.
type InitError struct {
	Op  string
	Err error
}

func (e *InitError) Error() string {
	return "systimer " + e.Op + ": " + e.Err.Error()
}

func (e *InitError) Unwrap() error { return e.Err }
