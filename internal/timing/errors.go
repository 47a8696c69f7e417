package timing

import (
	"errors"
	"fmt"
)

var ErrInvalidParams = errors.New("invalid clock parameters")
var ErrUnachievable = errors.New("tick rate unachievable with supported dividers")

// ConfigError reports clock parameters the resolver cannot turn into a
// timer setting. It always wraps ErrInvalidParams or ErrUnachievable.
type ConfigError struct {
	Params Params
	Msg    string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("timing: %s (input %d Hz, tick %d Hz, %d-bit counter): %s",
		e.Err, e.Params.InputHz, e.Params.TickHz, e.Params.CounterBits, e.Msg)
}

func (e *ConfigError) Unwrap() error { return e.Err }
