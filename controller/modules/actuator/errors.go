package actuator

import "errors"

var (
	// ErrInvalidIntensity is returned for percentages outside [0, 100].
	ErrInvalidIntensity = errors.New("intensity must be between 0 and 100")
	// ErrInvalidTime is returned for times of day that are not HH:MM[:SS].
	ErrInvalidTime    = errors.New("invalid time of day")
	ErrInvalidChannel = errors.New("invalid pwm channel")
	ErrInvalidDuty    = errors.New("duty out of range")
)
