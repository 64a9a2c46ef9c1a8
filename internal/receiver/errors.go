package receiver

import (
	"errors"
	"strconv"
)

var (
	// ErrInvalidHandle is returned when unregistering a handle the registry does not hold.
	ErrInvalidHandle = errors.New("invalid handle or no receivers registered")

	// ErrInvalidSpec is returned when a spec is missing required fields.
	ErrInvalidSpec = errors.New("invalid receiver spec")
)

// Error codes surfaced on the bridge and HTTP boundary.
const (
	CodeRegister   = "REGISTER_ERROR"
	CodeUnregister = "UNREGISTER_ERROR"
)

// RegisterError reports a failed Register. The registry is unchanged.
type RegisterError struct {
	Filter string
	Err    error
}

func (e *RegisterError) Error() string {
	return "failed to register receiver: " + e.Err.Error()
}

func (e *RegisterError) Unwrap() error { return e.Err }

// Code returns CodeRegister.
func (e *RegisterError) Code() string { return CodeRegister }

// UnregisterError reports a failed Unregister. The registry is unchanged.
type UnregisterError struct {
	Handle Handle
	Err    error
}

func (e *UnregisterError) Error() string {
	return "failed to unregister receiver " + strconv.FormatInt(int64(e.Handle), 10) + ": " + e.Err.Error()
}

func (e *UnregisterError) Unwrap() error { return e.Err }

// Code returns CodeUnregister.
func (e *UnregisterError) Code() string { return CodeUnregister }
