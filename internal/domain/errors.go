package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrInvalidPath      = errors.New("invalid path")
	ErrUnknownJob       = errors.New("unknown job")
	ErrUpstreamProtocol = errors.New("upstream protocol error")
	ErrMissingNode      = errors.New("template node missing")

	// ErrInvalidSteps is reported together with ErrInvalidRequest.
	ErrInvalidSteps = errors.New("steps must be positive")
)
