package trainhmm

import "errors"

// Errors returned by the topology, simulator, inference
// routines and the sampler.
//
// They are wrapped with context before being returned, so
// callers should use errors.Is to check for them.
var (
	ErrInvalidSize              = errors.New("invalid vertex count")
	ErrNoSuchEdge               = errors.New("no such edge")
	ErrInvalidSwitch            = errors.New("invalid switch assignment")
	ErrInvalidObservation       = errors.New("invalid observation")
	ErrInsufficientObservations = errors.New("insufficient observations")
	ErrDegenerateLikelihood     = errors.New("degenerate likelihood")
	ErrInvalidNoise             = errors.New("noise probability out of range")
)
