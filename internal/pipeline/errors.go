package pipeline

import "errors"

// Error taxonomy for the frame pipeline. Only initialization errors surface
// to callers as hard failures; every other category is absorbed locally and
// reflected through logging and metrics.
var (
	// ErrInitialization marks fatal startup failures (model or camera
	// unavailable). Aborts the component.
	ErrInitialization = errors.New("initialization failed")

	// ErrAlreadyRunning is returned by Start when a worker is active.
	ErrAlreadyRunning = errors.New("stream worker already running")

	// ErrUnknownEventType is returned by Register for event types outside
	// the bus contract.
	ErrUnknownEventType = errors.New("unknown event type")
)
