package domain

import "errors"

// Sentinel errors shared across the execution subsystem. Each names a
// distinct terminal condition so callers can branch with errors.Is
// instead of string-matching.
var (
	// ErrHandlerError means the handler ran and returned a non-success
	// Envelope: a normal, expected failure mode of user code.
	ErrHandlerError = errors.New("handler returned an error")
	// ErrTimeout means the invocation did not finish within its
	// function's configured timeout and its container was killed.
	ErrTimeout = errors.New("invocation timed out")
	// ErrOutOfMemory means the container exited with status 137
	// (SIGKILL), which the driver attributes to the OOM killer. No
	// separate OOMKilled report is inspected.
	ErrOutOfMemory = errors.New("invocation exceeded its memory limit")
	// ErrWrapperError means the wrapper process itself failed before or
	// after invoking the handler: a missing handler symbol, a wrapper
	// crash, or output that isn't a valid Envelope. (Unparseable
	// INPUT_DATA is not one of these: the wrapper treats it as {}.)
	ErrWrapperError = errors.New("wrapper produced no valid envelope")
	// ErrInfrastructureError means the failure happened below the
	// wrapper: the container could not be created, started, or exited
	// for a reason unrelated to the handler or the wrapper.
	ErrInfrastructureError = errors.New("infrastructure error running container")
	// ErrDuplicateFunction is returned by registration when the insert
	// hits a unique constraint: a function with the same name or route
	// (or ID) is already registered.
	ErrDuplicateFunction = errors.New("function already registered")
	// ErrUnknownBackend is returned by the registry when asked to route
	// to a backend tag it has no Executor for.
	ErrUnknownBackend = errors.New("unknown backend")
	// ErrAdmissionRejected is returned by the coordinator when the
	// optional admission limiter (internal/admission) denies an
	// invocation before the pool or executor are ever touched. Only
	// possible when admission control is enabled (spec.md §6 extension).
	ErrAdmissionRejected = errors.New("invocation rejected by admission control")
)
