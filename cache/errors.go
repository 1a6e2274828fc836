package cache

import "errors"

// Sentinel errors returned by the engine.
var (
	// ErrNoWorkersAvailable is returned by Insert when no active worker can
	// accept the write.
	ErrNoWorkersAvailable = errors.New("cache: no workers available")

	// ErrWorkerExists is returned when registering an already known worker id.
	ErrWorkerExists = errors.New("cache: worker already registered")

	// ErrWorkerNotFound is returned by management operations on unknown ids.
	ErrWorkerNotFound = errors.New("cache: worker not found")

	// ErrInvalidWorkerID is returned when a worker id is empty.
	ErrInvalidWorkerID = errors.New("cache: invalid worker id")

	// ErrNoLoader is returned by GetOrLoad when no Loader was configured.
	ErrNoLoader = errors.New("cache: no Loader provided")

	// ErrClosed is returned by mutating operations after Close.
	ErrClosed = errors.New("cache: closed")

	// ErrAlreadyStarted is returned by Start when the background loops are
	// already running.
	ErrAlreadyStarted = errors.New("cache: already started")
)
