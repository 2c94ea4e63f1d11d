package domain

import (
	"errors"
)

var (
	ErrSourceNotFound       = errors.New("source not found")
	ErrSourceExists         = errors.New("source already registered")
	ErrDestinationNotFound  = errors.New("destination not found")
	ErrNoDestinations       = errors.New("no destinations selected")
	ErrInvalidLayout        = errors.New("invalid layout id")
	ErrCompositorStopped    = errors.New("compositor is stopped")
	ErrNotRunning           = errors.New("not running")
	ErrAlreadyRunning       = errors.New("already running")
	ErrInsufficientBuffer   = errors.New("clip buffer holds less history than requested")
	ErrCredentialsUnready   = errors.New("destination credentials not yet available")
	ErrConnectionUnhealthy  = errors.New("connection degraded")
	ErrNoBackupAvailable    = errors.New("no backup connection available")
	ErrInvalidStateChange   = errors.New("invalid connection state transition")
)
