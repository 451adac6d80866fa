package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrUnknownSymbol     = errors.New("unknown symbol")
	ErrNotLiquidatable   = errors.New("position not liquidatable")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrMonitorRunning    = errors.New("monitor already running")
	ErrMonitorNotRunning = errors.New("monitor not running")
	ErrRateLimited       = errors.New("rate limited")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrValidation        = errors.New("validation failed")
	ErrLockHeld          = errors.New("lock already held")
)
