package main

import (
	"errors"
	"net/http"
)

// Errors surfaced by the registry and transport layers. Callers match them
// with errors.Is; everything below is wrapped with context where it is
// returned.
var (
	ErrCapacityExceeded = errors.New("room capacity exceeded")
	ErrRateLimited      = errors.New("rate limited")
	ErrMalformedMessage = errors.New("malformed message")
	ErrSendFailure      = errors.New("send failure")
	ErrSimulationFault  = errors.New("simulation fault")
	ErrRoomNotFound     = errors.New("room not found")
	ErrUnauthorized     = errors.New("unauthorized")
)

// httpStatus maps a registry error onto the status the HTTP layer reports.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, ErrCapacityExceeded):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrMalformedMessage):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
