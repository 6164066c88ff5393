// Package common defines shared constants and sentinel errors used across
// server and agent layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Storage-level errors.
	ErrNotFound           = errors.New("not found")
	ErrStorageUnavailable = errors.New("storage unavailable")

	// Push payloads that are not valid JSON documents.
	ErrInvalidPayload = errors.New("invalid payload")

	// Generic flow control.
	ErrInternal = errors.New("internal error")
)
