package protocol

import "errors"

var (
	ErrMalformedMessage  = errors.New("protocol: malformed message")
	ErrUnknownUpdateType = errors.New("protocol: unknown update-type")
	ErrMissingField      = errors.New("protocol: missing required field")
	ErrInvalidValue      = errors.New("protocol: invalid attribute value")
	ErrInvalidEvent      = errors.New("protocol: invalid callback event")
)
