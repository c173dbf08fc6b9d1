package session

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrStoreClosed     = errors.New("store is closed")
	ErrUnknownPacketID = errors.New("unknown packet identifier")
)
