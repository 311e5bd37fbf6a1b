package client

import "errors"

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrNoGroupKey   = errors.New("no key for group")
	ErrNotConnected = errors.New("not connected")
	ErrNoMessage    = errors.New("message not found")
)
