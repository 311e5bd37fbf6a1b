package directory

import "errors"

var (
	ErrBadRequester  = errors.New("requester does not exist")
	ErrUserExists    = errors.New("user already exists")
	ErrNoUser        = errors.New("no such user")
	ErrBadUser       = errors.New("target user does not exist")
	ErrGroupExists   = errors.New("group already exists")
	ErrNoGroup       = errors.New("no such group")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrAlreadyMember = errors.New("user already member")
	ErrNotMember     = errors.New("user not member")
	ErrInvalid       = errors.New("invalid name or key")
	ErrNoKeyVersion  = errors.New("no such key version")
)
