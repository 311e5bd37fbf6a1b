package channels

import "errors"

var (
	ErrChannelExists       = errors.New("channel already exists")
	ErrNoChannel           = errors.New("no such channel")
	ErrNoMessage           = errors.New("no such message in channel")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrUnauthorizedGroup   = errors.New("not a member of the channel group")
	ErrUnauthorizedChannel = errors.New("no access to channel")
	ErrUnauthorizedMessage = errors.New("not the message owner")
	ErrTextTooLong         = errors.New("message too long")
	ErrInvalid             = errors.New("invalid channel name")
	ErrStorage             = errors.New("message storage failure")
	ErrBlobNotFound        = errors.New("message body not found")
	ErrCorruptSnapshot     = errors.New("corrupt channel snapshot")
)
