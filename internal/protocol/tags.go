// Package protocol holds the tag vocabulary shared by clients and services
// and one encode/decode pair per tag. Decoders never interpret a field beyond
// the kind its position requires; any mismatch is a wire.ErrBadEnvelope.
package protocol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophgroups/internal/wire"
)

// Session and control tags.
const (
	TagGetSessionKey    = "GETSESSIONKEY"
	TagEncryptedSession = "ENCRYPTEDSESSION"
	TagDisconnect       = "DISCONNECT"
	TagChallenge        = "CHALLENGE"
	TagOK               = "OK"
	TagAuthToken        = "AUTHTOKEN"
	TagHostToken        = "HOSTTOKEN"
	TagToken            = "TOKEN"
	TagOperationData    = "OPERATIONDATA"
	TagGroupKeys        = "GROUPKEYS"
	TagKeys             = "KEYS"
	TagChannel          = "CHANNEL"
	TagMessage          = "MESSAGE"
	TagMessageAndText   = "MESSAGEANDTEXT"
)

// Authentication service operations.
const (
	TagGetToken       = "GETTOKEN"
	TagGetGroupKeys   = "GETGROUPKEYS"
	TagCreateUser     = "CUSER"
	TagDeleteUser     = "DUSER"
	TagCreateGroup    = "CGROUP"
	TagDeleteGroup    = "DGROUP"
	TagListMembers    = "LMEMBERS"
	TagAddUserToGroup = "AUSERTOGROUP"
	TagRemoveUser     = "RUSERFROMGROUP"
)

// Message service operations.
const (
	TagGetChannels   = "GETCHANNELS"
	TagCreateChannel = "CREATECHANNEL"
	TagDeleteChannel = "DELETECHANNEL"
	TagSendMessage   = "SENDMESSAGE"
	TagDeleteMessage = "DELETEMESSAGE"
	TagSetMessage    = "SETMESSAGE"
	TagReadMessages  = "READMESSAGES"
)

// Failure signals. FAIL-* covers protocol, authorization and admission
// problems, FAIL alone is the opaque cryptographic failure and ERROR-* is
// reserved for storage.
const (
	Fail                    = "FAIL"
	FailBadEnvelope         = "FAIL-BADENVELOPE"
	FailBadRequester        = "FAIL-BADREQUESTER"
	FailBadUser             = "FAIL-BADUSER"
	FailNoGroup             = "FAIL-NOGROUP"
	FailNoUser              = "FAIL-NOUSER"
	FailUnauthorized        = "FAIL-UNAUTHORIZED"
	FailUserAlreadyMember   = "FAIL-USERALREADYMEMBER"
	FailUserNotMember       = "FAIL-USERNOTMEMBER"
	FailGroupExists         = "FAIL-GROUPEXISTS"
	FailUserExists          = "FAIL-USEREXISTS"
	FailBadHostToken        = "FAIL-BADHOSTTOKEN"
	FailBadUserToken        = "FAIL-BADUSERTOKEN"
	FailBadOperation        = "FAIL-BADOPERATION"
	FailChannelExists       = "FAIL-CHANNELEXISTS"
	FailNoChannel           = "FAIL-NOCHANNEL"
	FailUnauthorizedGroup   = "FAIL-UNAUTHORIZEDGROUP"
	FailUnauthorizedChannel = "FAIL-UNAUTHORIZEDCHANNEL"
	FailUnauthorizedMessage = "FAIL-UNAUTHORIZEDMESSAGE"
	FailBadPath             = "FAIL-BADPATH"
	FailTextTooLong         = "FAIL-TEXTTOOLONG"
	FailBadHash             = "FAIL-BADHASH"
	FailBadBytes            = "FAIL-BADBYTES"
	Error                   = "ERROR"
	ErrorIO                 = "ERROR-IOEXCEPTION"
	ErrorBadPath            = "ERROR-BADPATH"
)

// IsSignal reports whether tag is a failure signal.
func IsSignal(tag string) bool {
	return tag == Fail || tag == Error ||
		strings.HasPrefix(tag, Fail+"-") || strings.HasPrefix(tag, Error+"-")
}

// Signal builds a bare signal envelope.
func Signal(tag string) *wire.Envelope {
	return wire.New(tag)
}

// OK builds an OK envelope with the given fields.
func OK(fields ...wire.Value) *wire.Envelope {
	return wire.New(TagOK, fields...)
}

// SignalError is a failure signal received from a peer.
type SignalError struct {
	Signal string
}

func (e *SignalError) Error() string {
	return "server replied " + e.Signal
}

// Is matches another *SignalError carrying the same signal.
func (e *SignalError) Is(target error) bool {
	t, ok := target.(*SignalError)
	return ok && t.Signal == e.Signal
}

// ErrUnexpectedReply is returned for a reply that is neither OK nor a signal.
var ErrUnexpectedReply = errors.New("unexpected reply")

// CheckOK turns a reply into an error unless it is tagged OK.
func CheckOK(e *wire.Envelope) error {
	if e.Tag == TagOK {
		return nil
	}
	if IsSignal(e.Tag) {
		return &SignalError{Signal: e.Tag}
	}
	return fmt.Errorf("%w: %s", ErrUnexpectedReply, e.Tag)
}

// IsFailure reports whether err carries the given signal.
func IsFailure(err error, signal string) bool {
	return errors.Is(err, &SignalError{Signal: signal})
}

func expectTag(e *wire.Envelope, tag string) error {
	if e == nil {
		return fmt.Errorf("%w: nil envelope, want %s", wire.ErrBadEnvelope, tag)
	}
	if e.Tag != tag {
		return fmt.Errorf("%w: got %s, want %s", wire.ErrBadEnvelope, e.Tag, tag)
	}
	return nil
}

func expect(e *wire.Envelope, tag string, n int) error {
	if err := expectTag(e, tag); err != nil {
		return err
	}
	return e.Expect(n)
}
