package protocol

import (
	"github.com/dmitrijs2005/gophgroups/internal/token"
	"github.com/dmitrijs2005/gophgroups/internal/wire"
)

// Request is any operation a client can encode.
type Request interface {
	Envelope() *wire.Envelope
}

type CreateUser struct {
	Username string
	Key      []byte
	Salt     []byte
}

func (r CreateUser) Envelope() *wire.Envelope {
	return wire.New(TagCreateUser, wire.String(r.Username), wire.Bytes(r.Key), wire.Bytes(r.Salt))
}

func DecodeCreateUser(e *wire.Envelope) (CreateUser, error) {
	f := read(e, TagCreateUser, 3)
	r := CreateUser{Username: f.str(0), Key: f.bytes(1), Salt: f.bytes(2)}
	return r, f.err
}

type DeleteUser struct {
	Username string
}

func (r DeleteUser) Envelope() *wire.Envelope {
	return wire.New(TagDeleteUser, wire.String(r.Username))
}

func DecodeDeleteUser(e *wire.Envelope) (DeleteUser, error) {
	f := read(e, TagDeleteUser, 1)
	r := DeleteUser{Username: f.str(0)}
	return r, f.err
}

type CreateGroup struct {
	Group string
}

func (r CreateGroup) Envelope() *wire.Envelope {
	return wire.New(TagCreateGroup, wire.String(r.Group))
}

func DecodeCreateGroup(e *wire.Envelope) (CreateGroup, error) {
	f := read(e, TagCreateGroup, 1)
	r := CreateGroup{Group: f.str(0)}
	return r, f.err
}

type DeleteGroup struct {
	Group string
}

func (r DeleteGroup) Envelope() *wire.Envelope {
	return wire.New(TagDeleteGroup, wire.String(r.Group))
}

func DecodeDeleteGroup(e *wire.Envelope) (DeleteGroup, error) {
	f := read(e, TagDeleteGroup, 1)
	r := DeleteGroup{Group: f.str(0)}
	return r, f.err
}

type ListMembers struct {
	Group string
}

func (r ListMembers) Envelope() *wire.Envelope {
	return wire.New(TagListMembers, wire.String(r.Group))
}

func DecodeListMembers(e *wire.Envelope) (ListMembers, error) {
	f := read(e, TagListMembers, 1)
	r := ListMembers{Group: f.str(0)}
	return r, f.err
}

type MembersReply struct {
	Members []string
}

func (r MembersReply) Envelope() *wire.Envelope {
	return OK(wire.Strings(r.Members))
}

func DecodeMembersReply(e *wire.Envelope) (MembersReply, error) {
	f := read(e, TagOK, 1)
	r := MembersReply{Members: f.strings(0)}
	return r, f.err
}

type AddUserToGroup struct {
	User  string
	Group string
}

func (r AddUserToGroup) Envelope() *wire.Envelope {
	return wire.New(TagAddUserToGroup, wire.String(r.User), wire.String(r.Group))
}

func DecodeAddUserToGroup(e *wire.Envelope) (AddUserToGroup, error) {
	f := read(e, TagAddUserToGroup, 2)
	r := AddUserToGroup{User: f.str(0), Group: f.str(1)}
	return r, f.err
}

type RemoveUserFromGroup struct {
	User  string
	Group string
}

func (r RemoveUserFromGroup) Envelope() *wire.Envelope {
	return wire.New(TagRemoveUser, wire.String(r.User), wire.String(r.Group))
}

func DecodeRemoveUserFromGroup(e *wire.Envelope) (RemoveUserFromGroup, error) {
	f := read(e, TagRemoveUser, 2)
	r := RemoveUserFromGroup{User: f.str(0), Group: f.str(1)}
	return r, f.err
}

// GetToken asks for a capability token bound to a message service session.
type GetToken struct {
	HostToken SealedToken
}

func (r GetToken) Envelope() *wire.Envelope {
	return wire.New(TagGetToken, wire.Nested(r.HostToken.Envelope()))
}

func DecodeGetToken(e *wire.Envelope) (GetToken, error) {
	f := read(e, TagGetToken, 1)
	inner := f.nested(0, TagHostToken)
	if f.err != nil {
		return GetToken{}, f.err
	}
	ht, err := DecodeSealedToken(inner, TagHostToken)
	return GetToken{HostToken: ht}, err
}

type TokenReply struct {
	Token *token.Token
}

func (r TokenReply) Envelope() *wire.Envelope {
	return OK(wire.Nested(r.Token.Envelope()))
}

func DecodeTokenReply(e *wire.Envelope) (TokenReply, error) {
	f := read(e, TagOK, 1)
	inner := f.nested(0, token.Tag)
	if f.err != nil {
		return TokenReply{}, f.err
	}
	t, err := token.Decode(inner)
	return TokenReply{Token: t}, err
}

type GetGroupKeys struct{}

func (GetGroupKeys) Envelope() *wire.Envelope {
	return wire.New(TagGetGroupKeys)
}

func DecodeGetGroupKeys(e *wire.Envelope) (GetGroupKeys, error) {
	return GetGroupKeys{}, expect(e, TagGetGroupKeys, 0)
}

// GroupKeyList is every key version of one group, index = version.
type GroupKeyList struct {
	Group string
	Keys  [][]byte
}

// GroupKeysReply is OK{GROUPKEYS{group, KEYS{k0..kn}}...}.
type GroupKeysReply struct {
	Groups []GroupKeyList
}

func (r GroupKeysReply) Envelope() *wire.Envelope {
	out := OK()
	for _, g := range r.Groups {
		keys := wire.New(TagKeys)
		for _, k := range g.Keys {
			keys.Add(wire.Bytes(k))
		}
		out.Add(wire.Nested(wire.New(TagGroupKeys, wire.String(g.Group), wire.Nested(keys))))
	}
	return out
}

func DecodeGroupKeysReply(e *wire.Envelope) (GroupKeysReply, error) {
	if err := expectTag(e, TagOK); err != nil {
		return GroupKeysReply{}, err
	}
	r := GroupKeysReply{Groups: make([]GroupKeyList, 0, e.Len())}
	for i := range e.Len() {
		ge, err := e.NestedTagged(i, TagGroupKeys)
		if err != nil {
			return GroupKeysReply{}, err
		}
		f := read(ge, TagGroupKeys, 2)
		group := f.str(0)
		keys := f.nested(1, TagKeys)
		if f.err != nil {
			return GroupKeysReply{}, f.err
		}
		gl := GroupKeyList{Group: group, Keys: make([][]byte, 0, keys.Len())}
		for j := range keys.Len() {
			k, err := keys.BytesAt(j)
			if err != nil {
				return GroupKeysReply{}, err
			}
			gl.Keys = append(gl.Keys, k)
		}
		r.Groups = append(r.Groups, gl)
	}
	return r, nil
}
