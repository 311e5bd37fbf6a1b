// Package wire defines the Envelope, the tagged and positionally-typed
// container every exchange between clients and services is made of, together
// with its binary encoding and the Conn abstraction envelopes travel over.
//
// An Envelope carries no schema: its tag tells the receiver how many fields to
// expect and of which kinds. The typed accessors turn every mismatch into a
// *FieldError so malformed input never reaches the handlers as a panic.
package wire

import (
	"errors"
	"fmt"
)

var (
	// ErrBadEnvelope is matched by every protocol-level decoding problem.
	ErrBadEnvelope = errors.New("bad envelope")
	// ErrMissingField means the envelope has fewer fields than its tag requires.
	ErrMissingField = errors.New("missing field")
	// ErrBadField means a field exists but has the wrong kind.
	ErrBadField = errors.New("bad field")
	// ErrFrameTooLarge is returned for frames above MaxFrameSize.
	ErrFrameTooLarge = errors.New("frame too large")
	// ErrTooDeep is returned when nested envelopes exceed MaxDepth.
	ErrTooDeep = errors.New("envelope nested too deeply")
)

// Kind identifies the type of a field value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindBytes
	KindInt
	KindStrings
	KindEnvelope
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindInt:
		return "int"
	case KindStrings:
		return "strings"
	case KindEnvelope:
		return "envelope"
	}
	return "invalid"
}

// Value is one positional field of an envelope.
type Value struct {
	kind Kind
	str  string
	raw  []byte
	num  int64
	list []string
	env  *Envelope
}

func String(s string) Value     { return Value{kind: KindString, str: s} }
func Bytes(b []byte) Value      { return Value{kind: KindBytes, raw: b} }
func Int(i int64) Value         { return Value{kind: KindInt, num: i} }
func Strings(ss []string) Value { return Value{kind: KindStrings, list: ss} }
func Nested(e *Envelope) Value  { return Value{kind: KindEnvelope, env: e} }
func (v Value) Kind() Kind      { return v.kind }

// Envelope is the unit of every wire exchange.
type Envelope struct {
	Tag    string
	Fields []Value

	// Seq is meaningful only when HasSeq is set.
	Seq    uint64
	HasSeq bool

	AuthTag []byte
}

// New builds an envelope with the given tag and fields.
func New(tag string, fields ...Value) *Envelope {
	return &Envelope{Tag: tag, Fields: fields}
}

// Add appends fields and returns e for chaining.
func (e *Envelope) Add(fields ...Value) *Envelope {
	e.Fields = append(e.Fields, fields...)
	return e
}

// SetSeq records a sequence number.
func (e *Envelope) SetSeq(n uint64) {
	e.Seq = n
	e.HasSeq = true
}

// Len returns the number of fields.
func (e *Envelope) Len() int {
	return len(e.Fields)
}

// FieldError describes a missing or mistyped field.
type FieldError struct {
	Tag   string
	Index int
	Want  Kind
	Got   Kind
	Err   error
}

func (e *FieldError) Error() string {
	if errors.Is(e.Err, ErrMissingField) {
		return fmt.Sprintf("%s: field %d (%s) missing", e.Tag, e.Index, e.Want)
	}
	return fmt.Sprintf("%s: field %d: want %s, got %s", e.Tag, e.Index, e.Want, e.Got)
}

// Unwrap lets errors.Is match both the specific cause and ErrBadEnvelope.
func (e *FieldError) Unwrap() []error {
	return []error{e.Err, ErrBadEnvelope}
}

// Expect checks that the envelope carries exactly n fields.
func (e *Envelope) Expect(n int) error {
	if len(e.Fields) < n {
		return &FieldError{Tag: e.Tag, Index: len(e.Fields), Err: ErrMissingField}
	}
	if len(e.Fields) > n {
		return fmt.Errorf("%w: %s: %d fields, want %d", ErrBadEnvelope, e.Tag, len(e.Fields), n)
	}
	return nil
}

func (e *Envelope) field(i int, want Kind) (Value, error) {
	if i < 0 || i >= len(e.Fields) {
		return Value{}, &FieldError{Tag: e.Tag, Index: i, Want: want, Err: ErrMissingField}
	}
	v := e.Fields[i]
	if v.kind != want {
		return Value{}, &FieldError{Tag: e.Tag, Index: i, Want: want, Got: v.kind, Err: ErrBadField}
	}
	return v, nil
}

// StringAt returns field i as a string.
func (e *Envelope) StringAt(i int) (string, error) {
	v, err := e.field(i, KindString)
	return v.str, err
}

// BytesAt returns field i as bytes.
func (e *Envelope) BytesAt(i int) ([]byte, error) {
	v, err := e.field(i, KindBytes)
	return v.raw, err
}

// IntAt returns field i as an integer.
func (e *Envelope) IntAt(i int) (int64, error) {
	v, err := e.field(i, KindInt)
	return v.num, err
}

// StringsAt returns field i as a string list.
func (e *Envelope) StringsAt(i int) ([]string, error) {
	v, err := e.field(i, KindStrings)
	return v.list, err
}

// EnvelopeAt returns field i as a nested envelope.
func (e *Envelope) EnvelopeAt(i int) (*Envelope, error) {
	v, err := e.field(i, KindEnvelope)
	if err != nil {
		return nil, err
	}
	if v.env == nil {
		return nil, &FieldError{Tag: e.Tag, Index: i, Want: KindEnvelope, Got: KindInvalid, Err: ErrBadField}
	}
	return v.env, nil
}

// NestedTagged returns field i as a nested envelope whose tag must be tag.
func (e *Envelope) NestedTagged(i int, tag string) (*Envelope, error) {
	inner, err := e.EnvelopeAt(i)
	if err != nil {
		return nil, err
	}
	if inner.Tag != tag {
		return nil, fmt.Errorf("%w: %s: field %d: want %s envelope, got %s", ErrBadEnvelope, e.Tag, i, tag, inner.Tag)
	}
	return inner, nil
}
