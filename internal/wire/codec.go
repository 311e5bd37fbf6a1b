package wire

import (
	"bytes"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	// MaxFrameSize bounds a single encoded envelope.
	MaxFrameSize = 1 << 20
	// MaxDepth bounds envelope nesting.
	MaxDepth = 8
)

// envelope fields
const (
	fieldTag     protowire.Number = 1
	fieldValue   protowire.Number = 2
	fieldSeq     protowire.Number = 3
	fieldAuthTag protowire.Number = 4
)

// value fields, one of
const (
	valueString   protowire.Number = 1
	valueBytes    protowire.Number = 2
	valueInt      protowire.Number = 3
	valueStrings  protowire.Number = 4
	valueEnvelope protowire.Number = 5
)

// Marshal encodes e into its binary form.
func Marshal(e *Envelope) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: nil envelope", ErrBadEnvelope)
	}
	b, err := appendEnvelope(nil, e, 1)
	if err != nil {
		return nil, err
	}
	if len(b) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	return b, nil
}

// Unmarshal decodes an envelope. Every structural problem is reported as
// ErrBadEnvelope; no field is interpreted beyond its kind.
func Unmarshal(data []byte) (*Envelope, error) {
	if len(data) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	return parseEnvelope(data, 1)
}

// Equal reports whether two envelopes encode identically.
func Equal(a, b *Envelope) bool {
	ab, err := Marshal(a)
	if err != nil {
		return false
	}
	bb, err := Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

func appendEnvelope(b []byte, e *Envelope, depth int) ([]byte, error) {
	if depth > MaxDepth {
		return nil, ErrTooDeep
	}
	if e.Tag == "" {
		return nil, fmt.Errorf("%w: empty tag", ErrBadEnvelope)
	}

	b = protowire.AppendTag(b, fieldTag, protowire.BytesType)
	b = protowire.AppendString(b, e.Tag)

	for i, v := range e.Fields {
		vb, err := appendValue(nil, v, depth)
		if err != nil {
			return nil, fmt.Errorf("%s: field %d: %w", e.Tag, i, err)
		}
		b = protowire.AppendTag(b, fieldValue, protowire.BytesType)
		b = protowire.AppendBytes(b, vb)
	}

	if e.HasSeq {
		b = protowire.AppendTag(b, fieldSeq, protowire.VarintType)
		b = protowire.AppendVarint(b, e.Seq)
	}
	if e.AuthTag != nil {
		b = protowire.AppendTag(b, fieldAuthTag, protowire.BytesType)
		b = protowire.AppendBytes(b, e.AuthTag)
	}
	return b, nil
}

func appendValue(b []byte, v Value, depth int) ([]byte, error) {
	switch v.kind {
	case KindString:
		b = protowire.AppendTag(b, valueString, protowire.BytesType)
		b = protowire.AppendString(b, v.str)
	case KindBytes:
		b = protowire.AppendTag(b, valueBytes, protowire.BytesType)
		b = protowire.AppendBytes(b, v.raw)
	case KindInt:
		b = protowire.AppendTag(b, valueInt, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(v.num))
	case KindStrings:
		var lb []byte
		for _, s := range v.list {
			lb = protowire.AppendTag(lb, valueString, protowire.BytesType)
			lb = protowire.AppendString(lb, s)
		}
		b = protowire.AppendTag(b, valueStrings, protowire.BytesType)
		b = protowire.AppendBytes(b, lb)
	case KindEnvelope:
		if v.env == nil {
			return nil, fmt.Errorf("%w: nil nested envelope", ErrBadEnvelope)
		}
		eb, err := appendEnvelope(nil, v.env, depth+1)
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, valueEnvelope, protowire.BytesType)
		b = protowire.AppendBytes(b, eb)
	default:
		return nil, fmt.Errorf("%w: invalid value kind", ErrBadEnvelope)
	}
	return b, nil
}

func parseEnvelope(data []byte, depth int) (*Envelope, error) {
	if depth > MaxDepth {
		return nil, ErrTooDeep
	}

	e := &Envelope{}
	var sawTag bool

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, parseError(n)
		}
		data = data[n:]

		switch {
		case num == fieldTag && typ == protowire.BytesType:
			if sawTag {
				return nil, fmt.Errorf("%w: duplicate tag", ErrBadEnvelope)
			}
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, parseError(n)
			}
			e.Tag, sawTag = v, true
			data = data[n:]

		case num == fieldValue && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, parseError(n)
			}
			v, err := parseValue(raw, depth)
			if err != nil {
				return nil, err
			}
			e.Fields = append(e.Fields, v)
			data = data[n:]

		case num == fieldSeq && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, parseError(n)
			}
			e.SetSeq(v)
			data = data[n:]

		case num == fieldAuthTag && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, parseError(n)
			}
			e.AuthTag = bytes.Clone(v)
			data = data[n:]

		default:
			return nil, fmt.Errorf("%w: unexpected field %d", ErrBadEnvelope, num)
		}
	}

	if !sawTag || e.Tag == "" {
		return nil, fmt.Errorf("%w: missing tag", ErrBadEnvelope)
	}
	return e, nil
}

func parseValue(data []byte, depth int) (Value, error) {
	num, typ, n := protowire.ConsumeTag(data)
	if n < 0 {
		return Value{}, parseError(n)
	}
	data = data[n:]

	var (
		v    Value
		used int
	)
	switch {
	case num == valueString && typ == protowire.BytesType:
		s, m := protowire.ConsumeString(data)
		v, used = String(s), m
	case num == valueBytes && typ == protowire.BytesType:
		raw, m := protowire.ConsumeBytes(data)
		v, used = Bytes(bytes.Clone(raw)), m
	case num == valueInt && typ == protowire.VarintType:
		x, m := protowire.ConsumeVarint(data)
		v, used = Int(protowire.DecodeZigZag(x)), m
	case num == valueStrings && typ == protowire.BytesType:
		raw, m := protowire.ConsumeBytes(data)
		if m < 0 {
			return Value{}, parseError(m)
		}
		list, err := parseStrings(raw)
		if err != nil {
			return Value{}, err
		}
		v, used = Strings(list), m
	case num == valueEnvelope && typ == protowire.BytesType:
		raw, m := protowire.ConsumeBytes(data)
		if m < 0 {
			return Value{}, parseError(m)
		}
		inner, err := parseEnvelope(raw, depth+1)
		if err != nil {
			return Value{}, err
		}
		v, used = Nested(inner), m
	default:
		return Value{}, fmt.Errorf("%w: unexpected value field %d", ErrBadEnvelope, num)
	}

	if used < 0 {
		return Value{}, parseError(used)
	}
	if used != len(data) {
		return Value{}, fmt.Errorf("%w: trailing data in value", ErrBadEnvelope)
	}
	return v, nil
}

func parseStrings(data []byte) ([]string, error) {
	list := []string{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, parseError(n)
		}
		if num != valueString || typ != protowire.BytesType {
			return nil, fmt.Errorf("%w: unexpected list field %d", ErrBadEnvelope, num)
		}
		data = data[n:]
		s, n := protowire.ConsumeString(data)
		if n < 0 {
			return nil, parseError(n)
		}
		list = append(list, s)
		data = data[n:]
	}
	return list, nil
}

func parseError(n int) error {
	return fmt.Errorf("%w: %v", ErrBadEnvelope, protowire.ParseError(n))
}
