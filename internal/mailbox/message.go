package mailbox

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// Kind tags the shape a Message arrived in.
type Kind uint8

const (
	KindText Kind = iota
	KindBytes
	KindMapping
	KindObject
	KindSequence
	KindScalar
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBytes:
		return "bytes"
	case KindMapping:
		return "mapping"
	case KindObject:
		return "object"
	case KindSequence:
		return "sequence"
	case KindScalar:
		return "scalar"
	default:
		return "unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// Field is one key of a mapping or one named attribute of an object. Order is preserved.
type Field struct {
	Key   string
	Value Message
}

// Message is untyped mailbox content. Exactly one payload is meaningful for a given Kind:
// Text for KindText and KindScalar, Bytes for KindBytes, Fields for KindMapping and
// KindObject, Items for KindSequence.
type Message struct {
	Kind   Kind
	Text   string
	Bytes  []byte
	Fields []Field
	Items  []Message
}

func Text(s string) Message      { return Message{Kind: KindText, Text: s} }
func Bytes(b []byte) Message     { return Message{Kind: KindBytes, Bytes: b} }
func Scalar(s string) Message    { return Message{Kind: KindScalar, Text: s} }
func Mapping(f ...Field) Message { return Message{Kind: KindMapping, Fields: f} }
func Object(f ...Field) Message  { return Message{Kind: KindObject, Fields: f} }
func Sequence(m ...Message) Message {
	return Message{Kind: KindSequence, Items: m}
}

// KV builds a Field.
func KV(key string, value Message) Field { return Field{Key: key, Value: value} }

// Lookup returns the first field named key on a mapping or object.
func (m Message) Lookup(key string) (Message, bool) {
	if m.Kind != KindMapping && m.Kind != KindObject {
		return Message{}, false
	}
	for _, f := range m.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Message{}, false
}

// LookupString returns the text of a scalar or text field, or "".
func (m Message) LookupString(key string) string {
	v, ok := m.Lookup(key)
	if !ok || (v.Kind != KindText && v.Kind != KindScalar) {
		return ""
	}
	return v.Text
}

// IsNull reports whether the message is a JSON null (an empty scalar).
func (m Message) IsNull() bool {
	return m.Kind == KindScalar && m.Text == ""
}

// IsEmpty reports whether the message carries nothing: empty text or bytes, a
// mapping or object without fields, or a sequence without items. Nested content
// is not inspected.
func (m Message) IsEmpty() bool {
	switch m.Kind {
	case KindText, KindScalar:
		return m.Text == ""
	case KindBytes:
		return len(m.Bytes) == 0
	case KindMapping, KindObject:
		return len(m.Fields) == 0
	case KindSequence:
		return len(m.Items) == 0
	}
	return false
}

// Latest returns the last non-empty message in msgs.
func Latest(msgs []Message) (Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if !msgs[i].IsEmpty() {
			return msgs[i], true
		}
	}
	return Message{}, false
}

// FromJSON decodes arbitrary JSON into a Message, keeping object key order.
// Objects become mappings, arrays sequences, strings text and everything else scalars.
func FromJSON(data []byte) (Message, error) {
	if !jsoniter.Valid(data) {
		return Message{}, fmt.Errorf("decoding message json: invalid document")
	}
	iter := jsoniter.ParseBytes(jsoniter.ConfigCompatibleWithStandardLibrary, data)
	msg := decodeValue(iter)
	if iter.Error != nil && iter.Error != io.EOF {
		return Message{}, fmt.Errorf("decoding message json: %w", iter.Error)
	}
	return msg, nil
}

func decodeValue(iter *jsoniter.Iterator) Message {
	switch iter.WhatIsNext() {
	case jsoniter.StringValue:
		return Text(iter.ReadString())
	case jsoniter.NumberValue:
		return Scalar(string(iter.ReadNumber()))
	case jsoniter.BoolValue:
		return Scalar(strconv.FormatBool(iter.ReadBool()))
	case jsoniter.NilValue:
		iter.ReadNil()
		return Scalar("")
	case jsoniter.ArrayValue:
		seq := Sequence()
		iter.ReadArrayCB(func(it *jsoniter.Iterator) bool {
			seq.Items = append(seq.Items, decodeValue(it))
			return it.Error == nil
		})
		return seq
	case jsoniter.ObjectValue:
		obj := Mapping()
		iter.ReadObjectCB(func(it *jsoniter.Iterator, key string) bool {
			obj.Fields = append(obj.Fields, KV(key, decodeValue(it)))
			return it.Error == nil
		})
		return obj
	default:
		iter.ReportError("decodeValue", "unexpected json token")
		return Message{}
	}
}

// String renders the message directly, without key-priority probing. Output depth is bounded.
func (m Message) String() string {
	var b strings.Builder
	coerce(&b, m, coerceDepth)
	return b.String()
}

const coerceDepth = 32

func coerce(b *strings.Builder, m Message, budget int) {
	if budget <= 0 {
		b.WriteString("...")
		return
	}
	switch m.Kind {
	case KindText, KindScalar:
		b.WriteString(m.Text)
	case KindBytes:
		b.WriteString(decodeLossy(m.Bytes))
	case KindMapping, KindObject:
		b.WriteByte('{')
		for i, f := range m.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(f.Key)
			b.WriteString(": ")
			coerce(b, f.Value, budget-1)
		}
		b.WriteByte('}')
	case KindSequence:
		b.WriteByte('[')
		for i, item := range m.Items {
			if i > 0 {
				b.WriteString(", ")
			}
			coerce(b, item, budget-1)
		}
		b.WriteByte(']')
	}
}

func decodeLossy(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}
