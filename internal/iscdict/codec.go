package iscdict

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/zpapi-labs/rndc/internal/rndcerr"
)

// Grammar (spec section 4.1):
//
//	value     := type_byte(1B) | length(4B BE) | body(length bytes)
//	map_entry := key_length(1B) | key(key_length bytes) | value
//
// A serialized message body is the concatenation of the top-level
// map_entry triples with no enclosing map header; SerializeBody and
// ParseBody implement exactly that "headerless map" shape, and are also
// reused to encode/decode the body of a nested KindMap value.

// maxKeyLen is the largest key length representable by the 1-byte key
// length field.
const maxKeyLen = 0xFF

// Sentinel causes wrapped into rndcerr.Protocolf errors.
var (
	errTruncatedKeyLen    = errors.New("truncated key length")
	errTruncatedKey       = errors.New("truncated key")
	errTruncatedValueHdr  = errors.New("truncated value header")
	errTruncatedValueBody = errors.New("truncated value body")
	errKeyTooLong         = errors.New("key exceeds 255 bytes")
	errDuplicateKey       = errors.New("duplicate key in map")
	errUnknownType        = errors.New("unknown value type byte")
)

// SerializeValue encodes v as a full type-tagged value: type_byte |
// length | body.
func SerializeValue(v Value) ([]byte, error) {
	switch v.kind {
	case KindBytes:
		out := make([]byte, 0, 5+len(v.bytes))
		out = append(out, byte(KindBytes))
		out = binary.BigEndian.AppendUint32(out, uint32(len(v.bytes))) //nolint:gosec // G115: wire format is a 32-bit length
		out = append(out, v.bytes...)

		return out, nil

	case KindMap:
		body, err := SerializeBody(v.m)
		if err != nil {
			return nil, err
		}

		out := make([]byte, 0, 5+len(body))
		out = append(out, byte(KindMap))
		out = binary.BigEndian.AppendUint32(out, uint32(len(body))) //nolint:gosec // G115: wire format is a 32-bit length
		out = append(out, body...)

		return out, nil

	case KindList:
		return nil, rndcerr.Protocolf("serialize", fmt.Errorf("lists are not emitted by this client"))

	default:
		return nil, rndcerr.Protocolf("serialize", fmt.Errorf("%w: %d", errUnknownType, v.kind))
	}
}

// SerializeBody encodes m's entries as a concatenation of map_entry
// triples, with no enclosing type_byte/length header. This is used both
// for the top-level message body and, recursively, for the body of a
// nested KindMap value.
func SerializeBody(m *Map) ([]byte, error) {
	var out []byte

	var err error

	m.Range(func(key string, val Value) bool {
		if len(key) > maxKeyLen {
			err = rndcerr.Protocolf("serialize", fmt.Errorf("%w: %q", errKeyTooLong, key))

			return false
		}

		valBytes, serr := SerializeValue(val)
		if serr != nil {
			err = serr

			return false
		}

		out = append(out, byte(len(key)))
		out = append(out, key...)
		out = append(out, valBytes...)

		return true
	})

	return out, err
}

// ParseBody parses data as a concatenation of map_entry triples until
// the input is exhausted, returning the resulting Map. This is used both
// for parsing the top-level message body and, recursively, for parsing a
// nested KindMap value's body. Truncation, unknown type bytes and
// duplicate keys are reported as rndcerr.Protocol errors.
func ParseBody(data []byte) (*Map, error) {
	m := NewMap()

	for len(data) > 0 {
		key, val, rest, err := parseEntry(data)
		if err != nil {
			return nil, err
		}

		if _, exists := m.Get(key); exists {
			return nil, rndcerr.Protocolf("parse", fmt.Errorf("%w: %q", errDuplicateKey, key))
		}

		m.Set(key, val)
		data = rest
	}

	return m, nil
}

// parseEntry parses one map_entry triple from the front of data,
// returning the key, the decoded value, and the remaining bytes.
func parseEntry(data []byte) (string, Value, []byte, error) {
	if len(data) < 1 {
		return "", Value{}, nil, rndcerr.Protocolf("parse", errTruncatedKeyLen)
	}

	keyLen := int(data[0])
	data = data[1:]

	if len(data) < keyLen {
		return "", Value{}, nil, rndcerr.Protocolf("parse", errTruncatedKey)
	}

	key := string(data[:keyLen])
	data = data[keyLen:]

	val, rest, err := parseValue(data)
	if err != nil {
		return "", Value{}, nil, err
	}

	return key, val, rest, nil
}

// parseValue parses one type-tagged value from the front of data,
// returning the decoded value and the remaining bytes.
func parseValue(data []byte) (Value, []byte, error) {
	if len(data) < 5 {
		return Value{}, nil, rndcerr.Protocolf("parse", errTruncatedValueHdr)
	}

	kind := Kind(data[0])
	length := binary.BigEndian.Uint32(data[1:5])
	data = data[5:]

	if uint64(len(data)) < uint64(length) {
		return Value{}, nil, rndcerr.Protocolf("parse", errTruncatedValueBody)
	}

	body := data[:length]
	rest := data[length:]

	switch kind {
	case KindBytes:
		return Bytes(body), rest, nil

	case KindMap:
		m, err := ParseBody(body)
		if err != nil {
			return Value{}, nil, err
		}

		return MapValue(m), rest, nil

	case KindList:
		items, err := parseListBody(body)
		if err != nil {
			return Value{}, nil, err
		}

		return Value{kind: KindList, list: items}, rest, nil

	default:
		return Value{}, nil, rndcerr.Protocolf("parse", fmt.Errorf("%w: 0x%02x", errUnknownType, kind))
	}
}

// parseListBody parses a list body as a concatenation of bare values
// (no keys). Lists are recognized for forward compatibility but this
// client never constructs or requires one.
func parseListBody(data []byte) ([]Value, error) {
	var items []Value

	for len(data) > 0 {
		v, rest, err := parseValue(data)
		if err != nil {
			return nil, err
		}

		items = append(items, v)
		data = rest
	}

	return items, nil
}

// Parse decodes a complete serialized message body, as produced by
// SerializeBody at the top level. Any surplus or truncated bytes are a
// Protocol error (spec: "Parsers must treat the message body
// identically: a sequence of (key_length, key, value) triples until the
// body is exhausted" and "parse consumes all bytes; surplus or
// truncation is an error").
func Parse(body []byte) (*Map, error) {
	return ParseBody(body)
}
