package iscdict

import (
	"errors"
	"fmt"

	"github.com/zpapi-labs/rndc/internal/rndcerr"
)

// Top-level message keys (spec section 3).
const (
	KeyAuth = "_auth"
	KeyCtrl = "_ctrl"
	KeyData = "_data"
)

var errMissingMessageKey = errors.New("message missing required top-level key")

// BuildMessage assembles a top-level message map with _auth, _ctrl and
// _data in that fixed order (spec section 3: "a top-level map with
// exactly these keys, in this order").
func BuildMessage(auth, ctrl, data *Map) *Map {
	m := NewMap()
	m.SetMap(KeyAuth, auth)
	m.SetMap(KeyCtrl, ctrl)
	m.SetMap(KeyData, data)

	return m
}

// SerializeMessage encodes a top-level message as the concatenation of
// its three map entries, with no enclosing map header.
func SerializeMessage(msg *Map) ([]byte, error) {
	return SerializeBody(msg)
}

// SerializeSignMode encodes msg exactly as SerializeMessage does, except
// that the _auth entry's value is replaced by an empty map (spec section
// 4.1: "the HMAC is computed over exactly those bytes"). msg itself is
// not modified.
func SerializeSignMode(msg *Map) ([]byte, error) {
	clone := msg.Clone()
	clone.SetMap(KeyAuth, NewMap())

	return SerializeBody(clone)
}

// ParseMessage parses a complete frame body as a top-level message and
// validates that _auth, _ctrl and _data are all present. A message
// missing any of these is a Protocol error: per spec section 8 property
// 2, any truncation of a well-formed message must be caught, and a
// message cut short between top-level entries would otherwise parse
// "successfully" as a map with fewer keys.
func ParseMessage(body []byte) (*Map, error) {
	m, err := ParseBody(body)
	if err != nil {
		return nil, err
	}

	for _, key := range [...]string{KeyAuth, KeyCtrl, KeyData} {
		if _, ok := m.Get(key); !ok {
			return nil, rndcerr.Protocolf("parse message", fmt.Errorf("%w: %q", errMissingMessageKey, key))
		}
	}

	return m, nil
}
