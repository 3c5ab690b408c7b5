package rauth

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/zpapi-labs/rndc/internal/iscdict"
	"github.com/zpapi-labs/rndc/internal/rndcerr"
)

// Wire field names used inside the _auth submap (spec section 4.2).
const (
	fieldHMD5 = "hmd5"
	fieldHSHA = "hsha"
)

// hmd5FieldLen is the fixed length of the hmd5 field: the 24-char
// standard base64 encoding of a 16-byte MD5 digest, with the trailing
// "==" padding dropped (BIND's exact on-wire layout, spec section 4.2).
const hmd5FieldLen = 22

// hshaB64Len is the fixed width of the base64 portion of the hsha field,
// zero-padded on the right when the algorithm's digest encodes shorter.
const hshaB64Len = 88

// hshaFieldLen is the total hsha field length: one algorithm-code byte
// plus the zero-padded base64 block.
const hshaFieldLen = 1 + hshaB64Len

// Sentinel causes for authentication failures.
var (
	ErrMissingAuthEntry    = errors.New("_auth submap missing signature entry")
	ErrUnexpectedAuthField = errors.New("_auth submap has unexpected signature field")
	ErrAuthFieldLength     = errors.New("signature field has wrong length")
	ErrAlgorithmMismatch   = errors.New("hsha algorithm code does not match configured algorithm")
	ErrSignatureMismatch   = errors.New("HMAC signature verification failed")
)

// Sign computes the HMAC over msg's canonical sign-mode serialization
// and installs the result into msg's _auth entry (spec section 4.2).
//
// msg is mutated in place: its _auth value is replaced with a fresh
// one-entry map holding the computed signature field.
func Sign(msg *iscdict.Map, alg Algorithm, key []byte) error {
	canonical, err := iscdict.SerializeSignMode(msg)
	if err != nil {
		return err
	}

	field, wireValue := computeWireValue(alg, key, canonical)

	auth := iscdict.NewMap()
	auth.SetBytes(field, wireValue)
	msg.SetMap(iscdict.KeyAuth, auth)

	return nil
}

// Verify recomputes the expected HMAC over msg's canonical sign-mode
// serialization and compares it, in constant time, against the
// signature carried in msg's _auth entry (spec section 4.2).
func Verify(msg *iscdict.Map, alg Algorithm, key []byte) error {
	authVal, ok := msg.Get(iscdict.KeyAuth)
	if !ok || !authVal.IsMap() {
		return rndcerr.Authenticationf("verify", ErrMissingAuthEntry)
	}

	auth := authVal.AsMap()

	wantField := fieldFor(alg)

	got, ok := auth.Get(wantField)
	if !ok || !got.IsBytes() {
		return rndcerr.Authenticationf("verify", fmt.Errorf("%w: expected %q", ErrUnexpectedAuthField, wantField))
	}

	gotRaw := got.AsBytes()

	if err := checkFieldShape(wantField, gotRaw, alg); err != nil {
		return rndcerr.Authenticationf("verify", err)
	}

	canonical, err := iscdict.SerializeSignMode(msg)
	if err != nil {
		return rndcerr.Authenticationf("verify", err)
	}

	_, expected := computeWireValue(alg, key, canonical)

	if subtle.ConstantTimeCompare(gotRaw, expected) != 1 {
		return rndcerr.Authenticationf("verify", ErrSignatureMismatch)
	}

	return nil
}

// checkFieldShape validates the received field's length and, for hsha,
// that the embedded algorithm-code byte matches alg (spec section 4.2:
// "The verifier must reject messages whose _auth contains an hsha body
// with an algorithm code byte not matching the session's configured
// algorithm"). The full-value comparison in Verify would eventually
// catch a mismatch too, but this gives a precise, named failure mode.
func checkFieldShape(field string, raw []byte, alg Algorithm) error {
	if field == fieldHSHA {
		if len(raw) != hshaFieldLen {
			return fmt.Errorf("%w: got %d, want %d", ErrAuthFieldLength, len(raw), hshaFieldLen)
		}

		if Code(raw[0]) != alg.Code {
			return fmt.Errorf("%w: got %d, want %d", ErrAlgorithmMismatch, raw[0], alg.Code)
		}

		return nil
	}

	if len(raw) != hmd5FieldLen {
		return fmt.Errorf("%w: got %d, want %d", ErrAuthFieldLength, len(raw), hmd5FieldLen)
	}

	return nil
}

// fieldFor returns the wire field name this algorithm's signature is
// carried under.
func fieldFor(alg Algorithm) string {
	if alg.Code == CodeHMACMD5 {
		return fieldHMD5
	}

	return fieldHSHA
}

// computeWireValue computes the HMAC over canonical with key under alg,
// and returns the wire field name together with the exact bytes that
// belong in (or must match) that field.
func computeWireValue(alg Algorithm, key, canonical []byte) (string, []byte) {
	mac := alg.newHMAC(key)
	mac.Write(canonical)
	digest := mac.Sum(nil)

	b64 := base64.StdEncoding.EncodeToString(digest)

	if alg.Code == CodeHMACMD5 {
		return fieldHMD5, []byte(b64[:hmd5FieldLen])
	}

	packed := make([]byte, hshaFieldLen)
	packed[0] = byte(alg.Code)
	copy(packed[1:], b64)

	return fieldHSHA, packed
}
