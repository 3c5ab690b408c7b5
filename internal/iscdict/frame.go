package iscdict

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/zpapi-labs/rndc/internal/rndcerr"
)

// Version is the only frame version this client speaks.
const Version uint32 = 1

// frameHeaderSize is the fixed 8-byte frame header: 4-byte total length
// plus 4-byte version.
const frameHeaderSize = 8

// MaxFrameBodySize bounds the body length accepted from a frame header,
// guarding against unbounded memory use from a malicious or corrupt
// peer (spec section 9: "implementers should impose a sanity cap, e.g.
// 10 MiB").
const MaxFrameBodySize = 10 * 1024 * 1024

var (
	errBadVersion     = errors.New("unsupported frame version")
	errBodyTooLarge   = errors.New("frame body exceeds sanity cap")
	errNegativeLength = errors.New("frame total length shorter than header")
)

// WriteFrame writes one frame to w: an 8-byte header (total length =
// len(body)+4, version = 1) followed by body.
func WriteFrame(w io.Writer, body []byte) error {
	header := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint32(header[0:4], uint32(len(body))+4) //nolint:gosec // G115: wire format is a 32-bit length
	binary.BigEndian.PutUint32(header[4:8], Version)

	if _, err := w.Write(header); err != nil {
		return rndcerr.Connectionf("write frame header", err)
	}

	if _, err := w.Write(body); err != nil {
		return rndcerr.Connectionf("write frame body", err)
	}

	return nil
}

// ReadFrame reads one complete frame from r and returns its body.
//
// A failure to read the 8-byte header, and a failure to read the
// advertised body once the header has been decoded, are both classified
// Connection: either is an EOF or short read somewhere in the middle of
// the peer's stream, indistinguishable from any other transport
// disruption, and both are retried by the session per the truncated
// frame scenario (spec section 8 end-to-end scenario 4). Only a
// well-formed header describing a malformed frame — unsupported
// version, a length shorter than the header itself, or a body past the
// sanity cap — is classified Protocol, since the peer is present and
// talking but not making sense.
func ReadFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, frameHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, rndcerr.Connectionf("read frame header", err)
	}

	totalLen := binary.BigEndian.Uint32(header[0:4])
	version := binary.BigEndian.Uint32(header[4:8])

	if version != Version {
		return nil, rndcerr.Protocolf("read frame", fmt.Errorf("%w: got %d, want %d", errBadVersion, version, Version))
	}

	if totalLen < 4 {
		return nil, rndcerr.Protocolf("read frame", fmt.Errorf("%w: total length %d", errNegativeLength, totalLen))
	}

	bodyLen := totalLen - 4
	if bodyLen > MaxFrameBodySize {
		return nil, rndcerr.Protocolf("read frame", fmt.Errorf("%w: %d bytes", errBodyTooLarge, bodyLen))
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, rndcerr.Connectionf("read frame body", err)
	}

	return body, nil
}
