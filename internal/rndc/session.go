// Package rndc implements the RNDC session: TCP connection lifecycle,
// the nonce handshake, command exchange, and the bounded-retry engine
// wrapping both (spec section 4.3, component C).
//
// A Session is single-owner and synchronous (spec section 5): every
// method blocks the calling goroutine on socket I/O, and sharing one
// Session across goroutines is undefined behavior. To multiplex,
// construct multiple Sessions.
package rndc

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/zpapi-labs/rndc/internal/iscdict"
	"github.com/zpapi-labs/rndc/internal/rauth"
	"github.com/zpapi-labs/rndc/internal/rndcerr"
)

// expirySeconds is the _exp offset (now + 60) used by both the
// handshake and every command request (spec section 4.3).
const expirySeconds = 60

// initialHandshakeSerial is the fixed _ser value of the handshake
// request (spec section 4.3 step 2).
const initialHandshakeSerial = "1"

// postHandshakeSerial is the serial the session resumes counting from
// after a successful handshake (spec section 4.3 step 4: "Reset the
// serial counter to 2 (next outbound)").
const postHandshakeSerial uint32 = 2

var errMissingNonce = errors.New("handshake response missing _ctrl._nonce")

// Recorder receives call/retry/auth-failure observations. It is an
// optional seam so this package does not depend on a metrics library
// directly; internal/rndcmetrics.Collector implements it.
type Recorder interface {
	ObserveCall(cmd string, dur time.Duration, err error)
	ObserveRetry()
	ObserveAuthFailure()
}

// Session is an authenticated RNDC client connection (spec section 4.3).
type Session struct {
	host       string
	port       int
	alg        rauth.Algorithm
	key        []byte
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
	recorder   Recorder

	mu     sync.Mutex
	conn   net.Conn
	serial uint32
	nonce  []byte
	state  State
}

// New validates opts and constructs a Session. No socket is opened until
// Connect or Call is called.
func New(opts Options) (*Session, error) {
	opts = opts.withDefaults()

	if err := opts.validate(); err != nil {
		return nil, err
	}

	alg, err := opts.resolveAlgorithm()
	if err != nil {
		return nil, err
	}

	key, err := opts.decodeSecret()
	if err != nil {
		return nil, err
	}

	return &Session{
		host:       opts.Host,
		port:       opts.Port,
		alg:        alg,
		key:        key,
		timeout:    opts.Timeout,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		logger:     opts.Logger,
		state:      StateDisconnected,
	}, nil
}

// SetRecorder attaches a Recorder for call/retry/auth-failure metrics.
// It is not part of New's Options so that wiring a Recorder never
// requires touching construction-time validation.
func (s *Session) SetRecorder(r Recorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorder = r
}

// State returns the session's current lifecycle state. Intended for
// logging and tests; callers should not branch application logic on it,
// since it can change before the call returns under concurrent misuse.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Connect opens the TCP connection and runs the handshake. It is
// idempotent if already connected (spec section 4.3 "Public contract").
func (s *Session) Connect() error {
	return s.withRetry("connect", func() error {
		s.mu.Lock()
		connected := s.conn != nil
		s.mu.Unlock()

		if connected {
			return nil
		}

		return s.handshake()
	})
}

// Call sends one command and returns the server's _data map (spec
// section 4.3 "Command exchange").
func (s *Session) Call(cmd string) (Result, error) {
	start := time.Now()

	var result Result

	err := s.withRetry("call", func() error {
		s.mu.Lock()
		connected := s.conn != nil
		s.mu.Unlock()

		if !connected {
			if err := s.handshake(); err != nil {
				return err
			}
		}

		r, err := s.exchange(cmd)
		if err != nil {
			return err
		}

		result = r

		return nil
	})

	if s.recorder != nil {
		s.recorder.ObserveCall(cmd, time.Since(start), err)
	}

	return result, err
}

// Close releases the socket. Safe to call repeatedly or on a Session
// that was never connected (spec section 4.3 "close() — best-effort
// socket shutdown; safe to call repeatedly"), grounded on the teacher's
// mutex-guarded idempotent Close (internal/netio's sender/listener
// Close methods).
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closeLocked()
}

// closeLocked releases the socket and resets per-connection state.
// Caller must hold s.mu.
func (s *Session) closeLocked() error {
	s.state = apply(s.state, EventCloseStart)

	if s.conn == nil {
		s.state = apply(s.state, EventCloseDone)

		return nil
	}

	err := s.conn.Close()
	s.conn = nil
	s.nonce = nil
	s.state = apply(s.state, EventCloseDone)

	if err != nil {
		return rndcerr.Connectionf("close", err)
	}

	return nil
}

// handshake dials a fresh TCP connection and performs the nonce
// handshake (spec section 4.3 "Handshake").
func (s *Session) handshake() error {
	s.mu.Lock()
	s.state = apply(s.state, EventConnectStart)
	s.mu.Unlock()

	conn, err := net.DialTimeout("tcp", net.JoinHostPort(s.host, strconv.Itoa(s.port)), s.timeout)
	if err != nil {
		return rndcerr.Connectionf("dial", err)
	}

	s.mu.Lock()
	s.state = apply(s.state, EventTCPOpen)
	s.mu.Unlock()

	now := time.Now().Unix()
	ctrl := iscdict.NewMap()
	ctrl.SetString("_ser", initialHandshakeSerial)
	ctrl.SetString("_tim", strconv.FormatInt(now, 10))
	ctrl.SetString("_exp", strconv.FormatInt(now+expirySeconds, 10))

	msg := iscdict.BuildMessage(iscdict.NewMap(), ctrl, iscdict.NewMap())

	respMsg, err := s.roundTrip(conn, msg)
	if err != nil {
		_ = conn.Close()

		return err
	}

	nonce, err := extractNonce(respMsg)
	if err != nil {
		_ = conn.Close()

		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.nonce = nonce
	s.serial = postHandshakeSerial
	s.state = apply(s.state, EventHandshakeOK)
	s.mu.Unlock()

	s.logger.Debug("rndc handshake complete", slog.String("host", s.host), slog.Int("port", s.port))

	return nil
}

// extractNonce pulls _ctrl._nonce out of a parsed, verified handshake
// response.
func extractNonce(msg *iscdict.Map) ([]byte, error) {
	ctrlVal, ok := msg.Get(iscdict.KeyCtrl)
	if !ok || !ctrlVal.IsMap() {
		return nil, rndcerr.Protocolf("handshake", errMissingNonce)
	}

	nonceVal, ok := ctrlVal.AsMap().Get("_nonce")
	if !ok || !nonceVal.IsBytes() {
		return nil, rndcerr.Protocolf("handshake", errMissingNonce)
	}

	nonce := make([]byte, len(nonceVal.AsBytes()))
	copy(nonce, nonceVal.AsBytes())

	return nonce, nil
}

// exchange sends one command over the established connection and
// returns its verified response's _data map (spec section 4.3 "Command
// exchange").
func (s *Session) exchange(cmd string) (Result, error) {
	s.mu.Lock()
	conn := s.conn
	serial := s.serial
	s.serial++
	nonce := s.nonce
	s.state = apply(s.state, EventCallStart)
	s.mu.Unlock()

	now := time.Now().Unix()
	ctrl := iscdict.NewMap()
	ctrl.SetString("_ser", strconv.FormatUint(uint64(serial), 10))
	ctrl.SetString("_tim", strconv.FormatInt(now, 10))
	ctrl.SetString("_exp", strconv.FormatInt(now+expirySeconds, 10))
	ctrl.SetBytes("_nonce", nonce)

	data := iscdict.NewMap()
	data.SetString("type", cmd)

	msg := iscdict.BuildMessage(iscdict.NewMap(), ctrl, data)

	respMsg, err := s.roundTrip(conn, msg)
	if err != nil {
		return nil, err
	}

	respDataVal, ok := respMsg.Get(iscdict.KeyData)
	if !ok || !respDataVal.IsMap() {
		return nil, rndcerr.Protocolf("call", fmt.Errorf("response missing _data map"))
	}

	respData := respDataVal.AsMap()

	if errText, ok := respData.GetString("err"); ok && errText != "" {
		return nil, rndcerr.Serverf("call", errors.New(errText))
	}

	s.mu.Lock()
	s.state = apply(s.state, EventCallOK)
	s.mu.Unlock()

	return liftData(respData), nil
}

// roundTrip signs, frames and sends msg, then reads, parses and
// verifies the single response frame. It applies the session's timeout
// to each socket operation independently (spec section 5: "Timeouts
// apply to individual socket operations, not to the whole exchange").
func (s *Session) roundTrip(conn net.Conn, msg *iscdict.Map) (*iscdict.Map, error) {
	if err := rauth.Sign(msg, s.alg, s.key); err != nil {
		return nil, err
	}

	body, err := iscdict.SerializeMessage(msg)
	if err != nil {
		return nil, err
	}

	if err := conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
		return nil, rndcerr.Connectionf("set write deadline", err)
	}

	if err := iscdict.WriteFrame(conn, body); err != nil {
		return nil, err
	}

	if err := conn.SetReadDeadline(time.Now().Add(s.timeout)); err != nil {
		return nil, rndcerr.Connectionf("set read deadline", err)
	}

	respBody, err := iscdict.ReadFrame(conn)
	if err != nil {
		return nil, err
	}

	respMsg, err := iscdict.ParseMessage(respBody)
	if err != nil {
		return nil, err
	}

	if err := rauth.Verify(respMsg, s.alg, s.key); err != nil {
		if s.recorder != nil {
			s.recorder.ObserveAuthFailure()
		}

		return nil, err
	}

	return respMsg, nil
}
