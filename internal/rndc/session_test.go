package rndc_test

import (
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zpapi-labs/rndc/internal/iscdict"
	"github.com/zpapi-labs/rndc/internal/rauth"
	"github.com/zpapi-labs/rndc/internal/rndc"
	"github.com/zpapi-labs/rndc/internal/rndcerr"
)

const (
	testSecretPlaintext = "shared-secret-key"
	testSecret          = "c2hhcmVkLXNlY3JldC1rZXk=" // base64(testSecretPlaintext)
)

// responder builds the _data map for one request. isHandshake reports
// whether req carries an empty _data (the handshake has no command).
type responder func(req *iscdict.Map, isHandshake bool) *iscdict.Map

// fakeServer is a minimal stand-in for a BIND control channel: it
// accepts connections, verifies each signed request, and replies with a
// freshly signed response built by a caller-supplied responder. It
// mirrors the build_response helper test_rndc_client.py uses on the
// Python side, but runs over a real net.Listener instead of a replayed
// byte buffer.
type fakeServer struct {
	ln   net.Listener
	alg  rauth.Algorithm
	key  []byte
	resp responder

	mu          sync.Mutex
	serialsSeen []string
	accepts     int32
}

func newFakeServer(t *testing.T, resp responder) *fakeServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error: %v", err)
	}

	alg, err := rauth.Lookup("sha256")
	if err != nil {
		t.Fatalf("rauth.Lookup() error: %v", err)
	}

	srv := &fakeServer{ln: ln, alg: alg, key: []byte(testSecretPlaintext), resp: resp}

	go srv.serve()

	t.Cleanup(func() { _ = ln.Close() })

	return srv
}

func (f *fakeServer) serve() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}

		atomic.AddInt32(&f.accepts, 1)

		go f.handleConn(conn)
	}
}

func (f *fakeServer) handleConn(conn net.Conn) {
	defer conn.Close()

	for {
		body, err := iscdict.ReadFrame(conn)
		if err != nil {
			return
		}

		req, err := iscdict.ParseMessage(body)
		if err != nil {
			return
		}

		if err := rauth.Verify(req, f.alg, f.key); err != nil {
			return
		}

		reqCtrl, _ := req.Get(iscdict.KeyCtrl)
		serial, _ := reqCtrl.AsMap().GetString("_ser")

		f.mu.Lock()
		f.serialsSeen = append(f.serialsSeen, serial)
		f.mu.Unlock()

		reqData, _ := req.Get(iscdict.KeyData)
		_, hasType := reqData.AsMap().GetString("type")
		isHandshake := !hasType

		respData := f.resp(req, isHandshake)

		respCtrl := iscdict.NewMap()
		respCtrl.SetString("_ser", serial)
		respCtrl.SetString("_tim", strconv.FormatInt(time.Now().Unix(), 10))
		respCtrl.SetString("_exp", strconv.FormatInt(time.Now().Unix()+60, 10))

		if !isHandshake {
			nonceVal, _ := reqCtrl.AsMap().Get("_nonce")
			respCtrl.SetBytes("_nonce", nonceVal.AsBytes())
		} else {
			respCtrl.SetBytes("_nonce", []byte("test-nonce"))
		}

		respMsg := iscdict.BuildMessage(iscdict.NewMap(), respCtrl, respData)

		if err := rauth.Sign(respMsg, f.alg, f.key); err != nil {
			return
		}

		respBody, err := iscdict.SerializeMessage(respMsg)
		if err != nil {
			return
		}

		if err := iscdict.WriteFrame(conn, respBody); err != nil {
			return
		}
	}
}

func (f *fakeServer) addr() (string, int) {
	tcpAddr := f.ln.Addr().(*net.TCPAddr)

	return tcpAddr.IP.String(), tcpAddr.Port
}

func (f *fakeServer) acceptCount() int {
	return int(atomic.LoadInt32(&f.accepts))
}

func newTestSession(t *testing.T, host string, port int) *rndc.Session {
	t.Helper()

	s, err := rndc.New(rndc.Options{
		Host:       host,
		Port:       port,
		Algorithm:  "hmac-sha256",
		Secret:     testSecret,
		Timeout:    2 * time.Second,
		MaxRetries: 1,
		RetryDelay: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("rndc.New() error: %v", err)
	}

	t.Cleanup(func() { _ = s.Close() })

	return s
}

func echoResponder(req *iscdict.Map, isHandshake bool) *iscdict.Map {
	data := iscdict.NewMap()

	if !isHandshake {
		reqData, _ := req.Get(iscdict.KeyData)
		cmd, _ := reqData.AsMap().GetString("type")
		data.SetString("text", "ok: "+cmd)
	}

	return data
}

func TestSessionConnectCallClose(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t, echoResponder)
	host, port := srv.addr()

	s := newTestSession(t, host, port)

	if err := s.Connect(); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	result, err := s.Call("status")
	if err != nil {
		t.Fatalf("Call(status) error: %v", err)
	}

	if got, _ := result["text"].(string); got != "ok: status" {
		t.Errorf("Call(status) result[text] = %q, want %q", got, "ok: status")
	}

	result2, err := s.Call("reload")
	if err != nil {
		t.Fatalf("Call(reload) error: %v", err)
	}

	if got, _ := result2["text"].(string); got != "ok: reload" {
		t.Errorf("Call(reload) result[text] = %q, want %q", got, "ok: reload")
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}

	// Idempotent: a second Close on an already-closed session is a no-op.
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error: %v, want nil", err)
	}
}

func TestSessionConnectIsIdempotent(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t, echoResponder)
	host, port := srv.addr()

	s := newTestSession(t, host, port)

	if err := s.Connect(); err != nil {
		t.Fatalf("first Connect() error: %v", err)
	}

	if err := s.Connect(); err != nil {
		t.Fatalf("second Connect() error: %v", err)
	}

	if got := srv.acceptCount(); got != 1 {
		t.Errorf("server accepted %d connections, want 1 (Connect should be idempotent)", got)
	}
}

func TestSessionSerialMonotonicallyIncreases(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t, echoResponder)
	host, port := srv.addr()

	s := newTestSession(t, host, port)

	if err := s.Connect(); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	if _, err := s.Call("status"); err != nil {
		t.Fatalf("Call(status) error: %v", err)
	}

	if _, err := s.Call("reload"); err != nil {
		t.Fatalf("Call(reload) error: %v", err)
	}

	srv.mu.Lock()
	serials := append([]string(nil), srv.serialsSeen...)
	srv.mu.Unlock()

	want := []string{"1", "2", "3"} // handshake=1, then 2, then 3
	if len(serials) != len(want) {
		t.Fatalf("serials seen = %v, want %v", serials, want)
	}

	for i := range want {
		if serials[i] != want[i] {
			t.Errorf("serials[%d] = %q, want %q", i, serials[i], want[i])
		}
	}
}

func TestSessionCallSurfacesServerError(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t, func(req *iscdict.Map, isHandshake bool) *iscdict.Map {
		data := iscdict.NewMap()
		if !isHandshake {
			data.SetString("err", "zone not found")
		}

		return data
	})
	host, port := srv.addr()

	s := newTestSession(t, host, port)

	if err := s.Connect(); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	_, err := s.Call("zonestatus nonexistent.com")
	if err == nil {
		t.Fatal("Call() returned nil error for a _data.err response")
	}

	kind, ok := rndcerr.KindOf(err)
	if !ok || kind != rndcerr.Server {
		t.Errorf("error kind = %v (found=%v), want Server: %v", kind, ok, err)
	}
}

func TestSessionCallDoesNotTreatNonzeroResultAsError(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t, func(req *iscdict.Map, isHandshake bool) *iscdict.Map {
		data := iscdict.NewMap()
		if !isHandshake {
			data.SetString("text", "command failed")
			data.SetString("result", "1")
		}

		return data
	})
	host, port := srv.addr()

	s := newTestSession(t, host, port)

	if err := s.Connect(); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	result, err := s.Call("badcommand")
	if err != nil {
		t.Fatalf("Call() error: %v, want nil (a nonzero result field is not a session-level error)", err)
	}

	if got, _ := result["result"].(string); got != "1" {
		t.Errorf("result[result] = %q, want %q", got, "1")
	}
}

// truncatingServer answers its first connection with a well-formed
// frame header declaring a nonzero body length, then closes without
// writing any body bytes — a truncated frame (spec section 8 end-to-end
// scenario 4). Every connection after the first is handled by a normal
// fakeServer-style responder, so a session configured with maxRetries
// >= 1 reconnects and completes the handshake on its second attempt.
type truncatingServer struct {
	ln   net.Listener
	alg  rauth.Algorithm
	key  []byte
	resp responder

	mu       sync.Mutex
	accepted int
}

func newTruncatingServer(t *testing.T, resp responder) *truncatingServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error: %v", err)
	}

	alg, err := rauth.Lookup("sha256")
	if err != nil {
		t.Fatalf("rauth.Lookup() error: %v", err)
	}

	srv := &truncatingServer{ln: ln, alg: alg, key: []byte(testSecretPlaintext), resp: resp}

	go srv.serve()

	t.Cleanup(func() { _ = ln.Close() })

	return srv
}

func (f *truncatingServer) serve() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}

		f.mu.Lock()
		f.accepted++
		first := f.accepted == 1
		f.mu.Unlock()

		if first {
			go f.truncateOnce(conn)

			continue
		}

		fake := &fakeServer{alg: f.alg, key: f.key, resp: f.resp}

		go fake.handleConn(conn)
	}
}

// truncateOnce reads the inbound handshake frame fully (so the client's
// write completes), then replies with a header promising a 10-byte body
// and closes before sending any of it.
func (f *truncatingServer) truncateOnce(conn net.Conn) {
	defer conn.Close()

	if _, err := iscdict.ReadFrame(conn); err != nil {
		return
	}

	header := make([]byte, 8)
	header[3] = 14 // total length = 14, body length 10
	header[7] = byte(iscdict.Version)

	_, _ = conn.Write(header)
}

func (f *truncatingServer) addr() (string, int) {
	tcpAddr := f.ln.Addr().(*net.TCPAddr)

	return tcpAddr.IP.String(), tcpAddr.Port
}

func TestSessionReconnectsAfterTruncatedFrame(t *testing.T) {
	t.Parallel()

	srv := newTruncatingServer(t, echoResponder)
	host, port := srv.addr()

	s := newTestSession(t, host, port)

	if err := s.Connect(); err != nil {
		t.Fatalf("Connect() error: %v, want a successful reconnect after one truncated frame", err)
	}

	result, err := s.Call("status")
	if err != nil {
		t.Fatalf("Call(status) error: %v", err)
	}

	if got, _ := result["text"].(string); got != "ok: status" {
		t.Errorf("Call(status) result[text] = %q, want %q", got, "ok: status")
	}
}

func TestSessionConnectFailsOnRefusedConnection(t *testing.T) {
	t.Parallel()

	// Bind and immediately close to get a port nothing is listening on.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error: %v", err)
	}

	addr := ln.Addr().(*net.TCPAddr)
	if err := ln.Close(); err != nil {
		t.Fatalf("ln.Close() error: %v", err)
	}

	s, err := rndc.New(rndc.Options{
		Host:       addr.IP.String(),
		Port:       addr.Port,
		Algorithm:  "hmac-sha256",
		Secret:     testSecret,
		Timeout:    500 * time.Millisecond,
		MaxRetries: 0,
		RetryDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("rndc.New() error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	err = s.Connect()
	if err == nil {
		t.Fatal("Connect() returned nil error for a refused connection")
	}

	if !rndcerr.Retryable(err) {
		t.Errorf("Connect() error is not classified retryable: %v", err)
	}
}
