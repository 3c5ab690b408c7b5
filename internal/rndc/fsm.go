package rndc

// The session lifecycle (spec section 4.3 "State machine") is modeled as
// a pure transition table over (State, Event), the same shape the
// teacher uses for its protocol FSM: no side effects live here, only the
// table and a lookup function, so the legal transitions are auditable
// in one place independent of where Connect/Call/Close drive them.

// State is one point in the session lifecycle.
type State uint8

const (
	// StateDisconnected is the initial/idle state: no socket, no nonce.
	StateDisconnected State = iota

	// StateConnecting is between dial start and a successful TCP connect.
	StateConnecting

	// StateHandshaking is between TCP connect and a verified handshake
	// response carrying the server's nonce.
	StateHandshaking

	// StateReady holds an authenticated connection with no call in flight.
	StateReady

	// StateInCall is between sending a command and verifying its response.
	StateInCall

	// StateClosing is releasing the socket.
	StateClosing
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateHandshaking:
		return "Handshaking"
	case StateReady:
		return "Ready"
	case StateInCall:
		return "InCall"
	case StateClosing:
		return "Closing"
	default:
		return "Unknown"
	}
}

// Event drives a state transition.
type Event uint8

const (
	// EventConnectStart begins opening a TCP connection.
	EventConnectStart Event = iota

	// EventTCPOpen reports a successful TCP connect.
	EventTCPOpen

	// EventHandshakeOK reports a verified handshake response.
	EventHandshakeOK

	// EventCallStart begins a command exchange.
	EventCallStart

	// EventCallOK reports a verified command response.
	EventCallOK

	// EventCloseStart begins releasing the socket.
	EventCloseStart

	// EventCloseDone reports the socket has been released.
	EventCloseDone

	// EventFatalError reports a non-retryable failure from any state.
	EventFatalError
)

// stateEvent is the transition table key.
type stateEvent struct {
	state State
	event Event
}

// transitions is the lifecycle's legal-move table (spec section 4.3
// diagram). Any (state, event) pair not listed here, and not
// EventFatalError, leaves the state unchanged.
var transitions = map[stateEvent]State{
	{StateDisconnected, EventConnectStart}: StateConnecting,
	{StateConnecting, EventTCPOpen}:        StateHandshaking,
	{StateHandshaking, EventHandshakeOK}:   StateReady,
	{StateReady, EventCallStart}:           StateInCall,
	{StateInCall, EventCallOK}:             StateReady,
	{StateReady, EventCloseStart}:          StateClosing,
	{StateDisconnected, EventCloseStart}:   StateClosing,
	{StateClosing, EventCloseDone}:         StateDisconnected,
}

// apply returns the next state for (current, event). A fatal error
// returns to Disconnected from any non-terminal state, per spec section
// 4.3: "a fatal error from any non-terminal state returns to
// DISCONNECTED after closing the socket." Unrecognized transitions are
// a no-op, matching the teacher FSM's handling of ignored events.
func apply(current State, event Event) State {
	if event == EventFatalError {
		return StateDisconnected
	}

	if next, ok := transitions[stateEvent{current, event}]; ok {
		return next
	}

	return current
}
