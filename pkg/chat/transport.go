package chat

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// State is the transport connection state.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateReconnecting
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DefaultReconnectDelay is the fixed back-off between an abnormal close and
// the single reconnection attempt it schedules.
const DefaultReconnectDelay = 3 * time.Second

var (
	// ErrNotConnected is returned by SendMessage while the transport is not
	// in the Open state.
	ErrNotConnected = errors.New("chat transport is not connected")
	// ErrBlankMessage is returned by SendMessage for whitespace-only text.
	ErrBlankMessage = errors.New("chat message is blank")
)

// Callbacks notify the owner of transport activity. They fire on the
// transport's run goroutine; keep them short.
type Callbacks struct {
	OnHistory     func(messages []Message)
	OnMessage     func(msg Message)
	OnEnded       func()
	OnError       func(err error)
	OnStateChange func(state State)
}

// Transport maintains a persistent chat connection to one room.
//
// On every successful dial it sends the join handshake, then dispatches
// incoming frames by type. An abnormal close schedules exactly one
// reconnection attempt after a fixed delay, repeating indefinitely until
// Close is called; a server-initiated stream_ended is terminal and never
// reconnects. Accumulated history survives reconnects unless the server
// replays an explicit history snapshot.
type Transport struct {
	url            string
	join           JoinMessage
	logger         *slog.Logger
	dialer         *websocket.Dialer
	reconnectDelay time.Duration
	pingInterval   time.Duration
	writeTimeout   time.Duration
	readTimeout    time.Duration

	mu       sync.Mutex
	wmu      sync.Mutex
	conn     *websocket.Conn
	state    State
	messages []Message
	seen     map[string]struct{}
	cb       Callbacks

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Options tune transport timing. Zero fields use defaults.
type Options struct {
	ReconnectDelay time.Duration
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
}

// NewTransport creates a transport for url joining roomID as userName/role.
// Call Start to connect.
func NewTransport(url, roomID, userName, role string, opts Options, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 20 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 60 * time.Second
	}
	return &Transport{
		url:            url,
		join:           JoinMessage{Type: TypeJoin, RoomID: roomID, UserName: userName, Role: role},
		logger:         logger.With(slog.String("component", "chat-transport"), slog.String("room_id", roomID)),
		dialer:         websocket.DefaultDialer,
		reconnectDelay: opts.ReconnectDelay,
		pingInterval:   opts.PingInterval,
		writeTimeout:   opts.WriteTimeout,
		readTimeout:    opts.ReadTimeout,
		state:          StateConnecting,
		seen:           make(map[string]struct{}),
		done:           make(chan struct{}),
	}
}

// SetCallbacks registers callbacks. Set before Start.
func (t *Transport) SetCallbacks(cb Callbacks) {
	t.mu.Lock()
	t.cb = cb
	t.mu.Unlock()
}

// Start launches the connect/read loop. Call once.
func (t *Transport) Start() {
	t.wg.Add(1)
	go t.run()
}

// Close tears the transport down permanently and waits for the run loop to
// exit. Safe to call more than once.
func (t *Transport) Close() {
	t.closeOnce.Do(func() {
		close(t.done)
		t.mu.Lock()
		conn := t.conn
		t.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
	})
	t.wg.Wait()
}

// State returns the current connection state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Messages returns a snapshot of the accumulated room history.
func (t *Transport) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// SendMessage sends trimmed text to the room. It fails without side effects
// when the transport is not open or the text is blank.
func (t *Transport) SendMessage(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrBlankMessage
	}

	t.mu.Lock()
	conn := t.conn
	open := t.state == StateOpen
	t.mu.Unlock()
	if !open || conn == nil {
		return ErrNotConnected
	}

	t.wmu.Lock()
	defer t.wmu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	return conn.WriteJSON(OutboundMessage{Type: TypeMessage, Content: text})
}

type closeReason int

const (
	closeAbnormal closeReason = iota
	closeEnded
	closeTeardown
)

func (t *Transport) run() {
	defer t.wg.Done()
	defer t.setState(StateClosed)

	for {
		select {
		case <-t.done:
			return
		default:
		}

		t.setState(StateConnecting)
		conn, resp, err := t.dialer.Dial(t.url, nil)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			t.logger.Warn("chat dial failed", slog.String("error", err.Error()))
			if !t.waitReconnect() {
				return
			}
			continue
		}

		if err := t.sendJoin(conn); err != nil {
			t.logger.Warn("chat join failed", slog.String("error", err.Error()))
			conn.Close()
			if !t.waitReconnect() {
				return
			}
			continue
		}

		t.mu.Lock()
		t.conn = conn
		t.mu.Unlock()
		t.setState(StateOpen)

		reason := t.readLoop(conn)

		t.mu.Lock()
		t.conn = nil
		t.mu.Unlock()
		conn.Close()

		switch reason {
		case closeTeardown:
			return
		case closeEnded:
			// room closed by the server; terminal, no reconnect
			return
		default:
			if !t.waitReconnect() {
				return
			}
		}
	}
}

// waitReconnect sleeps the fixed delay before the next attempt. It returns
// false when the transport was torn down while waiting.
func (t *Transport) waitReconnect() bool {
	t.setState(StateReconnecting)
	timer := time.NewTimer(t.reconnectDelay)
	defer timer.Stop()
	select {
	case <-t.done:
		return false
	case <-timer.C:
		return true
	}
}

func (t *Transport) sendJoin(conn *websocket.Conn) error {
	t.wmu.Lock()
	defer t.wmu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	return conn.WriteJSON(t.join)
}

// readLoop pumps incoming frames until the connection drops, the server ends
// the room, or the caller tears down. A ping keepalive runs alongside; a
// missed pong trips the read deadline and counts as an abnormal close.
func (t *Transport) readLoop(conn *websocket.Conn) closeReason {
	_ = conn.SetReadDeadline(time.Now().Add(t.readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(t.readTimeout))
	})

	pingStop := make(chan struct{})
	defer close(pingStop)
	go t.pingLoop(conn, pingStop)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-t.done:
				return closeTeardown
			default:
			}
			t.logger.Warn("chat connection lost", slog.String("error", err.Error()))
			return closeAbnormal
		}
		if ended := t.dispatch(data); ended {
			return closeEnded
		}
	}
}

func (t *Transport) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(t.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(t.writeTimeout)
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				return
			}
		}
	}
}

// dispatch handles one server frame. It returns true for stream_ended.
func (t *Transport) dispatch(data []byte) bool {
	var frame serverFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		t.emitError(errors.New("malformed chat frame"))
		return false
	}

	switch frame.Type {
	case TypeHistory:
		var msgs []Message
		if len(frame.Messages) > 0 {
			if err := json.Unmarshal(frame.Messages, &msgs); err != nil {
				t.emitError(errors.New("malformed history frame"))
				return false
			}
		}
		t.replaceHistory(msgs)

	case TypeMessage:
		var msg Message
		if err := json.Unmarshal(frame.Message, &msg); err != nil {
			t.emitError(errors.New("malformed message frame"))
			return false
		}
		t.appendMessage(msg)

	case TypeStreamEnded:
		t.mu.Lock()
		fn := t.cb.OnEnded
		t.mu.Unlock()
		if fn != nil {
			fn()
		}
		return true

	case TypeError:
		var msg string
		if err := json.Unmarshal(frame.Message, &msg); err != nil {
			msg = "chat server error"
		}
		t.emitError(errors.New(msg))
	}
	// unknown types ignored for forward compatibility
	return false
}

// replaceHistory swaps the local list wholesale for the server snapshot.
func (t *Transport) replaceHistory(msgs []Message) {
	t.mu.Lock()
	t.messages = append([]Message(nil), msgs...)
	t.seen = make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if m.ID != "" {
			t.seen[m.ID] = struct{}{}
		}
	}
	fn := t.cb.OnHistory
	snapshot := make([]Message, len(t.messages))
	copy(snapshot, t.messages)
	t.mu.Unlock()

	if fn != nil {
		fn(snapshot)
	}
}

// appendMessage adds one message in arrival order, trusting server-assigned
// ids for deduplication across reconnects.
func (t *Transport) appendMessage(msg Message) {
	t.mu.Lock()
	if msg.ID != "" {
		if _, dup := t.seen[msg.ID]; dup {
			t.mu.Unlock()
			return
		}
		t.seen[msg.ID] = struct{}{}
	}
	t.messages = append(t.messages, msg)
	fn := t.cb.OnMessage
	t.mu.Unlock()

	if fn != nil {
		fn(msg)
	}
}

func (t *Transport) emitError(err error) {
	t.mu.Lock()
	fn := t.cb.OnError
	t.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (t *Transport) setState(state State) {
	t.mu.Lock()
	if t.state == state {
		t.mu.Unlock()
		return
	}
	t.state = state
	fn := t.cb.OnStateChange
	t.mu.Unlock()

	if fn != nil {
		fn(state)
	}
}
