package crmchat

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/vovakirdan/crmchat-sdk-go/crmchat/internal"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Client owns the live socket of one chat room.
type Client struct {
	cfg        Config
	roomID     int64
	dispatcher Dispatcher

	logMu  sync.RWMutex
	logger Logger

	mu         sync.Mutex
	state      ConnectionState
	conn       *internal.Conn
	cancel     context.CancelFunc
	gen        uint64 // bumped on every dial and on Disconnect
	connID     string
	lastErr    error
	attempts   int
	backoff    *backoff.ExponentialBackOff
	delay      time.Duration
	timer      *time.Timer
	timerSeq   uint64
	userClosed bool
}

// NewClient constructs a client for roomID with provided config.
// Use DefaultConfig() as a starting point and modify as needed.
// Set a timeout to 0 to disable it.
func NewClient(cfg Config, roomID int64) *Client {
	def := DefaultConfig()
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = def.ReconnectInterval
	}
	if cfg.MaxReconnectDelay < cfg.ReconnectInterval {
		cfg.MaxReconnectDelay = cfg.ReconnectInterval
	}
	return &Client{
		cfg:     cfg,
		roomID:  roomID,
		logger:  noopLogger{},
		backoff: newBackoff(cfg),
	}
}

// SetLogger overrides logger (optional). It may be called while connected.
func (c *Client) SetLogger(l Logger) {
	if l == nil {
		return
	}
	c.logMu.Lock()
	c.logger = l
	c.logMu.Unlock()
}

func (c *Client) log() Logger {
	c.logMu.RLock()
	defer c.logMu.RUnlock()
	return c.logger
}

// SetToken replaces the token used by the next dial.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.cfg.Token = token
	c.mu.Unlock()
}

// OnMessage registers a callback for every decoded inbound frame.
func (c *Client) OnMessage(fn func(WireMessage)) { c.dispatcher.SetOnMessage(fn) }

// OnChatMessage registers callback for chat messages.
func (c *Client) OnChatMessage(fn func(WireMessage)) { c.dispatcher.SetOnChatMessage(fn) }

// OnTyping registers callback for typing indicators.
func (c *Client) OnTyping(fn func(WireMessage)) { c.dispatcher.SetOnTyping(fn) }

// OnUserJoined registers callback for join notifications.
func (c *Client) OnUserJoined(fn func(WireMessage)) { c.dispatcher.SetOnUserJoined(fn) }

// OnUserLeft registers callback for leave notifications.
func (c *Client) OnUserLeft(fn func(WireMessage)) { c.dispatcher.SetOnUserLeft(fn) }

// OnError registers callback for errors.
func (c *Client) OnError(fn func(error)) { c.dispatcher.SetOnError(fn) }

// OnStateChanged registers callback for connection state transitions.
func (c *Client) OnStateChanged(fn func(StateEvent)) { c.dispatcher.SetOnStateChanged(fn) }

// RoomID returns the room this client is bound to.
func (c *Client) RoomID() int64 { return c.roomID }

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the most recent connection error, nil after a successful open.
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Attempts returns the reconnect attempt counter.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// ReconnectPending reports whether a reconnect timer is scheduled.
func (c *Client) ReconnectPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}

// ReconnectDelay returns the delay of the most recently scheduled reconnect.
func (c *Client) ReconnectDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delay
}

// Connect opens the room socket. It is a no-op when the socket is already
// open or a dial is in flight. Without a usable token it fails before dialing.
// A failed dial is returned and also counts as an abnormal close, so a
// reconnect is scheduled when AutoReconnect is on.
func (c *Client) Connect(ctx context.Context) error {
	return c.dial(ctx, true)
}

// Disconnect cancels any pending reconnect and closes the socket with a
// normal closure. Calling it again is a no-op.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	c.userClosed = true
	c.stopTimerLocked()
	c.gen++
	conn, cancel := c.conn, c.cancel
	c.conn, c.cancel = nil, nil
	ev := c.setStateLocked(StateClosed, nil)
	connID := c.connID
	c.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close(websocket.StatusNormalClosure, "client disconnect")
		c.log().Info("disconnected", map[string]any{"room_id": c.roomID, "conn_id": connID})
	}
	if cancel != nil {
		cancel()
	}
	c.dispatcher.fireState(ev)
	return err
}

// Close is Disconnect for io.Closer users.
func (c *Client) Close() error {
	return c.Disconnect()
}

// Send transmits msg if the socket is open. Otherwise the message is dropped
// and a not_connected error is returned.
func (c *Client) Send(ctx context.Context, msg WireMessage) error {
	c.mu.Lock()
	conn, state, connID := c.conn, c.state, c.connID
	c.mu.Unlock()

	if state != StateOpen || conn == nil {
		c.log().Warn("dropping outbound message, socket not open", map[string]any{
			"room_id": c.roomID,
			"type":    string(msg.Type),
			"state":   state.String(),
		})
		return NewError(ErrorNotConnected, "socket not open")
	}

	if err := conn.Write(ctx, msg); err != nil {
		werr := WrapError(transportCode(err), "write failed", err)
		c.mu.Lock()
		c.lastErr = werr
		c.mu.Unlock()
		c.log().Warn("write failed", map[string]any{"room_id": c.roomID, "conn_id": connID, "error": err.Error()})
		return werr
	}
	return nil
}

// SendChatMessage posts content to the room.
func (c *Client) SendChatMessage(ctx context.Context, content string, opts ...ChatOption) error {
	return c.Send(ctx, NewChatMessage(c.roomID, content, opts...))
}

// SendTyping publishes the typing indicator.
func (c *Client) SendTyping(ctx context.Context, typing bool) error {
	return c.Send(ctx, NewTyping(c.roomID, typing))
}

// JoinRoom announces this participant in the room.
func (c *Client) JoinRoom(ctx context.Context) error {
	return c.Send(ctx, NewJoinRoom(c.roomID))
}

// LeaveRoom announces that this participant left the room.
func (c *Client) LeaveRoom(ctx context.Context) error {
	return c.Send(ctx, NewLeaveRoom(c.roomID))
}

func (c *Client) dial(ctx context.Context, manual bool) error {
	c.mu.Lock()
	if c.state == StateOpen || c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	if manual {
		c.userClosed = false
		c.stopTimerLocked()
	} else if c.userClosed {
		c.mu.Unlock()
		return nil
	}

	token := c.cfg.Token
	target, err := c.endpointLocked()
	if err != nil {
		c.lastErr = err
		ev := c.setStateLocked(StateError, err)
		c.mu.Unlock()
		c.log().Warn("connect refused", map[string]any{"room_id": c.roomID, "error": err.Error()})
		c.dispatcher.fireState(ev)
		c.dispatcher.fireError(err)
		return err
	}

	c.gen++
	gen := c.gen
	c.connID = uuid.NewString()
	connID := c.connID
	attempt := c.attempts
	ev := c.setStateLocked(StateConnecting, nil)
	c.mu.Unlock()
	c.dispatcher.fireState(ev)

	dialCtx := ctx
	if c.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
		defer cancel()
	}

	c.log().Debug("dialing", map[string]any{"room_id": c.roomID, "conn_id": connID, "attempt": attempt})
	ws, _, dialErr := websocket.Dial(dialCtx, target, nil)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		if dialErr == nil {
			_ = ws.Close(websocket.StatusNormalClosure, "client disconnect")
		}
		return NewError(ErrorDisconnected, "disconnected while connecting")
	}
	if dialErr != nil {
		// The transport error quotes the endpoint, token query included.
		dialErr = redactToken(dialErr, token)
		werr := WrapError(transportCode(dialErr), "dial failed", dialErr)
		c.lastErr = werr
		ev := c.scheduleReconnectLocked(werr)
		c.mu.Unlock()
		c.log().Warn("dial failed", map[string]any{"room_id": c.roomID, "conn_id": connID, "error": dialErr.Error()})
		c.dispatcher.fireState(ev)
		c.dispatcher.fireError(werr)
		return werr
	}

	conn := internal.NewConn(ws, c.cfg.ReadTimeout, c.cfg.WriteTimeout)
	runCtx, cancel := context.WithCancel(context.Background())
	c.conn = conn
	c.cancel = cancel
	c.attempts = 0
	c.backoff.Reset()
	c.lastErr = nil
	ev = c.setStateLocked(StateOpen, nil)
	c.mu.Unlock()

	c.log().Info("connected", map[string]any{"room_id": c.roomID, "conn_id": connID})
	c.dispatcher.fireState(ev)

	go c.readLoop(runCtx, gen, conn)
	return nil
}

func (c *Client) readLoop(ctx context.Context, gen uint64, conn *internal.Conn) {
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			c.handleClose(gen, err)
			return
		}
		if err := c.dispatcher.Dispatch(data); err != nil {
			c.log().Debug("discarding inbound frame", map[string]any{"room_id": c.roomID, "error": err.Error()})
		}
	}
}

// handleClose runs once per open socket, when its read side fails.
func (c *Client) handleClose(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen || c.state != StateOpen {
		c.mu.Unlock()
		return
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.conn = nil
	connID := c.connID

	code := websocket.CloseStatus(err)
	if code == websocket.StatusNormalClosure {
		ev := c.setStateLocked(StateIdle, nil)
		c.mu.Unlock()
		c.log().Info("socket closed by server", map[string]any{"room_id": c.roomID, "conn_id": connID})
		c.dispatcher.fireState(ev)
		return
	}
	if code == -1 {
		code = websocket.StatusAbnormalClosure
	}

	cerr := WrapError(ErrorDisconnected, fmt.Sprintf("socket closed abnormally (code %d)", code), err)
	c.lastErr = cerr
	ev := c.scheduleReconnectLocked(cerr)
	c.mu.Unlock()

	c.log().Warn("socket closed", map[string]any{"room_id": c.roomID, "conn_id": connID, "code": int(code)})
	c.dispatcher.fireState(ev)
	c.dispatcher.fireError(cerr)
}

func (c *Client) endpointLocked() (string, error) {
	if c.cfg.Token == "" {
		return "", NewError(ErrorUnauthorized, "auth token required")
	}
	if tokenExpired(c.cfg.Token, time.Now()) {
		return "", NewError(ErrorUnauthorized, "auth token expired")
	}
	return EndpointURL(c.cfg.URL, c.roomID, c.cfg.Token)
}

// setStateLocked records a transition and returns the event to publish once
// the lock is released, or nil if the state did not change.
func (c *Client) setStateLocked(s ConnectionState, cause error) *StateEvent {
	if c.state == s {
		return nil
	}
	ev := &StateEvent{
		RoomID:   c.roomID,
		ConnID:   c.connID,
		OldState: c.state,
		NewState: s,
		Attempt:  c.attempts,
		Error:    cause,
	}
	c.state = s
	return ev
}

// transportCode classifies a dial or write failure.
func transportCode(err error) ErrorCode {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout
	}
	return ErrorConnection
}

// redactedError hides the token in a transport error's text. It matches the
// original chain through Is but does not expose it to errors.As.
type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }

func (e *redactedError) Is(target error) bool { return errors.Is(e.err, target) }

func redactToken(err error, token string) error {
	if err == nil || token == "" {
		return err
	}
	msg := err.Error()
	red := strings.ReplaceAll(msg, token, "REDACTED")
	if esc := url.QueryEscape(token); esc != token {
		red = strings.ReplaceAll(red, esc, "REDACTED")
	}
	if red == msg {
		return err
	}
	return &redactedError{msg: red, err: err}
}
