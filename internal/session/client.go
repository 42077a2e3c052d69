package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/attunefm/attune/internal/models"
	"github.com/attunefm/attune/internal/protocol"
	"github.com/attunefm/attune/internal/shared"
)

// ConnState is the relay connection state machine position.
type ConnState string

const (
	StateDisconnected    ConnState = "disconnected"
	StateConnecting      ConnState = "connecting"
	StateWaitingApproval ConnState = "waiting_approval"
	StateConnected       ConnState = "connected"
	StateReconnecting    ConnState = "reconnecting"
	StateError           ConnState = "error"
)

// Client maintains a single websocket connection to the relay.
//
// At most one room membership is outstanding at a time; Host and Join fail
// with [shared.ErrAlreadyConnected] while a session is active.
type Client struct {
	cfg    shared.SessionConfig
	logger *log.Logger
	dialer *websocket.Dialer

	writeMu sync.Mutex

	mu       sync.Mutex
	state    ConnState
	lastErr  error
	conn     *websocket.Conn
	roomCode string
	userID   string
	username string
	role     models.Role
	room     models.Room
	closing  bool
	cancel   context.CancelFunc // aborts a pending join wait or backoff sleep

	inbox   chan protocol.Message
	stateCh chan ConnState
}

// NewClient creates a relay client from session configuration.
func NewClient(cfg shared.SessionConfig, logger *log.Logger) *Client {
	return &Client{
		cfg:     cfg,
		logger:  shared.WithLogger(logger, "component", "session"),
		dialer:  websocket.DefaultDialer,
		state:   StateDisconnected,
		inbox:   make(chan protocol.Message, 32),
		stateCh: make(chan ConnState, 8),
	}
}

// Messages returns the stream of relay messages not consumed by the client
// itself (state syncs, join requests, suggestions, participants updates).
func (c *Client) Messages() <-chan protocol.Message {
	return c.inbox
}

// StateChanges returns connection state transitions. The channel is buffered
// and never blocks the client; slow consumers miss intermediate states.
func (c *Client) StateChanges() <-chan ConnState {
	return c.stateCh
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error that ended the last session, if any. A clean
// disconnect leaves it nil.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Role returns the client's role in the current room.
func (c *Client) Role() models.Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

// UserID returns the relay-assigned user ID for the current session.
func (c *Client) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Room returns the last known room view.
func (c *Client) Room() models.Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *Client) setState(st ConnState) {
	c.mu.Lock()
	c.state = st
	c.mu.Unlock()
	select {
	case c.stateCh <- st:
	default:
	}
}

// Host creates a new room with this client as its host.
func (c *Client) Host(ctx context.Context, username string) (models.Room, error) {
	if err := c.begin(ctx, username); err != nil {
		return models.Room{}, err
	}

	conn, err := c.dial(ctx)
	if err != nil {
		c.fail(err)
		return models.Room{}, err
	}

	msg, err := protocol.New(protocol.TypeCreateRoom, "", "", protocol.CreateRoomPayload{Username: username})
	if err != nil {
		conn.Close()
		c.fail(err)
		return models.Room{}, err
	}
	if err := c.writeConn(conn, msg); err != nil {
		conn.Close()
		c.fail(err)
		return models.Room{}, err
	}

	reply, err := c.await(ctx, conn, protocol.TypeRoomCreated)
	if err != nil {
		conn.Close()
		c.fail(err)
		return models.Room{}, err
	}
	var payload protocol.RoomCreatedPayload
	if err := reply.DecodePayload(&payload); err != nil {
		conn.Close()
		c.fail(err)
		return models.Room{}, err
	}

	room := models.Room{
		Code:       payload.RoomCode,
		HostUserID: payload.UserID,
		Participants: []models.Participant{
			{UserID: payload.UserID, DisplayName: username, Role: models.RoleHost},
		},
	}
	c.attach(conn, room, payload.RoomCode, payload.UserID, models.RoleHost)
	c.logger.Info("hosting room", "room", payload.RoomCode)
	return room, nil
}

// Join asks to enter an existing room and blocks until the host decides or
// ctx is cancelled. Cancelling while pending returns
// [shared.ErrJoinCancelled] and withdraws the request.
func (c *Client) Join(ctx context.Context, roomCode, username string) (models.Room, error) {
	code, err := shared.NormalizeRoomCode(roomCode)
	if err != nil {
		return models.Room{}, err
	}
	if err := c.begin(ctx, username); err != nil {
		return models.Room{}, err
	}

	conn, err := c.dial(ctx)
	if err != nil {
		c.fail(err)
		return models.Room{}, err
	}

	room, userID, err := c.joinHandshake(ctx, conn, code, "", username)
	if err != nil {
		conn.Close()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", shared.ErrJoinCancelled, err)
		}
		c.fail(err)
		return models.Room{}, err
	}

	c.attach(conn, room, code, userID, models.RoleGuest)
	c.logger.Info("joined room", "room", code, "user", userID)
	return room, nil
}

// begin claims the single membership slot and resets per-session state.
func (c *Client) begin(ctx context.Context, username string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateDisconnected, StateError:
	default:
		return shared.ErrAlreadyConnected
	}
	c.state = StateConnecting
	c.lastErr = nil
	c.closing = false
	c.username = username
	return nil
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	c.setState(StateDisconnected)
}

// attach installs an established connection and starts the read loop.
func (c *Client) attach(conn *websocket.Conn, room models.Room, code, userID string, role models.Role) {
	c.mu.Lock()
	c.conn = conn
	c.room = room
	c.roomCode = code
	c.userID = userID
	c.role = role
	c.mu.Unlock()
	c.setState(StateConnected)
	go c.readLoop(conn)
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx := ctx
	if timeout := time.Duration(c.cfg.DialTimeoutMillis) * time.Millisecond; timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	conn, _, err := c.dialer.DialContext(dialCtx, c.cfg.RelayURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial relay %s: %w", c.cfg.RelayURL, err)
	}
	return conn, nil
}

// joinHandshake sends join_request and waits for the verdict. A non-empty
// asUser reclaims an existing seat, which the relay honors for hosts
// reconnecting within the grace window.
func (c *Client) joinHandshake(ctx context.Context, conn *websocket.Conn, code, asUser, username string) (models.Room, string, error) {
	msg, err := protocol.New(protocol.TypeJoinRequest, "", asUser, protocol.JoinRequestPayload{RoomCode: code, Username: username})
	if err != nil {
		return models.Room{}, "", err
	}
	if err := c.writeConn(conn, msg); err != nil {
		return models.Room{}, "", err
	}
	c.setState(StateWaitingApproval)

	reply, err := c.await(ctx, conn, protocol.TypeJoinResult)
	if err != nil {
		return models.Room{}, "", err
	}
	var payload protocol.JoinResultPayload
	if err := reply.DecodePayload(&payload); err != nil {
		return models.Room{}, "", err
	}
	if !payload.Approved {
		return models.Room{}, "", fmt.Errorf("%w: %s", shared.ErrJoinRejected, payload.Reason)
	}
	return payload.Room, payload.UserID, nil
}

// await reads until a message of the wanted type arrives. Protocol errors
// terminate the wait; ctx cancellation closes the connection to unblock the
// read.
func (c *Client) await(ctx context.Context, conn *websocket.Conn, msgType string) (protocol.Message, error) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		var msg protocol.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return protocol.Message{}, ctx.Err()
			}
			return protocol.Message{}, fmt.Errorf("%w: %v", shared.ErrConnectionLost, err)
		}
		switch msg.Type {
		case msgType:
			return msg, nil
		case protocol.TypeError:
			var payload protocol.ErrorPayload
			if err := msg.DecodePayload(&payload); err != nil {
				return protocol.Message{}, err
			}
			return protocol.Message{}, relayError(payload)
		}
	}
}

// relayError maps protocol error codes onto the shared sentinels.
func relayError(payload protocol.ErrorPayload) error {
	switch payload.Code {
	case protocol.CodeRoomNotFound:
		return fmt.Errorf("%w: %s", shared.ErrRoomNotFound, payload.Message)
	case protocol.CodeRoomFull:
		return fmt.Errorf("%w: %s", shared.ErrJoinRejected, payload.Message)
	case protocol.CodeNotHost:
		return fmt.Errorf("%w: %s", shared.ErrNotHost, payload.Message)
	default:
		return fmt.Errorf("relay error %s: %s", payload.Code, payload.Message)
	}
}

// Send publishes a message into the current room.
func (c *Client) Send(msgType string, payload any) error {
	c.mu.Lock()
	conn, code, user, st := c.conn, c.roomCode, c.userID, c.state
	c.mu.Unlock()
	if st != StateConnected || conn == nil {
		return shared.ErrNotConnected
	}

	msg, err := protocol.New(msgType, code, user, payload)
	if err != nil {
		return err
	}
	return c.writeConn(conn, msg)
}

func (c *Client) writeConn(conn *websocket.Conn, msg protocol.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

// Leave withdraws from the current room and stops any reconnect attempt.
func (c *Client) Leave() error {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return shared.ErrNotConnected
	}
	c.closing = true
	conn := c.conn
	c.conn = nil
	c.role = ""
	c.room = models.Room{}
	c.roomCode = ""
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	userID := c.userID
	c.mu.Unlock()

	if conn != nil {
		if msg, err := protocol.New(protocol.TypeLeave, "", userID, protocol.LeavePayload{UserID: userID}); err == nil {
			c.writeConn(conn, msg)
		}
		conn.Close()
	}
	c.setState(StateDisconnected)
	return nil
}

// Close releases the client, ignoring whether a session was active.
func (c *Client) Close() {
	c.Leave()
}

// readLoop pumps relay messages into the inbox until the connection drops.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var msg protocol.Message
		if err := conn.ReadJSON(&msg); err != nil {
			c.handleDisconnect(conn, err)
			return
		}

		if msg.Type == protocol.TypeParticipants {
			var payload protocol.ParticipantsPayload
			if err := msg.DecodePayload(&payload); err == nil {
				c.mu.Lock()
				c.room.Participants = payload.Participants
				c.mu.Unlock()
			}
		}

		c.deliver(msg)

		if msg.Type == protocol.TypeEndSession {
			c.handleRoomClosed(conn)
			return
		}
	}
}

func (c *Client) deliver(msg protocol.Message) {
	select {
	case c.inbox <- msg:
	default:
		c.logger.Warn("inbox full, dropping message", "type", msg.Type)
	}
}

// handleRoomClosed ends the session without reconnecting; the room is gone.
func (c *Client) handleRoomClosed(conn *websocket.Conn) {
	conn.Close()
	c.mu.Lock()
	c.conn = nil
	c.role = ""
	c.roomCode = ""
	c.room = models.Room{}
	c.lastErr = shared.ErrRoomClosed
	c.mu.Unlock()
	c.setState(StateDisconnected)
	c.logger.Info("room closed by host")
}

func (c *Client) handleDisconnect(conn *websocket.Conn, err error) {
	conn.Close()

	c.mu.Lock()
	if c.closing || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	c.logger.Warn("relay connection lost, reconnecting", "err", err)
	c.setState(StateReconnecting)
	go c.reconnect(ctx)
}

// reconnect retries the relay with capped exponential backoff, preserving
// the room code, user ID, and role from the dropped session.
func (c *Client) reconnect(ctx context.Context) {
	c.mu.Lock()
	code, userID, username := c.roomCode, c.userID, c.username
	c.mu.Unlock()

	backoff := time.Duration(c.cfg.BackoffBaseMillis) * time.Millisecond
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	maxBackoff := time.Duration(c.cfg.BackoffCapMillis) * time.Millisecond
	attempts := c.cfg.ReconnectAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error = shared.ErrConnectionLost
	for attempt := 1; attempt <= attempts; attempt++ {
		select {
		case <-ctx.Done():
			c.setState(StateDisconnected)
			return
		case <-time.After(backoff):
		}

		conn, err := c.dial(ctx)
		if err == nil {
			room, uid, herr := c.joinHandshake(ctx, conn, code, userID, username)
			if herr == nil {
				role := models.RoleGuest
				if uid == userID && room.HostUserID == uid {
					role = models.RoleHost
				}
				c.attach(conn, room, code, uid, role)
				c.logger.Info("reconnected", "room", code, "attempt", attempt)
				return
			}
			conn.Close()
			err = herr
		}
		lastErr = err
		if errors.Is(err, shared.ErrRoomNotFound) || errors.Is(err, shared.ErrJoinRejected) {
			// The room is gone or the host turned us away; retrying is futile.
			break
		}

		c.logger.Debug("reconnect attempt failed", "attempt", attempt, "backoff", backoff, "err", err)
		backoff *= 2
		if maxBackoff > 0 && backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	// Out of attempts; the connection settles disconnected with the failure
	// available through Err.
	c.mu.Lock()
	c.lastErr = fmt.Errorf("%w: %v", shared.ErrConnectionLost, lastErr)
	c.mu.Unlock()
	c.setState(StateDisconnected)
}
