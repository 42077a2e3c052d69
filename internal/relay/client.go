package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/attunefm/attune/internal/models"
	"github.com/attunefm/attune/internal/protocol"
)

// client is one websocket connection attached to the relay. Reads happen on
// a single goroutine per connection; membership fields are guarded because
// the host's goroutine promotes pending requesters.
type client struct {
	srv     *Server
	conn    *websocket.Conn
	limiter *rate.Limiter

	writeMu sync.Mutex

	mu     sync.Mutex
	userID string
	name   string
	role   models.Role // empty while pending host approval
	room   *room
}

func (c *client) membership() (*room, models.Role, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room, c.role, c.userID
}

func (c *client) identity() (userID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID, c.name
}

func (c *client) setMembership(rm *room, role models.Role, userID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.room = rm
	c.role = role
	c.userID = userID
	c.name = name
}

func (c *client) setRole(role models.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.role = role
}

func (c *client) clearMembership() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.room = nil
	c.role = ""
}

// currentRoom resolves the client's room, detaching it if the room has been
// torn down since the last message.
func (c *client) currentRoom() *room {
	rm, _, _ := c.membership()
	if rm == nil {
		return nil
	}
	if rm.isClosed() {
		c.clearMembership()
		return nil
	}
	return rm
}

// send writes a message with the configured deadline. Safe for concurrent
// use; gorilla connections allow one writer at a time.
func (c *client) send(msg protocol.Message) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.srv.writeTimeout))
	if err := c.conn.WriteJSON(msg); err != nil {
		c.srv.logger.Debug("write failed", "remote", c.conn.RemoteAddr(), "err", err)
	}
}

// reply encodes a payload and sends it back on this connection.
func (c *client) reply(msgType, roomCode string, payload any) {
	msg, err := protocol.New(msgType, roomCode, "", payload)
	if err != nil {
		c.srv.logger.Error("failed to encode reply", "type", msgType, "err", err)
		return
	}
	c.send(msg)
}

// sendError reports a protocol-level failure without closing the connection.
func (c *client) sendError(roomCode, code, message string) {
	c.reply(protocol.TypeError, roomCode, protocol.ErrorPayload{Code: code, Message: message})
}
