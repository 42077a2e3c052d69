package relay

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/attunefm/attune/internal/models"
	"github.com/attunefm/attune/internal/protocol"
	"github.com/attunefm/attune/internal/shared"
)

// Server is the websocket relay. It implements [server.Handler] so it can be
// mounted on the shared router.
type Server struct {
	cfg          shared.RelayConfig
	logger       *log.Logger
	upgrader     websocket.Upgrader
	writeTimeout time.Duration

	mu    sync.RWMutex
	rooms map[string]*room
}

// New creates a relay server from the given configuration.
func New(cfg shared.RelayConfig, logger *log.Logger) *Server {
	writeTimeout := time.Duration(cfg.WriteTimeoutSecs) * time.Second
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Server{
		cfg:    cfg,
		logger: shared.WithLogger(logger, "component", "relay"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Clients are native apps, not browsers; origin checks do not apply.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		writeTimeout: writeTimeout,
		rooms:        map[string]*room{},
	}
}

// Routes returns the HTTP routes the relay serves.
func (s *Server) Routes() []string {
	return []string{"/ws", "/healthz"}
}

// ServeHTTP dispatches to the websocket upgrade or the health endpoint.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/healthz":
		s.mu.RLock()
		count := len(s.rooms)
		s.mu.RUnlock()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"status": "ok", "rooms": count})
	case "/ws":
		s.handleWS(w, r)
	default:
		http.NotFound(w, r)
	}
}

// RoomCount reports the number of open rooms.
func (s *Server) RoomCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	burst := s.cfg.MessageBurst
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(s.cfg.MessagesPerSec)
	if limit <= 0 {
		limit = rate.Inf
	}

	c := &client{
		srv:     s,
		conn:    conn,
		limiter: rate.NewLimiter(limit, burst),
	}
	s.serveConn(c)
}

// serveConn runs the per-connection read loop until the peer goes away.
func (s *Server) serveConn(c *client) {
	defer s.dropClient(c)

	for {
		var msg protocol.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		if !c.limiter.Allow() {
			c.sendError("", protocol.CodeRateLimited, "message rate exceeded")
			continue
		}
		s.route(c, msg)
	}
}

func (s *Server) route(c *client, msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeCreateRoom:
		s.handleCreateRoom(c, msg)
	case protocol.TypeJoinRequest:
		s.handleJoinRequest(c, msg)
	case protocol.TypeJoinDecision:
		s.handleJoinDecision(c, msg)
	case protocol.TypeStateSync, protocol.TypeSuggestionDecision:
		s.forwardToGuests(c, msg)
	case protocol.TypeResyncRequest, protocol.TypeSuggestSong:
		s.forwardToHost(c, msg)
	case protocol.TypeLeave:
		s.handleLeave(c)
	case protocol.TypeEndSession:
		s.handleEndSession(c)
	default:
		c.sendError(msg.Room, protocol.CodeBadMessage, "unsupported message type: "+msg.Type)
	}
}

func (s *Server) handleCreateRoom(c *client, msg protocol.Message) {
	if c.currentRoom() != nil {
		c.sendError("", protocol.CodeBadMessage, "connection already belongs to a room")
		return
	}
	var payload protocol.CreateRoomPayload
	if err := msg.DecodePayload(&payload); err != nil {
		c.sendError("", protocol.CodeBadMessage, err.Error())
		return
	}

	userID := shared.GenerateID()
	rm := newRoom("", userID, payload.Username, c)

	s.mu.Lock()
	for {
		code := shared.GenerateRoomCode()
		if _, taken := s.rooms[code]; !taken {
			rm.code = code
			s.rooms[code] = rm
			break
		}
	}
	s.mu.Unlock()

	c.setMembership(rm, models.RoleHost, userID, payload.Username)
	s.logger.Info("room created", "room", rm.code, "host", userID)
	c.reply(protocol.TypeRoomCreated, rm.code, protocol.RoomCreatedPayload{RoomCode: rm.code, UserID: userID})
}

func (s *Server) handleJoinRequest(c *client, msg protocol.Message) {
	if c.currentRoom() != nil {
		c.sendError("", protocol.CodeBadMessage, "connection already belongs to a room")
		return
	}
	var payload protocol.JoinRequestPayload
	if err := msg.DecodePayload(&payload); err != nil {
		c.sendError("", protocol.CodeBadMessage, err.Error())
		return
	}
	code, err := shared.NormalizeRoomCode(payload.RoomCode)
	if err != nil {
		c.sendError("", protocol.CodeRoomNotFound, err.Error())
		return
	}

	s.mu.RLock()
	rm := s.rooms[code]
	s.mu.RUnlock()
	if rm == nil {
		c.sendError(code, protocol.CodeRoomNotFound, "no such room")
		return
	}

	rm.mu.Lock()
	if rm.closed {
		rm.mu.Unlock()
		c.sendError(code, protocol.CodeRoomNotFound, "room has ended")
		return
	}

	// A host reconnecting within the grace window reclaims its seat by
	// presenting its original user ID.
	if msg.From != "" && msg.From == rm.hostID && rm.host == nil {
		rm.host = c
		if rm.grace != nil {
			rm.grace.Stop()
			rm.grace = nil
		}
		if payload.Username != "" {
			rm.hostName = payload.Username
		}
		hostID, hostName := rm.hostID, rm.hostName
		snap := rm.snapshotLocked()
		targets := rm.membersLocked(false)
		parts := rm.participantsLocked()
		rm.mu.Unlock()

		c.setMembership(rm, models.RoleHost, hostID, hostName)
		s.logger.Info("host reclaimed room", "room", code, "host", hostID)
		c.reply(protocol.TypeJoinResult, code, protocol.JoinResultPayload{Approved: true, UserID: hostID, Room: snap})
		s.broadcastParticipants(code, targets, parts)
		return
	}

	if s.cfg.MaxRoomSize > 0 && len(rm.guests)+1 >= s.cfg.MaxRoomSize {
		rm.mu.Unlock()
		c.sendError(code, protocol.CodeRoomFull, "room is full")
		return
	}
	if rm.host == nil {
		rm.mu.Unlock()
		c.reply(protocol.TypeJoinResult, code, protocol.JoinResultPayload{Approved: false, Reason: "host unavailable"})
		return
	}

	userID := shared.GenerateID()
	rm.pending[userID] = c
	host := rm.host
	rm.mu.Unlock()

	c.setMembership(rm, "", userID, payload.Username)

	fwd, err := protocol.New(protocol.TypeJoinRequested, code, userID,
		protocol.JoinRequestedPayload{UserID: userID, DisplayName: payload.Username})
	if err != nil {
		s.logger.Error("failed to encode join_requested", "err", err)
		return
	}
	s.logger.Info("join requested", "room", code, "user", userID)
	host.send(fwd)
}

func (s *Server) handleJoinDecision(c *client, msg protocol.Message) {
	rm, role, _ := c.membership()
	if rm == nil || role != models.RoleHost {
		c.sendError(msg.Room, protocol.CodeNotHost, "join decisions are host only")
		return
	}
	var payload protocol.JoinDecisionPayload
	if err := msg.DecodePayload(&payload); err != nil {
		c.sendError(rm.code, protocol.CodeBadMessage, err.Error())
		return
	}

	rm.mu.Lock()
	req := rm.pending[payload.UserID]
	delete(rm.pending, payload.UserID)
	var snap models.Room
	var targets []*client
	var parts []models.Participant
	if req != nil && payload.Approve {
		rm.guests[payload.UserID] = req
		snap = rm.snapshotLocked()
		targets = rm.membersLocked(false)
		parts = rm.participantsLocked()
	}
	rm.mu.Unlock()

	if req == nil {
		// Requester disconnected while pending.
		return
	}
	if !payload.Approve {
		req.clearMembership()
		req.reply(protocol.TypeJoinResult, rm.code, protocol.JoinResultPayload{Approved: false, Reason: "rejected by host"})
		return
	}

	req.setRole(models.RoleGuest)
	s.logger.Info("guest admitted", "room", rm.code, "user", payload.UserID)
	req.reply(protocol.TypeJoinResult, rm.code, protocol.JoinResultPayload{Approved: true, UserID: payload.UserID, Room: snap})
	s.broadcastParticipants(rm.code, targets, parts)
}

// forwardToGuests relays a host message to every admitted guest.
func (s *Server) forwardToGuests(c *client, msg protocol.Message) {
	rm, role, userID := c.membership()
	if rm == nil || role != models.RoleHost {
		c.sendError(msg.Room, protocol.CodeNotHost, msg.Type+" is host only")
		return
	}

	msg.From = userID
	msg.Room = rm.code

	rm.mu.Lock()
	targets := rm.guestsLocked()
	rm.mu.Unlock()
	for _, g := range targets {
		g.send(msg)
	}
}

// forwardToHost relays a guest message up to the room's host.
func (s *Server) forwardToHost(c *client, msg protocol.Message) {
	rm, role, userID := c.membership()
	if rm == nil || role != models.RoleGuest {
		c.sendError(msg.Room, protocol.CodeBadMessage, msg.Type+" requires guest membership")
		return
	}

	rm.mu.Lock()
	host := rm.host
	rm.mu.Unlock()
	if host == nil {
		c.sendError(rm.code, protocol.CodeBadMessage, "host unavailable")
		return
	}

	msg.From = userID
	msg.Room = rm.code
	host.send(msg)
}

func (s *Server) handleLeave(c *client) {
	rm, role, userID := c.membership()
	if rm == nil {
		return
	}
	c.clearMembership()

	if role == models.RoleHost {
		s.logger.Info("host left, closing room", "room", rm.code)
		s.closeRoom(rm)
		return
	}

	rm.mu.Lock()
	delete(rm.guests, userID)
	delete(rm.pending, userID)
	targets := rm.membersLocked(false)
	parts := rm.participantsLocked()
	rm.mu.Unlock()

	s.logger.Info("participant left", "room", rm.code, "user", userID)
	s.broadcastParticipants(rm.code, targets, parts)
}

func (s *Server) handleEndSession(c *client) {
	rm, role, _ := c.membership()
	if rm == nil || role != models.RoleHost {
		c.sendError("", protocol.CodeNotHost, "only the host can end the session")
		return
	}
	c.clearMembership()
	s.logger.Info("session ended by host", "room", rm.code)
	s.closeRoom(rm)
}

// dropClient cleans up after a connection's read loop exits. A dropped host
// leaves the room in a grace window so it can reconnect and reclaim it.
func (s *Server) dropClient(c *client) {
	c.conn.Close()

	rm, role, userID := c.membership()
	if rm == nil {
		return
	}
	c.clearMembership()

	rm.mu.Lock()
	if rm.closed {
		rm.mu.Unlock()
		return
	}

	switch {
	case rm.host == c:
		rm.host = nil
		grace := time.Duration(s.cfg.HostGraceSecs) * time.Second
		if grace <= 0 {
			rm.mu.Unlock()
			s.closeRoom(rm)
			return
		}
		rm.grace = time.AfterFunc(grace, func() { s.expireRoom(rm) })
		rm.mu.Unlock()
		s.logger.Info("host disconnected, holding room", "room", rm.code, "grace", grace)

	case rm.guests[userID] == c && role == models.RoleGuest:
		delete(rm.guests, userID)
		targets := rm.membersLocked(false)
		parts := rm.participantsLocked()
		rm.mu.Unlock()
		s.logger.Info("guest disconnected", "room", rm.code, "user", userID)
		s.broadcastParticipants(rm.code, targets, parts)

	default:
		delete(rm.pending, userID)
		rm.mu.Unlock()
	}
}

// expireRoom fires when the host grace window lapses without a reconnect.
func (s *Server) expireRoom(rm *room) {
	rm.mu.Lock()
	if rm.closed || rm.host != nil {
		rm.mu.Unlock()
		return
	}
	rm.mu.Unlock()

	s.logger.Info("host grace window expired", "room", rm.code)
	s.closeRoom(rm)
}

// closeRoom tears a room down and notifies everyone still attached.
func (s *Server) closeRoom(rm *room) {
	s.mu.Lock()
	delete(s.rooms, rm.code)
	s.mu.Unlock()

	rm.mu.Lock()
	if rm.closed {
		rm.mu.Unlock()
		return
	}
	rm.closed = true
	if rm.grace != nil {
		rm.grace.Stop()
		rm.grace = nil
	}
	targets := rm.membersLocked(true)
	rm.mu.Unlock()

	msg, err := protocol.New(protocol.TypeEndSession, rm.code, rm.hostID, nil)
	if err != nil {
		s.logger.Error("failed to encode end_session", "err", err)
		return
	}
	for _, t := range targets {
		t.send(msg)
	}
}

func (s *Server) broadcastParticipants(code string, targets []*client, parts []models.Participant) {
	msg, err := protocol.New(protocol.TypeParticipants, code, "", protocol.ParticipantsPayload{Participants: parts})
	if err != nil {
		s.logger.Error("failed to encode participants", "err", err)
		return
	}
	for _, t := range targets {
		t.send(msg)
	}
}
