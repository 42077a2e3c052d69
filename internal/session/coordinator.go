package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/attunefm/attune/internal/engine"
	"github.com/attunefm/attune/internal/models"
	"github.com/attunefm/attune/internal/protocol"
	"github.com/attunefm/attune/internal/queue"
	"github.com/attunefm/attune/internal/shared"
)

// syncInterval is the slow periodic re-broadcast that keeps guest positions
// from drifting between transport events.
const syncInterval = 5 * time.Second

// Coordinator arbitrates roles between the local transport engine and a
// listen-together session. Outside a session every command passes straight
// through to the engine.
type Coordinator struct {
	logger *log.Logger
	eng    *engine.Engine
	client *Client

	mu          sync.Mutex
	role        models.Role
	seq         uint64 // host: last broadcast; guest: last applied
	shadowQueue models.QueueSnapshot
	shadowState models.PlaybackState
	suggestions map[string]models.Suggestion
	joinReqs    map[string]models.JoinRequest
	stop        context.CancelFunc
}

// NewCoordinator wires a coordinator between an engine and a relay client.
func NewCoordinator(eng *engine.Engine, client *Client, logger *log.Logger) *Coordinator {
	return &Coordinator{
		logger:      shared.WithLogger(logger, "component", "coordinator"),
		eng:         eng,
		client:      client,
		suggestions: map[string]models.Suggestion{},
		joinReqs:    map[string]models.JoinRequest{},
	}
}

// Role returns the local role; empty outside a session.
func (co *Coordinator) Role() models.Role {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.role
}

func (co *Coordinator) isGuest() bool {
	return co.Role() == models.RoleGuest
}

// HostSession creates a room and starts broadcasting engine state to guests.
func (co *Coordinator) HostSession(ctx context.Context, username string) (models.Room, error) {
	room, err := co.client.Host(ctx, username)
	if err != nil {
		return models.Room{}, err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	co.mu.Lock()
	co.role = models.RoleHost
	co.seq = 0
	co.stop = cancel
	co.mu.Unlock()

	go co.runHost(loopCtx)
	co.broadcastState()
	return room, nil
}

// JoinSession enters a room as a guest and starts shadowing the host state.
func (co *Coordinator) JoinSession(ctx context.Context, roomCode, username string) (models.Room, error) {
	room, err := co.client.Join(ctx, roomCode, username)
	if err != nil {
		return models.Room{}, err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	co.mu.Lock()
	co.role = models.RoleGuest
	co.seq = 0
	co.shadowQueue = models.QueueSnapshot{CurrentIndex: -1}
	co.shadowState = models.PlaybackState{}
	co.stop = cancel
	co.mu.Unlock()

	// Pause local playback; the host's stream is authoritative now.
	if st := co.eng.State(); st.IsPlaying {
		co.eng.TogglePlayPause()
	}

	go co.runGuest(loopCtx)
	co.requestResync()
	return room, nil
}

// LeaveSession withdraws from the current room and restores solo control.
func (co *Coordinator) LeaveSession() error {
	co.reset()
	return co.client.Leave()
}

// EndSession closes the room for everyone. Host only.
func (co *Coordinator) EndSession() error {
	if co.Role() != models.RoleHost {
		return shared.ErrNotHost
	}
	if err := co.client.Send(protocol.TypeEndSession, nil); err != nil {
		return err
	}
	co.reset()
	return co.client.Leave()
}

func (co *Coordinator) reset() {
	co.mu.Lock()
	co.role = ""
	co.suggestions = map[string]models.Suggestion{}
	co.joinReqs = map[string]models.JoinRequest{}
	if co.stop != nil {
		co.stop()
		co.stop = nil
	}
	co.mu.Unlock()
}

// ── Transport command surface ───────────────────────────────────────────

// Guests have no transport authority; every mutating command fails with
// [shared.ErrGuestCommand] before reaching the engine.

func (co *Coordinator) Load(tracks []models.Track, startIndex int, shuffle bool) error {
	if co.isGuest() {
		return shared.ErrGuestCommand
	}
	return co.eng.Load(tracks, startIndex, shuffle)
}

func (co *Coordinator) PlayNext() (queue.Outcome, error) {
	if co.isGuest() {
		return queue.OutcomeEmpty, shared.ErrGuestCommand
	}
	return co.eng.PlayNext()
}

func (co *Coordinator) PlayPrevious() (queue.Outcome, error) {
	if co.isGuest() {
		return queue.OutcomeEmpty, shared.ErrGuestCommand
	}
	return co.eng.PlayPrevious()
}

func (co *Coordinator) PlayFrom(index int) error {
	if co.isGuest() {
		return shared.ErrGuestCommand
	}
	return co.eng.PlayFrom(index)
}

func (co *Coordinator) TogglePlayPause() (bool, error) {
	if co.isGuest() {
		return false, shared.ErrGuestCommand
	}
	return co.eng.TogglePlayPause()
}

func (co *Coordinator) Seek(pos time.Duration) error {
	if co.isGuest() {
		return shared.ErrGuestCommand
	}
	return co.eng.Seek(pos)
}

func (co *Coordinator) SetLoopMode(mode models.LoopMode) error {
	if co.isGuest() {
		return shared.ErrGuestCommand
	}
	co.eng.SetLoopMode(mode)
	return nil
}

func (co *Coordinator) InsertNext(track models.Track) error {
	if co.isGuest() {
		return shared.ErrGuestCommand
	}
	co.eng.InsertNext(track)
	return nil
}

func (co *Coordinator) Append(track models.Track) error {
	if co.isGuest() {
		return shared.ErrGuestCommand
	}
	co.eng.Append(track)
	return nil
}

func (co *Coordinator) Move(from, to int) error {
	if co.isGuest() {
		return shared.ErrGuestCommand
	}
	return co.eng.Move(from, to)
}

func (co *Coordinator) Remove(index int) error {
	if co.isGuest() {
		return shared.ErrGuestCommand
	}
	return co.eng.Remove(index)
}

// Suggest proposes a track. Guests send it to the host; a host or solo
// listener just appends it locally.
func (co *Coordinator) Suggest(track models.Track) error {
	if co.isGuest() {
		return co.client.Send(protocol.TypeSuggestSong, protocol.SuggestSongPayload{Track: track})
	}
	co.eng.Append(track)
	return nil
}

// Snapshot returns the effective queue and playback state for display: the
// engine's for hosts and solo listeners, the shadow copy for guests.
func (co *Coordinator) Snapshot() (models.QueueSnapshot, models.PlaybackState) {
	if co.isGuest() {
		co.mu.Lock()
		defer co.mu.Unlock()
		return co.shadowQueue, co.shadowState
	}
	return co.eng.Snapshot()
}

// LastSequence returns the most recent sequence number seen or sent.
func (co *Coordinator) LastSequence() uint64 {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.seq
}

// ── Host side ───────────────────────────────────────────────────────────

// PendingJoinRequests lists join requests awaiting a decision, oldest first
// by user ID for stable display.
func (co *Coordinator) PendingJoinRequests() []models.JoinRequest {
	co.mu.Lock()
	defer co.mu.Unlock()
	out := make([]models.JoinRequest, 0, len(co.joinReqs))
	for _, r := range co.joinReqs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// DecideJoin resolves a pending join request. Host only; there is no
// auto-accept.
func (co *Coordinator) DecideJoin(userID string, approve bool) error {
	if co.Role() != models.RoleHost {
		return shared.ErrNotHost
	}
	co.mu.Lock()
	_, known := co.joinReqs[userID]
	delete(co.joinReqs, userID)
	co.mu.Unlock()
	if !known {
		return shared.ErrInvalidInput
	}
	return co.client.Send(protocol.TypeJoinDecision, protocol.JoinDecisionPayload{UserID: userID, Approve: approve})
}

// PendingSuggestions lists guest suggestions awaiting a decision.
func (co *Coordinator) PendingSuggestions() []models.Suggestion {
	co.mu.Lock()
	defer co.mu.Unlock()
	out := make([]models.Suggestion, 0, len(co.suggestions))
	for _, s := range co.suggestions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DecideSuggestion resolves a pending suggestion. Accepting appends the
// track to the queue, which triggers a state broadcast via the engine bus.
func (co *Coordinator) DecideSuggestion(id string, accept bool) error {
	if co.Role() != models.RoleHost {
		return shared.ErrNotHost
	}
	co.mu.Lock()
	sug, known := co.suggestions[id]
	delete(co.suggestions, id)
	co.mu.Unlock()
	if !known {
		return shared.ErrInvalidInput
	}

	if accept {
		co.eng.Append(sug.Track)
	}
	return co.client.Send(protocol.TypeSuggestionDecision, protocol.SuggestionDecisionPayload{SuggestionID: id, Accept: accept})
}

// runHost pumps engine events and relay messages while hosting.
func (co *Coordinator) runHost(ctx context.Context) {
	events := co.eng.Bus().Subscribe()
	defer co.eng.Bus().Unsubscribe(events)

	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			co.broadcastState()
		case <-ticker.C:
			co.broadcastState()
		case st := <-co.client.StateChanges():
			if st == StateConnected {
				// Fresh connection after a reclaim; guests may have missed
				// broadcasts.
				co.broadcastState()
			}
		case msg, ok := <-co.client.Messages():
			if !ok {
				return
			}
			co.handleHostMessage(msg)
		}
	}
}

func (co *Coordinator) handleHostMessage(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeJoinRequested:
		var payload protocol.JoinRequestedPayload
		if err := msg.DecodePayload(&payload); err != nil {
			co.logger.Warn("bad join_requested payload", "err", err)
			return
		}
		co.mu.Lock()
		co.joinReqs[payload.UserID] = models.JoinRequest{UserID: payload.UserID, DisplayName: payload.DisplayName}
		co.mu.Unlock()
		co.logger.Info("join request pending", "user", payload.UserID, "name", payload.DisplayName)

	case protocol.TypeSuggestSong:
		var payload protocol.SuggestSongPayload
		if err := msg.DecodePayload(&payload); err != nil {
			co.logger.Warn("bad suggest_song payload", "err", err)
			return
		}
		sug := models.Suggestion{
			ID:          shared.GenerateID(),
			Track:       payload.Track,
			SuggestedBy: msg.From,
		}
		co.mu.Lock()
		co.suggestions[sug.ID] = sug
		co.mu.Unlock()
		co.logger.Info("suggestion pending", "track", payload.Track.Title, "from", msg.From)

	case protocol.TypeResyncRequest:
		co.broadcastState()

	case protocol.TypeParticipants, protocol.TypeEndSession:
		// Membership updates are tracked by the client; nothing to do here.
	}
}

// broadcastState sends a wholesale snapshot with the next sequence number.
func (co *Coordinator) broadcastState() {
	if co.Role() != models.RoleHost {
		return
	}
	q, st := co.eng.Snapshot()

	co.mu.Lock()
	co.seq++
	seq := co.seq
	co.mu.Unlock()

	payload := protocol.StateSyncPayload{Sequence: seq, Queue: q, State: st}
	if err := co.client.Send(protocol.TypeStateSync, payload); err != nil {
		co.logger.Debug("state broadcast skipped", "seq", seq, "err", err)
	}
}

// ── Guest side ──────────────────────────────────────────────────────────

// runGuest applies host snapshots while shadowing a session.
func (co *Coordinator) runGuest(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case st := <-co.client.StateChanges():
			switch st {
			case StateConnected:
				co.requestResync()
			case StateDisconnected, StateError:
				if err := co.client.Err(); err != nil {
					co.logger.Error("session lost", "err", err)
				}
				co.reset()
				return
			}
		case msg, ok := <-co.client.Messages():
			if !ok {
				return
			}
			co.handleGuestMessage(msg)
		}
	}
}

func (co *Coordinator) handleGuestMessage(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeStateSync:
		var payload protocol.StateSyncPayload
		if err := msg.DecodePayload(&payload); err != nil {
			co.logger.Warn("bad state_sync payload", "err", err)
			return
		}
		co.applySync(payload)

	case protocol.TypeSuggestionDecision:
		var payload protocol.SuggestionDecisionPayload
		if err := msg.DecodePayload(&payload); err != nil {
			return
		}
		co.logger.Info("suggestion decided", "id", payload.SuggestionID, "accepted", payload.Accept)

	case protocol.TypeEndSession:
		co.logger.Info("session ended by host")
		co.reset()
	}
}

// applySync replaces the shadow state wholesale. Stale and duplicate
// sequence numbers are dropped so out-of-order delivery cannot rewind the
// display.
func (co *Coordinator) applySync(payload protocol.StateSyncPayload) {
	co.mu.Lock()
	defer co.mu.Unlock()
	if payload.Sequence <= co.seq {
		co.logger.Debug("dropping stale sync", "seq", payload.Sequence, "have", co.seq)
		return
	}
	co.seq = payload.Sequence
	co.shadowQueue = payload.Queue
	co.shadowState = payload.State
}

// requestResync asks the host for a fresh snapshot, used after joining and
// after a reconnect where broadcasts may have been missed.
func (co *Coordinator) requestResync() {
	if co.Role() != models.RoleGuest {
		return
	}
	co.mu.Lock()
	last := co.seq
	co.mu.Unlock()
	if err := co.client.Send(protocol.TypeResyncRequest, protocol.ResyncRequestPayload{LastSequence: last}); err != nil {
		co.logger.Debug("resync request failed", "err", err)
	}
}
