package relay

import (
	"sort"
	"sync"
	"time"

	"github.com/attunefm/attune/internal/models"
)

// room tracks the membership of a single listen-together session.
// Message payloads are never stored; the host re-syncs state itself.
type room struct {
	code string

	mu       sync.Mutex
	hostID   string
	hostName string
	host     *client            // nil while the host connection is down
	guests   map[string]*client // user ID -> connection
	pending  map[string]*client // user ID -> connection awaiting host decision
	grace    *time.Timer
	closed   bool
}

func newRoom(code string, hostID, hostName string, host *client) *room {
	return &room{
		code:     code,
		hostID:   hostID,
		hostName: hostName,
		host:     host,
		guests:   map[string]*client{},
		pending:  map[string]*client{},
	}
}

func (r *room) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// participantsLocked returns the membership roster, host first, guests in a
// stable order. Callers must hold r.mu.
func (r *room) participantsLocked() []models.Participant {
	out := make([]models.Participant, 0, len(r.guests)+1)
	out = append(out, models.Participant{UserID: r.hostID, DisplayName: r.hostName, Role: models.RoleHost})

	ids := make([]string, 0, len(r.guests))
	for id := range r.guests {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		_, name := r.guests[id].identity()
		out = append(out, models.Participant{UserID: id, DisplayName: name, Role: models.RoleGuest})
	}
	return out
}

// snapshotLocked builds the room view sent to newly approved guests.
// Callers must hold r.mu.
func (r *room) snapshotLocked() models.Room {
	return models.Room{
		Code:         r.code,
		HostUserID:   r.hostID,
		Participants: r.participantsLocked(),
	}
}

// membersLocked returns every attached connection: host, guests, and
// optionally the pending requesters. Callers must hold r.mu.
func (r *room) membersLocked(includePending bool) []*client {
	out := make([]*client, 0, len(r.guests)+len(r.pending)+1)
	if r.host != nil {
		out = append(out, r.host)
	}
	for _, g := range r.guests {
		out = append(out, g)
	}
	if includePending {
		for _, p := range r.pending {
			out = append(out, p)
		}
	}
	return out
}

// guestsLocked returns the attached guest connections. Callers must hold r.mu.
func (r *room) guestsLocked() []*client {
	out := make([]*client, 0, len(r.guests))
	for _, g := range r.guests {
		out = append(out, g)
	}
	return out
}
