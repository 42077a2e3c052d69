package models

import "time"

// Track is an immutable description of a playable song.
// Identity is the ID; two tracks are the same track iff their IDs match.
type Track struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Artist     string        `json:"artist"`
	ArtworkRef string        `json:"artwork_ref,omitempty"`
	Duration   time.Duration `json:"duration_hint,omitempty"`
	AlbumID    string        `json:"album_id,omitempty"`
	ArtistID   string        `json:"artist_id,omitempty"`
}

// Same reports whether both tracks refer to the same song.
func (t Track) Same(other Track) bool {
	return t.ID == other.ID
}

// LoopMode controls how the queue cursor behaves at track boundaries.
type LoopMode string

const (
	LoopNone LoopMode = "none"
	LoopOne  LoopMode = "one"
	LoopAll  LoopMode = "all"
)

// NextLoopMode cycles none -> all -> one -> none, matching the single
// loop toggle exposed to the UI layer.
func NextLoopMode(mode LoopMode) LoopMode {
	switch mode {
	case LoopNone:
		return LoopAll
	case LoopAll:
		return LoopOne
	default:
		return LoopNone
	}
}

// CrossfadePhase is the crossfade scheduler's state machine position.
type CrossfadePhase string

const (
	PhaseIdle       CrossfadePhase = "idle"
	PhasePreloading CrossfadePhase = "preloading"
	PhaseFading     CrossfadePhase = "fading"
)

// TransitionCause distinguishes natural end-of-track advances from user skips.
type TransitionCause string

const (
	CauseAutomatic TransitionCause = "automatic"
	CauseManual    TransitionCause = "manual"
)

// PlaybackState is the engine-owned view of what is audible right now.
// TrackID matches the queue's current track except mid-transition.
type PlaybackState struct {
	TrackID        string         `json:"track_id"`
	Position       time.Duration  `json:"position"`
	IsPlaying      bool           `json:"is_playing"`
	CrossfadePhase CrossfadePhase `json:"crossfade_phase"`
}

// QueueSnapshot is a wholesale copy of the queue for state_sync broadcasts.
// Guests replace their shadow queue with the snapshot rather than diffing.
type QueueSnapshot struct {
	Tracks       []Track  `json:"tracks"`
	CurrentIndex int      `json:"current_index"`
	LoopMode     LoopMode `json:"loop_mode"`
}

// Role identifies a participant's authority within a room.
type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

// Participant is a member of a room as reported by the relay.
type Participant struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
}

// JoinRequest is a pending request to enter a room, awaiting host decision.
type JoinRequest struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// Suggestion is a guest-proposed track queued host-side until decided.
type Suggestion struct {
	ID            string `json:"id"`
	Track         Track  `json:"track"`
	SuggestedBy   string `json:"suggested_by"`
	SuggestedName string `json:"suggested_name,omitempty"`
}

// Room is the relay-owned room state mirrored locally as a read-mostly cache.
type Room struct {
	Code         string        `json:"code"`
	HostUserID   string        `json:"host_user_id"`
	Participants []Participant `json:"participants"`
}
