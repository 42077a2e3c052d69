package models

import (
	"fmt"
	"strings"
	"time"
)

// base carries the lifecycle fields shared by all persistent entities.
type base struct {
	id        string
	sequence  int
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

func (b *base) ID() string                  { return b.id }
func (b *base) SetID(id string)             { b.id = id }
func (b *base) Sequence() int               { return b.sequence }
func (b *base) SetSequence(seq int)         { b.sequence = seq }
func (b *base) CreatedAt() time.Time        { return b.createdAt }
func (b *base) UpdatedAt() time.Time        { return b.updatedAt }
func (b *base) SetUpdatedAt(t time.Time)    { b.updatedAt = t }
func (b *base) DeletedAt() *time.Time       { return b.deletedAt }
func (b *base) SetDeletedAt(t *time.Time)   { b.deletedAt = t }
func (b *base) SetCreatedAt(t time.Time)    { b.createdAt = t }

// Profile is the device user's local identity, pre-filled on relaunch.
type Profile struct {
	base
	username string
}

// NewProfile creates a Profile with creation timestamps set to now.
func NewProfile(sequence int, username string) *Profile {
	now := time.Now()
	p := &Profile{username: username}
	p.sequence = sequence
	p.createdAt = now
	p.updatedAt = now
	return p
}

func (p *Profile) Username() string        { return p.username }
func (p *Profile) SetUsername(name string) { p.username = name }

// Validate checks that the profile has a usable username.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.username) == "" {
		return fmt.Errorf("profile username must not be empty")
	}
	return nil
}

// Preferences holds the peripheral playback settings the transport engine
// consumes as configuration: crossfade, equalizer preset, and sleep timer.
type Preferences struct {
	base
	profileID         string
	crossfadeEnabled  bool
	crossfadeWindow   int // seconds
	crossfadeRamp     int // seconds
	equalizerPreset   string
	sleepTimerMinutes int
}

// NewPreferences creates a Preferences row with engine defaults.
func NewPreferences(sequence int, profileID string) *Preferences {
	now := time.Now()
	p := &Preferences{
		profileID:       profileID,
		crossfadeWindow: 10,
		crossfadeRamp:   6,
		equalizerPreset: "flat",
	}
	p.sequence = sequence
	p.createdAt = now
	p.updatedAt = now
	return p
}

func (p *Preferences) ProfileID() string        { return p.profileID }
func (p *Preferences) CrossfadeEnabled() bool   { return p.crossfadeEnabled }
func (p *Preferences) SetCrossfadeEnabled(v bool) { p.crossfadeEnabled = v }
func (p *Preferences) CrossfadeWindow() int     { return p.crossfadeWindow }
func (p *Preferences) SetCrossfadeWindow(s int) { p.crossfadeWindow = s }
func (p *Preferences) CrossfadeRamp() int       { return p.crossfadeRamp }
func (p *Preferences) SetCrossfadeRamp(s int)   { p.crossfadeRamp = s }
func (p *Preferences) EqualizerPreset() string  { return p.equalizerPreset }
func (p *Preferences) SetEqualizerPreset(name string) { p.equalizerPreset = name }
func (p *Preferences) SleepTimerMinutes() int   { return p.sleepTimerMinutes }
func (p *Preferences) SetSleepTimerMinutes(m int) { p.sleepTimerMinutes = m }

// Validate checks the preference ranges the engine is willing to accept.
func (p *Preferences) Validate() error {
	if p.profileID == "" {
		return fmt.Errorf("preferences must reference a profile")
	}
	if p.crossfadeWindow < 1 || p.crossfadeWindow > 30 {
		return fmt.Errorf("crossfade window must be 1-30 seconds, got %d", p.crossfadeWindow)
	}
	if p.crossfadeRamp < 1 || p.crossfadeRamp > p.crossfadeWindow {
		return fmt.Errorf("crossfade ramp must be 1-%d seconds, got %d", p.crossfadeWindow, p.crossfadeRamp)
	}
	if p.sleepTimerMinutes < 0 {
		return fmt.Errorf("sleep timer must not be negative, got %d", p.sleepTimerMinutes)
	}
	return nil
}

// HistoryEntry records one track transition for the listening history.
type HistoryEntry struct {
	base
	trackID  string
	title    string
	artist   string
	cause    TransitionCause
	playedAt time.Time
}

// NewHistoryEntry creates a history row for a track that just started playing.
func NewHistoryEntry(sequence int, track Track, cause TransitionCause) *HistoryEntry {
	now := time.Now()
	h := &HistoryEntry{
		trackID:  track.ID,
		title:    track.Title,
		artist:   track.Artist,
		cause:    cause,
		playedAt: now,
	}
	h.sequence = sequence
	h.createdAt = now
	h.updatedAt = now
	return h
}

func (h *HistoryEntry) TrackID() string         { return h.trackID }
func (h *HistoryEntry) Title() string           { return h.title }
func (h *HistoryEntry) Artist() string          { return h.artist }
func (h *HistoryEntry) Cause() TransitionCause  { return h.cause }
func (h *HistoryEntry) PlayedAt() time.Time     { return h.playedAt }
func (h *HistoryEntry) SetPlayedAt(t time.Time) { h.playedAt = t }

// Validate checks that the entry references a track and a known cause.
func (h *HistoryEntry) Validate() error {
	if h.trackID == "" {
		return fmt.Errorf("history entry must reference a track")
	}
	if h.cause != CauseAutomatic && h.cause != CauseManual {
		return fmt.Errorf("unknown transition cause: %s", h.cause)
	}
	return nil
}
