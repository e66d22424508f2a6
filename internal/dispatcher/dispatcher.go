// Package dispatcher turns parsed soundboard commands into registry
// transactions and human-readable replies. Every failure is reported as a
// reply string, never as a process-fatal error.
package dispatcher

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"soundbot/internal/session"
	"soundbot/internal/sound"
	"soundbot/internal/storage"
)

// Source tags where a command came from, for the play history.
type Source string

const (
	SourceChat    Source = "chat"
	SourceConsole Source = "console"
)

type Dispatcher struct {
	registry  *session.Registry
	soundsDir string
	store     *storage.Storage
}

// New wires the dispatcher to the shared registry and the sounds directory.
// store may be nil; history recording is then skipped.
func New(registry *session.Registry, soundsDir string, store *storage.Storage) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		soundsDir: soundsDir,
		store:     store,
	}
}

// Join connects to the room's voice channel. Re-joining a room that already
// has a call reuses it; the registry never ends up with two calls for one
// room, and nothing is stored when the collaborator refuses the join.
func (d *Dispatcher) Join(roomID, channelID string) string {
	if _, ok := d.registry.Get(roomID); ok {
		return "Joined voice channel"
	}

	conn, err := d.registry.Connection()
	if err != nil {
		return "Not ready yet, try again in a moment"
	}

	call, err := conn.Join(roomID, channelID)
	if err != nil {
		log.Printf("[ERR] Failed to join voice channel %s in guild %s: %v", channelID, roomID, err)
		return fmt.Sprintf("Failed: %v", err)
	}

	stored, inserted := d.registry.PutIfAbsent(roomID, call)
	if !inserted && stored != call {
		// Lost a join race; drop the duplicate call.
		_ = call.Leave()
	}
	return "Joined voice channel"
}

// Leave tears down the room's call and removes it from the registry.
func (d *Dispatcher) Leave(roomID string) string {
	call, ok := d.registry.Get(roomID)
	if !ok {
		return "Not in a voice channel"
	}

	d.registry.Remove(roomID)
	if err := call.Leave(); err != nil {
		log.Printf("[ERR] Failed to leave voice channel in guild %s: %v", roomID, err)
		return fmt.Sprintf("Failed: %v", err)
	}
	return "Left voice channel"
}

// Mute sets the self-mute flag. Setting an already-set flag is reported
// distinctly from the success case.
func (d *Dispatcher) Mute(roomID string) string {
	call, ok := d.registry.Get(roomID)
	if !ok {
		return "Not in a voice channel"
	}
	if call.Muted() {
		return "Already muted"
	}
	if err := call.Mute(true); err != nil {
		return fmt.Sprintf("Failed: %v", err)
	}
	return "Now muted"
}

// Unmute clears the self-mute flag unconditionally. Clearing an already-clear
// flag still reports success; the asymmetry with Mute is deliberate.
func (d *Dispatcher) Unmute(roomID string) string {
	call, ok := d.registry.Get(roomID)
	if !ok {
		return "Not in a voice channel to unmute in"
	}
	if err := call.Mute(false); err != nil {
		return fmt.Sprintf("Failed: %v", err)
	}
	return "Unmuted"
}

// Deafen sets the self-deafen flag, guarded the same way as Mute.
func (d *Dispatcher) Deafen(roomID string) string {
	call, ok := d.registry.Get(roomID)
	if !ok {
		return "Not in a voice channel"
	}
	if call.Deafened() {
		return "Already deafened"
	}
	if err := call.Deafen(true); err != nil {
		return fmt.Sprintf("Failed: %v", err)
	}
	return "Deafened"
}

// Undeafen clears the self-deafen flag unconditionally, like Unmute.
func (d *Dispatcher) Undeafen(roomID string) string {
	call, ok := d.registry.Get(roomID)
	if !ok {
		return "Not in a voice channel to undeafen in"
	}
	if err := call.Deafen(false); err != nil {
		return fmt.Sprintf("Failed: %v", err)
	}
	return "Undeafened"
}

// Play resolves the fragment and streams the file into the room's call.
// The handler returns as soon as the stream is handed off.
func (d *Dispatcher) Play(roomID, fragment, requester string) string {
	return d.play(roomID, fragment, SourceChat, requester)
}

// PlayAnywhere is the console variant of Play: it targets whichever room
// currently has an active call.
func (d *Dispatcher) PlayAnywhere(fragment string) string {
	if _, err := d.registry.Connection(); err != nil {
		return "Not ready yet, try again in a moment"
	}

	roomID, _, ok := d.registry.FindActive()
	if !ok {
		return "Not in a voice channel to play in"
	}
	return d.play(roomID, fragment, SourceConsole, "console")
}

// Ping reports liveness. Always succeeds.
func (d *Dispatcher) Ping() string {
	return "Pong!"
}

func (d *Dispatcher) play(roomID, fragment string, src Source, requester string) string {
	if strings.TrimSpace(fragment) == "" {
		return "Must provide a sound name"
	}

	call, ok := d.registry.Get(roomID)
	if !ok {
		return "Not in a voice channel to play in"
	}

	file, err := sound.Resolve(d.soundsDir, fragment)
	if err != nil {
		if !errors.Is(err, sound.ErrNoMatch) {
			log.Printf("[ERR] Sound lookup failed: %v", err)
		}
		return "no matching file found"
	}

	if err := call.Play(file.Path); err != nil {
		log.Printf("[ERR] Failed to open stream for %s: %v", file.Name, err)
		return "Error sourcing ffmpeg"
	}

	d.recordPlay(roomID, file.Name, fragment, src, requester)
	return fmt.Sprintf("Playing %s", file.Name)
}

func (d *Dispatcher) recordPlay(roomID, soundName, fragment string, src Source, requester string) {
	if d.store == nil {
		return
	}
	err := d.store.AppendPlayToHistory(roomID, storage.PlayHistoryRecord{
		Sound:     soundName,
		Fragment:  fragment,
		Requester: requester,
		Source:    string(src),
		Datetime:  time.Now(),
	})
	if err != nil {
		log.Println("[WARN] Failed to record play:", err)
	}
}
