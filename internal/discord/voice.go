package discord

import (
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/bwmarrin/discordgo"

	"soundbot/internal/session"
	"soundbot/internal/stream"
)

// connector implements session.Connection over the discordgo session. It is
// handed to the registry on the ready event.
type connector struct {
	dg *discordgo.Session
}

func (c *connector) Join(roomID, channelID string) (session.Call, error) {
	vc, err := c.dg.ChannelVoiceJoin(roomID, channelID, false, false)
	if err != nil {
		return nil, fmt.Errorf("failed to join voice channel: %w", err)
	}
	return newVoiceCall(c.dg, roomID, channelID, vc), nil
}

// VoiceCall adapts one discordgo voice connection to the capability set the
// registry stores. Playback is single-slot: starting a new sound interrupts
// whatever is currently streaming.
type VoiceCall struct {
	guildID   string
	channelID string
	vc        *discordgo.VoiceConnection

	send     chan<- []byte
	open     func(path string) (io.ReadCloser, func(), error)
	setVoice func(mute, deaf bool) error

	mu       sync.Mutex
	muted    bool
	deafened bool
	stop     chan struct{}
	stopOnce *sync.Once
}

func newVoiceCall(dg *discordgo.Session, guildID, channelID string, vc *discordgo.VoiceConnection) *VoiceCall {
	return &VoiceCall{
		guildID:   guildID,
		channelID: channelID,
		vc:        vc,
		send:      vc.OpusSend,
		open:      stream.Open,
		setVoice: func(mute, deaf bool) error {
			// Re-issuing the join is the discordgo way to change voice
			// flags on a live connection.
			_, err := dg.ChannelVoiceJoin(guildID, channelID, mute, deaf)
			return err
		},
		stop:     make(chan struct{}),
		stopOnce: &sync.Once{},
	}
}

// Play opens the decoder for path and hands the stream to the send loop. It
// returns as soon as the stream is handed off; it does not wait for the
// sound to finish. Any stream already in progress is stopped first.
func (c *VoiceCall) Play(path string) error {
	pcm, cleanup, err := c.open(path)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}

	c.mu.Lock()
	c.interruptLocked()
	stop := c.stop
	c.mu.Unlock()

	go func() {
		defer cleanup()
		if err := stream.SendPCM(pcm, stop, c.send); err != nil {
			log.Printf("[ERR] Playback error in guild %s: %v", c.guildID, err)
		}
	}()

	return nil
}

// Mute updates the self-mute flag. The gateway round-trip runs outside the
// lock so concurrent flag reads and plays never stall behind it; the flag is
// only updated once the collaborator accepted the change.
func (c *VoiceCall) Mute(on bool) error {
	c.mu.Lock()
	deafened := c.deafened
	c.mu.Unlock()

	if err := c.setVoice(on, deafened); err != nil {
		return err
	}

	c.mu.Lock()
	c.muted = on
	c.mu.Unlock()
	return nil
}

// Deafen updates the self-deafen flag, with the same locking discipline as
// Mute.
func (c *VoiceCall) Deafen(on bool) error {
	c.mu.Lock()
	muted := c.muted
	c.mu.Unlock()

	if err := c.setVoice(muted, on); err != nil {
		return err
	}

	c.mu.Lock()
	c.deafened = on
	c.mu.Unlock()
	return nil
}

func (c *VoiceCall) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

func (c *VoiceCall) Deafened() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deafened
}

// Leave stops any in-progress stream and disconnects from the channel.
func (c *VoiceCall) Leave() error {
	c.mu.Lock()
	c.interruptLocked()
	c.mu.Unlock()
	return c.vc.Disconnect()
}

// interruptLocked stops the in-progress stream, if any, and arms a fresh
// stop channel for the next one. Caller holds c.mu.
func (c *VoiceCall) interruptLocked() {
	c.stopOnce.Do(func() { close(c.stop) })
	c.stop = make(chan struct{})
	c.stopOnce = &sync.Once{}
}
