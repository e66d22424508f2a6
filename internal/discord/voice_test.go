package discord

import (
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testVoiceCall(opened *atomic.Int32) *VoiceCall {
	return &VoiceCall{
		guildID:   "g1",
		channelID: "c1",
		send:      make(chan []byte, 8),
		open: func(path string) (io.ReadCloser, func(), error) {
			if opened != nil {
				opened.Add(1)
			}
			return io.NopCloser(strings.NewReader("")), func() {}, nil
		},
		setVoice: func(mute, deaf bool) error { return nil },
		stop:     make(chan struct{}),
		stopOnce: &sync.Once{},
	}
}

func TestPlayInterruptsPreviousStream(t *testing.T) {
	req := require.New(t)
	var opened atomic.Int32
	c := testVoiceCall(&opened)

	req.NoError(c.Play("first.wav"))
	c.mu.Lock()
	firstStop := c.stop
	c.mu.Unlock()

	select {
	case <-firstStop:
		t.Fatal("stream stopped with nothing replacing it")
	default:
	}

	req.NoError(c.Play("second.wav"))

	select {
	case <-firstStop:
	default:
		t.Fatal("second play left the first stream running")
	}

	c.mu.Lock()
	secondStop := c.stop
	c.mu.Unlock()
	select {
	case <-secondStop:
		t.Fatal("fresh stop channel is already closed")
	default:
	}

	req.Equal(int32(2), opened.Load())
}

func TestMuteDoesNotBlockFlagReads(t *testing.T) {
	req := require.New(t)
	c := testVoiceCall(nil)

	release := make(chan struct{})
	inFlight := make(chan struct{})
	c.setVoice = func(mute, deaf bool) error {
		close(inFlight)
		<-release
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- c.Mute(true) }()
	<-inFlight

	// Flag reads must not stall behind the in-flight voice state update.
	read := make(chan bool, 1)
	go func() { read <- c.Muted() }()
	select {
	case muted := <-read:
		req.False(muted)
	case <-time.After(2 * time.Second):
		t.Fatal("Muted blocked while a voice state update was in flight")
	}

	close(release)
	req.NoError(<-done)
	req.True(c.Muted())
}

func TestDeafenSnapshotsMuteFlag(t *testing.T) {
	req := require.New(t)
	c := testVoiceCall(nil)

	var gotMute, gotDeaf bool
	c.setVoice = func(mute, deaf bool) error {
		gotMute, gotDeaf = mute, deaf
		return nil
	}

	req.NoError(c.Mute(true))
	req.NoError(c.Deafen(true))
	req.True(gotMute)
	req.True(gotDeaf)
	req.True(c.Muted())
	req.True(c.Deafened())
}
