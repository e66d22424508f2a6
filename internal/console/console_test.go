package console

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"soundbot/internal/dispatcher"
	"soundbot/internal/session"
)

type fakeCall struct {
	mu     sync.Mutex
	played []string
}

func (f *fakeCall) Play(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.played = append(f.played, path)
	return nil
}

func (f *fakeCall) Mute(bool) error   { return nil }
func (f *fakeCall) Deafen(bool) error { return nil }
func (f *fakeCall) Muted() bool       { return false }
func (f *fakeCall) Deafened() bool    { return false }
func (f *fakeCall) Leave() error      { return nil }

type fakeConnection struct{}

func (f *fakeConnection) Join(roomID, channelID string) (session.Call, error) {
	return &fakeCall{}, nil
}

func testDispatcher(t *testing.T) (*dispatcher.Dispatcher, *fakeCall) {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "applause.wav"), []byte("pcm"), 0644))

	registry := session.New()
	registry.SetConnection(&fakeConnection{}, []session.Room{{ID: "g1"}})
	call := &fakeCall{}
	registry.Put("g1", call)

	return dispatcher.New(registry, dir, nil), call
}

func TestRunEndToEnd(t *testing.T) {
	req := require.New(t)
	d, call := testDispatcher(t)

	var shutdowns atomic.Int32
	in := strings.NewReader("appla\nnonexistent\nexit\n")
	var out bytes.Buffer

	Run(context.Background(), d, func() { shutdowns.Add(1) }, in, &out)

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	req.Equal([]string{"Playing applause.wav", "no matching file found"}, lines)
	req.Len(call.played, 1)
	req.Equal(int32(1), shutdowns.Load())
}

func TestRunExitStopsReading(t *testing.T) {
	req := require.New(t)
	d, call := testDispatcher(t)

	var shutdowns atomic.Int32
	// Everything after the sentinel must be left unread.
	in := strings.NewReader("exit\nappla\nexit\n")
	var out bytes.Buffer

	Run(context.Background(), d, func() { shutdowns.Add(1) }, in, &out)

	req.Empty(out.String())
	req.Empty(call.played)
	req.Equal(int32(1), shutdowns.Load())
}

func TestRunSkipsBlankLines(t *testing.T) {
	d, _ := testDispatcher(t)

	var shutdowns atomic.Int32
	in := strings.NewReader("\n   \nappla\nexit\n")
	var out bytes.Buffer

	Run(context.Background(), d, func() { shutdowns.Add(1) }, in, &out)

	require.Equal(t, "Playing applause.wav\n", out.String())
}

func TestRunShutsDownOnEOF(t *testing.T) {
	d, _ := testDispatcher(t)

	var shutdowns atomic.Int32
	var out bytes.Buffer

	Run(context.Background(), d, func() { shutdowns.Add(1) }, strings.NewReader(""), &out)

	require.Equal(t, int32(1), shutdowns.Load())
}

func TestRunReleasesReaderAfterExit(t *testing.T) {
	d, _ := testDispatcher(t)

	before := runtime.NumGoroutine()

	// The line after the sentinel leaves the scanner goroutine mid-send;
	// Run must still release it on return.
	in := strings.NewReader("exit\nappla\n")
	Run(context.Background(), d, func() {}, in, &bytes.Buffer{})

	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunReturnsOnContextCancel(t *testing.T) {
	d, _ := testDispatcher(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		// A reader that never produces a line; only ctx can end the loop.
		pr, _ := io.Pipe()
		Run(ctx, d, func() {}, pr, &bytes.Buffer{})
		close(done)
	}()

	<-done
}
