// /internal/stream/stream.go
package stream

import (
	"fmt"
	"io"
	"os/exec"
)

const (
	channels   = 2
	sampleRate = 48000
	frameSize  = 960 // 20ms at 48kHz
)

// Open decodes the audio file at path to raw s16le PCM via an ffmpeg
// subprocess. The returned cleanup kills and reaps the decoder; callers must
// invoke it once streaming is over.
func Open(path string) (io.ReadCloser, func(), error) {
	cmd := exec.Command("ffmpeg",
		"-i", path,
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", fmt.Sprintf("%d", channels),
		"-loglevel", "warning",
		"pipe:1",
	)

	reader, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stdout pipe error: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("command start error: %w", err)
	}

	cleanup := func() {
		cmd.Process.Kill()
		cmd.Wait()
	}

	return reader, cleanup, nil
}
