// /internal/stream/discord.go
package stream

import (
	"encoding/binary"
	"fmt"
	"io"

	"layeh.com/gopus"
)

// SendPCM reads 20ms PCM frames from stream, encodes them to opus and pushes
// them into opusSend (a voice connection's OpusSend channel) until the
// stream ends or stop closes.
func SendPCM(stream io.ReadCloser, stop <-chan struct{}, opusSend chan<- []byte) error {
	encoder, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		return fmt.Errorf("encoder error: %w", err)
	}

	defer stream.Close()

	pcmBuf := make([]byte, frameSize*channels*2)
	intBuf := make([]int16, frameSize*channels)

	for {
		select {
		case <-stop:
			return nil
		default:
			_, err := io.ReadFull(stream, pcmBuf)
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read error: %w", err)
			}

			for i := range intBuf {
				intBuf[i] = int16(binary.LittleEndian.Uint16(pcmBuf[i*2 : i*2+2]))
			}

			opus, err := encoder.Encode(intBuf, frameSize, len(pcmBuf))
			if err != nil {
				return fmt.Errorf("encode error: %w", err)
			}

			select {
			case opusSend <- opus:
			case <-stop:
				return nil
			}
		}
	}
}
