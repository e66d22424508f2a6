// Package console is the local command source: one line per command, every
// line a play fragment, the "exit" sentinel ends the whole process.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"soundbot/internal/dispatcher"
)

const exitCommand = "exit"

// Run reads lines from in until the exit sentinel, end of input or ctx
// cancellation. Every other non-empty line is played as a fragment against
// whichever room currently has an active call; the result is written to out.
// shutdown is invoked at most once and must be safe to race with an
// in-flight play.
func Run(ctx context.Context, d *dispatcher.Dispatcher, shutdown func(), in io.Reader, out io.Writer) {
	// The derived cancel unblocks the scanner goroutine once Run returns,
	// even when shutdown does not cancel the caller's ctx.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				log.Println("[INFO] Console input closed, shutting down")
				shutdown()
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if line == exitCommand {
				shutdown()
				return
			}
			fmt.Fprintln(out, d.PlayAnywhere(line))
		}
	}
}
