package tui

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/awidmer/marquee/internal/events"
)

// isTerminal returns true if both stdout and stdin are TTYs.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stdin.Fd()))
}

// runSimple provides line-by-line output for non-interactive environments:
// piped output, CI, a kiosk without a usable terminal. It reads events from
// the channel, formats them, and prints to stdout. Exits when the channel
// closes or on interrupt signal.
func (t *TUI) runSimple() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	for {
		select {
		case <-sigChan:
			// Clean exit on interrupt
			if t.onQuit != nil {
				t.onQuit()
			}
			return nil
		case event, ok := <-t.eventChan:
			if !ok {
				// Channel closed, exit cleanly
				return nil
			}

			text := events.FormatWithTimestamp(event)
			if text == "" {
				continue
			}
			fmt.Println(text)
		}
	}
}
