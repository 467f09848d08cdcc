package events

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Sink consumes events from the router.
type Sink interface {
	Start(ctx context.Context, events <-chan Event) error
	Stop() error
}

// LogSink appends events to a JSON lines journal. The journal backs the
// events command and post-mortem debugging of a misbehaving panel.
type LogSink struct {
	path    string
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
	done    chan struct{}
}

// NewLogSink creates a LogSink writing to the given path.
func NewLogSink(path string) *LogSink {
	return &LogSink{
		path: path,
		done: make(chan struct{}),
	}
}

// Start opens the journal and begins consuming events. It runs until the
// context is canceled or the channel closes.
func (s *LogSink) Start(ctx context.Context, events <-chan Event) error {
	if err := s.openFile(); err != nil {
		return err
	}
	go s.run(ctx, events)
	return nil
}

// largeJournalThreshold is the size above which we warn on startup.
const largeJournalThreshold = 100 * 1024 * 1024 // 100MB

func (s *LogSink) openFile() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create journal directory: %w", err)
	}

	// Rotate a non-empty journal from the previous run so each daemon run
	// starts a fresh file and tail -f keeps working.
	if err := s.rotateExisting(); err != nil {
		return err
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	s.mu.Lock()
	s.file = file
	s.encoder = json.NewEncoder(file)
	s.mu.Unlock()
	return nil
}

func (s *LogSink) rotateExisting() error {
	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat journal: %w", err)
	}
	if info.Size() == 0 {
		return nil
	}

	if info.Size() > largeJournalThreshold {
		fmt.Fprintf(os.Stderr, "event journal: warning: large journal (%d MB), consider cleaning up old .bak files in %s\n",
			info.Size()/(1024*1024), filepath.Dir(s.path))
	}

	timestamp := time.Now().Format("2006-01-02T15-04-05")
	bakPath := fmt.Sprintf("%s.%s.bak", s.path, timestamp)
	if err := os.Rename(s.path, bakPath); err != nil {
		return fmt.Errorf("rotate journal: %w", err)
	}
	return nil
}

func (s *LogSink) run(ctx context.Context, events <-chan Event) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			s.write(event)
		}
	}
}

func (s *LogSink) write(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.encoder == nil {
		return
	}
	if err := s.encoder.Encode(event); err != nil {
		fmt.Fprintf(os.Stderr, "event journal: failed to write event: %v\n", err)
	}
}

// Stop waits for the run goroutine and closes the journal.
func (s *LogSink) Stop() error {
	<-s.done

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		err := s.file.Close()
		s.file = nil
		s.encoder = nil
		return err
	}
	return nil
}

// Path returns the journal path.
func (s *LogSink) Path() string {
	return s.path
}
