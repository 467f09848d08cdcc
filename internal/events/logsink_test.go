package events

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogSinkWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	sink := NewLogSink(path)

	ch := make(chan Event, 4)
	if err := sink.Start(context.Background(), ch); err != nil {
		t.Fatalf("Start() = %v", err)
	}

	ch <- &CycleStartEvent{BaseEvent: NewEngineEvent(EventCycleStart), Views: 2}
	ch <- &ViewActivateEvent{BaseEvent: NewEngineEvent(EventViewActivate), ViewID: "promo"}
	close(ch)
	if err := sink.Stop(); err != nil {
		t.Fatalf("Stop() = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	ev, err := ParseEvent([]byte(lines[1]))
	if err != nil {
		t.Fatalf("ParseEvent() = %v", err)
	}
	if ev.Type() != EventViewActivate {
		t.Errorf("second line type = %s", ev.Type())
	}
}

func TestLogSinkRotatesExistingJournal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")
	if err := os.WriteFile(path, []byte(`{"type":"cycle.start"}`+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	sink := NewLogSink(path)
	ch := make(chan Event)
	if err := sink.Start(context.Background(), ch); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	close(ch)
	_ = sink.Stop()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var bak bool
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".bak") {
			bak = true
		}
	}
	if !bak {
		t.Error("expected rotated .bak journal")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat fresh journal: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("fresh journal size = %d, want 0", info.Size())
	}
}
