package transcript

import (
	"testing"
	"time"
)

func TestAppendRead(t *testing.T) {
	s, err := NewWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewWithDir() error = %v", err)
	}

	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	entries := []Entry{
		{Time: now, Direction: DirectionOut, Text: "Добрый день!"},
		{Time: now.Add(time.Minute), Direction: DirectionIn, Text: "да"},
		{Time: now.Add(time.Minute), Direction: DirectionState, State: "price_confirmation"},
	}

	for _, e := range entries {
		if err = s.Append("79990001122@c.us", e); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got, err := s.Read("79990001122@c.us")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("Read() len = %d, want %d", len(got), len(entries))
	}
	for i := range entries {
		if got[i].Direction != entries[i].Direction || got[i].Text != entries[i].Text ||
			got[i].State != entries[i].State || !got[i].Time.Equal(entries[i].Time) {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], entries[i])
		}
	}
}

func TestReadMissing(t *testing.T) {
	s, err := NewWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewWithDir() error = %v", err)
	}

	got, err := s.Read("../../etc/passwd")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Read() = %v, want empty", got)
	}
}
