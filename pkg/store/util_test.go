package store

import (
	"errors"
	"reflect"
	"testing"
)

func TestChunkRange(t *testing.T) {
	var windows [][2]int
	err := ChunkRange(10, 4, func(start, end int) error {
		windows = append(windows, [2]int{start, end})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := [][2]int{{0, 4}, {4, 8}, {8, 10}}
	if !reflect.DeepEqual(windows, want) {
		t.Errorf("windows = %v, want %v", windows, want)
	}
}

func TestChunkRangeStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := ChunkRange(10, 2, func(start, end int) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestChunkRangeEmpty(t *testing.T) {
	if err := ChunkRange(0, 4, func(start, end int) error {
		t.Error("fn should not be called for empty range")
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}

func TestDedupeStrings(t *testing.T) {
	got := DedupeStrings([]string{"a", "", "b", "a", "c", "b"})
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if DedupeStrings(nil) != nil {
		t.Error("nil input should yield nil")
	}
}

func TestPersistenceErrorReport(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewPersistenceError("upsert entities", 250, 50, cause)

	if !errors.Is(err, cause) {
		t.Error("cause must be unwrappable")
	}
	msg := err.Error()
	if msg == "" || err.Committed != 250 || err.Remaining != 50 {
		t.Errorf("unexpected report: %q %+v", msg, err)
	}
}
