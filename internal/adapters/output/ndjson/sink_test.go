package ndjson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/fightlog/internal/domain/encounter"
)

func testRecord(id string) encounter.Record {
	return encounter.Record{
		SchemaVersion: encounter.SchemaVersion,
		ID:            id,
		StartedAt:     time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC),
		UpdatedAt:     time.Date(2026, 3, 1, 20, 1, 0, 0, time.UTC),
		Status:        encounter.Killed,
		Zone:          "Befallen",
		BucketSeconds: encounter.BucketSeconds,
		Adversary:     &encounter.Participant{Name: "a skeleton"},
		Participants:  []*encounter.Participant{{Name: "Aldar", OutboundHitSum: 120}},
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestWriteProducesValidNDJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.ndjson")
	sink, err := New(path)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := sink.Write(context.Background(), testRecord(fmt.Sprintf("enc-%d", i))); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	for i, line := range lines {
		var rec encounter.Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("line %d: invalid JSON: %v", i, err)
		}
		if rec.ID != fmt.Sprintf("enc-%d", i) || rec.Status != encounter.Killed {
			t.Errorf("line %d: got id=%s status=%v", i, rec.ID, rec.Status)
		}
	}
}

func TestAppendsToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.ndjson")
	for i := 0; i < 2; i++ {
		sink, err := New(path)
		if err != nil {
			t.Fatalf("New error: %v", err)
		}
		if err := sink.Write(context.Background(), testRecord(fmt.Sprintf("enc-%d", i))); err != nil {
			t.Fatalf("Write error: %v", err)
		}
		if err := sink.Close(); err != nil {
			t.Fatalf("Close error: %v", err)
		}
	}
	if n := len(readLines(t, path)); n != 2 {
		t.Fatalf("got %d lines, want 2", n)
	}
}

func TestRotationTriggersAtMaxSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.ndjson")

	line, _ := json.Marshal(testRecord("enc-0"))
	sink, err := New(path, WithMaxSize(int64(len(line)+1)*2), WithMaxBackups(2))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	for i := 0; i < 7; i++ {
		if err := sink.Write(context.Background(), testRecord("enc-0")); err != nil {
			t.Fatalf("Write %d error: %v", i, err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	if n := len(readLines(t, path)); n != 1 {
		t.Errorf("live file has %d lines, want 1", n)
	}
	for _, suffix := range []string{".1", ".2"} {
		if n := len(readLines(t, path+suffix)); n != 2 {
			t.Errorf("%s has %d lines, want 2", suffix, n)
		}
	}
	if _, err := os.Stat(path + ".3"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected no third backup, stat err = %v", err)
	}
}

func TestWriteAfterClose(t *testing.T) {
	sink, err := New(filepath.Join(t.TempDir(), "records.ndjson"))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("second Close error: %v", err)
	}
	if err := sink.Write(context.Background(), testRecord("late")); !errors.Is(err, fs.ErrClosed) {
		t.Fatalf("Write after close err = %v, want fs.ErrClosed", err)
	}
}
