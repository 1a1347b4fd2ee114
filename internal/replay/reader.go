package replay

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/okian/fightlog/internal/domain/model"
)

const maxLineBytes = 1 << 20

// Scan decodes one event envelope per line of r and calls fn for each, in
// order. Blank lines are skipped. The first bad line stops the scan.
func Scan(r io.Reader, fn func(model.Event) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		ev, err := model.Decode(raw)
		if err != nil {
			return fmt.Errorf("%w %d: %w", ErrBadLine, line, err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read events: %w", err)
	}
	return nil
}

// Read decodes every event of r.
func Read(r io.Reader) ([]model.Event, error) {
	var out []model.Event
	err := Scan(r, func(ev model.Event) error {
		out = append(out, ev)
		return nil
	})
	return out, err
}

// ReadFile decodes every event of the NDJSON file at path.
func ReadFile(path string) ([]model.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open events: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Write encodes events as NDJSON.
func Write(w io.Writer, events []model.Event) error {
	bw := bufio.NewWriter(w)
	for _, ev := range events {
		data, err := model.Encode(ev)
		if err != nil {
			return err
		}
		if _, err := bw.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("write events: %w", err)
		}
	}
	return bw.Flush()
}
