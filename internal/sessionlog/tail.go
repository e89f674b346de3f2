package sessionlog

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

const tailPollInterval = 100 * time.Millisecond

// Tailer follows a session log file
type Tailer struct {
	path     string
	interval time.Duration
}

// NewTailer creates a tailer for path
func NewTailer(path string) *Tailer {
	return &Tailer{path: path, interval: tailPollInterval}
}

// Last returns up to n complete lines from the end of the file, oldest first
func (t *Tailer) Last(n int) ([]string, error) {
	f, err := os.Open(t.path)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat log file: %w", err)
	}

	const blockSize = 4096
	var (
		tail  []byte
		pos   = stat.Size()
		lines []string
	)
	for pos > 0 && len(lines) < n {
		size := int64(blockSize)
		if size > pos {
			size = pos
		}
		pos -= size

		block := make([]byte, size)
		if _, err := f.ReadAt(block, pos); err != nil && err != io.EOF {
			return nil, fmt.Errorf("reading log block: %w", err)
		}
		tail = append(block, tail...)

		lines = splitLines(tail, pos == 0)
	}

	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

// splitLines splits buf into non-empty lines. Unless atStart, the first fragment
// may be a partial line and is dropped.
func splitLines(buf []byte, atStart bool) []string {
	parts := bytes.Split(bytes.TrimRight(buf, "\n"), []byte{'\n'})
	if !atStart && len(parts) > 0 {
		parts = parts[1:]
	}
	lines := make([]string, 0, len(parts))
	for _, p := range parts {
		if len(p) > 0 {
			lines = append(lines, string(p))
		}
	}
	return lines
}

// Follow calls fn with each line appended to the file after Follow starts,
// until ctx ends. A truncated file is read again from the start.
func (t *Tailer) Follow(ctx context.Context, fn func(line string)) error {
	f, err := os.Open(t.path)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	pos, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("seeking to end: %w", err)
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			pos, err = readAppended(f, pos, fn)
			if err != nil {
				return err
			}
		}
	}
}

func readAppended(f *os.File, pos int64, fn func(string)) (int64, error) {
	stat, err := f.Stat()
	if err != nil {
		return pos, fmt.Errorf("stat log file: %w", err)
	}
	if stat.Size() < pos {
		pos = 0
	}
	if stat.Size() == pos {
		return pos, nil
	}
	if _, err := f.Seek(pos, io.SeekStart); err != nil {
		return pos, fmt.Errorf("seeking log file: %w", err)
	}

	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			// partial line: pick it up once it is complete
			return pos, nil
		}
		if err != nil {
			return pos, fmt.Errorf("reading log file: %w", err)
		}
		pos += int64(len(line))
		if line = line[:len(line)-1]; line != "" {
			fn(line)
		}
	}
}
