package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const defaultPoll = 250 * time.Millisecond

// TailOptions controls Tail.
type TailOptions struct {
	// Lines is how many trailing lines to emit first; zero starts at the end.
	Lines  int
	Follow bool
	Poll   time.Duration
	// Match keeps only lines containing the substring, case-insensitively.
	Match string
}

// Tail emits the last lines of path and, when following, every complete line
// appended afterwards until ctx ends. A missing file is treated as empty so
// following can start before the daemon writes its first line. A file that
// shrinks is assumed rotated and is reread from the start.
func Tail(ctx context.Context, path string, opts TailOptions, emit func(string)) error {
	match := strings.ToLower(strings.TrimSpace(opts.Match))
	send := func(lines []string) {
		for _, line := range lines {
			if match != "" && !strings.Contains(strings.ToLower(line), match) {
				continue
			}
			emit(line)
		}
	}

	lines, offset, err := lastLines(path, opts.Lines)
	if err != nil {
		return err
	}
	send(lines)
	if !opts.Follow {
		return nil
	}

	poll := opts.Poll
	if poll <= 0 {
		poll = defaultPoll
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		lines, offset, err = readFrom(path, offset)
		if err != nil {
			return err
		}
		send(lines)
	}
}

// lastLines returns up to limit trailing complete lines and the offset just
// past them.
func lastLines(path string, limit int) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, fmt.Errorf("seek log file: %w", err)
		}
		return nil, end, nil
	}

	ring := make([]string, limit)
	count, next := 0, 0
	offset, err := scanLines(file, 0, func(line string) {
		ring[next] = line
		next = (next + 1) % limit
		if count < limit {
			count++
		}
	})
	if err != nil {
		return nil, 0, err
	}

	lines := make([]string, 0, count)
	start := 0
	if count == limit {
		start = next
	}
	for i := range count {
		lines = append(lines, ring[(start+i)%limit])
	}
	return lines, offset, nil
}

// readFrom returns complete lines written after offset.
func readFrom(path string, offset int64) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, offset, fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() < offset {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seek log file: %w", err)
	}
	var lines []string
	next, err := scanLines(file, offset, func(line string) { lines = append(lines, line) })
	if err != nil {
		return nil, offset, err
	}
	return lines, next, nil
}

// scanLines reads newline-terminated lines from r. A trailing partial line
// is left unread and the returned offset points at its start.
func scanLines(r io.Reader, offset int64, fn func(string)) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := reader.ReadString('\n')
		if err == nil {
			offset += int64(len(line))
			fn(strings.TrimRight(line, "\r\n"))
			continue
		}
		if errors.Is(err, io.EOF) {
			return offset, nil
		}
		return offset, fmt.Errorf("read log file: %w", err)
	}
}
