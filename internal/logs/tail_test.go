package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"minimill/internal/logs"
)

func collect(t *testing.T, path string, opts logs.TailOptions) []string {
	t.Helper()
	var lines []string
	if err := logs.Tail(context.Background(), path, opts, func(l string) { lines = append(lines, l) }); err != nil {
		t.Fatalf("Tail: %v", err)
	}
	return lines
}

func TestTailLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimilld.log")
	if err := os.WriteFile(path, []byte("a\nb\nc\npartial"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	got := collect(t, path, logs.TailOptions{Lines: 2})
	if !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Fatalf("unexpected lines: %#v", got)
	}
	if got := collect(t, path, logs.TailOptions{Lines: 10}); len(got) != 3 {
		t.Fatalf("expected all complete lines, got %#v", got)
	}
}

func TestTailMatchFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimilld.log")
	content := "INFO tracking started\nWARN status check failed\nINFO processing completed\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	got := collect(t, path, logs.TailOptions{Lines: 10, Match: "warn"})
	if !reflect.DeepEqual(got, []string{"WARN status check failed"}) {
		t.Fatalf("unexpected lines: %#v", got)
	}
}

func TestTailMissingFile(t *testing.T) {
	got := collect(t, filepath.Join(t.TempDir(), "absent.log"), logs.TailOptions{Lines: 5})
	if len(got) != 0 {
		t.Fatalf("expected no lines, got %#v", got)
	}
}

func TestTailFollowPicksUpAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimilld.log")
	if err := os.WriteFile(path, []byte("start\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var lines []string
	done := make(chan error, 1)
	go func() {
		done <- logs.Tail(ctx, path, logs.TailOptions{Lines: 1, Follow: true, Poll: 10 * time.Millisecond}, func(l string) {
			mu.Lock()
			lines = append(lines, l)
			mu.Unlock()
		})
	}()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("lat"); err != nil {
		t.Fatalf("append: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if _, err := f.WriteString("er\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = f.Close()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(lines)
		mu.Unlock()
		if n >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Tail: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if !reflect.DeepEqual(lines, []string{"start", "later"}) {
		t.Fatalf("unexpected lines: %#v", lines)
	}
}
