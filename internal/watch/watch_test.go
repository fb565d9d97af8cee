package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestWatchDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, FileTarget(dir), 100*time.Millisecond, quietLogger(), func() { calls.Add(1) })
	}()
	time.Sleep(100 * time.Millisecond)

	for i := 0; i < 5; i++ {
		_ = os.WriteFile(filepath.Join(dir, "notes.json"), []byte(`[]`), 0o644)
		time.Sleep(10 * time.Millisecond)
	}

	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool { return calls.Load() >= 1 }, "no change reported")
	time.Sleep(300 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("onChange called %d times, want 1", n)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch = %v", err)
	}
}

func TestWatchIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	go func() {
		_ = Watch(ctx, SQLiteTarget(filepath.Join(dir, "scraps.db")), 50*time.Millisecond, quietLogger(), func() { calls.Add(1) })
	}()
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o644)
	time.Sleep(200 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Fatalf("onChange called %d times for unrelated file", n)
	}

	_ = os.WriteFile(filepath.Join(dir, "scraps.db-wal"), []byte("x"), 0o644)
	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool { return calls.Load() == 1 }, "wal write not reported")
}

func TestTargets(t *testing.T) {
	sq := SQLiteTarget("/data/scraps.db")
	for name, want := range map[string]bool{"scraps.db": true, "scraps.db-wal": true, "other.db": false} {
		if got := sq.Match(name); got != want {
			t.Errorf("sqlite Match(%q) = %v, want %v", name, got, want)
		}
	}
	ft := FileTarget("/data/store")
	for name, want := range map[string]bool{"notes.json": true, ".notes.json.tmp": false, "notes.txt": false} {
		if got := ft.Match(name); got != want {
			t.Errorf("file Match(%q) = %v, want %v", name, got, want)
		}
	}
}
