package poolconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherDeliversUpdateOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "execpool.json")

	cfg := DefaultConfig()
	cfg.Pool.MaxSize = 4
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	cfg.Pool.MaxSize = 9
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	select {
	case updated := <-w.Updates():
		if updated.Pool.MaxSize != 9 {
			t.Errorf("expected reloaded max size 9, got %d", updated.Pool.MaxSize)
		}
	case err := <-w.Errors():
		t.Fatalf("unexpected reload error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for config update")
	}
}

func TestWatcherReportsErrorOnInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "execpool.json")

	cfg := DefaultConfig()
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("failed to corrupt config file: %v", err)
	}

	select {
	case <-w.Updates():
		t.Fatal("expected an error, not an update, for invalid JSON")
	case <-w.Errors():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload error")
	}
}
