package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestAcquireLock_exclusive(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")

	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	if _, err := AcquireLock(dir); !errors.Is(err, ErrLocked) {
		t.Fatalf("second AcquireLock: got %v, want ErrLocked", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	again, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock after release: %v", err)
	}
	_ = again.Release()
}

func TestAcquireLock_takesOverStaleLock(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	// Pid far beyond any default pid_max.
	stale := strconv.Itoa(1 << 30)
	if err := os.WriteFile(LockPath(dir), []byte(stale+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock over stale lock: %v", err)
	}
	defer lock.Release()

	b, err := os.ReadFile(LockPath(dir))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != strconv.Itoa(os.Getpid())+"\n" {
		t.Errorf("lock owner: got %q", b)
	}
}

func TestAcquireLock_survivesReset(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	store, err := NewSQLiteStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()

	if err := store.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := AcquireLock(dir); !errors.Is(err, ErrLocked) {
		t.Errorf("lock lost after Reset: %v", err)
	}
}
