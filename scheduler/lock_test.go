package scheduler

import (
	"testing"
	"time"

	"github.com/sner/scheduler/cmn"
)

func TestLockAcquireRelease(t *testing.T) {
	l := newLock()
	release, err := l.acquire("op", 0)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	release()

	release, err = l.acquire("op", time.Second)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	release()
}

func TestLockAcquireTimeoutReturnsBusy(t *testing.T) {
	l := newLock()
	release, err := l.acquire("holder", 0)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	_, err = l.acquire("waiter", 20*time.Millisecond)
	if err == nil {
		t.Fatal("expected BusyError when lock is held past timeout")
	}
	if !cmn.IsBusy(err) {
		t.Fatalf("expected BusyError, got %v (%T)", err, err)
	}
}
