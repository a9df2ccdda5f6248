package movements

import (
	"errors"
	"testing"
	"time"
)

func TestSweeperFlagsOverdueMovement(t *testing.T) {
	fs := newFakeStore()
	fs.addItem(1, "Drill", 10, 9)
	due := date(2024, 1, 10)
	m := openMovement(fs, 1, 1, KindCheckout, date(2024, 1, 5), &due)
	svc, _ := newTestService(fs, date(2024, 1, 12))

	sw := NewSweeper(svc, 5*time.Millisecond)
	sw.Start()
	defer sw.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got := fs.movementByID(m.MovementID)
		fs.mu.Lock()
		status := got.DeadlineStatus
		fs.mu.Unlock()
		if status == StatusLate {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("sweeper did not flag the overdue movement in time")
}

func TestSweeperSurvivesStoreErrors(t *testing.T) {
	fs := newFakeStore()
	fs.pendingErr = errors.New("connection refused")
	svc, _ := newTestService(fs, date(2024, 1, 12))

	sw := NewSweeper(svc, time.Millisecond)
	sw.Start()
	time.Sleep(20 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		sw.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}
