package movements

import (
	"context"
	"log"
	"time"
)

// Sweeper periodically reclassifies pending movements past their due date.
// 単一goroutineで回すため自分自身と並行実行されることはない。
// データアクセスエラーはログに残して次のtickで再試行する（プロセスは落とさない）。
type Sweeper struct {
	svc      *Service
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func NewSweeper(svc *Service, interval time.Duration) *Sweeper {
	return &Sweeper{
		svc:      svc,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	go s.run()
}

func (s *Sweeper) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.svc.SweepOverdue(ctx, s.svc.clock.Now())
	if err != nil {
		log.Printf("[WARN] overdue sweep failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[INFO] overdue sweep flagged %d movement(s) as LATE", n)
	}
}

// Stop terminates the loop and waits for the in-flight sweep to finish.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}
