package workflow

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"clipmill/internal/logging"
)

// startHeartbeat logs in-flight progress every s.heartbeat until the returned
// stop function is called.
func (s *Scheduler) startHeartbeat(logger *slog.Logger, done *atomic.Int64, pending int) func() {
	if s.heartbeat <= 0 {
		return func() {}
	}
	quit := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-quit:
				return
			case <-ticker.C:
				logger.Info("run heartbeat",
					logging.Int64("done", done.Load()),
					logging.Int("pending", pending),
					logging.Int("in_flight", s.InFlight()),
					logging.String(logging.FieldEventType, "run_heartbeat"),
				)
			}
		}
	}()
	return func() {
		close(quit)
		wg.Wait()
	}
}
