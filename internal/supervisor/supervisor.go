// Package supervisor runs the gateway's task set, restarting restartable
// tasks on error and shutting every task down together on signal.
package supervisor

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fincubator/bitshares-gateway/pkg/logging"
)

// Task is one unit of supervised work. It must return promptly once ctx is
// cancelled.
type Task struct {
	Name       string
	Run        func(ctx context.Context) error
	Restart    bool          // restartable tasks are re-spawned on error
	BackoffMin time.Duration // initial restart delay
	BackoffMax time.Duration // restart delay ceiling
}

// crashStats tracks a task's restart history for diagnostics and the health
// endpoint.
type crashStats struct {
	mu        sync.Mutex
	count     int
	lastError error
	alive     bool
}

// Supervisor owns the task set and the root cancellation context.
type Supervisor struct {
	log   *logging.Logger
	tasks []Task

	mu    sync.Mutex
	stats map[string]*crashStats
	wg    sync.WaitGroup
}

// New builds a Supervisor.
func New(log *logging.Logger) *Supervisor {
	return &Supervisor{log: log.Component("supervisor"), stats: make(map[string]*crashStats)}
}

// Add registers a task. Must be called before Run.
func (s *Supervisor) Add(t Task) {
	if t.BackoffMin == 0 {
		t.BackoffMin = 500 * time.Millisecond
	}
	if t.BackoffMax == 0 {
		t.BackoffMax = 30 * time.Second
	}
	s.tasks = append(s.tasks, t)
	s.stats[t.Name] = &crashStats{}
}

// Run starts every task and blocks until a signal arrives or ctx is
// cancelled, then cancels all tasks and waits for them all to return.
func (s *Supervisor) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for _, t := range s.tasks {
		s.wg.Add(1)
		go s.supervise(runCtx, t)
	}

	select {
	case sig := <-sigCh:
		s.log.Info("received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
		s.log.Info("context cancelled, shutting down")
	}

	cancel()
	s.wg.Wait()
	s.log.Info("all tasks stopped")
	return nil
}

// supervise runs t, restarting it with exponential backoff while t.Restart
// is true and runCtx is still live.
func (s *Supervisor) supervise(runCtx context.Context, t Task) {
	defer s.wg.Done()

	stats := s.stats[t.Name]

	backoff := t.BackoffMin
	for {
		stats.mu.Lock()
		stats.alive = true
		stats.mu.Unlock()

		err := t.Run(runCtx)

		stats.mu.Lock()
		stats.alive = false
		stats.mu.Unlock()

		if runCtx.Err() != nil {
			return // shutting down; not a crash
		}
		if err == nil {
			s.log.Info("task exited cleanly", "task", t.Name)
			return
		}

		stats.mu.Lock()
		stats.count++
		stats.lastError = err
		crashes := stats.count
		stats.mu.Unlock()

		s.log.Error("task failed", "task", t.Name, "err", err, "crashes", crashes, "restart", t.Restart)
		if !t.Restart {
			return
		}

		select {
		case <-runCtx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > t.BackoffMax {
			backoff = t.BackoffMax
		}
	}
}

// Crashes reports how many times name has restarted, for diagnostics.
func (s *Supervisor) Crashes(name string) int {
	stats, ok := s.stats[name]
	if !ok {
		return 0
	}
	stats.mu.Lock()
	defer stats.mu.Unlock()
	return stats.count
}

// IsAlive reports whether name's task is currently running, for the health
// endpoint.
func (s *Supervisor) IsAlive(name string) bool {
	stats, ok := s.stats[name]
	if !ok {
		return false
	}
	stats.mu.Lock()
	defer stats.mu.Unlock()
	return stats.alive
}
