package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

const DefaultRefreshInterval = 5 * time.Minute

// Reloader is refreshed on every tick; gallery.Cache satisfies it.
type Reloader interface {
	Reload(ctx context.Context) error
}

// CacheRefresher periodically reloads the signature cache so replicas that
// missed an enrollment event converge within one interval.
type CacheRefresher struct {
	scheduler *gocron.Scheduler
	reloader  Reloader
	interval  time.Duration
	timeout   time.Duration

	mu      sync.Mutex
	running bool
	lastRun time.Time
	lastErr error
}

func NewCacheRefresher(reloader Reloader, interval time.Duration) *CacheRefresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	return &CacheRefresher{
		scheduler: s,
		reloader:  reloader,
		interval:  interval,
		timeout:   30 * time.Second,
	}
}

// Start schedules the refresh job. The first run happens one interval from now.
func (r *CacheRefresher) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}
	if _, err := r.scheduler.Every(r.interval).WaitForSchedule().Do(r.refresh); err != nil {
		return fmt.Errorf("schedule cache refresh: %w", err)
	}
	r.scheduler.StartAsync()
	r.running = true
	slog.Info("cache refresher started", "interval", r.interval)
	return nil
}

func (r *CacheRefresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	r.scheduler.Stop()
	r.scheduler.Clear()
	r.running = false
	slog.Info("cache refresher stopped")
}

// LastRun reports when the last refresh finished and its error.
func (r *CacheRefresher) LastRun() (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRun, r.lastErr
}

func (r *CacheRefresher) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	err := r.reloader.Reload(ctx)
	if err != nil {
		slog.Error("scheduled cache refresh failed", "error", err)
	}

	r.mu.Lock()
	r.lastRun = time.Now()
	r.lastErr = err
	r.mu.Unlock()
}
