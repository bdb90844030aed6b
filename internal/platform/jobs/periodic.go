package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one run of a periodic job. It reports how many items it handled.
type Task func(ctx context.Context) (int, error)

// Periodic runs a Task on a fixed interval in its own goroutine until Stop.
type Periodic struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	task     Task
	log      *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPeriodic prepares a job; each run gets timeout (a minute when zero) to finish.
func NewPeriodic(name string, interval, timeout time.Duration, task Task, logger *zap.Logger) *Periodic {
	if timeout <= 0 {
		timeout = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Periodic{name: name, interval: interval, timeout: timeout, task: task, log: logger.With(zap.String("job", name))}
}

// Start launches the loop. The first run happens one interval after Start.
func (p *Periodic) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	ticker := time.NewTicker(p.interval)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.runOnce(ctx)
			}
		}
	}()
}

// Stop cancels an in-flight run and waits for the loop to exit.
func (p *Periodic) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Periodic) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	n, err := p.task(runCtx)
	switch {
	case err != nil:
		p.log.Error("job run failed", zap.Error(err))
	case n > 0:
		p.log.Info("job run completed", zap.Int("count", n))
	}
}
