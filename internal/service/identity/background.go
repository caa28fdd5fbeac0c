package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// Background runs detached best-effort tasks. Submit never blocks: when the
// in-flight limit is reached the task is dropped and logged. Task errors and
// panics are logged and discarded; callers get no handle.
type Background struct {
	sem     *semaphore.Weighted
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewBackground returns a runner allowing maxInFlight concurrent tasks, each
// bounded by timeout.
func NewBackground(maxInFlight int, timeout time.Duration) *Background {
	if maxInFlight <= 0 {
		maxInFlight = 32
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Background{
		sem:     semaphore.NewWeighted(int64(maxInFlight)),
		timeout: timeout,
	}
}

// Submit schedules task under name. The task context is detached from ctx's
// cancellation but keeps its values.
func (b *Background) Submit(ctx context.Context, name string, task func(ctx context.Context) error) {
	if !b.sem.TryAcquire(1) {
		log.Warn().Str("component", "background").Str("task", name).Msg("background task dropped: too many in flight")
		return
	}
	b.wg.Add(1)
	taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	go func() {
		defer b.wg.Done()
		defer b.sem.Release(1)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("component", "background").Str("task", name).Str("panic", fmt.Sprint(r)).Msg("background task panicked")
			}
		}()
		if err := task(taskCtx); err != nil {
			log.Warn().Err(err).Str("component", "background").Str("task", name).Msg("background task failed")
		}
	}()
}

// Drain waits for in-flight tasks or until ctx is done.
func (b *Background) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
