package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Dispatcher hands a job to whatever runs conversions.
type Dispatcher interface {
	Dispatch(ctx context.Context, id uuid.UUID) error
}

type Processor interface {
	Process(ctx context.Context, id uuid.UUID) error
}

// LocalDispatcher runs conversions in-process on a single goroutine, in the
// order they were dispatched. A job id that is already waiting is not queued
// twice.
type LocalDispatcher struct {
	proc     Processor
	requests chan uuid.UUID

	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}

	wg   sync.WaitGroup
	once sync.Once
}

func NewLocalDispatcher(proc Processor, buffer int) *LocalDispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	return &LocalDispatcher{
		proc:     proc,
		requests: make(chan uuid.UUID, buffer),
		inflight: make(map[uuid.UUID]struct{}),
	}
}

// Start runs the worker until ctx is canceled.
func (d *LocalDispatcher) Start(ctx context.Context) {
	d.once.Do(func() {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case id := <-d.requests:
					d.handle(ctx, id)
				}
			}
		}()
	})
}

func (d *LocalDispatcher) handle(ctx context.Context, id uuid.UUID) {
	defer func() {
		d.mu.Lock()
		delete(d.inflight, id)
		d.mu.Unlock()
	}()

	if err := d.proc.Process(ctx, id); err != nil {
		ReportError(err, id)
	}
}

func (d *LocalDispatcher) Dispatch(ctx context.Context, id uuid.UUID) error {
	d.mu.Lock()
	if _, ok := d.inflight[id]; ok {
		d.mu.Unlock()
		return nil
	}
	d.inflight[id] = struct{}{}
	d.mu.Unlock()

	select {
	case d.requests <- id:
		return nil
	case <-ctx.Done():
		d.mu.Lock()
		delete(d.inflight, id)
		d.mu.Unlock()
		return ctx.Err()
	}
}

// Wait blocks until the worker has exited.
func (d *LocalDispatcher) Wait() {
	d.wg.Wait()
}

// ReportError logs a processing failure and forwards it to Sentry. Jobs that
// were already handled are not reported.
func ReportError(err error, id uuid.UUID) {
	if errors.Is(err, ErrNotPending) || errors.Is(err, ErrNotFound) {
		log.Debug().Err(err).Str("job", id.String()).Msg("job skipped")
		return
	}
	log.Error().Err(err).Str("job", id.String()).Msg("job processing failed")
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("job_id", id.String())
		sentry.CaptureException(err)
	})
}
