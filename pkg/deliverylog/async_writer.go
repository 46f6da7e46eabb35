package deliverylog

import (
	"context"
	"sync"
	"time"
)

// AsyncOptions tunes AsyncWriter batching.
type AsyncOptions struct {
	BufferSize     int           // queued appends before callers fall back to a direct write
	BatchSize      int           // entries per flush
	BatchTimeout   time.Duration // max wait for a partial batch
	StorageTimeout time.Duration // per-flush storage timeout
}

type pendingAppend struct {
	entries []Entry
	result  chan error
}

// AsyncWriter batches appends into fewer storage calls. Append blocks until
// the batch holding its entries is flushed. Query goes straight to storage.
type AsyncWriter struct {
	storage Storage
	queue   chan pendingAppend
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	opts    AsyncOptions
}

// NewAsyncWriter starts the flushing goroutine. Call Close to drain it.
func NewAsyncWriter(storage Storage, opts AsyncOptions) *AsyncWriter {
	if storage == nil {
		panic("deliverylog: storage cannot be nil")
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = 100 * time.Millisecond
	}
	if opts.StorageTimeout <= 0 {
		opts.StorageTimeout = 5 * time.Second
	}

	w := &AsyncWriter{
		storage: storage,
		queue:   make(chan pendingAppend, opts.BufferSize),
		done:    make(chan struct{}),
		opts:    opts,
	}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *AsyncWriter) Append(ctx context.Context, entries ...Entry) error {
	for i := range entries {
		if err := entries[i].Validate(); err != nil {
			return err
		}
	}
	select {
	case <-w.done:
		return ErrStorageNotAvailable
	default:
	}

	result := make(chan error, 1)
	select {
	case w.queue <- pendingAppend{entries: entries, result: result}:
	case <-ctx.Done():
		return ctx.Err()
	case <-w.done:
		return ErrStorageNotAvailable
	default:
		// Queue full: write through so no entry is lost.
		return w.storage.Append(ctx, entries...)
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *AsyncWriter) Query(ctx context.Context, c Criteria) ([]Entry, error) {
	return w.storage.Query(ctx, c)
}

func (w *AsyncWriter) run() {
	defer w.wg.Done()

	batch := make([]Entry, 0, w.opts.BatchSize)
	waiting := make([]chan error, 0, w.opts.BatchSize)
	ticker := time.NewTicker(w.opts.BatchTimeout)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Detached from caller contexts.
		ctx, cancel := context.WithTimeout(context.Background(), w.opts.StorageTimeout)
		err := w.storage.Append(ctx, batch...)
		cancel()
		for _, ch := range waiting {
			ch <- err
		}
		clear(batch)
		batch = batch[:0]
		waiting = waiting[:0]
	}
	add := func(p pendingAppend) {
		batch = append(batch, p.entries...)
		waiting = append(waiting, p.result)
		if len(batch) >= w.opts.BatchSize {
			flush()
		}
	}

	for {
		select {
		case p := <-w.queue:
			add(p)
		case <-ticker.C:
			flush()
		case <-w.done:
			for {
				select {
				case p := <-w.queue:
					add(p)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close stops accepting appends and flushes what is queued. ctx bounds the
// wait.
func (w *AsyncWriter) Close(ctx context.Context) error {
	w.once.Do(func() { close(w.done) })

	flushed := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(flushed)
	}()
	select {
	case <-flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
