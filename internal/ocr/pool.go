package ocr

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joseph-ayodele/orderproof/constants"
	"github.com/joseph-ayodele/orderproof/internal/common"
)

// Handle is an engine checked out of a Pool.
type Handle struct {
	id        uint64
	engine    Engine
	ephemeral bool
	disposed  atomic.Bool
}

// ID identifies the handle in logs.
func (h *Handle) ID() uint64 { return h.id }

// Engine exposes the underlying engine to the holder.
func (h *Handle) Engine() Engine { return h.engine }

// Ephemeral reports whether the handle was created because the pool was empty.
func (h *Handle) Ephemeral() bool { return h.ephemeral }

// PoolStats is a point-in-time view of the pool.
type PoolStats struct {
	Capacity int
	Idle     int
	Created  uint64
	Disposed uint64
	Closed   bool
}

// Pool keeps up to Capacity recognition engines warm. Acquire never waits on
// exhaustion: a miss creates a throwaway handle that Release disposes of once
// the pool is full again.
type Pool struct {
	factory Factory
	size    int
	timeout time.Duration
	logger  *slog.Logger

	initOnce sync.Once

	mu     sync.Mutex
	idle   []*Handle
	closed bool

	nextID   atomic.Uint64
	created  atomic.Uint64
	disposed atomic.Uint64
}

// PoolOption customizes a Pool.
type PoolOption func(*Pool)

func WithPoolSize(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.size = n
		}
	}
}

func WithRecognitionTimeout(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func NewPool(factory Factory, logger *slog.Logger, opts ...PoolOption) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		factory: factory,
		size:    constants.DefaultPoolSize,
		timeout: constants.DefaultRecognitionTimeout,
		logger:  logger,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// warm creates the initial handles in parallel. Failures are logged; the pool
// then simply starts smaller and grows through ephemeral handles.
func (p *Pool) warm() {
	start := time.Now()
	var wg sync.WaitGroup
	handles := make([]*Handle, p.size)
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := p.newHandle(false)
			if err != nil {
				p.logger.Warn("ocr.pool.warm.failed", "slot", i, "error", err)
				return
			}
			handles[i] = h
		}(i)
	}
	wg.Wait()

	p.mu.Lock()
	closed := p.closed
	if !closed {
		for _, h := range handles {
			if h != nil && len(p.idle) < p.size {
				p.idle = append(p.idle, h)
			}
		}
	}
	p.mu.Unlock()

	if closed {
		for _, h := range handles {
			if h != nil {
				p.dispose(h)
			}
		}
	}
	p.logger.Info("ocr.pool.warm", "size", p.size, "elapsed_ms", time.Since(start).Milliseconds())
}

func (p *Pool) newHandle(ephemeral bool) (*Handle, error) {
	eng, err := p.factory()
	if err != nil {
		return nil, common.ExternalError("OCR_ENGINE_INIT", "create recognition engine", err)
	}
	p.created.Add(1)
	return &Handle{id: p.nextID.Add(1), engine: eng, ephemeral: ephemeral}, nil
}

// Acquire returns an idle handle, or a new ephemeral one when none is idle.
// The first call blocks while the pool warms up.
func (p *Pool) Acquire(ctx context.Context) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, common.ErrPoolClosed
	}

	p.initOnce.Do(p.warm)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, common.ErrPoolClosed
	}
	if n := len(p.idle); n > 0 {
		h := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return h, nil
	}
	p.mu.Unlock()

	h, err := p.newHandle(true)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("ocr.pool.ephemeral", "handle_id", h.id)
	return h, nil
}

// Release returns h to the pool, or disposes of it when the pool is full or
// shut down. Releasing a disposed handle does nothing.
func (p *Pool) Release(h *Handle) {
	if h == nil || h.disposed.Load() {
		return
	}
	p.mu.Lock()
	if !p.closed && len(p.idle) < p.size && !p.isIdle(h) {
		p.idle = append(p.idle, h)
		p.mu.Unlock()
		return
	}
	already := p.isIdle(h)
	p.mu.Unlock()
	if !already {
		p.dispose(h)
	}
}

// caller holds p.mu
func (p *Pool) isIdle(h *Handle) bool {
	for _, x := range p.idle {
		if x == h {
			return true
		}
	}
	return false
}

func (p *Pool) dispose(h *Handle) {
	if !h.disposed.CompareAndSwap(false, true) {
		return
	}
	p.disposed.Add(1)
	if err := h.engine.Close(); err != nil {
		p.logger.Warn("ocr.pool.dispose.failed", "handle_id", h.id, "error", err)
	}
}

// Recognize runs one recognition pass on a pooled handle, bounded by the pool's
// recognition timeout. A handle whose call timed out is disposed once the
// engine returns and never goes back to the pool.
func (p *Pool) Recognize(ctx context.Context, img []byte, mode PageSegMode) (string, error) {
	h, err := p.Acquire(ctx)
	if err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		if err := h.engine.SetPageSegMode(mode); err != nil {
			done <- result{err: err}
			return
		}
		text, err := h.engine.Recognize(callCtx, img)
		done <- result{text: text, err: err}
	}()

	select {
	case r := <-done:
		p.Release(h)
		if r.err != nil {
			return "", common.ExternalError("OCR_FAILED", "recognition failed", r.err)
		}
		return Normalize(r.text), nil
	case <-callCtx.Done():
		go func() {
			<-done
			p.dispose(h)
		}()
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		p.logger.Warn("ocr.recognize.timeout", "handle_id", h.id, "timeout_ms", p.timeout.Milliseconds())
		return "", common.TimeoutError("OCR_TIMEOUT", "recognition timed out after "+p.timeout.String())
	}
}

// Shutdown disposes of every idle handle and makes later releases dispose too.
// Safe to call more than once.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, h := range idle {
		p.dispose(h)
	}
	p.logger.Info("ocr.pool.shutdown", "disposed", len(idle))
}

// Capacity is the maximum number of retained handles.
func (p *Pool) Capacity() int { return p.size }

func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Capacity: p.size,
		Idle:     len(p.idle),
		Created:  p.created.Load(),
		Disposed: p.disposed.Load(),
		Closed:   p.closed,
	}
}
