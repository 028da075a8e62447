package ocr

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/orderproof/internal/common"
)

type fakeEngine struct {
	text   string
	err    error
	delay  time.Duration
	psm    PageSegMode
	closed atomic.Bool
}

func (f *fakeEngine) SetPageSegMode(mode PageSegMode) error { f.psm = mode; return nil }

func (f *fakeEngine) Recognize(_ context.Context, _ []byte) (string, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.text, f.err
}

func (f *fakeEngine) Close() error { f.closed.Store(true); return nil }

type engineLog struct {
	mu      sync.Mutex
	engines []*fakeEngine
}

func (l *engineLog) factory(proto *fakeEngine) Factory {
	return func() (Engine, error) {
		e := &fakeEngine{text: proto.text, err: proto.err, delay: proto.delay}
		l.mu.Lock()
		l.engines = append(l.engines, e)
		l.mu.Unlock()
		return e, nil
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPool_WarmsLazily(t *testing.T) {
	var log engineLog
	p := NewPool(log.factory(&fakeEngine{}), quietLogger(), WithPoolSize(2))

	assert.Equal(t, uint64(0), p.Stats().Created)

	h, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, h.Ephemeral())
	st := p.Stats()
	assert.Equal(t, uint64(2), st.Created)
	assert.Equal(t, 1, st.Idle)
	p.Release(h)
	assert.Equal(t, 2, p.Stats().Idle)
}

func TestPool_NeverRetainsMoreThanCapacity(t *testing.T) {
	for _, size := range []int{1, 2, 4} {
		var log engineLog
		p := NewPool(log.factory(&fakeEngine{}), quietLogger(), WithPoolSize(size))

		var held []*Handle
		for i := 0; i < size+1; i++ {
			h, err := p.Acquire(context.Background())
			require.NoError(t, err)
			held = append(held, h)
		}
		assert.True(t, held[size].Ephemeral(), "size %d: extra handle must be ephemeral", size)

		for _, h := range held {
			p.Release(h)
		}
		st := p.Stats()
		assert.Equal(t, size, st.Idle, "size %d", size)
		assert.Equal(t, uint64(1), st.Disposed, "size %d", size)
	}
}

func TestPool_ReleaseIsIdempotent(t *testing.T) {
	var log engineLog
	p := NewPool(log.factory(&fakeEngine{}), quietLogger(), WithPoolSize(1))

	h, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(h)
	p.Release(h)
	assert.Equal(t, 1, p.Stats().Idle)
}

func TestPool_ShutdownDisposesAndRejects(t *testing.T) {
	var log engineLog
	p := NewPool(log.factory(&fakeEngine{}), quietLogger(), WithPoolSize(2))

	h, err := p.Acquire(context.Background())
	require.NoError(t, err)

	p.Shutdown()
	p.Shutdown()

	st := p.Stats()
	assert.True(t, st.Closed)
	assert.Equal(t, 0, st.Idle)

	// a handle held across shutdown is disposed on release
	p.Release(h)
	assert.Equal(t, uint64(2), p.Stats().Disposed)
	for _, e := range log.engines {
		assert.True(t, e.closed.Load())
	}

	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, common.ErrPoolClosed)
}

func TestPool_RecognizeNormalizesText(t *testing.T) {
	var log engineLog
	p := NewPool(log.factory(&fakeEngine{text: "Order ID:\t408-1234567-7654321\r\n\r\n\r\n\r\nTotal  ₹1,499"}), quietLogger(), WithPoolSize(1))

	text, err := p.Recognize(context.Background(), []byte("img"), PSMSparseText)
	require.NoError(t, err)
	assert.Equal(t, "Order ID: 408-1234567-7654321\n\nTotal ₹1,499", text)
	assert.Equal(t, PSMSparseText, log.engines[0].psm)
}

func TestPool_RecognizeTimeoutDisposesHandle(t *testing.T) {
	var log engineLog
	p := NewPool(log.factory(&fakeEngine{text: "late", delay: 200 * time.Millisecond}), quietLogger(),
		WithPoolSize(1), WithRecognitionTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := p.Recognize(context.Background(), []byte("img"), PSMAuto)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrTimeout)
	assert.Less(t, time.Since(start), 150*time.Millisecond)

	assert.Eventually(t, func() bool { return p.Stats().Disposed == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, p.Stats().Idle)
}

func TestPool_RecognizeEngineError(t *testing.T) {
	var log engineLog
	p := NewPool(log.factory(&fakeEngine{err: errors.New("bad image")}), quietLogger(), WithPoolSize(1))

	_, err := p.Recognize(context.Background(), []byte("img"), PSMAuto)
	require.Error(t, err)
	assert.Equal(t, common.KindExternal, common.KindOf(err))
	assert.Equal(t, 1, p.Stats().Idle)
}

func TestPool_ConcurrentUse(t *testing.T) {
	var log engineLog
	p := NewPool(log.factory(&fakeEngine{text: "ok", delay: 5 * time.Millisecond}), quietLogger(), WithPoolSize(2))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			text, err := p.Recognize(context.Background(), []byte("img"), PSMAuto)
			assert.NoError(t, err)
			assert.Equal(t, "ok", text)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, p.Stats().Idle, 2)
}
