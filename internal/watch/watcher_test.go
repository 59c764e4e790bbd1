package watch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubSource struct {
	mu   sync.Mutex
	ch   chan Batch
	subs int
}

func newStubSource() *stubSource {
	return &stubSource{ch: make(chan Batch, 16)}
}

func (s *stubSource) Subscribe(ctx context.Context) (<-chan Batch, func(), error) {
	s.mu.Lock()
	s.subs++
	s.mu.Unlock()
	return s.ch, func() {}, nil
}

func (s *stubSource) subscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs
}

func countingCheck(counter *int32, found bool) CheckFunc {
	return func(ctx context.Context) bool {
		atomic.AddInt32(counter, 1)
		return found
	}
}

func TestWatcher_ImmediateCheckOnStart(t *testing.T) {
	var checks int32
	src := newStubSource()
	w := New(src, countingCheck(&checks, true), Config{Debounce: 20 * time.Millisecond}, nil)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.Equal(t, int32(1), atomic.LoadInt32(&checks), "the grid may already exist on a plain page load")
}

func TestWatcher_CoalescesBurst(t *testing.T) {
	var checks int32
	src := newStubSource()
	w := New(src, countingCheck(&checks, true), Config{Debounce: 50 * time.Millisecond}, nil)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	// A burst of structural batches inside the debounce window.
	for i := 0; i < 5; i++ {
		src.ch <- Batch{{Kind: KindChildList}}
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(150 * time.Millisecond)

	// One immediate check at start plus exactly one for the whole burst.
	assert.Equal(t, int32(2), atomic.LoadInt32(&checks))
}

func TestWatcher_IgnoresNonStructuralBatches(t *testing.T) {
	var checks int32
	src := newStubSource()
	w := New(src, countingCheck(&checks, true), Config{Debounce: 20 * time.Millisecond}, nil)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	src.ch <- Batch{{Kind: KindAttributes}}
	src.ch <- Batch{{Kind: KindCharacterData}, {Kind: KindAttributes}}

	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&checks), "attribute/text batches must not trigger checks")
}

func TestWatcher_MixedBatchIsRelevant(t *testing.T) {
	var checks int32
	src := newStubSource()
	w := New(src, countingCheck(&checks, true), Config{Debounce: 20 * time.Millisecond}, nil)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	src.ch <- Batch{{Kind: KindAttributes}, {Kind: KindChildList}}

	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, int32(2), atomic.LoadInt32(&checks))
}

func TestWatcher_StartIsIdempotent(t *testing.T) {
	var checks int32
	src := newStubSource()
	w := New(src, countingCheck(&checks, true), Config{}, nil)

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.Equal(t, 1, src.subscriptions(), "second Start must be a no-op")
	assert.Equal(t, int32(1), atomic.LoadInt32(&checks))
}

func TestWatcher_RestartAfterStop(t *testing.T) {
	var checks int32
	src := newStubSource()
	w := New(src, countingCheck(&checks, true), Config{}, nil)

	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	assert.False(t, w.Running())

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.True(t, w.Running())
	assert.Equal(t, 2, src.subscriptions())
	assert.Equal(t, int32(2), atomic.LoadInt32(&checks))
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	src := newStubSource()
	w := New(src, countingCheck(new(int32), true), Config{}, nil)

	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
	assert.False(t, w.Running())
}

func TestWatcher_GivesUpWhenGridNeverAppears(t *testing.T) {
	var checks int32
	src := newStubSource()
	w := New(src, countingCheck(&checks, false), Config{
		Debounce:    10 * time.Millisecond,
		GiveUpAfter: 40 * time.Millisecond,
	}, nil)

	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.Running())

	time.Sleep(150 * time.Millisecond)

	assert.False(t, w.Running(), "watcher must tear itself down after the give-up window")
	w.Stop() // safe after self-teardown
}

func TestWatcher_GiveUpSkippedOnceGridFound(t *testing.T) {
	var checks int32
	src := newStubSource()
	w := New(src, countingCheck(&checks, true), Config{
		Debounce:    10 * time.Millisecond,
		GiveUpAfter: 40 * time.Millisecond,
	}, nil)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	time.Sleep(150 * time.Millisecond)

	assert.True(t, w.Running(), "a found grid must keep the watcher alive")
}

func TestWatcher_PokeSchedulesCheck(t *testing.T) {
	var checks int32
	src := newStubSource()
	w := New(src, countingCheck(&checks, true), Config{Debounce: 20 * time.Millisecond}, nil)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	w.Poke(context.Background())
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, int32(2), atomic.LoadInt32(&checks))
}

func TestWatcher_NoChecksAfterStop(t *testing.T) {
	var checks int32
	src := newStubSource()
	w := New(src, countingCheck(&checks, true), Config{Debounce: 20 * time.Millisecond}, nil)

	require.NoError(t, w.Start(context.Background()))
	w.Stop()

	w.Poke(context.Background())
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&checks), "a stopped watcher must not schedule checks")
}

func TestWatcher_CheckRacingStopIsDropped(t *testing.T) {
	var checks int32
	src := newStubSource()
	w := New(src, countingCheck(&checks, true), Config{Debounce: 20 * time.Millisecond}, nil)

	require.NoError(t, w.Start(context.Background()))
	w.Stop()

	// A debounce callback that fired just before Stop cancelled its timer
	// can still run after Stop has returned, holding a context that was
	// never cancelled. It must find the watcher stopped and bail out.
	w.runCheck(context.Background())

	assert.Equal(t, int32(1), atomic.LoadInt32(&checks), "no check may execute once Stop has returned")
}
