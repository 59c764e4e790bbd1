// Package watch notices when the calendar grid appears or is replaced in a
// page that mutates its DOM without full loads, and funnels bursts of
// structural mutations into single realignment checks.
package watch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultDebounce is the trailing delay applied to mutation bursts.
const DefaultDebounce = 50 * time.Millisecond

// Kind classifies a DOM mutation record.
type Kind int

const (
	// KindChildList marks structural changes: nodes added or removed.
	KindChildList Kind = iota
	// KindAttributes marks attribute edits elsewhere in the page.
	KindAttributes
	// KindCharacterData marks text edits elsewhere in the page.
	KindCharacterData
)

// Mutation is one observed DOM change.
type Mutation struct {
	Kind Kind
}

// Batch is one delivery of mutation records.
type Batch []Mutation

// structural reports whether the batch contains at least one child-list
// change. Pure attribute/text batches are not worth a re-check.
func (b Batch) structural() bool {
	for _, m := range b {
		if m.Kind == KindChildList {
			return true
		}
	}
	return false
}

// Source delivers mutation batches for the whole document subtree.
type Source interface {
	// Subscribe starts delivery. The returned cancel function stops
	// delivery and releases the subscription.
	Subscribe(ctx context.Context) (<-chan Batch, func(), error)
}

// CheckFunc locates the grid and realigns it if needed. It reports whether
// the grid was found at all, corrected or not.
type CheckFunc func(ctx context.Context) bool

// Config tunes a Watcher.
type Config struct {
	// Debounce is the trailing delay for coalescing mutation bursts.
	// Zero means DefaultDebounce.
	Debounce time.Duration
	// GiveUpAfter tears the watcher down if no grid has ever been found
	// within the window. Zero keeps the watcher alive for the life of
	// the page, which is the safer choice on hosts whose navigation may
	// not emit a qualifying mutation in time.
	GiveUpAfter time.Duration
}

func (c Config) debounce() time.Duration {
	if c.Debounce <= 0 {
		return DefaultDebounce
	}
	return c.Debounce
}

// Watcher owns one subscription to a mutation source. It is an explicit
// handle: independent instances do not share state and a stopped watcher
// can be started again.
type Watcher struct {
	cfg   Config
	src   Source
	check CheckFunc
	log   *zap.Logger

	// checkMu serializes check runs so two mutation batches from this
	// watcher can never interleave their structural edits.
	checkMu sync.Mutex

	mu      sync.Mutex
	running bool
	found   bool
	cancel  context.CancelFunc
	unsub   func()
	deb     *Debouncer
	giveUp  *time.Timer
	done    chan struct{}
}

// New creates a watcher over src that runs check for every coalesced burst
// of structural mutations. A nil logger disables logging.
func New(src Source, check CheckFunc, cfg Config, log *zap.Logger) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		cfg:   cfg,
		src:   src,
		check: check,
		log:   log.Named("watch"),
	}
}

// Start subscribes and runs one immediate check, covering the case where
// the grid already exists on a plain full page load. Calling Start while
// the watcher is running is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	ch, unsub, err := w.src.Subscribe(ctx)
	if err != nil {
		cancel()
		w.mu.Unlock()
		return err
	}
	w.running = true
	w.found = false
	w.cancel = cancel
	w.unsub = unsub
	w.deb = NewDebouncer(w.cfg.debounce())
	w.done = make(chan struct{})
	if w.cfg.GiveUpAfter > 0 {
		w.giveUp = time.AfterFunc(w.cfg.GiveUpAfter, w.giveUpIfIdle)
	}
	done := w.done
	w.mu.Unlock()

	w.runCheck(ctx)

	go w.loop(ctx, ch, done)
	return nil
}

// Stop tears down the subscription, cancels any pending debounced check and
// waits for the delivery loop to exit. It is safe to call more than once
// and safe to call concurrently with a firing timer.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel, unsub, deb, giveUp, done := w.cancel, w.unsub, w.deb, w.giveUp, w.done
	w.cancel, w.unsub, w.deb, w.giveUp, w.done = nil, nil, nil, nil, nil
	w.mu.Unlock()

	if giveUp != nil {
		giveUp.Stop()
	}
	if deb != nil {
		deb.Cancel()
	}
	cancel()
	if unsub != nil {
		unsub()
	}
	<-done
}

// Running reports whether the watcher currently holds a subscription.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Poke schedules a check through the usual debounce path, for callers that
// learn about a page change out of band, such as a history navigation.
func (w *Watcher) Poke(ctx context.Context) {
	w.scheduleCheck(ctx)
}

func (w *Watcher) loop(ctx context.Context, ch <-chan Batch, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-ch:
			if !ok {
				return
			}
			if !batch.structural() {
				continue
			}
			w.scheduleCheck(ctx)
		}
	}
}

func (w *Watcher) scheduleCheck(ctx context.Context) {
	w.mu.Lock()
	deb := w.deb
	w.mu.Unlock()
	if deb == nil {
		return
	}
	deb.Debounce(func() {
		w.runCheck(ctx)
	})
}

func (w *Watcher) runCheck(ctx context.Context) {
	if ctx.Err() != nil || w.check == nil {
		return
	}
	// A timer callback that fired just before Stop cancelled it may reach
	// here after Stop returned; a stopped watcher runs no checks.
	w.mu.Lock()
	running := w.running
	w.mu.Unlock()
	if !running {
		return
	}
	w.checkMu.Lock()
	found := w.check(ctx)
	w.checkMu.Unlock()
	if found {
		w.mu.Lock()
		w.found = true
		w.mu.Unlock()
	}
}

// giveUpIfIdle fires once after the give-up window. The user may have
// navigated onto a matching page since the timer was armed, so it re-checks
// state before tearing anything down.
func (w *Watcher) giveUpIfIdle() {
	w.mu.Lock()
	stale := w.running && !w.found
	w.mu.Unlock()
	if !stale {
		return
	}
	w.log.Info("no calendar grid within give-up window, stopping watcher")
	w.Stop()
}
