package track

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wemix/blockwait/internal/metrics"
	"github.com/wemix/blockwait/internal/source"
	"github.com/wemix/blockwait/pkg/logger"
)

const (
	// DefaultInterval is the polling interval used when none is
	// configured.
	DefaultInterval = 5 * time.Second

	// DefaultSubscriberBufferSize is the buffer size for subscriber
	// channels.
	DefaultSubscriberBufferSize = 10
)

// Snapshot is a point-in-time view of the tracked chain height.
type Snapshot struct {
	Height    int64     `json:"height"`
	UpdatedAt time.Time `json:"updated_at"`
	Source    string    `json:"source"`
}

// Tracker continuously polls a height source and fans observed heights
// out to subscribers. It backs the long-running watch mode, where the
// interesting signal is the stream of head updates rather than a single
// terminal outcome.
//
// All public methods are safe for concurrent use.
type Tracker struct {
	src      source.HeightSource
	logger   *logger.Logger
	recorder *metrics.Recorder

	pollInterval time.Duration

	// State protected by mu
	currentHeight int64
	updatedAt     time.Time
	started       bool
	mu            sync.RWMutex

	// Subscriber management protected by subMu
	subscribers []chan<- int64
	subMu       sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTracker creates a Tracker polling src every interval. An interval of
// zero or less selects DefaultInterval. The recorder may be nil.
func NewTracker(src source.HeightSource, interval time.Duration, log *logger.Logger, recorder *metrics.Recorder) *Tracker {
	ctx, cancel := context.WithCancel(context.Background())

	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Tracker{
		src:          src,
		logger:       log,
		recorder:     recorder,
		pollInterval: interval,
		subscribers:  make([]chan<- int64, 0),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start begins polling in a background goroutine. Starting an
// already-started tracker returns an error.
func (t *Tracker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.src == nil {
		return fmt.Errorf("height source is required")
	}
	if t.started {
		return fmt.Errorf("tracker already started")
	}
	t.started = true

	t.wg.Add(1)
	go t.trackLoop()

	return nil
}

// Stop stops the tracker and waits for the polling goroutine to exit.
// Safe to call more than once.
func (t *Tracker) Stop() {
	t.cancel()
	t.wg.Wait()
}

// Subscribe returns a channel receiving every observed height change.
//
// The channel is buffered; if a subscriber falls behind, updates to it
// are dropped rather than blocking the tracker.
func (t *Tracker) Subscribe() <-chan int64 {
	t.subMu.Lock()
	defer t.subMu.Unlock()

	ch := make(chan int64, DefaultSubscriberBufferSize)
	t.subscribers = append(t.subscribers, ch)

	return ch
}

// CurrentHeight returns the last observed height, or 0 before the first
// successful query.
func (t *Tracker) CurrentHeight() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.currentHeight
}

// Snapshot returns the current tracker state for status surfaces.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return Snapshot{
		Height:    t.currentHeight,
		UpdatedAt: t.updatedAt,
		Source:    t.src.Name(),
	}
}

func (t *Tracker) trackLoop() {
	defer t.wg.Done()

	// First observation happens immediately rather than one interval in.
	t.poll()

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			t.poll()
		}
	}
}

func (t *Tracker) poll() {
	height, err := t.src.CurrentHeight(t.ctx)
	if err != nil {
		if t.ctx.Err() != nil {
			return
		}
		if t.recorder != nil {
			t.recorder.RecordQuery(false)
		}
		t.logger.Warn("height query failed",
			zap.String("source", t.src.Name()),
			zap.Error(err))
		return
	}

	if t.recorder != nil {
		t.recorder.RecordQuery(true)
		t.recorder.SetCurrentHeight(height)
	}

	t.mu.Lock()
	if height == t.currentHeight {
		t.updatedAt = time.Now()
		t.mu.Unlock()
		return
	}
	oldHeight := t.currentHeight
	t.currentHeight = height
	t.updatedAt = time.Now()
	t.mu.Unlock()

	if t.recorder != nil {
		t.recorder.RecordHeightUpdate()
	}
	t.logger.Info("blockchain height updated",
		zap.Int64("old_height", oldHeight),
		zap.Int64("new_height", height))

	t.notifySubscribers(height)
}

// notifySubscribers sends a height update to every subscriber without
// blocking. Full channels drop the update with a warning.
func (t *Tracker) notifySubscribers(height int64) {
	t.subMu.RLock()
	defer t.subMu.RUnlock()

	for i, ch := range t.subscribers {
		select {
		case ch <- height:
		default:
			t.logger.Warn("subscriber channel full, dropping update",
				zap.Int("subscriber_index", i),
				zap.Int64("height", height))
		}
	}
}
