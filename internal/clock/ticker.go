package clock

import (
	"sync"
	"time"
)

// Ticker runs a callback at a fixed interval until stopped. A stopped
// ticker never invokes the callback again.
type Ticker struct {
	interval time.Duration

	mu     sync.Mutex
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewTicker returns an idle ticker. A non-positive interval means one second.
func NewTicker(interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = time.Second
	}
	return &Ticker{interval: interval}
}

// Start begins ticking. Calling Start on a running ticker restarts it.
func (t *Ticker) Start(fn func()) {
	t.Stop()

	t.mu.Lock()
	stop := make(chan struct{})
	t.stopCh = stop
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		tk := time.NewTicker(t.interval)
		defer tk.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tk.C:
				select {
				case <-stop:
					return
				default:
				}
				fn()
			}
		}
	}()
}

// Stop halts the ticker. It is safe to call repeatedly and from inside the
// callback.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopCh == nil {
		return
	}
	close(t.stopCh)
	t.stopCh = nil
}

// Running reports whether Start has been called without a matching Stop.
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopCh != nil
}

// Wait blocks until the tick goroutine has exited. It must not be called
// from inside the callback.
func (t *Ticker) Wait() {
	t.wg.Wait()
}
