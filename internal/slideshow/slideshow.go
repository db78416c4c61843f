// Package slideshow drives the automatic advance of the lightbox.
package slideshow

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"photogallery/internal/logging"
)

// DefaultPeriod is the period, in seconds, used when none is configured.
const DefaultPeriod = 5

// ErrInvalidPeriod is returned for periods that are not positive whole seconds.
var ErrInvalidPeriod = errors.New("invalid slideshow period")

// ParsePeriod converts user input into a period in seconds.
func ParsePeriod(input string) (int, error) {
	s := strings.TrimSpace(input)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a whole number of seconds", ErrInvalidPeriod, s)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPeriod, n)
	}
	return n, nil
}

// Timer fires a tick callback every period while running. At most one
// ticker is live per Timer: Start always stops the previous one first.
type Timer struct {
	clock  clock.WithTicker
	onTick func(gen uint64)
	log    *slog.Logger

	mu     sync.Mutex
	gen    uint64
	done   chan struct{}
	period int
}

// NewTimer creates a stopped Timer. onTick runs on the timer's goroutine and
// receives the generation of the start that produced it; see Live.
func NewTimer(clk clock.WithTicker, onTick func(gen uint64), log *slog.Logger) *Timer {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Timer{
		clock:  clk,
		onTick: onTick,
		log:    logging.OrDiscard(log),
	}
}

// Start stops any running ticker and, if periodSeconds is positive, starts a
// new one. An invalid period leaves the timer stopped and returns
// ErrInvalidPeriod.
func (t *Timer) Start(periodSeconds int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	if periodSeconds <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPeriod, periodSeconds)
	}

	t.gen++
	t.period = periodSeconds
	done := make(chan struct{})
	t.done = done
	ticker := t.clock.NewTicker(time.Duration(periodSeconds) * time.Second)
	go t.run(t.gen, ticker, done)

	t.log.Debug("slideshow started", slog.Int("period", periodSeconds), slog.Uint64("gen", t.gen))
	return nil
}

func (t *Timer) run(gen uint64, ticker clock.Ticker, done <-chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C():
			select {
			case <-done:
				return
			default:
			}
			t.onTick(gen)
		}
	}
}

// Stop cancels the running ticker. It returns without waiting for a tick
// already in flight; such a tick carries a generation for which Live
// reports false. Stopping a stopped timer is a no-op.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Timer) stopLocked() {
	if t.done == nil {
		return
	}
	close(t.done)
	t.done = nil
	t.period = 0
	t.gen++
	t.log.Debug("slideshow stopped")
}

// Running reports whether a ticker is live.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done != nil
}

// Period returns the period of the live ticker in seconds, or 0 when stopped.
func (t *Timer) Period() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.period
}

// Live reports whether gen belongs to the ticker that is currently running.
func (t *Timer) Live(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done != nil && gen == t.gen
}
