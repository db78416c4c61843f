// Package lightbox implements the full-screen viewer: which image is
// current, how it changes, and when the slideshow runs.
package lightbox

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"photogallery/internal/gallery"
	"photogallery/internal/logging"
	"photogallery/internal/slideshow"
)

// DefaultFadeDelay is the pause between fading out and swapping the image.
const DefaultFadeDelay = 500 * time.Millisecond

var (
	ErrEmptyGallery    = errors.New("gallery is empty")
	ErrIndexOutOfRange = errors.New("image index out of range")
	errViewedImageGone = errors.New("viewed image was removed")
)

// Phase is the viewer state.
type Phase int

const (
	Closed Phase = iota
	Open
)

func (p Phase) String() string {
	switch p {
	case Closed:
		return "closed"
	case Open:
		return "open"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Sequence is the read side of the gallery the viewer navigates.
type Sequence interface {
	Len() int
	At(index int) (gallery.Image, bool)
	IndexOfID(id string) int
}

// Renderer draws the viewer. A transition calls FadeOut, then after the fade
// delay Show and FadeIn.
type Renderer interface {
	FadeOut()
	Show(img gallery.Image)
	FadeIn()
}

// Fullscreen is a best-effort presentation mode switch.
type Fullscreen interface {
	Enter()
	Exit()
}

type EventKind int

const (
	Opened EventKind = iota
	Navigated
	ClosedEvent
)

func (k EventKind) String() string {
	switch k {
	case Opened:
		return "opened"
	case Navigated:
		return "navigated"
	case ClosedEvent:
		return "closed"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event describes a state change. Index and Image are zero for ClosedEvent.
type Event struct {
	Kind  EventKind
	Index int
	Image gallery.Image
}

// Listener is called synchronously with the controller locked; it must not
// call back into the Controller.
type Listener func(Event)

type nopRenderer struct{}

func (nopRenderer) FadeOut()           {}
func (nopRenderer) Show(gallery.Image) {}
func (nopRenderer) FadeIn()            {}

type nopFullscreen struct{}

func (nopFullscreen) Enter() {}
func (nopFullscreen) Exit()  {}

// Option configures a Controller.
type Option func(*Controller)

func WithRenderer(r Renderer) Option { return func(c *Controller) { c.renderer = r } }

func WithFullscreen(f Fullscreen) Option { return func(c *Controller) { c.fullscreen = f } }

func WithListener(l Listener) Option { return func(c *Controller) { c.listener = l } }

func WithLogger(log *slog.Logger) Option { return func(c *Controller) { c.log = logging.OrDiscard(log) } }

// WithClock replaces the real clock for both the slideshow and the fade.
func WithClock(clk clock.WithTickerAndDelayedExecution) Option {
	return func(c *Controller) { c.clock = clk }
}

// WithFadeDelay sets the fade delay. Zero swaps images immediately.
func WithFadeDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d < 0 {
			d = 0
		}
		c.fadeDelay = d
	}
}

// WithPeriod sets the slideshow period in seconds. Zero disables the
// slideshow.
func WithPeriod(seconds int) Option {
	return func(c *Controller) {
		if seconds < 0 {
			seconds = 0
		}
		c.period = seconds
	}
}

// Controller is the lightbox state machine. All methods are safe for
// concurrent use.
type Controller struct {
	seq        Sequence
	renderer   Renderer
	fullscreen Fullscreen
	listener   Listener
	clock      clock.WithTickerAndDelayedExecution
	log        *slog.Logger
	fadeDelay  time.Duration
	timer      *slideshow.Timer

	mu         sync.Mutex
	phase      Phase
	currentID  string
	period     int
	transition uint64
}

// New returns a closed Controller navigating seq.
func New(seq Sequence, opts ...Option) *Controller {
	c := &Controller{
		seq:        seq,
		renderer:   nopRenderer{},
		fullscreen: nopFullscreen{},
		clock:      clock.RealClock{},
		log:        logging.Discard(),
		fadeDelay:  DefaultFadeDelay,
		period:     slideshow.DefaultPeriod,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.timer = slideshow.NewTimer(c.clock, c.tick, c.log)
	return c
}

// Open shows the image at index, enters full screen and starts the
// slideshow. On an empty gallery or an out of range index it does nothing
// and returns an error. Opening an open viewer moves it to index and
// restarts the slideshow.
func (c *Controller) Open(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.seq.Len()
	if n == 0 {
		return ErrEmptyGallery
	}
	img, ok := c.seq.At(index)
	if !ok {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, index, n)
	}

	wasOpen := c.phase == Open
	c.phase = Open
	c.currentID = img.ID
	c.transitionLocked(img)
	if !wasOpen {
		c.fullscreen.Enter()
	}
	c.startTimerLocked()

	c.log.Debug("lightbox opened", slog.Int("index", index), slog.String("id", img.ID))
	c.emit(Event{Kind: Opened, Index: index, Image: img})
	return nil
}

// Next shows the following image, wrapping at the end. Manual navigation
// stops the slideshow.
func (c *Controller) Next() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timer.Stop()
	c.navigateLocked(+1)
}

// Prev shows the preceding image, wrapping at the start. Manual navigation
// stops the slideshow.
func (c *Controller) Prev() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timer.Stop()
	c.navigateLocked(-1)
}

// Close hides the viewer, stops the slideshow and leaves full screen.
// Closing a closed viewer is a no-op.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

// SetPeriodInput applies a new slideshow period typed by the user. A valid
// value becomes the configured period and restarts the slideshow if the
// viewer is open. An invalid value stops the slideshow, clears the
// configured period and returns an error wrapping slideshow.ErrInvalidPeriod.
func (c *Controller) SetPeriodInput(input string) error {
	period, err := slideshow.ParsePeriod(input)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.period = 0
		c.timer.Stop()
		return err
	}
	c.period = period
	if c.phase == Open {
		c.startTimerLocked()
	}
	return nil
}

// Period returns the configured slideshow period in seconds.
func (c *Controller) Period() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.period
}

// SlideshowRunning reports whether the slideshow timer is live.
func (c *Controller) SlideshowRunning() bool {
	return c.timer.Running()
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Index returns the position of the current image, or -1 when closed or
// when the current image has been removed.
func (c *Controller) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != Open {
		return -1
	}
	return c.seq.IndexOfID(c.currentID)
}

// Current returns the image being viewed.
func (c *Controller) Current() (gallery.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != Open {
		return gallery.Image{}, false
	}
	index := c.seq.IndexOfID(c.currentID)
	if index < 0 {
		return gallery.Image{}, false
	}
	return c.seq.At(index)
}

func (c *Controller) tick(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.timer.Live(gen) {
		return
	}
	c.navigateLocked(+1)
}

func (c *Controller) navigateLocked(direction int) {
	if c.phase != Open {
		return
	}

	// The current image is tracked by id so removals elsewhere in the
	// gallery do not move the viewer. If it was removed, or the gallery is
	// now empty, navigation closes the viewer.
	index := c.seq.IndexOfID(c.currentID)
	n := c.seq.Len()
	if index < 0 || n == 0 {
		c.log.Debug("closing lightbox", slog.Any("reason", errViewedImageGone))
		c.closeLocked()
		return
	}

	index = ((index+direction)%n + n) % n
	img, ok := c.seq.At(index)
	if !ok {
		c.closeLocked()
		return
	}
	c.currentID = img.ID
	c.transitionLocked(img)
	c.emit(Event{Kind: Navigated, Index: index, Image: img})
}

func (c *Controller) closeLocked() {
	if c.phase == Closed {
		return
	}
	c.phase = Closed
	c.currentID = ""
	c.transition++
	c.timer.Stop()
	c.fullscreen.Exit()
	c.log.Debug("lightbox closed")
	c.emit(Event{Kind: ClosedEvent, Index: -1})
}

func (c *Controller) startTimerLocked() {
	if c.period <= 0 {
		c.timer.Stop()
		return
	}
	if err := c.timer.Start(c.period); err != nil {
		c.log.Warn("slideshow not started", slog.Any("error", err))
	}
}

// transitionLocked fades out, then swaps to img after the fade delay. A
// later transition or a close supersedes a pending swap.
func (c *Controller) transitionLocked(img gallery.Image) {
	c.transition++
	gen := c.transition

	c.renderer.FadeOut()
	if c.fadeDelay <= 0 {
		c.renderer.Show(img)
		c.renderer.FadeIn()
		return
	}
	c.clock.AfterFunc(c.fadeDelay, func() {
		go c.swap(gen, img)
	})
}

func (c *Controller) swap(gen uint64, img gallery.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.transition || c.phase != Open {
		return
	}
	c.renderer.Show(img)
	c.renderer.FadeIn()
}

func (c *Controller) emit(e Event) {
	if c.listener != nil {
		c.listener(e)
	}
}
