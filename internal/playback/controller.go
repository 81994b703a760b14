package playback

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"
)

// DefaultInterval refreshes the UI at 25 FPS.
const DefaultInterval = 40 * time.Millisecond

var ErrClosed = errors.New("playback controller closed")

type Config struct {
	Engine   Engine
	Observer Observer
	Interval time.Duration
	Logger   *slog.Logger
}

// Controller drives an Engine and feeds whole seconds to an Evaluator.
//
// Every state change happens under mu. The evaluator is only ever called with
// mu held, so it must signal pauses through Pauser rather than Pause.
type Controller struct {
	mu       sync.Mutex
	engine   Engine
	eval     Evaluator
	obs      Observer
	interval time.Duration
	log      *slog.Logger

	playing  bool
	hasEnded bool
	closed   bool

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	last     int
	haveLast bool
}

func New(cfg Config) *Controller {
	c := &Controller{
		engine:   cfg.Engine,
		eval:     nopEvaluator{},
		obs:      cfg.Observer,
		interval: cfg.Interval,
		log:      cfg.Logger,
	}
	if c.obs == nil {
		c.obs = nopObserver{}
	}
	if c.interval <= 0 {
		c.interval = DefaultInterval
	}
	if c.log == nil {
		c.log = slog.Default()
	}

	c.engine.OnLoaded(c.loaded)
	c.engine.OnEnded(c.Ended)
	return c
}

// Attach sets the evaluator fed by the tick loop.
func (c *Controller) Attach(e Evaluator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e == nil {
		e = nopEvaluator{}
	}
	c.eval = e
}

// Pauser returns the pause signal for use by the evaluator while it runs
// inside the controller's lock.
func (c *Controller) Pauser() *LockedPauser {
	return &LockedPauser{c: c}
}

// LockedPauser assumes the controller's lock is already held.
type LockedPauser struct {
	c *Controller
}

func (p *LockedPauser) Playing() bool { return p.c.playing }
func (p *LockedPauser) Pause()        { p.c.pauseLocked(false) }

func (c *Controller) loaded() {
	d, err := c.engine.Duration()
	if err != nil {
		c.log.Warn("playback: duration unavailable", "error", err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.obs.OnDuration(d)
}

// Play starts playback, restarting from zero after the video has ended.
func (c *Controller) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	c.playing = true
	if c.hasEnded {
		c.hasEnded = false
		if err := c.engine.Seek(0); err != nil {
			c.log.Error("playback: restart seek failed", "error", err)
		}
		c.obs.OnTime(0)
		c.obs.OnSecond(0)
		c.eval.EvaluateAll(0)
		// An interaction at second 0 may have paused the replay.
		if !c.playing {
			return nil
		}
	}
	c.obs.OnPlaying(true)
	return c.playLocked()
}

func (c *Controller) playLocked() error {
	if err := c.engine.Play(); err != nil {
		return err
	}
	c.startTicker()
	return nil
}

// Pause stops playback and clears the playing flag.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.pauseLocked(false)
	return nil
}

// pauseLocked with keep set suspends playback without clearing the playing
// flag, so a later resume picks up where the user left off.
func (c *Controller) pauseLocked(keep bool) {
	if !keep && c.playing {
		c.playing = false
		c.obs.OnPlaying(false)
	}
	if err := c.engine.Pause(); err != nil {
		c.log.Error("playback: pause failed", "error", err)
	}
	c.stopTicker()
}

// Suspend pauses the engine but remembers that the user wants playback,
// as when a dialog opens or the slider is grabbed.
func (c *Controller) Suspend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.playing {
		return
	}
	c.pauseLocked(true)
}

// Resume restarts playback suspended by Suspend.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.playing {
		return nil
	}
	return c.playLocked()
}

// BeginSeek is called when the user grabs the slider.
func (c *Controller) BeginSeek() {
	c.Suspend()
}

// EndSeek is called when the user releases the slider at seconds.
func (c *Controller) EndSeek(seconds float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.seekLocked(seconds)
}

// Seek jumps to seconds and re-evaluates every interaction there.
func (c *Controller) Seek(seconds float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.playing {
		c.pauseLocked(true)
	}
	return c.seekLocked(seconds)
}

func (c *Controller) seekLocked(seconds float64) error {
	if seconds < 0 {
		seconds = 0
	}
	if d, err := c.engine.Duration(); err == nil && d > 0 && seconds > d {
		seconds = d
	}
	if err := c.engine.Seek(seconds); err != nil {
		return err
	}
	c.hasEnded = false

	second := int(math.Floor(seconds))
	c.last, c.haveLast = second, true
	c.obs.OnTime(seconds)
	c.obs.OnSecond(second)
	c.eval.EvaluateAll(second)

	if c.playing {
		return c.playLocked()
	}
	return nil
}

// Ended is invoked by the engine at end of media.
func (c *Controller) Ended() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	// A seek can race a late end notification.
	t, err := c.engine.Time()
	if d, derr := c.engine.Duration(); err == nil && derr == nil && d > 0 && t < d-1 {
		c.log.Debug("playback: ignoring stale end", "time", t, "duration", d)
		return
	}

	c.hasEnded = true
	c.pauseLocked(false)

	if err == nil {
		second := int(math.Floor(t))
		c.obs.OnTime(t)
		c.obs.OnSecond(second)
		c.eval.EvaluateAll(second)
	}
}

func (c *Controller) startTicker() {
	c.stopTicker()

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.haveLast = false

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.tick(ctx)
			}
		}
	}()
}

func (c *Controller) stopTicker() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) tick(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	c.tickLocked()
}

func (c *Controller) tickLocked() {
	t, err := c.engine.Time()
	if err != nil {
		c.log.Warn("playback: time unavailable", "error", err)
		return
	}
	c.obs.OnTime(t)

	second := int(math.Floor(t))
	if c.haveLast && second == c.last {
		return
	}
	c.last, c.haveLast = second, true
	c.eval.Evaluate(second)
	c.obs.OnSecond(second)
}

// Close stops the tick loop and waits for it to exit.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.playing || c.cancel != nil {
		if err := c.engine.Pause(); err != nil {
			c.log.Warn("playback: pause on close failed", "error", err)
		}
	}
	c.playing = false
	c.stopTicker()
	c.mu.Unlock()

	c.wg.Wait()
}

func (c *Controller) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

func (c *Controller) HasEnded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasEnded
}

// Ticking reports whether the tick loop is active.
func (c *Controller) Ticking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

func (c *Controller) Time() (float64, error) {
	return c.engine.Time()
}

func (c *Controller) Duration() (float64, error) {
	return c.engine.Duration()
}

func (c *Controller) Mute() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.Mute()
}

func (c *Controller) Unmute() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.Unmute()
}

// Do runs fn under the controller's lock, serialising it with the tick loop.
func (c *Controller) Do(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}
