package playback

import (
	"errors"
	"sync"
	"time"
)

var ErrInvalidDuration = errors.New("duration must be positive")

// ClockEngine is a virtual media engine whose position advances with the
// wall clock while playing. It stands in for a real decoder in headless
// sessions and simulations.
type ClockEngine struct {
	mu       sync.Mutex
	duration float64
	speed    float64
	now      func() time.Time

	playing  bool
	muted    bool
	pos      float64
	startPos float64
	startAt  time.Time
	endTimer *time.Timer
	gen      int

	onLoaded func()
	onEnded  func()
}

type ClockOption func(*ClockEngine)

// WithSpeed plays the media faster (or slower) than real time.
func WithSpeed(speed float64) ClockOption {
	return func(e *ClockEngine) {
		if speed > 0 {
			e.speed = speed
		}
	}
}

// WithNow replaces the time source.
func WithNow(now func() time.Time) ClockOption {
	return func(e *ClockEngine) { e.now = now }
}

func NewClockEngine(duration float64, opts ...ClockOption) (*ClockEngine, error) {
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}
	e := &ClockEngine{duration: duration, speed: 1, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *ClockEngine) OnLoaded(fn func()) {
	e.mu.Lock()
	e.onLoaded = fn
	e.mu.Unlock()
	if fn != nil {
		go fn()
	}
}

func (e *ClockEngine) OnEnded(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onEnded = fn
}

func (e *ClockEngine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.playing {
		return nil
	}
	if e.pos >= e.duration {
		e.pos = e.duration
	}
	e.playing = true
	e.startPos = e.pos
	e.startAt = e.now()
	e.armLocked()
	return nil
}

func (e *ClockEngine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.playing {
		return nil
	}
	e.pos = e.positionLocked()
	e.playing = false
	e.disarmLocked()
	return nil
}

func (e *ClockEngine) Seek(seconds float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if seconds < 0 {
		seconds = 0
	}
	if seconds > e.duration {
		seconds = e.duration
	}
	e.pos = seconds
	if e.playing {
		e.startPos = seconds
		e.startAt = e.now()
		e.armLocked()
	}
	return nil
}

func (e *ClockEngine) Time() (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positionLocked(), nil
}

func (e *ClockEngine) Duration() (float64, error) {
	return e.duration, nil
}

func (e *ClockEngine) Mute() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.muted = true
	return nil
}

func (e *ClockEngine) Unmute() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.muted = false
	return nil
}

func (e *ClockEngine) Muted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muted
}

func (e *ClockEngine) positionLocked() float64 {
	if !e.playing {
		return e.pos
	}
	p := e.startPos + e.now().Sub(e.startAt).Seconds()*e.speed
	if p > e.duration {
		p = e.duration
	}
	return p
}

func (e *ClockEngine) armLocked() {
	e.disarmLocked()
	remaining := time.Duration((e.duration - e.startPos) / e.speed * float64(time.Second))
	gen := e.gen
	e.endTimer = time.AfterFunc(remaining, func() { e.fireEnded(gen) })
}

func (e *ClockEngine) disarmLocked() {
	e.gen++
	if e.endTimer != nil {
		e.endTimer.Stop()
		e.endTimer = nil
	}
}

func (e *ClockEngine) fireEnded(gen int) {
	e.mu.Lock()
	if gen != e.gen || !e.playing {
		e.mu.Unlock()
		return
	}
	e.pos = e.duration
	e.playing = false
	e.endTimer = nil
	fn := e.onEnded
	e.mu.Unlock()

	if fn != nil {
		fn()
	}
}
