// Package controls holds the state of the player's control bar: play button,
// volume and fullscreen toggles, the timer and the seek slider.
package controls

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/mssola/useragent"
)

type L10n struct {
	Play           string `json:"play"`
	Pause          string `json:"pause"`
	Mute           string `json:"mute"`
	Unmute         string `json:"unmute"`
	Fullscreen     string `json:"fullscreen"`
	ExitFullscreen string `json:"exitFullscreen"`
}

func DefaultL10n() L10n {
	return L10n{
		Play:           "Play",
		Pause:          "Pause",
		Mute:           "Mute",
		Unmute:         "Unmute",
		Fullscreen:     "Fullscreen",
		ExitFullscreen: "Exit fullscreen",
	}
}

// Button is a rendered toggle: its CSS classes and tooltip.
type Button struct {
	Classes []string `json:"classes"`
	Title   string   `json:"title"`
}

type Slider struct {
	Value float64 `json:"value"`
	Max   float64 `json:"max"`
	Step  float64 `json:"step"`
}

type State struct {
	Play       Button  `json:"play"`
	Volume     *Button `json:"volume,omitempty"`
	Fullscreen Button  `json:"fullscreen"`
	Current    string  `json:"current"`
	Total      string  `json:"total"`
	Slider     Slider  `json:"slider"`
}

// Bar tracks control state. It is refreshed by the playback controller and
// by user input; it never calls back into playback.
type Bar struct {
	mu         sync.Mutex
	l10n       L10n
	hasVolume  bool
	playing    bool
	muted      bool
	fullscreen bool
	dragging   bool
	value      float64
	max        float64
	second     int
}

func NewBar(l10n L10n, userAgent string) *Bar {
	return &Bar{l10n: l10n, hasVolume: VolumeSupported(userAgent)}
}

// VolumeSupported reports whether the user agent lets pages control volume.
// Android and iPad browsers ignore programmatic volume changes.
func VolumeSupported(userAgent string) bool {
	if userAgent == "" {
		return true
	}
	ua := useragent.New(userAgent)
	if strings.HasPrefix(ua.OS(), "Android") {
		return false
	}
	return ua.Platform() != "iPad"
}

func (b *Bar) OnDuration(seconds float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.max = seconds
}

func (b *Bar) OnTime(seconds float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.dragging {
		b.value = seconds
	}
}

func (b *Bar) OnSecond(second int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.second = second
}

func (b *Bar) OnPlaying(playing bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.playing = playing
}

// SetMuted records the volume toggle; it is a no-op on devices without a
// volume control.
func (b *Bar) SetMuted(muted bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.hasVolume {
		return false
	}
	b.muted = muted
	return true
}

func (b *Bar) Muted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.muted
}

// ToggleFullscreen flips the fullscreen button and returns the new state.
func (b *Bar) ToggleFullscreen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fullscreen = !b.fullscreen
	return b.fullscreen
}

// ExitedFullscreen resets the button when fullscreen ended by other means.
func (b *Bar) ExitedFullscreen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fullscreen = false
}

// Slide moves the slider while dragging; the timer follows it.
func (b *Bar) Slide(value float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dragging = true
	b.value = value
	b.second = int(math.Floor(value))
}

// Release ends a drag.
func (b *Bar) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dragging = false
}

func (b *Bar) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := State{
		Current: HumanizeTime(float64(b.second)),
		Total:   HumanizeTime(b.max),
		Slider:  Slider{Value: b.value, Max: b.max, Step: 0.01},
	}

	// The play button carries the pause class while playback is stopped.
	if b.playing {
		s.Play = Button{Classes: []string{"play"}, Title: b.l10n.Pause}
	} else {
		s.Play = Button{Classes: []string{"play", "pause"}, Title: b.l10n.Play}
	}

	if b.fullscreen {
		s.Fullscreen = Button{Classes: []string{"fullscreen", "exit"}, Title: b.l10n.ExitFullscreen}
	} else {
		s.Fullscreen = Button{Classes: []string{"fullscreen"}, Title: b.l10n.Fullscreen}
	}

	if b.hasVolume {
		if b.muted {
			s.Volume = &Button{Classes: []string{"volume", "muted"}, Title: b.l10n.Unmute}
		} else {
			s.Volume = &Button{Classes: []string{"volume"}, Title: b.l10n.Mute}
		}
	}
	return s
}

// HumanizeTime formats seconds as M:SS, or H:MM:SS from one hour on.
func HumanizeTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int(math.Floor(seconds))
	hours := total / 3600
	minutes := (total / 60) % 60
	secs := total % 60

	if hours != 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}
