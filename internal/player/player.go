// Package player assembles an interactive video: a playback controller
// driving an engine, the interaction scheduler, the control bar and the
// detail dialog.
package player

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/sendrec/ivplayer/internal/controls"
	"github.com/sendrec/ivplayer/internal/dialog"
	"github.com/sendrec/ivplayer/internal/interaction"
	"github.com/sendrec/ivplayer/internal/playback"
	"github.com/sendrec/ivplayer/internal/scheduler"
)

var ErrNotMounted = errors.New("interaction is not visible")

type Config struct {
	Interactions []interaction.Def
	Engine       playback.Engine

	// Registry defaults to NewHeadlessRegistry.
	Registry  scheduler.Registry
	L10n      *controls.L10n
	UserAgent string
	Editor    bool
	Interval  time.Duration
	Logger    *slog.Logger

	// OnChange observes mounts and unmounts. It runs on the playback loop
	// and must not block.
	OnChange func(scheduler.Change)
}

type Player struct {
	engine  playback.Engine
	ctrl    *playback.Controller
	sched   *scheduler.Scheduler
	bar     *controls.Bar
	dialog  *dialog.Dialog
	overlay *Overlay
	log     *slog.Logger

	closeOnce sync.Once
}

func New(cfg Config) (*Player, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = NewHeadlessRegistry()
	}
	l10n := controls.DefaultL10n()
	if cfg.L10n != nil {
		l10n = *cfg.L10n
	}

	p := &Player{
		engine:  cfg.Engine,
		bar:     controls.NewBar(l10n, cfg.UserAgent),
		overlay: &Overlay{},
		log:     logger,
	}
	p.ctrl = playback.New(playback.Config{
		Engine:   cfg.Engine,
		Observer: p.bar,
		Interval: cfg.Interval,
		Logger:   logger,
	})
	p.dialog = dialog.New(registry, p.overlay, p.ctrl, logger)

	sched, err := scheduler.New(cfg.Interactions, scheduler.Options{
		Registry: registry,
		Surface:  p.overlay,
		Pauser:   p.ctrl.Pauser(),
		Editor:   cfg.Editor,
		OnOpen: func(d interaction.Def) {
			if err := p.dialog.Show(d); err != nil {
				logger.Warn("player: dialog failed to open", "id", d.ID, "error", err)
			}
		},
		OnChange: cfg.OnChange,
		Logger:   logger,
	})
	if err != nil {
		p.ctrl.Close()
		return nil, err
	}
	p.sched = sched
	p.ctrl.Attach(sched)

	if d, err := cfg.Engine.Duration(); err == nil {
		p.bar.OnDuration(d)
	}
	p.ctrl.Do(func() { sched.EvaluateAll(0) })
	return p, nil
}

func (p *Player) Play() error {
	return p.ctrl.Play()
}

func (p *Player) Pause() error {
	return p.ctrl.Pause()
}

// TogglePlay mirrors the play/pause button.
func (p *Player) TogglePlay() error {
	if p.ctrl.Playing() {
		return p.Pause()
	}
	return p.Play()
}

func (p *Player) Seek(seconds float64) error {
	return p.ctrl.Seek(seconds)
}

// BeginSlide, Slide and EndSlide follow a drag of the seek slider.
func (p *Player) BeginSlide() {
	p.ctrl.BeginSeek()
}

func (p *Player) Slide(seconds float64) {
	p.bar.Slide(seconds)
}

func (p *Player) EndSlide(seconds float64) error {
	p.bar.Release()
	return p.ctrl.EndSeek(seconds)
}

// SetMuted toggles sound. Devices without a volume control ignore it.
func (p *Player) SetMuted(muted bool) error {
	if !p.bar.SetMuted(muted) {
		return nil
	}
	if muted {
		return p.ctrl.Mute()
	}
	return p.ctrl.Unmute()
}

func (p *Player) ToggleFullscreen() bool {
	return p.bar.ToggleFullscreen()
}

// Click activates a visible interaction as if the user clicked it.
func (p *Player) Click(id int) error {
	var click func()
	var ok bool
	p.ctrl.Do(func() {
		if p.sched.IsMounted(id) {
			click, ok = p.overlay.clickHandler(id)
		}
	})
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotMounted, id)
	}
	click()
	return nil
}

func (p *Player) CloseDialog() error {
	return p.dialog.Hide()
}

// Close stops the tick loop and removes every interaction and the dialog.
func (p *Player) Close() {
	p.closeOnce.Do(func() {
		p.ctrl.Close()
		p.ctrl.Do(p.sched.Reset)
		p.dialog.Close()
	})
}

type InteractionView struct {
	ID          int                  `json:"id"`
	Label       string               `json:"label,omitempty"`
	Library     string               `json:"library"`
	Class       string               `json:"class"`
	Position    interaction.Position `json:"position"`
	From        float64              `json:"from"`
	To          float64              `json:"to"`
	PauseOnShow bool                 `json:"pauseOnShow"`
}

type Snapshot struct {
	Playing      bool              `json:"playing"`
	Suspended    bool              `json:"suspended"`
	Ended        bool              `json:"ended"`
	Time         float64           `json:"time"`
	Second       int               `json:"second"`
	Duration     float64           `json:"duration"`
	Interactions []InteractionView `json:"interactions"`
	Controls     controls.State    `json:"controls"`
	Dialog       dialog.State      `json:"dialog"`
}

func (p *Player) Snapshot() Snapshot {
	s := Snapshot{
		Playing:  p.ctrl.Playing(),
		Ended:    p.ctrl.HasEnded(),
		Controls: p.bar.State(),
		Dialog:   p.dialog.State(),
	}
	// Playback the viewer asked for but a dialog or slider drag is holding.
	s.Suspended = s.Playing && !p.ctrl.Ticking()
	if t, err := p.ctrl.Time(); err == nil {
		s.Time = t
		s.Second = int(math.Floor(t))
	}
	if d, err := p.ctrl.Duration(); err == nil {
		s.Duration = d
	}

	s.Interactions = make([]InteractionView, 0)
	p.ctrl.Do(func() {
		for _, id := range p.sched.Mounted() {
			d, _ := p.sched.Def(id)
			s.Interactions = append(s.Interactions, InteractionView{
				ID:          d.ID,
				Label:       d.Label,
				Library:     d.Library,
				Class:       interaction.ClassName(d.Library),
				Position:    d.Position,
				From:        d.From,
				To:          d.To,
				PauseOnShow: d.PauseOnShow,
			})
		}
	})
	return s
}

// Mounted returns the visible interaction ids.
func (p *Player) Mounted() []int {
	var ids []int
	p.ctrl.Do(func() { ids = p.sched.Mounted() })
	return ids
}

func (p *Player) Overlay() *Overlay {
	return p.overlay
}
