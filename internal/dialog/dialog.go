// Package dialog shows an interaction's full content in a modal over the
// video, suspending playback while it is open.
package dialog

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/sendrec/ivplayer/internal/interaction"
	"github.com/sendrec/ivplayer/internal/scheduler"
)

type Playback interface {
	Suspend()
	Resume() error
}

// Surface hands out the container the dialog content is attached to.
type Surface interface {
	Open(className string) scheduler.Node
}

type State struct {
	Visible       bool   `json:"visible"`
	InteractionID *int   `json:"interactionId,omitempty"`
	Library       string `json:"library,omitempty"`
}

type content struct {
	def    interaction.Def
	node   scheduler.Node
	widget scheduler.Widget
}

type Dialog struct {
	mu       sync.Mutex
	registry scheduler.Registry
	surface  Surface
	playback Playback
	log      *slog.Logger
	current  *content
}

func New(registry scheduler.Registry, surface Surface, playback Playback, logger *slog.Logger) *Dialog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dialog{registry: registry, surface: surface, playback: playback, log: logger}
}

// Show suspends playback and renders def's content, replacing anything
// already open.
func (d *Dialog) Show(def interaction.Def) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.playback.Suspend()
	d.clearLocked()

	node := d.surface.Open("dialog-interaction " + interaction.ClassName(def.Library))
	widget, err := d.registry.Create(def.Library, def.Params, node)
	if err != nil {
		node.Remove()
		d.log.Error("dialog: failed to create interaction", "id", def.ID, "library", def.Library, "error", err)
		// Nothing is open, so undo the suspend.
		if rerr := d.playback.Resume(); rerr != nil {
			d.log.Error("dialog: resume after failed open", "id", def.ID, "error", rerr)
		}
		return fmt.Errorf("open interaction %d: %w", def.ID, err)
	}

	d.current = &content{def: def, node: node, widget: widget}
	return nil
}

// Hide closes the dialog and resumes playback if the user was playing.
func (d *Dialog) Hide() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current == nil {
		return nil
	}
	d.clearLocked()
	return d.playback.Resume()
}

// Close removes any content without touching playback.
func (d *Dialog) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clearLocked()
}

func (d *Dialog) clearLocked() {
	if d.current == nil {
		return
	}
	if d.current.widget != nil {
		d.current.widget.Remove()
	}
	d.current.node.Remove()
	d.current = nil
}

func (d *Dialog) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return State{}
	}
	id := d.current.def.ID
	return State{Visible: true, InteractionID: &id, Library: d.current.def.Library}
}
