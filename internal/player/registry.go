package player

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sendrec/ivplayer/internal/interaction"
	"github.com/sendrec/ivplayer/internal/scheduler"
)

var ErrUnknownLibrary = errors.New("unknown content library")

// Factory builds one content instance inside container.
type Factory func(params json.RawMessage, container scheduler.Node) (scheduler.Widget, error)

// Registry maps library machine names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultLibraries are the content types a headless player can show.
var DefaultLibraries = []string{
	"H5P.Text",
	"H5P.Image",
	"H5P.Link",
	"H5P.Table",
	"H5P.MultiChoice",
	"H5P.SingleChoiceSet",
	"H5P.Blanks",
	"H5P.DragQuestion",
	"H5P.Summary",
	"H5P.TrueFalse",
}

// NewHeadlessRegistry registers Headless for every default library.
func NewHeadlessRegistry() *Registry {
	r := NewRegistry()
	for _, name := range DefaultLibraries {
		r.Register(name, Headless)
	}
	return r
}

func (r *Registry) Register(machineName string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[machineName] = f
}

func (r *Registry) Has(library string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[interaction.MachineName(library)]
	return ok
}

func (r *Registry) Create(library string, params json.RawMessage, container scheduler.Node) (scheduler.Widget, error) {
	r.mu.RLock()
	f, ok := r.factories[interaction.MachineName(library)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLibrary, library)
	}
	return f(params, container)
}

// HeadlessWidget keeps the parameters it was created with.
type HeadlessWidget struct {
	mu      sync.Mutex
	Params  json.RawMessage
	removed bool
}

func (w *HeadlessWidget) Remove() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.removed = true
}

func (w *HeadlessWidget) Removed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.removed
}

func Headless(params json.RawMessage, _ scheduler.Node) (scheduler.Widget, error) {
	if len(params) > 0 && !json.Valid(params) {
		return nil, fmt.Errorf("invalid params")
	}
	return &HeadlessWidget{Params: params}, nil
}
