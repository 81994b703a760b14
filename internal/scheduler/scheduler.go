// Package scheduler keeps the set of mounted interactions in step with the
// current playback second.
//
// An interaction is mounted exactly while the last evaluated second lies in
// its [From, To] window. Evaluation is idempotent: repeating a second, or
// jumping to any other second after a seek, applies only the mount and
// unmount deltas between the recorded state and the new second.
package scheduler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/sendrec/ivplayer/internal/interaction"
)

// Widget is a rendered interactive content instance.
type Widget interface {
	Remove()
}

// Registry instantiates content types by library identifier into a container.
type Registry interface {
	Create(library string, params json.RawMessage, container Node) (Widget, error)
}

// Node is one element on the overlay surface.
type Node interface {
	OnClick(fn func())
	Remove()
}

// Surface is the overlay the interactions are placed on.
type Surface interface {
	Place(id int, className string, pos interaction.Position) Node
}

// Pauser is the slice of the playback controller the scheduler signals.
type Pauser interface {
	Playing() bool
	Pause()
}

// Options wires a Scheduler to its widget registry, overlay and playback.
type Options struct {
	Registry Registry
	Surface  Surface
	Pauser   Pauser

	// OnOpen is called when a mounted interaction is clicked outside of
	// editor mode.
	OnOpen func(interaction.Def)

	// Editor suppresses OnOpen; EditorHook receives each new node instead.
	Editor     bool
	EditorHook func(interaction.Def, Node)

	// OnChange observes every mount and unmount.
	OnChange func(Change)

	Logger *slog.Logger
}

// ChangeKind says whether an interaction appeared or disappeared.
type ChangeKind string

const (
	Mounted   ChangeKind = "mounted"
	Unmounted ChangeKind = "unmounted"
)

// Change records one mount or unmount and the second that caused it.
type Change struct {
	Kind   ChangeKind
	ID     int
	Second int
}

type mounted struct {
	node   Node
	widget Widget
}

// Scheduler mounts and unmounts interactions as the playhead crosses their
// windows. It is not safe for concurrent use; callers serialize access.
type Scheduler struct {
	defs       []interaction.Def
	byID       map[int]int
	visible    map[int]*mounted
	opts       Options
	log        *slog.Logger
	last       int
	evaluated  bool
	evaluating bool
}

// New validates defs and returns a scheduler with nothing mounted.
func New(defs []interaction.Def, opts Options) (*Scheduler, error) {
	if err := interaction.Validate(defs); err != nil {
		return nil, fmt.Errorf("validate interactions: %w", err)
	}
	if opts.Registry == nil || opts.Surface == nil {
		return nil, fmt.Errorf("registry and surface are required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		defs:    slices.Clone(defs),
		byID:    make(map[int]int, len(defs)),
		visible: make(map[int]*mounted),
		opts:    opts,
		log:     logger,
	}
	for i, d := range s.defs {
		s.byID[d.ID] = i
	}
	return s, nil
}

// Evaluate is the per-tick entry point. A second equal to the previously
// evaluated one is ignored.
func (s *Scheduler) Evaluate(second int) {
	if s.evaluated && second == s.last {
		return
	}
	s.EvaluateAll(second)
}

// EvaluateAll re-evaluates every interaction against second.
func (s *Scheduler) EvaluateAll(second int) {
	if s.evaluating {
		s.log.Warn("scheduler: dropped re-entrant evaluation", "second", second)
		return
	}
	s.evaluating = true
	defer func() { s.evaluating = false }()

	s.last = second
	s.evaluated = true
	for _, d := range s.defs {
		s.toggle(d, second)
	}
}

func (s *Scheduler) toggle(d interaction.Def, second int) {
	m, ok := s.visible[d.ID]
	if !d.Contains(second) {
		if ok {
			s.unmount(d.ID, m, second)
		}
		return
	}
	if ok {
		return
	}
	s.mount(d, second)
}

func (s *Scheduler) mount(d interaction.Def, second int) {
	node := s.opts.Surface.Place(d.ID, interaction.ClassName(d.Library), d.Position)

	widget, err := s.create(d, node)
	if err != nil {
		node.Remove()
		s.log.Error("scheduler: failed to create interaction",
			"id", d.ID,
			"library", d.Library,
			"second", second,
			"error", err,
		)
		return
	}

	if s.opts.Editor {
		if s.opts.EditorHook != nil {
			s.opts.EditorHook(d, node)
		}
	} else {
		node.OnClick(func() {
			if s.opts.OnOpen != nil {
				s.opts.OnOpen(d)
			}
		})
	}

	s.visible[d.ID] = &mounted{node: node, widget: widget}
	s.notify(Change{Kind: Mounted, ID: d.ID, Second: second})

	if d.PauseOnShow && s.opts.Pauser != nil && s.opts.Pauser.Playing() {
		s.opts.Pauser.Pause()
	}
}

// create shields the playback loop from a panicking content type.
func (s *Scheduler) create(d interaction.Def, node Node) (w Widget, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("create %s panicked: %v", d.Library, r)
		}
	}()
	w, err = s.opts.Registry.Create(d.Library, d.Params, node)
	if err == nil && w == nil {
		err = fmt.Errorf("create %s returned no widget", d.Library)
	}
	return w, err
}

func (s *Scheduler) unmount(id int, m *mounted, second int) {
	m.widget.Remove()
	m.node.Remove()
	delete(s.visible, id)
	s.notify(Change{Kind: Unmounted, ID: id, Second: second})
}

// Unmount removes one interaction. Unknown or absent ids are ignored.
func (s *Scheduler) Unmount(id int) {
	if m, ok := s.visible[id]; ok {
		s.unmount(id, m, s.last)
	}
}

// Reset unmounts everything and forgets the last evaluated second, so the
// next Evaluate always runs.
func (s *Scheduler) Reset() {
	for _, id := range s.Mounted() {
		s.Unmount(id)
	}
	s.evaluated = false
}

func (s *Scheduler) notify(c Change) {
	if s.opts.OnChange != nil {
		s.opts.OnChange(c)
	}
}

// Mounted returns the mounted ids in ascending order.
func (s *Scheduler) Mounted() []int {
	ids := make([]int, 0, len(s.visible))
	for id := range s.visible {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *Scheduler) IsMounted(id int) bool {
	_, ok := s.visible[id]
	return ok
}

// Def looks up an interaction by id.
func (s *Scheduler) Def(id int) (interaction.Def, bool) {
	i, ok := s.byID[id]
	if !ok {
		return interaction.Def{}, false
	}
	return s.defs[i], true
}

func (s *Scheduler) Defs() []interaction.Def {
	return slices.Clone(s.defs)
}

// LastSecond is the second of the most recent evaluation.
func (s *Scheduler) LastSecond() (int, bool) {
	return s.last, s.evaluated
}
