package player

import (
	"sync"

	"github.com/sendrec/ivplayer/internal/interaction"
	"github.com/sendrec/ivplayer/internal/scheduler"
)

// Overlay is an in-memory rendering surface. It stands in for the DOM
// overlay above the video and the dialog container.
type Overlay struct {
	mu    sync.Mutex
	nodes []*node
}

type node struct {
	overlay *Overlay
	id      int
	dialog  bool
	class   string
	pos     interaction.Position
	click   func()
}

func (n *node) OnClick(fn func()) {
	n.overlay.mu.Lock()
	defer n.overlay.mu.Unlock()
	n.click = fn
}

// Remove detaches the node. Removing twice is harmless.
func (n *node) Remove() {
	n.overlay.mu.Lock()
	defer n.overlay.mu.Unlock()
	for i, other := range n.overlay.nodes {
		if other == n {
			n.overlay.nodes = append(n.overlay.nodes[:i], n.overlay.nodes[i+1:]...)
			return
		}
	}
}

func (o *Overlay) Place(id int, className string, pos interaction.Position) scheduler.Node {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := &node{overlay: o, id: id, class: "interaction " + className, pos: pos}
	o.nodes = append(o.nodes, n)
	return n
}

func (o *Overlay) Open(className string) scheduler.Node {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := &node{overlay: o, id: -1, dialog: true, class: className}
	o.nodes = append(o.nodes, n)
	return n
}

// clickHandler returns the handler of the interaction node with id.
func (o *Overlay) clickHandler(id int) (func(), bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, n := range o.nodes {
		if !n.dialog && n.id == id {
			return n.click, n.click != nil
		}
	}
	return nil, false
}

// NodeView describes a node currently attached to the overlay.
type NodeView struct {
	ID       int                  `json:"id"`
	Class    string               `json:"class"`
	Position interaction.Position `json:"position"`
	Dialog   bool                 `json:"dialog,omitempty"`
}

func (o *Overlay) Nodes() []NodeView {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]NodeView, 0, len(o.nodes))
	for _, n := range o.nodes {
		out = append(out, NodeView{ID: n.id, Class: n.class, Position: n.pos, Dialog: n.dialog})
	}
	return out
}
