package dialog

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/sendrec/ivplayer/internal/interaction"
	"github.com/sendrec/ivplayer/internal/scheduler"
)

type fakeNode struct {
	class   string
	removed bool
}

func (n *fakeNode) OnClick(func()) {}
func (n *fakeNode) Remove()        { n.removed = true }

type fakeSurface struct {
	nodes []*fakeNode
}

func (s *fakeSurface) Open(className string) scheduler.Node {
	n := &fakeNode{class: className}
	s.nodes = append(s.nodes, n)
	return n
}

type fakeWidget struct{ removed bool }

func (w *fakeWidget) Remove() { w.removed = true }

type fakeRegistry struct {
	err     error
	widgets []*fakeWidget
	params  []string
}

func (r *fakeRegistry) Create(library string, params json.RawMessage, container scheduler.Node) (scheduler.Widget, error) {
	if r.err != nil {
		return nil, r.err
	}
	w := &fakeWidget{}
	r.widgets = append(r.widgets, w)
	r.params = append(r.params, string(params))
	return w, nil
}

type fakePlayback struct {
	suspends int
	resumes  int
}

func (p *fakePlayback) Suspend()      { p.suspends++ }
func (p *fakePlayback) Resume() error { p.resumes++; return nil }

func newTestDialog() (*Dialog, *fakeRegistry, *fakeSurface, *fakePlayback) {
	reg := &fakeRegistry{}
	surface := &fakeSurface{}
	pb := &fakePlayback{}
	return New(reg, surface, pb, nil), reg, surface, pb
}

var quiz = interaction.Def{ID: 2, From: 1, To: 3, Library: "H5P.MultiChoice 1.0", Params: json.RawMessage(`{"q":1}`)}

func TestShow_SuspendsAndRenders(t *testing.T) {
	d, reg, surface, pb := newTestDialog()

	if err := d.Show(quiz); err != nil {
		t.Fatalf("Show: %v", err)
	}

	if pb.suspends != 1 {
		t.Errorf("expected 1 suspend, got %d", pb.suspends)
	}
	if len(reg.widgets) != 1 || reg.params[0] != `{"q":1}` {
		t.Fatalf("unexpected registry calls: %+v", reg.params)
	}
	if surface.nodes[0].class != "dialog-interaction h5p-multichoice" {
		t.Errorf("unexpected container class %q", surface.nodes[0].class)
	}
	st := d.State()
	if !st.Visible || st.InteractionID == nil || *st.InteractionID != 2 {
		t.Errorf("unexpected state: %+v", st)
	}
}

func TestHide_RemovesAndResumes(t *testing.T) {
	d, reg, surface, pb := newTestDialog()
	_ = d.Show(quiz)

	if err := d.Hide(); err != nil {
		t.Fatalf("Hide: %v", err)
	}

	if !reg.widgets[0].removed || !surface.nodes[0].removed {
		t.Error("expected content removed")
	}
	if pb.resumes != 1 {
		t.Errorf("expected 1 resume, got %d", pb.resumes)
	}
	if d.State().Visible {
		t.Error("expected hidden")
	}
}

func TestHide_WhenHiddenIsNoop(t *testing.T) {
	d, _, _, pb := newTestDialog()

	if err := d.Hide(); err != nil {
		t.Fatalf("Hide: %v", err)
	}
	if pb.resumes != 0 {
		t.Errorf("expected no resume, got %d", pb.resumes)
	}
}

func TestShow_ReplacesOpenContent(t *testing.T) {
	d, reg, _, _ := newTestDialog()
	_ = d.Show(quiz)

	other := interaction.Def{ID: 5, From: 0, To: 1, Library: "H5P.Text 1.1"}
	_ = d.Show(other)

	if !reg.widgets[0].removed {
		t.Error("expected previous widget removed")
	}
	if st := d.State(); *st.InteractionID != 5 {
		t.Errorf("expected interaction 5, got %+v", st)
	}
}

func TestShow_RegistryFailure(t *testing.T) {
	d, reg, surface, pb := newTestDialog()
	reg.err = errors.New("unknown library")

	if err := d.Show(quiz); err == nil {
		t.Fatal("expected error")
	}
	if !surface.nodes[0].removed {
		t.Error("expected container removed on failure")
	}
	if d.State().Visible {
		t.Error("dialog must stay hidden on failure")
	}
	if pb.suspends != 1 || pb.resumes != 1 {
		t.Errorf("expected playback resumed after failed open, suspends=%d resumes=%d", pb.suspends, pb.resumes)
	}
}

func TestClose_DoesNotResume(t *testing.T) {
	d, _, _, pb := newTestDialog()
	_ = d.Show(quiz)

	d.Close()

	if pb.resumes != 0 || d.State().Visible {
		t.Fatalf("unexpected close behaviour: resumes=%d state=%+v", pb.resumes, d.State())
	}
}
