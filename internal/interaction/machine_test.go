package interaction

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	apperrors "github.com/ironsheep/image-roi-mcp/internal/errors"
	"github.com/ironsheep/image-roi-mcp/internal/shape"
)

func at(x, y float64) r2.Vec { return r2.Vec{X: x, Y: y} }

// feed sends every event and returns the notifications of the last one.
func feed(t *testing.T, m *Machine, events ...Event) []Notification {
	t.Helper()
	var out []Notification
	for _, ev := range events {
		n, err := m.Handle(ev)
		if err != nil {
			t.Fatalf("Handle(%v): %v", ev.Kind, err)
		}
		out = n
	}
	return out
}

func lastKind(t *testing.T, n []Notification) NotificationKind {
	t.Helper()
	if len(n) == 0 {
		t.Fatal("expected a notification")
	}
	return n[len(n)-1].Kind
}

func TestRectangleDrawCommit(t *testing.T) {
	m := NewMachine(shape.VariantRectangle)

	n := feed(t, m, Event{Kind: EventStart, Pos: at(0, 0)})
	if m.State() != StateDrawing {
		t.Fatalf("State after start: got %v, want drawing", m.State())
	}
	if lastKind(t, n) != NotifyInvalid {
		t.Errorf("zero-size frame should be invalid, got %v", lastKind(t, n))
	}

	n = feed(t, m, Event{Kind: EventMove, Pos: at(5, 2)})
	if lastKind(t, n) != NotifyPreview {
		t.Errorf("move: got %v, want preview", lastKind(t, n))
	}

	n = feed(t, m, Event{Kind: EventRelease, Pos: at(10, 4)})
	if lastKind(t, n) != NotifyCommit {
		t.Errorf("release: got %v, want commit", lastKind(t, n))
	}
	if m.State() != StateEditing {
		t.Errorf("State after release: got %v, want editing", m.State())
	}
	box, ok := m.Shape().Frame()
	if !ok || box.Max != at(10, 4) {
		t.Errorf("Frame: got %v", box)
	}
}

func TestDegenerateReleaseDiscards(t *testing.T) {
	for _, tool := range []shape.Variant{shape.VariantRectangle, shape.VariantEllipse} {
		t.Run(tool.String(), func(t *testing.T) {
			m := NewMachine(tool)
			n := feed(t, m,
				Event{Kind: EventStart, Pos: at(3, 3)},
				Event{Kind: EventRelease, Pos: at(3, 8)},
			)
			if lastKind(t, n) != NotifyInvalid {
				t.Errorf("got %v, want invalid", lastKind(t, n))
			}
			if !errors.Is(n[0].Err, apperrors.ErrInvalidShape) {
				t.Errorf("Err: got %v", n[0].Err)
			}
			if m.State() != StateIdle || m.Shape() != nil {
				t.Errorf("State: got %v, want idle with no shape", m.State())
			}
		})
	}
}

func TestPointCommitsOnRelease(t *testing.T) {
	m := NewMachine(shape.VariantPoint, WithShapeOptions(shape.WithPointSize(3)))
	n := feed(t, m,
		Event{Kind: EventStart, Pos: at(4, 4)},
		Event{Kind: EventRelease, Pos: at(5, 4)},
	)
	if lastKind(t, n) != NotifyCommit {
		t.Fatalf("got %v, want commit", lastKind(t, n))
	}
	if got := m.Shape().PointSize(); got != 3 {
		t.Errorf("PointSize: got %v, want 3", got)
	}
	h, _ := m.Shape().Handle(0)
	if h.Pos != at(5, 4) {
		t.Errorf("handle: got %v, want (5,4)", h.Pos)
	}
}

func TestPolygonClickVertices(t *testing.T) {
	m := NewMachine(shape.VariantPolygon)
	click := func(x, y float64) []Notification {
		return feed(t, m,
			Event{Kind: EventStart, Pos: at(x, y)},
			Event{Kind: EventRelease, Pos: at(x, y)},
		)
	}

	if k := lastKind(t, click(0, 0)); k != NotifyInvalid {
		t.Errorf("1 vertex: got %v, want invalid", k)
	}
	if k := lastKind(t, click(10, 0)); k != NotifyInvalid {
		t.Errorf("2 vertices: got %v, want invalid", k)
	}
	if k := lastKind(t, click(10, 10)); k != NotifyPreview {
		t.Errorf("3 vertices: got %v, want preview", k)
	}
	if m.State() != StateDrawing {
		t.Fatalf("polygon should keep drawing, got %v", m.State())
	}

	// rubber-band vertex follows the pointer and is dropped on finish
	feed(t, m, Event{Kind: EventMove, Pos: at(0, 10)})
	if m.Shape().Len() != 4 {
		t.Fatalf("live vertex: got %d handles, want 4", m.Shape().Len())
	}
	n := feed(t, m, Event{Kind: EventFinish, Pos: at(0, 10)})
	if lastKind(t, n) != NotifyCommit {
		t.Errorf("finish: got %v, want commit", lastKind(t, n))
	}
	if m.Shape().Len() != 3 {
		t.Errorf("after finish: got %d handles, want 3", m.Shape().Len())
	}
	if m.State() != StateEditing {
		t.Errorf("State: got %v, want editing", m.State())
	}
}

func TestPolygonInvalidFinishKeepsDrawing(t *testing.T) {
	m := NewMachine(shape.VariantPolygon)
	feed(t, m,
		Event{Kind: EventStart, Pos: at(0, 0)},
		Event{Kind: EventRelease, Pos: at(0, 0)},
		Event{Kind: EventStart, Pos: at(5, 5)},
		Event{Kind: EventRelease, Pos: at(5, 5)},
	)
	n := feed(t, m, Event{Kind: EventFinish, Pos: at(5, 5)})
	if lastKind(t, n) != NotifyInvalid {
		t.Errorf("got %v, want invalid", lastKind(t, n))
	}
	if m.State() != StateDrawing {
		t.Errorf("State: got %v, want drawing", m.State())
	}
}

func TestPolygonCapFinishesOnRelease(t *testing.T) {
	m := NewMachine(shape.VariantPolygon, WithShapeOptions(shape.WithMaxHandles(3)))
	var n []Notification
	for _, p := range []r2.Vec{at(0, 0), at(8, 0), at(0, 8)} {
		n = feed(t, m, Event{Kind: EventStart, Pos: p}, Event{Kind: EventRelease, Pos: p})
	}
	if lastKind(t, n) != NotifyCommit || m.State() != StateEditing {
		t.Errorf("capped polygon: got %v in %v, want commit in editing", lastKind(t, n), m.State())
	}
}

func TestPolygonFullDegenerateRecovers(t *testing.T) {
	m := NewMachine(shape.VariantPolygon, WithShapeOptions(shape.WithMaxHandles(3)))
	var n []Notification
	for _, p := range []r2.Vec{at(0, 0), at(4, 4), at(8, 8)} {
		n = feed(t, m, Event{Kind: EventStart, Pos: p}, Event{Kind: EventRelease, Pos: p})
	}
	if lastKind(t, n) != NotifyInvalid || m.State() != StateDrawing {
		t.Fatalf("collinear capped polygon: got %v in %v, want invalid in drawing", lastKind(t, n), m.State())
	}

	n = feed(t, m, Event{Kind: EventMove, Pos: at(0, 8)})
	if lastKind(t, n) != NotifyPreview {
		t.Errorf("move on full polygon: got %v, want preview", lastKind(t, n))
	}
	n = feed(t, m, Event{Kind: EventStart, Pos: at(0, 9)}, Event{Kind: EventRelease, Pos: at(0, 9)})
	if lastKind(t, n) != NotifyCommit || m.State() != StateEditing {
		t.Errorf("re-placed vertex: got %v in %v, want commit in editing", lastKind(t, n), m.State())
	}
	if got := m.Shape().Len(); got != 3 {
		t.Errorf("Len: got %d, want 3", got)
	}
}

func TestEditDragAndCommit(t *testing.T) {
	m := NewMachine(shape.VariantRectangle)
	feed(t, m,
		Event{Kind: EventStart, Pos: at(0, 0)},
		Event{Kind: EventRelease, Pos: at(10, 4)},
	)

	feed(t, m, Event{Kind: EventStart, Pos: at(9, 5)})
	if m.Dragging() != 1 {
		t.Fatalf("Dragging: got %d, want 1", m.Dragging())
	}
	n := feed(t, m, Event{Kind: EventMove, Pos: at(12, 6)})
	if lastKind(t, n) != NotifyPreview {
		t.Errorf("drag move: got %v, want preview", lastKind(t, n))
	}
	n = feed(t, m, Event{Kind: EventRelease, Pos: at(20, 8)})
	if lastKind(t, n) != NotifyCommit {
		t.Errorf("drag release: got %v, want commit", lastKind(t, n))
	}
	box, _ := m.Shape().Frame()
	if box.Max != at(20, 8) {
		t.Errorf("Frame max: got %v, want (20,8)", box.Max)
	}

	// a start off any handle ends editing
	feed(t, m, Event{Kind: EventStart, Pos: at(100, 100)})
	if m.State() != StateCommitted {
		t.Errorf("State: got %v, want committed", m.State())
	}

	// a start on a handle re-enters editing
	feed(t, m, Event{Kind: EventStart, Pos: at(0, 1)})
	if m.State() != StateEditing || m.Dragging() != 0 {
		t.Errorf("re-enter: got %v dragging %d", m.State(), m.Dragging())
	}
}

func TestCommitFlagOnMove(t *testing.T) {
	m := NewMachine(shape.VariantEllipse)
	feed(t, m, Event{Kind: EventStart, Pos: at(0, 0)})
	n := feed(t, m, Event{Kind: EventMove, Pos: at(6, 6), IsCommit: true})
	if lastKind(t, n) != NotifyCommit {
		t.Errorf("got %v, want commit", lastKind(t, n))
	}
}

func TestCancel(t *testing.T) {
	t.Run("drawing", func(t *testing.T) {
		m := NewMachine(shape.VariantRectangle)
		n := feed(t, m,
			Event{Kind: EventStart, Pos: at(0, 0)},
			Event{Kind: EventMove, Pos: at(4, 4)},
			Event{Kind: EventCancel},
		)
		if lastKind(t, n) != NotifyCancelled || m.State() != StateIdle || m.Shape() != nil {
			t.Errorf("got %v in %v", lastKind(t, n), m.State())
		}
	})

	t.Run("editing restores handles", func(t *testing.T) {
		m := NewMachine(shape.VariantRectangle)
		feed(t, m,
			Event{Kind: EventStart, Pos: at(0, 0)},
			Event{Kind: EventRelease, Pos: at(10, 4)},
			Event{Kind: EventStart, Pos: at(10, 4)},
			Event{Kind: EventMove, Pos: at(30, 30)},
		)
		n := feed(t, m, Event{Kind: EventCancel})
		if lastKind(t, n) != NotifyCancelled {
			t.Fatalf("got %v, want cancelled", lastKind(t, n))
		}
		s := n[0].Shape
		box, ok := s.Frame()
		if !ok || box.Max != at(10, 4) {
			t.Errorf("restored frame: got %v", box)
		}
		if !n[0].Restored {
			t.Error("Restored: got false, want true")
		}
		if m.State() != StateIdle {
			t.Errorf("State: got %v, want idle", m.State())
		}
	})

	t.Run("editing without a drag keeps geometry", func(t *testing.T) {
		m := NewMachine(shape.VariantRectangle)
		feed(t, m,
			Event{Kind: EventStart, Pos: at(0, 0)},
			Event{Kind: EventRelease, Pos: at(10, 4)},
		)
		n := feed(t, m, Event{Kind: EventCancel})
		if lastKind(t, n) != NotifyCancelled {
			t.Fatalf("got %v, want cancelled", lastKind(t, n))
		}
		if n[0].Restored {
			t.Error("Restored: got true, want false")
		}
		if !n[0].Shape.IsValid() {
			t.Error("committed shape should stay valid")
		}
	})

	t.Run("idle is a no-op", func(t *testing.T) {
		m := NewMachine(shape.VariantPoint)
		if n := feed(t, m, Event{Kind: EventCancel}); len(n) != 0 {
			t.Errorf("got %d notifications", len(n))
		}
	})
}

func TestEditMachine(t *testing.T) {
	s := shape.New(shape.VariantPoint)
	if err := s.AddHandle(at(2, 2)); err != nil {
		t.Fatal(err)
	}
	m := EditMachine(s, WithTolerance(1))
	if m.State() != StateCommitted {
		t.Fatalf("State: got %v, want committed", m.State())
	}
	feed(t, m, Event{Kind: EventStart, Pos: at(4, 4)})
	if m.State() != StateCommitted {
		t.Errorf("miss outside tolerance should not edit, got %v", m.State())
	}
	feed(t, m, Event{Kind: EventStart, Pos: at(2.5, 2)})
	if m.State() != StateEditing {
		t.Errorf("State: got %v, want editing", m.State())
	}
}

func TestSegmentationCannotBeDrawn(t *testing.T) {
	m := NewMachine(shape.VariantSegmentation)
	if _, err := m.Handle(Event{Kind: EventStart, Pos: at(1, 1)}); err == nil {
		t.Error("expected an error")
	}
}

func TestParseEventKind(t *testing.T) {
	for _, k := range []EventKind{EventStart, EventMove, EventRelease, EventCancel, EventFinish} {
		got, err := ParseEventKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseEventKind(%q): got %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseEventKind("wheel"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
