// Package interaction drives a shape through creation and editing from a
// sequence of pointer events.
//
// The UI layer delivers Event values one at a time on a single logical
// thread; Machine.Handle returns the Notification values the event produced.
// There is no observer graph: callers inspect the returned notifications and
// decide what to recompute. A Preview asks for cheap live measurements, a
// Commit for a full recompute including pixel statistics, and Invalid reports
// that the current handles do not form a drawable shape.
package interaction

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ironsheep/image-roi-mcp/internal/shape"
)

// State is the interaction state of a Machine.
type State int

const (
	StateIdle State = iota
	StateDrawing
	StateEditing
	StateCommitted
)

func (s State) String() string {
	switch s {
	case StateDrawing:
		return "drawing"
	case StateEditing:
		return "editing"
	case StateCommitted:
		return "committed"
	default:
		return "idle"
	}
}

// EventKind is the kind of a pointer event.
type EventKind int

const (
	EventStart EventKind = iota
	EventMove
	EventRelease
	EventCancel
	// EventFinish is the explicit finish gesture (polygon double click, or
	// ending an edit session).
	EventFinish
)

func (k EventKind) String() string {
	switch k {
	case EventMove:
		return "move"
	case EventRelease:
		return "release"
	case EventCancel:
		return "cancel"
	case EventFinish:
		return "finish"
	default:
		return "start"
	}
}

// ParseEventKind resolves an event kind from its name.
func ParseEventKind(name string) (EventKind, error) {
	for _, k := range []EventKind{EventStart, EventMove, EventRelease, EventCancel, EventFinish} {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event kind %q", name)
}

// Event is one pointer event in image pixel coordinates.
type Event struct {
	Kind     EventKind
	Pos      r2.Vec
	IsCommit bool
}

// NotificationKind tells the caller what to recompute.
type NotificationKind int

const (
	NotifyPreview NotificationKind = iota
	NotifyCommit
	NotifyInvalid
	NotifyCancelled
)

func (k NotificationKind) String() string {
	switch k {
	case NotifyCommit:
		return "commit"
	case NotifyInvalid:
		return "invalid"
	case NotifyCancelled:
		return "cancelled"
	default:
		return "preview"
	}
}

// Notification is produced by Machine.Handle.
type Notification struct {
	Kind  NotificationKind
	State State
	Shape *shape.Shape
	// Err is the build failure behind an Invalid notification.
	Err error
	// Restored is set on a Cancelled notification when the edit session's
	// handles were put back, changing the shape's geometry.
	Restored bool
}

// DefaultTolerance is the handle hit radius in pixels.
const DefaultTolerance = 4.0

// Machine is the interaction state machine for one shape. It is not safe for
// concurrent use.
type Machine struct {
	tool      shape.Variant
	opts      []shape.Option
	tolerance float64

	state    State
	shape    *shape.Shape
	drag     int
	live     bool
	snapshot []shape.Handle
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithTolerance sets the handle hit radius.
func WithTolerance(px float64) MachineOption {
	return func(m *Machine) {
		if px > 0 {
			m.tolerance = px
		}
	}
}

// WithShapeOptions passes options to shapes created by the machine.
func WithShapeOptions(opts ...shape.Option) MachineOption {
	return func(m *Machine) { m.opts = append(m.opts, opts...) }
}

// NewMachine creates an idle machine that draws shapes of the tool variant.
func NewMachine(tool shape.Variant, opts ...MachineOption) *Machine {
	m := &Machine{tool: tool, tolerance: DefaultTolerance, drag: -1}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EditMachine creates a machine around an existing shape, in the committed
// state, so that a later start event on a handle re-enters editing.
func EditMachine(s *shape.Shape, opts ...MachineOption) *Machine {
	m := NewMachine(s.Variant(), opts...)
	m.shape = s
	m.state = StateCommitted
	return m
}

// State returns the current interaction state.
func (m *Machine) State() State { return m.state }

// Shape returns the shape being drawn or edited, or nil when idle.
func (m *Machine) Shape() *shape.Shape { return m.shape }

// Dragging returns the index of the dragged handle, or -1.
func (m *Machine) Dragging() int { return m.drag }

// Handle consumes one event. Errors are handle-mutation errors (capacity or
// index) and indicate an integration bug; build failures are reported as
// Invalid notifications instead.
func (m *Machine) Handle(ev Event) ([]Notification, error) {
	if ev.Kind == EventCancel {
		return m.cancel(), nil
	}
	switch m.state {
	case StateIdle:
		return m.handleIdle(ev)
	case StateDrawing:
		return m.handleDrawing(ev)
	case StateEditing:
		return m.handleEditing(ev)
	case StateCommitted:
		return m.handleCommitted(ev)
	}
	return nil, nil
}

func (m *Machine) handleIdle(ev Event) ([]Notification, error) {
	if ev.Kind != EventStart {
		return nil, nil
	}
	if m.tool == shape.VariantSegmentation {
		return nil, fmt.Errorf("segmentation regions cannot be drawn")
	}
	s := shape.New(m.tool, m.opts...)
	if err := s.AddHandle(ev.Pos); err != nil {
		return nil, err
	}
	switch m.tool {
	case shape.VariantRectangle, shape.VariantEllipse:
		// anchor corner plus the live opposite corner
		if err := s.AddHandle(ev.Pos); err != nil {
			return nil, err
		}
	}
	m.shape = s
	m.state = StateDrawing
	m.live = true
	return m.rebuild(ev, false), nil
}

func (m *Machine) handleDrawing(ev Event) ([]Notification, error) {
	s := m.shape
	last := s.Len() - 1
	switch ev.Kind {
	case EventMove:
		if m.tool == shape.VariantPolygon && !m.live {
			if s.IsFull() {
				// a full polygon moves its last vertex instead
				if err := s.MoveHandle(last, ev.Pos); err != nil {
					return nil, err
				}
				return m.rebuild(ev, false), nil
			}
			if err := s.AddHandle(ev.Pos); err != nil {
				return nil, err
			}
			m.live = true
			return m.rebuild(ev, false), nil
		}
		if err := s.MoveHandle(last, ev.Pos); err != nil {
			return nil, err
		}
		return m.rebuild(ev, false), nil

	case EventStart:
		if m.tool != shape.VariantPolygon {
			if err := s.MoveHandle(last, ev.Pos); err != nil {
				return nil, err
			}
			return m.rebuild(ev, false), nil
		}
		if m.live || s.IsFull() {
			if err := s.MoveHandle(last, ev.Pos); err != nil {
				return nil, err
			}
		} else if err := s.AddHandle(ev.Pos); err != nil {
			return nil, err
		}
		m.live = true
		return m.rebuild(ev, false), nil

	case EventRelease:
		if err := s.MoveHandle(last, ev.Pos); err != nil {
			return nil, err
		}
		m.live = false
		if m.tool == shape.VariantPolygon && !s.IsFull() {
			return m.rebuild(ev, false), nil
		}
		return m.complete(ev), nil

	case EventFinish:
		if m.tool != shape.VariantPolygon {
			return nil, nil
		}
		if m.live && s.Len() > 1 {
			if err := s.RemoveHandle(last); err != nil {
				return nil, err
			}
			m.live = false
		}
		return m.complete(ev), nil
	}
	return nil, nil
}

// complete ends drawing. Valid shapes move to editing with a commit;
// degenerate fixed-count shapes are discarded, degenerate polygons keep
// drawing.
func (m *Machine) complete(ev Event) []Notification {
	err := m.shape.BuildGeometry()
	if err == nil {
		m.state = StateEditing
		return []Notification{m.notify(NotifyCommit, nil)}
	}
	n := m.notify(NotifyInvalid, err)
	if m.tool != shape.VariantPolygon {
		m.reset()
		n.State = m.state
	}
	return []Notification{n}
}

func (m *Machine) handleEditing(ev Event) ([]Notification, error) {
	switch ev.Kind {
	case EventStart:
		if m.beginDrag(ev.Pos) {
			return nil, nil
		}
		m.state = StateCommitted
		return nil, nil

	case EventMove:
		if m.drag < 0 {
			return nil, nil
		}
		if err := m.shape.MoveHandle(m.drag, ev.Pos); err != nil {
			return nil, err
		}
		return m.rebuild(ev, false), nil

	case EventRelease:
		if m.drag < 0 {
			return nil, nil
		}
		if err := m.shape.MoveHandle(m.drag, ev.Pos); err != nil {
			return nil, err
		}
		m.drag = -1
		return m.rebuild(ev, true), nil

	case EventFinish:
		m.drag = -1
		m.state = StateCommitted
	}
	return nil, nil
}

func (m *Machine) handleCommitted(ev Event) ([]Notification, error) {
	if ev.Kind != EventStart || m.shape == nil {
		return nil, nil
	}
	if !m.beginDrag(ev.Pos) {
		return nil, nil
	}
	m.state = StateEditing
	return nil, nil
}

func (m *Machine) beginDrag(p r2.Vec) bool {
	i := m.shape.HitHandle(p, m.tolerance)
	if i < 0 {
		return false
	}
	m.drag = i
	m.snapshot = m.shape.Handles()
	return true
}

func (m *Machine) cancel() []Notification {
	switch m.state {
	case StateDrawing:
		s := m.shape
		m.reset()
		return []Notification{{Kind: NotifyCancelled, State: m.state, Shape: s}}
	case StateEditing:
		s := m.shape
		restored := false
		if m.snapshot != nil && len(m.snapshot) == s.Len() && !sameHandles(m.snapshot, s.Handles()) {
			_ = s.Restore(m.snapshot)
			_ = s.BuildGeometry()
			restored = true
		}
		m.reset()
		return []Notification{{Kind: NotifyCancelled, State: m.state, Shape: s, Restored: restored}}
	}
	return nil
}

func sameHandles(a, b []shape.Handle) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (m *Machine) reset() {
	m.state = StateIdle
	m.shape = nil
	m.drag = -1
	m.live = false
	m.snapshot = nil
}

// rebuild rebuilds the geometry after a handle change and reports it.
func (m *Machine) rebuild(ev Event, commit bool) []Notification {
	if err := m.shape.BuildGeometry(); err != nil {
		return []Notification{m.notify(NotifyInvalid, err)}
	}
	if commit || ev.IsCommit {
		return []Notification{m.notify(NotifyCommit, nil)}
	}
	return []Notification{m.notify(NotifyPreview, nil)}
}

func (m *Machine) notify(kind NotificationKind, err error) Notification {
	return Notification{Kind: kind, State: m.state, Shape: m.shape, Err: err}
}
