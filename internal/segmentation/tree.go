package segmentation

import (
	apperrors "github.com/ironsheep/image-roi-mcp/internal/errors"
)

// Group is a named set of regions with its own checkbox and opacity.
type Group struct {
	Name    string
	Checked bool
	Opacity float64
	regions []*Region
}

// Regions returns the group's regions in insertion order.
func (g *Group) Regions() []*Region {
	return append([]*Region(nil), g.regions...)
}

// SetOpacity sets the opacity of the group and every region in it.
func (g *Group) SetOpacity(v float64) error {
	if v < 0 || v > 1 {
		return apperrors.NewInvalidParameterError("opacity must be in [0,1], got %v", v)
	}
	g.Opacity = v
	for _, r := range g.regions {
		r.Opacity = v
	}
	return nil
}

// Tree is root > groups > regions. A region is visible when the root, its
// group and the region itself are all checked.
type Tree struct {
	RootChecked bool
	groups      []*Group
}

// NewTree returns an empty tree with the root checked.
func NewTree() *Tree {
	return &Tree{RootChecked: true}
}

// AddGroup returns the group named name, creating it checked and opaque.
func (t *Tree) AddGroup(name string) *Group {
	if g, ok := t.Group(name); ok {
		return g
	}
	g := &Group{Name: name, Checked: true, Opacity: 1}
	t.groups = append(t.groups, g)
	return g
}

// Add puts r under the named group.
func (t *Tree) Add(group string, r *Region) {
	g := t.AddGroup(group)
	g.regions = append(g.regions, r)
}

// Group looks up a group by name.
func (t *Tree) Group(name string) (*Group, bool) {
	for _, g := range t.groups {
		if g.Name == name {
			return g, true
		}
	}
	return nil, false
}

// Groups returns the groups in insertion order.
func (t *Tree) Groups() []*Group {
	return append([]*Group(nil), t.groups...)
}

// Regions returns every region, group by group.
func (t *Tree) Regions() []*Region {
	var out []*Region
	for _, g := range t.groups {
		out = append(out, g.regions...)
	}
	return out
}

// Find returns the region with the given ID.
func (t *Tree) Find(id string) (*Region, bool) {
	for _, g := range t.groups {
		for _, r := range g.regions {
			if r.ID == id {
				return r, true
			}
		}
	}
	return nil, false
}

// SetGroupChecked sets a group's checkbox.
func (t *Tree) SetGroupChecked(name string, checked bool) error {
	g, ok := t.Group(name)
	if !ok {
		return apperrors.NewNotFoundError("segment group", name)
	}
	g.Checked = checked
	return nil
}

// SetRegionChecked sets a region's checkbox.
func (t *Tree) SetRegionChecked(id string, checked bool) error {
	r, ok := t.Find(id)
	if !ok {
		return apperrors.NewNotFoundError("segment", id)
	}
	r.checked = checked
	return nil
}

// Apply resolves effective visibility into every region and returns the
// visible ones.
func (t *Tree) Apply() []*Region {
	var visible []*Region
	for _, g := range t.groups {
		for _, r := range g.regions {
			r.Visible = t.RootChecked && g.Checked && r.checked
			if r.Visible {
				visible = append(visible, r)
			}
		}
	}
	return visible
}
