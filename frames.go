package cosmod

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/gonum/matrix/mat64"
	"github.com/spf13/viper"
)

// FrameKind tags the physical model carried by a Frame.
type FrameKind uint8

const (
	// FrameCelestial is a point mass frame.
	FrameCelestial FrameKind = iota
	// FrameGeoid adds oblateness information to a point mass.
	FrameGeoid
)

// Frame defines a coordinate frame attached to a celestial object. Frames are
// value types: they only carry scalars and small fixed arrays, so copy them freely.
type Frame struct {
	kind             FrameKind
	gm               float64
	flattening       float64
	equatorialRadius float64
	semiMajorRadius  float64
	ephemPath        [3]int // -1 marks unset levels
	framePath        [3]int
}

func newFramePath(levels ...int) (p [3]int) {
	p = [3]int{-1, -1, -1}
	for i, l := range levels {
		p[i] = l
	}
	return
}

func pathSlice(p [3]int) []int {
	out := make([]int, 0, 3)
	for _, l := range p {
		if l == -1 {
			break
		}
		out = append(out, l)
	}
	return out
}

// GM returns the gravitational parameter of this frame in km^3/s^2.
func (f Frame) GM() float64 { return f.gm }

// Flattening returns the flattening of a geoid frame (zero for point masses).
func (f Frame) Flattening() float64 { return f.flattening }

// EquatorialRadius returns the equatorial radius in km (zero for point masses).
func (f Frame) EquatorialRadius() float64 { return f.equatorialRadius }

// SemiMajorRadius returns the semi major radius in km (zero for point masses).
func (f Frame) SemiMajorRadius() float64 { return f.semiMajorRadius }

// Kind returns whether this frame is a point mass or a geoid.
func (f Frame) Kind() FrameKind { return f.kind }

// EphemPath returns the path of the attached body in the ephemeris hierarchy.
// An empty path is the solar system barycenter.
func (f Frame) EphemPath() []int { return pathSlice(f.ephemPath) }

// FramePath returns the path of this frame in the frame tree.
func (f Frame) FramePath() []int { return pathSlice(f.framePath) }

// Equals returns whether both frames share the same identity, i.e. the same
// position in the frame tree and the same attached ephemeris.
func (f Frame) Equals(o Frame) bool {
	return f.framePath == o.framePath && f.ephemPath == o.ephemPath
}

func (f Frame) String() string {
	if f.kind == FrameGeoid {
		return fmt.Sprintf("geoid frame %v (gm=%.3f)", f.FramePath(), f.gm)
	}
	return fmt.Sprintf("celestial frame %v (gm=%.3f)", f.FramePath(), f.gm)
}

// frameNode is one node of the frame tree. The tree is immutable after the Cosm
// is built, with the sole exception of the GM override of a named frame.
type frameNode struct {
	name     string
	frame    Frame
	rotation *Euler3AxisDt // nil means the rotation to the parent is identity
	children []frameNode
}

// seekByName performs a depth first search of the tree and returns the frame path
// of the node carrying this name.
func (n *frameNode) seekByName(name string, curPath []int) ([]int, error) {
	if n.name == name {
		return curPath, nil
	}
	for cno := range n.children {
		thisPath := append(append([]int{}, curPath...), cno)
		if found, err := n.children[cno].seekByName(name, thisPath); err == nil {
			return found, nil
		}
	}
	return nil, fmt.Errorf("frame `%s`: %w", name, ErrObjectNotFound)
}

// nodeAt returns the node at the provided frame path. Panics on an invalid path
// because paths are only ever produced by the tree itself.
func (n *frameNode) nodeAt(path []int) *frameNode {
	node := n
	for _, idx := range path {
		node = &node.children[idx]
	}
	return node
}

func (n *frameNode) names(out *[]string) {
	*out = append(*out, n.name)
	for i := range n.children {
		n.children[i].names(out)
	}
}

// dcmToParentAt returns the rotation of this node to its parent at the given epoch,
// or nil if that rotation is the identity.
func (n *frameNode) dcmToParentAt(dt time.Time) *mat64.Dense {
	if n.rotation == nil {
		return nil
	}
	return n.rotation.DCMToParent(dt)
}

// frameDefinition is one entry of the frame definition table.
type frameDefinition struct {
	name             string
	inherit          string
	gm               float64
	flattening       float64
	equatorialRadius float64
	semiMajorRadius  float64
	rightAsc         []float64
	declin           []float64
	w                []float64
}

// parseFrameDefinitions reads a TOML frame table. Each [frames.<name>] block names
// the frame it inherits from, optional physical constants (copied from the inherited
// frame when absent) and the rotation angle polynomials.
func parseFrameDefinitions(tomlContent string) ([]frameDefinition, error) {
	v := viper.New()
	v.SetConfigType("toml")
	if err := v.ReadConfig(bytes.NewBufferString(tomlContent)); err != nil {
		return nil, fmt.Errorf("could not parse frame table: %s", err)
	}
	defs := []frameDefinition{}
	for name := range v.GetStringMap("frames") {
		sub := v.Sub("frames." + name)
		if sub == nil {
			continue
		}
		def := frameDefinition{
			name:             strings.Replace(name, "_", " ", -1),
			inherit:          sub.GetString("inherit"),
			gm:               sub.GetFloat64("gm"),
			flattening:       sub.GetFloat64("flattening"),
			equatorialRadius: sub.GetFloat64("equatorial_radius"),
			semiMajorRadius:  sub.GetFloat64("semi_major_radius"),
			rightAsc:         toFloats(sub.Get("rotation.right_asc")),
			declin:           toFloats(sub.Get("rotation.declin")),
			w:                toFloats(sub.Get("rotation.w")),
		}
		if len(def.rightAsc) == 0 || len(def.declin) == 0 || len(def.w) == 0 {
			return nil, fmt.Errorf("[frames.%s] is missing its rotation angle polynomials", name)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// toFloats converts a decoded TOML array to a float slice.
func toFloats(raw interface{}) []float64 {
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]float64, len(items))
	for i, item := range items {
		switch val := item.(type) {
		case float64:
			out[i] = val
		case int64:
			out[i] = float64(val)
		case int:
			out[i] = float64(val)
		}
	}
	return out
}
