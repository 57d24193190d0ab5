package cosmod

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/gonum/matrix/mat64"
	"github.com/soniakeys/meeus/julian"
)

//go:embed data/frames.toml
var defaultFramesTOML string

// lightTimeIterations is the fixed number of light time convergence iterations.
// Three iterations converge to well below the interpolation noise.
const lightTimeIterations = 3

// LTCorr sets the light time correction applied to celestial state computations.
type LTCorr uint8

const (
	// LTCorrNone assumes instantaneous propagation of photons.
	LTCorrNone LTCorr = iota
	// LTCorrLightTime accounts for the light travel time from the target to the
	// observer. This corresponds to CN in SPICE.
	LTCorrLightTime
	// LTCorrAberration accounts for light time and stellar aberration with the
	// solar system barycenter as the inertial frame. Corresponds to CN+S in SPICE.
	LTCorrAberration
)

func (c LTCorr) String() string {
	switch c {
	case LTCorrLightTime:
		return "light time"
	case LTCorrAberration:
		return "aberration"
	default:
		return "none"
	}
}

// Cosm is the coupled ephemeris and frame tree engine: it answers where any body is
// relative to any other, in any loaded frame, at any epoch within the ephemeris span.
// A Cosm is immutable after construction except for FrameMutGM, so it must not be
// shared across goroutines while GMs are being overridden.
type Cosm struct {
	ephem       *EphemerisStore
	frameRoot   frameNode
	ephem2frame map[string][]int
	logger      log.Logger
}

// NewCosm builds a Cosm from the provided ephemeris store and the embedded IAU
// frame table.
func NewCosm(store *EphemerisStore) (*Cosm, error) {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stdout))
	logger = log.With(logger, "layer", "cosm", "ts", log.DefaultTimestampUTC)
	cosm := &Cosm{
		ephem: store,
		frameRoot: frameNode{
			name: "SSB J2000",
			frame: Frame{
				kind:      FrameCelestial,
				gm:        SSMass * SunGM,
				ephemPath: newFramePath(),
				framePath: newFramePath(),
			},
		},
		ephem2frame: make(map[string][]int),
		logger:      logger,
	}
	cosm.appendEphemerides()
	if err := cosm.appendFrames(defaultFramesTOML); err != nil {
		return nil, err
	}
	return cosm, nil
}

// MustCosm builds a Cosm from the built-in ephemerides over the configured span.
// Panics if the construction fails.
func MustCosm() *Cosm {
	cfg := cosmodConfig()
	store, err := DefaultEphemerides(cfg.ephemStart, cfg.ephemSpan)
	if err != nil {
		panic(err)
	}
	cosm, err := NewCosm(store)
	if err != nil {
		panic(err)
	}
	return cosm
}

// MustCosmGMAT builds a Cosm whose gravitational parameters match those used by GMAT.
func MustCosmGMAT() *Cosm {
	cosm := MustCosm()
	for _, it := range []struct {
		name string
		gm   float64
	}{
		{"Sun J2000", 132712440017.99},
		{"iau sun", 132712440017.99},
		{"Mercury Barycenter J2000", 22032.080486418},
		{"iau mercury", 22032.080486418},
		{"Venus Barycenter J2000", 324858.59882646},
		{"iau venus", 324858.59882646},
		{"EME2000", 398600.4415},
		{"iau earth", 398600.4415},
		{"Luna", 4902.8005821478},
		{"iau moon", 4902.8005821478},
		{"Mars Barycenter J2000", 42828.314258067},
		{"iau mars", 42828.314258067},
		{"Jupiter Barycenter J2000", 126712767.85780},
		{"iau jupiter", 126712767.85780},
		{"Saturn Barycenter J2000", 37940626.061137},
		{"iau saturn", 37940626.061137},
		{"Uranus Barycenter J2000", 5794549.0070719},
		{"iau uranus", 5794549.0070719},
		{"Neptune Barycenter J2000", 6836534.0638793},
		{"iau neptune", 6836534.0638793},
	} {
		cosm.FrameMutGM(it.name, it.gm)
	}
	return cosm
}

// appendEphemerides builds one J2000 frame per body of the ephemeris store. All of
// these frames share the J2000 orientation, so they are all direct children of the
// root frame regardless of their depth in the ephemeris hierarchy.
func (c *Cosm) appendEphemerides() {
	c.ephem2frame[pathKey(nil)] = []int{}
	for i, child := range c.ephem.Root().Children() {
		c.appendBodyFrame(child, []int{i})
		for j, grandChild := range child.Children() {
			c.appendBodyFrame(grandChild, []int{i, j})
		}
	}
}

func (c *Cosm) appendBodyFrame(e *Ephemeris, ephemPath []int) {
	gm, found := e.Constants["GM"]
	if !found {
		c.logger.Log("warning", "no GM value", "body", e.Name)
		return
	}
	kind := FrameCelestial
	eqRadius := e.Constants["Equatorial radius"]
	if eqRadius > 0 {
		kind = FrameGeoid
	}
	pos := len(c.frameRoot.children)
	c.frameRoot.children = append(c.frameRoot.children, frameNode{
		name: e.Name + " J2000",
		frame: Frame{
			kind:             kind,
			gm:               gm,
			flattening:       e.Constants["Flattening"],
			equatorialRadius: eqRadius,
			semiMajorRadius:  eqRadius,
			ephemPath:        newFramePath(ephemPath...),
			framePath:        newFramePath(pos),
		},
	})
	c.ephem2frame[pathKey(ephemPath)] = []int{pos}
}

// appendFrames parses a TOML frame table and inserts each frame as a child of the
// frame it inherits from. Physical constants absent from a definition are copied
// from the inherited frame.
func (c *Cosm) appendFrames(tomlContent string) error {
	defs, err := parseFrameDefinitions(tomlContent)
	if err != nil {
		return err
	}
	for _, def := range defs {
		if _, err := c.TryFrame(def.name); err == nil {
			c.logger.Log("warning", "overwriting frame", "frame", def.name)
		}
		srcFrame, err := c.TryFrame(def.inherit)
		if err != nil {
			c.logger.Log("error", "unknown inherited frame, skipping", "frame", def.name, "inherit", def.inherit)
			continue
		}
		newFrame := srcFrame
		if def.gm > 0 {
			newFrame.gm = def.gm
		}
		if def.flattening > 0 {
			newFrame.flattening = def.flattening
			newFrame.kind = FrameGeoid
		}
		if def.equatorialRadius > 0 {
			newFrame.equatorialRadius = def.equatorialRadius
			newFrame.kind = FrameGeoid
		}
		if def.semiMajorRadius > 0 {
			newFrame.semiMajorRadius = def.semiMajorRadius
		}
		parent := c.frameRoot.nodeAt(srcFrame.FramePath())
		fpath := append(srcFrame.FramePath(), len(parent.children))
		newFrame.framePath = newFramePath(fpath...)
		parent.children = append(parent.children, frameNode{
			name:     def.name,
			frame:    newFrame,
			rotation: NewEuler3AxisDt(def.rightAsc, def.declin, def.w),
		})
	}
	return nil
}

// fixFrameName canonicalizes a frame name for querying: aliases are resolved, IAU
// frame names are kept lower case, and anything else is capitalized with a J2000
// suffix appended when missing.
func fixFrameName(name string) string {
	name = strings.ToLower(strings.TrimSpace(strings.Replace(name, "_", " ", -1)))
	switch name {
	case "eme2000", "earth":
		return "Earth J2000"
	case "luna", "moon":
		return "Moon J2000"
	case "emb", "earth moon barycenter", "earth barycenter":
		return "Earth Barycenter J2000"
	case "ssb", "ssb j2000":
		return "SSB J2000"
	case "sun":
		return "Sun J2000"
	case "mercury", "venus", "mars", "jupiter", "saturn", "uranus", "neptune":
		return capitalize(name) + " Barycenter J2000"
	}
	words := strings.Split(name, " ")
	if words[0] == "iau" {
		return name
	}
	for i, word := range words {
		words[i] = capitalize(word)
	}
	fixed := strings.Join(words, " ")
	if !strings.HasSuffix(fixed, "J2000") {
		fixed += " J2000"
	}
	return fixed
}

// TryFrame returns the frame carrying the provided name, after canonicalization.
func (c *Cosm) TryFrame(name string) (Frame, error) {
	name = fixFrameName(name)
	if c.frameRoot.name == name {
		return c.frameRoot.frame, nil
	}
	path, err := c.frameRoot.seekByName(name, nil)
	if err != nil {
		return Frame{}, err
	}
	return c.frameRoot.nodeAt(path).frame, nil
}

// Frame returns the frame carrying the provided name, or panics.
func (c *Cosm) Frame(name string) Frame {
	frame, err := c.TryFrame(name)
	if err != nil {
		panic(err)
	}
	return frame
}

// FrameMutGM overrides the GM of the named frame. Panics if the frame is unknown.
func (c *Cosm) FrameMutGM(name string, newGM float64) {
	frame := c.Frame(name)
	c.frameRoot.nodeAt(frame.FramePath()).frame.gm = newGM
}

// FramesGetNames returns the names of all loaded frames.
func (c *Cosm) FramesGetNames() []string {
	var names []string
	c.frameRoot.names(&names)
	return names
}

// frameFromEphemPath returns the storage frame of the body at this ephemeris path.
func (c *Cosm) frameFromEphemPath(ephemPath []int) Frame {
	fpath, found := c.ephem2frame[pathKey(ephemPath)]
	if !found {
		panic(fmt.Errorf("no frame for ephemeris path %v", ephemPath))
	}
	return c.frameRoot.nodeAt(fpath).frame
}

// RawCelestialState returns the state of the body at this ephemeris path relative
// to its parent, in the body's storage frame. The root path returns a zero state.
func (c *Cosm) RawCelestialState(path []int, dt time.Time) (Orbit, error) {
	if len(path) == 0 {
		return Orbit{DT: dt, Frame: c.frameRoot.frame}, nil
	}
	ephem, err := c.ephem.FromPath(path)
	if err != nil {
		return Orbit{}, err
	}
	pos, vel, err := ephem.interpolate(julian.TimeToJD(dt.UTC()))
	if err != nil {
		return Orbit{}, err
	}
	frame := c.frameFromEphemPath(path)
	return Orbit{pos[0], pos[1], pos[2],
		vel[0] / SecondsPerDay, vel[1] / SecondsPerDay, vel[2] / SecondsPerDay,
		dt, frame}, nil
}

// TryCelestialState returns the state of the target body in the provided frame,
// with the requested light time correction.
//
// The light time correction follows the SPICE reception case, and the aberration
// computation is a conversion of the SPICE stelab routine.
func (c *Cosm) TryCelestialState(targetEphemPath []int, dt time.Time, frame Frame, correction LTCorr) (Orbit, error) {
	targetFrame := c.frameFromEphemPath(targetEphemPath)
	if correction == LTCorrNone {
		state := Orbit{DT: dt, Frame: targetFrame}
		chgd, err := c.TryFrameChg(state, frame)
		if err != nil {
			return Orbit{}, err
		}
		return chgd.Neg(), nil
	}

	// Geometric states as seen from the SSB.
	ssb2k := c.frameRoot.frame
	obs, err := c.TryCelestialState(frame.EphemPath(), dt, ssb2k, LTCorrNone)
	if err != nil {
		return Orbit{}, err
	}
	tgt, err := c.TryCelestialState(targetEphemPath, dt, ssb2k, LTCorrNone)
	if err != nil {
		return Orbit{}, err
	}
	iterations := cosmodConfig().ltIterations
	for it := 0; it < iterations; it++ {
		lt := tgt.rawSub(obs).RMag() / SpeedOfLight
		ltDt := dt.Add(-time.Duration(lt*1e9) * time.Nanosecond)
		tgt, err = c.TryCelestialState(targetEphemPath, ltDt, ssb2k, LTCorrNone)
		if err != nil {
			return Orbit{}, err
		}
	}
	rel := tgt.rawSub(obs)
	state := Orbit{rel.X, rel.Y, rel.Z, rel.VX, rel.VY, rel.VZ, dt, frame}

	// Include the range rate term in the velocity computation, per the SPICE
	// reception case documentation.
	rHat := state.RHat()
	dltdt := Dot(state.Radius(), state.Velocity()) / (state.RMag() * SpeedOfLight)
	state.VX = tgt.VX*(1-dltdt) - obs.VX
	state.VY = tgt.VY*(1-dltdt) - obs.VY
	state.VZ = tgt.VZ*(1-dltdt) - obs.VZ

	if correction == LTCorrAberration {
		vByC := []float64{obs.VX / SpeedOfLight, obs.VY / SpeedOfLight, obs.VZ / SpeedOfLight}
		if Dot(vByC, vByC) >= 1 {
			c.logger.Log("warning", "observer is traveling faster than the speed of light")
		} else {
			hHat := Cross(rHat, vByC)
			// A zero rotation axis means the observer moves along the line of
			// sight, and no correction applies.
			if Norm(hHat) > math.SmallestNonzeroFloat64 {
				φ := math.Asin(Norm(hHat))
				abPos := Rotv(state.Radius(), hHat, φ)
				state.X = abPos[0]
				state.Y = abPos[1]
				state.Z = abPos[2]
			}
		}
	}
	return state, nil
}

// CelestialState returns the state of the target body in the provided frame, or panics.
func (c *Cosm) CelestialState(targetEphemPath []int, dt time.Time, frame Frame, correction LTCorr) Orbit {
	state, err := c.TryCelestialState(targetEphemPath, dt, frame, correction)
	if err != nil {
		panic(err)
	}
	return state
}

// TryFrameChgDCMFromTo returns the DCM rotating vectors from the `from` frame to
// the `to` frame at the provided epoch.
func (c *Cosm) TryFrameChgDCMFromTo(from, to Frame, dt time.Time) (*mat64.Dense, error) {
	dcm := DenseIdentity(3)
	if from.framePath == to.framePath {
		return dcm, nil
	}

	stateFramePath := from.FramePath()
	newFramePath := to.FramePath()
	commonPath := findCommonRoot(newFramePath, stateFramePath)

	mulInto := func(next mat64.Matrix) {
		var out mat64.Dense
		out.Mul(dcm, next)
		dcm = &out
	}

	negatedFwd := false
	// Walk forward from the destination frame.
	for i := len(newFramePath) - 1; i >= len(commonPath); i-- {
		nextDCM := c.frameRoot.nodeAt(newFramePath[0 : i+1]).dcmToParentAt(dt)
		if nextDCM == nil {
			continue
		}
		if len(newFramePath) < len(stateFramePath) && i == len(commonPath) {
			mulInto(nextDCM.T())
			negatedFwd = true
		} else {
			mulInto(nextDCM)
		}
	}
	// Walk backward from the current frame up to the common node.
	for i := len(stateFramePath) - 1; i >= len(commonPath); i-- {
		nextDCM := c.frameRoot.nodeAt(stateFramePath[0 : i+1]).dcmToParentAt(dt)
		if nextDCM == nil {
			continue
		}
		if !negatedFwd && i == len(commonPath) {
			// Just crossed the common node, so negate this rotation.
			mulInto(nextDCM.T())
		} else {
			mulInto(nextDCM)
		}
	}
	if negatedFwd {
		dcm = mat64.DenseCopyOf(dcm.T())
	}
	return dcm, nil
}

// TryFrameChg returns the provided state expressed in the new frame, translating
// between the frame centers and rotating between the frame orientations.
func (c *Cosm) TryFrameChg(state Orbit, newFrame Frame) (Orbit, error) {
	if state.Frame.Equals(newFrame) {
		return state, nil
	}
	newEphemPath := newFrame.EphemPath()
	stateEphemPath := state.Frame.EphemPath()
	commonPath := findCommonRoot(newEphemPath, stateEphemPath)

	var newState Orbit
	if state.RMag() > 0 {
		newState = state
		// Walk backward from the current state up to the common node.
		for i := len(stateEphemPath) - 1; i >= len(commonPath); i-- {
			nextState, err := c.RawCelestialState(stateEphemPath[0:i+1], state.DT)
			if err != nil {
				return Orbit{}, err
			}
			newState = newState.rawAdd(nextState)
		}
		// Walk forward from the destination state.
		for i := len(newEphemPath) - 1; i >= len(commonPath); i-- {
			nextState, err := c.RawCelestialState(newEphemPath[0:i+1], state.DT)
			if err != nil {
				return Orbit{}, err
			}
			newState = newState.rawSub(nextState)
		}
	} else {
		negatedFwd := false
		newState = state
		if len(stateEphemPath) == 0 {
			// The state is the SSB itself, so invert it.
			newState = state.Neg()
		}
		// Walk forward from the destination state.
		for i := len(newEphemPath) - 1; i >= len(commonPath); i-- {
			nextState, err := c.RawCelestialState(newEphemPath[0:i+1], state.DT)
			if err != nil {
				return Orbit{}, err
			}
			if len(newEphemPath) < len(stateEphemPath) && i == len(commonPath) {
				// Crossed the common node going forward, so subtract this state.
				newState = newState.rawSub(nextState)
				negatedFwd = true
			} else {
				newState = newState.rawAdd(nextState)
			}
		}
		// Walk backward from the current state up to the common node.
		for i := len(stateEphemPath) - 1; i >= len(commonPath); i-- {
			nextState, err := c.RawCelestialState(stateEphemPath[0:i+1], state.DT)
			if err != nil {
				return Orbit{}, err
			}
			if !negatedFwd && i == len(commonPath) {
				// Crossed the common node without having negated going forward.
				newState = newState.rawSub(nextState)
			} else {
				newState = newState.rawAdd(nextState)
			}
		}
		if negatedFwd {
			newState = newState.Neg()
		}
	}

	newState.Frame = newFrame
	dcm, err := c.TryFrameChgDCMFromTo(state.Frame, newFrame, state.DT)
	if err != nil {
		return Orbit{}, err
	}
	return newState.ApplyDCM(dcm), nil
}

// FrameChg returns the provided state expressed in the new frame, or panics.
func (c *Cosm) FrameChg(state Orbit, newFrame Frame) Orbit {
	newState, err := c.TryFrameChg(state, newFrame)
	if err != nil {
		panic(err)
	}
	return newState
}

// findCommonRoot returns the deepest shared ancestor path of both tree paths.
func findCommonRoot(from, to []int) []int {
	common := []int{}
	shorter, longer := from, to
	if len(to) < len(from) {
		shorter, longer = to, from
	}
	for n, obj := range shorter {
		if longer[n] != obj {
			break
		}
		common = append(common, obj)
	}
	return common
}

func pathKey(path []int) string {
	return fmt.Sprint(path)
}
