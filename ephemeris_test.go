package cosmod

import (
	"errors"
	"math"
	"testing"
)

// moonFit builds a short Moon ephemeris directly from the mean element sampler.
func moonFit(spanDays float64) *Ephemeris {
	el := moonDef.elements
	return buildEphemeris(moonDef, el.keplerPosition, J2000JDE, moonWindowDays, spanDays)
}

func TestEphemerisFitAccuracy(t *testing.T) {
	eph := moonFit(20)
	el := moonDef.elements
	for jde := J2000JDE + 0.25; jde < eph.EndJDE(); jde += 1.3 {
		pos, vel, err := eph.interpolate(jde)
		if err != nil {
			t.Fatalf("interpolate at %f: %s", jde, err)
		}
		truth := el.keplerPosition(jde)
		if !vectorsEqualTol(pos[:], truth[:], 1e-4) {
			t.Fatalf("position off at %f: %v vs %v", jde, pos, truth)
		}
		// Central difference of the sampler, in km/day like the interpolator.
		h := 1e-4
		fwd := el.keplerPosition(jde + h)
		bck := el.keplerPosition(jde - h)
		for axis := 0; axis < 3; axis++ {
			numVel := (fwd[axis] - bck[axis]) / (2 * h)
			if math.Abs(vel[axis]-numVel) > 1e-4 {
				t.Fatalf("velocity off at %f axis %d: %f vs %f", jde, axis, vel[axis], numVel)
			}
		}
	}
}

func TestEphemerisWindowContinuity(t *testing.T) {
	eph := moonFit(20)
	// Evaluate on both sides of the first window boundary.
	boundary := eph.StartJDE + eph.WindowDays
	ε := 1e-9
	posLo, velLo, err := eph.interpolate(boundary - ε)
	if err != nil {
		t.Fatal(err)
	}
	posHi, velHi, err := eph.interpolate(boundary + ε)
	if err != nil {
		t.Fatal(err)
	}
	if !vectorsEqualTol(posLo[:], posHi[:], 1e-5) {
		t.Fatalf("position discontinuous at window boundary: %v vs %v", posLo, posHi)
	}
	if !vectorsEqualTol(velLo[:], velHi[:], 1e-5) {
		t.Fatalf("velocity discontinuous at window boundary: %v vs %v", velLo, velHi)
	}
}

func TestEphemerisEndBoundary(t *testing.T) {
	eph := moonFit(20)
	// The exact end of the span clamps to the last instant of the last window.
	if _, _, err := eph.interpolate(eph.EndJDE()); err != nil {
		t.Fatalf("exact end boundary must interpolate: %s", err)
	}
	if _, _, err := eph.interpolate(eph.EndJDE() + 0.1); !errors.Is(err, ErrNoStateData) {
		t.Fatalf("expected ErrNoStateData, got %v", err)
	}
	// Pre-start epochs must be rejected, including those less than one window
	// before the start.
	if _, _, err := eph.interpolate(eph.StartJDE - 0.1); !errors.Is(err, ErrNoStateData) {
		t.Fatalf("expected ErrNoStateData, got %v", err)
	}
	if _, _, err := eph.interpolate(eph.StartJDE - 2*eph.WindowDays); !errors.Is(err, ErrNoStateData) {
		t.Fatalf("expected ErrNoStateData, got %v", err)
	}
}

func TestEphemerisErrors(t *testing.T) {
	empty := &Ephemeris{Name: "empty", PosDegree: chebyshevDegree, WindowDays: 1}
	if _, _, err := empty.interpolate(J2000JDE); !errors.Is(err, ErrNoInterpolationData) {
		t.Fatalf("expected ErrNoInterpolationData, got %v", err)
	}
	tooLow := &Ephemeris{
		Name: "low degree", StartJDE: J2000JDE, WindowDays: 1, PosDegree: 2,
		X: [][]float64{{1, 2}}, Y: [][]float64{{1, 2}}, Z: [][]float64{{1, 2}},
	}
	if _, _, err := tooLow.interpolate(J2000JDE + 0.5); !errors.Is(err, ErrInvalidInterpolationData) {
		t.Fatalf("expected ErrInvalidInterpolationData, got %v", err)
	}
}

func TestEphemerisStoreFromPath(t *testing.T) {
	cosm := testCosm(t)
	emb, err := cosm.ephem.FromPath([]int{2})
	if err != nil {
		t.Fatal(err)
	}
	if emb.Name != "Earth Barycenter" {
		t.Fatalf("unexpected body at path [2]: %s", emb.Name)
	}
	earth, err := cosm.ephem.FromPath([]int{2, 0})
	if err != nil {
		t.Fatal(err)
	}
	if earth.Name != "Earth" {
		t.Fatalf("unexpected body at path [2 0]: %s", earth.Name)
	}
	if _, err = cosm.ephem.FromPath([]int{42}); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}
