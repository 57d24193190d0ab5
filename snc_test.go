package cosmod

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/gonum/floats"
)

func TestSNCApplicability(t *testing.T) {
	assertPanic(t, func() { NewSNC(time.Minute, []float64{1, 2, 3, 4}) })

	epoch := time.Date(2018, 2, 25, 0, 0, 0, 0, time.UTC)
	snc := NewSNC(2*time.Minute, []float64{1e-8, 1e-8, 1e-8})
	mat, ok := snc.ToMatrix(epoch)
	if !ok {
		t.Fatal("a fresh SNC must be applicable")
	}
	if mat.At(0, 0) != 1e-8 || mat.At(1, 2) != 0 {
		t.Fatal("unexpected SNC matrix")
	}

	// Not applicable before its start time.
	withStart := NewSNCWithStart(2*time.Minute, []float64{1e-8, 1e-8, 1e-8}, epoch.Add(time.Hour))
	if _, ok := withStart.ToMatrix(epoch); ok {
		t.Fatal("SNC must not apply before its start time")
	}
	if _, ok := withStart.ToMatrix(epoch.Add(2 * time.Hour)); !ok {
		t.Fatal("SNC must apply after its start time")
	}

	// Not applicable when the measurement gap exceeds the disable time.
	snc.prevEpoch = epoch
	if _, ok := snc.ToMatrix(epoch.Add(time.Minute)); !ok {
		t.Fatal("SNC must apply within the disable time")
	}
	if _, ok := snc.ToMatrix(epoch.Add(3 * time.Minute)); ok {
		t.Fatal("SNC must not apply past the disable time")
	}
}

func TestSNCDecay(t *testing.T) {
	assertPanic(t, func() { NewSNCWithDecay(time.Minute, []float64{1, 2, 3}, []float64{1}) })
	epoch := time.Date(2018, 2, 25, 0, 0, 0, 0, time.UTC)
	k := 1e-2 // inverse seconds
	snc := NewSNCWithDecay(time.Hour, []float64{1e-6, 1e-6, 1e-6}, []float64{k, k, k})
	snc.initEpoch = epoch
	// After 1/k seconds, the diagonal has decayed by a factor e.
	mat, ok := snc.ToMatrix(epoch.Add(time.Duration(1/k) * time.Second))
	if !ok {
		t.Fatal("decaying SNC must be applicable")
	}
	if !floats.EqualWithinAbs(mat.At(0, 0), 1e-6*math.Exp(-1), 1e-12) {
		t.Fatalf("unexpected decayed value: %e", mat.At(0, 0))
	}
	if !strings.Contains(snc.String(), "exp") {
		t.Fatalf("decaying SNC must print its decay: %s", snc.String())
	}
}
