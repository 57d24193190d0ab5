package cosmod

import (
	"sync"
	"testing"

	"github.com/gonum/floats"
)

var (
	testCosmOnce sync.Once
	testCosmVal  *Cosm
)

// testCosm returns a shared Cosm to avoid refitting the ephemerides in every test.
func testCosm(t *testing.T) *Cosm {
	testCosmOnce.Do(func() {
		testCosmVal = MustCosm()
	})
	if testCosmVal == nil {
		t.Fatal("could not build Cosm")
	}
	return testCosmVal
}

func assertPanic(t *testing.T, f func()) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected a panic")
		}
	}()
	f()
}

func vectorsEqual(a, b []float64) bool {
	return vectorsEqualTol(a, b, 1e-8)
}

func vectorsEqualTol(a, b []float64, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !floats.EqualWithinAbs(a[i], b[i], tol) {
			return false
		}
	}
	return true
}
