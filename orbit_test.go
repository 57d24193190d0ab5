package cosmod

import (
	"math"
	"testing"
	"time"

	"github.com/gonum/floats"
)

func TestOrbitKeplerian(t *testing.T) {
	cosm := testCosm(t)
	eme2000 := cosm.Frame("EME2000")
	a := 22000.0
	orbit := NewOrbitKeplerian(a, 0.01, 30, 80, 40, 0, testEpoch, eme2000)
	if !floats.EqualWithinAbs(orbit.SMA(), a, 1e-6) {
		t.Fatalf("SMA fail: %f", orbit.SMA())
	}
	// At periapsis, the radius is a(1-e).
	if !floats.EqualWithinAbs(orbit.RMag(), a*(1-0.01), 1e-6) {
		t.Fatalf("periapsis radius fail: %f", orbit.RMag())
	}
	expectedEnergy := -eme2000.GM() / (2 * a)
	if !floats.EqualWithinAbs(orbit.Energy(), expectedEnergy, 1e-9) {
		t.Fatalf("energy fail: %f vs %f", orbit.Energy(), expectedEnergy)
	}
	expectedPeriod := 2 * math.Pi * math.Sqrt(a*a*a/eme2000.GM())
	if math.Abs(orbit.Period().Seconds()-expectedPeriod) > 1e-3 {
		t.Fatalf("period fail: %f vs %f", orbit.Period().Seconds(), expectedPeriod)
	}
	assertPanic(t, func() { NewOrbitKeplerian(1000, 1.0, 0, 0, 0, 0, testEpoch, eme2000) })
}

func TestOrbitAddSub(t *testing.T) {
	cosm := testCosm(t)
	eme2000 := cosm.Frame("EME2000")
	luna := cosm.Frame("Luna")
	o1 := NewOrbitCartesian(1, 2, 3, 4, 5, 6, testEpoch, eme2000)
	o2 := NewOrbitCartesian(6, 5, 4, 3, 2, 1, testEpoch, eme2000)
	sum := o1.Add(o2)
	if !vectorsEqual(sum.Vector(), []float64{7, 7, 7, 7, 7, 7}) {
		t.Fatalf("add fail: %s", sum)
	}
	if !vectorsEqual(o1.Sub(o1).Vector(), make([]float64, 6)) {
		t.Fatal("sub of self must be zero")
	}
	if !vectorsEqual(o1.Neg().Vector(), []float64{-1, -2, -3, -4, -5, -6}) {
		t.Fatal("neg fail")
	}
	assertPanic(t, func() { o1.Add(o2.WithFrame(luna)) })
	assertPanic(t, func() { o1.Add(NewOrbitCartesian(6, 5, 4, 3, 2, 1, testEpoch.Add(time.Second), eme2000)) })
}

func TestOrbitApplyDCM(t *testing.T) {
	cosm := testCosm(t)
	eme2000 := cosm.Frame("EME2000")
	orbit := NewOrbitCartesian(7000, 100, -200, 0.1, 7.5, -0.2, testEpoch, eme2000)
	rotated := orbit.ApplyDCM(R3(0.75))
	if !floats.EqualWithinAbs(rotated.RMag(), orbit.RMag(), 1e-9) {
		t.Fatal("DCM application must preserve the position norm")
	}
	if !floats.EqualWithinAbs(rotated.VMag(), orbit.VMag(), 1e-9) {
		t.Fatal("DCM application must preserve the velocity norm")
	}
}
