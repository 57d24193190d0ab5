package cosmod

import (
	"strings"
	"testing"
	"time"

	"github.com/gonum/matrix/mat64"
)

func TestEpochFormats(t *testing.T) {
	dt := time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC) // J2000 epoch
	if got := EpochJDE.format(dt); got != "2451545.000000000" {
		t.Fatalf("JDE format fail: %s", got)
	}
	if got := EpochMJD.format(dt); got != "51544.500000000" {
		t.Fatalf("MJD format fail: %s", got)
	}
	if got := EpochGregorianUTC.format(dt); !strings.HasPrefix(got, "2000-01-01T12:00:00") {
		t.Fatalf("Gregorian format fail: %s", got)
	}
	if got := EpochUnixSeconds.format(time.Unix(42, 0)); got != "42.000" {
		t.Fatalf("Unix format fail: %s", got)
	}
}

func TestEstimateState(t *testing.T) {
	cosm := testCosm(t)
	eme2000 := cosm.Frame("EME2000")
	nominal := NewOrbitCartesian(7000, 0, 0, 0, 7.5, 0, testEpoch, eme2000)
	covar := DenseIdentity(6)
	est := NewInitialEstimate(nominal, covar)
	if !est.Predicted {
		t.Fatal("the initial estimate is predicted")
	}
	if !est.Epoch().Equal(testEpoch) {
		t.Fatal("unexpected epoch")
	}
	if !vectorsEqual(est.State().Vector(), nominal.Vector()) {
		t.Fatal("a zero deviation must return the nominal state")
	}
	est.StateDeviation = mat64.NewVector(6, []float64{1, 2, 3, 0.1, 0.2, 0.3})
	if !vectorsEqual(est.State().Vector(), []float64{7001, 2, 3, 0.1, 7.7, 0.3}) {
		t.Fatalf("deviation not applied: %s", est.State())
	}
	// A 1 km deviation on a unit variance is within 3 sigma but not 0.5 sigma.
	if !est.Within3Sigma() {
		t.Fatal("expected within 3 sigma")
	}
	if est.WithinSigma(0.5) {
		t.Fatal("expected outside 0.5 sigma")
	}
}

func TestEstimateCSV(t *testing.T) {
	cosm := testCosm(t)
	eme2000 := cosm.Frame("EME2000")
	nominal := NewOrbitCartesian(7000, 0, 0, 0, 7.5, 0, testEpoch, eme2000)
	est := NewInitialEstimate(nominal, DenseIdentity(6))

	// Epoch column, six deviations, six diagonal covariance terms.
	if len(est.csvHeader()) != 13 || len(est.csvRecord()) != 13 {
		t.Fatalf("unexpected CSV width: %d, %d", len(est.csvHeader()), len(est.csvRecord()))
	}
	est.CovarFmt = CovarFull
	if len(est.csvRecord()) != 1+6+36 {
		t.Fatalf("unexpected full covariance CSV width: %d", len(est.csvRecord()))
	}
	if len(est.csvHeader()) != len(est.csvRecord()) {
		t.Fatal("header and record widths differ")
	}
}

func TestResidualCSV(t *testing.T) {
	res := ZeroResidual(2)
	if m, _ := res.Prefit.Dims(); m != 2 {
		t.Fatalf("unexpected zero residual size: %d", m)
	}
	// Epoch column, two prefits, two postfits.
	if len(res.csvHeader()) != 5 || len(res.csvRecord()) != 5 {
		t.Fatalf("unexpected CSV width: %d, %d", len(res.csvHeader()), len(res.csvRecord()))
	}
	res = NewResidual(testEpoch, mat64.NewVector(2, []float64{1, 2}), mat64.NewVector(2, nil))
	if !strings.Contains(res.String(), "Prefit") {
		t.Fatalf("unexpected residual string: %s", res)
	}
}
