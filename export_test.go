package cosmod

import (
	"encoding/csv"
	"os"
	"testing"

	"github.com/gonum/matrix/mat64"
)

func TestExportEstimatesAndResiduals(t *testing.T) {
	cosm := testCosm(t)
	eme2000 := cosm.Frame("EME2000")
	cosmodConfig() // Force the defaults, then redirect the output for this test.
	prevOutput := config.outputDir
	config.outputDir = t.TempDir()
	defer func() { config.outputDir = prevOutput }()

	nominal := NewOrbitCartesian(7000, 0, 0, 0, 7.5, 0, testEpoch, eme2000)
	estimates := []Estimate{
		NewInitialEstimate(nominal, DenseIdentity(6)),
		NewInitialEstimate(nominal, DenseIdentity(6)),
	}
	ExportEstimates(estimates, "estimates.csv")

	f, err := os.Open(config.outputDir + "/estimates.csv")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("expected a header and two records, got %d rows", len(records))
	}
	if len(records[0]) != len(records[1]) {
		t.Fatal("header and record widths differ")
	}

	residuals := []Residual{
		NewResidual(testEpoch, mat64.NewVector(2, []float64{1, 2}), mat64.NewVector(2, nil)),
	}
	ExportResiduals(residuals, "residuals.csv")
	rf, err := os.Open(config.outputDir + "/residuals.csv")
	if err != nil {
		t.Fatal(err)
	}
	defer rf.Close()
	resRecords, err := csv.NewReader(rf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(resRecords) != 2 {
		t.Fatalf("expected a header and one record, got %d rows", len(resRecords))
	}

	assertPanic(t, func() { ExportEstimates(nil, "empty.csv") })
	assertPanic(t, func() { ExportResiduals(nil, "empty.csv") })
}
