package cosmod

import (
	"encoding/csv"
	"fmt"
	"os"
)

// ExportEstimates saves all estimates of an OD pass to a CSV file in the configured
// output directory. The epoch and covariance formats of the estimates themselves
// set the column contents.
func ExportEstimates(estimates []Estimate, filename string) {
	if len(estimates) == 0 {
		panic("no estimates to export")
	}
	f := createOutputFile(filename)
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write(estimates[0].csvHeader()); err != nil {
		panic(fmt.Errorf("could not write header to %s: %s", filename, err))
	}
	for _, est := range estimates {
		if err := w.Write(est.csvRecord()); err != nil {
			panic(fmt.Errorf("could not write estimate to %s: %s", filename, err))
		}
	}
}

// ExportResiduals saves all residuals of an OD pass to a CSV file in the configured
// output directory.
func ExportResiduals(residuals []Residual, filename string) {
	if len(residuals) == 0 {
		panic("no residuals to export")
	}
	f := createOutputFile(filename)
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write(residuals[0].csvHeader()); err != nil {
		panic(fmt.Errorf("could not write header to %s: %s", filename, err))
	}
	for _, res := range residuals {
		if err := w.Write(res.csvRecord()); err != nil {
			panic(fmt.Errorf("could not write residual to %s: %s", filename, err))
		}
	}
}

func createOutputFile(filename string) *os.File {
	path := cosmodConfig().outputDir + "/" + filename
	f, err := os.Create(path)
	if err != nil {
		panic(fmt.Errorf("could not create %s: %s", path, err))
	}
	return f
}
