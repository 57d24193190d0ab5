package cosmod

import (
	"fmt"
	"time"

	"github.com/gonum/matrix/mat64"
)

// Residual stores the prefit and postfit residuals of a measurement update.
type Residual struct {
	// DT is the epoch of the measurement.
	DT time.Time
	// Prefit is the observation deviation prior to the update.
	Prefit *mat64.Vector
	// Postfit is the observation deviation after the update.
	Postfit  *mat64.Vector
	EpochFmt EpochFormat
}

// NewResidual creates a residual at the provided epoch.
func NewResidual(dt time.Time, prefit, postfit *mat64.Vector) Residual {
	return Residual{dt, prefit, postfit, EpochGregorianUTC}
}

// ZeroResidual returns an empty residual of the provided measurement size. Useful
// to store a residual outside the scope of a filtering loop.
func ZeroResidual(m int) Residual {
	return Residual{time.Time{}, mat64.NewVector(m, nil), mat64.NewVector(m, nil), EpochGregorianUTC}
}

func (r Residual) String() string {
	return fmt.Sprintf("Prefit %v Postfit %v", mat64.Formatted(r.Prefit.T()), mat64.Formatted(r.Postfit.T()))
}

// csvHeader returns the CSV header of serialized residuals.
func (r Residual) csvHeader() []string {
	hdr := []string{r.EpochFmt.String()}
	m, _ := r.Prefit.Dims()
	for i := 0; i < m; i++ {
		hdr = append(hdr, fmt.Sprintf("prefit_%d", i))
	}
	for i := 0; i < m; i++ {
		hdr = append(hdr, fmt.Sprintf("postfit_%d", i))
	}
	return hdr
}

// csvRecord returns one CSV record of this residual.
func (r Residual) csvRecord() []string {
	rec := []string{r.EpochFmt.format(r.DT)}
	m, _ := r.Prefit.Dims()
	for i := 0; i < m; i++ {
		rec = append(rec, fmt.Sprintf("%.12e", r.Prefit.At(i, 0)))
	}
	for i := 0; i < m; i++ {
		rec = append(rec, fmt.Sprintf("%.12e", r.Postfit.At(i, 0)))
	}
	return rec
}
