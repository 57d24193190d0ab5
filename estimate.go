package cosmod

import (
	"fmt"
	"math"
	"time"

	"github.com/gonum/matrix/mat64"
	"github.com/soniakeys/meeus/julian"
)

// EpochFormat sets how epochs are serialized in exported estimates and residuals.
type EpochFormat uint8

const (
	// EpochGregorianUTC serializes epochs as RFC 3339 UTC strings.
	EpochGregorianUTC EpochFormat = iota
	// EpochJDE serializes epochs as Julian dates.
	EpochJDE
	// EpochMJD serializes epochs as modified Julian dates.
	EpochMJD
	// EpochUnixSeconds serializes epochs as seconds past the Unix epoch.
	EpochUnixSeconds
)

func (f EpochFormat) String() string {
	switch f {
	case EpochJDE:
		return "Epoch:JDE"
	case EpochMJD:
		return "Epoch:MJD"
	case EpochUnixSeconds:
		return "Epoch:UnixSeconds"
	default:
		return "Epoch:GregorianUTC"
	}
}

// format serializes the provided epoch in this format.
func (f EpochFormat) format(dt time.Time) string {
	switch f {
	case EpochJDE:
		return fmt.Sprintf("%.9f", julian.TimeToJD(dt.UTC()))
	case EpochMJD:
		return fmt.Sprintf("%.9f", julian.TimeToJD(dt.UTC())-2400000.5)
	case EpochUnixSeconds:
		return fmt.Sprintf("%.3f", float64(dt.UnixNano())/1e9)
	default:
		return dt.UTC().Format(time.RFC3339Nano)
	}
}

// CovarFormat sets how covariances are serialized in exported estimates.
type CovarFormat uint8

const (
	// CovarSqrt exports the square root of the diagonal covariance terms (1-sigma).
	CovarSqrt CovarFormat = iota
	// CovarSigma3 exports three times the square root of the diagonal terms.
	CovarSigma3
	// CovarFull exports the full covariance matrix, row major.
	CovarFull
)

func (f CovarFormat) String() string {
	switch f {
	case CovarSigma3:
		return "Covar:3-sigma"
	case CovarFull:
		return "Covar:full"
	default:
		return "Covar:sqrt"
	}
}

// Estimate is the output of a filter time or measurement update: the nominal state
// it applies to, the estimated state deviation and the covariances before and after
// the update.
type Estimate struct {
	// NominalState is the state the deviation applies to.
	NominalState Orbit
	// StateDeviation is the estimated deviation from the nominal state.
	StateDeviation *mat64.Vector
	// Covar is the updated covariance.
	Covar *mat64.Dense
	// CovarBar is the time-propagated covariance prior to the measurement update.
	CovarBar *mat64.Dense
	// STM is the state transition matrix used for this update.
	STM *mat64.Dense
	// Predicted is true when this estimate is the output of a time update.
	Predicted bool
	EpochFmt  EpochFormat
	CovarFmt  CovarFormat
}

// NewInitialEstimate builds the a priori estimate from a nominal state and its
// covariance: zero deviation, identity STM.
func NewInitialEstimate(nominalState Orbit, covar *mat64.Dense) Estimate {
	n, _ := covar.Dims()
	return Estimate{
		NominalState:   nominalState,
		StateDeviation: mat64.NewVector(n, nil),
		Covar:          mat64.DenseCopyOf(covar),
		CovarBar:       mat64.DenseCopyOf(covar),
		STM:            DenseIdentity(n),
		Predicted:      true,
	}
}

// Epoch returns the epoch of the nominal state.
func (e Estimate) Epoch() time.Time { return e.NominalState.DT }

// State returns the nominal state with the estimated deviation applied.
func (e Estimate) State() Orbit {
	return Orbit{
		e.NominalState.X + e.StateDeviation.At(0, 0),
		e.NominalState.Y + e.StateDeviation.At(1, 0),
		e.NominalState.Z + e.StateDeviation.At(2, 0),
		e.NominalState.VX + e.StateDeviation.At(3, 0),
		e.NominalState.VY + e.StateDeviation.At(4, 0),
		e.NominalState.VZ + e.StateDeviation.At(5, 0),
		e.NominalState.DT,
		e.NominalState.Frame,
	}
}

// WithinSigma returns whether each component of the state deviation lies within
// sigma times its standard deviation.
func (e Estimate) WithinSigma(sigma float64) bool {
	n, _ := e.StateDeviation.Dims()
	for i := 0; i < n; i++ {
		stdDev := math.Sqrt(e.Covar.At(i, i))
		if math.Abs(e.StateDeviation.At(i, 0)) > sigma*stdDev {
			return false
		}
	}
	return true
}

// Within3Sigma returns whether the state deviation lies within the 3-sigma bound.
func (e Estimate) Within3Sigma() bool { return e.WithinSigma(3) }

func (e Estimate) String() string {
	return fmt.Sprintf("estimate @ %s predicted=%v deviation=%v", e.Epoch().Format(time.RFC3339), e.Predicted, mat64.Formatted(e.StateDeviation.T()))
}

// csvHeader returns the CSV header of serialized estimates.
func (e Estimate) csvHeader() []string {
	hdr := []string{e.EpochFmt.String()}
	n, _ := e.StateDeviation.Dims()
	for i := 0; i < n; i++ {
		hdr = append(hdr, fmt.Sprintf("delta_%d", i))
	}
	if e.CovarFmt == CovarFull {
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				hdr = append(hdr, fmt.Sprintf("covar_%d_%d", i, j))
			}
		}
	} else {
		for i := 0; i < n; i++ {
			hdr = append(hdr, fmt.Sprintf("covar_%d_%d", i, i))
		}
	}
	return hdr
}

// csvRecord returns one CSV record of this estimate, honoring the epoch and
// covariance formats.
func (e Estimate) csvRecord() []string {
	rec := []string{e.EpochFmt.format(e.Epoch())}
	n, _ := e.StateDeviation.Dims()
	for i := 0; i < n; i++ {
		rec = append(rec, fmt.Sprintf("%.12e", e.StateDeviation.At(i, 0)))
	}
	switch e.CovarFmt {
	case CovarFull:
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				rec = append(rec, fmt.Sprintf("%.12e", e.Covar.At(i, j)))
			}
		}
	case CovarSigma3:
		for i := 0; i < n; i++ {
			rec = append(rec, fmt.Sprintf("%.12e", 3*math.Sqrt(e.Covar.At(i, i))))
		}
	default:
		for i := 0; i < n; i++ {
			rec = append(rec, fmt.Sprintf("%.12e", math.Sqrt(e.Covar.At(i, i))))
		}
	}
	return rec
}
