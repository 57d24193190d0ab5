package cosmod

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gonum/matrix/mat64"
)

// SNC defines a state noise compensation (process noise) matrix from its diagonal
// acceleration variances, in (km/s^2)^2. The filter owns the epoch bookkeeping.
type SNC struct {
	// StartTime is the time at which this SNC becomes applicable. A zero time
	// means it always applies.
	StartTime time.Time
	// DisableTime disables the process noise when the time between two
	// measurements exceeds it.
	DisableTime time.Duration
	diag        []float64
	decayDiag   []float64
	// initEpoch is set by the Kalman filter at initialization, needed for decay.
	initEpoch time.Time
	// prevEpoch is updated by the Kalman filter on each time update.
	prevEpoch time.Time
}

// NewSNC initializes a state noise compensation from its diagonal values.
func NewSNC(disableTime time.Duration, values []float64) *SNC {
	if len(values)%3 != 0 {
		panic("SNC can only be applied to accelerations multiple of 3")
	}
	diag := make([]float64, len(values))
	copy(diag, values)
	return &SNC{DisableTime: disableTime, diag: diag}
}

// NewSNCWithStart initializes an SNC which only applies from the provided start time.
func NewSNCWithStart(disableTime time.Duration, values []float64, startTime time.Time) *SNC {
	snc := NewSNC(disableTime, values)
	snc.StartTime = startTime
	return snc
}

// NewSNCWithDecay initializes an exponentially decaying SNC. Decay constants are in
// inverse seconds since the start of the tracking arc.
func NewSNCWithDecay(disableTime time.Duration, initialSNC, decayConstants []float64) *SNC {
	if len(decayConstants) != len(initialSNC) {
		panic("not enough decay constants for the size of the SNC matrix")
	}
	snc := NewSNC(disableTime, initialSNC)
	snc.decayDiag = make([]float64, len(decayConstants))
	copy(snc.decayDiag, decayConstants)
	return snc
}

// Dim returns the acceleration dimension of this SNC.
func (s *SNC) Dim() int { return len(s.diag) }

// ToMatrix returns the SNC matrix (not including the Gamma matrix approximation) at
// the provided epoch, and whether it is applicable at all. It is not applicable when
// the start time is after the epoch, or when the time since the previous filter
// update exceeds the disable time.
func (s *SNC) ToMatrix(epoch time.Time) (*mat64.Dense, bool) {
	if !s.StartTime.IsZero() && s.StartTime.After(epoch) {
		return nil, false
	}
	if !s.prevEpoch.IsZero() && epoch.Sub(s.prevEpoch) > s.DisableTime {
		return nil, false
	}
	snc := mat64.NewDense(len(s.diag), len(s.diag), nil)
	for i, val := range s.diag {
		snc.Set(i, i, val)
	}
	if s.decayDiag != nil {
		totalDeltaT := epoch.Sub(s.initEpoch).Seconds()
		for i := range s.diag {
			snc.Set(i, i, snc.At(i, i)*math.Exp(-s.decayDiag[i]*totalDeltaT))
		}
	}
	return snc, true
}

func (s *SNC) String() string {
	fmtCov := make([]string, len(s.diag))
	for i, val := range s.diag {
		if s.decayDiag != nil {
			fmtCov[i] = fmt.Sprintf("%.1e × exp(- %.1e × t)", val, s.decayDiag[i])
		} else {
			fmtCov[i] = fmt.Sprintf("%.1e", val)
		}
	}
	start := ""
	if !s.StartTime.IsZero() {
		start = " starting at " + s.StartTime.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("SNC: diag(%s)%s", strings.Join(fmtCov, ", "), start)
}
