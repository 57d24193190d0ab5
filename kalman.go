package cosmod

import (
	"os"

	"github.com/go-kit/kit/log"
	"github.com/gonum/matrix/mat64"
)

// Filter defines a sequential estimation filter driven by an ODProcess.
type Filter interface {
	// PreviousEstimate returns the previous estimate.
	PreviousEstimate() Estimate
	// SetPreviousEstimate overwrites the previous estimate, used when iterating.
	SetPreviousEstimate(est Estimate)
	// UpdateSTM sets the state transition matrix. It must be called in between
	// each call to TimeUpdate or MeasurementUpdate.
	UpdateSTM(stm *mat64.Dense)
	// UpdateHTilde sets the sensitivity matrix. It must be called prior to each
	// call to MeasurementUpdate.
	UpdateHTilde(hTilde *mat64.Dense)
	// TimeUpdate advances the estimate without a measurement.
	TimeUpdate(nominalState Orbit) (Estimate, error)
	// MeasurementUpdate processes a real and a computed observation.
	MeasurementUpdate(nominalState Orbit, realObs, computedObs *mat64.Vector) (Estimate, Residual, error)
	// IsExtended returns whether the filter updates its reference trajectory.
	IsExtended() bool
	// SetExtended switches between the conventional and the extended mode.
	SetExtended(status bool)
	// SetProcessNoise overwrites all process noises with the provided one.
	SetProcessNoise(snc *SNC)
}

// KF defines both a conventional and an extended Kalman filter (CKF and EKF). Switch
// to the extended mode only once the estimate is good, i.e. after a few good
// measurement updates in the conventional mode.
type KF struct {
	// PrevEstimate is the previous estimate used in the filter computations.
	PrevEstimate Estimate
	// MeasurementNoise is the measurement noise, usually noted R.
	MeasurementNoise *mat64.Dense
	// ProcessNoise is the set of process noises, usually noted Q. It must be
	// ordered chronologically: the applicable SNC is selected by walking the
	// list backward.
	ProcessNoise []*SNC

	ekf           bool
	hTilde        *mat64.Dense
	stm           *mat64.Dense
	stmUpdated    bool
	hTildeUpdated bool
	epochFmt      EpochFormat
	covarFmt      CovarFormat
	prevUsedSNC   int
	logger        log.Logger
}

// NewKF initializes a Kalman filter with an initial estimate, one process noise and
// the measurement noise.
func NewKF(initialEstimate Estimate, processNoise *SNC, measurementNoise *mat64.Dense) *KF {
	return NewKFWithSNCs(initialEstimate, []*SNC{processNoise}, measurementNoise)
}

// NewKFWithSNCs initializes a Kalman filter with several process noises. The SNCs
// must be ordered chronologically.
func NewKFWithSNCs(initialEstimate Estimate, processNoises []*SNC, measurementNoise *mat64.Dense) *KF {
	n, _ := initialEstimate.Covar.Dims()
	for _, snc := range processNoises {
		if snc.Dim()%3 != 0 {
			panic("SNC can only be applied to accelerations multiple of 3")
		}
		snc.initEpoch = initialEstimate.Epoch()
	}
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stdout))
	logger = log.With(logger, "layer", "kf", "ts", log.DefaultTimestampUTC)
	m, _ := measurementNoise.Dims()
	return &KF{
		PrevEstimate:     initialEstimate,
		MeasurementNoise: measurementNoise,
		ProcessNoise:     processNoises,
		hTilde:           mat64.NewDense(m, n, nil),
		stm:              DenseIdentity(n),
		epochFmt:         initialEstimate.EpochFmt,
		covarFmt:         initialEstimate.CovarFmt,
		logger:           logger,
	}
}

// NewKFNoSNC initializes a Kalman filter without process noise.
func NewKFNoSNC(initialEstimate Estimate, measurementNoise *mat64.Dense) *KF {
	return NewKFWithSNCs(initialEstimate, nil, measurementNoise)
}

// PreviousEstimate returns the previous estimate.
func (k *KF) PreviousEstimate() Estimate { return k.PrevEstimate }

// SetPreviousEstimate overwrites the previous estimate.
func (k *KF) SetPreviousEstimate(est Estimate) { k.PrevEstimate = est }

// UpdateSTM sets the state transition matrix for the next update.
func (k *KF) UpdateSTM(stm *mat64.Dense) {
	k.stm = stm
	k.stmUpdated = true
}

// UpdateHTilde sets the sensitivity matrix for the next measurement update.
func (k *KF) UpdateHTilde(hTilde *mat64.Dense) {
	k.hTilde = hTilde
	k.hTildeUpdated = true
}

// IsExtended returns whether this filter runs as an EKF.
func (k *KF) IsExtended() bool { return k.ekf }

// SetExtended switches this filter between the CKF and the EKF modes.
func (k *KF) SetExtended(status bool) { k.ekf = status }

// SetProcessNoise overwrites all process noises with the provided one.
func (k *KF) SetProcessNoise(snc *SNC) {
	snc.initEpoch = k.PrevEstimate.Epoch()
	k.ProcessNoise = []*SNC{snc}
}

// TimeUpdate advances the filter estimate with the updated STM, without any
// measurement. Returns ErrStateTransitionMatrixNotUpdated if UpdateSTM was not
// called since the last update.
func (k *KF) TimeUpdate(nominalState Orbit) (Estimate, error) {
	if !k.stmUpdated {
		return Estimate{}, ErrStateTransitionMatrixNotUpdated
	}
	covarBar := k.propagateCovar(k.PrevEstimate.Covar)

	n, _ := covarBar.Dims()
	stateBar := mat64.NewVector(n, nil)
	if !k.ekf {
		stateBar.MulVec(k.stm, k.PrevEstimate.StateDeviation)
	}
	estimate := Estimate{
		NominalState:   nominalState,
		StateDeviation: stateBar,
		Covar:          mat64.DenseCopyOf(covarBar),
		CovarBar:       covarBar,
		STM:            mat64.DenseCopyOf(k.stm),
		Predicted:      true,
		EpochFmt:       k.epochFmt,
		CovarFmt:       k.covarFmt,
	}
	k.stmUpdated = false
	k.PrevEstimate = estimate
	for _, snc := range k.ProcessNoise {
		snc.prevEpoch = estimate.Epoch()
	}
	return estimate, nil
}

// MeasurementUpdate processes a real and a computed observation and returns the
// updated estimate and the residual.
func (k *KF) MeasurementUpdate(nominalState Orbit, realObs, computedObs *mat64.Vector) (Estimate, Residual, error) {
	if !k.stmUpdated {
		return Estimate{}, Residual{}, ErrStateTransitionMatrixNotUpdated
	}
	if !k.hTildeUpdated {
		return Estimate{}, Residual{}, ErrSensitivityNotUpdated
	}
	covarBar := k.propagateCovar(k.PrevEstimate.Covar)
	n, _ := covarBar.Dims()

	// Apply the most recent applicable SNC, if any.
	for i := len(k.ProcessNoise) - 1; i >= 0; i-- {
		snc := k.ProcessNoise[i]
		sncMatrix, applicable := snc.ToMatrix(nominalState.DT)
		if !applicable {
			continue
		}
		if k.prevUsedSNC != i {
			k.logger.Log("msg", "switched process noise", "snc", i, "def", snc.String())
			k.prevUsedSNC = i
		}
		// The Gamma matrix approximates the time integral assuming the
		// acceleration is constant between these two measurements.
		a := snc.Dim()
		gamma := mat64.NewDense(n, a, nil)
		deltaT := nominalState.DT.Sub(k.PrevEstimate.Epoch()).Seconds()
		for blk := 0; blk < a/3; blk++ {
			for j := 0; j < 3; j++ {
				idxI := j + a*blk
				idxJ := j + 3*blk
				idxK := j + 3 + a*blk
				gamma.Set(idxI, idxJ, deltaT*deltaT/2)
				gamma.Set(idxK, idxJ, deltaT)
			}
		}
		var gammaQ, processNoise mat64.Dense
		gammaQ.Mul(gamma, sncMatrix)
		processNoise.Mul(&gammaQ, gamma.T())
		covarBar.Add(covarBar, &processNoise)
		break
	}

	var hcovar, hpht, invertiblePart mat64.Dense
	hcovar.Mul(k.hTilde, covarBar)
	hpht.Mul(&hcovar, k.hTilde.T())
	hpht.Add(&hpht, k.MeasurementNoise)
	if err := invertiblePart.Inverse(&hpht); err != nil {
		return Estimate{}, Residual{}, ErrSingularKalmanGain
	}

	var gain mat64.Dense
	gain.Mul(covarBar, k.hTilde.T())
	gain.Mul(&gain, &invertiblePart)

	m, _ := realObs.Dims()
	prefit := mat64.NewVector(m, nil)
	prefit.SubVec(realObs, computedObs)

	stateHat := mat64.NewVector(n, nil)
	postfit := mat64.NewVector(m, nil)
	if k.ekf {
		stateHat.MulVec(&gain, prefit)
		postfit.MulVec(k.hTilde, stateHat)
		postfit.SubVec(prefit, postfit)
	} else {
		// The conventional filter needs the time update of the deviation first.
		// Its postfit is the innovation about the propagated deviation.
		stateBar := mat64.NewVector(n, nil)
		stateBar.MulVec(k.stm, k.PrevEstimate.StateDeviation)
		postfit.MulVec(k.hTilde, stateBar)
		postfit.SubVec(prefit, postfit)
		stateHat.MulVec(&gain, postfit)
		stateHat.AddVec(stateBar, stateHat)
	}
	res := NewResidual(nominalState.DT, prefit, postfit)

	// Joseph form covariance update.
	var kH, firstTerm, covar, kr, krkt mat64.Dense
	kH.Mul(&gain, k.hTilde)
	firstTerm.Sub(DenseIdentity(n), &kH)
	covar.Mul(&firstTerm, covarBar)
	covar.Mul(&covar, firstTerm.T())
	kr.Mul(&gain, k.MeasurementNoise)
	krkt.Mul(&kr, gain.T())
	covar.Add(&covar, &krkt)

	estimate := Estimate{
		NominalState:   nominalState,
		StateDeviation: stateHat,
		Covar:          &covar,
		CovarBar:       covarBar,
		STM:            mat64.DenseCopyOf(k.stm),
		Predicted:      false,
		EpochFmt:       k.epochFmt,
		CovarFmt:       k.covarFmt,
	}
	k.stmUpdated = false
	k.hTildeUpdated = false
	k.PrevEstimate = estimate
	return estimate, res, nil
}

// propagateCovar returns Phi * P * Phi^T.
func (k *KF) propagateCovar(covar *mat64.Dense) *mat64.Dense {
	var covarBar mat64.Dense
	covarBar.Mul(k.stm, covar)
	covarBar.Mul(&covarBar, k.stm.T())
	return &covarBar
}
