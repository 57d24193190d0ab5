package cosmod

import (
	"fmt"
	"os"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/gonum/matrix/mat64"
)

// Measurement is a single observation of the estimated state, real or computed.
type Measurement interface {
	// Epoch returns the time of this measurement.
	Epoch() time.Time
	// Observation returns the observed quantities as a vector.
	Observation() *mat64.Vector
	// Sensitivity returns the partials of the observation with respect to the
	// estimated state, usually noted H tilde.
	Sensitivity() *mat64.Dense
	// Visible returns whether the device could actually see the state.
	Visible() bool
}

// MeasurementDevice generates computed measurements of a nominal state.
type MeasurementDevice interface {
	fmt.Stringer
	// Measure returns the computed measurement of this state, and whether the
	// state is visible from this device.
	Measure(state Orbit) (Measurement, bool)
}

// EkfTrigger determines when an ODProcess switches its filter from the conventional
// to the extended mode, and back.
type EkfTrigger interface {
	// EnableEKF is called after each measurement update with the resulting
	// estimate, and returns whether the filter should now run as extended.
	EnableEKF(est Estimate) bool
	// DisableEKF is called before each measurement update, and returns whether
	// the filter should revert to the conventional mode.
	DisableEKF(epoch time.Time) bool
}

// CkfTrigger never switches the filter to the extended mode.
type CkfTrigger struct{}

// EnableEKF always returns false.
func (t CkfTrigger) EnableEKF(est Estimate) bool { return false }

// DisableEKF always returns false.
func (t CkfTrigger) DisableEKF(epoch time.Time) bool { return false }

// StdEkfTrigger enables the EKF after a number of processed measurements, and
// disables it when the gap between measurements exceeds the disable time.
type StdEkfTrigger struct {
	// NumMsrs is the number of measurements to process before switching.
	NumMsrs int
	// DisableTime reverts to the CKF when the measurement gap exceeds it.
	DisableTime time.Duration
	// WithinSigma only allows the switch if the estimate is within this sigma
	// bound. Ignored when negative or zero.
	WithinSigma float64

	prevMsrDT time.Time
	curMsrs   int
}

// NewStdEkfTrigger returns a trigger on a measurement count and a disable time.
func NewStdEkfTrigger(numMsrs int, disableTime time.Duration) *StdEkfTrigger {
	return &StdEkfTrigger{NumMsrs: numMsrs, DisableTime: disableTime, WithinSigma: -1}
}

// EnableEKF returns whether enough measurements have been processed, and the
// estimate is within the sigma bound if one is set.
func (t *StdEkfTrigger) EnableEKF(est Estimate) bool {
	if !est.Predicted {
		t.prevMsrDT = est.Epoch()
	}
	t.curMsrs++
	return t.curMsrs >= t.NumMsrs &&
		(t.WithinSigma <= 0 || est.WithinSigma(t.WithinSigma))
}

// DisableEKF returns whether the gap since the previous measurement exceeds the
// disable time. When it does, the measurement counter restarts.
func (t *StdEkfTrigger) DisableEKF(epoch time.Time) bool {
	if t.prevMsrDT.IsZero() {
		return false
	}
	gap := epoch.Sub(t.prevMsrDT)
	if gap < 0 {
		gap = -gap
	}
	if gap > t.DisableTime {
		t.curMsrs = 0
		return true
	}
	return false
}

// ODProcess orchestrates an orbit determination: it drives the navigation
// propagator between measurement epochs, maps the covariance at each step and
// feeds the filter with time and measurement updates.
type ODProcess struct {
	// Prop is the navigation propagator of the reference trajectory.
	Prop *NavPropagator
	// KF is the filter itself.
	KF Filter
	// Devices lists the measurement devices of the tracking arc.
	Devices []MeasurementDevice
	// SimultaneousMsr sets whether several devices can observe the state at the
	// same epoch. When false, the first visible device consumes the measurement.
	SimultaneousMsr bool
	// Estimates stores all estimates of the pass, starting with the initial one.
	Estimates []Estimate
	// Residuals stores the residual of each measurement update.
	Residuals []Residual
	// Trigger decides the switches between the CKF and EKF modes.
	Trigger EkfTrigger

	logger log.Logger
}

// NewODProcessCKF initializes an OD process which always runs as a conventional KF.
func NewODProcessCKF(prop *NavPropagator, kf Filter, devices ...MeasurementDevice) *ODProcess {
	return NewODProcessEKF(prop, kf, CkfTrigger{}, devices...)
}

// NewODProcessEKF initializes an OD process with the provided EKF trigger.
func NewODProcessEKF(prop *NavPropagator, kf Filter, trigger EkfTrigger, devices ...MeasurementDevice) *ODProcess {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stdout))
	logger = log.With(logger, "layer", "od", "ts", log.DefaultTimestampUTC)
	return &ODProcess{
		Prop:      prop,
		KF:        kf,
		Devices:   devices,
		Estimates: []Estimate{kf.PreviousEstimate()},
		Trigger:   trigger,
		logger:    logger,
	}
}

// ProcessMeasurements processes all measurements with covariance mapping: a time
// update at every propagator step without a measurement, a measurement update at
// the steps which carry one. Measurements must be in chronological order and their
// epochs must fall on propagator steps.
func (p *ODProcess) ProcessMeasurements(measurements []Measurement) error {
	if len(measurements) == 0 {
		return fmt.Errorf("must have at least one measurement")
	}
	numMsrs := len(measurements)
	propTime := measurements[numMsrs-1].Epoch().Sub(p.KF.PreviousEstimate().Epoch())
	p.logger.Log("msg", "navigation propagation started", "days", fmt.Sprintf("%.3f", propTime.Hours()/24))

	prevDT := p.KF.PreviousEstimate().Epoch()
	reported := make([]bool, 11)
	arcWarned := false

	for msrCnt, msr := range measurements {
		nextMsrEpoch := msr.Epoch()
		deltaT := nextMsrEpoch.Sub(prevDT)
		steps := int(deltaT/p.Prop.Step()) + 2
		rx := make(chan NavState, steps)
		p.Prop.PropagateUntil(nextMsrEpoch, rx)

		for nominal := range rx {
			dt := nominal.Orbit.DT
			p.KF.UpdateSTM(nominal.Φ)

			if nextMsrEpoch.After(dt) {
				// No measurement at this step, this is a time update.
				if msrCnt == 0 && !arcWarned {
					p.logger.Log("warning", "OD arc starts prior to first measurement")
					arcWarned = true
				}
				est, err := p.KF.TimeUpdate(nominal.Orbit)
				if err != nil {
					return err
				}
				if p.KF.IsExtended() {
					p.Prop.SetEstimatedState(est.State())
				}
				p.Estimates = append(p.Estimates, est)
				continue
			}

			// The epochs match, so this measurement is usable.
			for _, device := range p.Devices {
				computed, visible := device.Measure(nominal.Orbit)
				if !visible {
					continue
				}
				p.KF.UpdateHTilde(computed.Sensitivity())

				if p.KF.IsExtended() && p.Trigger.DisableEKF(dt) {
					p.KF.SetExtended(false)
					p.logger.Log("msg", "EKF disabled", "epoch", dt.Format(time.RFC3339))
				}

				est, res, err := p.KF.MeasurementUpdate(nominal.Orbit, msr.Observation(), computed.Observation())
				if err != nil {
					return err
				}

				// Call the trigger first so it can record the measurement time.
				if p.Trigger.EnableEKF(est) && !p.KF.IsExtended() {
					p.KF.SetExtended(true)
					if !est.Within3Sigma() {
						p.logger.Log("warning", "EKF enabled but filter diverging", "epoch", dt.Format(time.RFC3339))
					} else {
						p.logger.Log("msg", "EKF enabled", "epoch", dt.Format(time.RFC3339))
					}
				}
				if p.KF.IsExtended() {
					p.Prop.SetEstimatedState(est.State())
				}
				p.Estimates = append(p.Estimates, est)
				p.Residuals = append(p.Residuals, res)

				if !p.SimultaneousMsr {
					break
				}
			}

			msrPrct := 10 * msrCnt / numMsrs
			if !reported[msrPrct] {
				p.logger.Log("msg", "progress", "done%", 10*msrPrct, "measurements", msrCnt)
				reported[msrPrct] = true
			}
		}
		prevDT = msr.Epoch()
	}
	if !reported[10] {
		p.logger.Log("msg", "progress", "done%", 100, "measurements", numMsrs)
	}
	return nil
}

// MapCovar maps the covariance until the provided epoch without processing any
// measurement: every step is a time update.
func (p *ODProcess) MapCovar(endEpoch time.Time) error {
	deltaT := endEpoch.Sub(p.KF.PreviousEstimate().Epoch())
	p.logger.Log("msg", "mapping covariance", "seconds", deltaT.Seconds())
	steps := int(deltaT/p.Prop.Step()) + 2
	rx := make(chan NavState, steps)
	p.Prop.PropagateUntil(endEpoch, rx)
	for nominal := range rx {
		p.KF.UpdateSTM(nominal.Φ)
		est, err := p.KF.TimeUpdate(nominal.Orbit)
		if err != nil {
			return err
		}
		if p.KF.IsExtended() {
			p.Prop.SetEstimatedState(est.State())
		}
		p.Estimates = append(p.Estimates, est)
	}
	return nil
}

// Smooth runs the fixed interval smoother backward through the stored estimates,
// which must be in chronological order. Returns the smoothed estimates in
// chronological order.
func (p *ODProcess) Smooth() ([]Estimate, error) {
	num := len(p.Estimates) - 1
	k := num - 1
	p.logger.Log("msg", "smoothing", "estimates", num+1)

	smoothed := make([]Estimate, 0, num+1)
	// The very last estimate cannot be smoothed.
	smoothed = append(smoothed, p.Estimates[k+1])

	for {
		smKp1 := smoothed[len(smoothed)-1]
		estK := p.Estimates[k]
		estKp1 := p.Estimates[k+1]

		// The STM of the k+1 estimate spans k to k+1.
		var stmInv, pKp1Inv mat64.Dense
		if err := stmInv.Inverse(smKp1.STM); err != nil {
			return nil, ErrStateTransitionMatrixSingular
		}
		if err := pKp1Inv.Inverse(estKp1.Covar); err != nil {
			return nil, ErrSingularCovarianceMatrix
		}
		var sK mat64.Dense
		sK.Mul(estK.Covar, smKp1.STM.T())
		sK.Mul(&sK, &pKp1Inv)

		n, _ := estK.Covar.Dims()
		// Smoothed deviation: x_k + S_k (x^s_k+1 - Phi x_k).
		propagated := mat64.NewVector(n, nil)
		propagated.MulVec(smKp1.STM, estK.StateDeviation)
		diff := mat64.NewVector(n, nil)
		diff.SubVec(smKp1.StateDeviation, propagated)
		correction := mat64.NewVector(n, nil)
		correction.MulVec(&sK, diff)
		smDeviation := mat64.NewVector(n, nil)
		smDeviation.AddVec(estK.StateDeviation, correction)

		// Smoothed covariance: P_k + S_k (P^s_k+1 - P_k+1) S_k^T.
		var covDiff, covCorr mat64.Dense
		covDiff.Sub(smKp1.Covar, estKp1.Covar)
		covCorr.Mul(&sK, &covDiff)
		covCorr.Mul(&covCorr, sK.T())
		var smCovar mat64.Dense
		smCovar.Add(estK.Covar, &covCorr)

		smEst := estK
		smEst.StateDeviation = smDeviation
		smEst.Covar = &smCovar
		smoothed = append(smoothed, smEst)
		if k == 0 {
			break
		}
		k--
	}

	// Reverse to restore the chronological order.
	for i, j := 0, len(smoothed)-1; i < j; i, j = i+1, j-1 {
		smoothed[i], smoothed[j] = smoothed[j], smoothed[i]
	}
	return smoothed, nil
}

// Iterate smooths the current solution, rebases the reference trajectory on the
// smoothed initial state and reruns the filter on the same measurements.
func (p *ODProcess) Iterate(measurements []Measurement) error {
	smoothed, err := p.Smooth()
	if err != nil {
		return err
	}
	initSmoothed := smoothed[0]

	// Rebase the propagator on the smoothed initial state.
	p.Prop.Reset()
	iterated := p.Prop.Orbit
	iterated.X += initSmoothed.StateDeviation.At(0, 0)
	iterated.Y += initSmoothed.StateDeviation.At(1, 0)
	iterated.Z += initSmoothed.StateDeviation.At(2, 0)
	iterated.VX += initSmoothed.StateDeviation.At(3, 0)
	iterated.VY += initSmoothed.StateDeviation.At(4, 0)
	iterated.VZ += initSmoothed.StateDeviation.At(5, 0)
	p.Prop.Recenter(iterated)

	n, _ := initSmoothed.Covar.Dims()
	initSmoothed.NominalState = iterated
	initSmoothed.StateDeviation = mat64.NewVector(n, nil)
	p.KF.SetPreviousEstimate(initSmoothed)

	p.Estimates = []Estimate{initSmoothed}
	p.Residuals = nil
	return p.ProcessMeasurements(measurements)
}
