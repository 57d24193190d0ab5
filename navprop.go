package cosmod

import (
	"math"
	"os"
	"time"

	"github.com/ChristopherRabotin/ode"
	kitlog "github.com/go-kit/kit/log"
	"github.com/gonum/matrix/mat64"
)

// NavState is one fixed step of the navigation propagation: the nominal orbit and
// the state transition matrix from the previous step to this one.
type NavState struct {
	Orbit Orbit
	// Φ is the STM of this step only, not the cumulative STM since epoch.
	Φ *mat64.Dense
}

// NavPropagator is an ode.Integrable which propagates a two body orbit along with
// its state transition matrix at a fixed step, for use by an ODProcess. Each step
// is pushed onto the transmission channel set by PropagateUntil.
type NavPropagator struct {
	Φ     *mat64.Dense // STM of the latest step
	Orbit Orbit        // current nominal orbit

	initOrbit Orbit
	dt        time.Time
	stopDT    time.Time
	step      time.Duration
	tx        chan<- NavState
	logger    kitlog.Logger
}

// NewNavPropagator returns a navigation propagator at a fixed step. The only
// supported state is [r v] with its 6x6 STM.
func NewNavPropagator(name string, o Orbit, step time.Duration) *NavPropagator {
	klog := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	klog = kitlog.With(klog, "navprop", name)
	return &NavPropagator{DenseIdentity(6), o, o, o.DT, o.DT, step, nil, klog}
}

// Step returns the fixed integration step.
func (p *NavPropagator) Step() time.Duration { return p.step }

// Epoch returns the current propagation epoch.
func (p *NavPropagator) Epoch() time.Time { return p.dt }

// Reset restores the propagator to its initial state.
func (p *NavPropagator) Reset() {
	p.Orbit = p.initOrbit
	p.Φ = DenseIdentity(6)
	p.dt = p.initOrbit.DT
}

// Recenter rebases the reference trajectory on the provided orbit. Used when
// iterating on a smoothed solution and by the EKF recentering.
func (p *NavPropagator) Recenter(o Orbit) {
	p.Orbit = o
	p.initOrbit = o
	p.Φ = DenseIdentity(6)
	p.dt = o.DT
}

// SetEstimatedState overwrites the current nominal orbit without rebasing the
// initial state. Called by the ODProcess when the filter runs in extended mode.
func (p *NavPropagator) SetEstimatedState(o Orbit) {
	p.Orbit = o
}

// PropagateUntil propagates until the provided time, pushing every step onto tx.
// The channel is closed when the propagation ends, so it must be consumed fully.
func (p *NavPropagator) PropagateUntil(dt time.Time, tx chan<- NavState) {
	p.stopDT = dt
	p.tx = tx
	ode.NewRK4(0, p.step.Seconds(), p).Solve() // Blocking.
	p.tx = nil
	close(tx)
}

// GetState serializes the orbit and its STM for the integrator.
func (p *NavPropagator) GetState() []float64 {
	s := make([]float64, 6+36)
	copy(s[0:6], p.Orbit.Vector())
	sIdx := 6
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			s[sIdx] = p.Φ.At(i, j)
			sIdx++
		}
	}
	return s
}

// SetState sets the next state at time t and emits the step.
func (p *NavPropagator) SetState(t float64, s []float64) {
	p.dt = p.dt.Add(p.step)
	p.Orbit = Orbit{s[0], s[1], s[2], s[3], s[4], s[5], p.dt, p.Orbit.Frame}

	// The integrated STM spans from the start of the seed of this step, so the
	// step-only STM is the integrated one times the inverse of the seed.
	Φk := mat64.NewDense(6, 6, nil)
	sIdx := 6
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			Φk.Set(i, j, s[sIdx])
			sIdx++
		}
	}
	var Φinv mat64.Dense
	if err := Φinv.Inverse(p.Φ); err != nil {
		panic("could not invert the STM of the previous step")
	}
	p.Φ.Mul(Φk, &Φinv)

	if p.tx != nil {
		p.tx <- NavState{p.Orbit, mat64.DenseCopyOf(p.Φ)}
	}
}

// Stop returns whether the integration reached the stop time.
func (p *NavPropagator) Stop(t float64) bool {
	return !p.dt.Before(p.stopDT)
}

// Func computes the two body equations of motion and the variational equations of
// the STM.
func (p *NavPropagator) Func(t float64, f []float64) (fDot []float64) {
	fDot = make([]float64, 6+36)
	μ := p.Orbit.Frame.GM()
	x, y, z := f[0], f[1], f[2]
	r2 := x*x + y*y + z*z
	r232 := math.Pow(r2, 3/2.)
	r252 := math.Pow(r2, 5/2.)
	bodyAcc := -μ / r232
	fDot[0] = f[3]
	fDot[1] = f[4]
	fDot[2] = f[5]
	fDot[3] = bodyAcc * x
	fDot[4] = bodyAcc * y
	fDot[5] = bodyAcc * z

	A := mat64.NewDense(6, 6, nil)
	A.Set(0, 3, 1)
	A.Set(1, 4, 1)
	A.Set(2, 5, 1)
	A.Set(3, 0, 3*μ*x*x/r252-μ/r232)
	A.Set(3, 1, 3*μ*x*y/r252)
	A.Set(3, 2, 3*μ*x*z/r252)
	A.Set(4, 0, 3*μ*x*y/r252)
	A.Set(4, 1, 3*μ*y*y/r252-μ/r232)
	A.Set(4, 2, 3*μ*y*z/r252)
	A.Set(5, 0, 3*μ*x*z/r252)
	A.Set(5, 1, 3*μ*y*z/r252)
	A.Set(5, 2, 3*μ*z*z/r252-μ/r232)

	Φ := mat64.NewDense(6, 6, nil)
	fIdx := 6
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			Φ.Set(i, j, f[fIdx])
			fIdx++
		}
	}
	var ΦDot mat64.Dense
	ΦDot.Mul(A, Φ)
	fIdx = 6
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			fDot[fIdx] = ΦDot.At(i, j)
			fIdx++
		}
	}
	return fDot
}
