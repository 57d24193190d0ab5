package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/ChristopherRabotin/cosmod"
	"github.com/go-kit/kit/log"
	"github.com/gonum/matrix/mat64"
	"github.com/spf13/viper"
)

var (
	scenario string
	verbose  bool
)

func init() {
	flag.StringVar(&scenario, "scenario", "", "path to the scenario TOML file (defaults apply if empty)")
	flag.BoolVar(&verbose, "verbose", false, "print each residual as it is processed")
}

func main() {
	flag.Parse()
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stdout))
	logger = log.With(logger, "cmd", "od", "ts", log.DefaultTimestampUTC)

	v := viper.New()
	v.SetDefault("orbit.sma", 22000.0)
	v.SetDefault("orbit.ecc", 0.01)
	v.SetDefault("orbit.inc", 30.0)
	v.SetDefault("orbit.raan", 80.0)
	v.SetDefault("orbit.argp", 40.0)
	v.SetDefault("orbit.ta", 0.0)
	v.SetDefault("od.duration_days", 1.0)
	v.SetDefault("od.step_seconds", 10.0)
	v.SetDefault("od.filter", "ckf")
	v.SetDefault("od.ekf_trigger_msrs", 30)
	v.SetDefault("od.ekf_disable_seconds", 3600.0)
	v.SetDefault("od.iterations", 0)
	v.SetDefault("od.covar_position", 1e-6)
	v.SetDefault("od.covar_velocity", 1e-6)
	v.SetDefault("od.snc_diag", 0.0)
	v.SetDefault("od.snc_disable_seconds", 120.0)
	v.SetDefault("od.range_noise", 0.0)
	v.SetDefault("od.range_rate_noise", 0.0)
	v.SetDefault("od.stations", []string{"dss13", "dss34", "dss65"})
	v.SetDefault("export.estimates", "estimates.csv")
	v.SetDefault("export.residuals", "residuals.csv")
	if scenario != "" {
		v.SetConfigFile(scenario)
		if err := v.ReadInConfig(); err != nil {
			logger.Log("error", "could not read scenario", "path", scenario, "err", err)
			os.Exit(1)
		}
	}

	cosm := cosmod.MustCosm()
	eme2000 := cosm.Frame("EME2000")

	startDT := time.Date(2018, 2, 25, 0, 0, 0, 0, time.UTC)
	endDT := startDT.Add(time.Duration(v.GetFloat64("od.duration_days")*86400) * time.Second)
	step := time.Duration(v.GetFloat64("od.step_seconds")*1e9) * time.Nanosecond

	truth := cosmod.NewOrbitKeplerian(
		v.GetFloat64("orbit.sma"), v.GetFloat64("orbit.ecc"), v.GetFloat64("orbit.inc"),
		v.GetFloat64("orbit.raan"), v.GetFloat64("orbit.argp"), v.GetFloat64("orbit.ta"),
		startDT, eme2000)
	logger.Log("msg", "truth orbit defined", "orbit", truth.String())

	// Build the tracking network.
	σρ2 := v.GetFloat64("od.range_noise")
	σρDot2 := v.GetFloat64("od.range_rate_noise")
	var devices []cosmod.MeasurementDevice
	var stations []cosmod.GroundStation
	for _, name := range v.GetStringSlice("od.stations") {
		st := cosmod.BuiltinStationFromName(name)
		if σρ2 == 0 && σρDot2 == 0 {
			// Perfect measurements for this run.
			st = cosmod.NewGroundStation(st.Name, st.Altitude, st.Elevation, st.LatΦ*180/math.Pi, st.Longθ*180/math.Pi, 0, 0)
		}
		stations = append(stations, st)
		devices = append(devices, st)
	}

	// Generate the measurements from the truth trajectory.
	truthProp := cosmod.NewNavPropagator("truth", truth, step)
	steps := int(endDT.Sub(startDT)/step) + 2
	rx := make(chan cosmod.NavState, steps)
	truthProp.PropagateUntil(endDT, rx)
	var measurements []cosmod.Measurement
	for state := range rx {
		for _, st := range stations {
			if msr, visible := st.Measure(state.Orbit); visible {
				measurements = append(measurements, msr)
				break
			}
		}
	}
	logger.Log("msg", "measurements generated", "count", len(measurements))
	if len(measurements) == 0 {
		logger.Log("error", "no measurement is visible from the network")
		os.Exit(1)
	}

	// Initial estimate: the truth state with the a priori covariance.
	covar := mat64.NewDense(6, 6, nil)
	for i := 0; i < 3; i++ {
		covar.Set(i, i, v.GetFloat64("od.covar_position"))
		covar.Set(i+3, i+3, v.GetFloat64("od.covar_velocity"))
	}
	initialEstimate := cosmod.NewInitialEstimate(truth, covar)

	// Measurement noise: floor the variances so R stays invertible for noiseless runs.
	rρ, rρDot := σρ2, σρDot2
	if rρ == 0 {
		rρ = 1e-16
	}
	if rρDot == 0 {
		rρDot = 1e-16
	}
	noiseR := mat64.NewDense(2, 2, []float64{rρ, 0, 0, rρDot})

	var kf *cosmod.KF
	if sncDiag := v.GetFloat64("od.snc_diag"); sncDiag > 0 {
		disable := time.Duration(v.GetFloat64("od.snc_disable_seconds")*1e9) * time.Nanosecond
		snc := cosmod.NewSNC(disable, []float64{sncDiag, sncDiag, sncDiag})
		kf = cosmod.NewKF(initialEstimate, snc, noiseR)
	} else {
		kf = cosmod.NewKFNoSNC(initialEstimate, noiseR)
	}

	navProp := cosmod.NewNavPropagator("nav", truth, step)
	var od *cosmod.ODProcess
	if v.GetString("od.filter") == "ekf" {
		trigger := cosmod.NewStdEkfTrigger(v.GetInt("od.ekf_trigger_msrs"),
			time.Duration(v.GetFloat64("od.ekf_disable_seconds")*1e9)*time.Nanosecond)
		od = cosmod.NewODProcessEKF(navProp, kf, trigger, devices...)
	} else {
		od = cosmod.NewODProcessCKF(navProp, kf, devices...)
	}

	if err := od.ProcessMeasurements(measurements); err != nil {
		logger.Log("error", "filter pass failed", "err", err)
		os.Exit(1)
	}
	for it := 0; it < v.GetInt("od.iterations"); it++ {
		logger.Log("msg", "iterating on the smoothed solution", "iteration", it+1)
		if err := od.Iterate(measurements); err != nil {
			logger.Log("error", "iteration failed", "err", err)
			os.Exit(1)
		}
	}

	if verbose {
		for i, res := range od.Residuals {
			fmt.Printf("#%d %s\n", i, res)
		}
	}
	final := od.Estimates[len(od.Estimates)-1]
	logger.Log("msg", "pass complete", "estimates", len(od.Estimates), "residuals", len(od.Residuals),
		"final", final.String(), "within3sigma", final.Within3Sigma())

	cosmod.ExportEstimates(od.Estimates, v.GetString("export.estimates"))
	cosmod.ExportResiduals(od.Residuals, v.GetString("export.residuals"))
	logger.Log("msg", "exported", "estimates", v.GetString("export.estimates"), "residuals", v.GetString("export.residuals"))
}
