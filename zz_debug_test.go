package cosmod

import (
	"testing"
)

func TestZZDebugStation(t *testing.T) {
	st := NewGroundStation("test", 0, 10, 30, 45, 0, 0)
	θgst := GSTAngle(testEpoch)
	t.Logf("st.R=%v st.V=%v θgst=%v", st.R, st.V, θgst)
	rECEF := make([]float64, 3)
	vECEF := make([]float64, 3)
	scale := 8000.0 / Norm(st.R)
	ρHat := Unit(st.R)
	for i := 0; i < 3; i++ {
		rECEF[i] = st.R[i] * scale
		vECEF[i] = st.V[i] + 2.0*ρHat[i]
	}
	ρECEF, ρ, el, az := st.RangeElAz(rECEF)
	t.Logf("direct ECEF: ρ=%v el=%v az=%v ρECEF=%v", ρ, el, az, ρECEF)
	rECI := ECEF2ECI(rECEF, θgst)
	back := ECI2ECEF(rECI, θgst)
	t.Logf("roundtrip: in=%v back=%v", rECEF, back)
	cosm := testCosm(t)
	eme2000 := cosm.Frame("EME2000")
	vECI := ECEF2ECI(vECEF, θgst)
	state := NewOrbitCartesian(rECI[0], rECI[1], rECI[2], vECI[0], vECI[1], vECI[2], testEpoch, eme2000)
	t.Logf("state.DT=%v testEpoch=%v radius=%v", state.DT, testEpoch, state.Radius())
	θgst2 := GSTAngle(state.DT)
	t.Logf("θgst2=%v", θgst2)
	rECEF2 := ECI2ECEF(state.Radius(), θgst2)
	_, ρ2, el2, _ := st.RangeElAz(rECEF2)
	t.Logf("via Measure path: ρ=%v el=%v rECEF2=%v", ρ2, el2, rECEF2)
}

func TestZZDebugLT(t *testing.T) {
	cosm := testCosm(t)
	eme2000 := cosm.Frame("EME2000")
	luna := cosm.Frame("Luna")
	geometric := cosm.CelestialState(luna.EphemPath(), testEpoch, eme2000, LTCorrNone)
	lt := cosm.CelestialState(luna.EphemPath(), testEpoch, eme2000, LTCorrLightTime)
	t.Logf("geom R=%v %v %v (|R|=%v)", geometric.X, geometric.Y, geometric.Z, geometric.RMag())
	t.Logf("lt   R=%v %v %v (|R|=%v)", lt.X, lt.Y, lt.Z, lt.RMag())
}
