package cosmod

import "math"

const (
	// AU is one astronomical unit in kilometers.
	AU = 1.49597870700e8
	// SpeedOfLight is the speed of light in km/s.
	SpeedOfLight = 299792.458
	// SecondsPerDay is the number of seconds in one ephemeris day.
	SecondsPerDay = 86400.0
	// J2000JDE is the Julian date of the J2000 reference epoch.
	J2000JDE = 2451545.0
	// JulianCentury is the number of days in one Julian century.
	JulianCentury = 36525.0
	// SunGM is the gravitational parameter of the Sun in km^3/s^2.
	SunGM = 132712440041.93938
	// SSMass is the mass of the solar system in units of solar masses.
	SSMass = 1.0014
	// EarthRotationRate is the average Earth rotation rate in radians per second.
	EarthRotationRate = 7.2921158553e-5

	deg2rad = math.Pi / 180
	rad2deg = 180 / math.Pi
	halfPi  = math.Pi / 2
)
