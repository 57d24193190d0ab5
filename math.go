package cosmod

import (
	"math"
	"strings"

	"github.com/gonum/floats"
	"github.com/gonum/matrix/mat64"
)

// Norm returns the norm of a given vector which is supposed to be 3x1.
func Norm(v []float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// Unit returns the unit vector of a given vector.
func Unit(a []float64) (b []float64) {
	n := Norm(a)
	if floats.EqualWithinAbs(n, 0, 1e-12) {
		return []float64{0, 0, 0}
	}
	b = make([]float64, len(a))
	for i, val := range a {
		b[i] = val / n
	}
	return
}

// Dot performs the inner product via mat64/BLAS.
func Dot(a, b []float64) float64 {
	return mat64.Dot(mat64.NewVector(len(a), a), mat64.NewVector(len(b), b))
}

// Cross performs the cross product.
func Cross(a, b []float64) []float64 {
	return []float64{a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0]} // Cross product R x V.
}

// Rotv rotates vector v about the provided axis by the angle θ (in radians),
// via the Rodrigues rotation formula. The axis needs not be a unit vector.
func Rotv(v, axis []float64, θ float64) []float64 {
	k := Unit(axis)
	sθ, cθ := math.Sincos(θ)
	kxv := Cross(k, v)
	kdv := Dot(k, v)
	out := make([]float64, 3)
	for i := 0; i < 3; i++ {
		out[i] = v[i]*cθ + kxv[i]*sθ + k[i]*kdv*(1-cθ)
	}
	return out
}

// DenseIdentity returns an n×n identity matrix.
func DenseIdentity(n int) *mat64.Dense {
	out := mat64.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		out.Set(i, i, 1)
	}
	return out
}

// isDiagonal returns whether the provided square matrix only has diagonal terms.
func isDiagonal(m *mat64.Dense) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if i != j && !floats.EqualWithinAbs(m.At(i, j), 0, 1e-12) {
				return false
			}
		}
	}
	return true
}

// capitalize returns the word with its first letter in upper case.
func capitalize(word string) string {
	if len(word) == 0 {
		return word
	}
	return strings.ToUpper(word[0:1]) + word[1:]
}

// Deg2rad converts degrees to radians, and enforces only positive numbers.
func Deg2rad(a float64) float64 {
	if a < 0 {
		a += 360
	}
	return math.Mod(a*deg2rad, 2*math.Pi)
}

// Rad2deg converts radians to degrees, and enforces only positive numbers.
func Rad2deg(a float64) float64 {
	if a < 0 {
		a += 2 * math.Pi
	}
	return math.Mod(a/deg2rad, 360)
}
