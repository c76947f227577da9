// Package mathx holds small numeric helpers shared by the control and sensor code.
package mathx

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Constrain clamps value to [lo, hi].
func Constrain[T constraints.Integer | constraints.Float](value, lo, hi T) T {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// Quaternion is a unit rotation, real part last as the sensor hub reports it.
type Quaternion struct {
	I, J, K, Real float64
}

// Euler angles in radians.
type Euler struct {
	Pitch, Yaw, Roll float64
}

// ToEuler converts q to aerospace (Z-Y-X) angles. Pitch is clamped at ±90°
// where the asin argument leaves [-1, 1] from rounding.
func (q Quaternion) ToEuler() Euler {
	w, x, y, z := q.Real, q.I, q.J, q.K

	roll := math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))

	sinp := 2 * (w*y - z*x)
	var pitch float64
	if math.Abs(sinp) >= 1 {
		pitch = math.Copysign(math.Pi/2, sinp)
	} else {
		pitch = math.Asin(sinp)
	}

	yaw := math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))
	return Euler{Pitch: pitch, Yaw: yaw, Roll: roll}
}

// PitchFromAccel calculates the pitch angle in radians from accelerometer data.
func PitchFromAccel(ax, ay, az float64) float64 {
	return math.Atan2(-ax, math.Sqrt(ay*ay+az*az))
}

// RollFromAccel calculates the roll angle in radians from accelerometer data.
func RollFromAccel(ay, az float64) float64 {
	return math.Atan2(ay, az)
}
