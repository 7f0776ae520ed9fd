// pkg/core/quat.go
package core

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// IdentityQuat is the rotation that leaves every vector unchanged.
var IdentityQuat = quat.Number{Real: 1}

// NewQuat builds a quaternion from w, x, y, z components.
func NewQuat(w, x, y, z float64) quat.Number {
	return quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z}
}

// UnitQuat normalizes q. A zero quaternion becomes the identity.
func UnitQuat(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 || math.IsNaN(n) {
		return IdentityQuat
	}
	return quat.Scale(1/n, q)
}

// InvQuat returns the inverse of a unit quaternion.
func InvQuat(q quat.Number) quat.Number {
	return quat.Conj(q)
}

// MulQuat multiplies the given quaternions left to right.
func MulQuat(qs ...quat.Number) quat.Number {
	out := IdentityQuat
	for _, q := range qs {
		out = quat.Mul(out, q)
	}
	return out
}

// RotateVec rotates v by the unit quaternion q.
func RotateVec(q quat.Number, v r3.Vec) r3.Vec {
	return r3.Rotation(q).Rotate(v)
}

// AxisAngleQuat returns the rotation of angle radians about axis.
func AxisAngleQuat(axis r3.Vec, angle float64) quat.Number {
	return quat.Number(r3.NewRotation(angle, axis))
}

// QuatNearlyEqual compares two rotations, treating q and -q as equal.
func QuatNearlyEqual(a, b quat.Number, tol float64) bool {
	d := a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
	return 1-math.Abs(d) <= tol
}
