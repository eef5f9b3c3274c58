package core

import "math"

// Vec3 is a cartesian point in the sensor's local frame. Y is the vertical
// axis; the horizontal plane is X/Z.
type Vec3 struct {
	X, Y, Z float64
}

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	return v.Sub(other).Norm()
}

const degToRad = math.Pi / 180.0

// NormalizeDegrees reduces an angle into [0, 360). It is correct for any
// magnitude and sign; non-finite input maps to 0.
func NormalizeDegrees(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	m := math.Mod(deg, 360)
	if m < 0 {
		m += 360
	}
	// A tiny negative remainder plus 360 can round up to exactly 360.
	if m >= 360 {
		m = 0
	}
	return m
}

// PolarToCartesian places a point at distance from origin with the given
// bearing around the vertical axis and elevation above the horizontal plane.
// Angles are in degrees and need not be normalised.
func PolarToCartesian(origin Vec3, distance, azimuthDeg, elevationDeg float64) Vec3 {
	az := azimuthDeg * degToRad
	el := elevationDeg * degToRad

	horizontal := distance * math.Cos(el)
	return Vec3{
		X: origin.X + horizontal*math.Cos(az),
		Y: origin.Y + distance*math.Sin(el),
		Z: origin.Z + horizontal*math.Sin(az),
	}
}

// CartesianToPolar is the inverse of PolarToCartesian. Azimuth is returned in
// [0, 360) and elevation in [-90, 90]. A point equal to origin yields zeros.
func CartesianToPolar(origin, p Vec3) (distance, azimuthDeg, elevationDeg float64) {
	d := p.Sub(origin)
	distance = d.Norm()
	if distance == 0 {
		return 0, 0, 0
	}
	azimuthDeg = NormalizeDegrees(math.Atan2(d.Z, d.X) / degToRad)
	elevationDeg = math.Asin(clamp(d.Y/distance, -1, 1)) / degToRad
	return distance, azimuthDeg, elevationDeg
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
