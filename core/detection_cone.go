package core

import "math"

// SensorParameters are the static geometry of a detection cone. They never
// change after construction and are safe to share between goroutines.
type SensorParameters struct {
	DetectionRange  float64
	SweepWidthDeg   float64
	MinElevationDeg float64
	MaxElevationDeg float64
}

// DetectionCone is a rotating angular window anchored at the sensor origin.
// Only its azimuth mutates after construction.
type DetectionCone struct {
	origin Vec3
	params SensorParameters

	currentAzimuthDeg float64
}

// NewDetectionCone builds a cone pointing at azimuth 0. The range is clamped
// to be non-negative and the sweep width into [0, 360].
func NewDetectionCone(origin Vec3, detectionRange, sweepWidthDeg, maxElevationDeg float64) *DetectionCone {
	return &DetectionCone{
		origin: origin,
		params: SensorParameters{
			DetectionRange:  math.Max(detectionRange, 0),
			SweepWidthDeg:   clamp(sweepWidthDeg, 0, 360),
			MinElevationDeg: 0,
			MaxElevationDeg: maxElevationDeg,
		},
	}
}

// Origin returns the sensor origin the cone is anchored at.
func (c *DetectionCone) Origin() Vec3 { return c.origin }

// CurrentAzimuth returns the sweep centre in [0, 360).
func (c *DetectionCone) CurrentAzimuth() float64 { return c.currentAzimuthDeg }

// Parameters returns the cone's static geometry.
func (c *DetectionCone) Parameters() SensorParameters { return c.params }

// Rotate advances the sweep by deltaDeg, which may be negative or span
// several revolutions.
func (c *DetectionCone) Rotate(deltaDeg float64) {
	c.currentAzimuthDeg = NormalizeDegrees(c.currentAzimuthDeg + deltaDeg)
}

// Detect returns the aircraft inside the cone, preserving input order. The
// result never aliases the input slice. A zero-width cone is a single bearing
// and only matches aircraft exactly at the current azimuth.
func (c *DetectionCone) Detect(aircraft []*Aircraft) []*Aircraft {
	out := make([]*Aircraft, 0, len(aircraft))
	for _, ac := range aircraft {
		if ac != nil && c.Contains(ac) {
			out = append(out, ac)
		}
	}
	return out
}

// Contains reports whether a single aircraft is inside the cone.
func (c *DetectionCone) Contains(ac *Aircraft) bool {
	return c.within(ac.Azimuth(), ac.Distance(), ac.Elevation())
}

func (c *DetectionCone) within(azimuthDeg, distance, elevationDeg float64) bool {
	if distance > c.params.DetectionRange {
		return false
	}
	if elevationDeg < c.params.MinElevationDeg || elevationDeg > c.params.MaxElevationDeg {
		return false
	}
	return c.azimuthInWindow(azimuthDeg)
}

// azimuthInWindow tests membership in [current-width/2, current+width/2]
// modulo 360, including windows that straddle the 0/360 seam.
func (c *DetectionCone) azimuthInWindow(azimuthDeg float64) bool {
	width := c.params.SweepWidthDeg
	if width >= 360 {
		return true
	}
	half := width / 2
	lo := NormalizeDegrees(c.currentAzimuthDeg - half)
	hi := NormalizeDegrees(c.currentAzimuthDeg + half)
	if lo < hi {
		return azimuthDeg >= lo && azimuthDeg <= hi
	}
	if width == 0 {
		return azimuthDeg == lo
	}
	return azimuthDeg >= lo || azimuthDeg <= hi
}
