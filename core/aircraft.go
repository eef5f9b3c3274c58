package core

import "github.com/alikendir0/backend-simulated-radar-simulator/model"

// Aircraft circles the sensor origin at a fixed distance and elevation,
// sweeping its azimuth at a constant angular speed. Its cartesian position is
// always derived from the current angles.
type Aircraft struct {
	id       string
	category model.Category
	origin   Vec3

	distance     float64
	azimuthDeg   float64
	elevationDeg float64

	// speedDegPerUnit may be negative for a reverse sweep.
	speedDegPerUnit float64

	position Vec3
}

// NewAircraft constructs an aircraft. Negative distances are treated as 0 and
// the azimuth is normalised into [0, 360).
func NewAircraft(
	id string,
	category model.Category,
	origin Vec3,
	speedDegPerUnit float64,
	distance float64,
	azimuthDeg float64,
	elevationDeg float64,
) *Aircraft {
	if distance < 0 {
		distance = 0
	}
	if category == "" {
		category = model.CategoryUnknown
	}
	ac := &Aircraft{
		id:              id,
		category:        category,
		origin:          origin,
		distance:        distance,
		azimuthDeg:      NormalizeDegrees(azimuthDeg),
		elevationDeg:    elevationDeg,
		speedDegPerUnit: speedDegPerUnit,
	}
	ac.position = ac.calculatePosition()
	return ac
}

// Advance moves the aircraft along its circle by speed × dt degrees.
func (a *Aircraft) Advance(dt float64) {
	a.azimuthDeg = NormalizeDegrees(a.azimuthDeg + a.speedDegPerUnit*dt)
	a.position = a.calculatePosition()
}

// SetAngularSpeed replaces the angular speed; it applies from the next Advance.
func (a *Aircraft) SetAngularSpeed(degPerUnit float64) {
	a.speedDegPerUnit = degPerUnit
}

func (a *Aircraft) ID() string               { return a.id }
func (a *Aircraft) Category() model.Category { return a.category }
func (a *Aircraft) Origin() Vec3             { return a.origin }
func (a *Aircraft) Distance() float64        { return a.distance }
func (a *Aircraft) Azimuth() float64         { return a.azimuthDeg }
func (a *Aircraft) Elevation() float64       { return a.elevationDeg }
func (a *Aircraft) AngularSpeed() float64    { return a.speedDegPerUnit }
func (a *Aircraft) Position() Vec3           { return a.position }

// Snapshot copies the aircraft's current state into a value safe to hand to
// other goroutines.
func (a *Aircraft) Snapshot() Contact {
	return Contact{
		ID:           a.id,
		Category:     a.category,
		Distance:     a.distance,
		Azimuth:      a.azimuthDeg,
		Elevation:    a.elevationDeg,
		AngularSpeed: a.speedDegPerUnit,
		Position:     a.position,
	}
}

func (a *Aircraft) calculatePosition() Vec3 {
	return PolarToCartesian(a.origin, a.distance, a.azimuthDeg, a.elevationDeg)
}

// Contact is an immutable copy of an aircraft's state at one tick.
type Contact struct {
	ID           string
	Category     model.Category
	Distance     float64
	Azimuth      float64
	Elevation    float64
	AngularSpeed float64
	Position     Vec3
}
