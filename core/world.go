package core

import (
	"errors"
	"fmt"
)

var (
	// ErrOriginMismatch indicates an aircraft does not share the cone's origin.
	ErrOriginMismatch = errors.New("aircraft origin differs from sensor origin")
	// ErrDuplicateAircraft indicates two aircraft share an ID.
	ErrDuplicateAircraft = errors.New("duplicate aircraft id")
	// ErrNoCone indicates a World was built without a detection cone.
	ErrNoCone = errors.New("detection cone is required")
)

const (
	// DefaultConeRate scales dt into degrees of sweep rotation per tick.
	DefaultConeRate = 0.5
	// DefaultAircraftRate scales dt before it is applied to aircraft speeds.
	DefaultAircraftRate = 0.05
)

// Frame is an immutable snapshot of one tick: the sweep azimuth and the
// contacts detected at that azimuth.
type Frame struct {
	Seq      uint64
	Azimuth  float64
	Contacts []Contact
}

// World owns the aircraft roster and the single detection cone. It is not
// safe for concurrent use: one goroutine drives Tick and reads detections,
// and publishes Frames to everyone else.
type World struct {
	cone     *DetectionCone
	aircraft []*Aircraft

	coneRate     float64
	aircraftRate float64
	ticks        uint64

	tickListeners []func(Frame)
}

// WorldOption customises World construction.
type WorldOption func(*World)

// WithConeRate sets the factor applied to dt before rotating the cone.
func WithConeRate(f float64) WorldOption {
	return func(w *World) { w.coneRate = f }
}

// WithAircraftRate sets the factor applied to dt before advancing aircraft.
func WithAircraftRate(f float64) WorldOption {
	return func(w *World) { w.aircraftRate = f }
}

// NewWorld validates the roster against the cone and returns a World. The
// roster order is kept and determines the order of detection results.
func NewWorld(cone *DetectionCone, aircraft []*Aircraft, opts ...WorldOption) (*World, error) {
	if cone == nil {
		return nil, ErrNoCone
	}
	seen := make(map[string]struct{}, len(aircraft))
	roster := make([]*Aircraft, 0, len(aircraft))
	for _, ac := range aircraft {
		if ac == nil {
			continue
		}
		if ac.Origin() != cone.Origin() {
			return nil, fmt.Errorf("aircraft %q: %w", ac.ID(), ErrOriginMismatch)
		}
		if _, dup := seen[ac.ID()]; dup {
			return nil, fmt.Errorf("aircraft %q: %w", ac.ID(), ErrDuplicateAircraft)
		}
		seen[ac.ID()] = struct{}{}
		roster = append(roster, ac)
	}

	w := &World{
		cone:         cone,
		aircraft:     roster,
		coneRate:     DefaultConeRate,
		aircraftRate: DefaultAircraftRate,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// RegisterTickListener is invoked with the frame computed after every Tick.
func (w *World) RegisterTickListener(fn func(Frame)) {
	w.tickListeners = append(w.tickListeners, fn)
}

// Tick advances the cone and every aircraft by one fixed step. Zero or
// negative dt is accepted.
func (w *World) Tick(dt float64) {
	w.cone.Rotate(dt * w.coneRate)
	for _, ac := range w.aircraft {
		ac.Advance(dt * w.aircraftRate)
	}
	w.ticks++
	if len(w.tickListeners) == 0 {
		return
	}
	frame := w.Frame()
	for _, fn := range w.tickListeners {
		fn(frame)
	}
}

// DetectedAircraft evaluates the cone against the full roster. It is never
// cached.
func (w *World) DetectedAircraft() []*Aircraft {
	return w.cone.Detect(w.aircraft)
}

// SensorParameters exposes the cone's static geometry.
func (w *World) SensorParameters() SensorParameters {
	return w.cone.Parameters()
}

// SweepAzimuth returns the cone's current azimuth.
func (w *World) SweepAzimuth() float64 {
	return w.cone.CurrentAzimuth()
}

// Origin returns the shared sensor origin.
func (w *World) Origin() Vec3 {
	return w.cone.Origin()
}

// Aircraft returns a copy of the roster slice. The pointed-to aircraft are
// owned by the World.
func (w *World) Aircraft() []*Aircraft {
	return append([]*Aircraft(nil), w.aircraft...)
}

// Ticks returns how many times Tick has been called.
func (w *World) Ticks() uint64 { return w.ticks }

// Frame snapshots the current azimuth and detected contacts, stamped with the
// current tick count.
func (w *World) Frame() Frame {
	detected := w.DetectedAircraft()
	contacts := make([]Contact, 0, len(detected))
	for _, ac := range detected {
		contacts = append(contacts, ac.Snapshot())
	}
	return Frame{
		Seq:      w.ticks,
		Azimuth:  w.cone.CurrentAzimuth(),
		Contacts: contacts,
	}
}
