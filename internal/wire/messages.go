// Package wire defines the messages exchanged with stream consumers and the
// codecs used to put them on the wire.
package wire

import (
	"errors"

	"github.com/alikendir0/backend-simulated-radar-simulator/core"
	"github.com/alikendir0/backend-simulated-radar-simulator/model"
)

// Message types. The first two flow server to consumer on every stream;
// inspect is the only consumer-initiated request.
const (
	TypeInitialState = "initial_radar_state"
	TypeUpdate       = "radar_update"
	TypeInspect      = "inspect"
	TypeAircraftInfo = "aircraft_info"
	TypeError        = "error"
)

var (
	// ErrUnknownType indicates an inbound message with an unsupported type.
	ErrUnknownType = errors.New("unknown message type")
	// ErrUnknownCodec indicates a codec name that is not registered.
	ErrUnknownCodec = errors.New("unknown codec")
)

// Message is the tagged envelope for every payload.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// SensorParameters is the payload of the one-time initial message.
type SensorParameters struct {
	DetectionRange float64 `json:"detectionRange"`
	SweepWidth     float64 `json:"sweepWidth"`
	MaxElevation   float64 `json:"maxElevation"`
}

// Position is a cartesian point in the sensor frame.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Contact is one detected aircraft.
type Contact struct {
	ID                string         `json:"id"`
	Type              model.Category `json:"type"`
	Distance          float64        `json:"distance"`
	Azimuth           float64        `json:"azimuth"`
	Elevation         float64        `json:"elevation"`
	SpeedDegPerSecond float64        `json:"speedDegPerSecond"`
	Position          Position       `json:"position"`
}

// Update is the payload of the periodic broadcast.
type Update struct {
	Tick     uint64    `json:"tick"`
	Azimuth  float64   `json:"currentRadarAzimuth"`
	Aircraft []Contact `json:"currentAircrafts"`
}

// InspectRequest asks for catalog details about one aircraft.
type InspectRequest struct {
	ID string `json:"id"`
}

// AircraftInfo answers an InspectRequest. Unknown aircraft come back with
// Found false and empty fields.
type AircraftInfo struct {
	ID    string `json:"id"`
	Found bool   `json:"found"`
	Image string `json:"image"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Class string `json:"class"`
}

// ErrorPayload reports a rejected consumer request.
type ErrorPayload struct {
	Message string `json:"message"`
}

// FromSensor converts core sensor parameters into their wire form.
func FromSensor(p core.SensorParameters) SensorParameters {
	return SensorParameters{
		DetectionRange: p.DetectionRange,
		SweepWidth:     p.SweepWidthDeg,
		MaxElevation:   p.MaxElevationDeg,
	}
}

// FromContact converts a core contact into its wire form.
func FromContact(c core.Contact) Contact {
	return Contact{
		ID:                c.ID,
		Type:              c.Category,
		Distance:          c.Distance,
		Azimuth:           c.Azimuth,
		Elevation:         c.Elevation,
		SpeedDegPerSecond: c.AngularSpeed,
		Position:          Position{X: c.Position.X, Y: c.Position.Y, Z: c.Position.Z},
	}
}

// FromFrame converts a world frame into an Update. The contact list is never
// nil so JSON consumers always see an array.
func FromFrame(f core.Frame) Update {
	contacts := make([]Contact, 0, len(f.Contacts))
	for _, c := range f.Contacts {
		contacts = append(contacts, FromContact(c))
	}
	return Update{Tick: f.Seq, Azimuth: f.Azimuth, Aircraft: contacts}
}

// FromMetadata builds the inspect answer for aircraftID.
func FromMetadata(aircraftID string, m model.Metadata, found bool) AircraftInfo {
	if !found {
		return AircraftInfo{ID: aircraftID}
	}
	return AircraftInfo{
		ID:    aircraftID,
		Found: true,
		Image: m.Image,
		Name:  m.Name,
		Type:  string(m.Category),
		Class: string(m.Class),
	}
}

// InitialState wraps sensor parameters in their envelope.
func InitialState(p SensorParameters) Message {
	return Message{Type: TypeInitialState, Payload: p}
}

// UpdateMessage wraps a periodic update in its envelope.
func UpdateMessage(u Update) Message {
	return Message{Type: TypeUpdate, Payload: u}
}

// InfoMessage wraps an inspect answer in its envelope.
func InfoMessage(info AircraftInfo) Message {
	return Message{Type: TypeAircraftInfo, Payload: info}
}

// ErrorMessage wraps an error description in its envelope.
func ErrorMessage(msg string) Message {
	return Message{Type: TypeError, Payload: ErrorPayload{Message: msg}}
}
