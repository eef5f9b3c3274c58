package model

import "strings"

// Category labels an aircraft for consumers. Detection never branches on it.
type Category string

const (
	CategoryCivilian      Category = "Civilian"
	CategoryPolice        Category = "Police"
	CategoryMilitary      Category = "Military"
	CategoryInternational Category = "International"
	CategoryUnknown       Category = "Unknown"
)

// Categories lists every known category in declaration order.
var Categories = []Category{
	CategoryCivilian,
	CategoryPolice,
	CategoryMilitary,
	CategoryInternational,
	CategoryUnknown,
}

// ParseCategory maps a case-insensitive label onto a Category. Unrecognised
// labels map to CategoryUnknown.
func ParseCategory(s string) Category {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(s, string(c)) {
			return c
		}
	}
	return CategoryUnknown
}

// Class describes the airframe kind of a catalogued aircraft.
type Class string

const (
	ClassHelicopter Class = "Helicopter"
	ClassPlane      Class = "Plane"
	ClassDrone      Class = "Drone"
	ClassUAV        Class = "UAV"
	ClassUnknown    Class = "Unknown"
)

// ParseClass maps a case-insensitive label onto a Class.
func ParseClass(s string) Class {
	s = strings.TrimSpace(s)
	for _, c := range []Class{ClassHelicopter, ClassPlane, ClassDrone, ClassUAV} {
		if strings.EqualFold(s, string(c)) {
			return c
		}
	}
	return ClassUnknown
}

// Metadata is a catalog record describing an aircraft model. Records are
// keyed by Name; aircraft instances reference them by display name.
type Metadata struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Category         Category `json:"type"`
	Class            Class    `json:"class"`
	Image            string   `json:"image"`
	Parts            []string `json:"parts,omitempty"`
	RecordedTopSpeed float64  `json:"recordedTopSpeed,omitempty"`
}
