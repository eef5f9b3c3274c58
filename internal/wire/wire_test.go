package wire

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/alikendir0/backend-simulated-radar-simulator/core"
	"github.com/alikendir0/backend-simulated-radar-simulator/model"
)

func sampleFrame() core.Frame {
	return core.Frame{
		Seq:     42,
		Azimuth: 358.5,
		Contacts: []core.Contact{{
			ID:           "F-16D Instance: 3",
			Category:     model.CategoryMilitary,
			Distance:     150,
			Azimuth:      2,
			Elevation:    10,
			AngularSpeed: 1.5,
			Position:     core.Vec3{X: 1, Y: 2, Z: 3},
		}},
	}
}

func TestJSONFieldNames(t *testing.T) {
	data, err := JSON.Marshal(UpdateMessage(FromFrame(sampleFrame())))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if raw["type"] != TypeUpdate {
		t.Fatalf("type = %v", raw["type"])
	}
	payload := raw["payload"].(map[string]any)
	if payload["currentRadarAzimuth"].(float64) != 358.5 || payload["tick"].(float64) != 42 {
		t.Fatalf("unexpected payload %v", payload)
	}
	ac := payload["currentAircrafts"].([]any)[0].(map[string]any)
	for _, key := range []string{"id", "type", "distance", "azimuth", "elevation", "position", "speedDegPerSecond"} {
		if _, ok := ac[key]; !ok {
			t.Fatalf("contact is missing %q: %v", key, ac)
		}
	}
	if ac["type"] != "Military" {
		t.Fatalf("contact type = %v", ac["type"])
	}
}

func TestEmptyUpdateEncodesArray(t *testing.T) {
	data, err := JSON.Marshal(UpdateMessage(FromFrame(core.Frame{Azimuth: 1})))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	_, u, err := Decode[map[string]any](JSON, data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if list, ok := u["currentAircrafts"].([]any); !ok || len(list) != 0 {
		t.Fatalf("currentAircrafts = %#v, want empty array", u["currentAircrafts"])
	}
}

func TestCodecsDecodeUpdate(t *testing.T) {
	want := FromFrame(sampleFrame())
	for _, name := range Names() {
		codec, err := Lookup(name)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", name, err)
		}
		data, err := codec.Marshal(UpdateMessage(want))
		if err != nil {
			t.Fatalf("%s Marshal: %v", name, err)
		}
		typ, got, err := Decode[Update](codec, data)
		if err != nil {
			t.Fatalf("%s Decode: %v", name, err)
		}
		if typ != TypeUpdate || got.Tick != want.Tick || got.Azimuth != want.Azimuth || len(got.Aircraft) != 1 {
			t.Fatalf("%s decoded %q %+v", name, typ, got)
		}
		if got.Aircraft[0] != want.Aircraft[0] {
			t.Fatalf("%s contact = %+v, want %+v", name, got.Aircraft[0], want.Aircraft[0])
		}
	}
}

func TestMsgPackIsBinary(t *testing.T) {
	m, err := MsgPack.Marshal(InitialState(SensorParameters{DetectionRange: 1}))
	if err != nil {
		t.Fatalf("msgpack Marshal: %v", err)
	}
	if json.Valid(m) {
		t.Fatalf("msgpack output unexpectedly parses as JSON: %q", m)
	}
	if !MsgPack.Binary() || JSON.Binary() {
		t.Fatalf("unexpected Binary() flags")
	}
}

func TestLookupCodec(t *testing.T) {
	if c, err := Lookup(""); err != nil || c.Name() != CodecJSON {
		t.Fatalf("Lookup(\"\") = %v, %v", c, err)
	}
	if c, err := Lookup(" MsgPack "); err != nil || c.Name() != CodecMsgPack {
		t.Fatalf("Lookup(MsgPack) = %v, %v", c, err)
	}
	if _, err := Lookup("xml"); !errors.Is(err, ErrUnknownCodec) {
		t.Fatalf("Lookup(xml) error = %v", err)
	}
}

func TestDecodeInspect(t *testing.T) {
	req, err := DecodeInspect(JSON, []byte(`{"type":"inspect","payload":{"id":"F-16D Instance: 1"}}`))
	if err != nil || req.ID != "F-16D Instance: 1" {
		t.Fatalf("DecodeInspect = %+v, %v", req, err)
	}

	if _, err := DecodeInspect(JSON, []byte(`{"type":"launch","payload":{}}`)); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("unknown type error = %v", err)
	}
	if _, err := DecodeInspect(JSON, []byte(`nope`)); err == nil {
		t.Fatalf("expected decode error")
	}

	data, _ := MsgPack.Marshal(Message{Type: TypeInspect, Payload: InspectRequest{ID: "x"}})
	if req, err := DecodeInspect(MsgPack, data); err != nil || req.ID != "x" {
		t.Fatalf("msgpack DecodeInspect = %+v, %v", req, err)
	}
}

func TestFromMetadata(t *testing.T) {
	miss := FromMetadata("ghost", model.Metadata{}, false)
	if miss.Found || miss.ID != "ghost" || miss.Name != "" {
		t.Fatalf("unexpected miss %+v", miss)
	}
	hit := FromMetadata("F-16D Instance: 0", model.Metadata{Name: "F-16D", Category: model.CategoryMilitary, Class: model.ClassPlane, Image: "f16.png"}, true)
	if !hit.Found || hit.Type != "Military" || hit.Class != "Plane" || hit.Image != "f16.png" {
		t.Fatalf("unexpected hit %+v", hit)
	}
}

func TestFromSensor(t *testing.T) {
	got := FromSensor(core.SensorParameters{DetectionRange: 400, SweepWidthDeg: 120, MaxElevationDeg: 100})
	if got != (SensorParameters{DetectionRange: 400, SweepWidth: 120, MaxElevation: 100}) {
		t.Fatalf("FromSensor = %+v", got)
	}
}
