package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec names.
const (
	CodecJSON    = "json"
	CodecMsgPack = "msgpack"
)

// Codec serialises envelopes. Binary codecs are sent as binary websocket
// frames, the rest as text frames.
type Codec interface {
	Name() string
	Binary() bool
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type jsonCodec struct{}

func (jsonCodec) Name() string                       { return CodecJSON }
func (jsonCodec) Binary() bool                       { return false }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// msgpackCodec reuses the json struct tags so both codecs share field names.
type msgpackCodec struct{}

func (msgpackCodec) Name() string { return CodecMsgPack }
func (msgpackCodec) Binary() bool { return true }

func (msgpackCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (msgpackCodec) Unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

var (
	// JSON is the default codec.
	JSON Codec = jsonCodec{}
	// MsgPack is the compact binary codec.
	MsgPack Codec = msgpackCodec{}

	codecs = map[string]Codec{
		CodecJSON:    JSON,
		CodecMsgPack: MsgPack,
	}
)

// Lookup returns the codec registered under name. An empty name selects JSON.
func Lookup(name string) (Codec, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return JSON, nil
	}
	c, ok := codecs[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownCodec)
	}
	return c, nil
}

// Names lists registered codec names in sorted order.
func Names() []string {
	out := make([]string, 0, len(codecs))
	for name := range codecs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type envelope[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// Decode reads an envelope whose payload has type T and returns its type tag
// alongside the payload.
func Decode[T any](c Codec, data []byte) (string, T, error) {
	var env envelope[T]
	if err := c.Unmarshal(data, &env); err != nil {
		return "", env.Payload, fmt.Errorf("decode %s message: %w", c.Name(), err)
	}
	return env.Type, env.Payload, nil
}

// DecodeInspect parses an inbound consumer request. Anything other than an
// inspect request yields ErrUnknownType.
func DecodeInspect(c Codec, data []byte) (InspectRequest, error) {
	typ, req, err := Decode[InspectRequest](c, data)
	if err != nil {
		return InspectRequest{}, err
	}
	if typ != TypeInspect {
		return InspectRequest{}, fmt.Errorf("%q: %w", typ, ErrUnknownType)
	}
	return req, nil
}
