package tests

import (
	"context"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/alikendir0/backend-simulated-radar-simulator/core"
	"github.com/alikendir0/backend-simulated-radar-simulator/internal/broadcast"
	"github.com/alikendir0/backend-simulated-radar-simulator/internal/logging"
	"github.com/alikendir0/backend-simulated-radar-simulator/internal/observability"
	"github.com/alikendir0/backend-simulated-radar-simulator/internal/transport/grpcstream"
	"github.com/alikendir0/backend-simulated-radar-simulator/internal/transport/ws"
	"github.com/alikendir0/backend-simulated-radar-simulator/internal/wire"
	"github.com/alikendir0/backend-simulated-radar-simulator/kb"
	"github.com/alikendir0/backend-simulated-radar-simulator/model"
)

type streamTestEnv struct {
	driver *broadcast.Driver
	wsURL  string
	grpc   *grpcstream.Client
}

func newStreamTestEnv(t *testing.T) *streamTestEnv {
	t.Helper()

	origin := core.Vec3{}
	world, err := core.NewWorld(core.NewDetectionCone(origin, 400, 120, 100), []*core.Aircraft{
		core.NewAircraft("F-16D Instance: 0", model.CategoryMilitary, origin, 2, 300, 20, 40),
		core.NewAircraft("C20A - AFRC Instance: 0", model.CategoryCivilian, origin, 1, 250, 200, 10),
	})
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}

	collector, err := observability.NewRadarCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewRadarCollector: %v", err)
	}
	catalog := kb.NewDefaultCatalog()
	driver := broadcast.NewDriver(world, broadcast.NewHub(logging.Noop()), broadcast.WithMetrics(collector))

	httpSrv := httptest.NewServer(ws.NewServer(driver, catalog, ws.WithInspectRecorder(collector)).Handler())

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	grpcSrv := grpcstream.NewServer(grpcstream.NewService(driver, catalog, logging.Noop(), collector), logging.Noop(), collector)
	go func() { _ = grpcSrv.Serve(lis) }()

	client, err := grpcstream.Dial(lis.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	t.Cleanup(func() {
		_ = client.Close()
		driver.Hub().CloseAll()
		httpSrv.Close()
		grpcSrv.Stop()
	})

	return &streamTestEnv{
		driver: driver,
		wsURL:  "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws",
		grpc:   client,
	}
}

func (e *streamTestEnv) waitForConsumers(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for e.driver.Hub().Len() != n {
		if time.Now().After(deadline) {
			t.Fatalf("hub has %d consumers, want %d", e.driver.Hub().Len(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readWS[T any](t *testing.T, conn *websocket.Conn, codec wire.Codec, wantType string) T {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("websocket read: %v", err)
	}
	typ, payload, err := wire.Decode[T](codec, data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if typ != wantType {
		t.Fatalf("message type = %q, want %q", typ, wantType)
	}
	return payload
}

func TestAllTransportsSeeTheSameSweep(t *testing.T) {
	env := newStreamTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	jsonConn, _, err := websocket.DefaultDialer.Dial(env.wsURL, nil)
	if err != nil {
		t.Fatalf("dial json: %v", err)
	}
	defer jsonConn.Close()
	packConn, _, err := websocket.DefaultDialer.Dial(env.wsURL+"?codec=msgpack", nil)
	if err != nil {
		t.Fatalf("dial msgpack: %v", err)
	}
	defer packConn.Close()

	sub, err := env.grpc.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	wantSensor := wire.SensorParameters{DetectionRange: 400, SweepWidth: 120, MaxElevation: 100}
	if got := readWS[wire.SensorParameters](t, jsonConn, wire.JSON, wire.TypeInitialState); got != wantSensor {
		t.Fatalf("json initial state = %+v", got)
	}
	if got := readWS[wire.SensorParameters](t, packConn, wire.MsgPack, wire.TypeInitialState); got != wantSensor {
		t.Fatalf("msgpack initial state = %+v", got)
	}
	ev, err := sub.Recv()
	if err != nil || ev.Type != wire.TypeInitialState {
		t.Fatalf("grpc initial event %q, %v", ev.Type, err)
	}

	env.waitForConsumers(t, 3)
	want := env.driver.Step(ctx)
	if len(want.Aircraft) != 1 || want.Aircraft[0].ID != "F-16D Instance: 0" {
		t.Fatalf("unexpected detections %+v", want.Aircraft)
	}

	got := map[string]wire.Update{
		"json":    readWS[wire.Update](t, jsonConn, wire.JSON, wire.TypeUpdate),
		"msgpack": readWS[wire.Update](t, packConn, wire.MsgPack, wire.TypeUpdate),
	}
	ev, err = sub.Recv()
	if err != nil || ev.Type != wire.TypeUpdate {
		t.Fatalf("grpc update event %q, %v", ev.Type, err)
	}
	if got["grpc"], err = grpcstream.Payload[wire.Update](ev); err != nil {
		t.Fatalf("grpc payload: %v", err)
	}

	for name, u := range got {
		if u.Tick != want.Tick || u.Azimuth != want.Azimuth {
			t.Fatalf("%s update tick=%d az=%v, want tick=%d az=%v", name, u.Tick, u.Azimuth, want.Tick, want.Azimuth)
		}
		if len(u.Aircraft) != 1 || u.Aircraft[0].ID != want.Aircraft[0].ID || u.Aircraft[0].Type != model.CategoryMilitary {
			t.Fatalf("%s aircraft = %+v", name, u.Aircraft)
		}
	}
}

func TestInspectAgreesAcrossTransports(t *testing.T) {
	env := newStreamTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.Dial(env.wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readWS[wire.SensorParameters](t, conn, wire.JSON, wire.TypeInitialState)

	const id = "F-16D Instance: 0"
	req, err := wire.JSON.Marshal(wire.Message{Type: wire.TypeInspect, Payload: wire.InspectRequest{ID: id}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, req); err != nil {
		t.Fatalf("write: %v", err)
	}
	viaWS := readWS[wire.AircraftInfo](t, conn, wire.JSON, wire.TypeAircraftInfo)

	viaGRPC, err := env.grpc.Inspect(ctx, id)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if viaWS != viaGRPC {
		t.Fatalf("ws answer %+v differs from grpc answer %+v", viaWS, viaGRPC)
	}
	if !viaWS.Found || viaWS.Name != "F-16D" || viaWS.Type != "Military" {
		t.Fatalf("unexpected answer %+v", viaWS)
	}
}
