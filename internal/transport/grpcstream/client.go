package grpcstream

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alikendir0/backend-simulated-radar-simulator/internal/wire"
)

// Client is a thin RadarStream client.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to target over plaintext gRPC. Extra options are appended to
// the defaults.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the connection.
func (c *Client) Close() error { return c.conn.Close() }

// GetSensor fetches the fixed sensor parameters.
func (c *Client) GetSensor(ctx context.Context) (wire.SensorParameters, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, GetSensorMethod, &emptypb.Empty{}, out); err != nil {
		return wire.SensorParameters{}, err
	}
	return fromStruct[wire.SensorParameters](out)
}

// Inspect asks the catalog about one aircraft.
func (c *Client) Inspect(ctx context.Context, aircraftID string) (wire.AircraftInfo, error) {
	req, err := structpb.NewStruct(map[string]interface{}{"id": aircraftID})
	if err != nil {
		return wire.AircraftInfo{}, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, InspectMethod, req, out); err != nil {
		return wire.AircraftInfo{}, err
	}
	return fromStruct[wire.AircraftInfo](out)
}

// Event is one message received from Subscribe.
type Event struct {
	Type    string
	Payload *structpb.Struct
}

// Payload decodes the event payload into T, e.g. wire.Update.
func Payload[T any](ev Event) (T, error) {
	return fromStruct[T](ev.Payload)
}

// Subscription is an open Subscribe stream.
type Subscription struct {
	stream grpc.ClientStream
}

// Subscribe opens the update stream. The first event is always the initial
// sensor state.
func (c *Client) Subscribe(ctx context.Context) (*Subscription, error) {
	stream, err := c.conn.NewStream(ctx, &ServiceDesc.Streams[0], SubscribeMethod)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &Subscription{stream: stream}, nil
}

// Recv blocks for the next event.
func (s *Subscription) Recv() (Event, error) {
	msg := new(structpb.Struct)
	if err := s.stream.RecvMsg(msg); err != nil {
		return Event{}, err
	}
	fields := msg.GetFields()
	return Event{
		Type:    fields["type"].GetStringValue(),
		Payload: fields["payload"].GetStructValue(),
	}, nil
}
