// Package grpcstream serves the radar stream over gRPC without generated
// stubs. Messages travel as google.protobuf.Struct values whose fields mirror
// the JSON wire format.
package grpcstream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alikendir0/backend-simulated-radar-simulator/internal/broadcast"
	"github.com/alikendir0/backend-simulated-radar-simulator/internal/logging"
	"github.com/alikendir0/backend-simulated-radar-simulator/internal/observability"
	"github.com/alikendir0/backend-simulated-radar-simulator/internal/wire"
	"github.com/alikendir0/backend-simulated-radar-simulator/kb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "radar.v1.RadarStream"

// Full method names.
const (
	SubscribeMethod = "/" + ServiceName + "/Subscribe"
	GetSensorMethod = "/" + ServiceName + "/GetSensor"
	InspectMethod   = "/" + ServiceName + "/Inspect"
)

// InspectRecorder counts inspect requests by result.
type InspectRecorder interface {
	RecordInspect(result string)
}

type noopInspectRecorder struct{}

func (noopInspectRecorder) RecordInspect(string) {}

// RadarStreamServer is the server API for the RadarStream service.
type RadarStreamServer interface {
	Subscribe(*emptypb.Empty, grpc.ServerStream) error
	GetSensor(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Inspect(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// Service implements RadarStreamServer on top of a broadcast driver.
type Service struct {
	driver   *broadcast.Driver
	catalog  *kb.Catalog
	log      logging.Logger
	inspects InspectRecorder
}

// NewService constructs the gRPC service. A nil catalog answers every inspect
// with an empty record.
func NewService(driver *broadcast.Driver, catalog *kb.Catalog, log logging.Logger, inspects InspectRecorder) *Service {
	if catalog == nil {
		catalog = kb.NewCatalog()
	}
	if log == nil {
		log = logging.Noop()
	}
	if inspects == nil {
		inspects = noopInspectRecorder{}
	}
	return &Service{driver: driver, catalog: catalog, log: log, inspects: inspects}
}

func (s *Service) logger(ctx context.Context) logging.Logger {
	if l := logging.LoggerFromContext(ctx); l != nil {
		return l
	}
	return s.log
}

// Subscribe streams the initial sensor snapshot followed by every update
// until the client cancels or the server closes the consumer.
func (s *Service) Subscribe(_ *emptypb.Empty, stream grpc.ServerStream) error {
	ctx := stream.Context()
	c := newStreamConsumer(uuid.NewString())
	if err := s.driver.Connect(ctx, c); err != nil {
		return ToStatusError(err)
	}
	defer s.driver.Disconnect(ctx, c)

	for {
		select {
		case <-ctx.Done():
			return ToStatusError(ctx.Err())
		case <-c.done:
			return status.Error(codes.Unavailable, "stream closed by server")
		case data := <-c.mailbox:
			msg := &structpb.Struct{}
			if err := protojson.Unmarshal(data, msg); err != nil {
				return ToStatusError(fmt.Errorf("convert stream message: %w", err))
			}
			if err := stream.SendMsg(msg); err != nil {
				s.logger(ctx).Debug(ctx, "subscribe send failed",
					logging.String("consumer_id", c.ID()), logging.Err(err))
				return err
			}
		}
	}
}

// GetSensor returns the fixed sensor parameters.
func (s *Service) GetSensor(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	out, err := toStruct(s.driver.SensorParameters())
	return out, ToStatusError(err)
}

// Inspect looks up catalog details for the aircraft named by the "id" field.
func (s *Service) Inspect(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := strings.TrimSpace(req.GetFields()["id"].GetStringValue())
	if id == "" {
		s.inspects.RecordInspect(observability.InspectInvalid)
		return nil, ToStatusError(fmt.Errorf("%w: id is required", ErrInvalidRequest))
	}

	meta, found := s.catalog.LookupAircraft(id)
	if found {
		s.inspects.RecordInspect(observability.InspectFound)
	} else {
		s.inspects.RecordInspect(observability.InspectMissing)
	}
	s.logger(ctx).Debug(ctx, "inspect", logging.String("aircraft_id", id), logging.Any("found", found))

	out, err := toStruct(wire.FromMetadata(id, meta, found))
	return out, ToStatusError(err)
}

// toStruct converts a JSON-tagged value into a Struct with the same fields.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

// fromStruct decodes a Struct into a JSON-tagged value.
func fromStruct[T any](st *structpb.Struct) (T, error) {
	var out T
	data, err := protojson.Marshal(st)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(data, &out)
	return out, err
}

// streamConsumer bridges the hub to one Subscribe call.
type streamConsumer struct {
	id      string
	mailbox chan []byte
	done    chan struct{}
	once    sync.Once
}

func newStreamConsumer(id string) *streamConsumer {
	return &streamConsumer{id: id, mailbox: make(chan []byte, 1), done: make(chan struct{})}
}

func (c *streamConsumer) ID() string    { return c.id }
func (c *streamConsumer) Codec() string { return wire.CodecJSON }

func (c *streamConsumer) Offer(data []byte) error {
	select {
	case <-c.done:
		return broadcast.ErrConsumerClosed
	default:
	}
	select {
	case c.mailbox <- data:
		return nil
	default:
		return broadcast.ErrConsumerBusy
	}
}

func (c *streamConsumer) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func subscribeHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(RadarStreamServer).Subscribe(in, stream)
}

func getSensorHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RadarStreamServer).GetSensor(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetSensorMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RadarStreamServer).GetSensor(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func inspectHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RadarStreamServer).Inspect(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InspectMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RadarStreamServer).Inspect(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc describes RadarStream for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RadarStreamServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetSensor", Handler: getSensorHandler},
		{MethodName: "Inspect", Handler: inspectHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Subscribe", Handler: subscribeHandler, ServerStreams: true},
	},
	Metadata: "radar/v1/radar_stream.proto",
}

// RegisterRadarStreamServer registers srv with s.
func RegisterRadarStreamServer(s grpc.ServiceRegistrar, srv RadarStreamServer) {
	s.RegisterService(&ServiceDesc, srv)
}
