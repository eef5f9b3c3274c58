package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Inspect request outcomes used as the result label.
const (
	InspectFound     = "found"
	InspectMissing   = "missing"
	InspectThrottled = "throttled"
	InspectInvalid   = "invalid"
)

// RadarCollector bundles Prometheus metrics for the sweep loop, the consumer
// fan-out and the gRPC surface.
type RadarCollector struct {
	gatherer prometheus.Gatherer

	Ticks           prometheus.Counter
	TickDuration    prometheus.Histogram
	Detected        prometheus.Gauge
	SweepAzimuth    prometheus.Gauge
	Consumers       prometheus.Gauge
	Deliveries      *prometheus.CounterVec
	InspectRequests *prometheus.CounterVec

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec
}

// NewRadarCollector registers radar metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewRadarCollector(reg prometheus.Registerer) (*RadarCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ticks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "radar_ticks_total",
		Help: "Number of simulation ticks executed by the broadcast driver.",
	}), "radar_ticks_total")
	if err != nil {
		return nil, err
	}

	tickDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "radar_tick_duration_seconds",
		Help:    "Wall-clock time spent advancing the world and fanning out one update.",
		Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
	}), "radar_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	detected, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "radar_detected_aircraft",
		Help: "Aircraft inside the detection cone on the latest tick.",
	}), "radar_detected_aircraft")
	if err != nil {
		return nil, err
	}
	azimuth, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "radar_sweep_azimuth_degrees",
		Help: "Current sweep azimuth in degrees.",
	}), "radar_sweep_azimuth_degrees")
	if err != nil {
		return nil, err
	}
	consumers, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "radar_consumers",
		Help: "Currently registered stream consumers.",
	}), "radar_consumers")
	if err != nil {
		return nil, err
	}

	deliveries, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_deliveries_total",
		Help: "Per-consumer update deliveries, labeled by result (delivered, skipped, dropped).",
	}, []string{"result"}), "radar_deliveries_total")
	if err != nil {
		return nil, err
	}
	inspects, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_inspect_requests_total",
		Help: "Aircraft inspect requests, labeled by result.",
	}, []string{"result"}), "radar_inspect_requests_total")
	if err != nil {
		return nil, err
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grpc_requests_total",
		Help: "Total number of handled RPCs, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"}), "grpc_requests_total")
	if err != nil {
		return nil, err
	}
	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "grpc_request_duration_seconds",
		Help:    "RPC latency in seconds. Streaming RPCs observe the lifetime of the stream.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 60, 300},
	}, []string{"service", "method"}), "grpc_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &RadarCollector{
		gatherer:        gatherer,
		Ticks:           ticks,
		TickDuration:    tickDuration,
		Detected:        detected,
		SweepAzimuth:    azimuth,
		Consumers:       consumers,
		Deliveries:      deliveries,
		InspectRequests: inspects,
		RPCRequests:     requests,
		RPCDurations:    durations,
	}, nil
}

// ObserveTick records one completed tick.
func (c *RadarCollector) ObserveTick(d time.Duration, detected int, azimuthDeg float64) {
	if c == nil {
		return
	}
	c.Ticks.Inc()
	c.TickDuration.Observe(d.Seconds())
	c.Detected.Set(float64(detected))
	c.SweepAzimuth.Set(azimuthDeg)
}

// RecordDeliveries adds the outcome of one fan-out.
func (c *RadarCollector) RecordDeliveries(delivered, skipped, dropped int) {
	if c == nil {
		return
	}
	if delivered > 0 {
		c.Deliveries.WithLabelValues("delivered").Add(float64(delivered))
	}
	if skipped > 0 {
		c.Deliveries.WithLabelValues("skipped").Add(float64(skipped))
	}
	if dropped > 0 {
		c.Deliveries.WithLabelValues("dropped").Add(float64(dropped))
	}
}

// SetConsumers updates the registered consumer gauge.
func (c *RadarCollector) SetConsumers(n int) {
	if c == nil {
		return
	}
	c.Consumers.Set(float64(n))
}

// RecordInspect counts one inspect request by result.
func (c *RadarCollector) RecordInspect(result string) {
	if c == nil {
		return
	}
	c.InspectRequests.WithLabelValues(result).Inc()
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *RadarCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		c.observeRPC(fullMethod, start, err)
		return resp, err
	}
}

// StreamServerInterceptor records request counts and stream lifetimes for
// streaming RPCs.
func (c *RadarCollector) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		c.observeRPC(fullMethod, start, err)
		return err
	}
}

func (c *RadarCollector) observeRPC(fullMethod string, start time.Time, err error) {
	if c == nil {
		return
	}
	service, method := SplitMethod(fullMethod)
	code := status.Code(err).String()

	if c.RPCRequests != nil {
		c.RPCRequests.WithLabelValues(service, method, code).Inc()
	}
	if c.RPCDurations != nil {
		c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *RadarCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components. It tolerates empty strings and partial paths, returning
// "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
