package broadcast

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/alikendir0/backend-simulated-radar-simulator/core"
	"github.com/alikendir0/backend-simulated-radar-simulator/internal/logging"
	"github.com/alikendir0/backend-simulated-radar-simulator/internal/wire"
	"github.com/alikendir0/backend-simulated-radar-simulator/timectrl"
)

const tracerName = "github.com/alikendir0/backend-simulated-radar-simulator/internal/broadcast"

// Defaults for the sweep loop.
const (
	DefaultPeriod = 16700 * time.Microsecond
	DefaultStep   = 0.5
)

// ErrAlreadyRunning is returned by Run when the driver is already ticking.
var ErrAlreadyRunning = errors.New("driver already running")

// State is the driver lifecycle state.
type State int32

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// TickRecorder receives per-tick measurements. observability.RadarCollector
// satisfies it.
type TickRecorder interface {
	ObserveTick(d time.Duration, detected int, azimuthDeg float64)
	RecordDeliveries(delivered, skipped, dropped int)
	SetConsumers(n int)
}

type noopRecorder struct{}

func (noopRecorder) ObserveTick(time.Duration, int, float64) {}
func (noopRecorder) RecordDeliveries(int, int, int)          {}
func (noopRecorder) SetConsumers(int)                        {}

// Driver owns the World, advances it on a fixed period and fans each frame
// out through the Hub.
type Driver struct {
	world  *core.World
	hub    *Hub
	sensor wire.SensorParameters

	period   time.Duration
	step     float64
	mode     timectrl.Mode
	duration time.Duration

	log     logging.Logger
	metrics TickRecorder
	tracer  trace.Tracer

	state  atomic.Int32
	stepMu sync.Mutex
	latest atomic.Pointer[wire.Update]
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithPeriod sets the wall-clock interval between ticks.
func WithPeriod(p time.Duration) DriverOption {
	return func(d *Driver) {
		if p > 0 {
			d.period = p
		}
	}
}

// WithStep sets the logical time step passed to World.Tick.
func WithStep(dt float64) DriverOption {
	return func(d *Driver) { d.step = dt }
}

// WithMode selects real-time or accelerated pacing.
func WithMode(m timectrl.Mode) DriverOption {
	return func(d *Driver) { d.mode = m }
}

// WithDuration stops Run after the given amount of simulated wall time
// (ticks × period). Zero runs until the context is cancelled.
func WithDuration(total time.Duration) DriverOption {
	return func(d *Driver) { d.duration = total }
}

// WithLogger sets the driver logger.
func WithLogger(log logging.Logger) DriverOption {
	return func(d *Driver) {
		if log != nil {
			d.log = log
		}
	}
}

// WithMetrics installs a tick recorder.
func WithMetrics(m TickRecorder) DriverOption {
	return func(d *Driver) {
		if m != nil {
			d.metrics = m
		}
	}
}

// NewDriver wires a world to a hub. The world must not be touched by anyone
// else once handed to the driver.
func NewDriver(world *core.World, hub *Hub, opts ...DriverOption) *Driver {
	d := &Driver{
		world:   world,
		hub:     hub,
		sensor:  wire.FromSensor(world.SensorParameters()),
		period:  DefaultPeriod,
		step:    DefaultStep,
		mode:    timectrl.RealTime,
		log:     logging.Noop(),
		metrics: noopRecorder{},
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State reports whether Run is active.
func (d *Driver) State() State { return State(d.state.Load()) }

// Hub returns the consumer hub.
func (d *Driver) Hub() *Hub { return d.hub }

// SensorParameters returns the fixed cone parameters sent to new consumers.
func (d *Driver) SensorParameters() wire.SensorParameters { return d.sensor }

// Latest returns a copy of the most recently published update.
func (d *Driver) Latest() (wire.Update, bool) {
	u := d.latest.Load()
	if u == nil {
		return wire.Update{}, false
	}
	out := *u
	out.Aircraft = append([]wire.Contact(nil), u.Aircraft...)
	return out, true
}

// Run ticks until ctx is cancelled or the configured duration elapses. The
// driver returns to Idle afterwards and may be run again.
func (d *Driver) Run(ctx context.Context) error {
	if !d.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return ErrAlreadyRunning
	}
	defer d.state.Store(int32(Idle))

	d.log.Info(ctx, "sweep loop started",
		logging.Duration("period", d.period),
		logging.Float64("step", d.step),
		logging.String("mode", d.mode.String()),
	)

	tc := timectrl.NewTimeController(time.Now(), d.period, d.mode)
	tc.AddListener(func(time.Time) { d.Step(ctx) })

	err := tc.Run(ctx, d.duration)
	d.log.Info(ctx, "sweep loop stopped", logging.Uint64("steps", tc.Steps()))
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// Step advances the world by one tick, publishes the frame and fans it out.
func (d *Driver) Step(ctx context.Context) wire.Update {
	ctx, span := d.tracer.Start(ctx, "radar.tick")
	defer span.End()
	start := time.Now()

	d.stepMu.Lock()
	d.world.Tick(d.step)
	frame := d.world.Frame()
	d.stepMu.Unlock()

	update := wire.FromFrame(frame)
	d.latest.Store(&update)

	res := d.hub.Broadcast(ctx, wire.UpdateMessage(update))

	d.metrics.ObserveTick(time.Since(start), len(update.Aircraft), update.Azimuth)
	d.metrics.RecordDeliveries(res.Delivered, res.Skipped, res.Dropped)
	if res.Dropped > 0 {
		d.metrics.SetConsumers(d.hub.Len())
	}

	span.SetAttributes(
		attribute.Int64("radar.tick", int64(update.Tick)),
		attribute.Float64("radar.azimuth_deg", update.Azimuth),
		attribute.Int("radar.detected", len(update.Aircraft)),
		attribute.Int("radar.delivered", res.Delivered),
		attribute.Int("radar.skipped", res.Skipped),
		attribute.Int("radar.dropped", res.Dropped),
	)
	return update
}

// Connect sends the initial sensor snapshot to c and, if that succeeds,
// registers it for periodic updates.
func (d *Driver) Connect(ctx context.Context, c Consumer) error {
	if err := Send(c, wire.InitialState(d.sensor)); err != nil {
		d.log.Warn(ctx, "initial state not delivered; consumer not registered",
			logging.String("consumer_id", c.ID()), logging.Err(err))
		return err
	}
	if err := d.hub.Add(c); err != nil {
		return err
	}
	d.metrics.SetConsumers(d.hub.Len())
	d.log.Info(ctx, "consumer connected",
		logging.String("consumer_id", c.ID()), logging.String("codec", c.Codec()))
	return nil
}

// Disconnect unregisters and closes c.
func (d *Driver) Disconnect(ctx context.Context, c Consumer) {
	if d.hub.Remove(c.ID()) {
		d.metrics.SetConsumers(d.hub.Len())
		d.log.Info(ctx, "consumer disconnected", logging.String("consumer_id", c.ID()))
	}
	_ = c.Close()
}
