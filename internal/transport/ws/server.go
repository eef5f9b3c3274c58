// Package ws exposes the radar stream over websockets together with a small
// JSON HTTP API.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/alikendir0/backend-simulated-radar-simulator/internal/broadcast"
	"github.com/alikendir0/backend-simulated-radar-simulator/internal/logging"
	"github.com/alikendir0/backend-simulated-radar-simulator/internal/observability"
	"github.com/alikendir0/backend-simulated-radar-simulator/internal/wire"
	"github.com/alikendir0/backend-simulated-radar-simulator/kb"
)

// Websocket subprotocols. Clients that negotiate SubprotocolMsgPack receive
// binary msgpack frames; everyone else gets JSON text frames.
const (
	SubprotocolJSON    = "radar.json"
	SubprotocolMsgPack = "radar.msgpack"
)

// InspectRecorder counts inspect requests by result.
type InspectRecorder interface {
	RecordInspect(result string)
}

type noopInspectRecorder struct{}

func (noopInspectRecorder) RecordInspect(string) {}

// Config tunes connection handling.
type Config struct {
	WriteWait       time.Duration `mapstructure:"write_wait"`
	PongWait        time.Duration `mapstructure:"pong_wait"`
	MaxMessageBytes int64         `mapstructure:"max_message_bytes"`
	InspectRate     float64       `mapstructure:"inspect_rate"`
	InspectBurst    int           `mapstructure:"inspect_burst"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// DefaultConfig returns the connection defaults.
func DefaultConfig() Config {
	return Config{
		WriteWait:       5 * time.Second,
		PongWait:        60 * time.Second,
		MaxMessageBytes: 4096,
		InspectRate:     5,
		InspectBurst:    10,
		AllowedOrigins:  []string{"*"},
	}
}

func (c Config) pingPeriod() time.Duration {
	return c.PongWait * 9 / 10
}

// Server owns the HTTP router and the websocket upgrade path.
type Server struct {
	driver  *broadcast.Driver
	catalog *kb.Catalog
	cfg     Config

	log      logging.Logger
	inspects InspectRecorder
	metrics  http.Handler

	upgrader websocket.Upgrader
	router   chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithConfig overrides the connection defaults.
func WithConfig(cfg Config) Option {
	return func(s *Server) { s.cfg = cfg }
}

// WithLogger sets the server logger.
func WithLogger(log logging.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithInspectRecorder installs an inspect request counter.
func WithInspectRecorder(r InspectRecorder) Option {
	return func(s *Server) {
		if r != nil {
			s.inspects = r
		}
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// NewServer builds the router. A nil catalog answers every inspect request
// with an empty record.
func NewServer(driver *broadcast.Driver, catalog *kb.Catalog, opts ...Option) *Server {
	if catalog == nil {
		catalog = kb.NewCatalog()
	}
	s := &Server{
		driver:   driver,
		catalog:  catalog,
		cfg:      DefaultConfig(),
		log:      logging.Noop(),
		inspects: noopInspectRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.PongWait <= 0 {
		s.cfg.PongWait = DefaultConfig().PongWait
	}
	if s.cfg.WriteWait <= 0 {
		s.cfg.WriteWait = DefaultConfig().WriteWait
	}
	if s.cfg.MaxMessageBytes <= 0 {
		s.cfg.MaxMessageBytes = DefaultConfig().MaxMessageBytes
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		Subprotocols:    []string{SubprotocolMsgPack, SubprotocolJSON},
		CheckOrigin:     s.checkOrigin,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/ws", s.handleStream)
	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/sensor", s.handleSensor)
		r.Get("/frame", s.handleFrame)
		r.Get("/catalog", s.handleCatalogList)
		r.Get("/catalog/{name}", s.handleCatalogLookup)
	})
	return r
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func codecFor(conn *websocket.Conn, r *http.Request) (wire.Codec, error) {
	if conn.Subprotocol() == SubprotocolMsgPack {
		return wire.MsgPack, nil
	}
	return wire.Lookup(r.URL.Query().Get("codec"))
}

// handleStream upgrades the connection, sends the initial sensor snapshot and
// then serves updates until either side goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	log := loggerFrom(r, s.log)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		log.Warn(r.Context(), "websocket upgrade failed", logging.Err(err))
		return
	}
	codec, err := codecFor(conn, r)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
			time.Now().Add(s.cfg.WriteWait))
		_ = conn.Close()
		return
	}

	limiter := rate.NewLimiter(rate.Limit(s.cfg.InspectRate), s.cfg.InspectBurst)
	c := newConsumer(uuid.NewString(), conn, codec, limiter, log)
	ctx := r.Context()

	if err := s.driver.Connect(ctx, c); err != nil {
		_ = c.Close()
		return
	}

	go func() {
		if err := c.writeLoop(s.cfg.WriteWait, s.cfg.pingPeriod()); err != nil {
			log.Debug(ctx, "websocket write failed", logging.String("consumer_id", c.ID()), logging.Err(err))
		}
		s.driver.Disconnect(ctx, c)
	}()

	if err := c.readLoop(ctx, s.cfg.PongWait, s.cfg.MaxMessageBytes, s.handleInbound); err != nil {
		log.Debug(ctx, "websocket read failed", logging.String("consumer_id", c.ID()), logging.Err(err))
	}
	s.driver.Disconnect(ctx, c)
}

// handleInbound answers one consumer request.
func (s *Server) handleInbound(ctx context.Context, c *consumer, data []byte) {
	req, err := wire.DecodeInspect(c.codec, data)
	if err != nil {
		s.inspects.RecordInspect(observability.InspectInvalid)
		msg := "malformed request"
		if errors.Is(err, wire.ErrUnknownType) {
			msg = err.Error()
		}
		c.reply(wire.ErrorMessage(msg))
		return
	}
	if !c.limiter.Allow() {
		s.inspects.RecordInspect(observability.InspectThrottled)
		c.reply(wire.ErrorMessage("inspect rate limit exceeded"))
		return
	}

	meta, found := s.catalog.LookupAircraft(req.ID)
	if found {
		s.inspects.RecordInspect(observability.InspectFound)
	} else {
		s.inspects.RecordInspect(observability.InspectMissing)
	}
	if !c.reply(wire.InfoMessage(wire.FromMetadata(req.ID, meta, found))) {
		c.log.Debug(ctx, "inspect reply dropped", logging.String("consumer_id", c.ID()), logging.String("aircraft_id", req.ID))
	}
}

type healthResponse struct {
	Status    string `json:"status"`
	Loop      string `json:"loop"`
	Consumers int    `json:"consumers"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Loop:      s.driver.State().String(),
		Consumers: s.driver.Hub().Len(),
	})
}

func (s *Server) handleSensor(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.driver.SensorParameters())
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	u, ok := s.driver.Latest()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no frame published yet")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleCatalogList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.List())
}

func (s *Server) handleCatalogLookup(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	meta, found := s.catalog.LookupAircraft(name)
	if !found {
		s.inspects.RecordInspect(observability.InspectMissing)
		writeError(w, http.StatusNotFound, "aircraft not found: "+kb.DisplayName(name))
		return
	}
	s.inspects.RecordInspect(observability.InspectFound)
	writeJSON(w, http.StatusOK, wire.FromMetadata(name, meta, true))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, wire.ErrorPayload{Message: msg})
}
