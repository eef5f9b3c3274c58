package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"

	"github.com/alikendir0/backend-simulated-radar-simulator/internal/broadcast"
	"github.com/alikendir0/backend-simulated-radar-simulator/internal/config"
	"github.com/alikendir0/backend-simulated-radar-simulator/internal/logging"
	"github.com/alikendir0/backend-simulated-radar-simulator/internal/observability"
	"github.com/alikendir0/backend-simulated-radar-simulator/internal/transport/grpcstream"
	"github.com/alikendir0/backend-simulated-radar-simulator/internal/transport/ws"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to a JSON, YAML or TOML config file")
	httpAddr := flag.String("http-addr", "", "HTTP/websocket listen address (overrides http_addr)")
	grpcAddr := flag.String("grpc-addr", "", "gRPC listen address (overrides grpc_addr); \"-\" disables gRPC")
	catalogPath := flag.String("catalog", "", "Aircraft catalog JSON file (overrides catalog_path)")
	flag.Parse()

	overrides := map[string]any{}
	if *httpAddr != "" {
		overrides["http_addr"] = *httpAddr
	}
	if *grpcAddr == "-" {
		overrides["grpc_addr"] = ""
	} else if *grpcAddr != "" {
		overrides["grpc_addr"] = *grpcAddr
	}
	if *catalogPath != "" {
		overrides["catalog_path"] = *catalogPath
	}

	cfg, err := config.Load(*configPath, overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "radar-server: %v\n", err)
		os.Exit(2)
	}
	log := logging.New(cfg.Log.Logging("radar-server"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		log.Error(ctx, "failed to listen for HTTP", logging.String("addr", cfg.HTTPAddr), logging.Err(err))
		os.Exit(1)
	}
	var grpcLis net.Listener
	if cfg.GRPCAddr != "" {
		grpcLis, err = net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.GRPCAddr), logging.Err(err))
			os.Exit(1)
		}
	}

	if err := run(ctx, cfg, log, httpLis, grpcLis); err != nil {
		log.Error(ctx, "radar server exited", logging.Err(err))
		os.Exit(1)
	}
}

// run wires the world, the sweep loop and both transports, and blocks until
// ctx is cancelled or a server fails. A nil grpcLis disables gRPC.
func run(ctx context.Context, cfg config.Config, log logging.Logger, httpLis, grpcLis net.Listener) error {
	if log == nil {
		log = logging.Noop()
	}

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector, err := observability.NewRadarCollector(reg)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	catalog, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}
	world, err := config.BuildWorld(cfg.Sensor, cfg.Simulation)
	if err != nil {
		return err
	}
	log.Info(ctx, "world ready",
		logging.Int("aircraft", len(world.Aircraft())),
		logging.Int("catalog_records", catalog.Len()),
		logging.Float64("detection_range", cfg.Sensor.Range),
		logging.Float64("sweep_width", cfg.Sensor.SweepWidth),
	)

	hub := broadcast.NewHub(log)
	driver := broadcast.NewDriver(world, hub,
		broadcast.WithPeriod(cfg.Simulation.TickPeriod),
		broadcast.WithStep(cfg.Simulation.Step),
		broadcast.WithLogger(log),
		broadcast.WithMetrics(collector),
	)

	wsServer := ws.NewServer(driver, catalog,
		ws.WithConfig(cfg.Stream),
		ws.WithLogger(log),
		ws.WithInspectRecorder(collector),
		ws.WithMetricsHandler(collector.Handler()),
	)
	httpServer := &http.Server{
		Handler:           wsServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var grpcServer *grpc.Server
	if grpcLis != nil {
		svc := grpcstream.NewService(driver, catalog, log, collector)
		grpcServer = grpcstream.NewServer(svc, log, collector)
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	serveErr := make(chan error, 2)
	go func() {
		log.Info(ctx, "serving HTTP and websocket", logging.String("addr", httpLis.Addr().String()))
		if err := httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("http server: %w", err)
		}
	}()
	if grpcServer != nil {
		go func() {
			log.Info(ctx, "serving gRPC", logging.String("addr", grpcLis.Addr().String()))
			if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				serveErr <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	driverDone := make(chan error, 1)
	go func() { driverDone <- driver.Run(runCtx) }()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info(ctx, "shutting down radar server")
	case runErr = <-serveErr:
	case runErr = <-driverDone:
		driverDone = nil
	}

	cancelRun()
	if driverDone != nil {
		if err := <-driverDone; err != nil && runErr == nil {
			runErr = err
		}
	}
	hub.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn(ctx, "http shutdown", logging.Err(err))
	}
	if grpcServer != nil {
		stopGRPC(shutdownCtx, grpcServer)
	}
	return runErr
}

// stopGRPC drains in-flight RPCs, forcing a stop when ctx expires first.
func stopGRPC(ctx context.Context, server *grpc.Server) {
	done := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		server.Stop()
		<-done
	}
}
