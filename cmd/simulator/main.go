package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/alikendir0/backend-simulated-radar-simulator/core"
	"github.com/alikendir0/backend-simulated-radar-simulator/internal/broadcast"
	"github.com/alikendir0/backend-simulated-radar-simulator/internal/config"
	"github.com/alikendir0/backend-simulated-radar-simulator/internal/logging"
	"github.com/alikendir0/backend-simulated-radar-simulator/kb"
	"github.com/alikendir0/backend-simulated-radar-simulator/timectrl"
)

func main() {
	configPath := flag.String("config", "", "Path to a JSON, YAML or TOML config file")
	ticks := flag.Int("ticks", 720, "number of sweep ticks to simulate")
	every := flag.Int("every", 60, "print the detection list every N ticks (0 disables)")
	accelerated := flag.Bool("accelerated", true, "run in accelerated mode (vs real-time)")
	seed := flag.Uint64("seed", 0, "population seed (overrides simulation.seed when non-zero)")
	flag.Parse()

	overrides := map[string]any{}
	if *seed != 0 {
		overrides["simulation.seed"] = *seed
	}
	cfg, err := config.Load(*configPath, overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "simulator: %v\n", err)
		os.Exit(2)
	}
	log := logging.New(cfg.Log.Logging("radar-simulator"))

	mode := timectrl.RealTime
	if *accelerated {
		mode = timectrl.Accelerated
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	summary, err := simulate(ctx, cfg, options{Ticks: *ticks, Every: *every, Mode: mode}, os.Stdout, log)
	if err != nil {
		log.Error(ctx, "simulation failed", logging.Err(err))
		os.Exit(1)
	}
	summary.print(os.Stdout)
}

type options struct {
	Ticks int
	Every int
	Mode  timectrl.Mode
}

// summary aggregates detections over a run.
type summary struct {
	Ticks         uint64
	FinalAzimuth  float64
	MaxConcurrent int
	Detections    int
	Unique        map[string]int
}

func (s summary) print(w io.Writer) {
	fmt.Fprintf(w, "Simulation complete: %d ticks, sweep at %.2f°, %d detections, peak %d at once, %d distinct aircraft\n",
		s.Ticks, s.FinalAzimuth, s.Detections, s.MaxConcurrent, len(s.Unique))

	names := make(map[string]int)
	for id, n := range s.Unique {
		names[kb.DisplayName(id)] += n
	}
	keys := make([]string, 0, len(names))
	for k := range names {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "↳ %-28s %6d detections\n", k, names[k])
	}
}

// simulate runs the sweep loop headless for opts.Ticks ticks and prints the
// contact list periodically.
func simulate(ctx context.Context, cfg config.Config, opts options, out io.Writer, log logging.Logger) (summary, error) {
	world, err := config.BuildWorld(cfg.Sensor, cfg.Simulation)
	if err != nil {
		return summary{}, err
	}

	sum := summary{Unique: make(map[string]int)}
	world.RegisterTickListener(func(f core.Frame) {
		sum.Ticks = f.Seq
		sum.FinalAzimuth = f.Azimuth
		sum.Detections += len(f.Contacts)
		if len(f.Contacts) > sum.MaxConcurrent {
			sum.MaxConcurrent = len(f.Contacts)
		}
		for _, c := range f.Contacts {
			sum.Unique[c.ID]++
		}
		if opts.Every > 0 && f.Seq%uint64(opts.Every) == 0 {
			fmt.Fprintf(out, "[tick %5d] sweep %6.2f° %3d contacts\n", f.Seq, f.Azimuth, len(f.Contacts))
			for _, c := range f.Contacts {
				fmt.Fprintf(out, "↳ %-40s %-13s az=%6.2f° el=%5.1f° r=%6.1f\n",
					c.ID, c.Category, c.Azimuth, c.Elevation, c.Distance)
			}
		}
	})

	if opts.Ticks <= 0 {
		return sum, nil
	}

	period := cfg.Simulation.TickPeriod
	driver := broadcast.NewDriver(world, broadcast.NewHub(log),
		broadcast.WithPeriod(period),
		broadcast.WithStep(cfg.Simulation.Step),
		broadcast.WithMode(opts.Mode),
		broadcast.WithDuration(time.Duration(opts.Ticks)*period),
		broadcast.WithLogger(log),
	)

	fmt.Fprintf(out, "Starting simulation: ticks=%d, period=%s, mode=%v, aircraft=%d\n",
		opts.Ticks, period, opts.Mode, len(world.Aircraft()))
	if err := driver.Run(ctx); err != nil {
		return sum, err
	}
	return sum, nil
}
