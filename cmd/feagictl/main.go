package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"feagi/internal/logging"
	"feagi/internal/model"
	"feagi/internal/sensory"
	"feagi/internal/storage"
	feagiapi "feagi/pkg/feagi"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "snapshots":
		return runSnapshots(ctx, args[1:])
	case "inspect":
		return runInspect(ctx, args[1:])
	case "prune":
		return runPrune(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "connectome JSON path (built-in demo connectome when empty)")
	hz := fs.Float64("hz", 10, "burst frequency in Hz")
	duration := fs.Duration("duration", 0, "run duration (0 runs until interrupted)")
	storeKind := fs.String("store", "memory", "snapshot store backend: memory|sqlite")
	dbPath := fs.String("db-path", "feagi.db", "sqlite database path")
	logLevel := fs.String("log-level", "info", "log level: off|error|warn|info|debug")
	demoAgent := fs.Bool("demo-agent", false, "register a synthetic sensory agent against the first area")
	agentHz := fs.Float64("agent-hz", 30, "demo agent injection rate in Hz")
	seed := fs.Int64("seed", 1, "demo agent rng seed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		return err
	}
	log := logging.New(level, "feagi")

	cfg, err := loadConnectome(*configPath)
	if err != nil {
		return err
	}

	client, err := feagiapi.New(cfg, feagiapi.Options{
		StoreKind:   *storeKind,
		DBPath:      *dbPath,
		FrequencyHz: *hz,
		Log:         log,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Init(ctx); err != nil {
		return err
	}

	if *demoAgent {
		if len(cfg.Areas) == 0 {
			return errors.New("demo agent requires at least one area")
		}
		area := cfg.Areas[0]
		rng := rand.New(rand.NewSource(*seed))
		src := demoSource(rng, area.CorticalID, area.Dimensions)
		agentID, err := client.RegisterAgent(feagiapi.AgentRequest{
			RateHz:       *agentHz,
			SensoryAreas: []string{string(area.CorticalID)},
		}, src)
		if err != nil {
			return err
		}
		fmt.Printf("demo agent %s injecting into %s at %.1f Hz\n", agentID, area.CorticalID, *agentHz)
	}

	if err := client.Start(); err != nil {
		return err
	}

	status := client.Status()
	fmt.Printf("burst loop running: %s areas, %s neurons, %s precision, target %.2f Hz\n",
		humanize.Comma(int64(status.AreaCount)), humanize.Comma(int64(status.NeuronCount)),
		status.Precision, status.FrequencyHz)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	var deadline <-chan time.Time
	if *duration > 0 {
		timer := time.NewTimer(*duration)
		defer timer.Stop()
		deadline = timer.C
	}

	monitor(ctx, client, stop, deadline)

	client.Stop()
	final := client.Status()
	fmt.Printf("stopped after %s bursts (%s failed)\n",
		humanize.Comma(int64(final.BurstCount)), humanize.Comma(int64(final.FailedTicks)))
	return nil
}

// monitor prints a status line until interrupted. On a terminal the line is
// redrawn in place; otherwise one line every interval so logs stay readable.
func monitor(ctx context.Context, client *feagiapi.Client, stop <-chan os.Signal, deadline <-chan time.Time) {
	tty := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	interval := 500 * time.Millisecond
	if !tty {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	lastCount := uint64(0)
	lastAt := start

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			if tty {
				fmt.Println()
			}
			return
		case <-deadline:
			if tty {
				fmt.Println()
			}
			return
		case now := <-ticker.C:
			status := client.Status()
			actual := float64(status.BurstCount-lastCount) / now.Sub(lastAt).Seconds()
			lastCount = status.BurstCount
			lastAt = now
			line := fmt.Sprintf("burst %s | target %.2f Hz | actual %.2f Hz | agents %d | up %s",
				humanize.Comma(int64(status.BurstCount)), status.FrequencyHz, actual,
				status.Agents, time.Since(start).Truncate(time.Second))
			if tty {
				fmt.Printf("\r\033[K%s", line)
			} else {
				fmt.Println(line)
			}
		}
	}
}

func runSnapshots(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("snapshots", flag.ContinueOnError)
	storeKind := fs.String("store", "sqlite", "snapshot store backend: memory|sqlite")
	dbPath := fs.String("db-path", "feagi.db", "sqlite database path")
	limit := fs.Int("limit", 20, "maximum snapshots to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := storage.NewStore(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()
	if err := store.Init(ctx); err != nil {
		return err
	}

	records, err := store.ListSnapshots(ctx, *limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no snapshots")
		return nil
	}
	for _, rec := range records {
		fmt.Printf("burst %s  %s  areas=%d neurons=%s payload=%s\n",
			humanize.Comma(int64(rec.BurstNumber)),
			rec.CapturedAt.UTC().Format(time.RFC3339),
			rec.AreaCount,
			humanize.Comma(int64(rec.NeuronCount)),
			humanize.Bytes(uint64(len(rec.Payload))))
	}
	return nil
}

func runInspect(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	storeKind := fs.String("store", "sqlite", "snapshot store backend: memory|sqlite")
	dbPath := fs.String("db-path", "feagi.db", "sqlite database path")
	points := fs.Int("points", 10, "voxels to print per area (0 prints all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := storage.NewStore(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()
	if err := store.Init(ctx); err != nil {
		return err
	}

	rec, ok, err := store.LatestSnapshot(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("no snapshots stored")
	}

	frames, err := decodeSnapshot(rec.Payload)
	if err != nil {
		return err
	}
	fmt.Printf("burst %s captured %s (%s)\n",
		humanize.Comma(int64(rec.BurstNumber)),
		rec.CapturedAt.UTC().Format(time.RFC3339),
		humanize.Bytes(uint64(len(rec.Payload))))
	for _, frame := range frames {
		fmt.Printf("area %s: %s fired\n", frame.Area, humanize.Comma(int64(len(frame.Points))))
		limit := len(frame.Points)
		if *points > 0 && limit > *points {
			limit = *points
		}
		for _, p := range frame.Points[:limit] {
			fmt.Printf("  (%d,%d,%d) p=%.4f\n", p.X, p.Y, p.Z, p.Potential)
		}
		if limit < len(frame.Points) {
			fmt.Printf("  ... %d more\n", len(frame.Points)-limit)
		}
	}
	return nil
}

func runPrune(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("prune", flag.ContinueOnError)
	storeKind := fs.String("store", "sqlite", "snapshot store backend: memory|sqlite")
	dbPath := fs.String("db-path", "feagi.db", "sqlite database path")
	keep := fs.Int("keep", 100, "snapshots to keep")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *keep < 0 {
		return errors.New("keep must be >= 0")
	}

	store, err := storage.NewStore(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()
	if err := store.Init(ctx); err != nil {
		return err
	}
	if err := store.Prune(ctx, *keep); err != nil {
		return err
	}
	fmt.Printf("pruned to %d snapshots\n", *keep)
	return nil
}

// demoSource emits a handful of random voxels per read, enough to exercise
// injection and firing without a real transport attached.
func demoSource(rng *rand.Rand, area model.CorticalID, dims model.Coordinate) sensory.Source {
	return sensory.SourceFunc(func(ctx context.Context) ([]model.SensoryFrame, error) {
		count := 1 + rng.Intn(8)
		points := make([]model.XYZP, count)
		for i := range points {
			points[i] = model.XYZP{
				X:         uint32(rng.Intn(int(dims.X))),
				Y:         uint32(rng.Intn(int(dims.Y))),
				Z:         uint32(rng.Intn(int(dims.Z))),
				Potential: 0.5 + rng.Float32(),
			}
		}
		return []model.SensoryFrame{{Area: area, Points: points}}, nil
	})
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: feagictl <run|snapshots|inspect|prune> [flags]", msg)
}
