// Command flaskanim runs the breathing-flask animation headless: it drives the
// frame clock, keeps geometry generation ahead of the display on a worker
// pool and logs the HUD once per stats interval.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	lg "github.com/Andrej220/go-utils/zlog"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/azargarov/flaskanim/config"
	"github.com/azargarov/flaskanim/driver"
	"github.com/azargarov/flaskanim/presenter"
	"github.com/azargarov/flaskanim/report"
	"github.com/azargarov/flaskanim/scheduler"
	"github.com/azargarov/flaskanim/workerpool"
)

// executor is what main needs from either pool backend.
type executor interface {
	scheduler.Executor
	Shutdown(ctx context.Context) error
}

type flags struct {
	configPath string
	policy     string
	backend    string
	reportPath string
	duration   time.Duration
}

func main() {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "Path to configuration file")
	flag.StringVar(&f.policy, "policy", "", "Scheduling policy override: lookahead or latest")
	flag.StringVar(&f.backend, "backend", "", "Pool backend override: wpool or dynamic")
	flag.StringVar(&f.reportPath, "report", "", "Write an XLSX frame timeline to this path")
	flag.DurationVar(&f.duration, "duration", -1, "Run duration override; 0 runs until interrupted")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, f); err != nil {
		lg.FromContext(ctx).Error("flaskanim failed", lg.Any("error", err))
		stop()
		os.Exit(1)
	}
}

func loadConfig(f flags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.policy != "" {
		cfg.Scheduler.Policy = f.policy
	}
	if f.backend != "" {
		cfg.Pool.Backend = f.backend
	}
	if f.reportPath != "" {
		cfg.Run.ReportPath = f.reportPath
	}
	if f.duration >= 0 {
		cfg.Run.Duration = f.duration
	}
	return cfg, cfg.Validate()
}

// newExecutor builds the configured backend. Both report job counts to the
// returned metrics.
func newExecutor(ctx context.Context, cfg *config.Config) (executor, *workerpool.AtomicMetrics) {
	metrics := &workerpool.AtomicMetrics{}
	onErr := func(err error) {
		lg.FromContext(ctx).Warn("pool job error", lg.Any("error", err))
	}

	if cfg.Pool.Backend == config.BackendDynamic {
		d := workerpool.NewDynamicExecutor(cfg.Pool.Workers, cfg.Pool.QueueSize, cfg.Pool.IdleTimeout)
		d.Metrics = metrics
		d.OnJobError = onErr
		return d, metrics
	}
	return workerpool.NewPoolFromOptions[struct{}](workerpool.Options{
		Workers:    cfg.Pool.Workers,
		QueueSize:  cfg.Pool.QueueSize,
		PinWorkers: cfg.Pool.PinWorkers,
		// a frame is regenerated on a later tick, never retried in place
		Retry:      workerpool.RetryPolicy{Attempts: 1},
		Metrics:    metrics,
		OnJobError: onErr,
		OnInternalError: func(err error) {
			lg.FromContext(ctx).Warn("pool internal error", lg.Any("error", err))
		},
	}), metrics
}

func run(ctx context.Context, f flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	policy, err := scheduler.ParsePolicy(cfg.Scheduler.Policy)
	if err != nil {
		return err
	}

	runID := uuid.New()
	logger := lg.FromContext(ctx).With(lg.String("run_id", runID.String()))
	logger.Info("starting flaskanim",
		lg.String("title", cfg.Window.Title),
		lg.String("resolution", fmt.Sprintf("%dx%d", cfg.Window.Width, cfg.Window.Height)),
		lg.String("policy", string(policy)),
		lg.String("backend", cfg.Pool.Backend),
		lg.Int("workers", cfg.Pool.Workers),
		lg.Int("max_window", int(cfg.Scheduler.MaxWindow)),
		lg.String("duration", cfg.Run.Duration.String()),
	)

	exec, metrics := newExecutor(ctx, cfg)
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), cfg.Run.ShutdownTimeout)
		defer cancel()
		if err := exec.Shutdown(shCtx); err != nil {
			logger.Error("pool shutdown failed", lg.Any("error", err))
		}
	}()

	gen, err := scheduler.NewGenerator(ctx, policy, exec, cfg.SchedulerOptions())
	if err != nil {
		return err
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), cfg.Run.ShutdownTimeout)
		defer cancel()
		if err := gen.Close(shCtx); err != nil {
			logger.Error("scheduler close failed", lg.Any("error", err))
		}
	}()

	clock := driver.Clock{FPSNum: cfg.Window.FPSNum, FPSDen: cfg.Window.FPSDen}
	drv, err := driver.New(clock, cfg.Frames())
	if err != nil {
		return err
	}

	up := &presenter.CPUUploader{}
	pres, err := presenter.New(ctx, up)
	if err != nil {
		return err
	}
	pres.Spin = clock.Spin(cfg.Scheduler.RevPerSecond)

	var rec *report.Recorder
	if cfg.Run.ReportPath != "" {
		rec = report.NewRecorder(runID, 0)
		rec.Retry = workerpool.RetryPolicy{
			Attempts: cfg.Run.ReportRetry.Attempts,
			Initial:  cfg.Run.ReportRetry.Initial,
			Max:      cfg.Run.ReportRetry.Max,
		}
	}

	started := time.Now()
	statsLimiter := rate.NewLimiter(rate.Every(cfg.Run.StatsEvery), 1)
	err = drv.Run(ctx, func(frame uint32) {
		g := gen.Advance(frame)
		st := pres.Present(frame, g)

		if rec != nil {
			rec.Record(report.Sample{
				Frame:       frame,
				Millis:      clock.Millis(frame),
				Status:      st,
				Yielded:     g != nil,
				Queued:      gen.QueueSize(),
				InFlight:    gen.InFlight(),
				Outstanding: gen.Outstanding(),
			})
		}
		if cfg.Run.StatsEvery > 0 && statsLimiter.Allow() {
			hud := driver.HUD(clock, frame, st, uint32(gen.Outstanding()), gen.MaxQueueSize())
			logger.Info("frame stats",
				lg.String("hud", strings.Join(hud, " | ")),
				lg.Any("uploads", pres.Uploads()),
				lg.Any("executed", metrics.Executed()),
				lg.Any("queued", metrics.Queued()),
			)
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("frame loop: %w", err)
	}

	stats := gen.Stats()
	logger.Info("frame loop stopped",
		lg.Any("ticks", drv.Ticks()),
		lg.Any("submitted", stats.Submitted),
		lg.Any("yielded", stats.Yielded),
		lg.Any("evicted", stats.Evicted),
		lg.Any("discarded", stats.Discarded),
		lg.Any("failed", stats.Failed),
		lg.Any("pool_executed", metrics.Executed()),
		lg.Any("pool_failed", metrics.Failed()),
	)

	if rec != nil {
		// drain both ends so the pool counters are final; the deferred
		// calls become no-ops
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Run.ShutdownTimeout)
		defer cancel()
		if err := gen.Close(closeCtx); err != nil {
			logger.Warn("scheduler close before report failed", lg.Any("error", err))
		}
		if err := exec.Shutdown(closeCtx); err != nil {
			logger.Warn("pool shutdown before report failed", lg.Any("error", err))
		}

		sum := report.Summary{
			Title:     cfg.Window.Title,
			Width:     cfg.Window.Width,
			Height:    cfg.Window.Height,
			Policy:    string(policy),
			Backend:   cfg.Pool.Backend,
			Workers:   cfg.Pool.Workers,
			MaxWindow: gen.MaxQueueSize(),
			Elapsed:   time.Since(started),
			Stats:     stats,
			Pool:      metrics.Snapshot(),
			Uploads:   pres.Uploads(),
		}
		// still write after an interrupt, only bounded by the shutdown timeout
		if err := rec.WriteFile(closeCtx, cfg.Run.ReportPath, sum); err != nil {
			return err
		}
	}
	return nil
}
