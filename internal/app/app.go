// Package app wires config, logging, storage and the lane runner into the
// long-running planner process.
package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"planner/internal/config"
	"planner/internal/eventbus"
	"planner/internal/job"
	"planner/internal/runtime/supervisor"
	"planner/internal/storage"
	"planner/internal/task/lane"
	"planner/internal/task/scheduler"
	logx "planner/pkg/logx"
)

const saveTimeout = 5 * time.Second

type Options struct {
	ConfigPath string
	// Watch keeps the process alive and reloads lanes when the file changes.
	Watch bool
	// Lanes restricts the run to these lanes. Empty runs every lane.
	Lanes []string
}

type App struct {
	opts Options

	cfgm  *config.ConfigManager
	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	// notify is sd_notify; replaced in tests.
	notify func(state string)
	now    func() time.Time

	mu   sync.Mutex
	last *generation
}

// generation is one set of lane workers built from one config.
type generation struct {
	cfg     *config.Config
	plan    *config.Plan
	cancel  context.CancelFunc
	handles []*scheduler.Handle[job.Job]
	done    chan struct{}
	stopped bool
}

func NewApp(opts Options) (*App, error) {
	cfgm := config.NewConfigManager(opts.ConfigPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(context.Background(), cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(cfg.Logging.Logx())
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	store, err := OpenStore(cfg, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	return &App{
		opts:  opts,
		cfgm:  cfgm,
		log:   log.With(logx.String("comp", "app")),
		logs:  logSvc,
		bus:   eventbus.New(),
		store: store,
		notify: func(state string) {
			_, _ = daemon.SdNotify(false, state)
		},
		now: time.Now,
	}, nil
}

// OpenStore opens the configured store, or returns nil when storage is off.
func OpenStore(cfg *config.Config, log logx.Logger) (storage.Store, error) {
	sc, err := config.StorageSettings(cfg.Storage)
	if err != nil {
		return nil, err
	}
	st, err := storage.Open(sc, log)
	if errors.Is(err, storage.ErrDisabled) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	log.Info("storage enabled", logx.String("driver", sc.Driver))
	return st, nil
}

// Run executes the lanes until they are all done (or, with Watch, until ctx
// is done). On return the final state has been saved when storage is on. The
// result joins the lane errors; cancellation is not an error.
func (a *App) Run(ctx context.Context) error {
	sup := supervisor.New(ctx, supervisor.WithLogger(a.log))
	defer func() { _ = sup.Stop(context.Background()) }()

	if a.store != nil {
		j := job.NewJournal(a.store, a.log.With(logx.String("comp", "journal")))
		events, unsub := j.Subscribe(a.bus, 256)
		// The journal drains until unsub closes events; lanes are stopped by
		// then and sup.Stop waits for the drain.
		sup.Go0("journal", func(context.Context) { j.Run(context.Background(), events) })
		defer unsub()
	}

	var sub chan *config.Config
	if a.opts.Watch {
		a.cfgm.SetValidator(config.Validate)
		sub = a.cfgm.Subscribe(4)
		defer a.cfgm.Unsubscribe(sub)
		sup.GoRestart("config.watch", a.cfgm.Watch, nil)
	}

	cfg := a.cfgm.Get()
	gen, err := a.start(sup.Context(), cfg)
	if err != nil {
		return err
	}
	a.notify(daemon.SdNotifyReady)
	a.status(gen)

	var (
		reason  = StopUnknown
		runErrs []error
	)
	finished := gen.done
	for reason == StopUnknown {
		select {
		case <-ctx.Done():
			reason = StopSignal
		case <-finished:
			if !a.opts.Watch {
				reason = StopFinished
				break
			}
			a.log.Info("all lanes done; waiting for config changes")
			finished = nil
		case newCfg, ok := <-sub:
			if !ok {
				sub = nil
				continue
			}
			if !a.reload(gen, newCfg) {
				continue
			}
			runErrs = append(runErrs, a.stop(gen, StopConfigReload)...)
			next, err := a.start(sup.Context(), newCfg)
			if err != nil {
				a.log.Error("lanes restart failed; waiting for a fixed config", logx.Err(err))
				gen.cfg = newCfg
				continue
			}
			gen = next
			finished = gen.done
			a.status(gen)
		}
	}

	a.notify(daemon.SdNotifyStopping)
	runErrs = append(runErrs, a.stop(gen, reason)...)
	if st := a.bus.Stats(); st.Dropped > 0 {
		a.log.Warn("lane events dropped; the journal may be incomplete", logx.Int64("dropped", int64(st.Dropped)))
	}
	if err := a.save(gen); err != nil {
		a.log.Warn("state save failed", logx.Err(err))
		runErrs = append(runErrs, err)
	}
	return errors.Join(runErrs...)
}

// start builds the config's plan and spawns one worker per selected lane.
func (a *App) start(ctx context.Context, cfg *config.Config) (*generation, error) {
	plan, err := config.Build(cfg, a.now())
	if err != nil {
		return nil, err
	}
	exec := job.NewExecutor(
		job.WithLogger(a.log.With(logx.String("comp", "job"))),
		job.WithRate(cfg.Scheduler.MaxFiresPerSec, cfg.Scheduler.Burst),
	)
	base, err := plan.Scheduler(
		scheduler.WithLogger(a.log.With(logx.String("comp", "scheduler"))),
		scheduler.WithEventBus(a.bus),
	)
	if err != nil {
		return nil, err
	}

	names := plan.LaneNames()
	if len(a.opts.Lanes) > 0 {
		names = a.opts.Lanes
	}

	gctx, cancel := context.WithCancel(ctx)
	runner := scheduler.NewRunner(gctx, base)
	gen := &generation{cfg: cfg, plan: plan, cancel: cancel, done: make(chan struct{})}
	for _, name := range names {
		gen.handles = append(gen.handles, runner.Spawn(name, exec.Callback(name)))
	}
	go func() {
		_ = runner.Wait(context.Background())
		close(gen.done)
	}()
	a.log.Info("lanes started", logx.String("lanes", strings.Join(names, ",")))
	return gen, nil
}

// reload applies newCfg in place where it can and reports whether the lanes
// must be restarted from it.
func (a *App) reload(gen *generation, newCfg *config.Config) (restart bool) {
	sections, attrs, lanes := config.SummarizeConfigChange(gen.cfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return false
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config changed", fields...)

	a.notify(daemon.SdNotifyReloading)
	defer a.notify(daemon.SdNotifyReady)

	if slices.Contains(sections, "logging") {
		a.logs.Apply(newCfg.Logging.Logx())
	}
	if slices.Contains(sections, "storage") {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}
	if !slices.Contains(sections, "lanes") && !slices.Contains(sections, "scheduler") {
		gen.cfg = newCfg
		return false
	}
	a.log.Info("restarting lanes", logx.Any("lanes_changed", lanes))
	return true
}

// stop cancels gen, waits for its workers and keeps their final state.
func (a *App) stop(gen *generation, reason StopReason) []error {
	if gen.stopped {
		return nil
	}
	gen.stopped = true
	gen.cancel()
	<-gen.done

	var errs []error
	for _, h := range gen.handles {
		_, err := h.Join(context.Background())
		if err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
	}
	a.mu.Lock()
	a.last = gen
	a.mu.Unlock()
	a.log.Info("lanes stopped", logx.String("reason", reason.String()), logx.Int("errors", len(errs)))
	return errs
}

// State merges the final lane states of the last stopped generation into one
// scheduler. It is nil before the first generation stops.
func (a *App) State() (*scheduler.Scheduler[job.Job], error) {
	a.mu.Lock()
	gen := a.last
	a.mu.Unlock()
	if gen == nil {
		return nil, nil
	}
	return mergeState(gen)
}

func mergeState(gen *generation) (*scheduler.Scheduler[job.Job], error) {
	lanes := make(map[string][]lane.Task[job.Job], len(gen.plan.Lanes))
	history := make(map[string][]lane.Task[job.Job], len(gen.plan.Lanes))
	for name, tasks := range gen.plan.Lanes {
		lanes[name] = tasks
	}
	for _, h := range gen.handles {
		s, _ := h.Join(context.Background())
		if s == nil {
			continue
		}
		if pending, ok := s.Lane(h.Lane()); ok {
			lanes[h.Lane()] = pending
		}
		if done, ok := s.History(h.Lane()); ok {
			history[h.Lane()] = done
		}
	}
	return scheduler.New(lanes, history, gen.plan.Options()...)
}

func (a *App) save(gen *generation) error {
	if a.store == nil {
		return nil
	}
	state, err := mergeState(gen)
	if err != nil {
		return err
	}
	data, err := scheduler.Encode(scheduler.FormatJSON, state)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	name := gen.cfg.StateName()
	if err := a.store.SaveState(ctx, storage.State{Name: name, Format: string(scheduler.FormatJSON), Data: data, SavedAt: a.now()}); err != nil {
		return fmt.Errorf("save state %q: %w", name, err)
	}
	a.log.Info("state saved", logx.String("name", name), logx.Int("bytes", len(data)))
	return nil
}

func (a *App) status(gen *generation) {
	n := 0
	for _, tasks := range gen.plan.Lanes {
		n += len(tasks)
	}
	a.notify(fmt.Sprintf("STATUS=running %d lanes, %d tasks", len(gen.handles), n))
}

// Close releases storage and log files.
func (a *App) Close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	errs = append(errs, a.logs.Close())
	return errors.Join(errs...)
}
