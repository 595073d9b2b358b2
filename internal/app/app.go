package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"indibot/internal/config"
	"indibot/internal/indico"
	"indibot/internal/notify"
	"indibot/internal/scheduler"
	"indibot/internal/storage"
	"indibot/pkg/logx"
)

// Options are the process-level knobs that come from outside the config file.
type Options struct {
	ConfigPath string

	// Debug widens fetch windows upstream and forces debug-level logging.
	Debug bool
}

// App owns the component graph for one daemon run. Construction wires and
// validates everything; Start only arms the trigger.
type App struct {
	cfg   *config.Config
	opts  Options
	debug bool

	log      logx.Logger
	logClose func() error

	store storage.Store
	svc   *scheduler.Service
	cron  *cron.Cron

	mu      sync.Mutex
	fatal   error
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

func New(opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	debug := opts.Debug
	logCfg := logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
	if debug {
		logCfg.Level = "debug"
	}
	log, logClose := logx.New(logCfg)
	log = log.With(logx.String("comp", "app"))

	store, err := storage.Open(cfg.Storage.URI, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logClose()
		return nil, fmt.Errorf("storage: %w", err)
	}

	client := indico.NewClient(cfg.Server.URL, indico.Credentials{
		APIKey: cfg.Server.APIKey,
		Secret: cfg.Server.Secret,
	}, log.With(logx.String("comp", "indico")))

	dispatch, err := notify.NewDispatcher(cfg.Channels, log.With(logx.String("comp", "notify")))
	if err != nil {
		_ = logClose()
		return nil, fmt.Errorf("channels: %w", err)
	}

	svc := scheduler.New(cfg.Bots, client, store, dispatch, debug,
		log.With(logx.String("comp", "scheduler")))

	return &App{
		cfg:      cfg,
		opts:     opts,
		debug:    debug,
		log:      log,
		logClose: logClose,
		store:    store,
		svc:      svc,
		done:     make(chan struct{}),
	}, nil
}

// Done is closed when the app hits a fatal error and wants the process to
// shut down.
func (a *App) Done() <-chan struct{} { return a.done }

// Err returns the fatal error that closed Done, if any.
func (a *App) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fatal
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.store.Load(runCtx); err != nil {
		cancel()
		return fmt.Errorf("storage load: %w", err)
	}

	c, err := a.buildCron(runCtx)
	if err != nil {
		cancel()
		return err
	}
	a.cron = c

	// Run one pass right away; the cron entry covers the rest.
	go a.runOnce(runCtx)
	a.cron.Start()

	go a.watchdog(runCtx)
	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify ready")
	}

	a.log.Info("started",
		logx.Int("bots", len(a.cfg.Bots)),
		logx.Int("channels", len(a.cfg.Channels)),
		logx.Bool("debug", a.debug))
	return nil
}

func (a *App) buildCron(runCtx context.Context) (*cron.Cron, error) {
	opts := []cron.Option{
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	}
	if tz := strings.TrimSpace(a.cfg.Poll.Timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("poll.timezone: invalid %q: %w", tz, err)
		}
		opts = append(opts, cron.WithLocation(loc))
	}
	c := cron.New(opts...)

	spec := strings.TrimSpace(a.cfg.Poll.Schedule)
	if spec == "" {
		interval, err := a.cfg.PollInterval()
		if err != nil {
			return nil, err
		}
		spec = fmt.Sprintf("@every %s", interval)
	}
	if _, err := c.AddFunc(spec, func() { a.runOnce(runCtx) }); err != nil {
		return nil, fmt.Errorf("poll.schedule: invalid %q: %w", spec, err)
	}
	return c, nil
}

func (a *App) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	err := a.svc.Tick(ctx, start)
	switch {
	case err == nil:
		a.log.Debug("poll done", logx.Duration("took", time.Since(start)))
	case errors.Is(err, scheduler.ErrStorage):
		a.fail(err)
	case errors.Is(err, context.Canceled):
	default:
		a.log.Error("poll failed", logx.Err(err))
	}
}

// fail records the first fatal error and signals the process to exit. The
// dedup store is the source of truth for what was already sent; once it
// misbehaves, continuing risks duplicate notifications.
func (a *App) fail(err error) {
	a.mu.Lock()
	if a.fatal == nil {
		a.fatal = err
		close(a.done)
	}
	a.mu.Unlock()
	a.log.Error("fatal", logx.Err(err))
}

func (a *App) watchdog(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}

func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.stopped = true
	a.mu.Unlock()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	a.log.Info("stopping")

	if a.cancel != nil {
		a.cancel()
	}
	if a.cron != nil {
		// Wait for an in-flight poll, bounded by the caller's deadline.
		select {
		case <-a.cron.Stop().Done():
		case <-ctx.Done():
			a.log.Warn("poll still running at shutdown deadline")
		}
	}

	// Flush whatever the backend buffers, then release it. Save errors are
	// reported but must not block Close.
	var firstErr error
	if err := a.store.Save(ctx); err != nil {
		a.log.Error("storage flush failed", logx.Err(err))
		firstErr = err
	}
	if err := a.store.Close(); err != nil {
		a.log.Error("storage close failed", logx.Err(err))
		if firstErr == nil {
			firstErr = err
		}
	}

	a.log.Info("stopped")
	if a.logClose != nil {
		_ = a.logClose()
	}
	return firstErr
}
