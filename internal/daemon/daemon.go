package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/adrg/xdg"

	"github.com/manav03panchal/medremind/internal/config"
	"github.com/manav03panchal/medremind/internal/errors"
	"github.com/manav03panchal/medremind/internal/logging"
	"github.com/manav03panchal/medremind/internal/medication"
	"github.com/manav03panchal/medremind/internal/notify"
	"github.com/manav03panchal/medremind/internal/reconcile"
	"github.com/manav03panchal/medremind/internal/scheduler"
	"github.com/manav03panchal/medremind/internal/server"
	"github.com/manav03panchal/medremind/internal/storage"
)

// Daemon runs the reminder scheduler, the event hub, webhook delivery and
// the HTTP server in one process.
type Daemon struct {
	pidFile *PIDFile
	store   storage.Store
	version string
	debug   bool

	// listenAddr is the HTTP listen address. Empty disables the server.
	listenAddr string

	mu        sync.Mutex
	running   bool
	startedAt time.Time
	addr      string
	hub       *notify.Hub
	webhooks  *notify.WebhookDispatcher
	scheduler *scheduler.Scheduler
	server    *server.Server
	health    *HealthChecker
	metrics   *Metrics
}

// Status represents the daemon status.
type Status struct {
	Running   bool      `json:"running"`
	PID       int       `json:"pid,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Uptime    string    `json:"uptime,omitempty"`
	Addr      string    `json:"addr,omitempty"`
}

// NewDaemon creates a daemon over store.
func NewDaemon(store storage.Store) *Daemon {
	return &Daemon{
		pidFile:    NewPIDFile(),
		store:      store,
		listenAddr: config.Global.Server.Addr,
		metrics:    NewMetrics(),
	}
}

// SetDebug enables debug mode.
func (d *Daemon) SetDebug(debug bool) {
	d.debug = debug
}

// SetVersion sets the version reported by the health endpoint.
func (d *Daemon) SetVersion(version string) {
	d.version = version
}

// GetStatus returns the current daemon status.
func (d *Daemon) GetStatus() *Status {
	status := &Status{}

	if pid := d.pidFile.RunningPID(); pid > 0 {
		status.Running = true
		status.PID = pid

		if state, err := d.readState(); err == nil {
			status.StartedAt = state.StartedAt
			status.Uptime = formatUptime(time.Since(state.StartedAt))
			status.Addr = state.Addr
		}
	}

	return status
}

// IsRunning returns true if a daemon process is running.
func (d *Daemon) IsRunning() bool {
	return d.pidFile.RunningPID() > 0
}

// Metrics returns the daemon's dispatch metrics.
func (d *Daemon) Metrics() *Metrics {
	return d.metrics
}

// Addr returns the bound HTTP address, or "" when the server is off.
func (d *Daemon) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addr
}

// Start runs the daemon in the foreground until a shutdown signal arrives
// or ctx ends. SIGHUP re-runs the reminder backfill without restarting.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.pidFile.Acquire(); err != nil {
		return err
	}
	defer func() {
		if err := d.pidFile.Release(); err != nil {
			logging.Warn("failed to release PID file", logging.KeyError, err)
		}
	}()

	if err := d.startServices(ctx); err != nil {
		return err
	}

	if err := d.writeState(&DaemonState{StartedAt: d.startedAt, Addr: d.Addr()}); err != nil {
		logging.Warn("failed to write daemon state", logging.KeyError, err)
	}
	defer d.removeState()

	signals := newSignalLoop(func(ctx context.Context) { d.Reload(ctx) })
	signals.listen()
	defer signals.close()

	if !d.health.IsHealthy() {
		logging.Warn("daemon started with failing health checks")
	}
	logging.Info("daemon started", "pid", os.Getpid(), "addr", d.Addr())

	if sig := signals.wait(ctx); sig != nil {
		logging.Info("received signal", "signal", sig.String())
	}

	return d.shutdown()
}

// Reload re-runs the reminder backfill so medications written while the
// daemon was not watching, e.g. by the CLI against a shared postgres, get
// their reminders without a restart.
func (d *Daemon) Reload(ctx context.Context) (reconcile.BackfillResult, error) {
	return d.backfill(ctx, "reload")
}

// SignalReload asks the running daemon to reload and returns its PID.
func (d *Daemon) SignalReload() (int, error) {
	return d.pidFile.Signal(syscall.SIGHUP)
}

func (d *Daemon) backfill(ctx context.Context, reason string) (reconcile.BackfillResult, error) {
	ctx = logging.NewRequestContext(ctx)
	log := logging.FromContext(ctx).With("reason", reason)

	result, err := reconcile.NewFromStore(d.store).Backfill(ctx)
	if err != nil {
		log.Warn("backfill failed", logging.KeyError, err, "cause", errors.RootCause(err))
		return result, err
	}
	log.Info("backfill complete",
		"medications", result.Medications,
		"reminders", result.Reminders,
		"failed", result.Failed)
	return result, nil
}

// startServices backfills reminders and starts every component. The
// scheduler starts last so its first tick sees the backfilled reminders.
func (d *Daemon) startServices(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return ErrAlreadyRunning
	}

	// The dispatcher heals stale state on its own; a failed backfill only
	// delays reminders of medications created while the daemon was down.
	d.backfill(ctx, "startup")

	d.webhooks = notify.NewWebhookDispatcher(d.store.Webhooks())
	d.webhooks.Start(context.Background())
	d.hub = notify.NewHub(d.webhooks)

	d.health = NewHealthChecker(d.version)
	d.health.SetPendingSource(d.webhooks.Queue().Pending)
	d.health.AddCheck("storage", d.checkStorage)

	// Counters describe this run only.
	d.metrics.Reset()
	opts := scheduler.DefaultOptions()
	opts.OnTick = d.metrics.RecordTick
	dispatcher := scheduler.NewDispatcher(d.store.Medications(), d.store.Reminders(), d.hub)
	d.scheduler = scheduler.New(dispatcher, opts)

	if d.listenAddr != "" {
		d.server = server.New(server.Options{
			Medications: medication.NewService(d.store, d.hub),
			Hub:         d.hub,
			Health:      d.healthReport,
		})
		addr, err := d.server.Start(d.listenAddr)
		if err != nil {
			d.webhooks.Stop()
			return fmt.Errorf("failed to start http server: %w", err)
		}
		d.addr = addr
	}

	if err := d.scheduler.Start(); err != nil {
		d.stopLocked(context.Background())
		return err
	}

	d.startedAt = time.Now()
	d.running = true
	return nil
}

// shutdown stops components in dependency order within ShutdownTimeout.
func (d *Daemon) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), config.Global.Daemon.ShutdownTimeout)
	defer cancel()

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return nil
	}
	d.running = false
	return d.stopLocked(ctx)
}

func (d *Daemon) stopLocked(ctx context.Context) error {
	var firstErr error
	if d.scheduler != nil {
		if err := d.scheduler.Stop(ctx); err != nil {
			firstErr = err
		}
	}
	// Closing the hub first ends event streams, which lets Shutdown return.
	if d.hub != nil {
		d.hub.Close()
	}
	if d.server != nil {
		if err := d.server.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.webhooks != nil {
		d.webhooks.Stop()
	}
	logging.Info("daemon stopped",
		"ticks", d.metrics.Ticks(),
		"reminders_fired", d.metrics.RemindersFired())
	return firstErr
}

func (d *Daemon) checkStorage() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status := d.store.Health(ctx)
	if !status.Healthy {
		return fmt.Errorf("%s: %s", status.Backend, strings.Join(status.Errors, "; "))
	}
	return nil
}

// healthReport is the server's health function.
func (d *Daemon) healthReport(_ context.Context) (any, bool) {
	details := d.health.DetailedCheck()
	details.Metrics = d.metrics.Snapshot()
	details.Scheduler = SchedulerHealth{
		State:    d.scheduler.State().String(),
		Overlaps: d.scheduler.Overlaps(),
	}
	if next := d.scheduler.NextRun(); !next.IsZero() {
		details.Scheduler.NextRun = &next
	}
	if last := d.scheduler.LastResult(); !last.At.IsZero() {
		details.Scheduler.LastTick = &last
	}
	details.Events = d.hub.Stats()
	details.Webhooks = d.webhooks.Queue().Stats()
	return details, details.Status == StatusHealthy
}

// StartBackground re-executes the binary as a detached foreground daemon.
func (d *Daemon) StartBackground() (int, error) {
	if pid := d.pidFile.RunningPID(); pid > 0 {
		return pid, ErrAlreadyRunning
	}

	executable, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("failed to get executable path: %w", err)
	}

	args := []string{"daemon", "start", "--foreground"}
	if d.debug {
		args = append(args, "--debug")
	}

	cmd := exec.Command(executable, args...)
	cmd.Stdin = nil

	logPath := GetLogPath()
	if err := RotateLog(logPath, MaxLogSize); err != nil {
		logging.Warn("log rotation failed", logging.KeyError, err)
	}
	if logFile, err := OpenLog(logPath); err == nil {
		defer logFile.Close()
		cmd.Stdout = logFile
		cmd.Stderr = logFile
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start daemon: %w", err)
	}

	time.Sleep(config.Global.Daemon.StartupWait)

	if !d.IsRunning() {
		if errMsg := lastLogError(logPath); errMsg != "" {
			return 0, fmt.Errorf("daemon failed to start: %s", errMsg)
		}
		return 0, fmt.Errorf("daemon failed to start (check logs: %s)", logPath)
	}

	return cmd.Process.Pid, nil
}

// Stop signals the running daemon and waits for it to exit, killing it
// after KillTimeout.
func (d *Daemon) Stop() error {
	pid, signalErr := d.pidFile.Signal(os.Interrupt)
	if pid == 0 {
		return signalErr
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return errors.Wrap(err, "failed to find daemon process")
	}
	if signalErr != nil {
		if err := process.Kill(); err != nil {
			return errors.Wrap(err, "failed to stop daemon")
		}
	}

	// The daemon is not our child, so poll instead of Wait.
	deadline := time.Now().Add(config.Global.Daemon.KillTimeout)
	for processAlive(pid) && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if processAlive(pid) {
		process.Kill()
	}

	if _, err := d.pidFile.ClearStale(); err != nil {
		logging.Warn("failed to clear PID file", logging.KeyError, err)
	}
	d.removeState()
	return nil
}

// DaemonState holds persistent daemon state.
type DaemonState struct {
	StartedAt time.Time `json:"started_at"`
	Addr      string    `json:"addr,omitempty"`
}

// getStatePath returns the path to the state file.
func getStatePath() string {
	return filepath.Join(xdg.StateHome, AppName, "daemon.json")
}

func (d *Daemon) writeState(state *DaemonState) error {
	path := getStatePath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.Marshal(state)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func (d *Daemon) readState() (*DaemonState, error) {
	data, err := os.ReadFile(getStatePath())
	if err != nil {
		return nil, err
	}

	var state DaemonState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}

	return &state, nil
}

func (d *Daemon) removeState() {
	if err := os.Remove(getStatePath()); err != nil && !os.IsNotExist(err) {
		logging.Warn("failed to remove daemon state file", logging.KeyError, err, "path", getStatePath())
	}
}

// formatUptime formats a duration as uptime.
func formatUptime(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		minutes := int(d.Minutes()) % 60
		if minutes > 0 {
			return fmt.Sprintf("%dh %dm", hours, minutes)
		}
		return fmt.Sprintf("%dh", hours)
	}

	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	if hours > 0 {
		return fmt.Sprintf("%dd %dh", days, hours)
	}
	return fmt.Sprintf("%dd", days)
}
