package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mrerrors "github.com/manav03panchal/medremind/internal/errors"
	"github.com/manav03panchal/medremind/internal/model"
	"github.com/manav03panchal/medremind/internal/scheduler"
	"github.com/manav03panchal/medremind/internal/storage"
)

// =============================================================================
// HealthChecker Tests
// =============================================================================

func TestHealthCheckerCheck(t *testing.T) {
	checker := NewHealthChecker("1.0.0")

	status := checker.Check()
	assert.Equal(t, StatusHealthy, status.Status)
	assert.Equal(t, "1.0.0", status.Version)
	assert.GreaterOrEqual(t, status.Goroutines, 1)
	assert.Zero(t, status.PendingNotifications)
}

func TestHealthCheckerPendingSource(t *testing.T) {
	checker := NewHealthChecker("1.0.0")
	checker.SetPendingSource(func() int { return 5 })

	assert.Equal(t, 5, checker.Check().PendingNotifications)
}

func TestHealthCheckerAddCheck(t *testing.T) {
	checker := NewHealthChecker("1.0.0")
	assert.True(t, checker.IsHealthy())

	failing := true
	checker.AddCheck("test", func() error {
		if failing {
			return errors.New("test error")
		}
		return nil
	})
	assert.False(t, checker.IsHealthy())
	assert.Equal(t, StatusUnhealthy, checker.Check().Status)

	failing = false
	assert.True(t, checker.IsHealthy())
}

func TestHealthCheckerJSON(t *testing.T) {
	checker := NewHealthChecker("1.0.0")

	data, err := checker.JSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status": "healthy"`)
	assert.Contains(t, string(data), "1.0.0")
}

func TestHealthCheckerDetailedCheckSorted(t *testing.T) {
	checker := NewHealthChecker("1.0.0")
	checker.AddCheck("zeta", func() error { return nil })
	checker.AddCheck("alpha", func() error { return errors.New("check failed") })

	details := checker.DetailedCheck()
	require.Len(t, details.Checks, 2)
	assert.Equal(t, "alpha", details.Checks[0].Name)
	assert.False(t, details.Checks[0].Healthy)
	assert.Equal(t, "check failed", details.Checks[0].Error)
	assert.Equal(t, "zeta", details.Checks[1].Name)
	assert.True(t, details.Checks[1].Healthy)
	assert.Equal(t, StatusUnhealthy, details.Status)
}

// =============================================================================
// Metrics Tests
// =============================================================================

func TestMetricsRecordTick(t *testing.T) {
	m := NewMetrics()
	at := time.Date(2024, 3, 10, 9, 0, 0, 0, time.Local)

	m.RecordTick(scheduler.TickResult{At: at, Fired: 2, Failed: 1, Healed: 3, Duration: 40 * time.Millisecond})
	m.RecordTick(scheduler.TickResult{At: at.Add(time.Minute)})

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.TicksTotal)
	assert.Equal(t, int64(2), snap.RemindersFiredTotal)
	assert.Equal(t, int64(1), snap.RemindersFailedTotal)
	assert.Equal(t, int64(3), snap.RemindersHealedTotal)
	require.NotNil(t, snap.LastTickAt)
	assert.Equal(t, at.Add(time.Minute), *snap.LastTickAt)
	require.NotNil(t, snap.LastFiredAt)
	assert.Equal(t, at, *snap.LastFiredAt)
	assert.Zero(t, snap.ErrorsTotal)
}

func TestMetricsTickErrorIsClassified(t *testing.T) {
	m := NewMetrics()

	m.RecordTick(scheduler.TickResult{Err: mrerrors.ErrTimeout})
	m.RecordError(mrerrors.NotFound(mrerrors.ErrMedicationNotFound, "m1"))
	m.RecordError(errors.New("boom"))

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.ErrorsTotal)
	assert.Equal(t, int64(1), snap.ErrorsByCategory["recoverable"])
	assert.Equal(t, int64(1), snap.ErrorsByCategory["user"])
	assert.Equal(t, int64(1), snap.ErrorsByCategory["unknown"])
	assert.Equal(t, "boom", snap.LastError)
	assert.NotNil(t, snap.LastErrorAt)
}

func TestMetricsJSONAndReset(t *testing.T) {
	m := NewMetrics()
	m.RecordTick(scheduler.TickResult{At: time.Now(), Fired: 1})

	data, err := m.JSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), "reminders_fired_total")

	m.Reset()
	assert.Zero(t, m.Ticks())
	assert.Zero(t, m.RemindersFired())
	assert.Zero(t, m.ErrorsTotal())
	assert.Nil(t, m.Snapshot().LastTickAt)
}

// =============================================================================
// Daemon Tests
// =============================================================================

func newTestDaemon(t *testing.T, addr string) *Daemon {
	t.Helper()
	db, err := storage.Open(storage.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	d := NewDaemon(db)
	d.listenAddr = addr
	d.SetVersion("test")
	return d
}

func TestDaemonServicesLifecycle(t *testing.T) {
	d := newTestDaemon(t, "127.0.0.1:0")

	require.NoError(t, d.startServices(context.Background()))
	assert.ErrorIs(t, d.startServices(context.Background()), ErrAlreadyRunning)

	addr := d.Addr()
	require.NotEmpty(t, addr)

	resp, err := http.Get(fmt.Sprintf("http://%s/health", addr))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, StatusHealthy, body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Contains(t, body, "scheduler")
	assert.Contains(t, body, "metrics")
	assert.Contains(t, body, "events")
	assert.Contains(t, body, "webhooks")

	require.Eventually(t, func() bool { return d.Metrics().Ticks() >= 1 },
		2*time.Second, 10*time.Millisecond, "immediate tick on start")

	require.NoError(t, d.shutdown())
	assert.NoError(t, d.shutdown())

	_, err = http.Get(fmt.Sprintf("http://%s/health", addr))
	assert.Error(t, err)
}

func TestDaemonWithoutServer(t *testing.T) {
	d := newTestDaemon(t, "")

	require.NoError(t, d.startServices(context.Background()))
	assert.Empty(t, d.Addr())

	report, healthy := d.healthReport(context.Background())
	assert.True(t, healthy)
	details, ok := report.(*DetailedHealth)
	require.True(t, ok)
	require.Len(t, details.Checks, 1)
	assert.Equal(t, "storage", details.Checks[0].Name)
	require.NotNil(t, details.Scheduler.LastTick, "first tick runs during start")
	assert.Zero(t, details.Scheduler.LastTick.Fired)
	assert.Zero(t, details.Events.Sessions)

	require.NoError(t, d.shutdown())
}

func TestDaemonServerAddrInUse(t *testing.T) {
	first := newTestDaemon(t, "127.0.0.1:0")
	require.NoError(t, first.startServices(context.Background()))
	defer first.shutdown()

	second := newTestDaemon(t, first.Addr())
	err := second.startServices(context.Background())
	assert.ErrorContains(t, err, "failed to start http server")
}

// =============================================================================
// Log file Tests
// =============================================================================

func TestRotateLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")

	assert.NoError(t, RotateLog(path, 10), "missing file is not an error")

	require.NoError(t, os.WriteFile(path, []byte("short"), 0644))
	require.NoError(t, RotateLog(path, 10))
	assert.FileExists(t, path)

	require.NoError(t, os.WriteFile(path, []byte("long enough to rotate"), 0644))
	require.NoError(t, RotateLog(path, 10))
	assert.NoFileExists(t, path)
	data, err := os.ReadFile(path + ".old")
	require.NoError(t, err)
	assert.Equal(t, "long enough to rotate", string(data))
}

func TestOpenLogAndTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "daemon.log")

	f, err := OpenLog(path)
	require.NoError(t, err)
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(f, "line %d\n", i)
	}
	require.NoError(t, f.Close())

	var buf bytes.Buffer
	require.NoError(t, TailLog(&buf, path, 2))
	assert.Equal(t, "line 4\nline 5\n", buf.String())

	assert.Error(t, TailLog(&buf, filepath.Join(t.TempDir(), "missing.log"), 2))
}

func TestLastLogError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	lines := []string{"started", "ERROR cannot open store", "ticking"}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))

	assert.Equal(t, "ERROR cannot open store", lastLogError(path))
	assert.Empty(t, lastLogError(filepath.Join(t.TempDir(), "missing.log")))
}

// =============================================================================
// PID file and helpers
// =============================================================================

func TestPIDFileAcquireRelease(t *testing.T) {
	p := &PIDFile{path: filepath.Join(t.TempDir(), "state", "medremind.pid")}
	assert.Zero(t, p.RunningPID())

	require.NoError(t, p.Acquire())
	assert.Equal(t, os.Getpid(), p.RunningPID())
	require.NoError(t, p.Acquire(), "re-acquiring our own file")

	require.NoError(t, p.Release())
	assert.NoFileExists(t, p.Path())
	assert.NoError(t, p.Release())
}

func TestPIDFileHeldByLiveProcess(t *testing.T) {
	p := &PIDFile{path: filepath.Join(t.TempDir(), "medremind.pid")}
	parent := os.Getppid()
	if !processAlive(parent) {
		t.Skip("parent process cannot be signalled")
	}
	require.NoError(t, os.WriteFile(p.Path(), []byte(strconv.Itoa(parent)), 0o644))

	assert.ErrorIs(t, p.Acquire(), ErrAlreadyRunning)
	require.NoError(t, p.Release(), "another daemon's file is left alone")
	assert.FileExists(t, p.Path())

	removed, err := p.ClearStale()
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestPIDFileReclaimsStaleFile(t *testing.T) {
	p := &PIDFile{path: filepath.Join(t.TempDir(), "medremind.pid")}
	stale := 1 << 30
	require.False(t, processAlive(stale))
	require.NoError(t, os.WriteFile(p.Path(), []byte(strconv.Itoa(stale)), 0o644))

	assert.Zero(t, p.RunningPID())
	_, err := p.Signal(syscall.SIGHUP)
	assert.ErrorIs(t, err, ErrNotRunning)

	removed, err := p.ClearStale()
	require.NoError(t, err)
	assert.True(t, removed)

	require.NoError(t, os.WriteFile(p.Path(), []byte(strconv.Itoa(stale)), 0o644))
	require.NoError(t, p.Acquire())
	assert.Equal(t, os.Getpid(), p.RunningPID())

	require.NoError(t, os.WriteFile(p.Path(), []byte("garbage"), 0o644))
	assert.Zero(t, p.RunningPID())
}

func TestProcessAlive(t *testing.T) {
	assert.True(t, processAlive(os.Getpid()))
	assert.False(t, processAlive(0))
	assert.False(t, processAlive(-1))
}

// =============================================================================
// Signal and reload Tests
// =============================================================================

func TestSignalLoopReloadsOnHangup(t *testing.T) {
	reloads := 0
	loop := newSignalLoop(func(context.Context) { reloads++ })

	loop.signals <- syscall.SIGHUP
	go func() {
		loop.signals <- syscall.SIGHUP
		loop.signals <- syscall.SIGTERM
	}()

	assert.Equal(t, syscall.SIGTERM, loop.wait(context.Background()))
	assert.Equal(t, 2, reloads)
}

func TestSignalLoopEndsWithContext(t *testing.T) {
	loop := newSignalLoop(func(context.Context) { t.Fatal("unexpected reload") })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Nil(t, loop.wait(ctx))
}

func TestDaemonReloadBackfillsReminders(t *testing.T) {
	d := newTestDaemon(t, "")
	ctx := context.Background()

	// Written straight to the store, as a CLI sharing the database would.
	med := model.NewMedication("u1", "Aspirin", "100mg", "twice daily", "")
	require.NoError(t, d.store.Medications().Create(ctx, med))

	before, err := d.store.Reminders().ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, before)

	loop := newSignalLoop(func(ctx context.Context) {
		result, err := d.Reload(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 1, result.Medications)
	})
	go func() {
		loop.signals <- syscall.SIGHUP
		loop.signals <- syscall.SIGINT
	}()
	assert.Equal(t, syscall.SIGINT, loop.wait(ctx))

	after, err := d.store.Reminders().ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, after, 2)

	result, err := d.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Reminders, "reload is idempotent")
}

func TestSignalReloadWithoutDaemon(t *testing.T) {
	d := newTestDaemon(t, "")
	d.pidFile = &PIDFile{path: filepath.Join(t.TempDir(), "medremind.pid")}

	_, err := d.SignalReload()
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.ErrorIs(t, d.Stop(), ErrNotRunning)
	assert.False(t, d.IsRunning())
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "42s", formatUptime(42*time.Second))
	assert.Equal(t, "5m", formatUptime(5*time.Minute))
	assert.Equal(t, "2h", formatUptime(2*time.Hour))
	assert.Equal(t, "2h 30m", formatUptime(150*time.Minute))
	assert.Equal(t, "1d", formatUptime(24*time.Hour))
	assert.Equal(t, "3d 4h", formatUptime(76*time.Hour))
}

func TestRenderServiceDefinitions(t *testing.T) {
	data := serviceData{
		Label:          launchdLabel,
		ExecutablePath: "/usr/local/bin/medremind",
		LogPath:        "/tmp/daemon.log",
		ServerAddr:     "127.0.0.1:5000",
	}

	var plist bytes.Buffer
	require.NoError(t, render(&plist, launchdTemplate, data))
	assert.Contains(t, plist.String(), "<string>com.medremind.daemon</string>")
	assert.Contains(t, plist.String(), "<string>/usr/local/bin/medremind</string>")

	var unit bytes.Buffer
	require.NoError(t, render(&unit, systemdTemplate, data))
	assert.Contains(t, unit.String(), "ExecStart=/usr/local/bin/medremind daemon start --foreground")
	assert.Contains(t, unit.String(), `Environment="MEDREMIND_SERVER_ADDR=127.0.0.1:5000"`)
}
