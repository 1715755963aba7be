package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/medremind/internal/config"
	"github.com/manav03panchal/medremind/internal/daemon"
	"github.com/manav03panchal/medremind/internal/logging"
	"github.com/manav03panchal/medremind/internal/output"
	"github.com/manav03panchal/medremind/internal/runtime"
)

// Daemon command flags.
var (
	daemonStartFlagForeground bool
	daemonLogsFlagTail        int
	daemonInstallFlagForce    bool
)

// daemonCmd represents the daemon command.
var daemonCmd = &cobra.Command{
	Use:     "daemon [command]",
	Aliases: []string{"d", "service"},
	Short:   "Manage the background daemon",
	Long: `Manage the medremind daemon. The daemon fires due reminders every minute,
streams events to connected sessions and delivers them to webhooks. It also
serves the HTTP API on the configured address.

Examples:
  medremind daemon start
  medremind daemon status
  medremind daemon stop
  medremind daemon reload
  medremind daemon logs --tail 50`,
	Annotations: map[string]string{skipStore: "true"},
	RunE:        runDaemonStatus,
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the background daemon",
	Long: `Start the medremind daemon.

Examples:
  medremind daemon start                # Start in background
  medremind daemon start --foreground   # Run attached to the terminal`,
	Annotations: map[string]string{skipStore: "true"},
	RunE:        runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:         "stop",
	Short:       "Stop the background daemon",
	Annotations: map[string]string{skipStore: "true"},
	RunE:        runDaemonStop,
}

var daemonReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Backfill reminders in the running daemon",
	Long: `Ask the running daemon to reconcile every active medication again.

Use this after editing medications against a shared database while the
daemon was running elsewhere. The daemon receives SIGHUP and keeps running.`,
	Annotations: map[string]string{skipStore: "true"},
	RunE:        runDaemonReload,
}

var daemonStatusCmd = &cobra.Command{
	Use:         "status",
	Short:       "Show daemon status",
	Annotations: map[string]string{skipStore: "true"},
	RunE:        runDaemonStatus,
}

var daemonLogsCmd = &cobra.Command{
	Use:         "logs",
	Short:       "View daemon logs",
	Annotations: map[string]string{skipStore: "true"},
	RunE:        runDaemonLogs,
}

var daemonInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the daemon as a user service",
	Long: `Install the daemon as a service that starts on login.

On macOS this creates a launchd agent in ~/Library/LaunchAgents.
On Linux this creates a systemd user service in ~/.config/systemd/user.`,
	Annotations: map[string]string{skipStore: "true"},
	RunE:        runDaemonInstall,
}

var daemonUninstallCmd = &cobra.Command{
	Use:         "uninstall",
	Short:       "Remove the daemon user service",
	Annotations: map[string]string{skipStore: "true"},
	RunE:        runDaemonUninstall,
}

func init() {
	daemonStartCmd.Flags().BoolVar(&daemonStartFlagForeground, "foreground", false,
		"Run in foreground (don't daemonize)")
	daemonLogsCmd.Flags().IntVarP(&daemonLogsFlagTail, "tail", "n", 20,
		"Number of lines to show")
	daemonInstallCmd.Flags().BoolVar(&daemonInstallFlagForce, "force", false,
		"Reinstall if already installed")

	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonReloadCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonLogsCmd)
	daemonCmd.AddCommand(daemonInstallCmd)
	daemonCmd.AddCommand(daemonUninstallCmd)

	rootCmd.AddCommand(daemonCmd)
}

// printer returns a formatter for commands that run without a store.
func printer(cmd *cobra.Command) *output.Formatter {
	f := output.NewFormatter()
	f.Writer = cmd.OutOrStdout()
	f.Format = parseFormat(flagFormat)
	f.ColorMode = parseColor(flagColor)
	return f
}

func runDaemonStart(cmd *cobra.Command, args []string) error {
	f := printer(cmd)

	if !daemonStartFlagForeground {
		// The parent never opens the store; the child takes its lock.
		d := daemon.NewDaemon(nil)
		d.SetDebug(flagDebug)

		if d.IsRunning() {
			return fmt.Errorf("daemon is already running (PID: %d)", d.GetStatus().PID)
		}

		pid, err := d.StartBackground()
		if err != nil {
			return err
		}

		if f.Format == output.FormatJSON {
			return f.JSON(map[string]any{"status": "started", "pid": pid})
		}
		output.NewCLIFormatter(f).Success(fmt.Sprintf("Daemon started (PID: %d)", pid))
		return nil
	}

	// The foreground daemon logs JSON to stdout, which StartBackground
	// points at the log file.
	lvl := logging.ParseLevel(config.Global.Log.Level)
	if flagDebug {
		lvl = logging.DebugConfig().Level
	}
	logging.Init(logging.Config{Level: lvl, JSON: true, Output: os.Stdout})

	opts := runtime.DefaultOptions()
	store, err := runtime.OpenStore(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer store.Close()

	d := daemon.NewDaemon(store)
	d.SetDebug(flagDebug)
	d.SetVersion(Version)
	return d.Start(context.Background())
}

func runDaemonStop(cmd *cobra.Command, args []string) error {
	f := printer(cmd)
	d := daemon.NewDaemon(nil)

	if !d.IsRunning() {
		if f.Format == output.FormatJSON {
			return f.JSON(map[string]any{"status": "not_running"})
		}
		f.Println("Daemon is not running")
		return nil
	}

	pid := d.GetStatus().PID
	if err := d.Stop(); err != nil {
		return err
	}

	if f.Format == output.FormatJSON {
		return f.JSON(map[string]any{"status": "stopped", "pid": pid})
	}
	output.NewCLIFormatter(f).Success(fmt.Sprintf("Daemon stopped (was PID: %d)", pid))
	return nil
}

func runDaemonReload(cmd *cobra.Command, args []string) error {
	f := printer(cmd)
	pid, err := daemon.NewDaemon(nil).SignalReload()
	if err != nil {
		return err
	}

	if f.Format == output.FormatJSON {
		return f.JSON(map[string]any{"status": "reloading", "pid": pid})
	}
	output.NewCLIFormatter(f).Success(fmt.Sprintf("Reload requested (PID: %d)", pid))
	return nil
}

func runDaemonStatus(cmd *cobra.Command, args []string) error {
	f := printer(cmd)
	status := daemon.NewDaemon(nil).GetStatus()

	if f.Format == output.FormatJSON {
		return f.JSON(status)
	}

	cli := output.NewCLIFormatter(f)
	cli.Title("medremind daemon")
	if !status.Running {
		f.Println("  Status:  stopped")
		cli.Muted("Start with: medremind daemon start")
		return nil
	}

	f.Println("  Status:  running")
	f.Printf("  PID:     %d\n", status.PID)
	f.Printf("  Uptime:  %s\n", status.Uptime)
	if status.Addr != "" {
		f.Printf("  HTTP:    http://%s\n", status.Addr)
	}
	return nil
}

func runDaemonLogs(cmd *cobra.Command, args []string) error {
	logPath := daemon.GetLogPath()

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		cmd.Printf("No log file found at %s\n", logPath)
		return nil
	}
	return daemon.TailLog(cmd.OutOrStdout(), logPath, daemonLogsFlagTail)
}

func runDaemonInstall(cmd *cobra.Command, args []string) error {
	f := printer(cmd)
	mgr, err := daemon.NewServiceManager()
	if err != nil {
		return err
	}

	if mgr.IsInstalled() {
		if !daemonInstallFlagForce {
			f.Println("Service is already installed. Use --force to reinstall.")
			return nil
		}
		if err := mgr.Uninstall(); err != nil {
			return fmt.Errorf("failed to remove existing service: %w", err)
		}
	}

	if err := mgr.Install(); err != nil {
		return err
	}

	if f.Format == output.FormatJSON {
		return f.JSON(map[string]any{"status": "installed"})
	}
	output.NewCLIFormatter(f).Success("Service installed; the daemon starts on login")
	return nil
}

func runDaemonUninstall(cmd *cobra.Command, args []string) error {
	f := printer(cmd)
	mgr, err := daemon.NewServiceManager()
	if err != nil {
		return err
	}

	if !mgr.IsInstalled() {
		f.Println("Service is not installed.")
		return nil
	}

	d := daemon.NewDaemon(nil)
	if d.IsRunning() {
		if err := d.Stop(); err != nil {
			logging.Warn("failed to stop daemon before uninstall", logging.KeyError, err)
		}
	}

	if err := mgr.Uninstall(); err != nil {
		return err
	}

	if f.Format == output.FormatJSON {
		return f.JSON(map[string]any{"status": "uninstalled"})
	}
	output.NewCLIFormatter(f).Success("Service uninstalled")
	return nil
}
