package daemon

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"text/template"

	"github.com/adrg/xdg"

	"github.com/manav03panchal/medremind/internal/config"
	"github.com/manav03panchal/medremind/internal/logging"
)

const (
	launchdLabel    = "com.medremind.daemon"
	systemdUnitName = "medremind.service"
)

// ServiceManager installs the daemon as a per-user system service.
type ServiceManager struct {
	executablePath string
}

// NewServiceManager creates a service manager for the running executable.
func NewServiceManager() (*ServiceManager, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}
	return &ServiceManager{executablePath: execPath}, nil
}

// Install installs and starts the daemon as a system service.
func (m *ServiceManager) Install() error {
	switch runtime.GOOS {
	case "darwin":
		return m.installLaunchd()
	case "linux":
		return m.installSystemd()
	default:
		return fmt.Errorf("service installation not supported on %s", runtime.GOOS)
	}
}

// Uninstall stops the service and removes its definition.
func (m *ServiceManager) Uninstall() error {
	switch runtime.GOOS {
	case "darwin":
		return m.uninstallLaunchd()
	case "linux":
		return m.uninstallSystemd()
	default:
		return fmt.Errorf("service uninstallation not supported on %s", runtime.GOOS)
	}
}

// IsInstalled checks if the service definition exists.
func (m *ServiceManager) IsInstalled() bool {
	path := m.definitionPath()
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func (m *ServiceManager) definitionPath() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(os.Getenv("HOME"), "Library", "LaunchAgents", launchdLabel+".plist")
	case "linux":
		return filepath.Join(xdg.ConfigHome, "systemd", "user", systemdUnitName)
	default:
		return ""
	}
}

// serviceData is the template input for both service definitions.
type serviceData struct {
	Label          string
	ExecutablePath string
	LogPath        string
	WorkDir        string
	HomeDirectory  string
	DataHome       string
	StateHome      string
	ServerAddr     string
}

func (m *ServiceManager) data() serviceData {
	return serviceData{
		Label:          launchdLabel,
		ExecutablePath: m.executablePath,
		LogPath:        GetLogPath(),
		WorkDir:        filepath.Dir(m.executablePath),
		HomeDirectory:  os.Getenv("HOME"),
		DataHome:       xdg.DataHome,
		StateHome:      xdg.StateHome,
		ServerAddr:     config.Global.Server.Addr,
	}
}

const launchdPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
        <string>daemon</string>
        <string>start</string>
        <string>--foreground</string>
    </array>
    <key>EnvironmentVariables</key>
    <dict>
        <key>MEDREMIND_SERVER_ADDR</key>
        <string>{{.ServerAddr}}</string>
    </dict>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
    <key>StandardOutPath</key>
    <string>{{.LogPath}}</string>
    <key>StandardErrorPath</key>
    <string>{{.LogPath}}</string>
    <key>WorkingDirectory</key>
    <string>{{.WorkDir}}</string>
</dict>
</plist>
`

const systemdUnit = `[Unit]
Description=medremind reminder daemon
After=network.target

[Service]
Type=simple
ExecStart={{.ExecutablePath}} daemon start --foreground
Restart=on-failure
RestartSec=5
StandardOutput=append:{{.LogPath}}
StandardError=append:{{.LogPath}}
Environment="HOME={{.HomeDirectory}}"
Environment="XDG_DATA_HOME={{.DataHome}}"
Environment="XDG_STATE_HOME={{.StateHome}}"
Environment="MEDREMIND_SERVER_ADDR={{.ServerAddr}}"

[Install]
WantedBy=default.target
`

var (
	launchdTemplate = template.Must(template.New("plist").Parse(launchdPlist))
	systemdTemplate = template.Must(template.New("unit").Parse(systemdUnit))
)

func writeDefinition(path string, tmpl *template.Template, data serviceData) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create service directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create service file: %w", err)
	}
	defer file.Close()
	return render(file, tmpl, data)
}

func render(w io.Writer, tmpl *template.Template, data serviceData) error {
	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", tmpl.Name(), err)
	}
	return nil
}

func run(name string, args ...string) error {
	if out, err := exec.Command(name, args...).CombinedOutput(); err != nil {
		return fmt.Errorf("%s %v: %w: %s", name, args, err, out)
	}
	return nil
}

func (m *ServiceManager) installLaunchd() error {
	path := m.definitionPath()
	if err := writeDefinition(path, launchdTemplate, m.data()); err != nil {
		return err
	}
	if err := run("launchctl", "load", path); err != nil {
		return err
	}
	logging.Info("installed launchd service", "path", path)
	return nil
}

func (m *ServiceManager) uninstallLaunchd() error {
	path := m.definitionPath()
	_ = run("launchctl", "unload", path) // not loaded is fine
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove plist file: %w", err)
	}
	logging.Info("uninstalled launchd service", "path", path)
	return nil
}

func (m *ServiceManager) installSystemd() error {
	path := m.definitionPath()
	if err := writeDefinition(path, systemdTemplate, m.data()); err != nil {
		return err
	}
	for _, args := range [][]string{
		{"--user", "daemon-reload"},
		{"--user", "enable", systemdUnitName},
		{"--user", "start", systemdUnitName},
	} {
		if err := run("systemctl", args...); err != nil {
			return err
		}
	}
	logging.Info("installed systemd user service", "path", path)
	return nil
}

func (m *ServiceManager) uninstallSystemd() error {
	path := m.definitionPath()
	_ = run("systemctl", "--user", "stop", systemdUnitName)
	_ = run("systemctl", "--user", "disable", systemdUnitName)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove unit file: %w", err)
	}
	_ = run("systemctl", "--user", "daemon-reload")
	logging.Info("uninstalled systemd user service", "path", path)
	return nil
}
