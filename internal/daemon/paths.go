package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/awidmer/marquee/internal/config"
)

// DaemonInfo holds connection details for a running daemon. It is written
// to daemon.json so CLI commands can find the daemon regardless of which
// directory they run from.
type DaemonInfo struct {
	SocketPath string    `json:"socket_path"`
	PIDPath    string    `json:"pid_path"`
	LogPath    string    `json:"log_path"`
	EventsPath string    `json:"events_path,omitempty"`
	StatusPath string    `json:"status_path,omitempty"`
	PanelURL   string    `json:"panel_url,omitempty"`
	StartTime  time.Time `json:"start_time"`
	PID        int       `json:"pid"`
}

// daemonInfoFile is the file name for daemon connection info.
const daemonInfoFile = "daemon.json"

// projectMarkers are directories that indicate a deployment root.
var projectMarkers = []string{".marquee", ".git"}

// ResolvePaths converts relative paths to absolute ones against basePath.
// If basePath is empty the current working directory is used.
func ResolvePaths(paths config.PathsConfig, basePath string) (config.PathsConfig, error) {
	if basePath == "" {
		var err error
		basePath, err = os.Getwd()
		if err != nil {
			return paths, fmt.Errorf("get working directory: %w", err)
		}
	}

	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(basePath, p)
	}

	return config.PathsConfig{
		Log:    resolve(paths.Log),
		Events: resolve(paths.Events),
		Status: resolve(paths.Status),
		Socket: resolve(paths.Socket),
		PID:    resolve(paths.PID),
	}, nil
}

// FindProjectRoot walks up from startDir looking for a deployment marker
// (.marquee or .git). It returns the directory containing the marker, or
// startDir if none is found.
func FindProjectRoot(startDir string) string {
	if startDir == "" {
		var err error
		startDir, err = os.Getwd()
		if err != nil {
			return "."
		}
	}

	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return startDir
	}

	dir := absDir
	for {
		for _, marker := range projectMarkers {
			markerPath := filepath.Join(dir, marker)
			if info, err := os.Stat(markerPath); err == nil && info.IsDir() {
				return dir
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return absDir
		}
		dir = parent
	}
}

// FindDaemonInfo locates daemon.json for the deployment containing startDir.
func FindDaemonInfo(startDir string) (*DaemonInfo, error) {
	projectRoot := FindProjectRoot(startDir)

	infoPath := filepath.Join(projectRoot, config.ProjectConfigDir, daemonInfoFile)
	info, err := ReadDaemonInfo(infoPath)
	if err == nil {
		return info, nil
	}

	return nil, fmt.Errorf("daemon info not found (checked %s)", infoPath)
}

// WriteDaemonInfo writes daemon connection info to the given path.
func WriteDaemonInfo(path string, info *DaemonInfo) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal daemon info: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write daemon info: %w", err)
	}

	return nil
}

// ReadDaemonInfo reads daemon connection info from the given path.
func ReadDaemonInfo(path string) (*DaemonInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read daemon info: %w", err)
	}

	var info DaemonInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("unmarshal daemon info: %w", err)
	}

	return &info, nil
}

// RemoveDaemonInfo removes the daemon.json file.
func RemoveDaemonInfo(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove daemon info: %w", err)
	}
	return nil
}

// DaemonInfoPath returns the daemon.json path inside the deployment's
// .marquee directory.
func DaemonInfoPath(projectRoot string) string {
	return filepath.Join(projectRoot, config.ProjectConfigDir, daemonInfoFile)
}
