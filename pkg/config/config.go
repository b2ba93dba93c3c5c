// Package config loads shuttlectl's coordinator/worker settings from an
// optional YAML file, layered underneath the CLI's own flag defaults so a
// flag the caller actually passed always wins over the file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Coordinator holds the settings a `coordinator start`/`join` command
// needs, before CLI flags are applied on top.
type Coordinator struct {
	NodeID      string `yaml:"nodeId"`
	BindAddr    string `yaml:"bindAddr"`
	RPCAddr     string `yaml:"rpcAddr"`
	DataDir     string `yaml:"dataDir"`
	DFSRoot     string `yaml:"dfsRoot"`
	MetricsAddr string `yaml:"metricsAddr"`
}

// Worker holds the settings a `worker start` command needs.
type Worker struct {
	WorkerID         string `yaml:"workerId"`
	CoordinatorAddr  string `yaml:"coordinatorAddr"`
	ListenAddr       string `yaml:"listenAddr"`
	AdvertiseAddr    string `yaml:"advertiseAddr"`
	DataDir          string `yaml:"dataDir"`
	ContainerdSocket string `yaml:"containerdSocket"`
	Image            string `yaml:"image"`
}

// Config is the top-level shape of a shuttlectl config file. Either
// section may be partial or absent; zero values fall back to the CLI's
// own flag defaults.
type Config struct {
	Coordinator Coordinator `yaml:"coordinator"`
	Worker      Worker      `yaml:"worker"`
}

// Load reads and parses a YAML config file. A missing path is not an
// error: it returns a zero Config so callers can layer flag defaults on
// top unconditionally.
func Load(path string) (*Config, error) {
	if path == "" {
		return &Config{}, nil
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// OverrideString returns flagVal unless it's empty and fileVal is not,
// giving an explicit flag precedence over a loaded config file's value.
func OverrideString(flagVal, fileVal string) string {
	if flagVal != "" {
		return flagVal
	}
	return fileVal
}
