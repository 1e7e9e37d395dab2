package model

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const ConfigFileName = "config.yml"

// Config is the tool-level configuration: retry tuning and the endpoints of
// the external collaborators. Credentials never pass through here; provider
// SDKs resolve their own (e.g. the AWS credential chain).
type Config struct {
	Workers int    `yaml:"workers"`
	WorkDir string `yaml:"work_dir"`

	Probe   ProbeConfig   `yaml:"probe"`
	Execute ExecuteConfig `yaml:"execute"`
	Dns     DnsConfig     `yaml:"dns"`
	Host    HostConfig    `yaml:"host"`
	Proxy   ProxyConfig   `yaml:"proxy"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type ProbeConfig struct {
	TimeoutMs int `yaml:"timeout_ms"`
	Retries   int `yaml:"retries"`
	BackoffMs int `yaml:"backoff_ms"`
}

func (c ProbeConfig) Timeout() time.Duration { return time.Duration(c.TimeoutMs) * time.Millisecond }
func (c ProbeConfig) Backoff() time.Duration { return time.Duration(c.BackoffMs) * time.Millisecond }

type ExecuteConfig struct {
	Retries       int `yaml:"retries"`
	BackoffBaseMs int `yaml:"backoff_base_ms"`
	BackoffCapMs  int `yaml:"backoff_cap_ms"`
}

func (c ExecuteConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseMs) * time.Millisecond
}

func (c ExecuteConfig) BackoffCap() time.Duration {
	return time.Duration(c.BackoffCapMs) * time.Millisecond
}

type DnsConfig struct {
	Zone   string `yaml:"zone"`
	ZoneId string `yaml:"zone_id"`
	Region string `yaml:"region"`
}

// HostConfig selects where service units, env files and proxy config live.
// An empty address means the local host; otherwise commands and file ops go
// over SSH/SFTP.
type HostConfig struct {
	Address string `yaml:"address"`
	User    string `yaml:"user"`
	KeyFile string `yaml:"key_file"`
}

func (c HostConfig) Local() bool { return c.Address == "" }

type ProxyConfig struct {
	ConfDir       string `yaml:"conf_dir"`
	ReloadCommand string `yaml:"reload_command"`
}

type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Token    string `yaml:"token"`
	Org      string `yaml:"org"`
	Bucket   string `yaml:"bucket"`
}

func DefaultConfig() *Config {
	return &Config{
		Workers: runtime.GOMAXPROCS(0),
		Probe: ProbeConfig{
			TimeoutMs: 5000,
			Retries:   2,
			BackoffMs: 500,
		},
		Execute: ExecuteConfig{
			Retries:       3,
			BackoffBaseMs: 200,
			BackoffCapMs:  5000,
		},
		Proxy: ProxyConfig{
			ConfDir:       "/etc/nginx/conf.d",
			ReloadCommand: "nginx -s reload",
		},
	}
}

// ConfigDir returns the per-user configuration directory.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "unable to resolve user config dir")
	}
	return filepath.Join(base, "converge"), nil
}

// LoadConfig reads a config file and overlays it on the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read config [%s]", path)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "unable to parse config [%s]", path)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return cfg, nil
}
