package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultDownloadDir is used when localDownloadDir is not configured
	DefaultDownloadDir = "/tmp/samples"
	// DefaultCollectorCommand is the sample collection script invoked in the
	// target workdir; it reads a newline-delimited hash list and writes the
	// matching samples into the output directory
	DefaultCollectorCommand = "python3 obs_collect_new.py"
)

// Endpoint describes one SSH endpoint (user, host, port, private key)
type Endpoint struct {
	User string `yaml:"user"`
	Host string `yaml:"host"`
	Port int    `yaml:"port,omitempty"`
	Key  string `yaml:"key"`
}

// Addr returns the host:port address of the endpoint
func (e *Endpoint) Addr() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// Target is the analysis host reached through the jumper, plus the remote
// working directory under which hash lists and sample output live
type Target struct {
	Endpoint `yaml:",inline"`
	Workdir  string `yaml:"workdir"`
}

// Config stores the full samplerelay configuration
type Config struct {
	Jumper              Endpoint `yaml:"jumper"`
	Target              Target   `yaml:"target"`
	LocalDownloadDir    string   `yaml:"localDownloadDir,omitempty"`
	RuleHashMappingFile string   `yaml:"ruleHashMappingFile,omitempty"`
	CollectorCommand    string   `yaml:"collectorCommand,omitempty"`
}

// Load reads and validates the configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Jumper.Port == 0 {
		c.Jumper.Port = 22
	}
	if c.Target.Port == 0 {
		c.Target.Port = 22
	}
	if c.LocalDownloadDir == "" {
		c.LocalDownloadDir = DefaultDownloadDir
	}
	if c.CollectorCommand == "" {
		c.CollectorCommand = DefaultCollectorCommand
	}
	c.Jumper.Key = ExpandHome(c.Jumper.Key)
	c.Target.Key = ExpandHome(c.Target.Key)
}

// Validate checks that all required fields are present
func (c *Config) Validate() error {
	for _, f := range []struct {
		name, value string
	}{
		{"jumper.user", c.Jumper.User},
		{"jumper.host", c.Jumper.Host},
		{"jumper.key", c.Jumper.Key},
		{"target.user", c.Target.User},
		{"target.host", c.Target.Host},
		{"target.key", c.Target.Key},
		{"target.workdir", c.Target.Workdir},
	} {
		if f.value == "" {
			return fmt.Errorf("config field %s is required", f.name)
		}
	}
	if !filepath.IsAbs(c.Target.Workdir) {
		return fmt.Errorf("config field target.workdir must be an absolute path, got %q", c.Target.Workdir)
	}
	return nil
}

// ExpandHome expands a leading "~" in path to the user's home directory
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
