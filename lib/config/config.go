// Copyright 2026 The Jonesy Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the server.
//
// Configuration is loaded from a single YAML file specified by:
//   - JONESY_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures
// deterministic, auditable configuration with no hidden overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for the server.
type Config struct {
	// Agent configures the coding-agent child process.
	Agent AgentConfig `yaml:"agent"`

	// Tunnel configures public viewer URL discovery.
	Tunnel TunnelConfig `yaml:"tunnel"`

	// Viewer configures the live-stream listener.
	Viewer ViewerConfig `yaml:"viewer"`

	// Sessions configures registry limits and retention.
	Sessions SessionsConfig `yaml:"sessions"`

	// Projects is the immutable name→path lookup table. A spawn
	// request must name one of these projects.
	Projects []Project `yaml:"projects"`

	// Personas is the list of directories searched for persona
	// markdown files.
	Personas []string `yaml:"personas"`

	// Skills is the list of directories searched for skill markdown
	// files.
	Skills []string `yaml:"skills"`
}

// AgentConfig configures the coding-agent child process.
type AgentConfig struct {
	// Binary is the agent executable. Default: "claude" (resolved
	// via PATH).
	Binary string `yaml:"binary"`

	// KillGrace is how long a killed session may keep running after
	// SIGTERM before SIGKILL escalation, as a duration string.
	// Default: "5s".
	KillGrace string `yaml:"kill_grace"`

	// DefaultTimeout bounds a session's runtime when the caller does
	// not pass an explicit timeout, as a duration string. Empty means
	// unbounded.
	DefaultTimeout string `yaml:"default_timeout"`
}

// KillGraceDuration returns the parsed kill grace window. Validate
// guarantees the field parses, so errors are impossible after a
// successful load.
func (c AgentConfig) KillGraceDuration() time.Duration {
	d, err := time.ParseDuration(c.KillGrace)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// DefaultTimeoutDuration returns the parsed default session timeout,
// or zero when unbounded.
func (c AgentConfig) DefaultTimeoutDuration() time.Duration {
	if c.DefaultTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.DefaultTimeout)
	if err != nil {
		return 0
	}
	return d
}

// TunnelConfig configures public viewer URL discovery.
type TunnelConfig struct {
	// DiscoveryURL is the local tunnel agent's API endpoint. Empty
	// selects the stock endpoint (http://127.0.0.1:4040/api/tunnels).
	DiscoveryURL string `yaml:"discovery_url"`
}

// ViewerConfig configures the live-stream listener.
type ViewerConfig struct {
	// ListenAddress is the TCP address the viewer listener binds
	// (the tunnel agent forwards the public URL here).
	// Default: 127.0.0.1:7317.
	ListenAddress string `yaml:"listen_address"`
}

// SessionsConfig configures registry limits and retention.
type SessionsConfig struct {
	// MaxConcurrent bounds sessions with status running. Default: 3.
	MaxConcurrent int `yaml:"max_concurrent"`

	// RetainTerminal is how many completed or errored sessions stay
	// queryable. When exceeded, the oldest terminal session is
	// evicted. Default: 50.
	RetainTerminal int `yaml:"retain_terminal"`

	// LogDirectory is where per-session JSONL logs are written.
	// Empty disables session logging.
	LogDirectory string `yaml:"log_directory"`
}

// Project is a named working directory a session can be spawned in.
// Immutable after configuration load.
type Project struct {
	// Name is the unique key callers use in spawn requests.
	Name string `yaml:"name"`

	// Path is the project's working directory on disk.
	Path string `yaml:"path"`

	// Description is optional human-readable context.
	Description string `yaml:"description,omitempty"`
}

// Default returns the default configuration. These defaults exist so
// every field has a sensible zero-value base — the config file is
// still required for the projects table.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			Binary:    "claude",
			KillGrace: "5s",
		},
		Viewer: ViewerConfig{
			ListenAddress: "127.0.0.1:7317",
		},
		Sessions: SessionsConfig{
			MaxConcurrent:  3,
			RetainTerminal: 50,
		},
	}
}

// Load loads configuration from the JONESY_CONFIG environment
// variable. There are no fallbacks — if JONESY_CONFIG is not set,
// this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("JONESY_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("JONESY_CONFIG environment variable not set; " +
			"set it to the path of your config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. The config
// file is the single source of truth; the only expansion performed is
// ${HOME}-style path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}

	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in all
// path-valued fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Sessions.LogDirectory = expandVars(c.Sessions.LogDirectory, vars)
	for i := range c.Projects {
		c.Projects[i].Path = expandVars(c.Projects[i].Path, vars)
	}
	for i := range c.Personas {
		c.Personas[i] = expandVars(c.Personas[i], vars)
	}
	for i := range c.Skills {
		c.Skills[i] = expandVars(c.Skills[i], vars)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Agent.Binary == "" {
		errs = append(errs, fmt.Errorf("agent.binary is required"))
	}
	if d, err := time.ParseDuration(c.Agent.KillGrace); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("agent.kill_grace %q must be a positive duration", c.Agent.KillGrace))
	}
	if c.Agent.DefaultTimeout != "" {
		if _, err := time.ParseDuration(c.Agent.DefaultTimeout); err != nil {
			errs = append(errs, fmt.Errorf("agent.default_timeout %q: %w", c.Agent.DefaultTimeout, err))
		}
	}
	if c.Sessions.MaxConcurrent < 1 {
		errs = append(errs, fmt.Errorf("sessions.max_concurrent must be at least 1"))
	}
	if c.Sessions.RetainTerminal < 0 {
		errs = append(errs, fmt.Errorf("sessions.retain_terminal must not be negative"))
	}
	if len(c.Projects) == 0 {
		errs = append(errs, fmt.Errorf("at least one project is required"))
	}

	seen := make(map[string]bool, len(c.Projects))
	for _, project := range c.Projects {
		if project.Name == "" {
			errs = append(errs, fmt.Errorf("project with empty name"))
			continue
		}
		if seen[project.Name] {
			errs = append(errs, fmt.Errorf("duplicate project name %q", project.Name))
		}
		seen[project.Name] = true
		if project.Path == "" {
			errs = append(errs, fmt.Errorf("project %q has no path", project.Name))
		} else if !filepath.IsAbs(project.Path) {
			errs = append(errs, fmt.Errorf("project %q path %q is not absolute", project.Name, project.Path))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ProjectIndex returns the projects table as a name-keyed map.
func (c *Config) ProjectIndex() map[string]Project {
	index := make(map[string]Project, len(c.Projects))
	for _, project := range c.Projects {
		index[project.Name] = project
	}
	return index
}
