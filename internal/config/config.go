// Package config holds the runtime configuration and the guild structure
// document that drives channel provisioning and repository routing.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/irsiksoftware/ladderbot/internal/logging"
)

// Config represents the main runtime configuration.
type Config struct {
	Version   string          `yaml:"version"`
	Discord   *DiscordConfig  `yaml:"discord"`
	GitHub    *GitHubConfig   `yaml:"github"`
	Claude    *ClaudeConfig   `yaml:"claude"`
	Structure string          `yaml:"structure"` // path to the guild structure JSON document
	Logging   *logging.Config `yaml:"logging"`
}

// DiscordConfig holds Discord connection settings.
type DiscordConfig struct {
	BotToken        string   `yaml:"bot_token"`
	ApplicationID   string   `yaml:"application_id"`
	PrivilegedRoles []string `yaml:"privileged_roles"` // role names allowed to approve and administer
}

// GitHubConfig holds issue tracker settings.
type GitHubConfig struct {
	Token string `yaml:"token"`
	Owner string `yaml:"owner"`
}

// ClaudeConfig holds AI CLI subprocess settings.
type ClaudeConfig struct {
	Command    string `yaml:"command"`
	Transcript string `yaml:"transcript"` // session log file, empty disables transcripts
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0",
		Discord: &DiscordConfig{
			PrivilegedRoles: []string{"Founder", "Administrator"},
		},
		GitHub: &GitHubConfig{},
		Claude: &ClaudeConfig{
			Command: "claude",
		},
		Structure: "config/discord-structure.json",
		Logging:   logging.DefaultConfig(),
	}
}

// Load loads configuration from a file. Environment variables referenced
// in the file are expanded before parsing.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil // Return defaults if no config file
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.Structure = expandPath(config.Structure)

	return config, nil
}

// Save saves configuration to a file.
func Save(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default configuration path.
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".ladderbot", "config.yaml")
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Discord == nil || c.Discord.BotToken == "" {
		return fmt.Errorf("discord bot token is required")
	}
	if c.Discord.ApplicationID == "" {
		return fmt.Errorf("discord application ID is required")
	}
	if c.GitHub == nil || c.GitHub.Owner == "" {
		return fmt.Errorf("github owner is required")
	}
	if c.Claude == nil || c.Claude.Command == "" {
		return fmt.Errorf("claude command is required")
	}
	return nil
}
