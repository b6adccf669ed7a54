// Package config provides configuration file parsing.
package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/pihub/pihub/internal/models"
	"github.com/spf13/viper"
)

// DefaultShutdownCommand is run over SSH when a target configures an ssh
// block without an explicit command.
const DefaultShutdownCommand = "sudo shutdown -h now"

// Parser handles configuration file parsing.
//
// The config file is a JSON object whose top-level keys are target names:
//
//	{
//	  "desktop": {"mac": "AA:BB:CC:DD:EE:FF"},
//	  "nas":     {"mac": "00:11:22:33:44:55", "host": "192.168.1.20", "port": 22,
//	              "ssh": {"username": "admin", "key_path": "/etc/pihub/id_ed25519"}}
//	}
//
// Viper lowercases keys, so target names are case-insensitive.
type Parser struct {
	v *viper.Viper
}

// NewParser creates a new configuration parser.
func NewParser() *Parser {
	v := viper.New()
	v.SetConfigType("json")
	return &Parser{v: v}
}

// LoadFile loads configuration from a file path.
func (p *Parser) LoadFile(path string) (*models.Config, error) {
	p.v.SetConfigFile(path)

	if err := p.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return p.parse()
}

// LoadReader loads configuration from a string (useful for testing).
func (p *Parser) LoadReader(content string) (*models.Config, error) {
	if err := p.v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return p.parse()
}

func (p *Parser) parse() (*models.Config, error) {
	cfg := &models.Config{
		Targets: make(map[string]models.Target),
	}

	for name := range p.v.AllSettings() {
		target, err := p.parseTarget(name)
		if err != nil {
			return nil, err
		}
		cfg.Targets[name] = target
	}

	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("config defines no targets")
	}

	return cfg, nil
}

func (p *Parser) parseTarget(name string) (models.Target, error) {
	target := models.Target{
		Name: name,
		MAC:  p.v.GetString(name + ".mac"),
		Host: p.v.GetString(name + ".host"),
		Port: p.v.GetInt(name + ".port"),
	}

	if target.MAC == "" {
		return target, fmt.Errorf("target %q: mac is required", name)
	}
	hw, err := net.ParseMAC(target.MAC)
	if err != nil {
		return target, fmt.Errorf("target %q: invalid MAC address %q: %w", name, target.MAC, err)
	}
	if len(hw) != 6 {
		return target, fmt.Errorf("target %q: MAC address %q must be 6 octets", name, target.MAC)
	}

	if p.v.IsSet(name + ".ssh") {
		ssh := &models.SSHConfig{
			Host:     p.v.GetString(name + ".ssh.host"),
			Port:     p.v.GetInt(name + ".ssh.port"),
			Username: p.v.GetString(name + ".ssh.username"),
			KeyPath:  p.v.GetString(name + ".ssh.key_path"),
			Command:  p.v.GetString(name + ".ssh.command"),
		}

		// Fall back to the probe host when the ssh block omits one.
		if ssh.Host == "" {
			ssh.Host = target.Host
		}
		if ssh.Host == "" {
			return target, fmt.Errorf("target %q: ssh.host is required when ssh is configured and no host is set", name)
		}
		if ssh.KeyPath == "" {
			return target, fmt.Errorf("target %q: ssh.key_path is required when ssh is configured", name)
		}
		if ssh.Port == 0 {
			ssh.Port = 22
		}
		if ssh.Username == "" {
			ssh.Username = "root"
		}
		if ssh.Command == "" {
			ssh.Command = DefaultShutdownCommand
		}
		target.SSH = ssh
	}

	return target, nil
}

// Validate performs validation on the loaded configuration.
func Validate(cfg *models.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if len(cfg.Targets) == 0 {
		return fmt.Errorf("at least one target is required")
	}

	for name, target := range cfg.Targets {
		if _, err := net.ParseMAC(target.MAC); err != nil {
			return fmt.Errorf("target %q: invalid MAC address: %w", name, err)
		}
	}

	return nil
}
