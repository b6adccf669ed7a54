// Package registry holds the immutable name-to-MAC target mapping.
package registry

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/pihub/pihub/internal/models"
	"github.com/rs/zerolog"
)

// ErrUnknownTarget is returned when a name is not present in the registry.
var ErrUnknownTarget = errors.New("unknown target")

// Service defines the interface for target lookups.
type Service interface {
	// Resolve returns the hardware address of a configured target name.
	// Raw MAC strings are not accepted here; the dispatcher handles that
	// form before falling back to a name lookup.
	Resolve(name string) (net.HardwareAddr, error)
	// Get returns the full target entry, including probe and ssh settings.
	Get(name string) (models.Target, error)
	// Names returns all configured target names, sorted.
	Names() []string
}

type entry struct {
	target models.Target
	mac    net.HardwareAddr
}

// Impl implements the registry Service interface. The mapping is built once
// at startup and never mutated afterwards, so lookups need no locking.
type Impl struct {
	entries map[string]entry
	logger  zerolog.Logger
}

// New builds a registry from the loaded configuration. MAC addresses are
// parsed here; a malformed one is a fatal startup error.
func New(logger zerolog.Logger, cfg models.Config) (*Impl, error) {
	entries := make(map[string]entry, len(cfg.Targets))

	for name, target := range cfg.Targets {
		hw, err := net.ParseMAC(target.MAC)
		if err != nil {
			return nil, fmt.Errorf("target %q: invalid MAC address %q: %w", name, target.MAC, err)
		}
		if len(hw) != 6 {
			return nil, fmt.Errorf("target %q: MAC address %q must be 6 octets", name, target.MAC)
		}
		entries[strings.ToLower(name)] = entry{target: target, mac: hw}
	}

	logger.Debug().Int("targets", len(entries)).Msg("target registry loaded")

	return &Impl{entries: entries, logger: logger}, nil
}

// Resolve returns the MAC address for a configured target name.
func (s *Impl) Resolve(name string) (net.HardwareAddr, error) {
	e, ok := s.entries[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, name)
	}
	return e.mac, nil
}

// Get returns the full target entry for a configured name.
func (s *Impl) Get(name string) (models.Target, error) {
	e, ok := s.entries[strings.ToLower(name)]
	if !ok {
		return models.Target{}, fmt.Errorf("%w: %s", ErrUnknownTarget, name)
	}
	return e.target, nil
}

// Names returns all configured target names, sorted.
func (s *Impl) Names() []string {
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
