// Package cec controls the TV power state by shelling out to cec-client.
package cec

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/pihub/pihub/internal/models"
	"github.com/rs/zerolog"
)

// DefaultTimeout bounds a single cec-client invocation.
const DefaultTimeout = 10 * time.Second

// Service defines the interface for TV power control.
type Service interface {
	// Status queries the TV power state. Failures degrade to PowerUnknown;
	// a status query never returns a hard error.
	Status(ctx context.Context) models.PowerState
	// TurnOn powers the TV on. On success the cached state becomes on; on
	// failure the cache is left untouched and an error is returned.
	TurnOn(ctx context.Context) error
	// TurnOff puts the TV into standby, with the same cache semantics.
	TurnOff(ctx context.Context) error
	// CachedState returns the last-known power state without invoking the
	// control utility.
	CachedState() models.PowerState
}

// CommandExecutor allows mocking exec.Command in tests.
type CommandExecutor interface {
	Execute(ctx context.Context, stdin string, name string, args ...string) ([]byte, error)
}

// DefaultExecutor is the default command executor using os/exec.
type DefaultExecutor struct{}

// Execute runs a command with the given stdin and returns its combined
// output. When ctx expires the subprocess is killed.
func (e *DefaultExecutor) Execute(ctx context.Context, stdin string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = strings.NewReader(stdin)
	return cmd.CombinedOutput()
}

// Impl implements the CEC Service interface.
//
// The HDMI-CEC bus is a shared, stateful, half-duplex channel: concurrent
// cec-client processes would garble each other's traffic. A single mutex
// therefore serializes every invocation and guards the cached state.
type Impl struct {
	executor CommandExecutor
	logger   zerolog.Logger
	device   string // CEC logical address of the TV
	timeout  time.Duration

	mu    sync.Mutex
	state models.PowerState
}

// New creates a new CEC service for the TV at the given logical address.
func New(logger zerolog.Logger, device string, timeout time.Duration) *Impl {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Impl{
		executor: &DefaultExecutor{},
		logger:   logger,
		device:   device,
		timeout:  timeout,
		state:    models.PowerUnknown,
	}
}

// NewWithExecutor creates a new CEC service with a custom executor (for testing).
func NewWithExecutor(logger zerolog.Logger, device string, timeout time.Duration, executor CommandExecutor) *Impl {
	svc := New(logger, device, timeout)
	svc.executor = executor
	return svc
}

// invoke runs one cec-client command. The caller must hold s.mu.
//
// The invocation is detached from the caller's cancellation: a client
// disconnect must not kill a cec-client mid-command and leave the bus in a
// half-driven state. Only the timeout bounds the subprocess.
func (s *Impl) invoke(ctx context.Context, command string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	s.logger.Debug().Str("command", command).Msg("invoking cec-client")

	output, err := s.executor.Execute(ctx, command+"\n", "cec-client", "-s", "-d", "1")
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return output, fmt.Errorf("cec-client timed out after %s", s.timeout)
		}
		return output, fmt.Errorf("cec-client failed: %w", err)
	}

	return output, nil
}

// Status queries the TV power state and refreshes the cache on a successful
// parse. TV status is advisory, so failures report PowerUnknown instead of
// an error, and leave the cache untouched.
func (s *Impl) Status(ctx context.Context) models.PowerState {
	s.mu.Lock()
	defer s.mu.Unlock()

	output, err := s.invoke(ctx, "pow "+s.device)
	if err != nil {
		s.logger.Warn().Err(err).Msg("power status query failed")
		return models.PowerUnknown
	}

	state, ok := parsePowerStatus(string(output))
	if !ok {
		s.logger.Warn().Str("output", strings.TrimSpace(string(output))).Msg("could not parse power status")
		return models.PowerUnknown
	}

	s.state = state
	return state
}

// TurnOn powers the TV on via CEC.
func (s *Impl) TurnOn(ctx context.Context) error {
	return s.control(ctx, "on "+s.device, models.PowerOn)
}

// TurnOff puts the TV into standby via CEC.
func (s *Impl) TurnOff(ctx context.Context) error {
	return s.control(ctx, "standby "+s.device, models.PowerStandby)
}

func (s *Impl) control(ctx context.Context, command string, onSuccess models.PowerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	output, err := s.invoke(ctx, command)
	if err != nil {
		s.logger.Error().Err(err).Str("output", strings.TrimSpace(string(output))).Msg("CEC control command failed")
		return err
	}

	// The invocation succeeded; assume the TV obeyed.
	s.state = onSuccess
	s.logger.Info().Str("state", onSuccess.String()).Msg("TV power state set")
	return nil
}

// CachedState returns the last-known power state.
func (s *Impl) CachedState() models.PowerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// parsePowerStatus scans cec-client output for a "power status:" line.
// cec-client reports values like "on", "standby" and
// "in transition from standby to on".
func parsePowerStatus(output string) (models.PowerState, bool) {
	for _, line := range strings.Split(output, "\n") {
		lower := strings.ToLower(line)
		idx := strings.Index(lower, "power status:")
		if idx < 0 {
			continue
		}

		value := lower[idx+len("power status:"):]
		switch {
		case strings.Contains(value, "on"):
			return models.PowerOn, true
		case strings.Contains(value, "standby"):
			return models.PowerStandby, true
		default:
			return models.PowerUnknown, false
		}
	}
	return models.PowerUnknown, false
}
