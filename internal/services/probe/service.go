// Package probe checks whether a wake target is already awake.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-ping/ping"
	"github.com/pihub/pihub/internal/models"
	"github.com/reiver/go-telnet"
	"github.com/rs/zerolog"
)

// ErrNotProbeable is returned for targets that configure no host.
var ErrNotProbeable = errors.New("target has no host configured")

const (
	pingCount   = 3
	pingTimeout = 3 * time.Second
	dialTimeout = 5 * time.Second
)

// Service defines the interface for target liveness probes.
type Service interface {
	Check(ctx context.Context, target models.Target) (*models.ProbeResult, error)
}

// Pinger sends ICMP echo requests; wraps go-ping for mocking.
type Pinger interface {
	Ping(ctx context.Context, host string) (bool, error)
}

// PortDialer attempts a TCP connection; wraps the telnet dialer for mocking.
type PortDialer interface {
	Dial(addr string) error
}

// DefaultPinger is the default Pinger using go-ping.
type DefaultPinger struct{}

// Ping sends a few echo requests and reports whether any reply came back.
// Raw ICMP sockets need privileges, which the hub has on its Pi host.
func (p *DefaultPinger) Ping(ctx context.Context, host string) (bool, error) {
	pinger, err := ping.NewPinger(host)
	if err != nil {
		return false, fmt.Errorf("failed to create pinger: %w", err)
	}
	pinger.Count = pingCount
	pinger.Timeout = pingTimeout
	pinger.SetPrivileged(true)

	if err := pinger.Run(); err != nil {
		return false, fmt.Errorf("ping failed: %w", err)
	}

	stats := pinger.Statistics()
	return stats.PacketsRecv > 0, nil
}

// DefaultPortDialer is the default PortDialer using go-telnet.
type DefaultPortDialer struct{}

// Dial opens and immediately abandons a telnet connection to addr.
func (d *DefaultPortDialer) Dial(addr string) error {
	_, err := telnet.DialTo(addr)
	return err
}

// Impl implements the probe Service interface.
type Impl struct {
	pinger Pinger
	dialer PortDialer
	logger zerolog.Logger
}

// New creates a new probe service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		pinger: &DefaultPinger{},
		dialer: &DefaultPortDialer{},
		logger: logger,
	}
}

// NewWithClients creates a new probe service with custom clients (for testing).
func NewWithClients(logger zerolog.Logger, pinger Pinger, dialer PortDialer) *Impl {
	return &Impl{
		pinger: pinger,
		dialer: dialer,
		logger: logger,
	}
}

// Check pings the target's host and, when a probe port is configured, also
// dials it. A target counts as awake when the ping succeeds and the port
// (if any) accepts connections.
func (s *Impl) Check(ctx context.Context, target models.Target) (*models.ProbeResult, error) {
	if target.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotProbeable, target.Name)
	}

	result := &models.ProbeResult{}

	pingOK, err := s.pinger.Ping(ctx, target.Host)
	if err != nil {
		s.logger.Debug().Err(err).Str("host", target.Host).Msg("ping probe failed")
	}
	result.PingOK = pingOK
	result.Awake = pingOK

	if pingOK && target.Port != 0 {
		result.PortOpen = s.dialPort(ctx, net.JoinHostPort(target.Host, strconv.Itoa(target.Port)))
		result.Awake = result.PortOpen
	}

	s.logger.Debug().
		Str("target", target.Name).
		Bool("ping_ok", result.PingOK).
		Bool("awake", result.Awake).
		Msg("probe completed")

	return result, nil
}

// dialPort bounds the dial with its own timer; the telnet dialer itself has
// no timeout and may block on a half-awake host.
func (s *Impl) dialPort(ctx context.Context, addr string) bool {
	done := make(chan error, 1)
	go func() {
		done <- s.dialer.Dial(addr)
	}()

	timer := time.NewTimer(dialTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			s.logger.Debug().Err(err).Str("addr", addr).Msg("port probe failed")
			return false
		}
		return true
	case <-ctx.Done():
		return false
	case <-timer.C:
		s.logger.Debug().Str("addr", addr).Msg("port probe timed out")
		return false
	}
}
