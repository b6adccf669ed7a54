// Package wol provides Wake-on-LAN magic packet transmission.
package wol

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"
	gowol "github.com/sabhiram/go-wol/wol"
)

// magicPacketLen is the wire size of a magic packet: 6 sync bytes of 0xFF
// followed by 16 repetitions of the 6-byte MAC.
const magicPacketLen = 102

// Service defines the interface for Wake-on-LAN operations.
type Service interface {
	Send(ctx context.Context, mac net.HardwareAddr) error
}

// Client transmits a prebuilt magic packet; wraps the UDP socket for mocking.
type Client interface {
	Wake(broadcastAddr string, mac net.HardwareAddr) error
}

// DefaultClient sends magic packets over a per-send broadcast UDP socket.
type DefaultClient struct{}

// Wake builds the magic packet for mac and sends it as a single datagram to
// broadcastAddr ("ip:port"). WoL has no response protocol; success means the
// datagram left the socket, not that the device woke.
func (c *DefaultClient) Wake(broadcastAddr string, mac net.HardwareAddr) error {
	payload, err := magicPacket(mac)
	if err != nil {
		return err
	}

	udpAddr, err := net.ResolveUDPAddr("udp", broadcastAddr)
	if err != nil {
		return fmt.Errorf("invalid broadcast address %q: %w", broadcastAddr, err)
	}

	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return fmt.Errorf("failed to open UDP socket: %w", err)
	}
	defer func() { _ = conn.Close() }()

	n, err := conn.Write(payload)
	if err != nil {
		return fmt.Errorf("failed to send magic packet: %w", err)
	}
	if n != magicPacketLen {
		return fmt.Errorf("magic packet sent was %d bytes (expected %d)", n, magicPacketLen)
	}

	return nil
}

// magicPacket marshals the 102-byte magic packet for mac.
func magicPacket(mac net.HardwareAddr) ([]byte, error) {
	mp, err := gowol.New(mac.String())
	if err != nil {
		return nil, fmt.Errorf("failed to build magic packet: %w", err)
	}

	payload, err := mp.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal magic packet: %w", err)
	}

	return payload, nil
}

// Impl implements the WOL Service interface.
type Impl struct {
	client        Client
	broadcastAddr string
	logger        zerolog.Logger
}

// New creates a new WOL service broadcasting to the given IP and port.
func New(logger zerolog.Logger, broadcastIP string, port int) *Impl {
	return &Impl{
		client:        &DefaultClient{},
		broadcastAddr: fmt.Sprintf("%s:%d", broadcastIP, port),
		logger:        logger,
	}
}

// NewWithClient creates a new WOL service with a custom client (for testing).
func NewWithClient(logger zerolog.Logger, client Client, broadcastAddr string) *Impl {
	return &Impl{
		client:        client,
		broadcastAddr: broadcastAddr,
		logger:        logger,
	}
}

// Send transmits one magic packet for mac. All socket and send failures map
// to a single error outcome; there is no partial success for a single
// fire-and-forget datagram.
func (s *Impl) Send(ctx context.Context, mac net.HardwareAddr) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.logger.Info().
		Str("mac", mac.String()).
		Str("broadcast", s.broadcastAddr).
		Msg("sending WOL packet")

	if err := s.client.Wake(s.broadcastAddr, mac); err != nil {
		s.logger.Error().Err(err).Str("mac", mac.String()).Msg("WOL send failed")
		return err
	}

	return nil
}
