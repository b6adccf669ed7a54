// Package ssh runs the configured shutdown command on a wake target.
package ssh

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/pihub/pihub/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

const dialTimeout = 15 * time.Second

// Service defines the interface for remote shutdown operations.
type Service interface {
	Shutdown(ctx context.Context, cfg models.SSHConfig) error
}

// Client wraps ssh.Client for mocking.
type Client interface {
	NewSession() (Session, error)
	Close() error
}

// Session wraps ssh.Session for mocking.
type Session interface {
	CombinedOutput(cmd string) ([]byte, error)
	Close() error
}

// ClientFactory creates SSH clients.
type ClientFactory interface {
	NewClient(network, addr string, config *ssh.ClientConfig) (Client, error)
}

// DefaultClientFactory is the default SSH client factory.
type DefaultClientFactory struct{}

// NewClient dials an SSH connection.
func (f *DefaultClientFactory) NewClient(network, addr string, config *ssh.ClientConfig) (Client, error) {
	client, err := ssh.Dial(network, addr, config)
	if err != nil {
		return nil, err
	}
	return &defaultClient{client: client}, nil
}

type defaultClient struct {
	client *ssh.Client
}

func (c *defaultClient) NewSession() (Session, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return nil, err
	}
	return &defaultSession{session: session}, nil
}

func (c *defaultClient) Close() error {
	return c.client.Close()
}

type defaultSession struct {
	session *ssh.Session
}

func (s *defaultSession) CombinedOutput(cmd string) ([]byte, error) {
	return s.session.CombinedOutput(cmd)
}

func (s *defaultSession) Close() error {
	return s.session.Close()
}

// Impl implements the SSH Service interface.
type Impl struct {
	clientFactory ClientFactory
	logger        zerolog.Logger
}

// New creates a new SSH service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		clientFactory: &DefaultClientFactory{},
		logger:        logger,
	}
}

// NewWithClientFactory creates a new SSH service with a custom client factory (for testing).
func NewWithClientFactory(logger zerolog.Logger, factory ClientFactory) *Impl {
	return &Impl{
		clientFactory: factory,
		logger:        logger,
	}
}

func buildConfig(cfg models.SSHConfig) (*ssh.ClientConfig, error) {
	key, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key from %s: %w", cfg.KeyPath, err)
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return &ssh.ClientConfig{
		User: cfg.Username,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // home network, hosts come from the local config
		Timeout:         dialTimeout,
	}, nil
}

// Shutdown connects to the target and runs its configured shutdown command.
// A shutdown often kills the connection before the command finishes, so a
// command error with partial output after a successful start is tolerated.
func (s *Impl) Shutdown(ctx context.Context, cfg models.SSHConfig) error {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	s.logger.Info().
		Str("addr", addr).
		Str("user", cfg.Username).
		Str("command", cfg.Command).
		Msg("initiating remote shutdown")

	sshConfig, err := buildConfig(cfg)
	if err != nil {
		return err
	}

	client, err := s.dial(ctx, addr, sshConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer func() { _ = client.Close() }()

	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer func() { _ = session.Close() }()

	output, err := session.CombinedOutput(cfg.Command)
	if err != nil {
		// The connection dropping mid-command usually means the host is
		// going down, which is what we asked for.
		s.logger.Warn().Err(err).Str("output", string(output)).Msg("shutdown command returned error (host may be going down)")
	}

	return nil
}

// dial runs the blocking SSH dial in a goroutine so ctx can bound it.
func (s *Impl) dial(ctx context.Context, addr string, config *ssh.ClientConfig) (Client, error) {
	type dialResult struct {
		client Client
		err    error
	}

	resultChan := make(chan dialResult, 1)
	go func() {
		client, err := s.clientFactory.NewClient("tcp", addr, config)
		resultChan <- dialResult{client, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		return res.client, res.err
	}
}
