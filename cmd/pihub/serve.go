package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pihub/pihub/internal/api"
	"github.com/pihub/pihub/internal/config"
	"github.com/pihub/pihub/internal/models"
	"github.com/pihub/pihub/internal/services/cec"
	"github.com/pihub/pihub/internal/services/history"
	"github.com/pihub/pihub/internal/services/probe"
	"github.com/pihub/pihub/internal/services/registry"
	"github.com/pihub/pihub/internal/services/ssh"
	"github.com/pihub/pihub/internal/services/wol"
)

var (
	tunnelAddr     string
	lanAddr        string
	identityHeader string
	broadcastIP    string
	wolPort        int
	cecDevice      string
	cecTimeout     time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control hub",
	Long: `Run the control hub with both HTTP listeners:
  - tunnel listener (loopback): POST /wol, GET /wol/last-wake/{name},
    GET /wol/status/{name}, POST /wol/shutdown
  - LAN listener: GET /tv/status, POST /tv/on, POST /tv/off

Set ` + api.EnvHTTPLog + ` to enable per-request HTTP logging.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&tunnelAddr, "tunnel-addr", "127.0.0.1:8080", "bind address of the tunnel-facing listener")
	serveCmd.Flags().StringVar(&lanAddr, "lan-addr", "0.0.0.0:8081", "bind address of the LAN-facing listener")
	serveCmd.Flags().StringVar(&identityHeader, "identity-header", api.DefaultIdentityHeader, "trusted-identity header injected by the tunnel")
	serveCmd.Flags().StringVar(&broadcastIP, "broadcast", "255.255.255.255", "broadcast IP for magic packets")
	serveCmd.Flags().IntVar(&wolPort, "wol-port", 9, "UDP port for magic packets")
	serveCmd.Flags().StringVar(&cecDevice, "cec-device", "0", "CEC logical address of the TV")
	serveCmd.Flags().DurationVar(&cecTimeout, "cec-timeout", cec.DefaultTimeout, "timeout for a single cec-client invocation")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration
	parser := config.NewParser()
	cfg, err := parser.LoadFile(configFile)
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("failed to load config")
		return err
	}

	if err := config.Validate(cfg); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return err
	}

	reg, err := registry.New(log.Logger, *cfg)
	if err != nil {
		log.Error().Err(err).Msg("failed to build target registry")
		return err
	}

	log.Info().
		Str("config", configFile).
		Int("targets", len(cfg.Targets)).
		Str("tunnel_addr", tunnelAddr).
		Str("lan_addr", lanAddr).
		Msg("configuration loaded")

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("received signal, shutting down")
		cancel()
	}()

	server := api.NewServer(api.Options{
		Listeners: models.ListenerConfig{
			TunnelAddr: tunnelAddr,
			LANAddr:    lanAddr,
		},
		IdentityHeader: identityHeader,
		Registry:       reg,
		WOL:            wol.New(log.Logger, broadcastIP, wolPort),
		History:        history.New(log.Logger),
		CEC:            cec.New(log.Logger, cecDevice, cecTimeout),
		Probe:          probe.New(log.Logger),
		SSH:            ssh.New(log.Logger),
		Logger:         log.Logger,
	})

	if err := server.Run(ctx); err != nil {
		log.Error().Err(err).Msg("server failed")
		return err
	}

	log.Info().Msg("shutdown complete")
	return nil
}
