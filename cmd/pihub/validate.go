package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pihub/pihub/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the target config file",
	Long:  `Validate the target config file without starting any listeners.`,
	RunE:  validateConfig,
}

func validateConfig(cmd *cobra.Command, args []string) error {
	// Check if file exists
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		log.Error().Str("file", configFile).Msg("config file not found")
		return fmt.Errorf("config file not found: %s", configFile)
	}

	// Load configuration
	parser := config.NewParser()
	cfg, err := parser.LoadFile(configFile)
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("failed to parse config")
		return err
	}

	if err := config.Validate(cfg); err != nil {
		log.Error().Err(err).Msg("configuration validation failed")
		return err
	}

	// Print configuration summary
	fmt.Println("Configuration is valid!")
	fmt.Println()
	fmt.Printf("Targets: %d\n", len(cfg.Targets))

	names := make([]string, 0, len(cfg.Targets))
	for name := range cfg.Targets {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		target := cfg.Targets[name]
		fmt.Println()
		fmt.Printf("  %s\n", name)
		fmt.Printf("    MAC: %s\n", target.MAC)
		if target.Host != "" {
			fmt.Printf("    Host: %s\n", target.Host)
		}
		if target.Port != 0 {
			fmt.Printf("    Probe port: %d\n", target.Port)
		}
		if target.SSH != nil {
			fmt.Printf("    SSH shutdown: %s@%s:%d\n", target.SSH.Username, target.SSH.Host, target.SSH.Port)
			fmt.Printf("    Shutdown command: %s\n", target.SSH.Command)
		}
	}

	return nil
}
