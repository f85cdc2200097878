// Command hub runs a single routing server: it accepts Service/Hub/App
// WebSocket connections, forwards frames by address, and optionally
// tunnels App traffic upstream through a bridge.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/streamhub/platform/internal/config"
	"github.com/streamhub/platform/internal/hub"
)

var (
	configPath string
	linkName   string
	linkTo     string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "hub",
	Short: "Run a streaming message-passing hub",
	Example: `  # Run a standalone hub on the config's host:port
  hub --config hub.yaml

  # Run an edge hub that tunnels App traffic upstream
  hub --config hub.yaml --link-name edge-1 --link-to ws://core:8080`,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "hub.yaml", "path to the hub's YAML config file")
	rootCmd.Flags().StringVar(&linkName, "link-name", "", "Hub handshake name used when dialing the upstream bridge (overrides config)")
	rootCmd.Flags().StringVar(&linkTo, "link-to", "", "upstream hub URL to bridge App traffic through (overrides config)")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging (overrides config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("hub: load config: %w", err)
	}
	if linkName != "" {
		cfg.LinkClientName = linkName
	}
	if linkTo != "" {
		cfg.LinkToHost = linkTo
	}
	if debug {
		cfg.Debug = true
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.Debug {
		log.SetLevel(logrus.DebugLevel)
	}

	h := hub.New(hub.Config{Host: cfg.Host, Port: cfg.Port, Extra: cfg.Extra}, log)

	var bridge *hub.Bridge
	if cfg.Bridged() {
		bridge = hub.NewBridge(cfg.LinkClientName, cfg.LinkToHost, log)
		h.AttachBridge(bridge)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if bridge != nil {
		go bridge.Run(ctx)
	}

	log.WithField("addr", cfg.Addr()).Info("hub listening")
	if err := h.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("hub: serve: %w", err)
	}
	log.Info("hub shut down")
	return nil
}
