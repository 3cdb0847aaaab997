package main

import (
	"github.com/spf13/cobra"
	"serpgrab/internal/relay"
	"serpgrab/pkg/logger"
	"serpgrab/pkg/ui"
)

var (
	relayAddr   string
	relayWSAddr string
)

// relayCmd runs the geolocation push relay
var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Relay geolocation results to live WebSocket listeners",
	Long: `Accept geolocation records on POST /geoclip and push each valid record to
every connected WebSocket listener.

Listeners connect to the dedicated WebSocket address, or to /ws on the HTTP
address when --ws-addr is empty. Prometheus metrics are served on /metrics.`,
	Example: `  serpgrab relay
  serpgrab relay --addr :8080 --ws-addr ""`,
	Args: cobra.NoArgs,
	RunE: runRelay,
}

func init() {
	rootCmd.AddCommand(relayCmd)

	relayCmd.Flags().StringVar(&relayAddr, "addr", "", "HTTP listen address")
	relayCmd.Flags().StringVar(&relayWSAddr, "ws-addr", "", "WebSocket listen address (empty shares the HTTP listener)")
}

func runRelay(cmd *cobra.Command, args []string) error {
	flags := make(map[string]interface{})
	if cmd.Flags().Changed("addr") {
		flags["relay-addr"] = relayAddr
	}
	if cmd.Flags().Changed("ws-addr") {
		flags["relay-ws-addr"] = relayWSAddr
	}

	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	ui.PrintInfo("HTTP", cfg.Relay.Addr)
	if cfg.Relay.WSAddr != "" {
		ui.PrintInfo("WebSocket", cfg.Relay.WSAddr)
	} else {
		ui.PrintInfo("WebSocket", cfg.Relay.Addr+"/ws")
	}

	srv := relay.NewServer(cfg.Relay, nil, nil, logger.GetLogger())
	return srv.Run(ctx)
}
