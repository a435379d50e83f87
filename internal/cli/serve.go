package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/thruflo/asciitel/internal/config"
	"github.com/thruflo/asciitel/internal/logging"
	"github.com/thruflo/asciitel/internal/server"
	"github.com/thruflo/asciitel/internal/session"
)

var (
	serveInterface string
	servePort      int
	serveWSAddr    string
	serveRateLimit int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the movie to telnet viewers",
	Long: `Listen for telnet connections and play the movie to every viewer.

Each viewer gets its own playback from the first frame. With --ws-addr the
movie is also served to browsers over WebSocket, with a viewer page at /.

Example:
  asciitel serve -f sw1.txt -r 15
  asciitel serve -f sw1.txt -p 2323 --ws-addr :8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveInterface, "interface", "i", config.DefaultInterface, "Bind to this interface")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", config.DefaultPort, "Bind to this port")
	serveCmd.Flags().StringVar(&serveWSAddr, "ws-addr", "", "Also serve WebSocket viewers on this address")
	serveCmd.Flags().IntVar(&serveRateLimit, "rate-limit", config.DefaultRateLimit, "Connections per minute per IP, 0 disables")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	applyServeFlags(cmd, cfg)

	if err := config.ValidateMovie(cfg); err != nil {
		return err
	}
	if err := config.ValidateServer(cfg); err != nil {
		return err
	}

	info, err := session.Preflight(session.SettingsFromConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to load movie: %w", err)
	}
	logging.Info("movie loaded",
		"file", cfg.Movie.File,
		"frames", info.Frames,
		"frame_size", fmt.Sprintf("%dx%d", info.Geometry.FrameWidth, info.Geometry.FrameHeight),
		"duration", info.Duration,
	)

	srv, err := server.NewFromConfig(cfg, logging.Default())
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	return srv.Start(ctx)
}

func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("interface") {
		cfg.Server.Interface = serveInterface
	}
	if flags.Changed("port") {
		cfg.Server.Port = servePort
	}
	if flags.Changed("ws-addr") {
		cfg.Server.WebSocketAddr = serveWSAddr
	}
	if flags.Changed("rate-limit") {
		cfg.Server.RateLimit = serveRateLimit
	}
}
