package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/thruflo/asciitel/internal/config"
	"github.com/thruflo/asciitel/internal/logging"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	configPath string
	envFile    string
	movieFile  string
	framerate  int
	screenSize string
	frameSize  config.Size
	encoding   string
	verbose    bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "asciitel",
	Short: "Play ASCII art movies to telnet, WebSocket and terminal viewers",
	Long: `asciitel plays text-based ASCII art movies on VT100 terminals.

A movie file is a sequence of frames, each introduced by a line holding
the number of ticks the frame stays on screen. Frames are centered on the
screen with a time bar on the last row.

Settings are taken from defaults, then --config, then ASCIITEL_*
environment variables, then flags given on the command line.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("asciitel version {{.Version}}\n")

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&movieFile, "file", "f", "", "Movie file to play")
	flags.IntVarP(&framerate, "framerate", "r", config.DefaultFramerate, "Ticks per second")
	flags.StringVarP(&screenSize, "size", "s", config.Size{Width: config.DefaultScreenWidth, Height: config.DefaultScreenHeight}.String(),
		"Screen size WIDTHxHEIGHT including the time bar row")
	flags.VarP(&frameSize, "framesize", "S", "Frame size WIDTHxHEIGHT, 0x0 detects it from the movie")
	flags.StringVar(&encoding, "encoding", config.DefaultEncoding, "Output encoding (utf-8 or iso-8859-15)")
	flags.StringVar(&configPath, "config", "", "YAML config file")
	flags.StringVar(&envFile, "env-file", "", "Load ASCIITEL_* variables from a dotenv file")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log debug output")
	flags.BoolVarP(&quiet, "quiet", "q", false, "Only log errors")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// resolveConfig layers defaults, the config file, the environment and
// explicitly set flags, then applies the log level.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}

	if err := config.ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, config.ValidationError{Field: "log.level", Message: err.Error()}
	}
	logging.SetLevel(level)

	return cfg, nil
}

// applyFlags copies flags the user set on the command line into cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("file") {
		cfg.Movie.File = movieFile
	}
	if flags.Changed("framerate") {
		cfg.Movie.Framerate = framerate
	}
	if flags.Changed("size") {
		if strings.EqualFold(strings.TrimSpace(screenSize), config.SizeAuto) {
			cfg.Movie.SizeAuto = true
		} else {
			size, err := config.ParseSize(screenSize)
			if err != nil {
				return fmt.Errorf("invalid --size: %w", err)
			}
			cfg.Movie.Size = size
			cfg.Movie.SizeAuto = false
		}
	}
	if flags.Changed("framesize") {
		cfg.Movie.FrameSize = frameSize
	}
	if flags.Changed("encoding") {
		cfg.Output.Encoding = encoding
	}

	switch {
	case verbose:
		cfg.Log.Level = "debug"
	case quiet:
		cfg.Log.Level = "error"
	}
	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			logging.Debug("received signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}
