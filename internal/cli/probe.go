package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/thruflo/asciitel/internal/config"
	"github.com/thruflo/asciitel/internal/session"
)

var probeCmd = &cobra.Command{
	Use:   "probe [movie-file]",
	Short: "Show frame geometry, frame count and duration of a movie",
	Long: `Load a movie without playing it and print what the player would use:
the detected frame size, the margins on the configured screen, the number
of frames and the playback duration at the configured framerate.

Example:
  asciitel probe sw1.txt
  asciitel probe -f sw1.txt -r 15 -s 100x40`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.Movie.File = args[0]
	}
	if cfg.Movie.SizeAuto {
		if err := applyTerminalSize(cfg); err != nil {
			return err
		}
	}
	if err := config.ValidateMovie(cfg); err != nil {
		return err
	}

	info, err := session.Preflight(session.SettingsFromConfig(cfg))
	if err != nil {
		return err
	}

	printProbe(cmd.OutOrStdout(), cfg, info)
	return nil
}

func printProbe(w io.Writer, cfg *config.Config, info session.Info) {
	frameSource := "configured"
	if cfg.Movie.FrameSize.IsZero() {
		frameSource = "detected"
	} else if cfg.Movie.FrameSize.Width == 0 || cfg.Movie.FrameSize.Height == 0 {
		frameSource = "partly detected"
	}

	g := info.Geometry
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "File:\t%s\n", cfg.Movie.File)
	fmt.Fprintf(tw, "Screen:\t%dx%d\n", g.ScreenWidth, g.ScreenHeight)
	fmt.Fprintf(tw, "Frame:\t%dx%d (%s)\n", g.FrameWidth, g.FrameHeight, frameSource)
	fmt.Fprintf(tw, "Margins:\tleft %d, top %d\n", info.LeftMargin, info.TopMargin)
	fmt.Fprintf(tw, "Frames:\t%d\n", info.Frames)
	fmt.Fprintf(tw, "Ticks:\t%d\n", info.Ticks)
	fmt.Fprintf(tw, "Duration:\t%s at %d ticks/s\n", info.Duration, cfg.Movie.Framerate)
	tw.Flush()
}
