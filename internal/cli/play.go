package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/thruflo/asciitel/internal/config"
	"github.com/thruflo/asciitel/internal/logging"
	"github.com/thruflo/asciitel/internal/player"
	"github.com/thruflo/asciitel/internal/session"
	"github.com/thruflo/asciitel/internal/terminal"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play the movie once to standard output",
	Long: `Play the movie once to standard output.

Useful for local viewing and for running under inetd or xinetd, which
connect standard output to the viewer's socket. With --size auto the
screen size is taken from the terminal on standard output.

Example:
  asciitel play -f sw1.txt -s auto
  asciitel play -f sw1.txt --encoding iso-8859-15`,
	Args: cobra.NoArgs,
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	stdoutIsTerminal := terminal.IsTerminal(os.Stdout)
	if cfg.Movie.SizeAuto {
		if err := applyTerminalSize(cfg); err != nil {
			return err
		}
	}

	if err := config.ValidateMovie(cfg); err != nil {
		return err
	}

	// Log lines would land in the middle of the picture.
	if stdoutIsTerminal && !verbose && cfg.Log.Level == config.DefaultLogLevel {
		logging.SetLevel(logging.LevelWarn)
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	settings := session.SettingsFromConfig(cfg)
	if stdoutIsTerminal && terminal.IsTerminal(os.Stdin) {
		console := terminal.NewConsole(os.Stdin, cmd.OutOrStdout())
		if err := console.EnterRaw(); err != nil {
			logging.Warn("keyboard control unavailable", "error", err)
		} else {
			defer console.ExitRaw()
			settings.Quit = watchConsole(ctx, stop)
		}
	}

	res := session.Run(ctx, settings, cmd.OutOrStdout(), logging.Default())

	switch res.Reason {
	case player.ExitReasonCompleted, player.ExitReasonStopped:
		return nil
	case player.ExitReasonCancelled:
		fmt.Fprintln(cmd.ErrOrStderr(), "asciitel: playback interrupted")
		return nil
	}
	if res.Err == nil {
		return errors.New("playback failed: " + res.Reason.String())
	}
	return res.Err
}

// watchConsole turns keypresses into playback control. In raw mode Ctrl+C
// arrives as a key rather than SIGINT, so it cancels like the signal does.
func watchConsole(ctx context.Context, interrupt context.CancelFunc) <-chan struct{} {
	quit := make(chan struct{})
	keys := terminal.WatchKeys(ctx, os.Stdin)
	go func() {
		for key := range keys {
			switch key {
			case terminal.KeyQuit:
				close(quit)
				return
			case terminal.KeyInterrupt:
				interrupt()
				return
			}
		}
	}()
	return quit
}

// applyTerminalSize replaces the screen size with the size of the terminal
// on standard output.
func applyTerminalSize(cfg *config.Config) error {
	width, height, err := terminal.Size(os.Stdout)
	if err != nil {
		return fmt.Errorf("--size auto needs a terminal on stdout: %w", err)
	}
	cfg.Movie.Size = config.Size{Width: width, Height: height}
	cfg.Movie.SizeAuto = false
	return nil
}
