package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/thruflo/asciitel/internal/logging"
	"github.com/thruflo/asciitel/internal/terminal"
	"gopkg.in/yaml.v3"
)

// Default values for Config.
const (
	DefaultFramerate    = 24
	DefaultScreenWidth  = 80
	DefaultScreenHeight = 24
	DefaultInterface    = "0.0.0.0"
	DefaultPort         = 23
	DefaultRateLimit    = 30
	DefaultEncoding     = terminal.DefaultEncoding
	DefaultLogLevel     = "info"

	// MinScreenWidth fits the time bar decorators and marker.
	MinScreenWidth = 3
	// MinScreenHeight fits one frame row above the time bar.
	MinScreenHeight = 2
)

// EnvPrefix prefixes every environment variable asciitel reads.
const EnvPrefix = "ASCIITEL_"

// Environment variable names.
const (
	EnvFile          = EnvPrefix + "FILE"
	EnvFramerate     = EnvPrefix + "FRAMERATE"
	EnvSize          = EnvPrefix + "SIZE"
	EnvFrameSize     = EnvPrefix + "FRAMESIZE"
	EnvInterface     = EnvPrefix + "INTERFACE"
	EnvPort          = EnvPrefix + "PORT"
	EnvWebSocketAddr = EnvPrefix + "WS_ADDR"
	EnvRateLimit     = EnvPrefix + "RATE_LIMIT"
	EnvEncoding      = EnvPrefix + "ENCODING"
	EnvLogLevel      = EnvPrefix + "LOG_LEVEL"
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Movie: MovieConfig{
			Framerate: DefaultFramerate,
			Size:      Size{Width: DefaultScreenWidth, Height: DefaultScreenHeight},
		},
		Server: ServerConfig{
			Interface: DefaultInterface,
			Port:      DefaultPort,
			RateLimit: DefaultRateLimit,
		},
		Output: OutputConfig{Encoding: DefaultEncoding},
		Log:    LogConfig{Level: DefaultLogLevel},
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// IsValidationError checks if an error is a ValidationError.
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// LoadFile reads a YAML config file on top of the defaults. An empty path
// returns the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs from a dotenv file into the process
// environment. Variables already set in the environment win.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg with ASCIITEL_* variables found through lookup,
// usually os.LookupEnv.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", key, v)
		}
		*dst = n
		return nil
	}
	size := func(key string, dst *Size, auto *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		if auto != nil && strings.EqualFold(strings.TrimSpace(v), SizeAuto) {
			*auto = true
			return nil
		}
		parsed, err := ParseSize(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = parsed
		return nil
	}

	str(EnvFile, &cfg.Movie.File)
	str(EnvInterface, &cfg.Server.Interface)
	str(EnvWebSocketAddr, &cfg.Server.WebSocketAddr)
	str(EnvEncoding, &cfg.Output.Encoding)
	str(EnvLogLevel, &cfg.Log.Level)

	for _, apply := range []func() error{
		func() error { return num(EnvFramerate, &cfg.Movie.Framerate) },
		func() error { return num(EnvPort, &cfg.Server.Port) },
		func() error { return num(EnvRateLimit, &cfg.Server.RateLimit) },
		func() error { return size(EnvSize, &cfg.Movie.Size, &cfg.Movie.SizeAuto) },
		func() error { return size(EnvFrameSize, &cfg.Movie.FrameSize, nil) },
	} {
		if err := apply(); err != nil {
			return err
		}
	}
	return nil
}

// ValidateMovie checks the settings shared by every playback mode.
func ValidateMovie(cfg *Config) error {
	m := cfg.Movie
	if m.File == "" {
		return ValidationError{Field: "movie.file", Message: "required field is empty"}
	}
	info, err := os.Stat(m.File)
	if err != nil {
		return ValidationError{Field: "movie.file", Message: fmt.Sprintf("file not found: %s", m.File)}
	}
	if info.IsDir() {
		return ValidationError{Field: "movie.file", Message: fmt.Sprintf("is a directory: %s", m.File)}
	}
	if m.Framerate <= 0 {
		return ValidationError{Field: "movie.framerate", Message: "must be positive"}
	}
	if !m.SizeAuto {
		if m.Size.Width < MinScreenWidth || m.Size.Height < MinScreenHeight {
			return ValidationError{
				Field:   "movie.size",
				Message: fmt.Sprintf("must be at least %dx%d", MinScreenWidth, MinScreenHeight),
			}
		}
		if err := ValidateFrameSize(m.Size, m.FrameSize); err != nil {
			return err
		}
	}
	if _, err := terminal.NormalizeEncoding(cfg.Output.Encoding); err != nil {
		return ValidationError{Field: "output.encoding", Message: err.Error()}
	}
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return ValidationError{Field: "log.level", Message: err.Error()}
	}
	return nil
}

// ValidateFrameSize checks that a frame leaves room for the time bar.
// Zero frame dimensions are detected later and pass.
func ValidateFrameSize(screen, frame Size) error {
	if frame.Width > screen.Width {
		return ValidationError{
			Field:   "movie.framesize",
			Message: fmt.Sprintf("frame width %d exceeds screen width %d", frame.Width, screen.Width),
		}
	}
	if frame.Height > screen.Height-1 {
		return ValidationError{
			Field:   "movie.framesize",
			Message: fmt.Sprintf("frame height %d exceeds screen height %d minus the time bar", frame.Height, screen.Height),
		}
	}
	return nil
}

// ValidateServer checks the listener settings.
func ValidateServer(cfg *Config) error {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return ValidationError{Field: "server.port", Message: "must be between 0 and 65535"}
	}
	if cfg.Server.RateLimit < 0 {
		return ValidationError{Field: "server.rate_limit", Message: "must not be negative"}
	}
	if cfg.Movie.SizeAuto {
		return ValidationError{Field: "movie.size", Message: "auto is only supported when playing to stdout"}
	}
	return nil
}
