package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Size is a WIDTHxHEIGHT pair such as "80x24". The zero Size ("0x0")
// means "detect automatically" where that is supported.
type Size struct {
	Width  int
	Height int
}

var _ pflag.Value = (*Size)(nil)

// SizeAuto is the literal accepted for sizes taken from the local terminal.
const SizeAuto = "auto"

// ParseSize parses "WIDTHxHEIGHT". An empty string yields the zero Size.
func ParseSize(s string) (Size, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return Size{}, nil
	}
	w, h, ok := strings.Cut(s, "x")
	if !ok {
		return Size{}, fmt.Errorf("invalid size %q: want WIDTHxHEIGHT", s)
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil {
		return Size{}, fmt.Errorf("invalid size %q: width must be an integer", s)
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil {
		return Size{}, fmt.Errorf("invalid size %q: height must be an integer", s)
	}
	if width < 0 || height < 0 {
		return Size{}, fmt.Errorf("invalid size %q: must not be negative", s)
	}
	return Size{Width: width, Height: height}, nil
}

// String formats the size as WIDTHxHEIGHT.
func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// IsZero reports whether both dimensions are zero.
func (s Size) IsZero() bool {
	return s.Width == 0 && s.Height == 0
}

// Set implements pflag.Value.
func (s *Size) Set(v string) error {
	parsed, err := ParseSize(v)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Type implements pflag.Value.
func (s *Size) Type() string {
	return "WIDTHxHEIGHT"
}

// UnmarshalYAML accepts "80x24" scalars.
func (s *Size) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	return s.Set(raw)
}

// MarshalYAML writes the size as "80x24".
func (s Size) MarshalYAML() (any, error) {
	return s.String(), nil
}

// MovieConfig describes what to play and how it is laid out.
type MovieConfig struct {
	File      string `yaml:"file"`
	Framerate int    `yaml:"framerate"`
	Size      Size   `yaml:"size"`
	FrameSize Size   `yaml:"framesize"`
	// SizeAuto takes the screen size from the local terminal (play only).
	SizeAuto bool `yaml:"-"`
}

// ServerConfig describes the network listeners.
type ServerConfig struct {
	Interface     string `yaml:"interface"`
	Port          int    `yaml:"port"`
	WebSocketAddr string `yaml:"websocket_addr"`
	RateLimit     int    `yaml:"rate_limit"`
}

// OutputConfig describes how screens are encoded on the wire.
type OutputConfig struct {
	Encoding string `yaml:"encoding"`
}

// LogConfig describes logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Config is the complete asciitel configuration.
type Config struct {
	Movie  MovieConfig  `yaml:"movie"`
	Server ServerConfig `yaml:"server"`
	Output OutputConfig `yaml:"output"`
	Log    LogConfig    `yaml:"log"`
}

// ListenAddr returns interface:port for the TCP listener.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Server.Interface, strconv.Itoa(c.Server.Port))
}
