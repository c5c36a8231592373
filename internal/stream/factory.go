package stream

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies a source variant.
type Kind string

const (
	KindFile Kind = "file"
	KindUDP  Kind = "udp"
	KindRaw  Kind = "rawcap"
)

// ParseKind converts a string into a Kind (case-insensitive, trimmed).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "file":
		return KindFile, nil
	case "udp":
		return KindUDP, nil
	case "rawcap", "raw":
		return KindRaw, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler so a Kind can come
// straight out of mapstructure / yaml / json text.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Config selects and parameterizes a source.
type Config struct {
	Kind      Kind          `mapstructure:"kind"`
	ChunkSize int           `mapstructure:"chunk_size"`
	Timeout   time.Duration `mapstructure:"timeout"` // zero blocks indefinitely; file sources ignore it

	File FileConfig `mapstructure:"file"`
	UDP  UDPConfig  `mapstructure:"udp"`
	Raw  RawConfig  `mapstructure:"rawcap"`
}

// New builds the source selected by cfg.Kind. Construction either
// yields a usable source or an error with nothing left acquired.
func New(cfg Config) (Source, error) {
	switch cfg.Kind {
	case KindFile:
		return NewFileSource(cfg.File, cfg.ChunkSize)
	case KindUDP:
		return NewUDPSource(cfg.UDP, cfg.ChunkSize, cfg.Timeout)
	case KindRaw:
		return NewRawSource(cfg.Raw, cfg.ChunkSize, cfg.Timeout)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}
