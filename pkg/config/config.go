// Package config loads record layer and handshake settings from YAML.
//
// Durations are Go duration strings:
//
//	mtu: 1400
//	receive_timeout: 30s
//	suite: chacha20-poly1305
//	retransmit:
//	  initial: 1s
//	  max: 60s
//	  max_attempts: 6
//	retransmit_epoch_lifetime: 4m
//	protocol_log: /var/log/dtls/capture.dlog
//
// Omitted fields keep their defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mash-protocol/mash-dtls/pkg/epoch"
	"github.com/mash-protocol/mash-dtls/pkg/flight"
	"github.com/mash-protocol/mash-dtls/pkg/handshake"
	"github.com/mash-protocol/mash-dtls/pkg/log"
	"github.com/mash-protocol/mash-dtls/pkg/record"
	"github.com/mash-protocol/mash-dtls/pkg/transport"
)

// Suite names accepted in the suite field.
const (
	SuiteChaCha20Poly1305 = "chacha20-poly1305"
	SuiteAES128GCM        = "aes-128-gcm"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Retransmit configures the flight retransmit timer.
type Retransmit struct {
	Initial     time.Duration `yaml:"initial"`
	Max         time.Duration `yaml:"max"`
	Multiplier  float64       `yaml:"multiplier"`
	Jitter      float64       `yaml:"jitter"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// Config holds the settings of one endpoint.
type Config struct {
	// MTU of the path, including IP and UDP headers.
	MTU int `yaml:"mtu"`

	// ReceiveTimeout bounds application reads. Zero waits forever.
	ReceiveTimeout time.Duration `yaml:"receive_timeout"`

	// Suite is the AEAD used once the handshake has switched epochs.
	Suite string `yaml:"suite"`

	Retransmit Retransmit `yaml:"retransmit"`

	// RetransmitEpochLifetime is how long the superseded epoch is kept after
	// the handshake to answer a repeated final flight.
	RetransmitEpochLifetime time.Duration `yaml:"retransmit_epoch_lifetime"`

	// MaxReceiveAhead is how many future handshake messages are buffered.
	MaxReceiveAhead int `yaml:"max_receive_ahead"`

	// MaxMessageLength caps the length a handshake fragment may announce.
	MaxMessageLength int `yaml:"max_message_length"`

	// ProtocolLog is the path of a CBOR protocol capture. Empty disables it.
	ProtocolLog string `yaml:"protocol_log"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		MTU:            transport.DefaultMTU,
		ReceiveTimeout: 30 * time.Second,
		Suite:          SuiteChaCha20Poly1305,
		Retransmit: Retransmit{
			Initial:     flight.InitialTimeout,
			Max:         flight.MaxTimeout,
			Multiplier:  flight.TimeoutMultiplier,
			MaxAttempts: flight.DefaultMaxRetransmits,
		},
		RetransmitEpochLifetime: record.DefaultRetransmitEpochLifetime,
		MaxReceiveAhead:         handshake.DefaultMaxReceiveAhead,
		MaxMessageLength:        handshake.DefaultMaxMessageLength,
	}
}

// Parse overlays YAML onto the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	if c.MTU < transport.MinMTU {
		errs = append(errs, fmt.Errorf("mtu %d below minimum %d", c.MTU, transport.MinMTU))
	}
	if c.ReceiveTimeout < 0 {
		errs = append(errs, fmt.Errorf("receive_timeout %s is negative", c.ReceiveTimeout))
	}
	if _, err := c.CipherSuite(); err != nil {
		errs = append(errs, err)
	}
	r := c.Retransmit
	if r.Initial <= 0 {
		errs = append(errs, fmt.Errorf("retransmit.initial %s must be positive", r.Initial))
	}
	if r.Max < r.Initial {
		errs = append(errs, fmt.Errorf("retransmit.max %s below initial %s", r.Max, r.Initial))
	}
	if r.Multiplier <= 1 {
		errs = append(errs, fmt.Errorf("retransmit.multiplier %g must exceed 1", r.Multiplier))
	}
	if r.Jitter < 0 || r.Jitter > 1 {
		errs = append(errs, fmt.Errorf("retransmit.jitter %g outside [0,1]", r.Jitter))
	}
	if r.MaxAttempts == 0 {
		errs = append(errs, errors.New("retransmit.max_attempts must be non-zero (negative retries forever)"))
	}
	if c.RetransmitEpochLifetime <= 0 {
		errs = append(errs, fmt.Errorf("retransmit_epoch_lifetime %s must be positive", c.RetransmitEpochLifetime))
	}
	if c.MaxReceiveAhead < 1 {
		errs = append(errs, fmt.Errorf("max_receive_ahead %d must be at least 1", c.MaxReceiveAhead))
	}
	if c.MaxMessageLength < 1 || c.MaxMessageLength > handshake.MaxLength {
		errs = append(errs, fmt.Errorf("max_message_length %d outside [1,%d]", c.MaxMessageLength, handshake.MaxLength))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// CipherSuite maps the suite name onto an epoch.Suite.
func (c *Config) CipherSuite() (epoch.Suite, error) {
	switch strings.ToLower(c.Suite) {
	case SuiteChaCha20Poly1305:
		return epoch.SuiteChaCha20Poly1305, nil
	case SuiteAES128GCM:
		return epoch.SuiteAES128GCM, nil
	default:
		return 0, fmt.Errorf("unknown suite %q", c.Suite)
	}
}

// RecordOptions returns record layer options for role.
func (c *Config) RecordOptions(role log.Role, plog log.Logger, logger *slog.Logger) record.Options {
	return record.Options{
		Role:                    role,
		RetransmitEpochLifetime: c.RetransmitEpochLifetime,
		ProtocolLogger:          plog,
		Logger:                  logger,
	}
}

// FlightConfig returns the flight manager settings for a record layer.
func (c *Config) FlightConfig(l *record.Layer, role log.Role, plog log.Logger, logger *slog.Logger) flight.Config {
	return flight.Config{
		Backoff: flight.BackoffConfig{
			Initial:    c.Retransmit.Initial,
			Max:        c.Retransmit.Max,
			Multiplier: c.Retransmit.Multiplier,
			Jitter:     c.Retransmit.Jitter,
		},
		MaxRetransmits:   c.Retransmit.MaxAttempts,
		MaxReceiveAhead:  c.MaxReceiveAhead,
		MaxMessageLength: c.MaxMessageLength,
		ProtocolLogger:   plog,
		ConnectionID:     l.ID(),
		Role:             role,
		RemoteAddr:       l.RemoteAddr(),
		Logger:           logger,
	}
}

// Marshal renders the config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
