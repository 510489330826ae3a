package livesync

import (
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ReconnectMode selects what a channel does after its connection drops.
type ReconnectMode string

const (
	// ReconnectNone leaves a dropped channel disconnected until it is
	// reopened by hand, e.g. by reselecting the graph.
	ReconnectNone ReconnectMode = "none"
	// ReconnectBackoff redials with exponential backoff.
	ReconnectBackoff ReconnectMode = "backoff"
)

// ReconnectPolicy configures reconnection. The zero value is ReconnectNone.
type ReconnectPolicy struct {
	Mode            ReconnectMode `yaml:"mode"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	// MaxAttempts bounds consecutive failed dials; zero means unbounded.
	MaxAttempts int `yaml:"max_attempts"`
}

// ParseReconnectMode accepts "", "none" and "backoff".
func ParseReconnectMode(s string) (ReconnectMode, error) {
	switch ReconnectMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ReconnectNone:
		return ReconnectNone, nil
	case ReconnectBackoff:
		return ReconnectBackoff, nil
	}
	return "", fmt.Errorf("unknown reconnect mode %q", s)
}

// Enabled reports whether the policy reconnects at all.
func (p ReconnectPolicy) Enabled() bool { return p.Mode == ReconnectBackoff }

// newBackOff returns the delay schedule, or nil when reconnect is off.
func (p ReconnectPolicy) newBackOff() backoff.BackOff {
	if !p.Enabled() {
		return nil
	}
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.Reset()
	return b
}
