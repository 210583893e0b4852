// Package clientver gates inbound messages on a minimum client version.
package clientver

import (
	"fmt"
	"log/slog"

	masterminds "github.com/Masterminds/semver/v3"
)

const logPrefix = "clientver:gate"

// Gate compares client-reported versions against a configured minimum.
// A nil Gate is valid and lets every client through.
type Gate struct {
	min *masterminds.Version
}

// NewGate parses the minimum version. An empty minimum disables the gate
// and returns nil.
func NewGate(min string) (*Gate, error) {
	if min == "" {
		return nil, nil
	}
	v, err := masterminds.NewVersion(min)
	if err != nil {
		return nil, fmt.Errorf("%s - invalid minimum client version %q: %w", logPrefix, min, err)
	}
	return &Gate{min: v}, nil
}

// Enabled reports whether a minimum version is configured.
func (g *Gate) Enabled() bool {
	return g != nil && g.min != nil
}

// Outdated reports whether version is older than the configured minimum.
// It returns false when the gate is disabled, the client did not report a
// version, or the reported version does not parse (logged and ignored).
func (g *Gate) Outdated(version string) bool {
	if !g.Enabled() || version == "" {
		return false
	}
	v, err := masterminds.NewVersion(version)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - unparseable client_version %q: %v", logPrefix, version, err))
		return false
	}
	return v.LessThan(g.min)
}

// Min returns the configured minimum version string, or "" when disabled.
func (g *Gate) Min() string {
	if !g.Enabled() {
		return ""
	}
	return g.min.String()
}
