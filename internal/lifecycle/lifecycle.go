// Package lifecycle orchestrates orderly process shutdown: on SIGINT or
// SIGTERM, listeners stop accepting first, then the hub closes every
// registered session, then the reactor's worker pool drains and joins.
// Nothing here decides *what* to shut down — it only sequences Close calls
// supplied by cmd/edge-server in the order startup's own ownership chain
// requires.
package lifecycle

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/cherryrecorder/edge-server/internal/logger"
)

// Closer is anything with an idempotent-enough Close to run during
// shutdown; the listeners satisfy it. The hub and the reactor stop without
// returning an error, so they are held as Stoppers instead.
type Closer interface {
	Close() error
}

// Stopper is satisfied by components whose teardown doesn't return an error
// (the hub and the reactor).
type Stopper interface {
	Stop()
}

// Manager sequences shutdown across the listener, hub, and reactor tiers.
// Register each component as it is constructed at startup; Wait blocks
// until a termination signal arrives and then runs the sequence once.
type Manager struct {
	listeners []Closer
	hub       Stopper
	reactor   Stopper
}

// New returns a Manager that will, in order, close every registered
// listener, stop hub, then stop reactor.
func New(hub, reactor Stopper) *Manager {
	return &Manager{hub: hub, reactor: reactor}
}

// AddListener registers a listener to be closed before the hub is stopped.
func (m *Manager) AddListener(c Closer) {
	m.listeners = append(m.listeners, c)
}

// Wait blocks until SIGINT or SIGTERM is received, then runs Shutdown and
// returns. Callers typically call this from main after starting every
// listener in its own goroutine.
func (m *Manager) Wait() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	logger.Lifecycle().Info().Str("signal", s.String()).Msg("shutdown signal received")
	m.Shutdown()
}

// Shutdown runs the close sequence once: listeners (no new connections),
// then the hub (closes every registered session from its own serializer),
// then the reactor (drains and joins every worker).
func (m *Manager) Shutdown() {
	logger.Lifecycle().Info().Msg("closing listeners")
	for _, l := range m.listeners {
		if err := l.Close(); err != nil {
			logger.Lifecycle().Warn().Err(err).Msg("listener close error")
		}
	}

	logger.Lifecycle().Info().Msg("stopping hub")
	if m.hub != nil {
		m.hub.Stop()
	}

	logger.Lifecycle().Info().Msg("stopping reactor")
	if m.reactor != nil {
		m.reactor.Stop()
	}

	logger.Lifecycle().Info().Msg("shutdown complete")
}
