package system

import (
	"context"
	"fmt"

	core "github.com/tacc-cloud/abaco/internal/app/core/service"
	"github.com/tacc-cloud/abaco/pkg/logger"
)

// Manager owns the lifecycle of a set of registered Services, starting them
// in registration order and stopping them in reverse order. It is the
// runtime counterpart to CollectDescriptors: descriptors describe what a
// module is, the Manager is what actually runs it.
type Manager struct {
	log      *logger.Logger
	services []Service
	started  []Service
}

// NewManager builds an empty Manager. Pass nil for log to get a default logger.
func NewManager(log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewDefault("system")
	}
	return &Manager{log: log}
}

// Register adds a service to be managed. Nil services are ignored so callers
// can register conditionally-constructed services without branching.
func (m *Manager) Register(svc Service) {
	if svc == nil {
		return
	}
	m.services = append(m.services, svc)
}

// Start starts every registered service in registration order. If a service
// fails to start, all previously-started services are stopped in reverse
// order before the error is returned.
func (m *Manager) Start(ctx context.Context) error {
	for _, svc := range m.services {
		m.log.WithField("service", svc.Name()).Info("starting service")
		if err := svc.Start(ctx); err != nil {
			m.log.WithField("service", svc.Name()).WithError(err).Error("service failed to start")
			_ = m.stopStarted(ctx)
			return fmt.Errorf("start %s: %w", svc.Name(), err)
		}
		m.started = append(m.started, svc)
	}
	return nil
}

// Stop stops all started services in reverse start order, collecting (but not
// short-circuiting on) individual errors.
func (m *Manager) Stop(ctx context.Context) error {
	return m.stopStarted(ctx)
}

func (m *Manager) stopStarted(ctx context.Context) error {
	var firstErr error
	for i := len(m.started) - 1; i >= 0; i-- {
		svc := m.started[i]
		m.log.WithField("service", svc.Name()).Info("stopping service")
		if err := svc.Stop(ctx); err != nil {
			m.log.WithField("service", svc.Name()).WithError(err).Error("service failed to stop")
			if firstErr == nil {
				firstErr = fmt.Errorf("stop %s: %w", svc.Name(), err)
			}
		}
	}
	m.started = nil
	return firstErr
}

// Descriptors returns descriptors for every registered service that
// implements DescriptorProvider, sorted by layer then name.
func (m *Manager) Descriptors() []core.Descriptor {
	providers := make([]DescriptorProvider, 0, len(m.services))
	for _, svc := range m.services {
		if dp, ok := svc.(DescriptorProvider); ok {
			providers = append(providers, dp)
		}
	}
	return CollectDescriptors(providers)
}

// NoopService is a Service that does nothing; useful in tests and as a
// placeholder when a component's lifecycle is managed elsewhere.
type NoopService struct {
	ServiceName string
}

func (n NoopService) Name() string                   { return n.ServiceName }
func (n NoopService) Start(ctx context.Context) error { return nil }
func (n NoopService) Stop(ctx context.Context) error  { return nil }
