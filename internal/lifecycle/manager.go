package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/moolen/kubetrace/internal/logging"
)

// DefaultShutdownTimeout is the grace period given to each component on Stop
const DefaultShutdownTimeout = 30 * time.Second

// Manager starts components in registration order and stops them in reverse
// order. A failed start stops the components already started.
type Manager struct {
	mu              sync.Mutex
	components      []Component
	started         []Component
	shutdownTimeout time.Duration
	logger          *logging.Logger
}

// NewManager creates a manager with DefaultShutdownTimeout
func NewManager() *Manager {
	return &Manager{
		shutdownTimeout: DefaultShutdownTimeout,
		logger:          logging.GetLogger("lifecycle"),
	}
}

// Register appends a component. Components registered later may rely on the
// earlier ones running.
func (m *Manager) Register(component Component) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if component == nil {
		return fmt.Errorf("cannot register nil component")
	}
	if component.Name() == "" {
		return fmt.Errorf("component must have a non-empty name")
	}
	for _, c := range m.components {
		if c.Name() == component.Name() {
			return fmt.Errorf("component %s is already registered", component.Name())
		}
	}
	m.components = append(m.components, component)
	return nil
}

// Start starts every registered component
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.started = m.started[:0]
	for _, c := range m.components {
		started := time.Now()
		if err := c.Start(ctx); err != nil {
			m.logger.Error("failed to start %s: %v", c.Name(), err)
			m.stopStarted(context.Background())
			return fmt.Errorf("initialization failed for %s: %w", c.Name(), err)
		}
		m.started = append(m.started, c)
		m.logger.Debug("%s started (took %dms)", c.Name(), time.Since(started).Milliseconds())
	}
	return nil
}

// Stop stops the started components in reverse order. Every component gets
// its own shutdown timeout; errors are logged and joined.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopStarted(ctx)
}

func (m *Manager) stopStarted(ctx context.Context) error {
	var errs []error
	for i := len(m.started) - 1; i >= 0; i-- {
		c := m.started[i]
		cctx, cancel := context.WithTimeout(ctx, m.shutdownTimeout)
		err := c.Stop(cctx)
		cancel()
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			m.logger.Warn("%s exceeded its grace period of %s", c.Name(), m.shutdownTimeout)
			errs = append(errs, fmt.Errorf("stop %s: %w", c.Name(), err))
		case err != nil:
			m.logger.Error("error stopping %s: %v", c.Name(), err)
			errs = append(errs, fmt.Errorf("stop %s: %w", c.Name(), err))
		default:
			m.logger.Debug("%s stopped", c.Name())
		}
	}
	m.started = m.started[:0]
	return errors.Join(errs...)
}

// SetShutdownTimeout sets the grace period applied to each component
func (m *Manager) SetShutdownTimeout(timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownTimeout = timeout
}
