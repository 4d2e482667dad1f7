// Package lifecycle starts and stops the long-running components of the
// serve command.
package lifecycle

import "context"

// Component is a long-running part of the serve command
type Component interface {
	// Start starts the component. It must not block once the component runs.
	Start(ctx context.Context) error

	// Stop stops the component, respecting the deadline of ctx
	Stop(ctx context.Context) error

	// Name is used in log lines
	Name() string
}

// Func adapts a pair of functions to Component
type Func struct {
	ComponentName string
	OnStart       func(ctx context.Context) error
	OnStop        func(ctx context.Context) error
}

// Start implements Component
func (f Func) Start(ctx context.Context) error {
	if f.OnStart == nil {
		return nil
	}
	return f.OnStart(ctx)
}

// Stop implements Component
func (f Func) Stop(ctx context.Context) error {
	if f.OnStop == nil {
		return nil
	}
	return f.OnStop(ctx)
}

// Name implements Component
func (f Func) Name() string {
	return f.ComponentName
}
