// Package system manages component lifecycles for the application.
package system

import "context"

// Service is a component whose lifetime the Manager owns. Start must
// return promptly, putting long-running work on its own goroutine; Stop
// is expected to honor the context deadline while draining.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
