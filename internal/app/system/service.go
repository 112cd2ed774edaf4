package system

import "context"

// Service is a lifecycle-managed background component. Long-running pieces
// of the platform (hint workers, reward reconciliation, pollers) implement
// it so the manager can bring them up and tear them down in order.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
