package runtime

import "context"

// Initializer is implemented by actions that need startup work, such as
// opening a channel connection. Initialize is called once by
// Registry.Initialize, in registration order.
type Initializer interface {
	Initialize(ctx context.Context) error
}

// Shutdowner is implemented by actions holding resources. Registry.Shutdown
// calls it in reverse registration order.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}
