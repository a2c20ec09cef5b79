package plugin

import (
	"github.com/hexastack/agentic/runtime"
)

// Initializer is a type alias to runtime.Initializer.
// Actions implementing it have Initialize called once the registry is built,
// before any workflow runs.
//
// Implement Initializer when an action needs to:
//   - Open a bot session or a websocket hub
//   - Verify the upstream API is reachable
//   - Warm a client connection pool
//
// If Initialize returns an error the application fails to start.
type Initializer = runtime.Initializer

// Shutdowner is a type alias to runtime.Shutdowner.
// Actions implementing it have Shutdown called during graceful shutdown, in
// reverse registration order.
type Shutdowner = runtime.Shutdowner

// Context is the read-only view of the run handed to an action.
type Context = runtime.ActionContext

// Input is the map form of evaluated task inputs.
type Input = map[string]any

// Output is the map form of an action result.
type Output = map[string]any

// NoSettings is the settings type of actions without static configuration.
type NoSettings struct{}
