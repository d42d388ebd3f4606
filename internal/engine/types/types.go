// Package types defines the marker types a handler uses to request
// built-in injected values. The descriptor matches parameters against
// these types, so they must stay distinct named types rather than
// aliases.
package types

// SocketID identifies the connection an event arrived on.
type SocketID string

// Event is the name of the event being dispatched.
type Event string

// Reason is the disconnect reason. It is only injectable in the
// disconnect handler.
type Reason string

// Environ carries the connection environment map captured at
// connection establishment.
type Environ map[string]any

// Auth is the authentication payload sent with the connect event. It
// is only injectable in the connect handler.
type Auth any

// Data is the raw event payload as delivered by the dispatcher, before
// any schema validation.
type Data any

// Server is the opaque server handle configured on the engine. Handlers
// that need to emit or inspect connection state declare a Server
// parameter and assert it to the concrete server type.
type Server any

// Reserved event names for connection lifecycle handlers.
const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
)

// RootNamespace is the namespace used when the dispatcher does not
// supply one.
const RootNamespace = "/"
