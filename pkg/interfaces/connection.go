package interfaces

// Connection is one authenticated client as the core sees it. Identity is
// fixed at handshake time; the registry and every routed component work
// against this interface so tests can substitute in-memory fakes.
type Connection interface {
	// ID is the unique connection identifier, distinct from the user ID so
	// the same user may hold connections from two devices.
	ID() string
	UserID() string
	Username() string
	Role() string

	// WriteJSON queues v for delivery on the connection's writer goroutine.
	// Must be safe for concurrent use.
	WriteJSON(v interface{}) error

	// Close tears the connection down; safe to call more than once.
	Close() error
}
