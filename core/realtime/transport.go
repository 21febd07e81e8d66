package realtime

import "encoding/json"

// Message is one named event frame on the wire.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Handler receives transport lifecycle and message callbacks.
type Handler interface {
	// HandleOpen is called once connection establishment completes.
	HandleOpen()
	// HandleMessage is called per received event frame.
	HandleMessage(msg Message)
	// HandleClose is called when the transport goes away, whether by
	// explicit close, network drop or transport error.
	HandleClose(reason string)
	// HandleError is called on connect/runtime transport failures.
	HandleError(err error)
}

// Transport is one live (or establishing) realtime connection.
type Transport interface {
	// Emit sends a named event, fire-and-forget.
	Emit(event string, data interface{}) error
	// Connected reports the transport's own view of the connection.
	Connected() bool
	// Reconnect asks the transport to re-establish itself.
	Reconnect()
	Close() error
}

// Dialer opens a transport authenticated with the given bearer token.
// Establishment is asynchronous: the dialer returns immediately and
// completion is observed via the Handler.
type Dialer func(token string, h Handler) (Transport, error)
