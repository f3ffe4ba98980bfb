package cnst

// Tracer names used across the services
const (
	// TraceRelay is the tracer name for the session relay core
	TraceRelay = "grimrelay/relay"
	// TraceTransport is the tracer name for the websocket transport
	TraceTransport = "grimrelay/transport"
)

// Common span names and prefixes
const (
	// SpanConnect represents the connection-time admission path
	SpanConnect = "relay.connect"
	// SpanDisconnect represents membership cleanup after a connection closes
	SpanDisconnect = "relay.disconnect"
	// SpanDispatchPrefix prefixes spans for handling inbound message kinds
	SpanDispatchPrefix = "relay.dispatch."
	// SpanBroadcast represents a session fan-out
	SpanBroadcast = "relay.broadcast"
)
