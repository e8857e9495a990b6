// Package connection implements the WebSocket transport.
//
// Server upgrades HTTP requests and runs one session per connection:
//   - assigns a random session id and opens its hub outbox
//   - connects the session to the engine (initialData is the first frame)
//   - reads frames into the router
//   - drains the outbox into the socket with a write deadline
//   - pings on an interval and drops peers that stop answering
//   - disconnects the session from the engine when the socket closes
//
// Client is the dialing side, used by cmd/streamtest and tests.
package connection
