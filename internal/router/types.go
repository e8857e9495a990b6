package router

import "encoding/json"

// envelope is every inbound frame: {"event": ..., "data": ...}.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// placeBetWire keeps fields raw so wrongly typed values degrade to
// validation failures instead of parse errors.
type placeBetWire struct {
	MarketID  json.RawMessage `json:"marketId"`
	Direction json.RawMessage `json:"direction"`
	Amount    json.RawMessage `json:"amount"`
}

// Stats contains runtime statistics.
type Stats struct {
	MessagesReceived int64 `json:"messages_received"`
	MessagesRouted   int64 `json:"messages_routed"`
	ParseErrors      int64 `json:"parse_errors"`
	UnknownMessages  int64 `json:"unknown_messages"`
}
