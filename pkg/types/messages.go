// Package types holds the JSON messages exchanged with viewers over the
// WebSocket and relayed over NATS.
package types

// Server -> Viewer
// TARGET_UPDATE | ORDER_UPDATE | BIDDER_UPDATE | PARTICIPANT_UPDATE | LEADER_UPDATE:
//   {"type": "<name>"}
//   The viewer re-fetches the matching resource over HTTP.
//
// Pong:
//   {"type": "Pong"}
//
// Error:
//   {"type": "Error", "error": string}
//
// Viewer -> Server
// Ping:
//   {"type": "Ping"}

const (
	TypePing  = "Ping"
	TypePong  = "Pong"
	TypeError = "Error"
)

type ClientMessage struct {
	Type string `json:"type"`
}

type ServerMessage struct {
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`
}

// RelayMessage is what the NATS relay publishes. Run identifies the
// server process so subscribers can tell restarts apart.
type RelayMessage struct {
	Type string `json:"type"`
	Run  string `json:"run"`
}
