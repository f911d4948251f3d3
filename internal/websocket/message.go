package websocket

import "encoding/json"

// Envelope is the frame pushed to connected clients. Kind tells the client
// which view to refresh; Payload carries the full replacement state for it.
type Envelope struct {
	Kind    string `json:"kind"`
	Payload any    `json:"payload"`
}

// Encode marshals an envelope for the wire.
func Encode(kind string, payload any) ([]byte, error) {
	return json.Marshal(Envelope{Kind: kind, Payload: payload})
}
