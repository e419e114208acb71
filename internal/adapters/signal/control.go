package signal

import (
	"bytes"
	"encoding/json"
)

var pingPrefix = []byte(`{"type":"ping"`)

// handleControl answers application-level keepalives from browser peers,
// which cannot send WebSocket ping frames. It reports whether data was one.
func (ctl *SignalWSController) handleControl(conn *WsSignalConn, data []byte) bool {
	if !bytes.HasPrefix(bytes.TrimSpace(data), pingPrefix) {
		return false
	}
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return true
	}
	_ = conn.TrySend(b)
	return true
}
