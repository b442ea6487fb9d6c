// Package bridge carries the line-oriented text protocol between the engine
// and its price feed, either a live terminal over websocket or the replay
// engine in process.
package bridge

// Connection is a full-duplex message pipe. Receive never blocks; it
// reports ok=false when no message is pending so the scheduler can drain
// the inbound side and move on.
type Connection interface {
	Send(message string) error
	Receive() (string, bool)
}
