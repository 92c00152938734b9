// Package connection implements the connection manager for the streaming
// gateway link.
//
// The manager:
//   - Owns the single multiplexed WebSocket connection
//   - Drives the lifecycle state machine (Disconnected -> Connecting ->
//     Authenticating -> Connected -> Reconnecting -> Closed)
//   - Probes liveness with application-level ping/pong heartbeats
//   - Reconnects with exponential backoff and replays subscriptions
//   - Forwards inbound frames to the message router
package connection
