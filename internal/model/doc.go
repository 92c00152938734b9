// Package model defines the wire envelope and shared data types exchanged
// with the streaming gateway.
//
// Conventions:
//   - Frames: a single JSON envelope for both directions (see Frame)
//   - Timestamps on the wire: ISO 8601 / RFC 3339 strings
//   - Channel names: lowercase identifiers ("tick", "depth", "kline", ...)
package model
